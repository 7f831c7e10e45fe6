package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation represents a chat conversation/room in MongoDB.
type Conversation struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ConversationType string             `json:"conversationType" bson:"conversation_type"`
	MemberIDs        []string           `json:"memberIds" bson:"member_ids"`
	ConversationName string             `json:"conversationName" bson:"conversation_name"`
	CreatedBy        string             `json:"createdBy" bson:"created_by"`
	CreatedAt        time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt        time.Time          `json:"updatedAt" bson:"updated_at"`
	LastMessageAt    time.Time          `json:"lastMessageAt" bson:"last_message_at"`
	LastMessage      *LastMessage       `json:"lastMessage" bson:"last_message"`
	IsActive         bool               `json:"isActive" bson:"is_active"`
}

// LastMessage stores the most recent message preview shown in list views.
type LastMessage struct {
	MessageID string    `json:"messageId" bson:"message_id"`
	Content   string    `json:"content" bson:"content"`
	SenderID  string    `json:"senderId" bson:"sender_id"`
	SentAt    time.Time `json:"sentAt" bson:"sent_at"`
}
