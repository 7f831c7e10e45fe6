package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message represents a chat message in MongoDB.
type Message struct {
	ID              primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	ConversationID  primitive.ObjectID  `json:"conversationId" bson:"conversation_id"`
	SenderID        string              `json:"senderId" bson:"sender_id"`
	Type            string              `json:"type" bson:"type"`
	Content         string              `json:"content" bson:"content"`
	FileURL         *string             `json:"fileUrl" bson:"file_url"`
	Seen            bool                `json:"seen" bson:"seen"`
	IsRevoked       bool                `json:"isRevoked" bson:"is_revoked"`
	IsForwarded     bool                `json:"isForwarded" bson:"is_forwarded"`
	OriginalMessage *primitive.ObjectID `json:"originalMessage" bson:"original_message"`
	OriginalSender  string              `json:"originalSender" bson:"original_sender"`
	DeletedBy       []string            `json:"deletedBy" bson:"deleted_by"`
	Reactions       map[string][]string `json:"reactions" bson:"reactions"`
	CreatedAt       time.Time           `json:"createdAt" bson:"created_at"`
	UpdatedAt       *time.Time          `json:"updatedAt" bson:"updated_at"`
}

// HasFile reports whether the message carries an attachment, used by clients
// to render the revoked placeholder for the original media type.
func (m *Message) HasFile() bool {
	return m.FileURL != nil && *m.FileURL != ""
}

// DeletedFor reports whether the message is locally deleted for a user.
func (m *Message) DeletedFor(userID string) bool {
	for _, id := range m.DeletedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// ErrorPayload represents an error response sent to a client via WebSocket.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
