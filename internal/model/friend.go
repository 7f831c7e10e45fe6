package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Friend request statuses
const (
	FriendStatusPending  = "pending"
	FriendStatusAccepted = "accepted"
	FriendStatusRejected = "rejected"
)

// FriendRequest represents a friend-relationship record in MongoDB. Accepted
// requests double as the friendship edge between the two users.
type FriendRequest struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserFrom  string             `json:"userFrom" bson:"user_from"`
	UserTo    string             `json:"userTo" bson:"user_to"`
	Status    string             `json:"status" bson:"status"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt *time.Time         `json:"updatedAt" bson:"updated_at"`
}
