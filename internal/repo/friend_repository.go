package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatteta/internal/db"
	"chatteta/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	ErrRequestNotFound  = errors.New("friend request not found")
	ErrDuplicateRequest = errors.New("friend request already exists")
)

type FriendRepository interface {
	CreateRequest(ctx context.Context, userFrom, userTo string) (*model.FriendRequest, error)
	DeleteRequest(ctx context.Context, userFrom, userTo string) error
	AcceptRequest(ctx context.Context, userFrom, userTo string) error
	RejectRequest(ctx context.Context, userFrom, userTo string) error
	Unfriend(ctx context.Context, userA, userB string) error
	GetFriendIDs(ctx context.Context, userID string) ([]string, error)
}

type friendRepository struct {
	mongoRepo *db.Repository[model.FriendRequest]
	logger    *zap.Logger
}

func NewFriendRepository(repo *db.Repository[model.FriendRequest], logger *zap.Logger) FriendRepository {
	return &friendRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

// CreateRequest records a pending request. An existing pending or accepted
// edge between the pair, in either direction, makes the request a duplicate.
func (r *friendRepository) CreateRequest(ctx context.Context, userFrom, userTo string) (*model.FriendRequest, error) {
	if userFrom == "" || userTo == "" {
		return nil, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.Pair("user_from", "user_to", userFrom, userTo)
	filter["status"] = bson.M{"$in": []string{model.FriendStatusPending, model.FriendStatusAccepted}}

	exists, err := r.mongoRepo.Exists(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("friend request lookup failed: %w", err)
	}
	if exists {
		return nil, ErrDuplicateRequest
	}

	request := &model.FriendRequest{
		ID:        primitive.NewObjectID(),
		UserFrom:  userFrom,
		UserTo:    userTo,
		Status:    model.FriendStatusPending,
		CreatedAt: time.Now(),
	}

	if _, err := r.mongoRepo.Create(ctx, *request); err != nil {
		return nil, fmt.Errorf("create friend request failed: %w", err)
	}

	r.logger.Info("friend request created",
		zap.String("user_from", userFrom),
		zap.String("user_to", userTo),
	)
	return request, nil
}

func (r *friendRepository) DeleteRequest(ctx context.Context, userFrom, userTo string) error {
	if userFrom == "" || userTo == "" {
		return ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("user_from", userFrom).
		Eq("user_to", userTo).
		Eq("status", model.FriendStatusPending).
		Build()

	res, err := r.mongoRepo.Delete(ctx, filter)
	if err != nil {
		return fmt.Errorf("delete friend request failed: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (r *friendRepository) AcceptRequest(ctx context.Context, userFrom, userTo string) error {
	return r.transition(ctx, userFrom, userTo, model.FriendStatusAccepted)
}

func (r *friendRepository) RejectRequest(ctx context.Context, userFrom, userTo string) error {
	return r.transition(ctx, userFrom, userTo, model.FriendStatusRejected)
}

func (r *friendRepository) transition(ctx context.Context, userFrom, userTo, status string) error {
	if userFrom == "" || userTo == "" {
		return ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("user_from", userFrom).
		Eq("user_to", userTo).
		Eq("status", model.FriendStatusPending).
		Build()

	now := time.Now()
	res, err := r.mongoRepo.Update(ctx, filter, bson.M{"status": status, "updated_at": now})
	if err != nil {
		return fmt.Errorf("friend request transition failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrRequestNotFound
	}

	r.logger.Info("friend request updated",
		zap.String("user_from", userFrom),
		zap.String("user_to", userTo),
		zap.String("status", status),
	)
	return nil
}

// Unfriend removes the accepted edge between two users in either direction.
func (r *friendRepository) Unfriend(ctx context.Context, userA, userB string) error {
	if userA == "" || userB == "" {
		return ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.Pair("user_from", "user_to", userA, userB)
	filter["status"] = model.FriendStatusAccepted

	res, err := r.mongoRepo.Delete(ctx, filter)
	if err != nil {
		return fmt.Errorf("unfriend failed: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrRequestNotFound
	}

	r.logger.Info("friendship removed",
		zap.String("user_a", userA),
		zap.String("user_b", userB),
	)
	return nil
}

// GetFriendIDs returns the identities on the other end of every accepted
// edge touching userID. Used to scope presence broadcasts.
func (r *friendRepository) GetFriendIDs(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("status", model.FriendStatusAccepted).
		Or(bson.M{"user_from": userID}, bson.M{"user_to": userID}).
		Build()

	edges, err := r.mongoRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("get friends failed: %w", err)
	}

	friends := make([]string, 0, len(edges))
	for _, e := range edges {
		if e.UserFrom == userID {
			friends = append(friends, e.UserTo)
		} else {
			friends = append(friends, e.UserFrom)
		}
	}
	return friends, nil
}
