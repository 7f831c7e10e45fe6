package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatteta/internal/db"
	"chatteta/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
	UpdateStatus(ctx context.Context, userID string, status string) error
}

type userRepository struct {
	mongoRepo *db.Repository[model.User]
}

func NewUserRepository(repo *db.Repository[model.User]) UserRepository {
	return &userRepository{
		mongoRepo: repo,
	}
}

func (r *userRepository) GetUser(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	user, err := r.mongoRepo.FindOne(ctx, db.NewFilter().Eq("user_id", userID).Build())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user failed: %w", err)
	}
	return user, nil
}

// UpdateStatus persists the explicitly chosen display status. It does not
// touch connection-derived presence.
func (r *userRepository) UpdateStatus(ctx context.Context, userID string, status string) error {
	if userID == "" {
		return ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	now := time.Now()
	res, err := r.mongoRepo.Update(ctx,
		db.NewFilter().Eq("user_id", userID).Build(),
		bson.M{"status": status, "updated_at": now},
	)
	if err != nil {
		return fmt.Errorf("update status failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}
