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
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var ErrConversationNotFound = errors.New("conversation not found")

type ConversationRepository interface {
	GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error)
	GetConversationMembers(ctx context.Context, conversationID string) ([]string, error)
	GetUserConversationIDs(ctx context.Context, userID string) ([]string, error)
	GetUserConversations(ctx context.Context, userID string) ([]model.Conversation, error)
	UpdateLastMessage(ctx context.Context, conversationID string, last *model.LastMessage) error
	DeleteConversation(ctx context.Context, conversationID string) error
}

type conversationRepository struct {
	mongoRepo *db.Repository[model.Conversation]
	logger    *zap.Logger
}

func NewConversationRepository(repo *db.Repository[model.Conversation], logger *zap.Logger) ConversationRepository {
	return &conversationRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

func (r *conversationRepository) GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	if conversationID == "" {
		return nil, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	conversation, err := r.mongoRepo.FindByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			r.logger.Debug("conversation not found", zap.String("conversation_id", conversationID))
			return nil, ErrConversationNotFound
		}
		r.logger.Error("failed to fetch conversation",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to fetch conversation: %w", err)
	}

	return conversation, nil
}

func (r *conversationRepository) GetConversationMembers(ctx context.Context, conversationID string) ([]string, error) {
	conversation, err := r.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return conversation.MemberIDs, nil
}

func (r *conversationRepository) GetUserConversationIDs(ctx context.Context, userID string) ([]string, error) {
	conversations, err := r.GetUserConversations(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(conversations))
	for _, c := range conversations {
		ids = append(ids, c.ID.Hex())
	}
	return ids, nil
}

func (r *conversationRepository) GetUserConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	if userID == "" {
		return nil, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("member_ids", userID).Eq("is_active", true).Build()
	opts := options.Find().SetSort(bson.M{"last_message_at": -1})

	conversations, err := r.mongoRepo.FindAll(ctx, filter, opts)
	if err != nil {
		r.logger.Error("failed to query user conversations",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to get conversations: %w", err)
	}

	r.logger.Debug("conversations retrieved",
		zap.String("user_id", userID),
		zap.Int("count", len(conversations)),
	)
	return conversations, nil
}

func (r *conversationRepository) UpdateLastMessage(ctx context.Context, conversationID string, last *model.LastMessage) error {
	if conversationID == "" {
		return ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	res, err := r.mongoRepo.UpdateByID(ctx, conversationID, bson.M{
		"last_message":    last,
		"last_message_at": last.SentAt,
		"updated_at":      time.Now(),
	})
	if err != nil {
		return fmt.Errorf("update last message failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func (r *conversationRepository) DeleteConversation(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	if _, err := r.mongoRepo.DeleteByID(ctx, conversationID); err != nil {
		return fmt.Errorf("delete conversation failed: %w", err)
	}

	r.logger.Info("conversation deleted", zap.String("conversation_id", conversationID))
	return nil
}
