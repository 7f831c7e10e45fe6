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
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	ErrMessageNotFound  = errors.New("message not found")
	ErrAlreadyDeleted   = errors.New("message already deleted for this user")
	ErrInvalidMessage   = errors.New("invalid message: message cannot be nil")
	ErrInvalidID        = errors.New("invalid id: cannot be empty")
	ErrOperationTimeout = errors.New("operation timeout exceeded")
)

type MessageRepository interface {
	InsertMessage(ctx context.Context, msg *model.Message) (*model.Message, error)
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	RevokeMessage(ctx context.Context, id string) error
	MarkDeletedFor(ctx context.Context, id string, userID string) error
	AddReaction(ctx context.Context, id string, emoji string, userID string) error
	RemoveReaction(ctx context.Context, id string, emoji string, userID string) error
	MarkConversationSeen(ctx context.Context, conversationID string) error
	DeleteByConversation(ctx context.Context, conversationID string) error
	FilterMessages(ctx context.Context, conversationID string, page int64) (*db.PaginatedResult[model.Message], error)
}

type messageRepository struct {
	mongoRepo *db.Repository[model.Message]
	logger    *zap.Logger
}

func NewMessageRepository(repo *db.Repository[model.Message], logger *zap.Logger) MessageRepository {
	return &messageRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

// -----------------------------------------------------------------------------
// InsertMessage
// -----------------------------------------------------------------------------

func (m *messageRepository) InsertMessage(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if msg == nil {
		return nil, ErrInvalidMessage
	}
	if msg.ConversationID.IsZero() {
		return nil, ErrInvalidID
	}

	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return nil, err
			}
		}

		_, err := m.mongoRepo.Create(ctx, *msg)
		if err == nil {
			m.logger.Info("message inserted",
				zap.String("message_id", msg.ID.Hex()),
				zap.String("conversation_id", msg.ConversationID.Hex()),
				zap.Int("attempt", attempt+1),
			)
			return msg, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}

		m.logger.Warn("insert attempt failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxRetries),
		)
	}

	m.logger.Error("failed to insert message after all retries",
		zap.Error(lastErr),
		zap.String("conversation_id", msg.ConversationID.Hex()),
	)

	return nil, fmt.Errorf("insert message failed: %w", lastErr)
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

func (m *messageRepository) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	msg, err := m.mongoRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("get message failed: %w", err)
	}
	return msg, nil
}

func (m *messageRepository) FilterMessages(ctx context.Context, conversationID string, page int64) (*db.PaginatedResult[model.Message], error) {
	if conversationID == "" {
		return nil, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().ObjectID("conversation_id", conversationID).Build()

	result, err := m.mongoRepo.FindWithPagination(ctx, filter, db.PaginationParams{
		Page:     page,
		PageSize: 15,
		SortBy:   "created_at",
		SortDesc: false,
	})
	if err != nil {
		return nil, m.handleReadError(err, conversationID)
	}

	m.logger.Debug("messages filtered",
		zap.String("conversation_id", conversationID),
		zap.Int("count", len(result.Data)),
		zap.Int64("total", result.Total),
	)
	return result, nil
}

// -----------------------------------------------------------------------------
// Mutations
// -----------------------------------------------------------------------------

func (m *messageRepository) RevokeMessage(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	now := time.Now()
	res, err := m.mongoRepo.UpdateByID(ctx, id, bson.M{"is_revoked": true, "updated_at": now})
	if err != nil {
		return fmt.Errorf("revoke message failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// MarkDeletedFor appends a user to the per-user deletion list. A second
// delete by the same user matches nothing ($addToSet no-op) and is reported
// as ErrAlreadyDeleted.
func (m *messageRepository) MarkDeletedFor(ctx context.Context, id string, userID string) error {
	if id == "" || userID == "" {
		return ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	res, err := m.mongoRepo.UpdateByIDRaw(ctx, id, bson.M{
		"$addToSet": bson.M{"deleted_by": userID},
	})
	if err != nil {
		return fmt.Errorf("delete message failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrMessageNotFound
	}
	if res.ModifiedCount == 0 {
		return ErrAlreadyDeleted
	}
	return nil
}

func (m *messageRepository) AddReaction(ctx context.Context, id string, emoji string, userID string) error {
	if id == "" || emoji == "" || userID == "" {
		return ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	// $addToSet keeps the per-emoji identity set deduplicated; a repeated
	// add is a no-op on the map but not an error.
	res, err := m.mongoRepo.UpdateByIDRaw(ctx, id, bson.M{
		"$addToSet": bson.M{"reactions." + emoji: userID},
	})
	if err != nil {
		return fmt.Errorf("add reaction failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (m *messageRepository) RemoveReaction(ctx context.Context, id string, emoji string, userID string) error {
	if id == "" || emoji == "" || userID == "" {
		return ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	res, err := m.mongoRepo.UpdateByIDRaw(ctx, id, bson.M{
		"$pull": bson.M{"reactions." + emoji: userID},
	})
	if err != nil {
		return fmt.Errorf("remove reaction failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// MarkConversationSeen bulk-marks every message in the conversation as seen.
// No per-message granularity.
func (m *messageRepository) MarkConversationSeen(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().ObjectID("conversation_id", conversationID).Eq("seen", false).Build()
	if _, err := m.mongoRepo.UpdateMany(ctx, filter, bson.M{"seen": true}); err != nil {
		return fmt.Errorf("mark conversation seen failed: %w", err)
	}
	return nil
}

func (m *messageRepository) DeleteByConversation(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().ObjectID("conversation_id", conversationID).Build()
	res, err := m.mongoRepo.DeleteMany(ctx, filter)
	if err != nil {
		return fmt.Errorf("delete conversation messages failed: %w", err)
	}

	m.logger.Info("conversation messages deleted",
		zap.String("conversation_id", conversationID),
		zap.Int64("count", res.DeletedCount),
	)
	return nil
}

// -----------------------------------------------------------------------------
// Private Helper Methods
// -----------------------------------------------------------------------------

func (m *messageRepository) handleReadError(err error, conversationID string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		m.logger.Error("read timeout", zap.String("conversation_id", conversationID))
		return ErrOperationTimeout
	}

	if errors.Is(err, context.Canceled) {
		m.logger.Debug("read cancelled", zap.String("conversation_id", conversationID))
		return err
	}

	m.logger.Error("read failed", zap.Error(err), zap.String("conversation_id", conversationID))
	return fmt.Errorf("filter messages failed: %w", err)
}
