package hub

import (
	"context"
	"sync"

	"chatteta/internal/event"
	"chatteta/internal/repo"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Presence statuses
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusAway    = "away"
	StatusBusy    = "busy"
)

// PresenceTracker derives online/offline state from registry transitions and
// broadcasts the change. Status changes are scoped to the affected user's
// friends and the user's own personal room (for cross-device sync), never
// sent to unrelated clients.
//
// An explicit status set by the user overrides the displayed status but not
// the connection-count bookkeeping: implicit offline detection still fires
// when the last connection drops.
type PresenceTracker struct {
	delivery Delivery
	friends  repo.FriendRepository
	users    repo.UserRepository
	logger   *zap.Logger

	mu       sync.RWMutex
	explicit map[string]string // userID -> display status override
}

func NewPresenceTracker(delivery Delivery, friends repo.FriendRepository, users repo.UserRepository, logger *zap.Logger) *PresenceTracker {
	return &PresenceTracker{
		delivery: delivery,
		friends:  friends,
		users:    users,
		logger:   logger,
		explicit: make(map[string]string),
	}
}

// MarkOnline broadcasts that the user came online. Called by the hub when
// the user's first connection registers.
func (p *PresenceTracker) MarkOnline(ctx context.Context, userID string) {
	p.broadcast(ctx, userID, StatusOnline)
}

// MarkOffline broadcasts that the user went offline and drops any explicit
// status override. Called by the hub when the last connection deregisters.
func (p *PresenceTracker) MarkOffline(ctx context.Context, userID string) {
	p.mu.Lock()
	delete(p.explicit, userID)
	p.mu.Unlock()

	p.broadcast(ctx, userID, StatusOffline)
}

// SetExplicitStatus persists and broadcasts a user-chosen display status.
func (p *PresenceTracker) SetExplicitStatus(ctx context.Context, userID string, status string) error {
	if err := p.users.UpdateStatus(ctx, userID, status); err != nil {
		return err
	}

	p.mu.Lock()
	p.explicit[userID] = status
	p.mu.Unlock()

	p.broadcast(ctx, userID, status)
	return nil
}

// StatusOf resolves the displayed status for a user given their
// connection-derived online state.
func (p *PresenceTracker) StatusOf(userID string, online bool) string {
	if !online {
		return StatusOffline
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if status, ok := p.explicit[userID]; ok {
		return status
	}
	return StatusOnline
}

func (p *PresenceTracker) broadcast(ctx context.Context, userID string, status string) {
	targets := []string{userID}

	friendIDs, err := p.friends.GetFriendIDs(ctx, userID)
	if err != nil {
		// Fall back to the user's own room; a stale presence view for
		// friends beats a dropped state change for the user's devices.
		p.logger.Warn("presence: failed to resolve friends",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	} else {
		targets = append(targets, friendIDs...)
	}

	payload := event.StatusChangedPayload{UserID: userID, Status: status}
	for _, target := range lo.Uniq(targets) {
		p.delivery.EmitToRoom(target, event.EventStatusChanged, payload)
	}
}
