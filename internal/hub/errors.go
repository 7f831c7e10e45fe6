package hub

import (
	"errors"

	"chatteta/internal/repo"
)

// ErrUnauthorized marks a mutation attempted by a user who does not own the
// resource or is not a member of the target conversation.
var ErrUnauthorized = errors.New("unauthorized")

// Error codes carried in *_error payloads so clients can distinguish the
// rejection reason.
const (
	CodeUnauthorized     = "unauthorized"
	CodeNotFound         = "not_found"
	CodeAlreadyDeleted   = "already_deleted"
	CodeDuplicateAction  = "duplicate_action"
	CodeInvalidPayload   = "invalid_payload"
	CodePersistenceError = "persistence_error"
)

func codeFor(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, repo.ErrMessageNotFound),
		errors.Is(err, repo.ErrConversationNotFound),
		errors.Is(err, repo.ErrRequestNotFound),
		errors.Is(err, repo.ErrUserNotFound):
		return CodeNotFound
	case errors.Is(err, repo.ErrAlreadyDeleted):
		return CodeAlreadyDeleted
	case errors.Is(err, repo.ErrDuplicateRequest):
		return CodeDuplicateAction
	case errors.Is(err, repo.ErrInvalidID):
		return CodeInvalidPayload
	default:
		return CodePersistenceError
	}
}
