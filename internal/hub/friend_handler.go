package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"chatteta/internal/event"
	"chatteta/internal/model"
	"chatteta/internal/repo"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// FriendHandler reacts to friend-relationship transitions by updating the
// persisted graph and notifying the counterpart's personal room. Success
// acknowledgments go to the acting connection only, never broadcast.
type FriendHandler struct {
	delivery      Delivery
	friends       repo.FriendRepository
	conversations repo.ConversationRepository
	messages      repo.MessageRepository
	validate      *validator.Validate
	logger        *zap.Logger
}

func NewFriendHandler(delivery Delivery, friends repo.FriendRepository, conversations repo.ConversationRepository, messages repo.MessageRepository, logger *zap.Logger) *FriendHandler {
	return &FriendHandler{
		delivery:      delivery,
		friends:       friends,
		conversations: conversations,
		messages:      messages,
		validate:      validator.New(),
		logger:        logger,
	}
}

// Handle dispatches one inbound friend event.
func (fh *FriendHandler) Handle(ctx context.Context, actor Actor, ev event.WsEvent) {
	switch ev.Event {
	case event.EventAddFriend:
		fh.handleAdd(ctx, actor, ev)
	case event.EventDeleteRequestFriend:
		fh.handleCancel(ctx, actor, ev)
	case event.EventAcceptRequestFriend:
		fh.handleAccept(ctx, actor, ev)
	case event.EventDontAcceptFriend:
		fh.handleReject(ctx, actor, ev)
	case event.EventUnFriend:
		fh.handleUnfriend(ctx, actor, ev)
	default:
		fh.logger.Warn("unknown friend event", zap.String("event", ev.Event))
	}
}

func (fh *FriendHandler) handleAdd(ctx context.Context, actor Actor, ev event.WsEvent) {
	p, ok := fh.decodeRequest(actor, ev)
	if !ok {
		return
	}

	// A connection may only originate requests as itself.
	if p.UserFrom != actor.UserID {
		fh.emitError(actor, ev.Event, ErrUnauthorized)
		return
	}

	request, err := fh.friends.CreateRequest(ctx, p.UserFrom, p.UserTo)
	if err != nil {
		fh.emitError(actor, ev.Event, err)
		return
	}

	fh.delivery.EmitToRoom(p.UserTo, event.EventNewRequestFriend, request)
	fh.delivery.EmitToConnection(actor.ConnID, event.EventAddFriendSuccess, request)
}

func (fh *FriendHandler) handleCancel(ctx context.Context, actor Actor, ev event.WsEvent) {
	p, ok := fh.decodeRequest(actor, ev)
	if !ok {
		return
	}

	if p.UserFrom != actor.UserID {
		fh.emitError(actor, ev.Event, ErrUnauthorized)
		return
	}

	if err := fh.friends.DeleteRequest(ctx, p.UserFrom, p.UserTo); err != nil {
		fh.emitError(actor, ev.Event, err)
		return
	}

	fh.delivery.EmitToRoom(p.UserTo, event.EventDeleteRequestFriend, p)
}

func (fh *FriendHandler) handleAccept(ctx context.Context, actor Actor, ev event.WsEvent) {
	p, ok := fh.decodeRequest(actor, ev)
	if !ok {
		return
	}

	// Only the receiver of a request may accept it.
	if p.UserTo != actor.UserID {
		fh.emitError(actor, ev.Event, ErrUnauthorized)
		return
	}

	if err := fh.friends.AcceptRequest(ctx, p.UserFrom, p.UserTo); err != nil {
		fh.emitError(actor, ev.Event, err)
		return
	}

	fh.delivery.EmitToRoom(p.UserFrom, event.EventAcceptRequestFriend, p)
}

func (fh *FriendHandler) handleReject(ctx context.Context, actor Actor, ev event.WsEvent) {
	p, ok := fh.decodeRequest(actor, ev)
	if !ok {
		return
	}

	if p.UserTo != actor.UserID {
		fh.emitError(actor, ev.Event, ErrUnauthorized)
		return
	}

	if err := fh.friends.RejectRequest(ctx, p.UserFrom, p.UserTo); err != nil {
		fh.emitError(actor, ev.Event, err)
		return
	}

	fh.delivery.EmitToRoom(p.UserFrom, event.EventDontAcceptFriend, p)
}

func (fh *FriendHandler) handleUnfriend(ctx context.Context, actor Actor, ev event.WsEvent) {
	var p event.UnFriendPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		fh.emitInvalid(actor, ev.Event, err)
		return
	}
	if err := fh.validate.Struct(p); err != nil {
		fh.emitInvalid(actor, ev.Event, err)
		return
	}

	if p.UserFrom != actor.UserID && p.UserTo != actor.UserID {
		fh.emitError(actor, ev.Event, ErrUnauthorized)
		return
	}

	// The conversation id comes from the client; it must actually belong to
	// this pair before anything is torn down.
	members, err := fh.conversations.GetConversationMembers(ctx, p.IDConversation)
	if err != nil {
		fh.emitError(actor, ev.Event, err)
		return
	}
	if !lo.Contains(members, p.UserFrom) || !lo.Contains(members, p.UserTo) {
		fh.emitError(actor, ev.Event, fmt.Errorf("%w: conversation %s does not belong to the pair", ErrUnauthorized, p.IDConversation))
		return
	}

	if err := fh.friends.Unfriend(ctx, p.UserFrom, p.UserTo); err != nil {
		fh.emitError(actor, ev.Event, err)
		return
	}

	// The pair's conversation and its history go away with the friendship,
	// before the counterpart is notified.
	if err := fh.messages.DeleteByConversation(ctx, p.IDConversation); err != nil {
		fh.emitError(actor, ev.Event, err)
		return
	}
	if err := fh.conversations.DeleteConversation(ctx, p.IDConversation); err != nil {
		fh.emitError(actor, ev.Event, err)
		return
	}

	counterpart := p.UserTo
	if actor.UserID == p.UserTo {
		counterpart = p.UserFrom
	}
	fh.delivery.EmitToRoom(counterpart, event.EventUnFriend, p)
}

func (fh *FriendHandler) decodeRequest(actor Actor, ev event.WsEvent) (event.FriendRequestPayload, bool) {
	var p event.FriendRequestPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		fh.emitInvalid(actor, ev.Event, err)
		return p, false
	}
	if err := fh.validate.Struct(p); err != nil {
		fh.emitInvalid(actor, ev.Event, err)
		return p, false
	}
	return p, true
}

func (fh *FriendHandler) emitInvalid(actor Actor, inbound string, err error) {
	fh.delivery.EmitToConnection(actor.ConnID, event.ErrorEventFor(inbound), model.ErrorPayload{
		Code:    CodeInvalidPayload,
		Message: err.Error(),
	})
}

func (fh *FriendHandler) emitError(actor Actor, inbound string, err error) {
	fh.logger.Debug("friend event rejected",
		zap.String("event", inbound),
		zap.String("user_id", actor.UserID),
		zap.Error(err),
	)
	fh.delivery.EmitToConnection(actor.ConnID, event.ErrorEventFor(inbound), model.ErrorPayload{
		Code:    codeFor(err),
		Message: err.Error(),
	})
}
