package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chatteta/internal/event"
	"chatteta/internal/model"
	"chatteta/internal/repo"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Actor identifies the connection an inbound event arrived on.
type Actor struct {
	ConnID string
	UserID string
}

// ChatHandler validates and routes all conversation-scoped events: send,
// revoke, per-user delete, reactions, forward, seen and typing. Every
// failure inside an operation is converted into a *_error event for the
// acting connection only; nothing here may take down another connection's
// processing.
type ChatHandler struct {
	delivery      Delivery
	messages      repo.MessageRepository
	conversations repo.ConversationRepository
	validate      *validator.Validate
	logger        *zap.Logger
}

func NewChatHandler(delivery Delivery, messages repo.MessageRepository, conversations repo.ConversationRepository, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		delivery:      delivery,
		messages:      messages,
		conversations: conversations,
		validate:      validator.New(),
		logger:        logger,
	}
}

// Handle dispatches one inbound conversation event.
func (ch *ChatHandler) Handle(ctx context.Context, actor Actor, ev event.WsEvent) {
	switch ev.Event {
	case event.EventSendMessage:
		ch.handleSend(ctx, actor, ev)
	case event.EventRevokeMessage:
		ch.handleRevoke(ctx, actor, ev)
	case event.EventDeleteMessage:
		ch.handleDelete(ctx, actor, ev)
	case event.EventAddReaction:
		ch.handleReaction(ctx, actor, ev, event.ReactionActionAdd)
	case event.EventRemoveReaction:
		ch.handleReaction(ctx, actor, ev, event.ReactionActionRemove)
	case event.EventForwardMessage:
		ch.handleForward(ctx, actor, ev)
	case event.EventSeenMessage:
		ch.handleSeen(ctx, actor, ev)
	case event.EventTyping:
		ch.handleTyping(actor, ev, event.EventUserTyping)
	case event.EventStopTyping:
		ch.handleTyping(actor, ev, event.EventUserStopTyping)
	default:
		ch.logger.Warn("unknown chat event", zap.String("event", ev.Event))
	}
}

// -----------------------------------------------------------------
// send
// -----------------------------------------------------------------

func (ch *ChatHandler) handleSend(ctx context.Context, actor Actor, ev event.WsEvent) {
	var p event.SendMessagePayload
	if !ch.decode(actor, ev, &p) {
		return
	}

	if _, err := ch.PushMessage(ctx, actor.UserID, p); err != nil {
		ch.emitError(actor, ev.Event, err)
	}
}

// PushMessage persists a message and fans it out: one new_message to the
// conversation room, plus one update_conversation_list to every member's
// personal room so clients not viewing the conversation can reorder their
// lists. Exposed for outside callers such as the HTTP upload handler.
//
// If the save fails the message is dropped and nothing is broadcast.
func (ch *ChatHandler) PushMessage(ctx context.Context, senderID string, p event.SendMessagePayload) (*model.Message, error) {
	if err := ch.validate.Struct(p); err != nil {
		return nil, fmt.Errorf("%w: %v", repo.ErrInvalidID, err)
	}

	members, err := ch.requireMember(ctx, p.ConversationID, senderID)
	if err != nil {
		return nil, err
	}

	convID, err := primitive.ObjectIDFromHex(p.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad conversation id", repo.ErrInvalidID)
	}

	msg := &model.Message{
		ConversationID: convID,
		SenderID:       senderID,
		Type:           p.Type,
		Content:        p.Content,
		Seen:           false,
		CreatedAt:      time.Now(),
	}
	if p.FileURL != "" {
		msg.FileURL = &p.FileURL
	}

	if msg, err = ch.messages.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}

	ch.updateLastMessage(ctx, p.ConversationID, msg)
	ch.deliverNewMessage(msg, members)
	return msg, nil
}

func (ch *ChatHandler) deliverNewMessage(msg *model.Message, members []string) {
	conversationID := msg.ConversationID.Hex()
	ch.delivery.EmitToRoom(conversationID, event.EventNewMessage, msg)

	update := event.ConversationListUpdatePayload{
		ConversationID: conversationID,
		LastContent:    msg.Content,
		LastSenderID:   msg.SenderID,
		LastSentAt:     msg.CreatedAt.Unix(),
	}
	for _, member := range lo.Uniq(members) {
		ch.delivery.EmitToRoom(member, event.EventUpdateConversationList, update)
	}
}

// updateLastMessage refreshes the conversation's preview pointer. The
// message itself is already durable, so a failure here only stales the list
// view and must not abort delivery.
func (ch *ChatHandler) updateLastMessage(ctx context.Context, conversationID string, msg *model.Message) {
	last := &model.LastMessage{
		MessageID: msg.ID.Hex(),
		Content:   msg.Content,
		SenderID:  msg.SenderID,
		SentAt:    msg.CreatedAt,
	}
	if err := ch.conversations.UpdateLastMessage(ctx, conversationID, last); err != nil {
		ch.logger.Warn("failed to update last message pointer",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
	}
}

// -----------------------------------------------------------------
// revoke / delete / reactions
// -----------------------------------------------------------------

func (ch *ChatHandler) handleRevoke(ctx context.Context, actor Actor, ev event.WsEvent) {
	var p event.RevokeMessagePayload
	if !ch.decode(actor, ev, &p) {
		return
	}

	msg, err := ch.messages.GetMessage(ctx, p.MessageID)
	if err != nil {
		ch.emitError(actor, ev.Event, err)
		return
	}

	// Only the original sender may revoke.
	if msg.SenderID != actor.UserID {
		ch.emitError(actor, ev.Event, ErrUnauthorized)
		return
	}

	if err := ch.messages.RevokeMessage(ctx, p.MessageID); err != nil {
		ch.emitError(actor, ev.Event, err)
		return
	}

	// The room key comes from the persisted message, not the payload, so a
	// sender cannot spoof the broadcast into an unrelated room.
	conversationID := msg.ConversationID.Hex()
	ch.delivery.EmitToRoom(conversationID, event.EventMessageRevoked, event.MessageRevokedPayload{
		MessageID:      p.MessageID,
		ConversationID: conversationID,
		Type:           msg.Type,
		HasFile:        msg.HasFile(),
	})
}

func (ch *ChatHandler) handleDelete(ctx context.Context, actor Actor, ev event.WsEvent) {
	var p event.DeleteMessagePayload
	if !ch.decode(actor, ev, &p) {
		return
	}

	if err := ch.messages.MarkDeletedFor(ctx, p.MessageID, actor.UserID); err != nil {
		ch.emitError(actor, ev.Event, err)
		return
	}

	// Local delete: only the acting user's view changes, so only the
	// acting connection is notified.
	ch.delivery.EmitToConnection(actor.ConnID, event.EventMessageDeleted, event.MessageDeletedPayload{
		MessageID:      p.MessageID,
		ConversationID: p.ConversationID,
		DeletedBy:      actor.UserID,
	})
}

func (ch *ChatHandler) handleReaction(ctx context.Context, actor Actor, ev event.WsEvent, action string) {
	var p event.ReactionPayload
	if !ch.decode(actor, ev, &p) {
		return
	}

	var err error
	if action == event.ReactionActionAdd {
		err = ch.messages.AddReaction(ctx, p.MessageID, p.Emoji, actor.UserID)
	} else {
		err = ch.messages.RemoveReaction(ctx, p.MessageID, p.Emoji, actor.UserID)
	}
	if err != nil {
		ch.emitError(actor, ev.Event, err)
		return
	}

	// Broadcast even when the reaction set did not change; clients key
	// their animations off the event, not the map diff.
	ch.delivery.EmitToRoom(p.ConversationID, event.EventMessageReaction, event.MessageReactionPayload{
		MessageID:      p.MessageID,
		ConversationID: p.ConversationID,
		Emoji:          p.Emoji,
		UserID:         actor.UserID,
		Action:         action,
	})
}

// -----------------------------------------------------------------
// forward / seen / typing
// -----------------------------------------------------------------

func (ch *ChatHandler) handleForward(ctx context.Context, actor Actor, ev event.WsEvent) {
	var p event.ForwardMessagePayload
	if !ch.decode(actor, ev, &p) {
		return
	}

	original, err := ch.messages.GetMessage(ctx, p.MessageID)
	if err != nil {
		ch.emitError(actor, ev.Event, err)
		return
	}

	if _, err = ch.requireMember(ctx, p.ConversationID, actor.UserID); err != nil {
		ch.emitError(actor, ev.Event, err)
		return
	}

	targetID, err := primitive.ObjectIDFromHex(p.ConversationID)
	if err != nil {
		ch.emitError(actor, ev.Event, fmt.Errorf("%w: bad conversation id", repo.ErrInvalidID))
		return
	}

	originalSender := original.SenderID
	if original.IsForwarded && original.OriginalSender != "" {
		originalSender = original.OriginalSender
	}

	forwarded := &model.Message{
		ConversationID:  targetID,
		SenderID:        actor.UserID,
		Type:            original.Type,
		Content:         original.Content,
		FileURL:         original.FileURL,
		Seen:            false,
		IsForwarded:     true,
		OriginalMessage: &original.ID,
		OriginalSender:  originalSender,
		CreatedAt:       time.Now(),
	}

	if forwarded, err = ch.messages.InsertMessage(ctx, forwarded); err != nil {
		ch.emitError(actor, ev.Event, err)
		return
	}

	ch.updateLastMessage(ctx, p.ConversationID, forwarded)

	// Room members see the new message; only the forwarder gets the
	// confirmation.
	ch.delivery.EmitToRoom(p.ConversationID, event.EventNewMessage, forwarded)
	ch.delivery.EmitToConnection(actor.ConnID, event.EventForwardMessageSuccess, forwarded)
}

func (ch *ChatHandler) handleSeen(ctx context.Context, actor Actor, ev event.WsEvent) {
	var p event.SeenMessagePayload
	if !ch.decode(actor, ev, &p) {
		return
	}

	if err := ch.messages.MarkConversationSeen(ctx, p.ConversationID); err != nil {
		ch.emitError(actor, ev.Event, err)
		return
	}

	ch.delivery.EmitToRoom(p.ConversationID, event.EventSeenMessage, event.SeenBroadcastPayload{
		ConversationID: p.ConversationID,
		SeenBy:         actor.UserID,
	})
}

func (ch *ChatHandler) handleTyping(actor Actor, ev event.WsEvent, outbound string) {
	var p event.TypingPayload
	if !ch.decode(actor, ev, &p) {
		return
	}

	// Typing is fire-and-forget: no persistence, never echoed to the typist.
	ch.delivery.EmitToRoomExcept(p.ConversationID, actor.ConnID, outbound, event.TypingPayload{
		ConversationID: p.ConversationID,
		UserID:         actor.UserID,
	})
}

// -----------------------------------------------------------------
// helpers
// -----------------------------------------------------------------

// requireMember loads the conversation's member set and checks the acting
// user belongs to it.
func (ch *ChatHandler) requireMember(ctx context.Context, conversationID string, userID string) ([]string, error) {
	members, err := ch.conversations.GetConversationMembers(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !lo.Contains(members, userID) {
		return nil, fmt.Errorf("%w: user %s is not a member of conversation %s", ErrUnauthorized, userID, conversationID)
	}
	return members, nil
}

func (ch *ChatHandler) decode(actor Actor, ev event.WsEvent, out any) bool {
	if err := json.Unmarshal(ev.Payload, out); err != nil {
		ch.emitInvalidPayload(actor, ev.Event, err)
		return false
	}
	if err := ch.validate.Struct(out); err != nil {
		ch.emitInvalidPayload(actor, ev.Event, err)
		return false
	}
	return true
}

func (ch *ChatHandler) emitInvalidPayload(actor Actor, inbound string, err error) {
	ch.logger.Debug("invalid payload",
		zap.String("event", inbound),
		zap.String("user_id", actor.UserID),
		zap.Error(err),
	)
	ch.delivery.EmitToConnection(actor.ConnID, event.ErrorEventFor(inbound), model.ErrorPayload{
		Code:    CodeInvalidPayload,
		Message: err.Error(),
	})
}

func (ch *ChatHandler) emitError(actor Actor, inbound string, err error) {
	ch.logger.Debug("chat event rejected",
		zap.String("event", inbound),
		zap.String("user_id", actor.UserID),
		zap.Error(err),
	)
	ch.delivery.EmitToConnection(actor.ConnID, event.ErrorEventFor(inbound), model.ErrorPayload{
		Code:    codeFor(err),
		Message: err.Error(),
	})
}
