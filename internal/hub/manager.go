package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"chatteta/internal/auth"
	"chatteta/internal/event"
	"chatteta/internal/model"
	"chatteta/internal/repo"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	handlerTimeout = 15 * time.Second // bound on a single event handler's persistence work
)

type inboundMessage struct {
	event  event.WsEvent
	client *Client
}

// registration carries a freshly authenticated connection together with the
// conversation rooms it must join.
type registration struct {
	client          *Client
	conversationIDs []string
}

// Deps are the collaborators the hub needs. The persistence and auth ports
// are injected; the hub itself is the delivery port.
type Deps struct {
	Verifier       *auth.Verifier
	Messages       repo.MessageRepository
	Conversations  repo.ConversationRepository
	Friends        repo.FriendRepository
	Users          repo.UserRepository
	AllowedOrigins []string
	Logger         *zap.Logger
}

// Hub owns all live connections, their room memberships and presence state,
// and routes every inbound event to its handler.
type Hub struct {
	registry *Registry
	rooms    *Rooms
	presence *PresenceTracker
	chat     *ChatHandler
	friends  *FriendHandler

	verifier      *auth.Verifier
	conversations repo.ConversationRepository
	logger        *zap.Logger

	register   chan registration
	unregister chan *Client
	lanes      []chan inboundMessage
	upgrader   websocket.Upgrader

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(deps Deps) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		verifier:      deps.Verifier,
		conversations: deps.Conversations,
		logger:        deps.Logger,
		registry:      NewRegistry(),
		rooms:         NewRooms(),
		register:      make(chan registration, 1024),
		unregister:    make(chan *Client, 1024),
		lanes:         make([]chan inboundMessage, laneCount),
		ctx:           ctx,
		cancel:        cancel,
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(deps.AllowedOrigins),
	}

	h.presence = NewPresenceTracker(h, deps.Friends, deps.Users, deps.Logger)
	h.chat = NewChatHandler(h, deps.Messages, deps.Conversations, deps.Logger)
	h.friends = NewFriendHandler(h, deps.Friends, deps.Conversations, deps.Messages, deps.Logger)

	// run manager loop
	go h.run()

	// One worker per lane. A connection always hashes to the same lane, so
	// its events are processed in arrival order while different connections
	// proceed concurrently.
	for i := 0; i < laneCount; i++ {
		h.lanes[i] = make(chan inboundMessage, 256)
		h.wg.Add(1)
		go h.worker(h.lanes[i])
	}

	return h
}

// Chat exposes the conversation router for non-socket callers (the HTTP
// upload handler pushes messages through it).
func (h *Hub) Chat() *ChatHandler {
	return h.chat
}

// Presence exposes connection-derived presence for the monitor endpoint.
func (h *Hub) Presence() *PresenceTracker {
	return h.presence
}

func (h *Hub) laneFor(connID string) chan inboundMessage {
	return h.lanes[int(shardFor(connID))%laneCount]
}

func (h *Hub) worker(lane chan inboundMessage) {
	defer h.wg.Done()
	for {
		select {
		case <-h.ctx.Done():
			return
		case in := <-lane:
			h.handleEvent(in.event, in.client)
		}
	}
}

// handleEvent routes one inbound event. A panicking handler must never take
// the worker down with it: other connections share the lane.
func (h *Hub) handleEvent(ev event.WsEvent, c *Client) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("event handler panic",
				zap.String("event", ev.Event),
				zap.String("client_id", c.ID),
				zap.Any("panic", r),
			)
		}
	}()

	if c.State() != StateActive {
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, handlerTimeout)
	defer cancel()

	actor := Actor{ConnID: c.ID, UserID: c.userID}

	switch ev.Event {
	case event.EventJoinRoom:
		// Personal rooms are keyed by the authenticated identity; the
		// payload's identity is ignored so nobody can join another
		// user's room.
		h.rooms.Join(c, c.userID)
	case event.EventLeaveRoom:
		h.rooms.Leave(c, c.userID)

	case event.EventJoinConversation:
		var p event.JoinConversationPayload
		if err := decodePayload(ev, &p); err == nil {
			h.rooms.Join(c, p.ConversationID)
		}
	case event.EventLeaveConversation:
		var p event.JoinConversationPayload
		if err := decodePayload(ev, &p); err == nil {
			h.rooms.Leave(c, p.ConversationID)
		}
	case event.EventJoinAllConversation:
		var p event.JoinAllConversationPayload
		if err := decodePayload(ev, &p); err == nil {
			h.rooms.JoinAll(c, p.ConversationIDs)
		}

	case event.EventUpdateStatus:
		var p event.UpdateStatusPayload
		if err := decodePayload(ev, &p); err != nil {
			h.EmitToConnection(c.ID, event.ErrorEventFor(ev.Event), errPayload(CodeInvalidPayload, err))
			return
		}
		if err := h.presence.SetExplicitStatus(ctx, c.userID, p.Status); err != nil {
			h.EmitToConnection(c.ID, event.ErrorEventFor(ev.Event), errPayload(codeFor(err), err))
		}

	case event.EventSendMessage, event.EventSeenMessage, event.EventRevokeMessage,
		event.EventDeleteMessage, event.EventAddReaction, event.EventRemoveReaction,
		event.EventForwardMessage, event.EventTyping, event.EventStopTyping:
		h.chat.Handle(ctx, actor, ev)

	case event.EventAddFriend, event.EventDeleteRequestFriend, event.EventAcceptRequestFriend,
		event.EventDontAcceptFriend, event.EventUnFriend:
		h.friends.Handle(ctx, actor, ev)

	default:
		h.logger.Warn("unknown event type", zap.String("event", ev.Event))
	}
}

// -----------------------------------------------------------------
// register / deregister
// -----------------------------------------------------------------

func (h *Hub) run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case reg := <-h.register:
			h.addClient(reg)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

func (h *Hub) addClient(reg registration) {
	c := reg.client

	first := h.registry.Register(c)

	// Every authenticated connection sits in its personal room plus all of
	// its conversation rooms.
	h.rooms.Join(c, c.userID)
	h.rooms.JoinAll(c, reg.conversationIDs)

	c.setState(StateActive)

	h.logger.Info("client registered",
		zap.String("client_id", c.ID),
		zap.String("user_id", c.userID),
		zap.Int("conversations", len(reg.conversationIDs)),
	)

	if first {
		// Presence fan-out touches the friend store; keep it off the
		// registration loop.
		go func() {
			ctx, cancel := context.WithTimeout(h.ctx, handlerTimeout)
			defer cancel()
			h.presence.MarkOnline(ctx, c.userID)
		}()
	}
}

func (h *Hub) removeClient(c *Client) {
	h.rooms.LeaveAll(c)
	last := h.registry.Deregister(c)
	c.Close()

	h.logger.Info("client removed",
		zap.String("client_id", c.ID),
		zap.String("user_id", c.userID),
	)

	if last {
		go func() {
			ctx, cancel := context.WithTimeout(h.ctx, handlerTimeout)
			defer cancel()
			h.presence.MarkOffline(ctx, c.userID)
		}()
	}
}

// Stop shuts the hub down: no new events are processed and every live
// connection is closed.
func (h *Hub) Stop() {
	h.cancel()

	for _, c := range h.registry.Snapshot() {
		c.Close()
	}

	h.wg.Wait()
}

// -----------------------------------------------------------------
// handshake
// -----------------------------------------------------------------

// ServeWS runs the connection handshake: extract the bearer credential,
// verify it, upgrade the transport and register the connection. A missing or
// bad credential rejects the connection before any registry mutation.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, err := h.verifier.Verify(bearerCredential(r))
	if err != nil {
		status, code := authFailure(err)
		h.logger.Warn("websocket auth rejected", zap.String("code", code), zap.Error(err))
		writeJSONError(w, status, code)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	conversationIDs, err := h.conversations.GetUserConversationIDs(ctx, userID)
	if err != nil {
		// The connection is still useful with just the personal room; the
		// client can join conversation rooms lazily.
		h.logger.Warn("failed to load conversations at handshake",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		conversationIDs = nil
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(userID, conn, h)

	select {
	case h.register <- registration{client: c, conversationIDs: conversationIDs}:
		// An event read before the run loop activates the client is dropped
		// by the state check in handleEvent; delivery is at-most-once, so
		// the narrow window is tolerated rather than synchronized away.
		go c.ReadMessages()
		go c.WriteMessages()
	case <-time.After(registerTimeout):
		h.logger.Error("failed to register client: timeout", zap.String("client_id", c.ID))
		c.cancel()
		conn.Close()
	}
}

func bearerCredential(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func authFailure(err error) (status int, code string) {
	switch {
	case errors.Is(err, auth.ErrMissingCredential):
		return http.StatusUnauthorized, "missing_credential"
	case errors.Is(err, auth.ErrExpiredCredential):
		return http.StatusUnauthorized, "expired_credential"
	default:
		return http.StatusUnauthorized, "invalid_credential"
	}
}

func writeJSONError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + code + `"}`))
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}

func decodePayload(ev event.WsEvent, out any) error {
	return json.Unmarshal(ev.Payload, out)
}

func errPayload(code string, err error) model.ErrorPayload {
	return model.ErrorPayload{Code: code, Message: err.Error()}
}
