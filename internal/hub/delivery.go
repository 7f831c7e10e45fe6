package hub

import (
	"log"

	"chatteta/internal/event"
)

// Delivery pushes events to recipients. The hub implements it over the room
// and registry state; handlers and the HTTP layer receive it as an injected
// dependency rather than reaching for process-wide state.
type Delivery interface {
	EmitToRoom(roomKey string, eventName string, payload any)
	EmitToConnection(connID string, eventName string, payload any)
	EmitToRoomExcept(roomKey string, excludedConnID string, eventName string, payload any)
}

func (h *Hub) EmitToRoom(roomKey string, eventName string, payload any) {
	ev := event.NewOutbound(eventName, payload)
	for _, c := range h.rooms.MembersOf(roomKey) {
		h.push(c, ev)
	}
}

func (h *Hub) EmitToRoomExcept(roomKey string, excludedConnID string, eventName string, payload any) {
	ev := event.NewOutbound(eventName, payload)
	for _, c := range h.rooms.MembersOf(roomKey) {
		if c.ID == excludedConnID {
			continue
		}
		h.push(c, ev)
	}
}

// EmitToConnection delivers to a single connection. Delivery to a connection
// that is no longer registered is a silent no-op: an in-flight handler may
// legitimately finish after its client disconnected.
func (h *Hub) EmitToConnection(connID string, eventName string, payload any) {
	c := h.registry.Connection(connID)
	if c == nil {
		return
	}
	h.push(c, event.NewOutbound(eventName, payload))
}

func (h *Hub) push(c *Client, ev event.WsEvent) {
	if c.SafeSend(ev, sendTimeout) {
		return
	}
	if c.IsClosed() {
		return
	}

	// egress full -> apply policy
	log.Printf("egress full for client %s", c.ID)
	if kickOnFull {
		select {
		case h.unregister <- c:
		default:
			// unregister queue saturated; the read pump will clean up
		}
	}
}
