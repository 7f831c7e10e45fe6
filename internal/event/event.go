package event

import "encoding/json"

// WsEvent is the wire envelope for every inbound and outbound event.
// Payload is decoded lazily into the typed struct matching Event.
type WsEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// NewOutbound wraps a typed payload into an envelope. Our payload structs are
// plain data (no channels, no funcs), so the marshal error is ignored.
func NewOutbound(name string, payload any) WsEvent {
	raw, _ := json.Marshal(payload)
	return WsEvent{Event: name, Payload: raw}
}

// ErrorEventFor derives the per-operation error event name sent back to the
// acting connection only, e.g. "send_message" -> "send_message_error".
func ErrorEventFor(inbound string) string {
	return inbound + "_error"
}
