package event

// Chat events - client to server
const (
	EventJoinRoom            = "join_room"
	EventLeaveRoom           = "leave_room"
	EventJoinConversation    = "join_conversation"
	EventJoinAllConversation = "join_all_conversation"
	EventLeaveConversation   = "leave_conversation"
	EventSendMessage         = "send_message"
	EventSeenMessage         = "seen_message"
	EventRevokeMessage       = "revoke_message"
	EventDeleteMessage       = "delete_message"
	EventAddReaction         = "add_reaction"
	EventRemoveReaction      = "remove_reaction"
	EventForwardMessage      = "forward_message"
	EventTyping              = "typing"
	EventStopTyping          = "stop_typing"
	EventUpdateStatus        = "update_status"
)

// Chat events - server to client
const (
	EventNewMessage             = "new_message"
	EventUpdateConversationList = "update_conversation_list"
	EventMessageRevoked         = "message_revoked"
	EventMessageDeleted         = "message_deleted"
	EventMessageReaction        = "message_reaction"
	EventForwardMessageSuccess  = "forward_message_success"
	EventUserTyping             = "user_typing"
	EventUserStopTyping         = "user_stop_typing"
	EventStatusChanged          = "status_changed"
)

// Message content types
const (
	MessageTypeText  = "text"
	MessageTypeFile  = "file"
	MessageTypeImage = "image"
	MessageTypeAudio = "audio"
	MessageTypeVideo = "video"
)

// Reaction actions carried in message_reaction broadcasts
const (
	ReactionActionAdd    = "add"
	ReactionActionRemove = "remove"
)

// JoinRoomPayload joins or leaves the connection's personal room. The room
// is always keyed by the authenticated identity; a mismatched UserID is
// ignored rather than honored.
type JoinRoomPayload struct {
	UserID string `json:"userId"`
}

type JoinConversationPayload struct {
	ConversationID string `json:"conversationId" validate:"required"`
}

type JoinAllConversationPayload struct {
	ConversationIDs []string `json:"conversationIds" validate:"required,dive,required"`
}

type SendMessagePayload struct {
	ConversationID string `json:"conversationId" validate:"required"`
	Content        string `json:"content" validate:"required_if=Type text"`
	Type           string `json:"type" validate:"required,oneof=text file image audio video"`
	FileURL        string `json:"fileUrl"`
}

type SeenMessagePayload struct {
	ConversationID string `json:"conversationId" validate:"required"`
}

type RevokeMessagePayload struct {
	MessageID      string `json:"messageId" validate:"required"`
	ConversationID string `json:"conversationId" validate:"required"`
	UserID         string `json:"userId"`
}

type DeleteMessagePayload struct {
	MessageID      string `json:"messageId" validate:"required"`
	ConversationID string `json:"conversationId" validate:"required"`
	UserID         string `json:"userId"`
}

type ReactionPayload struct {
	MessageID      string `json:"messageId" validate:"required"`
	ConversationID string `json:"conversationId" validate:"required"`
	UserID         string `json:"userId"`
	Emoji          string `json:"emoji" validate:"required"`
}

type ForwardMessagePayload struct {
	MessageID      string `json:"messageId" validate:"required"`
	ConversationID string `json:"conversationId" validate:"required"`
	UserID         string `json:"userId"`
}

type TypingPayload struct {
	ConversationID string `json:"conversationId" validate:"required"`
	UserID         string `json:"userId"`
}

type UpdateStatusPayload struct {
	Status string `json:"status" validate:"required,oneof=online offline away busy"`
}

// StatusChangedPayload is broadcast to the affected user's personal room and
// the personal rooms of their friends.
type StatusChangedPayload struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

type MessageRevokedPayload struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	Type           string `json:"type"`
	HasFile        bool   `json:"hasFile"`
}

type MessageDeletedPayload struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	DeletedBy      string `json:"deletedBy"`
}

type MessageReactionPayload struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	Emoji          string `json:"emoji"`
	UserID         string `json:"userId"`
	Action         string `json:"action"`
}

type SeenBroadcastPayload struct {
	ConversationID string `json:"conversationId"`
	SeenBy         string `json:"seenBy"`
}

type ConversationListUpdatePayload struct {
	ConversationID string `json:"conversationId"`
	LastContent    string `json:"lastContent"`
	LastSenderID   string `json:"lastSenderId"`
	LastSentAt     int64  `json:"lastSentAt"`
}
