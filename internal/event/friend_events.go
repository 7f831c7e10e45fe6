package event

// Friend events - client to server
const (
	EventAddFriend           = "add_friend"
	EventDeleteRequestFriend = "delete_request_friend"
	EventAcceptRequestFriend = "accept_request_friend"
	EventDontAcceptFriend    = "dont_accept_request_friend"
	EventUnFriend            = "un_friend"
)

// Friend events - server to client. Accept/reject/cancel/unfriend reuse the
// inbound name when relayed to the counterpart's personal room.
const (
	EventNewRequestFriend = "new_request_friend"
	EventAddFriendSuccess = "add_friend_success"
)

type FriendRequestPayload struct {
	UserFrom string `json:"userFrom" validate:"required"`
	UserTo   string `json:"userTo" validate:"required"`
}

type UnFriendPayload struct {
	UserFrom       string `json:"userFrom" validate:"required"`
	UserTo         string `json:"userTo" validate:"required"`
	IDConversation string `json:"idConversation" validate:"required"`
}
