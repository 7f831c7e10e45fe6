package hub

import (
	"context"
	"testing"

	"chatteta/internal/event"
	"chatteta/internal/model"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newTestFriends(t *testing.T) (*FriendHandler, *recordingDelivery, *fakeFriendRepo, *fakeConversationRepo, *fakeMessageRepo) {
	t.Helper()
	delivery := &recordingDelivery{}
	friends := newFakeFriendRepo()
	conversations := newFakeConversationRepo()
	messages := newFakeMessageRepo()
	return NewFriendHandler(delivery, friends, conversations, messages, zap.NewNop()), delivery, friends, conversations, messages
}

func TestAddFriendNotifiesBothSides(t *testing.T) {
	fh, delivery, friends, _, _ := newTestFriends(t)
	actor := Actor{ConnID: "conn-1", UserID: "alice"}

	fh.Handle(context.Background(), actor, wsEvent(t, event.EventAddFriend, event.FriendRequestPayload{
		UserFrom: "alice",
		UserTo:   "bob",
	}))

	require.Equal(t, model.FriendStatusPending, friends.requests[edgeKey("alice", "bob")])

	// receiver's personal room hears about the request
	incoming := delivery.named(event.EventNewRequestFriend)
	require.Len(t, incoming, 1)
	require.Equal(t, "room", incoming[0].kind)
	require.Equal(t, "bob", incoming[0].target)

	// sender's connection gets the ack
	acks := delivery.named(event.EventAddFriendSuccess)
	require.Len(t, acks, 1)
	require.Equal(t, "conn", acks[0].kind)
	require.Equal(t, "conn-1", acks[0].target)
}

func TestAddFriendAsSomeoneElseRejected(t *testing.T) {
	fh, delivery, friends, _, _ := newTestFriends(t)
	actor := Actor{ConnID: "conn-1", UserID: "mallory"}

	fh.Handle(context.Background(), actor, wsEvent(t, event.EventAddFriend, event.FriendRequestPayload{
		UserFrom: "alice",
		UserTo:   "bob",
	}))

	require.Empty(t, friends.requests)
	require.Empty(t, delivery.named(event.EventNewRequestFriend))

	errs := delivery.named(event.ErrorEventFor(event.EventAddFriend))
	require.Len(t, errs, 1)
	require.Equal(t, CodeUnauthorized, errs[0].payload.(model.ErrorPayload).Code)
}

func TestAddFriendDuplicateRejected(t *testing.T) {
	fh, delivery, _, _, _ := newTestFriends(t)
	actor := Actor{ConnID: "conn-1", UserID: "alice"}
	payload := event.FriendRequestPayload{UserFrom: "alice", UserTo: "bob"}

	fh.Handle(context.Background(), actor, wsEvent(t, event.EventAddFriend, payload))
	fh.Handle(context.Background(), actor, wsEvent(t, event.EventAddFriend, payload))

	errs := delivery.named(event.ErrorEventFor(event.EventAddFriend))
	require.Len(t, errs, 1)
	require.Equal(t, CodeDuplicateAction, errs[0].payload.(model.ErrorPayload).Code)
	require.Len(t, delivery.named(event.EventNewRequestFriend), 1, "second attempt must not renotify")
}

func TestAcceptFriendOnlyByReceiver(t *testing.T) {
	fh, delivery, friends, _, _ := newTestFriends(t)
	friends.requests[edgeKey("alice", "bob")] = model.FriendStatusPending

	// the sender cannot accept their own request
	fh.Handle(context.Background(), Actor{ConnID: "conn-1", UserID: "alice"},
		wsEvent(t, event.EventAcceptRequestFriend, event.FriendRequestPayload{UserFrom: "alice", UserTo: "bob"}))

	require.Equal(t, model.FriendStatusPending, friends.requests[edgeKey("alice", "bob")])
	errs := delivery.named(event.ErrorEventFor(event.EventAcceptRequestFriend))
	require.Len(t, errs, 1)
	require.Equal(t, CodeUnauthorized, errs[0].payload.(model.ErrorPayload).Code)

	// the receiver can
	fh.Handle(context.Background(), Actor{ConnID: "conn-2", UserID: "bob"},
		wsEvent(t, event.EventAcceptRequestFriend, event.FriendRequestPayload{UserFrom: "alice", UserTo: "bob"}))

	require.Equal(t, model.FriendStatusAccepted, friends.requests[edgeKey("alice", "bob")])
	accepted := delivery.named(event.EventAcceptRequestFriend)
	require.Len(t, accepted, 1)
	require.Equal(t, "alice", accepted[0].target, "requester's personal room hears the acceptance")
}

func TestRejectFriendNotifiesRequester(t *testing.T) {
	fh, delivery, friends, _, _ := newTestFriends(t)
	friends.requests[edgeKey("alice", "bob")] = model.FriendStatusPending

	fh.Handle(context.Background(), Actor{ConnID: "conn-2", UserID: "bob"},
		wsEvent(t, event.EventDontAcceptFriend, event.FriendRequestPayload{UserFrom: "alice", UserTo: "bob"}))

	require.Equal(t, model.FriendStatusRejected, friends.requests[edgeKey("alice", "bob")])
	rejected := delivery.named(event.EventDontAcceptFriend)
	require.Len(t, rejected, 1)
	require.Equal(t, "alice", rejected[0].target)
}

func TestCancelRequestNotifiesReceiver(t *testing.T) {
	fh, delivery, friends, _, _ := newTestFriends(t)
	friends.requests[edgeKey("alice", "bob")] = model.FriendStatusPending

	fh.Handle(context.Background(), Actor{ConnID: "conn-1", UserID: "alice"},
		wsEvent(t, event.EventDeleteRequestFriend, event.FriendRequestPayload{UserFrom: "alice", UserTo: "bob"}))

	require.Empty(t, friends.requests)
	cancelled := delivery.named(event.EventDeleteRequestFriend)
	require.Len(t, cancelled, 1)
	require.Equal(t, "bob", cancelled[0].target)
}

func TestCancelUnknownRequestRejected(t *testing.T) {
	fh, delivery, _, _, _ := newTestFriends(t)

	fh.Handle(context.Background(), Actor{ConnID: "conn-1", UserID: "alice"},
		wsEvent(t, event.EventDeleteRequestFriend, event.FriendRequestPayload{UserFrom: "alice", UserTo: "bob"}))

	errs := delivery.named(event.ErrorEventFor(event.EventDeleteRequestFriend))
	require.Len(t, errs, 1)
	require.Equal(t, CodeNotFound, errs[0].payload.(model.ErrorPayload).Code)
}

func TestUnfriendTearsDownConversation(t *testing.T) {
	fh, delivery, friends, conversations, messages := newTestFriends(t)
	friends.requests[edgeKey("alice", "bob")] = model.FriendStatusAccepted
	friends.friends["alice"] = []string{"bob"}
	friends.friends["bob"] = []string{"alice"}

	convID := newConversation(conversations, "alice", "bob")
	oid, _ := primitive.ObjectIDFromHex(convID)
	messages.put(&model.Message{ConversationID: oid, SenderID: "alice", Type: event.MessageTypeText, Content: "hi"})
	messages.put(&model.Message{ConversationID: oid, SenderID: "bob", Type: event.MessageTypeText, Content: "yo"})

	// the receiving side of the original request may also unfriend
	fh.Handle(context.Background(), Actor{ConnID: "conn-2", UserID: "bob"},
		wsEvent(t, event.EventUnFriend, event.UnFriendPayload{
			UserFrom:       "alice",
			UserTo:         "bob",
			IDConversation: convID,
		}))

	require.Empty(t, friends.requests, "friendship edge removed")
	require.Empty(t, messages.messages, "history deleted with the friendship")
	require.Equal(t, []string{convID}, conversations.deleted)

	// the counterpart, not the actor, is notified
	notices := delivery.named(event.EventUnFriend)
	require.Len(t, notices, 1)
	require.Equal(t, "alice", notices[0].target)
}

func TestUnfriendForeignConversationRejected(t *testing.T) {
	fh, delivery, friends, conversations, messages := newTestFriends(t)
	friends.requests[edgeKey("alice", "bob")] = model.FriendStatusAccepted
	friends.friends["alice"] = []string{"bob"}
	friends.friends["bob"] = []string{"alice"}

	// a conversation alice and bob have nothing to do with
	foreignID := newConversation(conversations, "carol", "dave", "erin")
	oid, _ := primitive.ObjectIDFromHex(foreignID)
	messages.put(&model.Message{ConversationID: oid, SenderID: "carol", Type: event.MessageTypeText, Content: "hello"})

	fh.Handle(context.Background(), Actor{ConnID: "conn-1", UserID: "alice"},
		wsEvent(t, event.EventUnFriend, event.UnFriendPayload{
			UserFrom:       "alice",
			UserTo:         "bob",
			IDConversation: foreignID,
		}))

	require.Empty(t, conversations.deleted, "foreign conversation must survive an unrelated unfriend")
	require.Len(t, messages.messages, 1, "foreign history must survive")
	require.Equal(t, model.FriendStatusAccepted, friends.requests[edgeKey("alice", "bob")],
		"friendship untouched when the conversation check fails")
	require.Empty(t, delivery.named(event.EventUnFriend))

	errs := delivery.named(event.ErrorEventFor(event.EventUnFriend))
	require.Len(t, errs, 1)
	require.Equal(t, CodeUnauthorized, errs[0].payload.(model.ErrorPayload).Code)
}

func TestUnfriendConversationOfOnePartyRejected(t *testing.T) {
	fh, delivery, friends, conversations, _ := newTestFriends(t)
	friends.requests[edgeKey("alice", "bob")] = model.FriendStatusAccepted

	// alice is a member, bob is not: still not the pair's conversation
	convID := newConversation(conversations, "alice", "carol")

	fh.Handle(context.Background(), Actor{ConnID: "conn-1", UserID: "alice"},
		wsEvent(t, event.EventUnFriend, event.UnFriendPayload{
			UserFrom:       "alice",
			UserTo:         "bob",
			IDConversation: convID,
		}))

	require.Empty(t, conversations.deleted)
	errs := delivery.named(event.ErrorEventFor(event.EventUnFriend))
	require.Len(t, errs, 1)
	require.Equal(t, CodeUnauthorized, errs[0].payload.(model.ErrorPayload).Code)
}

func TestUnfriendByOutsiderRejected(t *testing.T) {
	fh, delivery, friends, conversations, _ := newTestFriends(t)
	friends.requests[edgeKey("alice", "bob")] = model.FriendStatusAccepted
	convID := newConversation(conversations, "alice", "bob")

	fh.Handle(context.Background(), Actor{ConnID: "conn-9", UserID: "mallory"},
		wsEvent(t, event.EventUnFriend, event.UnFriendPayload{
			UserFrom:       "alice",
			UserTo:         "bob",
			IDConversation: convID,
		}))

	require.Equal(t, model.FriendStatusAccepted, friends.requests[edgeKey("alice", "bob")])
	require.Empty(t, conversations.deleted)
	errs := delivery.named(event.ErrorEventFor(event.EventUnFriend))
	require.Len(t, errs, 1)
	require.Equal(t, CodeUnauthorized, errs[0].payload.(model.ErrorPayload).Code)
}
