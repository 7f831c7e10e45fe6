package hub

import (
	"context"
	"sync"
	"time"

	"chatteta/internal/db"
	"chatteta/internal/model"
	"chatteta/internal/repo"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// recordingDelivery captures emitted events instead of pushing them to live
// connections.
type emitted struct {
	kind     string // "room", "conn", "room_except"
	target   string
	excluded string
	name     string
	payload  any
}

type recordingDelivery struct {
	mu     sync.Mutex
	events []emitted
}

func (d *recordingDelivery) EmitToRoom(roomKey string, eventName string, payload any) {
	d.record(emitted{kind: "room", target: roomKey, name: eventName, payload: payload})
}

func (d *recordingDelivery) EmitToConnection(connID string, eventName string, payload any) {
	d.record(emitted{kind: "conn", target: connID, name: eventName, payload: payload})
}

func (d *recordingDelivery) EmitToRoomExcept(roomKey string, excludedConnID string, eventName string, payload any) {
	d.record(emitted{kind: "room_except", target: roomKey, excluded: excludedConnID, name: eventName, payload: payload})
}

func (d *recordingDelivery) record(e emitted) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
}

func (d *recordingDelivery) named(eventName string) []emitted {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []emitted
	for _, e := range d.events {
		if e.name == eventName {
			out = append(out, e)
		}
	}
	return out
}

func (d *recordingDelivery) all() []emitted {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]emitted(nil), d.events...)
}

// fakeMessageRepo keeps messages in a map keyed by hex id.
type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[string]*model.Message

	insertErr error
	getErr    error
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[string]*model.Message)}
}

func (f *fakeMessageRepo) put(msg *model.Message) *model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	f.messages[msg.ID.Hex()] = msg
	return msg
}

func (f *fakeMessageRepo) InsertMessage(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	return f.put(msg), nil
}

func (f *fakeMessageRepo) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return nil, repo.ErrMessageNotFound
	}
	copied := *msg
	return &copied, nil
}

func (f *fakeMessageRepo) RevokeMessage(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return repo.ErrMessageNotFound
	}
	msg.IsRevoked = true
	return nil
}

func (f *fakeMessageRepo) MarkDeletedFor(ctx context.Context, id string, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return repo.ErrMessageNotFound
	}
	for _, u := range msg.DeletedBy {
		if u == userID {
			return repo.ErrAlreadyDeleted
		}
	}
	msg.DeletedBy = append(msg.DeletedBy, userID)
	return nil
}

func (f *fakeMessageRepo) AddReaction(ctx context.Context, id string, emoji string, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return repo.ErrMessageNotFound
	}
	if msg.Reactions == nil {
		msg.Reactions = make(map[string][]string)
	}
	for _, u := range msg.Reactions[emoji] {
		if u == userID {
			return nil // set semantics: duplicate add is a no-op
		}
	}
	msg.Reactions[emoji] = append(msg.Reactions[emoji], userID)
	return nil
}

func (f *fakeMessageRepo) RemoveReaction(ctx context.Context, id string, emoji string, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return repo.ErrMessageNotFound
	}
	users := msg.Reactions[emoji]
	for i, u := range users {
		if u == userID {
			msg.Reactions[emoji] = append(users[:i], users[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeMessageRepo) MarkConversationSeen(ctx context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, msg := range f.messages {
		if msg.ConversationID.Hex() == conversationID {
			msg.Seen = true
		}
	}
	return nil
}

func (f *fakeMessageRepo) DeleteByConversation(ctx context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, msg := range f.messages {
		if msg.ConversationID.Hex() == conversationID {
			delete(f.messages, id)
		}
	}
	return nil
}

func (f *fakeMessageRepo) FilterMessages(ctx context.Context, conversationID string, page int64) (*db.PaginatedResult[model.Message], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []model.Message
	for _, msg := range f.messages {
		if msg.ConversationID.Hex() == conversationID {
			items = append(items, *msg)
		}
	}
	return &db.PaginatedResult[model.Message]{
		Data:       items,
		Total:      int64(len(items)),
		Page:       page,
		TotalPages: 1,
	}, nil
}

// fakeConversationRepo holds a static member map.
type fakeConversationRepo struct {
	mu      sync.Mutex
	members map[string][]string // conversationID -> memberIDs
	deleted []string

	lastUpdates   map[string]*model.LastMessage
	lastUpdateErr error
	membersErr    error
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		members:     make(map[string][]string),
		lastUpdates: make(map[string]*model.LastMessage),
	}
}

func (f *fakeConversationRepo) GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	members, ok := f.members[conversationID]
	if !ok {
		return nil, repo.ErrConversationNotFound
	}
	return &model.Conversation{MemberIDs: members}, nil
}

func (f *fakeConversationRepo) GetConversationMembers(ctx context.Context, conversationID string) ([]string, error) {
	if f.membersErr != nil {
		return nil, f.membersErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	members, ok := f.members[conversationID]
	if !ok {
		return nil, repo.ErrConversationNotFound
	}
	return members, nil
}

func (f *fakeConversationRepo) GetUserConversationIDs(ctx context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for id, members := range f.members {
		for _, m := range members {
			if m == userID {
				out = append(out, id)
			}
		}
	}
	return out, nil
}

func (f *fakeConversationRepo) GetUserConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	return nil, nil
}

func (f *fakeConversationRepo) UpdateLastMessage(ctx context.Context, conversationID string, last *model.LastMessage) error {
	if f.lastUpdateErr != nil {
		return f.lastUpdateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUpdates[conversationID] = last
	return nil
}

func (f *fakeConversationRepo) DeleteConversation(ctx context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members, conversationID)
	f.deleted = append(f.deleted, conversationID)
	return nil
}

// fakeFriendRepo tracks requests and accepted edges in memory.
type fakeFriendRepo struct {
	mu       sync.Mutex
	requests map[string]string // userFrom|userTo -> status
	friends  map[string][]string

	createErr  error
	friendsErr error
}

func newFakeFriendRepo() *fakeFriendRepo {
	return &fakeFriendRepo{
		requests: make(map[string]string),
		friends:  make(map[string][]string),
	}
}

func edgeKey(a, b string) string { return a + "|" + b }

func (f *fakeFriendRepo) CreateRequest(ctx context.Context, userFrom, userTo string) (*model.FriendRequest, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.requests[edgeKey(userFrom, userTo)]; ok {
		return nil, repo.ErrDuplicateRequest
	}
	if _, ok := f.requests[edgeKey(userTo, userFrom)]; ok {
		return nil, repo.ErrDuplicateRequest
	}
	f.requests[edgeKey(userFrom, userTo)] = model.FriendStatusPending
	return &model.FriendRequest{UserFrom: userFrom, UserTo: userTo, Status: model.FriendStatusPending}, nil
}

func (f *fakeFriendRepo) DeleteRequest(ctx context.Context, userFrom, userTo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := edgeKey(userFrom, userTo)
	if f.requests[key] != model.FriendStatusPending {
		return repo.ErrRequestNotFound
	}
	delete(f.requests, key)
	return nil
}

func (f *fakeFriendRepo) AcceptRequest(ctx context.Context, userFrom, userTo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := edgeKey(userFrom, userTo)
	if f.requests[key] != model.FriendStatusPending {
		return repo.ErrRequestNotFound
	}
	f.requests[key] = model.FriendStatusAccepted
	f.friends[userFrom] = append(f.friends[userFrom], userTo)
	f.friends[userTo] = append(f.friends[userTo], userFrom)
	return nil
}

func (f *fakeFriendRepo) RejectRequest(ctx context.Context, userFrom, userTo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := edgeKey(userFrom, userTo)
	if f.requests[key] != model.FriendStatusPending {
		return repo.ErrRequestNotFound
	}
	f.requests[key] = model.FriendStatusRejected
	return nil
}

func (f *fakeFriendRepo) Unfriend(ctx context.Context, userA, userB string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range []string{edgeKey(userA, userB), edgeKey(userB, userA)} {
		if f.requests[key] == model.FriendStatusAccepted {
			delete(f.requests, key)
			f.friends[userA] = removeString(f.friends[userA], userB)
			f.friends[userB] = removeString(f.friends[userB], userA)
			return nil
		}
	}
	return repo.ErrRequestNotFound
}

func (f *fakeFriendRepo) GetFriendIDs(ctx context.Context, userID string) ([]string, error) {
	if f.friendsErr != nil {
		return nil, f.friendsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.friends[userID]...), nil
}

func removeString(in []string, s string) []string {
	out := in[:0]
	for _, v := range in {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

// fakeUserRepo records status writes.
type fakeUserRepo struct {
	mu       sync.Mutex
	statuses map[string]string

	updateErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{statuses: make(map[string]string)}
}

func (f *fakeUserRepo) GetUser(ctx context.Context, userID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.statuses[userID]
	if !ok {
		return nil, repo.ErrUserNotFound
	}
	return &model.User{UserID: userID, Status: status}, nil
}

func (f *fakeUserRepo) UpdateStatus(ctx context.Context, userID string, status string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[userID] = status
	return nil
}
