package hub

import (
	"crypto/sha1"
	"encoding/binary"
	"sync"
)

const (
	shardCount = 64 // tune: 16/64/128 depending on load
)

type roomBucket struct {
	sync.RWMutex
	rooms map[string]map[string]*Client // roomKey -> connID -> client
}

// Rooms is the room-membership multimap: room key to member connections,
// plus a reverse index so a disconnecting connection can drop all of its
// memberships. Rooms exist only while non-empty. Membership is sharded by a
// hash of the room key so unrelated rooms never contend on one lock.
type Rooms struct {
	shards [shardCount]*roomBucket

	mu     sync.RWMutex
	joined map[string]map[string]struct{} // connID -> set of roomKeys
}

func NewRooms() *Rooms {
	rm := &Rooms{
		joined: make(map[string]map[string]struct{}),
	}
	for i := 0; i < shardCount; i++ {
		rm.shards[i] = &roomBucket{
			rooms: make(map[string]map[string]*Client),
		}
	}
	return rm
}

func shardFor(roomKey string) uint32 {
	if roomKey == "" {
		return 0
	}
	h := sha1.Sum([]byte(roomKey))
	return binary.BigEndian.Uint32(h[:4]) % shardCount
}

// Join adds the connection to a room, creating the room on first join.
// Idempotent: joining twice has the effect of joining once.
func (rm *Rooms) Join(c *Client, roomKey string) {
	if roomKey == "" {
		return
	}

	b := rm.shards[shardFor(roomKey)]
	b.Lock()
	room := b.rooms[roomKey]
	if room == nil {
		room = make(map[string]*Client)
		b.rooms[roomKey] = room
	}
	room[c.ID] = c
	b.Unlock()

	rm.mu.Lock()
	set := rm.joined[c.ID]
	if set == nil {
		set = make(map[string]struct{})
		rm.joined[c.ID] = set
	}
	set[roomKey] = struct{}{}
	rm.mu.Unlock()
}

// JoinAll bulk-joins a connection, used when authentication attaches the
// user's conversation list.
func (rm *Rooms) JoinAll(c *Client, roomKeys []string) {
	for _, key := range roomKeys {
		rm.Join(c, key)
	}
}

// Leave removes the connection from a room; no-op if absent. Empty rooms are
// dropped.
func (rm *Rooms) Leave(c *Client, roomKey string) {
	if roomKey == "" {
		return
	}

	b := rm.shards[shardFor(roomKey)]
	b.Lock()
	if room, ok := b.rooms[roomKey]; ok {
		delete(room, c.ID)
		if len(room) == 0 {
			delete(b.rooms, roomKey)
		}
	}
	b.Unlock()

	rm.mu.Lock()
	if set, ok := rm.joined[c.ID]; ok {
		delete(set, roomKey)
		if len(set) == 0 {
			delete(rm.joined, c.ID)
		}
	}
	rm.mu.Unlock()
}

// LeaveAll drops every membership of a connection. Used on disconnect.
func (rm *Rooms) LeaveAll(c *Client) {
	rm.mu.Lock()
	set := rm.joined[c.ID]
	delete(rm.joined, c.ID)
	rm.mu.Unlock()

	for roomKey := range set {
		b := rm.shards[shardFor(roomKey)]
		b.Lock()
		if room, ok := b.rooms[roomKey]; ok {
			delete(room, c.ID)
			if len(room) == 0 {
				delete(b.rooms, roomKey)
			}
		}
		b.Unlock()
	}
}

// MembersOf returns a snapshot of the room's member connections. The lock is
// released before the caller delivers anything.
func (rm *Rooms) MembersOf(roomKey string) []*Client {
	b := rm.shards[shardFor(roomKey)]

	b.RLock()
	room, ok := b.rooms[roomKey]
	if !ok || len(room) == 0 {
		b.RUnlock()
		return nil
	}

	members := make([]*Client, 0, len(room))
	for _, c := range room {
		members = append(members, c)
	}
	b.RUnlock()

	return members
}

// JoinedRooms returns a snapshot of the rooms a connection has joined.
func (rm *Rooms) JoinedRooms(connID string) []string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	set := rm.joined[connID]
	if len(set) == 0 {
		return nil
	}

	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	return out
}

// ForEachRoom visits every room with a snapshot of its members. Used by the
// monitor endpoint.
func (rm *Rooms) ForEachRoom(fn func(roomKey string, members []*Client)) {
	for _, b := range rm.shards {
		b.RLock()
		snapshot := make(map[string][]*Client, len(b.rooms))
		for key, room := range b.rooms {
			members := make([]*Client, 0, len(room))
			for _, c := range room {
				members = append(members, c)
			}
			snapshot[key] = members
		}
		b.RUnlock()

		for key, members := range snapshot {
			fn(key, members)
		}
	}
}
