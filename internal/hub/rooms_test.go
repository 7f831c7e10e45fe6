package hub

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoomsJoinCreatesRoom(t *testing.T) {
	rm := NewRooms()
	c := &Client{ID: "conn-1", userID: "alice"}

	require.Empty(t, rm.MembersOf("room-a"))
	rm.Join(c, "room-a")
	require.Len(t, rm.MembersOf("room-a"), 1)
}

func TestRoomsJoinIdempotent(t *testing.T) {
	rm := NewRooms()
	c := &Client{ID: "conn-1", userID: "alice"}

	rm.Join(c, "room-a")
	rm.Join(c, "room-a")

	require.Len(t, rm.MembersOf("room-a"), 1)
	require.Len(t, rm.JoinedRooms(c.ID), 1)
}

func TestRoomsLastLeaveDropsRoom(t *testing.T) {
	rm := NewRooms()
	c1 := &Client{ID: "conn-1", userID: "alice"}
	c2 := &Client{ID: "conn-2", userID: "bob"}

	rm.Join(c1, "room-a")
	rm.Join(c2, "room-a")

	rm.Leave(c1, "room-a")
	require.Len(t, rm.MembersOf("room-a"), 1)

	rm.Leave(c2, "room-a")
	require.Empty(t, rm.MembersOf("room-a"))

	// room is recreated on a later join
	rm.Join(c1, "room-a")
	require.Len(t, rm.MembersOf("room-a"), 1)
}

func TestRoomsLeaveUnknownIsNoop(t *testing.T) {
	rm := NewRooms()
	c := &Client{ID: "conn-1", userID: "alice"}

	rm.Leave(c, "room-a")
	require.Empty(t, rm.MembersOf("room-a"))
}

func TestRoomsLeaveAll(t *testing.T) {
	rm := NewRooms()
	c1 := &Client{ID: "conn-1", userID: "alice"}
	c2 := &Client{ID: "conn-2", userID: "bob"}

	rm.JoinAll(c1, []string{"room-a", "room-b", "room-c"})
	rm.Join(c2, "room-b")

	rm.LeaveAll(c1)

	require.Empty(t, rm.JoinedRooms(c1.ID))
	require.Empty(t, rm.MembersOf("room-a"))
	require.Empty(t, rm.MembersOf("room-c"))
	require.Len(t, rm.MembersOf("room-b"), 1, "other members must survive a LeaveAll")
}

func TestRoomsSameUserTwoConnections(t *testing.T) {
	rm := NewRooms()
	c1 := &Client{ID: "conn-1", userID: "alice"}
	c2 := &Client{ID: "conn-2", userID: "alice"}

	rm.Join(c1, "alice")
	rm.Join(c2, "alice")

	require.Len(t, rm.MembersOf("alice"), 2, "each device joins the personal room separately")

	rm.Leave(c1, "alice")
	require.Len(t, rm.MembersOf("alice"), 1)
}

func TestRoomsForEachRoomVisitsAll(t *testing.T) {
	rm := NewRooms()
	c := &Client{ID: "conn-1", userID: "alice"}

	rm.JoinAll(c, []string{"room-a", "room-b"})

	seen := make(map[string]int)
	rm.ForEachRoom(func(roomKey string, members []*Client) {
		seen[roomKey] = len(members)
	})

	require.Equal(t, map[string]int{"room-a": 1, "room-b": 1}, seen)
}
