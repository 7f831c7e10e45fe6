package hub

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryFirstAndLastTransitions(t *testing.T) {
	r := NewRegistry()

	c1 := &Client{ID: "conn-1", userID: "alice"}
	c2 := &Client{ID: "conn-2", userID: "alice"}

	require.True(t, r.Register(c1), "first connection must report came-online")
	require.False(t, r.Register(c2), "second connection must not")
	require.True(t, r.IsOnline("alice"))

	require.False(t, r.Deregister(c1), "user still has a live connection")
	require.True(t, r.IsOnline("alice"))

	require.True(t, r.Deregister(c2), "last connection must report went-offline")
	require.False(t, r.IsOnline("alice"))
}

func TestRegistryDeregisterIdempotent(t *testing.T) {
	r := NewRegistry()
	c := &Client{ID: "conn-1", userID: "alice"}

	r.Register(c)
	require.True(t, r.Deregister(c))
	require.False(t, r.Deregister(c), "second deregister must be a no-op")
	require.False(t, r.IsOnline("alice"))
}

func TestRegistryRegisterIdempotent(t *testing.T) {
	r := NewRegistry()
	c := &Client{ID: "conn-1", userID: "alice"}

	require.True(t, r.Register(c))
	require.False(t, r.Register(c))

	conns, users := r.Counts()
	require.Equal(t, 1, conns)
	require.Equal(t, 1, users)
}

func TestRegistryConnectionLookup(t *testing.T) {
	r := NewRegistry()
	c := &Client{ID: "conn-1", userID: "alice"}

	require.Nil(t, r.Connection("conn-1"))
	r.Register(c)
	require.Same(t, c, r.Connection("conn-1"))
	r.Deregister(c)
	require.Nil(t, r.Connection("conn-1"))
}

// Concurrent connects and disconnects for one user must report came-online
// and went-offline exactly once each per full cycle.
func TestRegistryConcurrentTransitionsExactlyOnce(t *testing.T) {
	r := NewRegistry()

	const n = 64
	clients := make([]*Client, n)
	for i := range clients {
		clients[i] = &Client{ID: fmt.Sprintf("conn-%d", i), userID: "alice"}
	}

	var wg sync.WaitGroup
	firsts := make(chan bool, n)
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			firsts <- r.Register(c)
		}(c)
	}
	wg.Wait()
	close(firsts)

	onlineCount := 0
	for first := range firsts {
		if first {
			onlineCount++
		}
	}
	require.Equal(t, 1, onlineCount, "came-online must fire exactly once")

	lasts := make(chan bool, n)
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			lasts <- r.Deregister(c)
		}(c)
	}
	wg.Wait()
	close(lasts)

	offlineCount := 0
	for last := range lasts {
		if last {
			offlineCount++
		}
	}
	require.Equal(t, 1, offlineCount, "went-offline must fire exactly once")
	require.False(t, r.IsOnline("alice"))
}

func TestRegistryLiveConnectionsSnapshot(t *testing.T) {
	r := NewRegistry()
	c1 := &Client{ID: "conn-1", userID: "alice"}
	c2 := &Client{ID: "conn-2", userID: "alice"}
	c3 := &Client{ID: "conn-3", userID: "bob"}

	r.Register(c1)
	r.Register(c2)
	r.Register(c3)

	require.Len(t, r.LiveConnections("alice"), 2)
	require.Len(t, r.LiveConnections("bob"), 1)
	require.Empty(t, r.LiveConnections("carol"))
}
