package hub

import "sync"

// Registry maps a user identity to the set of currently open connections for
// that user. A user with several tabs or devices has several entries in the
// same live set. The registry owns the connection for its lifetime; rooms
// hold only non-owning references.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]*Client // userID -> connID -> client
	byConn map[string]*Client            // connID -> client
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]map[string]*Client),
		byConn: make(map[string]*Client),
	}
}

// Register adds a connection to its user's live set. Idempotent. Returns
// true when this is the user's first live connection (the user came online).
func (r *Registry) Register(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.byUser[c.userID]
	if set == nil {
		set = make(map[string]*Client)
		r.byUser[c.userID] = set
	}

	first := len(set) == 0
	set[c.ID] = c
	r.byConn[c.ID] = c
	return first
}

// Deregister removes a connection if present; a no-op when the connection is
// already gone. Returns true when the user's live set became empty (the user
// went offline). The became-offline decision is taken under the same lock as
// the removal so concurrent disconnects report it exactly once.
func (r *Registry) Deregister(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.byUser[c.userID]
	if set == nil {
		return false
	}
	if _, ok := set[c.ID]; !ok {
		return false
	}

	delete(set, c.ID)
	delete(r.byConn, c.ID)

	if len(set) == 0 {
		delete(r.byUser, c.userID)
		return true
	}
	return false
}

// LiveConnections returns a snapshot of the user's open connections.
func (r *Registry) LiveConnections(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byUser[userID]
	if len(set) == 0 {
		return nil
	}

	out := make([]*Client, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

// Connection looks up a live connection by its identifier. Returns nil for a
// connection that has already closed.
func (r *Registry) Connection(connID string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byConn[connID]
}

// IsOnline is true iff the user has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// Counts returns total live connections and distinct connected users.
func (r *Registry) Counts() (connections int, users int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn), len(r.byUser)
}

// Snapshot returns every live connection. Used by the monitor endpoint.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Client, 0, len(r.byConn))
	for _, c := range r.byConn {
		out = append(out, c)
	}
	return out
}
