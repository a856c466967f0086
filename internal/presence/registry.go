package presence

import "sync"

// Conn is the transport handle the registry hands out: a unicast push
// of a named event to one connection. Push reports an error when the
// connection is already gone so callers can fall back to queueing.
type Conn interface {
	Push(event string, payload any) error
}

// Registry is the single arbiter of "online" inside one process. It is
// process-local by design; it is rebuilt from scratch after a restart
// and nothing may depend on it surviving one.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

// Register upserts the connection for userID. A registration from a new
// connection silently supersedes any prior one for the same identity.
func (r *Registry) Register(userID string, c Conn) {
	r.mu.Lock()
	r.conns[userID] = c
	r.mu.Unlock()
}

// Lookup returns the active connection handle, if any.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	c, ok := r.conns[userID]
	r.mu.RUnlock()
	return c, ok
}

// Unregister removes userID's entry only if it still points at c, so a
// stale disconnect cannot evict a registration that superseded it.
// A no-op when the identity has no current registration.
func (r *Registry) Unregister(userID string, c Conn) {
	r.mu.Lock()
	if cur, ok := r.conns[userID]; ok && cur == c {
		delete(r.conns, userID)
	}
	r.mu.Unlock()
}

// Online reports the number of registered identities.
func (r *Registry) Online() int {
	r.mu.RLock()
	n := len(r.conns)
	r.mu.RUnlock()
	return n
}
