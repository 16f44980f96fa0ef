package session

import (
	"sync"
	"time"
)

// outBufferSize is the per-session buffer for outbound messages. A slow
// client gets this much slack before writes to it are dropped.
const outBufferSize = 100

// Registry is the in-memory mapping from session ID to live session.
// It is the single owner and sole mutator of the mapping; all methods are
// safe for concurrent use. There is one Registry per server process and
// nothing is persisted.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Register creates a new session with a fresh identifier and an outbound
// channel, and adds it to the registry. Identifiers are never reused within
// a process lifetime; the vanishingly unlikely collision is retried.
func (r *Registry) Register() (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		id, err := GenerateID()
		if err != nil {
			return nil, err
		}
		if _, taken := r.sessions[id]; taken {
			continue
		}
		sess := &Session{
			ID:        id,
			Out:       make(chan []byte, outBufferSize),
			CreatedAt: time.Now().UTC(),
		}
		r.sessions[id] = sess
		return sess, nil
	}
}

// Lookup returns the session for id. A miss is a defined outcome, not an
// error; callers translate it into a client-visible "session not found".
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// Remove deregisters the session and closes its outbound channel. Safe to
// call for an unknown id. Closing goes through Session.Close, so a send
// that already looked the session up cannot race onto a closed channel.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)
	sess.Close()
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll deregisters every session, closing each outbound channel.
// Used during server shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, sess := range r.sessions {
		delete(r.sessions, id)
		sess.Close()
	}
}
