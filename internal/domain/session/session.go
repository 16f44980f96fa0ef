// Package session manages live SSE client sessions.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Session is one connected SSE client. The outbound channel carries encoded
// protocol messages to the client's event stream; it is closed exactly once
// when the session is removed from the registry. All sends go through Send,
// which serializes against Close so a post racing a disconnect drops the
// message instead of hitting a closed channel.
type Session struct {
	// ID is a cryptographically random identifier, 32 bytes hex-encoded.
	ID string

	// Out delivers encoded messages to the client's event stream.
	Out chan []byte

	// CreatedAt is when the session was registered (UTC, diagnostics only).
	CreatedAt time.Time

	mu     sync.Mutex
	closed bool
}

// Send queues msg for the event stream without blocking. Returns false and
// drops the message when the session is already closed or its buffer is
// full (a client that is not draining events).
func (s *Session) Send(msg []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.Out <- msg:
		return true
	default:
		return false
	}
}

// Close closes the outbound channel. Idempotent; the stream goroutine
// observes the close as the end of its receive loop.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.Out)
}

// GenerateID creates a cryptographically random session identifier.
// Returns 64 hex characters (32 bytes).
func GenerateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}
