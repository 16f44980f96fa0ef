// Package ratelimit provides the outbound call gate applied to every
// upstream CRM request.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Default gate settings, matching the upstream API's published fair-use rate.
const (
	DefaultInterval    = 250 * time.Millisecond
	DefaultConcurrency = 2
)

// Config holds the call gate parameters.
type Config struct {
	// Interval is the minimum time between two dispatched calls.
	Interval time.Duration

	// Concurrency is the maximum number of calls in flight at once.
	Concurrency int
}

// Gate admits outbound calls subject to a minimum inter-call interval and a
// concurrency ceiling. Calls queue in arrival order; the gate defers when a
// call starts but never alters its result.
type Gate struct {
	interval time.Duration
	slots    chan struct{}

	mu   sync.Mutex
	next time.Time // earliest time the next call may dispatch
}

// NewGate creates a call gate. Zero config fields fall back to the defaults.
func NewGate(cfg Config) *Gate {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Gate{
		interval: interval,
		slots:    make(chan struct{}, concurrency),
	}
}

// Do runs fn once both constraints are satisfied: a free concurrency slot and
// the minimum interval elapsed since the previously dispatched call. Errors
// from fn pass through unchanged. A cancelled context aborts the wait and
// returns ctx.Err() without running fn.
func (g *Gate) Do(ctx context.Context, fn func() error) error {
	select {
	case g.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-g.slots }()

	// Reserve a dispatch time under the lock so concurrent callers get
	// strictly spaced, arrival-ordered slots.
	g.mu.Lock()
	now := time.Now()
	at := g.next
	if at.Before(now) {
		at = now
	}
	g.next = at.Add(g.interval)
	g.mu.Unlock()

	if wait := time.Until(at); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fn()
}

// InFlight returns the number of calls currently holding a slot.
// Useful for tests and the health endpoint.
func (g *Gate) InFlight() int {
	return len(g.slots)
}
