// Package ratelimit bounds how often an unauthenticated operation may be
// invoked per caller identity, using a fixed-window counter.
//
// The window semantics are deliberate: a stale window resets to count 1 and
// admits the request; a full window rejects without incrementing. A fixed
// window admits up to 2x the limit across a window boundary; that burst is an
// accepted property of the strategy, not something the stores try to smooth.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one check-and-increment pass.
type Decision struct {
	Allowed    bool
	Count      int
	Remaining  int
	RetryAfter time.Duration
}

// WindowStore owns the {key, count, window_start} record for each caller.
// Hit must apply the full fixed-window state machine for one key, as close
// to atomically as the backing store allows.
type WindowStore interface {
	Hit(ctx context.Context, key string, now time.Time, window time.Duration, max int) (Decision, error)
}

// Limiter applies one rule (window duration + max attempts) over a store.
type Limiter struct {
	store  WindowStore
	window time.Duration
	max    int
	now    func() time.Time
}

func NewLimiter(store WindowStore, window time.Duration, max int) *Limiter {
	return &Limiter{store: store, window: window, max: max, now: time.Now}
}

// SetNow overrides the clock, for tests.
func (l *Limiter) SetNow(now func() time.Time) {
	l.now = now
}

func (l *Limiter) Window() time.Duration { return l.window }
func (l *Limiter) Max() int              { return l.max }

// Check runs the fixed-window state machine for key.
func (l *Limiter) Check(ctx context.Context, key string) (Decision, error) {
	return l.store.Hit(ctx, key, l.now(), l.window, l.max)
}

// decide converts a stored window observation into a Decision. mutated
// reports whether this call created, reset, or incremented the window.
func decide(count int, start, now time.Time, window time.Duration, max int, mutated bool) Decision {
	d := Decision{Allowed: mutated, Count: count}
	d.Remaining = max - count
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		d.RetryAfter = start.Add(window).Sub(now)
		if d.RetryAfter < 0 {
			d.RetryAfter = 0
		}
	}
	return d
}
