// Package ratelimit implements a fixed-window request counter keyed by
// client identifier.
//
// The window is fixed, not sliding: a burst straddling a window boundary
// can admit up to twice the configured budget. That is an accepted
// approximation in exchange for O(1) memory and O(1) check cost per
// client. Counters are ephemeral and do not survive process restarts.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Result is the outcome of a single admission check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

// Limiter holds one fixed window per client key. Construct with New and
// inject wherever admission decisions are made; do not create ad-hoc
// instances per request or the shared counting is lost.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time // override in tests
}

// New creates an empty Limiter.
func New() *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Check records a request from clientID against a budget of max requests
// per windowDur and reports whether it is admitted.
//
// The check-then-increment runs under the limiter lock so concurrent
// bursts from one client cannot undercount. Once a client has exhausted
// its budget the counter stops incrementing, so a flooding client cannot
// grow the counter without bound.
func (l *Limiter) Check(clientID string, max int, windowDur time.Duration) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[clientID]
	if !ok || !now.Before(w.resetAt) {
		// First request, or the stored window has elapsed: start fresh.
		w = &window{count: 1, resetAt: now.Add(windowDur)}
		l.windows[clientID] = w
		return Result{Allowed: true, Remaining: max - 1, ResetAt: w.resetAt}
	}

	if w.count >= max {
		return Result{Allowed: false, Remaining: 0, ResetAt: w.resetAt}
	}

	w.count++
	return Result{Allowed: true, Remaining: max - w.count, ResetAt: w.resetAt}
}

// Len reports the number of tracked client windows.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// sweep removes windows whose reset time has passed, bounding memory to
// the set of clients seen within one window plus the sweep interval.
func (l *Limiter) sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for id, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, id)
			removed++
		}
	}
	return removed
}

// Run sweeps expired windows every interval until ctx is canceled. The
// critical section is a single map pass; concurrent Check calls block
// only for its duration.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := l.sweep(); removed > 0 {
				slog.Debug("rate limit sweep", "removed", removed, "tracked", l.Len())
			}
		}
	}
}
