// Package ratelimit caps how often one client may attempt a signup.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Default policy: five attempts per client per fifteen minutes.
const (
	DefaultLimit  = 5
	DefaultWindow = 15 * time.Minute
)

// Policy is a fixed-window limit.
type Policy struct {
	Limit  int
	Window time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Window <= 0 {
		p.Window = DefaultWindow
	}
	return p
}

// Limiter decides whether the caller identified by key may proceed. When
// it may not, retryAfter says how long until the window resets.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

type window struct {
	start time.Time
	count int
}

// Local is an in-process fixed-window limiter. Counts are not shared
// between replicas.
type Local struct {
	policy Policy
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
	sweptAt time.Time
}

// NewLocal creates an in-memory limiter. A nil clock uses time.Now.
func NewLocal(p Policy, now func() time.Time) *Local {
	if now == nil {
		now = time.Now
	}
	return &Local{
		policy:  p.withDefaults(),
		now:     now,
		windows: make(map[string]*window),
	}
}

func (l *Local) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.policy.Window {
		l.windows[key] = &window{start: now, count: 1}
		return true, 0, nil
	}
	if w.count >= l.policy.Limit {
		return false, w.start.Add(l.policy.Window).Sub(now), nil
	}
	w.count++
	return true, 0, nil
}

// sweep drops lapsed windows at most once per window length.
func (l *Local) sweep(now time.Time) {
	if now.Sub(l.sweptAt) < l.policy.Window {
		return
	}
	for k, w := range l.windows {
		if now.Sub(w.start) >= l.policy.Window {
			delete(l.windows, k)
		}
	}
	l.sweptAt = now
}
