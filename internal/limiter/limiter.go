// Package limiter implements per-key sliding window rate limits.
package limiter

import (
	"context"
	"sync"
	"time"
)

type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// MemoryLimiter keeps request timestamps per key in process memory. Keys
// idle for a full window are evicted.
type MemoryLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	max       int
	entries   map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	if max <= 0 {
		max = 100
	}
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryLimiter{
		window:  window,
		max:     max,
		entries: map[string][]time.Time{},
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	hits := prune(l.entries[key], cutoff)

	if len(hits) >= l.max {
		l.entries[key] = hits
		return Decision{
			Allowed:    false,
			RetryAfter: hits[0].Add(l.window).Sub(now),
		}, nil
	}

	hits = append(hits, now)
	l.entries[key] = hits
	if now.Sub(l.lastSweep) >= l.window {
		l.sweepLocked(cutoff)
		l.lastSweep = now
	}
	return Decision{Allowed: true, Remaining: l.max - len(hits)}, nil
}

// Len reports how many keys are tracked.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *MemoryLimiter) sweepLocked(cutoff time.Time) {
	for key, hits := range l.entries {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(l.entries, key)
		}
	}
}

func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return hits
	}
	out := make([]time.Time, len(hits)-i)
	copy(out, hits[i:])
	return out
}
