// Package lease provides short-lived exclusive locks keyed by name. A holder
// proves ownership with the token returned from Acquire.
package lease

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Locker interface {
	// Acquire returns ok=false without error when another holder owns key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

type entry struct {
	token     string
	expiresAt time.Time
}

// MemoryLocker is a process-local Locker.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		entries: map[string]entry{},
		now:     time.Now,
	}
}

func (m *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if cur, ok := m.entries[key]; ok && now.Before(cur.expiresAt) {
		return "", false, nil
	}
	token := uuid.NewString()
	m.entries[key] = entry{token: token, expiresAt: now.Add(ttl)}
	m.sweepLocked(now)
	return token, true, nil
}

func (m *MemoryLocker) Release(_ context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.entries[key]; ok && cur.token == token {
		delete(m.entries, key)
	}
	return nil
}

func (m *MemoryLocker) sweepLocked(now time.Time) {
	for key, cur := range m.entries {
		if !now.Before(cur.expiresAt) {
			delete(m.entries, key)
		}
	}
}
