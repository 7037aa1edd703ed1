package service

import (
	"sync"

	"storesync/internal/models"
)

// AuditHub fans out freshly written audit entries to live subscribers. Slow
// subscribers lose entries rather than block writers.
type AuditHub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*auditSub
	buffer int
}

type auditSub struct {
	tenantID uint64
	ch       chan models.SyncLog
}

func NewAuditHub(buffer int) *AuditHub {
	if buffer <= 0 {
		buffer = 64
	}
	return &AuditHub{subs: map[uint64]*auditSub{}, buffer: buffer}
}

// Subscribe returns entries for tenantID; zero subscribes to every tenant.
// The returned cancel func closes the channel.
func (h *AuditHub) Subscribe(tenantID uint64) (<-chan models.SyncLog, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	sub := &auditSub{tenantID: tenantID, ch: make(chan models.SyncLog, h.buffer)}
	h.subs[id] = sub

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(sub.ch)
		})
	}
}

func (h *AuditHub) Publish(entry models.SyncLog) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.tenantID != 0 && sub.tenantID != entry.TenantID {
			continue
		}
		select {
		case sub.ch <- entry:
		default:
		}
	}
}

func (h *AuditHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
