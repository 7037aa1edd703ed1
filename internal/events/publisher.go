// Package events publishes engine notifications to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"time"
)

const TypeCartAbandoned = "cart.abandoned"

type Event struct {
	Type       string    `json:"type"`
	TenantID   uint64    `json:"tenant_id"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
