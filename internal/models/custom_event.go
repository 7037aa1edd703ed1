package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	EventCartCreated     = "cart_created"
	EventCartUpdated     = "cart_updated"
	EventCartAbandoned   = "cart_abandoned"
	EventCheckoutStarted = "checkout_started"
	EventCheckoutUpdated = "checkout_updated"
)

// CustomEvent is an immutable cart or checkout lifecycle record.
type CustomEvent struct {
	ID                 uint64  `gorm:"primaryKey;autoIncrement"`
	TenantID           uint64  `gorm:"not null;index:idx_custom_events_tenant_type_ts,priority:1"`
	EventType          string  `gorm:"type:text;not null;index:idx_custom_events_tenant_type_ts,priority:2"`
	CustomerExternalID *string `gorm:"type:text;index"`
	CartToken          *string `gorm:"type:text;index"`
	CheckoutToken      *string `gorm:"type:text"`
	Payload            datatypes.JSON
	OccurredAt         time.Time `gorm:"not null;index:idx_custom_events_tenant_type_ts,priority:3"`
	CreatedAt          time.Time `gorm:"autoCreateTime"`
}

func (CustomEvent) TableName() string {
	return "custom_events"
}
