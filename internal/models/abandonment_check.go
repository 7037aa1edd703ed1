package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	CheckPending    = "pending"
	CheckAbandoned  = "abandoned"
	CheckConverted  = "converted"
	CheckProgressed = "progressed"
	CheckDuplicate  = "duplicate"
	CheckCancelled  = "cancelled"
	CheckFailed     = "failed"
)

// AbandonmentCheck is a durable delayed job evaluated once FireAt has passed.
type AbandonmentCheck struct {
	ID                 uint64     `gorm:"primaryKey;autoIncrement"`
	TenantID           uint64     `gorm:"not null;uniqueIndex:ux_abandonment_checks_tenant_cart,priority:1"`
	CartToken          string     `gorm:"type:text;not null;uniqueIndex:ux_abandonment_checks_tenant_cart,priority:2"`
	CustomerExternalID *string    `gorm:"type:text;index"`
	CustomerEmail      *string    `gorm:"type:text"`
	CartUpdatedAt      time.Time  `gorm:"not null"`
	FireAt             time.Time  `gorm:"not null;index:idx_abandonment_checks_status_fire,priority:2"`
	Status             string     `gorm:"type:text;not null;default:'pending';index:idx_abandonment_checks_status_fire,priority:1"`
	Attempts           int        `gorm:"not null;default:0"`
	LastError          *string    `gorm:"type:text"`
	ResolvedAt         *time.Time
	Snapshot           datatypes.JSON
	CreatedAt          time.Time `gorm:"autoCreateTime"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime"`
}

func (AbandonmentCheck) TableName() string {
	return "abandonment_checks"
}
