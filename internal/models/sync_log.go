package models

import "time"

const (
	SyncTypeCustomers = "customers"
	SyncTypeOrders    = "orders"
	SyncTypeProducts  = "products"

	// WebhookSyncTypePrefix tags audit entries written by webhook deliveries.
	WebhookSyncTypePrefix = "webhook:"
)

// SyncTypes lists the pullable entity types in the order a tenant sync runs them.
var SyncTypes = []string{SyncTypeCustomers, SyncTypeOrders, SyncTypeProducts}

// SyncLog is one append-only audit entry. The newest successful entry per
// (tenant, sync type) is the incremental cursor for the next pull.
type SyncLog struct {
	ID               uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID         uint64    `gorm:"not null;index:idx_sync_logs_tenant_type_created,priority:1" json:"tenant_id"`
	SyncType         string    `gorm:"type:text;not null;index:idx_sync_logs_tenant_type_created,priority:2" json:"sync_type"`
	Success          bool      `gorm:"not null" json:"success"`
	RecordsProcessed int       `gorm:"not null;default:0" json:"records_processed"`
	DurationMs       int64     `gorm:"column:duration;not null;default:0;comment:milliseconds" json:"duration"`
	Error            *string   `gorm:"type:text" json:"error,omitempty"`
	CreatedAt        time.Time `gorm:"not null;index:idx_sync_logs_tenant_type_created,priority:3" json:"created_at"`
}

func (SyncLog) TableName() string {
	return "sync_logs"
}
