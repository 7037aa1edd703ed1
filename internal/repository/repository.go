package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"storesync/internal/models"
)

type TenantRepository interface {
	GetTenant(ctx context.Context, id uint64) (*models.Tenant, error)
	GetTenantByShopDomain(ctx context.Context, shopDomain string) (*models.Tenant, error)
	ListSyncableTenants(ctx context.Context) ([]models.Tenant, error)
}

// CatalogRepository holds the upsert primitives used by reconciliation.
// Tx variants must run inside InTx so an order and its items commit together.
type CatalogRepository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	UpsertCustomerTx(ctx context.Context, tx *gorm.DB, item *models.Customer) error
	UpsertProductTx(ctx context.Context, tx *gorm.DB, item *models.Product) error
	UpsertOrderTx(ctx context.Context, tx *gorm.DB, item *models.Order) error
	ReplaceOrderItemsTx(ctx context.Context, tx *gorm.DB, orderID uint64, items []models.OrderItem) error
	FindCustomerIDTx(ctx context.Context, tx *gorm.DB, tenantID uint64, externalID string) (*uint64, error)
	FindProductIDsTx(ctx context.Context, tx *gorm.DB, tenantID uint64, externalIDs []string) (map[string]uint64, error)
}

type SyncLogRepository interface {
	InsertSyncLog(ctx context.Context, item *models.SyncLog) error
	LatestSyncLog(ctx context.Context, tenantID uint64, syncType string, successOnly bool) (*models.SyncLog, error)
	ListSyncLogs(ctx context.Context, params ListSyncLogsParams) ([]models.SyncLog, error)
	SyncLogStats(ctx context.Context, tenantID uint64, since *time.Time) ([]SyncTypeStats, error)
	DeleteSyncLogsBefore(ctx context.Context, before time.Time) (int64, error)
}

type EventRepository interface {
	InsertCustomEvent(ctx context.Context, item *models.CustomEvent) error
	InsertCustomEventTx(ctx context.Context, tx *gorm.DB, item *models.CustomEvent) error
	HasCartEventTx(ctx context.Context, tx *gorm.DB, tenantID uint64, eventType string, cartToken string) (bool, error)
	HasCheckoutSinceTx(ctx context.Context, tx *gorm.DB, q ActivityQuery) (bool, error)
	HasOrderSinceTx(ctx context.Context, tx *gorm.DB, q ActivityQuery) (bool, error)
	DeleteCustomEventsBefore(ctx context.Context, before time.Time) (int64, error)
}

type AbandonmentRepository interface {
	UpsertAbandonmentCheck(ctx context.Context, item *models.AbandonmentCheck) error
	ListDueAbandonmentChecks(ctx context.Context, now time.Time, limit int) ([]models.AbandonmentCheck, error)
	// ClaimAbandonmentCheckTx locks a check that is still pending and due at
	// now. False means another worker settled it or a newer cart update moved
	// its fire time.
	ClaimAbandonmentCheckTx(ctx context.Context, tx *gorm.DB, id uint64, now time.Time) (bool, error)
	ResolveAbandonmentCheckTx(ctx context.Context, tx *gorm.DB, id uint64, status string) error
	RecordAbandonmentCheckFailure(ctx context.Context, id uint64, errMsg string, maxAttempts int) error
	// CancelAbandonmentChecks settles pending checks matching q whose cart was
	// last updated at or before convertedAt.
	CancelAbandonmentChecks(ctx context.Context, q ActivityQuery, convertedAt time.Time) (int64, error)
	DeleteSettledAbandonmentChecksBefore(ctx context.Context, before time.Time) (int64, error)
}

// Repository is the full persistence surface used by the engine.
type Repository interface {
	TenantRepository
	CatalogRepository
	SyncLogRepository
	EventRepository
	AbandonmentRepository
}
