package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storesync/internal/models"
	"storesync/internal/testutil"
)

func recordLog(t *testing.T, env *testEnv, tenantID uint64, syncType string, success bool, records int, at time.Time) {
	t.Helper()
	entry := &models.SyncLog{
		TenantID:         tenantID,
		SyncType:         syncType,
		Success:          success,
		RecordsProcessed: records,
		DurationMs:       100,
		CreatedAt:        at,
	}
	if !success {
		entry.Error = strPtr("upstream unavailable")
	}
	require.NoError(t, env.audit.Record(context.Background(), entry))
}

func TestAuditStatus(t *testing.T) {
	env := newTestEnv(t)
	tenant := testutil.SeedTenant(t, env.db, "a.myshopify.com")
	base := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)

	recordLog(t, env, tenant.ID, models.SyncTypeOrders, true, 10, base)
	recordLog(t, env, tenant.ID, models.SyncTypeOrders, false, 0, base.Add(time.Minute))
	recordLog(t, env, tenant.ID, "webhook:orders/create", true, 1, base.Add(2*time.Minute))

	status, err := env.audit.Status(context.Background(), tenant.ID, 10)
	require.NoError(t, err)

	orders := status.PerType[models.SyncTypeOrders]
	require.NotNil(t, orders.LastSync)
	assert.False(t, orders.Success)
	require.NotNil(t, orders.Error)
	assert.Equal(t, int64(2), orders.TotalSyncs)
	assert.InDelta(t, 0.5, orders.SuccessRate, 1e-9)

	customers := status.PerType[models.SyncTypeCustomers]
	assert.Nil(t, customers.LastSync)
	assert.Zero(t, customers.TotalSyncs)

	hook, ok := status.PerType["webhook:orders/create"]
	require.True(t, ok)
	assert.True(t, hook.Success)

	require.Len(t, status.RecentLogs, 3)
	assert.Equal(t, "webhook:orders/create", status.RecentLogs[0].SyncType)
}

func TestAuditHealth(t *testing.T) {
	env := newTestEnv(t)
	tenant := testutil.SeedTenant(t, env.db, "a.myshopify.com")
	now := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 4; i++ {
		recordLog(t, env, tenant.ID, models.SyncTypeOrders, true, 5, now.Add(-time.Duration(i+1)*time.Minute))
	}
	recordLog(t, env, tenant.ID, models.SyncTypeOrders, false, 0, now.Add(-30*time.Minute))
	recordLog(t, env, tenant.ID, models.SyncTypeOrders, false, 0, now.Add(-48*time.Hour))

	health, err := env.audit.Health(context.Background(), tenant.ID, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(5), health.TotalSyncs)
	assert.Equal(t, int64(1), health.Failures)
	assert.Equal(t, int64(20), health.Records)
	assert.InDelta(t, 0.8, health.SuccessRate, 1e-9)
	assert.True(t, health.Healthy)

	recordLog(t, env, tenant.ID, models.SyncTypeProducts, false, 0, now.Add(-2*time.Minute))
	health, err = env.audit.Health(context.Background(), tenant.ID, 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, health.Healthy)
	assert.Len(t, health.PerType, 2)
}

func TestAuditHealthWithoutRuns(t *testing.T) {
	env := newTestEnv(t)
	health, err := env.audit.Health(context.Background(), 7, 0)
	require.NoError(t, err)
	assert.True(t, health.Healthy)
	assert.Equal(t, "24h0m0s", health.Window)
}

func TestAuditCleanup(t *testing.T) {
	env := newTestEnv(t)
	env.audit.Retention = RetentionSettings{SyncLogDays: 30, CustomEventDays: 90, CheckDays: 7}
	tenant := testutil.SeedTenant(t, env.db, "a.myshopify.com")
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	recordLog(t, env, tenant.ID, models.SyncTypeOrders, true, 1, now.AddDate(0, 0, -31))
	recordLog(t, env, tenant.ID, models.SyncTypeOrders, true, 1, now.AddDate(0, 0, -1))
	require.NoError(t, env.store.InsertCustomEvent(context.Background(), &models.CustomEvent{
		TenantID: tenant.ID, EventType: models.EventCartCreated, OccurredAt: now.AddDate(0, 0, -91),
	}))
	require.NoError(t, env.store.InsertCustomEvent(context.Background(), &models.CustomEvent{
		TenantID: tenant.ID, EventType: models.EventCartCreated, OccurredAt: now.AddDate(0, 0, -10),
	}))

	res, err := env.audit.Cleanup(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.SyncLogs)
	assert.Equal(t, int64(1), res.CustomEvents)

	var remaining int64
	require.NoError(t, env.db.Model(&models.SyncLog{}).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining)
}

func TestAuditHubFiltersByTenant(t *testing.T) {
	hub := NewAuditHub(2)
	all, cancelAll := hub.Subscribe(0)
	one, cancelOne := hub.Subscribe(1)
	assert.Equal(t, 2, hub.Subscribers())

	hub.Publish(models.SyncLog{TenantID: 1, SyncType: "orders"})
	hub.Publish(models.SyncLog{TenantID: 2, SyncType: "orders"})

	assert.Equal(t, uint64(1), (<-one).TenantID)
	assert.Len(t, one, 0)
	assert.Equal(t, uint64(1), (<-all).TenantID)
	assert.Equal(t, uint64(2), (<-all).TenantID)

	// Overflow is dropped rather than blocking the writer.
	for i := 0; i < 5; i++ {
		hub.Publish(models.SyncLog{TenantID: 1})
	}
	assert.Len(t, one, 2)

	cancelOne()
	cancelOne()
	cancelAll()
	assert.Zero(t, hub.Subscribers())
	var nilHub *AuditHub
	nilHub.Publish(models.SyncLog{})
}

func TestAuditRecordPublishes(t *testing.T) {
	env := newTestEnv(t)
	tenant := testutil.SeedTenant(t, env.db, "a.myshopify.com")
	ch, cancel := env.audit.Hub.Subscribe(tenant.ID)
	defer cancel()

	recordLog(t, env, tenant.ID, models.SyncTypeProducts, true, 3, time.Now().UTC())
	select {
	case entry := <-ch:
		assert.Equal(t, models.SyncTypeProducts, entry.SyncType)
		assert.NotZero(t, entry.ID)
	case <-time.After(time.Second):
		t.Fatal("audit entry was not published")
	}
}
