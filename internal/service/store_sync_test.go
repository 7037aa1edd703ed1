package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storesync/internal/client/shopify"
	"storesync/internal/models"
	"storesync/internal/testutil"
)

func syncLogs(t *testing.T, env *testEnv, tenantID uint64) []models.SyncLog {
	t.Helper()
	var logs []models.SyncLog
	require.NoError(t, env.db.Where("tenant_id = ?", tenantID).Order("id asc").Find(&logs).Error)
	return logs
}

func TestSyncPaginatesUntilShortPage(t *testing.T) {
	env := newTestEnv(t)
	tenant := testutil.SeedTenant(t, env.db, "a.myshopify.com")
	env.upstream.customers = customers(12)

	res, err := env.sync.SyncTenant(context.Background(), tenant, models.SyncTypeCustomers, SyncOptions{Limit: 5})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 12, res.RecordsProcessed)
	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, 3, env.upstream.callCount())
	assert.Equal(t, "10", env.upstream.lastCall().SinceID)

	var count int64
	require.NoError(t, env.db.Model(&models.Customer{}).Where("tenant_id = ?", tenant.ID).Count(&count).Error)
	assert.Equal(t, int64(12), count)

	logs := syncLogs(t, env, tenant.ID)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Success)
	assert.Equal(t, 12, logs[0].RecordsProcessed)
}

func TestSyncStopsAtRecordCap(t *testing.T) {
	env := newTestEnv(t)
	env.sync.Settings.MaxRecords = 10
	tenant := testutil.SeedTenant(t, env.db, "a.myshopify.com")
	env.upstream.customers = customers(30)

	res, err := env.sync.SyncTenant(context.Background(), tenant, models.SyncTypeCustomers, SyncOptions{Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 10, res.RecordsProcessed)
	assert.Equal(t, 2, env.upstream.callCount())
}

func TestSyncUsesLastSuccessAsCursor(t *testing.T) {
	env := newTestEnv(t)
	tenant := testutil.SeedTenant(t, env.db, "a.myshopify.com")
	env.upstream.customers = customers(2)
	t1 := env.now

	first, err := env.sync.SyncTenant(context.Background(), tenant, models.SyncTypeCustomers, SyncOptions{})
	require.NoError(t, err)
	assert.Nil(t, first.WindowStart)
	assert.Nil(t, env.upstream.lastCall().UpdatedAtMin)

	env.now = t1.Add(11 * time.Minute)
	second, err := env.sync.SyncTenant(context.Background(), tenant, models.SyncTypeCustomers, SyncOptions{})
	require.NoError(t, err)
	require.NotNil(t, second.WindowStart)
	assert.True(t, second.WindowStart.Equal(t1))
	require.NotNil(t, env.upstream.lastCall().UpdatedAtMin)
	assert.True(t, env.upstream.lastCall().UpdatedAtMin.Equal(t1))
}

func TestSyncMinimumIntervalGuard(t *testing.T) {
	env := newTestEnv(t)
	tenant := testutil.SeedTenant(t, env.db, "a.myshopify.com")
	env.upstream.customers = customers(1)
	ctx := context.Background()

	_, err := env.sync.SyncTenant(ctx, tenant, models.SyncTypeCustomers, SyncOptions{})
	require.NoError(t, err)

	env.now = env.now.Add(5 * time.Minute)
	res, err := env.sync.SyncTenant(ctx, tenant, models.SyncTypeCustomers, SyncOptions{})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, skipRecent, res.SkipReason)
	assert.Len(t, syncLogs(t, env, tenant.ID), 1)

	forced, err := env.sync.SyncTenant(ctx, tenant, models.SyncTypeCustomers, SyncOptions{Force: true})
	require.NoError(t, err)
	assert.False(t, forced.Skipped)
	assert.Nil(t, forced.WindowStart)
	assert.Nil(t, env.upstream.lastCall().UpdatedAtMin)
	assert.Len(t, syncLogs(t, env, tenant.ID), 2)
}

func TestSyncRetriesTransientFailures(t *testing.T) {
	env := newTestEnv(t)
	tenant := testutil.SeedTenant(t, env.db, "a.myshopify.com")
	env.upstream.customers = customers(3)
	env.upstream.failures = 2
	env.upstream.failErr = &shopify.APIError{Status: http.StatusServiceUnavailable}

	res, err := env.sync.SyncTenant(context.Background(), tenant, models.SyncTypeCustomers, SyncOptions{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 3, res.RecordsProcessed)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, env.retries.delays)
}

func TestSyncWritesFailedLogAfterRetries(t *testing.T) {
	env := newTestEnv(t)
	tenant := testutil.SeedTenant(t, env.db, "a.myshopify.com")
	env.upstream.failures = -1
	env.upstream.failErr = errors.New("connection refused")

	res, err := env.sync.SyncTenant(context.Background(), tenant, models.SyncTypeOrders, SyncOptions{})
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 3, env.upstream.callCount())

	logs := syncLogs(t, env, tenant.ID)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Success)
	require.NotNil(t, logs[0].Error)
	assert.Contains(t, *logs[0].Error, "connection refused")
}

func TestSyncSkipsWhileLeaseHeld(t *testing.T) {
	env := newTestEnv(t)
	tenant := testutil.SeedTenant(t, env.db, "a.myshopify.com")
	_, ok, err := env.sync.Locker.Acquire(context.Background(), "sync:1:orders", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	res, err := env.sync.SyncTenant(context.Background(), tenant, models.SyncTypeOrders, SyncOptions{})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, ErrSyncInProgress.Error(), res.SkipReason)
	assert.Zero(t, env.upstream.callCount())
}

func TestSyncRejectsUnconfiguredTenant(t *testing.T) {
	env := newTestEnv(t)
	tenant := testutil.SeedTenant(t, env.db, "a.myshopify.com")
	tenant.AccessToken = ""

	_, err := env.sync.SyncTenant(context.Background(), tenant, models.SyncTypeOrders, SyncOptions{})
	assert.ErrorIs(t, err, ErrTenantNotConfigured)
	assert.Zero(t, env.upstream.callCount())
	assert.Empty(t, syncLogs(t, env, tenant.ID))

	tenant.AccessToken = "tok"
	tenant.IsActive = false
	_, err = env.sync.SyncTenant(context.Background(), tenant, models.SyncTypeOrders, SyncOptions{})
	assert.ErrorIs(t, err, ErrTenantInactive)
	assert.ErrorIs(t, err, ErrTenantNotConfigured)

	_, err = env.sync.Sync(context.Background(), 999, models.SyncTypeOrders, SyncOptions{})
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestSyncCountsRecordFailuresWithoutFailingRun(t *testing.T) {
	env := newTestEnv(t)
	tenant := testutil.SeedTenant(t, env.db, "a.myshopify.com")
	env.upstream.customers = []shopify.Customer{{ID: "1"}, {ID: ""}, {ID: "3"}}

	res, err := env.sync.SyncTenant(context.Background(), tenant, models.SyncTypeCustomers, SyncOptions{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.RecordsProcessed)
	assert.Equal(t, 1, res.RecordsFailed)
}

func TestSyncFetchesTrailingEmptyPageOnExactMultiple(t *testing.T) {
	env := newTestEnv(t)
	tenant := testutil.SeedTenant(t, env.db, "a.myshopify.com")
	env.upstream.customers = customers(10)

	res, err := env.sync.SyncTenant(context.Background(), tenant, models.SyncTypeCustomers, SyncOptions{Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 10, res.RecordsProcessed)
	// a full page cannot tell the end apart from more data
	assert.Equal(t, 3, env.upstream.callCount())
	assert.Equal(t, "10", env.upstream.lastCall().SinceID)
}

// malformedUpstream reports one customer per page as undecodable, the way the
// client does for an entry that does not match the resource shape.
type malformedUpstream struct {
	*fakeUpstream
	bad shopify.ID
}

func (m *malformedUpstream) ListCustomers(ctx context.Context, creds shopify.Credentials, params shopify.ListParams) ([]shopify.Customer, error) {
	list, err := m.fakeUpstream.ListCustomers(ctx, creds, params)
	if err != nil {
		return nil, err
	}
	for i, c := range list {
		if c.ID == m.bad {
			rest := append(append([]shopify.Customer{}, list[:i]...), list[i+1:]...)
			return rest, &shopify.PartialError{Resource: "customers", Items: []shopify.ItemError{
				{Index: i, ID: c.ID, Err: errors.New("cannot unmarshal string into orders_count")},
			}}
		}
	}
	return list, nil
}

func TestSyncSkipsUndecodableRecords(t *testing.T) {
	env := newTestEnv(t)
	tenant := testutil.SeedTenant(t, env.db, "a.myshopify.com")
	env.upstream.customers = customers(6)
	env.sync.Upstream = &malformedUpstream{fakeUpstream: env.upstream, bad: "3"}

	res, err := env.sync.SyncTenant(context.Background(), tenant, models.SyncTypeCustomers, SyncOptions{Limit: 3})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 5, res.RecordsProcessed)
	assert.Equal(t, 1, res.RecordsFailed)
	assert.Empty(t, env.retries.delays)

	// the undecodable entry closed the first page and still moves the cursor
	require.Equal(t, 3, env.upstream.callCount())
	assert.Equal(t, "3", env.upstream.calls[1].SinceID)

	var count int64
	require.NoError(t, env.db.Model(&models.Customer{}).Where("tenant_id = ?", tenant.ID).Count(&count).Error)
	assert.Equal(t, int64(5), count)
}

type panickingUpstream struct {
	*fakeUpstream
}

func (panickingUpstream) ListOrders(context.Context, shopify.Credentials, shopify.ListParams) ([]shopify.Order, error) {
	panic("nil map in decoder")
}

func TestSyncRecordsPanicInFetchPath(t *testing.T) {
	env := newTestEnv(t)
	tenant := testutil.SeedTenant(t, env.db, "a.myshopify.com")
	env.sync.Upstream = panickingUpstream{fakeUpstream: env.upstream}

	res, err := env.sync.SyncTenant(context.Background(), tenant, models.SyncTypeOrders, SyncOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil map in decoder")
	assert.False(t, res.Success)

	logs := syncLogs(t, env, tenant.ID)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Success)
	require.NotNil(t, logs[0].Error)
	assert.Contains(t, *logs[0].Error, "panic")
}
