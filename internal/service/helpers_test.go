package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"storesync/internal/client/shopify"
	"storesync/internal/lease"
	gormrepository "storesync/internal/repository/gorm"
	"storesync/internal/testutil"
)

// fakeUpstream serves in-memory records with since_id pagination.
type fakeUpstream struct {
	mu        sync.Mutex
	customers []shopify.Customer
	orders    []shopify.Order
	products  []shopify.Product

	failures  int   // remaining calls that fail with failErr
	failErr   error
	failShops map[string]error
	calls     []shopify.ListParams
}

func (f *fakeUpstream) before(creds shopify.Credentials, params shopify.ListParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, params)
	if err, ok := f.failShops[creds.ShopDomain]; ok {
		return err
	}
	if f.failures != 0 {
		if f.failures > 0 {
			f.failures--
		}
		return f.failErr
	}
	return nil
}

func (f *fakeUpstream) lastCall() shopify.ListParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func (f *fakeUpstream) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func page[T any](items []T, id func(T) shopify.ID, params shopify.ListParams) []T {
	since := int64(-1)
	if params.SinceID != "" {
		since = shopify.ID(params.SinceID).Int64()
	}
	sorted := append([]T{}, items...)
	sort.Slice(sorted, func(i, j int) bool { return id(sorted[i]).Int64() < id(sorted[j]).Int64() })
	out := make([]T, 0, params.Limit)
	for _, item := range sorted {
		if id(item).Int64() <= since {
			continue
		}
		out = append(out, item)
		if len(out) == params.Limit {
			break
		}
	}
	return out
}

func (f *fakeUpstream) ListCustomers(_ context.Context, creds shopify.Credentials, params shopify.ListParams) ([]shopify.Customer, error) {
	if err := f.before(creds, params); err != nil {
		return nil, err
	}
	return page(f.customers, func(c shopify.Customer) shopify.ID { return c.ID }, params), nil
}

func (f *fakeUpstream) ListOrders(_ context.Context, creds shopify.Credentials, params shopify.ListParams) ([]shopify.Order, error) {
	if err := f.before(creds, params); err != nil {
		return nil, err
	}
	return page(f.orders, func(o shopify.Order) shopify.ID { return o.ID }, params), nil
}

func (f *fakeUpstream) ListProducts(_ context.Context, creds shopify.Credentials, params shopify.ListParams) ([]shopify.Product, error) {
	if err := f.before(creds, params); err != nil {
		return nil, err
	}
	return page(f.products, func(p shopify.Product) shopify.ID { return p.ID }, params), nil
}

type testEnv struct {
	db       *gorm.DB
	store    *gormrepository.Store
	upstream *fakeUpstream
	audit    *AuditService
	sync     *SyncService
	retries  *delayRecorder
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb := testutil.OpenSQLite(t)
	store := gormrepository.New(gdb)
	env := &testEnv{
		db:       gdb,
		store:    store,
		upstream: &fakeUpstream{},
		retries:  &delayRecorder{},
		now:      time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	env.audit = &AuditService{Logs: store, Events: store, Checks: store, Hub: NewAuditHub(8)}
	env.sync = &SyncService{
		Tenants:    store,
		Logs:       store,
		Reconciler: &Reconciler{Store: store},
		Upstream:   env.upstream,
		Locker:     lease.NewMemoryLocker(),
		Audit:      env.audit,
		Settings: SyncSettings{
			PageSize:    250,
			MaxRecords:  5000,
			MinInterval: 10 * time.Minute,
			Retry:       RetryPolicy{Attempts: 3, BaseDelay: time.Second, Sleep: env.retries.sleep},
		},
		Logger: zap.NewNop(),
		Now:    func() time.Time { return env.now },
	}
	return env
}

func customers(n int) []shopify.Customer {
	out := make([]shopify.Customer, 0, n)
	for i := 1; i <= n; i++ {
		email := fmt.Sprintf("c%d@example.com", i)
		out = append(out, shopify.Customer{ID: shopify.ID(strconv.Itoa(i)), Email: &email})
	}
	return out
}

func newStore(gdb *gorm.DB) *gormrepository.Store {
	return gormrepository.New(gdb)
}
