package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"storesync/internal/client/shopify"
	"storesync/internal/lease"
	"storesync/internal/metrics"
	"storesync/internal/models"
	"storesync/internal/repository"
)

// Upstream lists merchant records page by page.
type Upstream interface {
	ListCustomers(ctx context.Context, creds shopify.Credentials, params shopify.ListParams) ([]shopify.Customer, error)
	ListOrders(ctx context.Context, creds shopify.Credentials, params shopify.ListParams) ([]shopify.Order, error)
	ListProducts(ctx context.Context, creds shopify.Credentials, params shopify.ListParams) ([]shopify.Product, error)
}

type SyncSettings struct {
	PageSize    int
	MaxRecords  int
	PageDelay   time.Duration
	MinInterval time.Duration
	LeaseTTL    time.Duration
	Retry       RetryPolicy
}

type SyncOptions struct {
	// Force ignores the incremental cursor and the minimum-interval guard.
	Force bool
	// Limit overrides the page size for this call.
	Limit int
}

type SyncResult struct {
	Type             string     `json:"type"`
	Success          bool       `json:"success"`
	Skipped          bool       `json:"skipped"`
	SkipReason       string     `json:"skip_reason,omitempty"`
	RecordsProcessed int        `json:"records_processed"`
	RecordsFailed    int        `json:"records_failed"`
	Pages            int        `json:"pages"`
	DurationMs       int64      `json:"duration_ms"`
	WindowStart      *time.Time `json:"window_start,omitempty"`
	Error            string     `json:"error,omitempty"`
}

const skipRecent = "synced recently"

// SyncService pulls one entity type for one tenant into the local store and
// appends exactly one audit entry per started run.
type SyncService struct {
	Tenants    repository.TenantRepository
	Logs       repository.SyncLogRepository
	Reconciler *Reconciler
	Upstream   Upstream
	Locker     lease.Locker
	Audit      *AuditService
	Settings   SyncSettings
	Logger     *zap.Logger

	Now func() time.Time
}

func (s *SyncService) Sync(ctx context.Context, tenantID uint64, syncType string, opts SyncOptions) (SyncResult, error) {
	tenant, err := s.Tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return SyncResult{Type: syncType, Error: err.Error()}, err
	}
	if tenant == nil {
		return SyncResult{Type: syncType, Error: ErrTenantNotFound.Error()}, ErrTenantNotFound
	}
	return s.SyncTenant(ctx, *tenant, syncType, opts)
}

func (s *SyncService) SyncTenant(ctx context.Context, tenant models.Tenant, syncType string, opts SyncOptions) (SyncResult, error) {
	syncType = strings.ToLower(strings.TrimSpace(syncType))
	result := SyncResult{Type: syncType}
	if !IsSyncType(syncType) {
		err := fmt.Errorf("%w: %s", ErrUnsupportedSyncType, syncType)
		result.Error = err.Error()
		return result, err
	}
	if err := checkTenant(tenant); err != nil {
		result.Error = err.Error()
		return result, err
	}
	logger := s.logger().With(zap.Uint64("tenant_id", tenant.ID), zap.String("sync_type", syncType))

	key := fmt.Sprintf("sync:%d:%s", tenant.ID, syncType)
	token, ok, err := s.Locker.Acquire(ctx, key, s.leaseTTL())
	if err != nil {
		result.Error = err.Error()
		return result, err
	}
	if !ok {
		logger.Info("sync skipped", zap.String("reason", ErrSyncInProgress.Error()))
		metrics.ObserveSync(syncType, "skipped", 0, 0, 0)
		return skipped(result, ErrSyncInProgress.Error()), nil
	}
	defer func() {
		if err := s.Locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			logger.Warn("release sync lease failed", zap.Error(err))
		}
	}()

	latest, err := s.Logs.LatestSyncLog(ctx, tenant.ID, syncType, true)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}
	started := s.now()
	if !opts.Force && latest != nil && s.Settings.MinInterval > 0 && started.Sub(latest.CreatedAt) < s.Settings.MinInterval {
		logger.Info("sync skipped", zap.String("reason", skipRecent), zap.Time("last_sync", latest.CreatedAt))
		metrics.ObserveSync(syncType, "skipped", 0, 0, 0)
		return skipped(result, skipRecent), nil
	}
	if !opts.Force && latest != nil {
		windowStart := latest.CreatedAt.UTC()
		result.WindowStart = &windowStart
	}

	runErr := s.safePull(ctx, tenant, syncType, opts, &result, logger)
	duration := s.now().Sub(started)
	result.DurationMs = duration.Milliseconds()
	result.Success = runErr == nil

	entry := &models.SyncLog{
		TenantID:         tenant.ID,
		SyncType:         syncType,
		Success:          runErr == nil,
		RecordsProcessed: result.RecordsProcessed,
		DurationMs:       result.DurationMs,
		CreatedAt:        started,
	}
	if runErr != nil {
		result.Error = runErr.Error()
		entry.Error = strPtr(runErr.Error())
	}
	if err := s.Audit.Record(context.WithoutCancel(ctx), entry); err != nil {
		logger.Error("write sync log failed", zap.Error(err))
	}

	outcome := "success"
	if runErr != nil {
		outcome = "failure"
		logger.Warn("sync failed",
			zap.Int("records_processed", result.RecordsProcessed),
			zap.Int("pages", result.Pages),
			zap.Error(runErr),
		)
	} else {
		logger.Info("sync completed",
			zap.Int("records_processed", result.RecordsProcessed),
			zap.Int("records_failed", result.RecordsFailed),
			zap.Int("pages", result.Pages),
			zap.Duration("duration", duration),
		)
	}
	metrics.ObserveSync(syncType, outcome, result.RecordsProcessed, result.RecordsFailed, duration)
	return result, runErr
}

// safePull turns a panic anywhere in the fetch path into a run error so the
// audit entry is still written.
func (s *SyncService) safePull(ctx context.Context, tenant models.Tenant, syncType string, opts SyncOptions, result *SyncResult, logger *zap.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("sync panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.pull(ctx, tenant, syncType, opts, result, logger)
}

type pageItem struct {
	id    string
	apply func(ctx context.Context) error
}

func (s *SyncService) pull(ctx context.Context, tenant models.Tenant, syncType string, opts SyncOptions, result *SyncResult, logger *zap.Logger) error {
	creds := shopify.Credentials{ShopDomain: tenant.ShopDomain, AccessToken: tenant.AccessToken}
	pageSize := normalizePageSize(opts.Limit, s.Settings.PageSize)
	maxRecords := s.Settings.MaxRecords
	if maxRecords <= 0 {
		maxRecords = 5000
	}

	sinceID := ""
	fetched := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		params := shopify.ListParams{Limit: pageSize, SinceID: sinceID, UpdatedAtMin: result.WindowStart}
		var items []pageItem
		err := s.Settings.Retry.Do(ctx, syncType, func(ctx context.Context) error {
			var err error
			items, err = s.fetchPage(ctx, tenant.ID, syncType, creds, params)
			return err
		})
		if err != nil {
			return fmt.Errorf("fetch %s page %d: %w", syncType, result.Pages+1, err)
		}
		result.Pages++

		for _, item := range items {
			if err := safeApply(ctx, item); err != nil {
				result.RecordsFailed++
				logger.Warn("reconcile record failed", zap.String("external_id", item.id), zap.Error(err))
				continue
			}
			result.RecordsProcessed++
		}
		fetched += len(items)

		if len(items) < pageSize {
			return nil
		}
		last := items[len(items)-1].id
		if last == "" || last == sinceID {
			return nil
		}
		if fetched >= maxRecords {
			logger.Info("sync reached record cap", zap.Int("max_records", maxRecords))
			return nil
		}
		sinceID = last
		if err := sleepCtx(ctx, s.Settings.PageDelay); err != nil {
			return err
		}
	}
}

func (s *SyncService) fetchPage(ctx context.Context, tenantID uint64, syncType string, creds shopify.Credentials, params shopify.ListParams) ([]pageItem, error) {
	switch syncType {
	case models.SyncTypeCustomers:
		list, err := s.Upstream.ListCustomers(ctx, creds, params)
		return toPageItems(list, err, func(rec shopify.Customer) shopify.ID { return rec.ID }, func(ctx context.Context, rec shopify.Customer) error {
			_, err := s.Reconciler.UpsertCustomer(ctx, tenantID, rec)
			return err
		})
	case models.SyncTypeOrders:
		list, err := s.Upstream.ListOrders(ctx, creds, params)
		return toPageItems(list, err, func(rec shopify.Order) shopify.ID { return rec.ID }, func(ctx context.Context, rec shopify.Order) error {
			_, err := s.Reconciler.UpsertOrder(ctx, tenantID, rec)
			return err
		})
	case models.SyncTypeProducts:
		list, err := s.Upstream.ListProducts(ctx, creds, params)
		return toPageItems(list, err, func(rec shopify.Product) shopify.ID { return rec.ID }, func(ctx context.Context, rec shopify.Product) error {
			_, err := s.Reconciler.UpsertProduct(ctx, tenantID, rec)
			return err
		})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSyncType, syncType)
	}
}

// toPageItems keeps entries the client could not decode in their page
// position as items that fail on apply, so they count as record failures and
// still advance the since_id cursor.
func toPageItems[T any](list []T, listErr error, idOf func(T) shopify.ID, apply func(context.Context, T) error) ([]pageItem, error) {
	var partial *shopify.PartialError
	if listErr != nil && !errors.As(listErr, &partial) {
		return nil, listErr
	}
	decoded := make([]pageItem, 0, len(list))
	for _, rec := range list {
		decoded = append(decoded, pageItem{id: idOf(rec).String(), apply: func(ctx context.Context) error {
			return apply(ctx, rec)
		}})
	}
	if partial == nil {
		return decoded, nil
	}
	items := make([]pageItem, 0, len(decoded)+len(partial.Items))
	next := 0
	for _, bad := range partial.Items {
		for len(items) < bad.Index && next < len(decoded) {
			items = append(items, decoded[next])
			next++
		}
		badErr := fmt.Errorf("decode %s: %w", partial.Resource, bad.Err)
		items = append(items, pageItem{id: bad.ID.String(), apply: func(context.Context) error { return badErr }})
	}
	return append(items, decoded[next:]...), nil
}

func safeApply(ctx context.Context, item pageItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return item.apply(ctx)
}

func (s *SyncService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *SyncService) leaseTTL() time.Duration {
	if s.Settings.LeaseTTL > 0 {
		return s.Settings.LeaseTTL
	}
	return 10 * time.Minute
}

func (s *SyncService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func skipped(result SyncResult, reason string) SyncResult {
	result.Success = true
	result.Skipped = true
	result.SkipReason = reason
	return result
}

func checkTenant(t models.Tenant) error {
	if !t.IsActive {
		return ErrTenantInactive
	}
	if strings.TrimSpace(t.ShopDomain) == "" || strings.TrimSpace(t.AccessToken) == "" {
		return ErrTenantNotConfigured
	}
	return nil
}

func IsSyncType(v string) bool {
	for _, t := range models.SyncTypes {
		if t == v {
			return true
		}
	}
	return false
}

func normalizePageSize(limit, fallback int) int {
	if limit <= 0 {
		limit = fallback
	}
	if limit <= 0 || limit > shopify.MaxPageSize {
		return shopify.MaxPageSize
	}
	return limit
}
