package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storesync/internal/models"
	"storesync/internal/repository"
)

// TenantSyncer runs one entity type for one tenant.
type TenantSyncer interface {
	SyncTenant(ctx context.Context, tenant models.Tenant, syncType string, opts SyncOptions) (SyncResult, error)
}

type SchedulerSettings struct {
	BatchSize      int
	BatchDelay     time.Duration
	InterTypeDelay time.Duration
}

// Scheduler fans syncs out over active tenants in small concurrent batches.
// A failing or panicking tenant only ever produces failed results.
type Scheduler struct {
	Tenants  repository.TenantRepository
	Syncer   TenantSyncer
	Settings SchedulerSettings
	Logger   *zap.Logger
}

type TenantSyncResult struct {
	TenantID uint64       `json:"tenant_id"`
	Results  []SyncResult `json:"results"`
}

type ManualSyncResult struct {
	Results         []SyncResult `json:"results"`
	TotalRecords    int          `json:"total_records"`
	TotalDurationMs int64        `json:"total_duration_ms"`
	Successful      int          `json:"successful"`
	Failed          int          `json:"failed"`
}

// RunTier syncs the given types for every syncable tenant.
func (s *Scheduler) RunTier(ctx context.Context, types []string) ([]TenantSyncResult, error) {
	types, err := normalizeTypes(types)
	if err != nil {
		return nil, err
	}
	tenants, err := s.Tenants.ListSyncableTenants(ctx)
	if err != nil {
		return nil, err
	}
	logger := s.logger()
	started := time.Now()
	logger.Info("scheduled sync started", zap.Strings("types", types), zap.Int("tenants", len(tenants)))

	out := make([]TenantSyncResult, 0, len(tenants))
	batches := chunkTenants(tenants, s.Settings.BatchSize)
	for i, batch := range batches {
		if ctx.Err() != nil {
			break
		}
		results := make([]TenantSyncResult, len(batch))
		var g errgroup.Group
		for j, tenant := range batch {
			g.Go(func() error {
				results[j] = TenantSyncResult{
					TenantID: tenant.ID,
					Results:  s.syncTenant(ctx, tenant, types, SyncOptions{}),
				}
				return nil
			})
		}
		_ = g.Wait()
		out = append(out, results...)

		if i < len(batches)-1 {
			if err := sleepCtx(ctx, s.Settings.BatchDelay); err != nil {
				break
			}
		}
	}

	failed := 0
	for _, tr := range out {
		for _, r := range tr.Results {
			if !r.Success {
				failed++
			}
		}
	}
	logger.Info("scheduled sync finished",
		zap.Strings("types", types),
		zap.Int("tenants", len(out)),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(started)),
	)
	return out, ctx.Err()
}

// SyncNow runs the requested types for one tenant and waits for them. An
// empty types list means every entity type.
func (s *Scheduler) SyncNow(ctx context.Context, tenantID uint64, types []string, force bool) (ManualSyncResult, error) {
	tenant, err := s.Tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return ManualSyncResult{}, err
	}
	if tenant == nil {
		return ManualSyncResult{}, ErrTenantNotFound
	}
	if err := checkTenant(*tenant); err != nil {
		return ManualSyncResult{}, err
	}
	types, err = normalizeTypes(types)
	if err != nil {
		return ManualSyncResult{}, err
	}

	started := time.Now()
	results := s.syncTenant(ctx, *tenant, types, SyncOptions{Force: force})
	out := ManualSyncResult{Results: results, TotalDurationMs: time.Since(started).Milliseconds()}
	for _, r := range results {
		out.TotalRecords += r.RecordsProcessed
		if r.Success {
			out.Successful++
		} else {
			out.Failed++
		}
	}
	return out, nil
}

// syncTenant runs types sequentially so one tenant never has two pulls in
// flight against its upstream budget.
func (s *Scheduler) syncTenant(ctx context.Context, tenant models.Tenant, types []string, opts SyncOptions) []SyncResult {
	results := make([]SyncResult, 0, len(types))
	for i, syncType := range types {
		if i > 0 {
			if err := sleepCtx(ctx, s.Settings.InterTypeDelay); err != nil {
				results = append(results, SyncResult{Type: syncType, Error: err.Error()})
				continue
			}
		}
		results = append(results, s.runOne(ctx, tenant, syncType, opts))
	}
	return results
}

func (s *Scheduler) runOne(ctx context.Context, tenant models.Tenant, syncType string, opts SyncOptions) (result SyncResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger().Error("sync panicked",
				zap.Uint64("tenant_id", tenant.ID),
				zap.String("sync_type", syncType),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			result = SyncResult{Type: syncType, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()
	res, err := s.Syncer.SyncTenant(ctx, tenant, syncType, opts)
	if err != nil {
		res.Success = false
		if res.Error == "" {
			res.Error = err.Error()
		}
	}
	if res.Type == "" {
		res.Type = syncType
	}
	return res
}

func (s *Scheduler) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func normalizeTypes(types []string) ([]string, error) {
	if len(types) == 0 {
		return append([]string{}, models.SyncTypes...), nil
	}
	seen := map[string]struct{}{}
	var errs []error
	for _, raw := range types {
		t := strings.ToLower(strings.TrimSpace(raw))
		if t == "" {
			continue
		}
		if !IsSyncType(t) {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnsupportedSyncType, raw))
			continue
		}
		seen[t] = struct{}{}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if len(seen) == 0 {
		return append([]string{}, models.SyncTypes...), nil
	}
	// customers first so orders can link to them
	out := make([]string, 0, len(seen))
	for _, t := range models.SyncTypes {
		if _, ok := seen[t]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func chunkTenants(items []models.Tenant, size int) [][]models.Tenant {
	if size <= 0 {
		size = 3
	}
	out := make([][]models.Tenant, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}
