package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"storesync/internal/models"
	"storesync/internal/repository"
)

type RetentionSettings struct {
	SyncLogDays     int
	CustomEventDays int
	CheckDays       int
}

// AuditService owns the sync log: the write path used by syncs and webhooks,
// and the read-side status and health views.
type AuditService struct {
	Logs      repository.SyncLogRepository
	Events    repository.EventRepository
	Checks    repository.AbandonmentRepository
	Hub       *AuditHub
	Retention RetentionSettings
	Logger    *zap.Logger
}

type TypeStatus struct {
	LastSync         *time.Time `json:"last_sync"`
	Success          bool       `json:"success"`
	RecordsProcessed int        `json:"records_processed"`
	DurationMs       int64      `json:"duration_ms"`
	Error            *string    `json:"error"`
	TotalSyncs       int64      `json:"total_syncs"`
	SuccessRate      float64    `json:"success_rate"`
}

type SyncStatus struct {
	TenantID   uint64                `json:"tenant_id"`
	PerType    map[string]TypeStatus `json:"per_type"`
	RecentLogs []models.SyncLog      `json:"recent_logs"`
}

type SyncHealth struct {
	TenantID      uint64                     `json:"tenant_id"`
	Window        string                     `json:"window"`
	Since         time.Time                  `json:"since"`
	TotalSyncs    int64                      `json:"total_syncs"`
	Failures      int64                      `json:"failures"`
	SuccessRate   float64                    `json:"success_rate"`
	AvgDurationMs float64                    `json:"avg_duration_ms"`
	Records       int64                      `json:"records"`
	Healthy       bool                       `json:"healthy"`
	PerType       []repository.SyncTypeStats `json:"per_type"`
}

type CleanupResult struct {
	SyncLogs     int64 `json:"sync_logs"`
	CustomEvents int64 `json:"custom_events"`
	Checks       int64 `json:"abandonment_checks"`
}

// healthyRate is the success rate below which a tenant is reported unhealthy.
const healthyRate = 0.8

func (s *AuditService) Record(ctx context.Context, entry *models.SyncLog) error {
	if entry == nil {
		return nil
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := s.Logs.InsertSyncLog(ctx, entry); err != nil {
		return err
	}
	s.Hub.Publish(*entry)
	return nil
}

func (s *AuditService) Status(ctx context.Context, tenantID uint64, recent int) (SyncStatus, error) {
	status := SyncStatus{TenantID: tenantID, PerType: map[string]TypeStatus{}}

	stats, err := s.Logs.SyncLogStats(ctx, tenantID, nil)
	if err != nil {
		return status, err
	}
	byType := map[string]repository.SyncTypeStats{}
	for _, st := range stats {
		byType[st.SyncType] = st
	}

	types := append([]string{}, models.SyncTypes...)
	for _, st := range stats {
		if strings.HasPrefix(st.SyncType, models.WebhookSyncTypePrefix) {
			types = append(types, st.SyncType)
		}
	}
	for _, syncType := range types {
		ts := TypeStatus{}
		latest, err := s.Logs.LatestSyncLog(ctx, tenantID, syncType, false)
		if err != nil {
			return status, err
		}
		if latest != nil {
			created := latest.CreatedAt
			ts.LastSync = &created
			ts.Success = latest.Success
			ts.RecordsProcessed = latest.RecordsProcessed
			ts.DurationMs = latest.DurationMs
			ts.Error = latest.Error
		}
		if st, ok := byType[syncType]; ok {
			ts.TotalSyncs = st.Total
			ts.SuccessRate = rate(st.Successful, st.Total)
		}
		status.PerType[syncType] = ts
	}

	logs, err := s.Logs.ListSyncLogs(ctx, repository.ListSyncLogsParams{TenantID: tenantID, Limit: recent})
	if err != nil {
		return status, err
	}
	status.RecentLogs = logs
	return status, nil
}

func (s *AuditService) Health(ctx context.Context, tenantID uint64, window time.Duration) (SyncHealth, error) {
	if window <= 0 {
		window = 24 * time.Hour
	}
	since := time.Now().UTC().Add(-window)
	health := SyncHealth{TenantID: tenantID, Window: window.String(), Since: since}

	stats, err := s.Logs.SyncLogStats(ctx, tenantID, &since)
	if err != nil {
		return health, err
	}
	health.PerType = stats
	var successful int64
	var weightedDuration float64
	for _, st := range stats {
		health.TotalSyncs += st.Total
		health.Records += st.Records
		successful += st.Successful
		weightedDuration += st.AvgDurationMs * float64(st.Total)
	}
	health.Failures = health.TotalSyncs - successful
	health.SuccessRate = rate(successful, health.TotalSyncs)
	if health.TotalSyncs > 0 {
		health.AvgDurationMs = weightedDuration / float64(health.TotalSyncs)
	}
	health.Healthy = health.TotalSyncs == 0 || health.SuccessRate >= healthyRate
	return health, nil
}

func (s *AuditService) RecentLogs(ctx context.Context, params repository.ListSyncLogsParams) ([]models.SyncLog, error) {
	return s.Logs.ListSyncLogs(ctx, params)
}

// Cleanup prunes audit entries, lifecycle events and settled abandonment
// checks past their retention.
func (s *AuditService) Cleanup(ctx context.Context, now time.Time) (CleanupResult, error) {
	var result CleanupResult
	var errs []error
	now = now.UTC()

	if days := s.Retention.SyncLogDays; days > 0 {
		n, err := s.Logs.DeleteSyncLogsBefore(ctx, now.AddDate(0, 0, -days))
		if err != nil {
			errs = append(errs, fmt.Errorf("sync logs: %w", err))
		}
		result.SyncLogs = n
	}
	if days := s.Retention.CustomEventDays; days > 0 && s.Events != nil {
		n, err := s.Events.DeleteCustomEventsBefore(ctx, now.AddDate(0, 0, -days))
		if err != nil {
			errs = append(errs, fmt.Errorf("custom events: %w", err))
		}
		result.CustomEvents = n
	}
	if days := s.Retention.CheckDays; days > 0 && s.Checks != nil {
		n, err := s.Checks.DeleteSettledAbandonmentChecksBefore(ctx, now.AddDate(0, 0, -days))
		if err != nil {
			errs = append(errs, fmt.Errorf("abandonment checks: %w", err))
		}
		result.Checks = n
	}

	if s.Logger != nil {
		s.Logger.Info("retention cleanup",
			zap.Int64("sync_logs", result.SyncLogs),
			zap.Int64("custom_events", result.CustomEvents),
			zap.Int64("abandonment_checks", result.Checks),
		)
	}
	return result, errors.Join(errs...)
}

func rate(successful, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(successful) / float64(total)
}
