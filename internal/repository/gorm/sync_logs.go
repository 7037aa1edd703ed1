package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"storesync/internal/models"
	"storesync/internal/repository"
)

func (s *Store) InsertSyncLog(ctx context.Context, item *models.SyncLog) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) LatestSyncLog(ctx context.Context, tenantID uint64, syncType string, successOnly bool) (*models.SyncLog, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.SyncLog{}).
		Where("tenant_id = ? AND sync_type = ?", tenantID, syncType)
	if successOnly {
		query = query.Where("success = ?", true)
	}
	var item models.SyncLog
	err := query.Order("created_at desc").Order("id desc").First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSyncLogs(ctx context.Context, params repository.ListSyncLogsParams) ([]models.SyncLog, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.SyncLog{}).Where("tenant_id = ?", params.TenantID)
	if params.SyncType != nil && strings.TrimSpace(*params.SyncType) != "" {
		query = query.Where("sync_type = ?", strings.TrimSpace(*params.SyncType))
	}
	if params.Success != nil {
		query = query.Where("success = ?", *params.Success)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("created_at >= ?", params.Since.UTC())
	}
	var items []models.SyncLog
	if err := query.
		Order("created_at desc").
		Order("id desc").
		Limit(normalizeLimit(params.Limit, 50)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) SyncLogStats(ctx context.Context, tenantID uint64, since *time.Time) ([]repository.SyncTypeStats, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.SyncLog{}).
		Select(`sync_type,
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) AS successful,
			COALESCE(SUM(records_processed), 0) AS records,
			COALESCE(AVG(duration), 0) AS avg_duration_ms`).
		Where("tenant_id = ?", tenantID)
	if since != nil && !since.IsZero() {
		query = query.Where("created_at >= ?", since.UTC())
	}
	var rows []repository.SyncTypeStats
	if err := query.Group("sync_type").Order("sync_type asc").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) DeleteSyncLogsBefore(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("created_at < ?", before.UTC()).Delete(&models.SyncLog{})
	return res.RowsAffected, res.Error
}
