package gormrepository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storesync/internal/models"
	"storesync/internal/repository"
)

// UpsertAbandonmentCheck re-arms the check for a cart; a later cart update
// pushes the fire time forward and resets the status.
func (s *Store) UpsertAbandonmentCheck(ctx context.Context, item *models.AbandonmentCheck) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Status = models.CheckPending
	item.Attempts = 0
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "cart_token"}},
		DoUpdates: clause.Assignments(map[string]any{
			"customer_external_id": item.CustomerExternalID,
			"customer_email":       item.CustomerEmail,
			"cart_updated_at":      item.CartUpdatedAt,
			"fire_at":              item.FireAt,
			"status":               models.CheckPending,
			"attempts":             0,
			"last_error":           nil,
			"resolved_at":          nil,
			"snapshot":             item.Snapshot,
			"updated_at":           time.Now().UTC(),
		}),
	}).Create(item).Error
}

func (s *Store) ListDueAbandonmentChecks(ctx context.Context, now time.Time, limit int) ([]models.AbandonmentCheck, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.AbandonmentCheck
	if err := s.db.WithContext(ctx).
		Model(&models.AbandonmentCheck{}).
		Where("status = ? AND fire_at <= ?", models.CheckPending, now.UTC()).
		Order("fire_at asc").
		Limit(normalizeLimit(limit, 100)).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ClaimAbandonmentCheckTx(ctx context.Context, tx *gorm.DB, id uint64, now time.Time) (bool, error) {
	res := tx.WithContext(ctx).
		Model(&models.AbandonmentCheck{}).
		Where("id = ? AND status = ? AND fire_at <= ?", id, models.CheckPending, now.UTC()).
		Update("attempts", gorm.Expr("attempts + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) ResolveAbandonmentCheckTx(ctx context.Context, tx *gorm.DB, id uint64, status string) error {
	now := time.Now().UTC()
	return tx.WithContext(ctx).
		Model(&models.AbandonmentCheck{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      status,
			"resolved_at": now,
			"last_error":  nil,
		}).Error
}

func (s *Store) RecordAbandonmentCheckFailure(ctx context.Context, id uint64, errMsg string, maxAttempts int) error {
	if s == nil || s.db == nil {
		return nil
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return s.db.WithContext(ctx).
		Model(&models.AbandonmentCheck{}).
		Where("id = ? AND status = ?", id, models.CheckPending).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": errMsg,
			"status":     gorm.Expr("CASE WHEN attempts + 1 >= ? THEN ? ELSE status END", maxAttempts, models.CheckFailed),
		}).Error
}

func (s *Store) CancelAbandonmentChecks(ctx context.Context, q repository.ActivityQuery, convertedAt time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	cond, args := identityClause(q, "cart_token", "customer_external_id", "customer_email")
	if cond == "" {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.AbandonmentCheck{}).
		Where("tenant_id = ? AND status = ?", q.TenantID, models.CheckPending).
		Where("cart_updated_at <= ?", convertedAt.UTC()).
		Where(cond, args...).
		Updates(map[string]any{
			"status":      models.CheckCancelled,
			"resolved_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (s *Store) DeleteSettledAbandonmentChecksBefore(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("status <> ?", models.CheckPending).
		Where("updated_at < ?", before.UTC()).
		Delete(&models.AbandonmentCheck{})
	return res.RowsAffected, res.Error
}
