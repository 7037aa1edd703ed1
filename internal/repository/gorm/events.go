package gormrepository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"storesync/internal/models"
	"storesync/internal/repository"
)

func (s *Store) InsertCustomEvent(ctx context.Context, item *models.CustomEvent) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.InsertCustomEventTx(ctx, s.db, item)
}

func (s *Store) InsertCustomEventTx(ctx context.Context, tx *gorm.DB, item *models.CustomEvent) error {
	if item == nil {
		return nil
	}
	if item.OccurredAt.IsZero() {
		item.OccurredAt = time.Now().UTC()
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) HasCartEventTx(ctx context.Context, tx *gorm.DB, tenantID uint64, eventType string, cartToken string) (bool, error) {
	if cartToken == "" {
		return false, nil
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.CustomEvent{}).
		Where("tenant_id = ? AND event_type = ? AND cart_token = ?", tenantID, eventType, cartToken).
		Count(&count).Error
	return count > 0, err
}

func (s *Store) HasCheckoutSinceTx(ctx context.Context, tx *gorm.DB, q repository.ActivityQuery) (bool, error) {
	cond, args := identityClause(q, "cart_token", "customer_external_id", "")
	if cond == "" {
		return false, nil
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.CustomEvent{}).
		Where("tenant_id = ? AND event_type = ?", q.TenantID, models.EventCheckoutStarted).
		Where("occurred_at >= ?", q.Since.UTC()).
		Where(cond, args...).
		Count(&count).Error
	return count > 0, err
}

// HasOrderSinceTx matches on the upstream creation time when known, else the
// local insert time.
func (s *Store) HasOrderSinceTx(ctx context.Context, tx *gorm.DB, q repository.ActivityQuery) (bool, error) {
	cond, args := identityClause(q, "cart_token", "customer_external_id", "email")
	if cond == "" {
		return false, nil
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.Order{}).
		Where("tenant_id = ?", q.TenantID).
		Where("COALESCE(external_created_at, created_at) >= ?", q.Since.UTC()).
		Where(cond, args...).
		Count(&count).Error
	return count > 0, err
}

func (s *Store) DeleteCustomEventsBefore(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("occurred_at < ?", before.UTC()).Delete(&models.CustomEvent{})
	return res.RowsAffected, res.Error
}
