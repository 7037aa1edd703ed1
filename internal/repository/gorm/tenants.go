package gormrepository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"storesync/internal/models"
)

func (s *Store) GetTenant(ctx context.Context, id uint64) (*models.Tenant, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var tenant models.Tenant
	err := s.db.WithContext(ctx).First(&tenant, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (s *Store) GetTenantByShopDomain(ctx context.Context, shopDomain string) (*models.Tenant, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	shopDomain = strings.TrimSpace(shopDomain)
	if shopDomain == "" {
		return nil, nil
	}
	var tenant models.Tenant
	err := s.db.WithContext(ctx).First(&tenant, "shop_domain = ?", shopDomain).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (s *Store) ListSyncableTenants(ctx context.Context) ([]models.Tenant, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Tenant
	if err := s.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Where("is_active = ?", true).
		Where("shop_domain <> ''").
		Where("access_token <> ''").
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
