package gormrepository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storesync/internal/models"
)

var naturalKey = []clause.Column{{Name: "external_id"}, {Name: "tenant_id"}}

func (s *Store) UpsertCustomerTx(ctx context.Context, tx *gorm.DB, item *models.Customer) error {
	if item == nil {
		return nil
	}
	if err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: naturalKey,
		DoUpdates: clause.AssignmentColumns([]string{
			"email",
			"first_name",
			"last_name",
			"phone",
			"state",
			"tags",
			"orders_count",
			"total_spent",
			"accepts_marketing",
			"external_created_at",
			"external_updated_at",
			"raw_json",
			"updated_at",
		}),
	}).Create(item).Error; err != nil {
		return err
	}
	return reloadID(ctx, tx, &models.Customer{}, item.TenantID, item.ExternalID, &item.ID)
}

func (s *Store) UpsertProductTx(ctx context.Context, tx *gorm.DB, item *models.Product) error {
	if item == nil {
		return nil
	}
	if err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: naturalKey,
		DoUpdates: clause.AssignmentColumns([]string{
			"title",
			"handle",
			"vendor",
			"product_type",
			"status",
			"tags",
			"price",
			"inventory_quantity",
			"variants_count",
			"external_created_at",
			"external_updated_at",
			"raw_json",
			"updated_at",
		}),
	}).Create(item).Error; err != nil {
		return err
	}
	return reloadID(ctx, tx, &models.Product{}, item.TenantID, item.ExternalID, &item.ID)
}

// UpsertOrderTx writes the order row only; items go through ReplaceOrderItemsTx.
func (s *Store) UpsertOrderTx(ctx context.Context, tx *gorm.DB, item *models.Order) error {
	if item == nil {
		return nil
	}
	if err := tx.WithContext(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns: naturalKey,
		DoUpdates: clause.AssignmentColumns([]string{
			"customer_id",
			"customer_external_id",
			"order_number",
			"email",
			"cart_token",
			"currency",
			"total_price",
			"subtotal_price",
			"total_tax",
			"total_discounts",
			"financial_status",
			"fulfillment_status",
			"cancelled_at",
			"external_created_at",
			"external_updated_at",
			"raw_json",
			"updated_at",
		}),
	}).Create(item).Error; err != nil {
		return err
	}
	return reloadID(ctx, tx, &models.Order{}, item.TenantID, item.ExternalID, &item.ID)
}

func (s *Store) ReplaceOrderItemsTx(ctx context.Context, tx *gorm.DB, orderID uint64, items []models.OrderItem) error {
	if orderID == 0 {
		return errors.New("replace order items: order id is required")
	}
	if err := tx.WithContext(ctx).Where("order_id = ?", orderID).Delete(&models.OrderItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].ID = 0
		items[i].OrderID = orderID
	}
	return tx.WithContext(ctx).CreateInBatches(items, 200).Error
}

func (s *Store) FindCustomerIDTx(ctx context.Context, tx *gorm.DB, tenantID uint64, externalID string) (*uint64, error) {
	if externalID == "" {
		return nil, nil
	}
	var ids []uint64
	if err := tx.WithContext(ctx).
		Model(&models.Customer{}).
		Where("tenant_id = ? AND external_id = ?", tenantID, externalID).
		Limit(1).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return &ids[0], nil
}

func (s *Store) FindProductIDsTx(ctx context.Context, tx *gorm.DB, tenantID uint64, externalIDs []string) (map[string]uint64, error) {
	out := map[string]uint64{}
	externalIDs = cleanStrings(externalIDs)
	if len(externalIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ID         uint64
		ExternalID string
	}
	if err := tx.WithContext(ctx).
		Model(&models.Product{}).
		Select("id, external_id").
		Where("tenant_id = ? AND external_id IN ?", tenantID, externalIDs).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ExternalID] = row.ID
	}
	return out, nil
}

// reloadID reads the surviving row id, which the conflict path does not
// reliably return on every dialect.
func reloadID(ctx context.Context, tx *gorm.DB, model any, tenantID uint64, externalID string, dst *uint64) error {
	var ids []uint64
	if err := tx.WithContext(ctx).
		Model(model).
		Where("tenant_id = ? AND external_id = ?", tenantID, externalID).
		Limit(1).
		Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return gorm.ErrRecordNotFound
	}
	*dst = ids[0]
	return nil
}
