package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"storesync/internal/client/shopify"
	"storesync/internal/models"
	"storesync/internal/repository"
)

// Reconciler maps upstream records onto local rows. Every write is an upsert
// keyed by (external id, tenant id), so replays and out-of-order deliveries
// converge on the last payload written.
type Reconciler struct {
	Store  repository.CatalogRepository
	Logger *zap.Logger
}

func (r *Reconciler) UpsertCustomer(ctx context.Context, tenantID uint64, in shopify.Customer) (*models.Customer, error) {
	if in.ID == "" {
		return nil, fmt.Errorf("customer: missing id")
	}
	item := mapCustomer(tenantID, in)
	err := r.Store.InTx(ctx, func(tx *gorm.DB) error {
		return r.Store.UpsertCustomerTx(ctx, tx, item)
	})
	if err != nil {
		return nil, fmt.Errorf("upsert customer %s: %w", in.ID, err)
	}
	return item, nil
}

func (r *Reconciler) UpsertProduct(ctx context.Context, tenantID uint64, in shopify.Product) (*models.Product, error) {
	if in.ID == "" {
		return nil, fmt.Errorf("product: missing id")
	}
	item := mapProduct(tenantID, in)
	err := r.Store.InTx(ctx, func(tx *gorm.DB) error {
		return r.Store.UpsertProductTx(ctx, tx, item)
	})
	if err != nil {
		return nil, fmt.Errorf("upsert product %s: %w", in.ID, err)
	}
	return item, nil
}

// UpsertOrder writes the order and rebuilds its line items in one transaction.
// Customer and product links stay null when the target is not synced yet.
func (r *Reconciler) UpsertOrder(ctx context.Context, tenantID uint64, in shopify.Order) (*models.Order, error) {
	if in.ID == "" {
		return nil, fmt.Errorf("order: missing id")
	}
	item := mapOrder(tenantID, in)
	err := r.Store.InTx(ctx, func(tx *gorm.DB) error {
		if item.CustomerExternal != nil {
			customerID, err := r.Store.FindCustomerIDTx(ctx, tx, tenantID, *item.CustomerExternal)
			if err != nil {
				return err
			}
			item.CustomerID = customerID
		}
		if err := r.Store.UpsertOrderTx(ctx, tx, item); err != nil {
			return err
		}

		productExternal := make([]string, 0, len(in.LineItems))
		for _, li := range in.LineItems {
			productExternal = append(productExternal, li.ProductID.String())
		}
		productIDs, err := r.Store.FindProductIDsTx(ctx, tx, tenantID, productExternal)
		if err != nil {
			return err
		}
		lines := make([]models.OrderItem, 0, len(in.LineItems))
		for _, li := range in.LineItems {
			lines = append(lines, mapLineItem(li, productIDs))
		}
		if err := r.Store.ReplaceOrderItemsTx(ctx, tx, item.ID, lines); err != nil {
			return err
		}
		item.Items = lines
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("upsert order %s: %w", in.ID, err)
	}
	return item, nil
}

func mapCustomer(tenantID uint64, in shopify.Customer) *models.Customer {
	return &models.Customer{
		TenantID:          tenantID,
		ExternalID:        in.ID.String(),
		Email:             cleanPtr(in.Email),
		FirstName:         cleanPtr(in.FirstName),
		LastName:          cleanPtr(in.LastName),
		Phone:             cleanPtr(in.Phone),
		State:             cleanPtr(in.State),
		Tags:              cleanPtr(in.Tags),
		OrdersCount:       in.OrdersCount,
		TotalSpent:        parseMoney(in.TotalSpent),
		AcceptsMarketing:  in.AcceptsMarketing,
		ExternalCreatedAt: in.CreatedAt.Ptr(),
		ExternalUpdatedAt: in.UpdatedAt.Ptr(),
		RawJSON:           rawOrJSON(in.Raw, in),
	}
}

func mapProduct(tenantID uint64, in shopify.Product) *models.Product {
	item := &models.Product{
		TenantID:          tenantID,
		ExternalID:        in.ID.String(),
		Title:             strings.TrimSpace(in.Title),
		Handle:            cleanPtr(in.Handle),
		Vendor:            cleanPtr(in.Vendor),
		ProductType:       cleanPtr(in.ProductType),
		Status:            cleanPtr(in.Status),
		Tags:              cleanPtr(in.Tags),
		VariantsCount:     len(in.Variants),
		ExternalCreatedAt: in.CreatedAt.Ptr(),
		ExternalUpdatedAt: in.UpdatedAt.Ptr(),
		RawJSON:           rawOrJSON(in.Raw, in),
	}
	if len(in.Variants) > 0 {
		item.Price = parseMoney(in.Variants[0].Price)
	}
	for _, v := range in.Variants {
		item.InventoryQuantity += v.InventoryQuantity
	}
	return item
}

func mapOrder(tenantID uint64, in shopify.Order) *models.Order {
	item := &models.Order{
		TenantID:          tenantID,
		ExternalID:        in.ID.String(),
		OrderNumber:       cleanPtr(in.Name),
		Email:             cleanPtr(in.Email),
		CartToken:         cleanPtr(in.CartToken),
		Currency:          strings.TrimSpace(in.Currency),
		TotalPrice:        parseMoney(in.TotalPrice),
		SubtotalPrice:     parseMoney(in.SubtotalPrice),
		TotalTax:          parseMoney(in.TotalTax),
		TotalDiscounts:    parseMoney(in.TotalDiscounts),
		FinancialStatus:   cleanPtr(in.FinancialStatus),
		FulfillmentStatus: cleanPtr(in.FulfillmentStatus),
		CancelledAt:       in.CancelledAt.Ptr(),
		ExternalCreatedAt: in.CreatedAt.Ptr(),
		ExternalUpdatedAt: in.UpdatedAt.Ptr(),
		RawJSON:           rawOrJSON(in.Raw, in),
	}
	if in.Customer != nil && in.Customer.ID != "" {
		item.CustomerExternal = strPtr(in.Customer.ID.String())
		if item.Email == nil {
			item.Email = cleanPtr(in.Customer.Email)
		}
	}
	return item
}

func mapLineItem(li shopify.LineItem, productIDs map[string]uint64) models.OrderItem {
	item := models.OrderItem{
		ExternalID: li.ID.String(),
		VariantID:  strPtr(li.VariantID.String()),
		SKU:        cleanPtr(li.SKU),
		Title:      strings.TrimSpace(li.Title),
		Quantity:   li.Quantity,
		Price:      parseMoney(li.Price),
		Discount:   parseMoney(li.TotalDiscount),
	}
	if id, ok := productIDs[li.ProductID.String()]; ok {
		item.ProductID = &id
	}
	return item
}

// parseMoney treats missing or malformed amounts as zero.
func parseMoney(m shopify.Money) decimal.Decimal {
	s := strings.TrimSpace(string(m))
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func rawOrJSON(raw json.RawMessage, fallback any) datatypes.JSON {
	if len(raw) > 0 && json.Valid(raw) {
		return datatypes.JSON(raw)
	}
	return mustJSON(fallback)
}

func mustJSON(v any) datatypes.JSON {
	payload, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(payload)
}

func strPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func cleanPtr(s *string) *string {
	if s == nil {
		return nil
	}
	return strPtr(strings.TrimSpace(*s))
}
