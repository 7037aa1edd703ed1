package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storesync/internal/client/shopify"
	"storesync/internal/models"
	"storesync/internal/testutil"
)

func sampleOrder(total string) shopify.Order {
	name := "#1001"
	email := "Buyer@Example.com"
	cart := "cart-1"
	sku := "SKU-1"
	return shopify.Order{
		ID:         "5001",
		Name:       &name,
		Email:      &email,
		CartToken:  &cart,
		Currency:   "USD",
		TotalPrice: shopify.Money(total),
		Customer:   &shopify.CustomerRef{ID: "77"},
		LineItems: []shopify.LineItem{
			{ID: "1", ProductID: "900", VariantID: "901", SKU: &sku, Title: "Mug", Quantity: 2, Price: "10.00"},
			{ID: "2", ProductID: "404", Title: "Unknown", Quantity: 1, Price: "5.00"},
		},
	}
}

func TestReconcileOrderLinksKnownRecords(t *testing.T) {
	gdb := testutil.OpenSQLite(t)
	rec := &Reconciler{Store: newStore(gdb)}
	tenant := testutil.SeedTenant(t, gdb, "a.myshopify.com")
	ctx := context.Background()

	customer, err := rec.UpsertCustomer(ctx, tenant.ID, shopify.Customer{ID: "77", TotalSpent: "12.50"})
	require.NoError(t, err)
	product, err := rec.UpsertProduct(ctx, tenant.ID, shopify.Product{
		ID:       "900",
		Title:    " Mug ",
		Variants: []shopify.Variant{{ID: "901", Price: "10.00", InventoryQuantity: 3}, {ID: "902", Price: "12.00", InventoryQuantity: 4}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Mug", product.Title)
	assert.Equal(t, 7, product.InventoryQuantity)
	assert.True(t, decimal.RequireFromString("10").Equal(product.Price))

	order, err := rec.UpsertOrder(ctx, tenant.ID, sampleOrder("25.00"))
	require.NoError(t, err)
	require.NotNil(t, order.CustomerID)
	assert.Equal(t, customer.ID, *order.CustomerID)

	var items []models.OrderItem
	require.NoError(t, gdb.Where("order_id = ?", order.ID).Order("external_id asc").Find(&items).Error)
	require.Len(t, items, 2)
	require.NotNil(t, items[0].ProductID)
	assert.Equal(t, product.ID, *items[0].ProductID)
	assert.Nil(t, items[1].ProductID)
}

func TestReconcileOrderIsIdempotent(t *testing.T) {
	gdb := testutil.OpenSQLite(t)
	rec := &Reconciler{Store: newStore(gdb)}
	tenant := testutil.SeedTenant(t, gdb, "a.myshopify.com")
	ctx := context.Background()

	first, err := rec.UpsertOrder(ctx, tenant.ID, sampleOrder("25.00"))
	require.NoError(t, err)
	assert.Nil(t, first.CustomerID)

	second, err := rec.UpsertOrder(ctx, tenant.ID, sampleOrder("30.00"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var orders []models.Order
	require.NoError(t, gdb.Where("tenant_id = ?", tenant.ID).Find(&orders).Error)
	require.Len(t, orders, 1)
	assert.True(t, decimal.RequireFromString("30").Equal(orders[0].TotalPrice))

	var count int64
	require.NoError(t, gdb.Model(&models.OrderItem{}).Where("order_id = ?", first.ID).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestReconcileRejectsMissingID(t *testing.T) {
	gdb := testutil.OpenSQLite(t)
	rec := &Reconciler{Store: newStore(gdb)}

	_, err := rec.UpsertCustomer(context.Background(), 1, shopify.Customer{})
	assert.Error(t, err)
	_, err = rec.UpsertOrder(context.Background(), 1, shopify.Order{})
	assert.Error(t, err)
}

func TestParseMoney(t *testing.T) {
	assert.True(t, decimal.Zero.Equal(parseMoney("")))
	assert.True(t, decimal.Zero.Equal(parseMoney("abc")))
	assert.True(t, decimal.RequireFromString("19.99").Equal(parseMoney(" 19.99 ")))
}
