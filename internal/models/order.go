package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Order struct {
	ID                uint64          `gorm:"primaryKey;autoIncrement"`
	TenantID          uint64          `gorm:"not null;uniqueIndex:ux_orders_external_tenant,priority:2;index:idx_orders_tenant_created,priority:1"`
	ExternalID        string          `gorm:"type:text;not null;uniqueIndex:ux_orders_external_tenant,priority:1"`
	CustomerID        *uint64         `gorm:"index"`
	CustomerExternal  *string         `gorm:"column:customer_external_id;type:text;index"`
	OrderNumber       *string         `gorm:"type:text"`
	Email             *string         `gorm:"type:text"`
	CartToken         *string         `gorm:"type:text;index"`
	Currency          string          `gorm:"type:text;not null;default:''"`
	TotalPrice        decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0"`
	SubtotalPrice     decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0"`
	TotalTax          decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0"`
	TotalDiscounts    decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0"`
	FinancialStatus   *string         `gorm:"type:text"`
	FulfillmentStatus *string         `gorm:"type:text"`
	CancelledAt       *time.Time
	ExternalCreatedAt *time.Time `gorm:"index:idx_orders_tenant_created,priority:2"`
	ExternalUpdatedAt *time.Time `gorm:"index"`
	RawJSON           datatypes.JSON
	CreatedAt         time.Time `gorm:"autoCreateTime"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderItem rows are owned by their Order and rebuilt on every order upsert.
type OrderItem struct {
	ID         uint64          `gorm:"primaryKey;autoIncrement"`
	OrderID    uint64          `gorm:"not null;index"`
	ProductID  *uint64         `gorm:"index"`
	ExternalID string          `gorm:"type:text;not null;default:''"`
	VariantID  *string         `gorm:"type:text"`
	SKU        *string         `gorm:"column:sku;type:text"`
	Title      string          `gorm:"type:text;not null;default:''"`
	Quantity   int             `gorm:"not null;default:0"`
	Price      decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0"`
	Discount   decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0"`
	CreatedAt  time.Time       `gorm:"autoCreateTime"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
