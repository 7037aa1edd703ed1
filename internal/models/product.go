package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Product struct {
	ID                uint64          `gorm:"primaryKey;autoIncrement"`
	TenantID          uint64          `gorm:"not null;uniqueIndex:ux_products_external_tenant,priority:2;index"`
	ExternalID        string          `gorm:"type:text;not null;uniqueIndex:ux_products_external_tenant,priority:1"`
	Title             string          `gorm:"type:text;not null;default:''"`
	Handle            *string         `gorm:"type:text"`
	Vendor            *string         `gorm:"type:text"`
	ProductType       *string         `gorm:"type:text"`
	Status            *string         `gorm:"type:text"`
	Tags              *string         `gorm:"type:text"`
	Price             decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0;comment:first variant price"`
	InventoryQuantity int             `gorm:"not null;default:0;comment:sum over variants"`
	VariantsCount     int             `gorm:"not null;default:0"`
	ExternalCreatedAt *time.Time
	ExternalUpdatedAt *time.Time `gorm:"index"`
	RawJSON           datatypes.JSON
	CreatedAt         time.Time `gorm:"autoCreateTime"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`
}

func (Product) TableName() string {
	return "products"
}
