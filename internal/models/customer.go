package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Customer struct {
	ID                uint64          `gorm:"primaryKey;autoIncrement"`
	TenantID          uint64          `gorm:"not null;uniqueIndex:ux_customers_external_tenant,priority:2;index"`
	ExternalID        string          `gorm:"type:text;not null;uniqueIndex:ux_customers_external_tenant,priority:1"`
	Email             *string         `gorm:"type:text;index"`
	FirstName         *string         `gorm:"type:text"`
	LastName          *string         `gorm:"type:text"`
	Phone             *string         `gorm:"type:text"`
	State             *string         `gorm:"type:text"`
	Tags              *string         `gorm:"type:text"`
	OrdersCount       int             `gorm:"not null;default:0"`
	TotalSpent        decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0"`
	AcceptsMarketing  bool            `gorm:"not null;default:false"`
	ExternalCreatedAt *time.Time
	ExternalUpdatedAt *time.Time `gorm:"index"`
	RawJSON           datatypes.JSON
	CreatedAt         time.Time `gorm:"autoCreateTime"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`
}

func (Customer) TableName() string {
	return "customers"
}
