package models

import "time"

// Tenant is a merchant store connected to the engine.
type Tenant struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement"`
	UserID        uint64    `gorm:"index;not null;default:0;comment:owning user"`
	Name          string    `gorm:"type:text;not null;default:''"`
	ShopDomain    string    `gorm:"type:text;uniqueIndex;not null;comment:upstream shop domain"`
	AccessToken   string    `gorm:"type:text;not null;default:''"`
	WebhookSecret string    `gorm:"type:text;not null;default:''"`
	IsActive      bool      `gorm:"not null;default:true;index"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`

	Customers    []Customer    `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE"`
	Orders       []Order       `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE"`
	Products     []Product     `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE"`
	CustomEvents []CustomEvent `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE"`
	SyncLogs     []SyncLog     `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE"`
}

func (Tenant) TableName() string {
	return "tenants"
}

// Syncable reports whether scheduled and manual syncs may run for the tenant.
func (t Tenant) Syncable() bool {
	return t.IsActive && t.ShopDomain != "" && t.AccessToken != ""
}
