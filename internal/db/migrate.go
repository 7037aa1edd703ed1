package db

import (
	"gorm.io/gorm"

	"storesync/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}
	return Migrate(db.Gorm)
}

// Migrate creates or updates every table owned by the engine.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.Tenant{},
		&models.Customer{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.CustomEvent{},
		&models.SyncLog{},
		&models.AbandonmentCheck{},
	)
}
