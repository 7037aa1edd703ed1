// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"storesync/internal/db"
	"storesync/internal/models"
)

// OpenSQLite returns a migrated in-memory database private to the test.
func OpenSQLite(t testing.TB) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file::memory:"), db.GormConfig())
	require.NoError(t, err)

	sqldb, err := gdb.DB()
	require.NoError(t, err)
	// every pooled connection would otherwise get its own empty database
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqldb.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

// SeedTenant inserts an active tenant with credentials.
func SeedTenant(t testing.TB, gdb *gorm.DB, shop string) models.Tenant {
	t.Helper()
	tenant := models.Tenant{
		Name:          shop,
		ShopDomain:    shop,
		AccessToken:   "token-" + shop,
		WebhookSecret: "secret-" + shop,
		IsActive:      true,
	}
	require.NoError(t, gdb.Create(&tenant).Error)
	return tenant
}
