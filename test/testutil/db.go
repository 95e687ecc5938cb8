package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gantryio/gantry/pkg/models"
)

// NewTestDB creates a new in-memory SQLite database for testing with the
// catalog schema migrated.
func NewTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// A single connection keeps every session, including transactions,
	// on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Author{},
		&models.Book{},
		&models.AuditEntry{},
	))
	return db
}

// TruncateTables removes all rows from the given tables.
func TruncateTables(t *testing.T, db *gorm.DB, tables ...string) {
	for _, table := range tables {
		require.NoError(t, db.Exec("DELETE FROM "+table).Error)
	}
}
