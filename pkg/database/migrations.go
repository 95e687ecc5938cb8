package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/gantryio/gantry/pkg/models"
)

// Migration represents a database migration
type Migration struct {
	ID        uint      `gorm:"primaryKey"`
	Version   string    `gorm:"uniqueIndex;not null"`
	Name      string    `gorm:"not null"`
	AppliedAt time.Time `gorm:"not null"`
}

// MigrationFunc is a function that performs a migration
type MigrationFunc func(*gorm.DB) error

// MigrationEntry represents a single migration
type MigrationEntry struct {
	Version string
	Name    string
	Up      MigrationFunc
}

// Migrator handles database migrations
type Migrator struct {
	db         *gorm.DB
	migrations []MigrationEntry
}

// NewMigrator creates a new migrator instance
func NewMigrator(db *gorm.DB) *Migrator {
	return &Migrator{
		db:         db,
		migrations: getAllMigrations(),
	}
}

// Migrate runs all pending migrations
func (m *Migrator) Migrate() error {
	// Ensure migrations table exists
	if err := m.db.AutoMigrate(&Migration{}); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Get applied migrations
	var appliedMigrations []Migration
	if err := m.db.Find(&appliedMigrations).Error; err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	// Create a map of applied versions
	applied := make(map[string]bool)
	for _, migration := range appliedMigrations {
		applied[migration.Version] = true
	}

	// Run pending migrations
	for _, migration := range m.migrations {
		if applied[migration.Version] {
			continue
		}

		fmt.Printf("Running migration %s: %s\n", migration.Version, migration.Name)

		// Run migration in a transaction
		err := m.db.Transaction(func(tx *gorm.DB) error {
			if err := migration.Up(tx); err != nil {
				return err
			}

			// Record migration
			return tx.Create(&Migration{
				Version:   migration.Version,
				Name:      migration.Name,
				AppliedAt: time.Now(),
			}).Error
		})

		if err != nil {
			return fmt.Errorf("failed to run migration %s: %w", migration.Version, err)
		}

		fmt.Printf("Completed migration %s\n", migration.Version)
	}

	return nil
}

// GetPendingMigrations returns a list of pending migrations
func (m *Migrator) GetPendingMigrations() ([]MigrationEntry, error) {
	// Get applied migrations
	var appliedMigrations []Migration
	if err := m.db.Find(&appliedMigrations).Error; err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	// Create a map of applied versions
	applied := make(map[string]bool)
	for _, migration := range appliedMigrations {
		applied[migration.Version] = true
	}

	// Find pending migrations
	var pending []MigrationEntry
	for _, migration := range m.migrations {
		if !applied[migration.Version] {
			pending = append(pending, migration)
		}
	}

	return pending, nil
}

// getAllMigrations returns all migrations in order
func getAllMigrations() []MigrationEntry {
	return []MigrationEntry{
		{
			Version: "20250601_001",
			Name:    "Create catalog schema",
			Up:      migration001CreateCatalogSchema,
		},
		{
			Version: "20250601_002",
			Name:    "Add pagination indexes",
			Up:      migration002AddPaginationIndexes,
		},
	}
}

// migration001CreateCatalogSchema creates the catalog tables
func migration001CreateCatalogSchema(tx *gorm.DB) error {
	// Enable UUID extension (PostgreSQL only; the sqlite test binding
	// generates identifiers client-side)
	if tx.Dialector.Name() == "postgres" {
		if err := tx.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
			return fmt.Errorf("failed to create UUID extension: %w", err)
		}
	}

	if err := tx.AutoMigrate(
		&models.Author{},
		&models.Book{},
		&models.AuditEntry{},
	); err != nil {
		return fmt.Errorf("failed to migrate catalog models: %w", err)
	}

	return nil
}

// migration002AddPaginationIndexes adds the indexes backing stable list
// ordering and the author-scoped book listing
func migration002AddPaginationIndexes(tx *gorm.DB) error {
	indexes := []string{
		// Stable pagination order is (created_at, id)
		"CREATE INDEX IF NOT EXISTS idx_authors_created_at_id ON authors(created_at, id)",
		"CREATE INDEX IF NOT EXISTS idx_books_created_at_id ON books(created_at, id)",

		// Author-scoped book listing
		"CREATE INDEX IF NOT EXISTS idx_books_author_created ON books(author_id, created_at)",

		// Audit trail lookups by entity
		"CREATE INDEX IF NOT EXISTS idx_audit_entries_entity ON audit_entries(entity_kind, entity_id)",
	}

	for _, index := range indexes {
		if err := tx.Exec(index).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}
