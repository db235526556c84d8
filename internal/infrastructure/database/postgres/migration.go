// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"fmt"
	"log"

	"github.com/varalakshmimaha/Mahafashion-sub000/internal/domain/diagnostics"
	"gorm.io/gorm"
)

// Migration handles database migrations
type Migration struct {
	db *gorm.DB
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB) *Migration {
	return &Migration{
		db: db,
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	log.Println("🔄 Running database auto-migrations...")

	models := []interface{}{
		&diagnostics.DivergenceEvent{},
	}

	for _, model := range models {
		log.Printf("Migrating model: %T", model)
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	log.Println("✅ Database auto-migrations completed successfully")
	return nil
}

// CreateIndexes creates additional indexes for operator queries
func (m *Migration) CreateIndexes() error {
	log.Println("🔄 Creating additional database indexes...")

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_divergence_session_occurred ON cart_divergence_events(session_id, occurred_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_divergence_operation_occurred ON cart_divergence_events(operation, occurred_at DESC)",
	}

	for _, index := range indexes {
		if err := m.db.Exec(index).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	log.Println("✅ Database indexes created successfully")
	return nil
}

// PruneDivergenceEvents deletes ledger rows older than the given number of days
func (m *Migration) PruneDivergenceEvents(days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	result := m.db.Exec(
		"DELETE FROM cart_divergence_events WHERE occurred_at < NOW() - make_interval(days => ?)", days,
	)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune divergence events: %w", result.Error)
	}
	log.Printf("🧹 Pruned %d divergence events older than %d days", result.RowsAffected, days)
	return result.RowsAffected, nil
}
