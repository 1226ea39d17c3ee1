package database

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql"
)

// CreateGINIndexes creates full-text search GIN indexes for PostgreSQL.
// These back the "hint only, never authority" full-text search used by
// duplicate-ticket detection (Entity Store, §4.2).
func CreateGINIndexes(ctx context.Context, driver *sql.Driver) error {
	db := driver.DB()

	// GIN index for ticket description full-text search
	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_tickets_description_gin
		ON tickets USING gin(to_tsvector('english', description))`)
	if err != nil {
		return fmt.Errorf("failed to create ticket description GIN index: %w", err)
	}

	// GIN index for spec description full-text search
	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_specs_description_gin
		ON specs USING gin(to_tsvector('english', description))`)
	if err != nil {
		return fmt.Errorf("failed to create spec description GIN index: %w", err)
	}

	return nil
}
