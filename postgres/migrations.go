package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateSchema bootstraps the tables this service reads and writes. The page
// table is owned by the content service; the shape here mirrors the columns
// this core consumes.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS integrations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			direction TEXT NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			token TEXT NOT NULL,
			synced_at TIMESTAMPTZ,
			task_name TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS integrations_user_provider_direction
			ON integrations (user_id, name, direction) WHERE enabled`,
		`CREATE TABLE IF NOT EXISTS pages (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			url TEXT NOT NULL,
			state TEXT NOT NULL DEFAULT 'SUCCEEDED',
			labels JSONB,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS pages_user_updated ON pages (user_id, updated_at)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema migration failed: %w", err)
		}
	}

	return nil
}
