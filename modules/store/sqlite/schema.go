package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id           TEXT PRIMARY KEY,
		full_name         TEXT    NOT NULL DEFAULT '',
		age               INTEGER NOT NULL DEFAULT 0,
		gender            TEXT    NOT NULL DEFAULT '',
		previous_diseases TEXT    NOT NULL DEFAULT '[]',
		current_symptoms  TEXT    NOT NULL DEFAULT '[]',
		medications       TEXT    NOT NULL DEFAULT '[]',
		allergies         TEXT    NOT NULL DEFAULT '[]',
		additional_notes  TEXT    NOT NULL DEFAULT '',
		created_at        TEXT    NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS messages (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    TEXT NOT NULL,
		role       TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
		content    TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_messages_user_seq ON messages(user_id, seq)`,

	`CREATE TABLE IF NOT EXISTS summaries (
		user_id         TEXT PRIMARY KEY,
		summary         TEXT    NOT NULL,
		last_folded_seq INTEGER NOT NULL DEFAULT 0,
		updated_at      TEXT    NOT NULL
	)`,
}

// migrate creates or updates the database schema to the latest version.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}
	return nil
}
