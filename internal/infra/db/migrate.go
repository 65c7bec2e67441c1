package db

import (
	"context"
	"database/sql"
	"fmt"
)

// schema returns the table definitions of dialect in creation order.
//
// feeds/feed_meta mirror the store's post + postmeta layout: every rule
// field lives in feed_meta under the key {namespace}_feed_{field_id}.
func schema(dialect Dialect) []string {
	id := "BIGSERIAL PRIMARY KEY"
	ts := "TIMESTAMPTZ NOT NULL DEFAULT now()"
	if dialect == SQLite {
		id = "INTEGER PRIMARY KEY AUTOINCREMENT"
		ts = "TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP"
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS feeds (
    id         ` + id + `,
    namespace  TEXT NOT NULL,
    title      TEXT NOT NULL DEFAULT '',
    created_at ` + ts + `
)`,
		`CREATE TABLE IF NOT EXISTS feed_meta (
    feed_id    BIGINT NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
    meta_key   TEXT NOT NULL,
    meta_value TEXT NOT NULL,
    PRIMARY KEY (feed_id, meta_key)
)`,
		`CREATE TABLE IF NOT EXISTS users (
    id           BIGINT PRIMARY KEY,
    display_name TEXT NOT NULL DEFAULT '',
    login        TEXT NOT NULL DEFAULT '',
    email        TEXT NOT NULL DEFAULT ''
)`,
		`CREATE TABLE IF NOT EXISTS deliveries (
    id          TEXT PRIMARY KEY,
    event_id    TEXT NOT NULL DEFAULT '',
    rule_id     BIGINT NOT NULL DEFAULT 0,
    namespace   TEXT NOT NULL DEFAULT '',
    trigger     TEXT NOT NULL,
    status      TEXT NOT NULL,
    reason      TEXT NOT NULL DEFAULT '',
    kind        TEXT NOT NULL DEFAULT '',
    attempts    INTEGER NOT NULL DEFAULT 0,
    error       TEXT NOT NULL DEFAULT '',
    duration_ms BIGINT NOT NULL DEFAULT 0,
    created_at  ` + ts + `
)`,
		`CREATE INDEX IF NOT EXISTS idx_feeds_namespace ON feeds(namespace)`,
		`CREATE INDEX IF NOT EXISTS idx_feed_meta_key_value ON feed_meta(meta_key, meta_value)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_created_at ON deliveries(created_at DESC)`,
	}
}

// MigrateUp creates the bridge schema. It is idempotent.
func MigrateUp(ctx context.Context, db *sql.DB, dialect Dialect) error {
	if _, err := dialect.driverName(); err != nil {
		return err
	}
	for i, stmt := range schema(dialect) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate up step %d: %w", i+1, err)
		}
	}
	return nil
}

// MigrateDown rolls back the database schema.
// Use with caution: this will delete all data in the affected tables.
func MigrateDown(ctx context.Context, db *sql.DB) error {
	dropStatements := []string{
		`DROP TABLE IF EXISTS deliveries`,
		`DROP TABLE IF EXISTS users`,
		`DROP TABLE IF EXISTS feed_meta`,
		`DROP TABLE IF EXISTS feeds`,
	}
	for _, stmt := range dropStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
	}
	return nil
}
