package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// OpenDatabase opens the SQLite database at path with foreign keys enabled and
// write transactions started as BEGIN IMMEDIATE, so concurrent schema edits serialize.
func OpenDatabase(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_txlock=immediate&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, WrapDatabaseError(ErrTypeConnection, "failed to open database", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, WrapDatabaseError(ErrTypeConnection, "failed to ping database", err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS groupfolders (
		id INTEGER PRIMARY KEY,
		mount_point TEXT NOT NULL DEFAULT '',
		schema_version INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS metadata_fields (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		options TEXT NOT NULL DEFAULT '[]',
		required INTEGER NOT NULL DEFAULT 0,
		default_value TEXT NOT NULL DEFAULT '',
		sort_order INTEGER NOT NULL DEFAULT 0,
		constraints TEXT NOT NULL DEFAULT '{}',
		scope TEXT NOT NULL,
		groupfolder_id INTEGER REFERENCES groupfolders(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_metadata_fields_scope ON metadata_fields (scope, groupfolder_id)`,
	`CREATE TABLE IF NOT EXISTS groupfolder_field_assignments (
		groupfolder_id INTEGER NOT NULL REFERENCES groupfolders(id) ON DELETE CASCADE,
		field_id TEXT NOT NULL REFERENCES metadata_fields(id) ON DELETE CASCADE,
		PRIMARY KEY (groupfolder_id, field_id)
	)`,
	`CREATE TABLE IF NOT EXISTS groupfolder_field_overrides (
		groupfolder_id INTEGER NOT NULL REFERENCES groupfolders(id) ON DELETE CASCADE,
		field_id TEXT NOT NULL REFERENCES metadata_fields(id) ON DELETE CASCADE,
		payload TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (groupfolder_id, field_id)
	)`,
	`CREATE TABLE IF NOT EXISTS file_metadata (
		file_id INTEGER NOT NULL,
		field_id TEXT NOT NULL REFERENCES metadata_fields(id) ON DELETE CASCADE,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (file_id, field_id)
	)`,
	`CREATE TABLE IF NOT EXISTS groupfolder_file_metadata (
		groupfolder_id INTEGER NOT NULL REFERENCES groupfolders(id) ON DELETE CASCADE,
		file_id INTEGER NOT NULL,
		field_id TEXT NOT NULL REFERENCES metadata_fields(id) ON DELETE CASCADE,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (groupfolder_id, file_id, field_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_groupfolder_file_metadata_file ON groupfolder_file_metadata (file_id)`,
	`CREATE TABLE IF NOT EXISTS groupfolder_metadata (
		groupfolder_id INTEGER NOT NULL REFERENCES groupfolders(id) ON DELETE CASCADE,
		field_id TEXT NOT NULL REFERENCES metadata_fields(id) ON DELETE CASCADE,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (groupfolder_id, field_id)
	)`,
	`CREATE TABLE IF NOT EXISTS deleted_files (
		file_id INTEGER PRIMARY KEY,
		groupfolder_id INTEGER,
		deleted_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS metadata_search_index (
		file_id INTEGER NOT NULL,
		groupfolder_id INTEGER,
		field_id TEXT NOT NULL,
		field_name TEXT NOT NULL,
		value TEXT NOT NULL,
		search_text TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_metadata_search_index_file ON metadata_search_index (file_id)`,
	`CREATE TABLE IF NOT EXISTS license_usage_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		global_fields INTEGER NOT NULL,
		groupfolder_fields INTEGER NOT NULL,
		groupfolders INTEGER NOT NULL,
		files_with_metadata INTEGER NOT NULL,
		total_values INTEGER NOT NULL,
		generated_at DATETIME NOT NULL
	)`,
}

// Migrate creates all tables that do not exist yet
func Migrate(ctx context.Context, db *sql.DB) error {
	return WithTransaction(ctx, db, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return WrapDatabaseError(ErrTypeQuery, "failed to apply schema", err)
			}
		}
		return nil
	})
}

// now is the timestamp used for all writes; UTC and second precision so values survive a round trip
func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
