package services

import (
	"context"
	"database/sql"
	"strings"

	"groupfolderMetadata/internal/models"
)

// GroupfolderService keeps the local registry of host groupfolders
type GroupfolderService struct {
	db    *sql.DB
	cache *SchemaCache
}

// NewGroupfolderService creates a new groupfolder registry
func NewGroupfolderService(db *sql.DB, cache *SchemaCache) *GroupfolderService {
	return &GroupfolderService{db: db, cache: cache}
}

// UpsertGroupfolder registers a groupfolder or updates its mount point
func (s *GroupfolderService) UpsertGroupfolder(ctx context.Context, gid int64, mountPoint string) (*models.Groupfolder, error) {
	mountPoint = strings.TrimSpace(mountPoint)

	v := NewValidator()
	if gid <= 0 {
		v.AddError("id", "must be a positive integer")
	}
	v.ValidateLength(mountPoint, "mount_point", 0, maxNameLength)
	v.ValidateSafeText(mountPoint, "mount_point")
	if err := v.Err("invalid groupfolder"); err != nil {
		return nil, err
	}

	ts := now()
	err := WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO groupfolders (id, mount_point, schema_version, created_at, updated_at)
			VALUES (?, ?, 0, ?, ?)
			ON CONFLICT(id) DO UPDATE SET mount_point = excluded.mount_point, updated_at = excluded.updated_at
			WHERE groupfolders.mount_point <> excluded.mount_point
		`, gid, mountPoint, ts, ts)
		if err != nil {
			return WrapDatabaseError(ErrTypeQuery, "failed to upsert groupfolder", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// a re-registered groupfolder restarts at version 0
	s.cache.Invalidate(ctx, gid)
	return s.GetGroupfolder(ctx, gid)
}

// GetGroupfolder retrieves a groupfolder by id
func (s *GroupfolderService) GetGroupfolder(ctx context.Context, gid int64) (*models.Groupfolder, error) {
	var g models.Groupfolder
	err := s.db.QueryRowContext(ctx, `
		SELECT id, mount_point, schema_version, created_at, updated_at
		FROM groupfolders WHERE id = ?
	`, gid).Scan(&g.ID, &g.MountPoint, &g.SchemaVersion, &g.CreatedAt, &g.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, NotFound("groupfolder", gid)
	}
	if err != nil {
		return nil, WrapDatabaseError(ErrTypeQuery, "failed to query groupfolder", err)
	}
	return &g, nil
}

// ListGroupfolders returns all registered groupfolders ordered by mount point
func (s *GroupfolderService) ListGroupfolders(ctx context.Context) ([]models.Groupfolder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mount_point, schema_version, created_at, updated_at
		FROM groupfolders ORDER BY mount_point, id
	`)
	if err != nil {
		return nil, WrapDatabaseError(ErrTypeQuery, "failed to query groupfolders", err)
	}
	defer rows.Close()

	groupfolders := make([]models.Groupfolder, 0)
	for rows.Next() {
		var g models.Groupfolder
		if err := rows.Scan(&g.ID, &g.MountPoint, &g.SchemaVersion, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, WrapDatabaseError(ErrTypeQuery, "failed to scan groupfolder", err)
		}
		groupfolders = append(groupfolders, g)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapDatabaseError(ErrTypeQuery, "failed to read groupfolders", err)
	}
	return groupfolders, nil
}

// DeleteGroupfolder removes a groupfolder with its own fields, assignments, overrides and values
func (s *GroupfolderService) DeleteGroupfolder(ctx context.Context, gid int64) error {
	err := WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		if err := requireGroupfolder(ctx, tx, gid); err != nil {
			return err
		}

		stmts := []string{
			`DELETE FROM groupfolder_field_overrides WHERE groupfolder_id = ?`,
			`DELETE FROM groupfolder_field_assignments WHERE groupfolder_id = ?`,
			`DELETE FROM groupfolder_file_metadata WHERE groupfolder_id = ?`,
			`DELETE FROM groupfolder_metadata WHERE groupfolder_id = ?`,
			`DELETE FROM metadata_search_index WHERE groupfolder_id = ?`,
			`DELETE FROM file_metadata WHERE field_id IN (SELECT id FROM metadata_fields WHERE groupfolder_id = ?)`,
			`DELETE FROM groupfolder_field_overrides WHERE field_id IN (SELECT id FROM metadata_fields WHERE groupfolder_id = ?)`,
			`DELETE FROM groupfolder_field_assignments WHERE field_id IN (SELECT id FROM metadata_fields WHERE groupfolder_id = ?)`,
			`DELETE FROM metadata_fields WHERE groupfolder_id = ?`,
			`DELETE FROM groupfolders WHERE id = ?`,
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt, gid); err != nil {
				return WrapDatabaseError(ErrTypeQuery, "failed to delete groupfolder", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(ctx, gid)
	return nil
}

// requireGroupfolder returns NotFound if gid is not registered
func requireGroupfolder(ctx context.Context, q queryer, gid int64) error {
	var exists int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM groupfolders WHERE id = ?`, gid).Scan(&exists)
	if err == sql.ErrNoRows {
		return NotFound("groupfolder", gid)
	}
	if err != nil {
		return WrapDatabaseError(ErrTypeQuery, "failed to query groupfolder", err)
	}
	return nil
}

// schemaVersion returns the current schema version of gid
func schemaVersion(ctx context.Context, q queryer, gid int64) (int64, error) {
	var version int64
	err := q.QueryRowContext(ctx, `SELECT schema_version FROM groupfolders WHERE id = ?`, gid).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, NotFound("groupfolder", gid)
	}
	if err != nil {
		return 0, WrapDatabaseError(ErrTypeQuery, "failed to read schema version", err)
	}
	return version, nil
}

// bumpSchemaVersion increments the schema version of gid inside tx and returns the new version.
// When expected is set and does not match the stored version the write is rejected with Conflict.
func bumpSchemaVersion(ctx context.Context, tx *sql.Tx, gid int64, expected *int64) (int64, error) {
	version, err := schemaVersion(ctx, tx, gid)
	if err != nil {
		return 0, err
	}
	if expected != nil && *expected != version {
		return 0, Conflict("groupfolder %d schema was modified concurrently (expected version %d, current %d)", gid, *expected, version)
	}

	version++
	_, err = tx.ExecContext(ctx, `UPDATE groupfolders SET schema_version = ?, updated_at = ? WHERE id = ?`, version, now(), gid)
	if err != nil {
		return 0, WrapDatabaseError(ErrTypeQuery, "failed to bump schema version", err)
	}
	return version, nil
}
