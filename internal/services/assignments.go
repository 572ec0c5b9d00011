package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"

	"groupfolderMetadata/internal/models"
)

// AssignmentService resolves which fields apply to a groupfolder and manages per-groupfolder overrides
type AssignmentService struct {
	db    *sql.DB
	cache *SchemaCache
}

// NewAssignmentService creates a new assignment resolver
func NewAssignmentService(db *sql.DB, cache *SchemaCache) *AssignmentService {
	return &AssignmentService{db: db, cache: cache}
}

// maxResolveAttempts bounds how often GetAssignedSchema re-resolves while the schema keeps changing
const maxResolveAttempts = 3

// GetAssignedFields returns the effective schema of a groupfolder: its assigned global fields
// and its own fields, each with the groupfolder's override applied.
func (s *AssignmentService) GetAssignedFields(ctx context.Context, gid int64) ([]models.Field, error) {
	fields, _, err := s.GetAssignedSchema(ctx, gid)
	return fields, err
}

// GetAssignedSchema returns the effective schema of gid and the schema version it belongs to.
// Cache entries carry the version they were resolved at and are only served for that version.
// If the schema keeps changing during resolution the fields may be newer than the returned
// version; a write made with that version then fails with Conflict.
func (s *AssignmentService) GetAssignedSchema(ctx context.Context, gid int64) ([]models.Field, int64, error) {
	version, err := schemaVersion(ctx, s.db, gid)
	if err != nil {
		return nil, 0, err
	}
	if fields, ok := s.cache.get(ctx, gid, version); ok {
		return fields, version, nil
	}

	for attempt := 1; ; attempt++ {
		fields, err := resolveFields(ctx, s.db, gid)
		if err != nil {
			return nil, 0, err
		}
		after, err := schemaVersion(ctx, s.db, gid)
		if err != nil {
			return nil, 0, err
		}
		if after == version {
			s.cache.set(ctx, gid, version, fields)
			return fields, version, nil
		}
		if attempt == maxResolveAttempts {
			return fields, version, nil
		}
		version = after
	}
}

// SetAssignedFields replaces the assignment set of a groupfolder and returns the new schema version.
// Values of global fields that drop out of the set are removed in the same transaction.
func (s *AssignmentService) SetAssignedFields(ctx context.Context, gid int64, fieldIDs []string, expectedVersion *int64) (int64, error) {
	ids := dedupeIDs(fieldIDs)

	var version int64
	err := WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		version, err = bumpSchemaVersion(ctx, tx, gid, expectedVersion)
		if err != nil {
			return err
		}

		v := NewValidator()
		globals := make([]string, 0, len(ids))
		for _, id := range ids {
			f, err := loadField(ctx, tx, id)
			if err != nil {
				return err
			}
			switch {
			case f == nil:
				v.AddError(id, "does not exist")
			case f.Scope == models.ScopeGlobal:
				globals = append(globals, id)
			case f.GroupfolderID == nil || *f.GroupfolderID != gid:
				v.AddError(id, "belongs to another groupfolder")
			}
		}
		if err := v.Err("invalid field assignment"); err != nil {
			return err
		}

		previous, err := assignedGlobalIDs(ctx, tx, gid)
		if err != nil {
			return err
		}
		keep := make(map[string]bool, len(globals))
		for _, id := range globals {
			keep[id] = true
		}
		for _, id := range previous {
			if keep[id] {
				continue
			}
			if err := purgeGroupfolderValues(ctx, tx, gid, id); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM groupfolder_field_assignments WHERE groupfolder_id = ?`, gid); err != nil {
			return WrapDatabaseError(ErrTypeQuery, "failed to clear assignments", err)
		}
		for _, id := range globals {
			_, err := tx.ExecContext(ctx, `INSERT INTO groupfolder_field_assignments (groupfolder_id, field_id) VALUES (?, ?)`, gid, id)
			if err != nil {
				return WrapDatabaseError(ErrTypeConstraint, "failed to assign field", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.cache.Invalidate(ctx, gid)
	return version, nil
}

// GetFieldOverrides lists the overrides saved for a groupfolder
func (s *AssignmentService) GetFieldOverrides(ctx context.Context, gid int64) ([]models.FieldOverride, error) {
	if err := requireGroupfolder(ctx, s.db, gid); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT field_id, payload, updated_at FROM groupfolder_field_overrides
		WHERE groupfolder_id = ? ORDER BY field_id
	`, gid)
	if err != nil {
		return nil, WrapDatabaseError(ErrTypeQuery, "failed to query overrides", err)
	}
	defer rows.Close()

	overrides := make([]models.FieldOverride, 0)
	for rows.Next() {
		o := models.FieldOverride{GroupfolderID: gid}
		var payload string
		if err := rows.Scan(&o.FieldID, &payload, &o.UpdatedAt); err != nil {
			return nil, WrapDatabaseError(ErrTypeQuery, "failed to scan override", err)
		}
		if err := json.Unmarshal([]byte(payload), &o.OverridePatch); err != nil {
			return nil, WrapDatabaseError(ErrTypeQuery, "corrupt override payload", err)
		}
		overrides = append(overrides, o)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapDatabaseError(ErrTypeQuery, "failed to read overrides", err)
	}
	return overrides, nil
}

// SaveFieldOverride stores or replaces the override of one field in a groupfolder.
// It returns the saved override and the new schema version.
func (s *AssignmentService) SaveFieldOverride(ctx context.Context, gid int64, fieldID string, patch models.OverridePatch, expectedVersion *int64) (*models.FieldOverride, int64, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}
	if patch.IsEmpty() {
		return nil, 0, ValidationFailed("invalid field override", map[string]string{"override": "must change at least one attribute"})
	}

	saved := models.FieldOverride{GroupfolderID: gid, FieldID: fieldID, UpdatedAt: now()}
	var version int64
	err := WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		version, err = bumpSchemaVersion(ctx, tx, gid, expectedVersion)
		if err != nil {
			return err
		}

		base, err := loadField(ctx, tx, fieldID)
		if err != nil {
			return err
		}
		if base == nil || (base.Scope == models.ScopeGroupfolder && (base.GroupfolderID == nil || *base.GroupfolderID != gid)) {
			return NotFound("field", fieldID)
		}

		effective := models.ApplyOverride(*base, &patch)
		if err := ValidateEffective(effective); err != nil {
			return err
		}
		if patch.DefaultValue != nil && *patch.DefaultValue != "" {
			stored, _, err := NormalizeValue(effective, *patch.DefaultValue)
			if err != nil {
				return ValidationFailed("invalid field override", map[string]string{"default_value": err.Error()})
			}
			patch.DefaultValue = &stored
		}
		saved.OverridePatch = patch

		payload, err := json.Marshal(patch)
		if err != nil {
			return WrapDatabaseError(ErrTypeQuery, "failed to encode override", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO groupfolder_field_overrides (groupfolder_id, field_id, payload, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(groupfolder_id, field_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
		`, gid, fieldID, string(payload), saved.UpdatedAt)
		if err != nil {
			return WrapDatabaseError(ErrTypeQuery, "failed to save override", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	s.cache.Invalidate(ctx, gid)
	return &saved, version, nil
}

// DeleteFieldOverride removes the override of one field so the base definition applies again
func (s *AssignmentService) DeleteFieldOverride(ctx context.Context, gid int64, fieldID string, expectedVersion *int64) (int64, error) {
	var version int64
	err := WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		version, err = bumpSchemaVersion(ctx, tx, gid, expectedVersion)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM groupfolder_field_overrides WHERE groupfolder_id = ? AND field_id = ?`, gid, fieldID)
		if err != nil {
			return WrapDatabaseError(ErrTypeQuery, "failed to delete override", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return NotFound("field override", fieldID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.cache.Invalidate(ctx, gid)
	return version, nil
}

// resolveFields computes the effective schema of gid from storage
func resolveFields(ctx context.Context, q queryer, gid int64) ([]models.Field, error) {
	base, err := queryFields(ctx, q, `
		(scope = ? AND id IN (SELECT field_id FROM groupfolder_field_assignments WHERE groupfolder_id = ?))
		OR (scope = ? AND groupfolder_id = ?)
	`, models.ScopeGlobal, gid, models.ScopeGroupfolder, gid)
	if err != nil {
		return nil, err
	}

	patches, err := loadOverridePatches(ctx, q, gid)
	if err != nil {
		return nil, err
	}

	fields := make([]models.Field, 0, len(base))
	for _, f := range base {
		fields = append(fields, models.ApplyOverride(f, patches[f.ID]))
	}
	sort.SliceStable(fields, func(i, j int) bool {
		a, b := fields[i], fields[j]
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return fields, nil
}

func loadOverridePatches(ctx context.Context, q queryer, gid int64) (map[string]*models.OverridePatch, error) {
	rows, err := q.QueryContext(ctx, `SELECT field_id, payload FROM groupfolder_field_overrides WHERE groupfolder_id = ?`, gid)
	if err != nil {
		return nil, WrapDatabaseError(ErrTypeQuery, "failed to query overrides", err)
	}
	defer rows.Close()

	patches := make(map[string]*models.OverridePatch)
	for rows.Next() {
		var fieldID, payload string
		if err := rows.Scan(&fieldID, &payload); err != nil {
			return nil, WrapDatabaseError(ErrTypeQuery, "failed to scan override", err)
		}
		var p models.OverridePatch
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, WrapDatabaseError(ErrTypeQuery, "corrupt override payload", err)
		}
		patches[fieldID] = &p
	}
	return patches, rows.Err()
}

func assignedGlobalIDs(ctx context.Context, q queryer, gid int64) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT field_id FROM groupfolder_field_assignments WHERE groupfolder_id = ?`, gid)
	if err != nil {
		return nil, WrapDatabaseError(ErrTypeQuery, "failed to query assignments", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, WrapDatabaseError(ErrTypeQuery, "failed to scan assignment", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// purgeGroupfolderValues removes every value of fieldID stored inside gid
func purgeGroupfolderValues(ctx context.Context, tx *sql.Tx, gid int64, fieldID string) error {
	for _, stmt := range []string{
		`DELETE FROM groupfolder_file_metadata WHERE groupfolder_id = ? AND field_id = ?`,
		`DELETE FROM groupfolder_metadata WHERE groupfolder_id = ? AND field_id = ?`,
		`DELETE FROM metadata_search_index WHERE groupfolder_id = ? AND field_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, gid, fieldID); err != nil {
			return WrapDatabaseError(ErrTypeQuery, "failed to purge unassigned values", err)
		}
	}
	return nil
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
