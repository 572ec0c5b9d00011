package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"groupfolderMetadata/internal/models"
)

// DeletePolicy decides what happens to dependent rows when a field is deleted
type DeletePolicy string

const (
	// DeletePolicyCascade removes overrides, assignments and values together with the field
	DeletePolicyCascade DeletePolicy = "cascade"
	// DeletePolicyReject refuses to delete a field that anything still depends on
	DeletePolicyReject DeletePolicy = "reject"
)

// ParseDeletePolicy parses a policy name, defaulting to cascade
func ParseDeletePolicy(s string) (DeletePolicy, error) {
	switch DeletePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", DeletePolicyCascade:
		return DeletePolicyCascade, nil
	case DeletePolicyReject:
		return DeletePolicyReject, nil
	}
	return "", fmt.Errorf("unknown field delete policy %q", s)
}

const fieldColumns = `id, name, type, description, options, required, default_value, sort_order,
	constraints, scope, groupfolder_id, created_at, updated_at`

const fieldOrder = ` ORDER BY sort_order, name, id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanField(row rowScanner) (models.Field, error) {
	var (
		f           models.Field
		options     string
		constraints string
		gid         sql.NullInt64
	)
	err := row.Scan(&f.ID, &f.Name, &f.Type, &f.Description, &options, &f.Required, &f.DefaultValue,
		&f.SortOrder, &constraints, &f.Scope, &gid, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal([]byte(options), &f.Options); err != nil {
		return f, WrapDatabaseError(ErrTypeQuery, "corrupt field options", err)
	}
	if len(f.Options) == 0 {
		f.Options = nil
	}
	if err := json.Unmarshal([]byte(constraints), &f.Constraints); err != nil {
		return f, WrapDatabaseError(ErrTypeQuery, "corrupt field constraints", err)
	}
	if gid.Valid {
		id := gid.Int64
		f.GroupfolderID = &id
	}
	return f, nil
}

func queryFields(ctx context.Context, q queryer, where string, args ...interface{}) ([]models.Field, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+fieldColumns+` FROM metadata_fields WHERE `+where+fieldOrder, args...)
	if err != nil {
		return nil, WrapDatabaseError(ErrTypeQuery, "failed to query fields", err)
	}
	defer rows.Close()

	fields := make([]models.Field, 0)
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, WrapDatabaseError(ErrTypeQuery, "failed to scan field", err)
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapDatabaseError(ErrTypeQuery, "failed to read fields", err)
	}
	return fields, nil
}

// loadField returns the field with id, or nil when it does not exist
func loadField(ctx context.Context, q queryer, id string) (*models.Field, error) {
	row := q.QueryRowContext(ctx, `SELECT `+fieldColumns+` FROM metadata_fields WHERE id = ?`, id)
	f, err := scanField(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, WrapDatabaseError(ErrTypeQuery, "failed to load field", err)
	}
	return &f, nil
}

// newField builds a field record from a validated definition
func newField(def models.FieldDefinition, scope models.FieldScope, gid *int64) models.Field {
	id := def.ID
	if id == "" {
		id = uuid.NewString()
	}
	ts := now()
	return models.Field{
		ID:            id,
		Name:          def.Name,
		Type:          def.Type,
		Description:   def.Description,
		Options:       append([]string(nil), def.Options...),
		Required:      def.Required,
		DefaultValue:  def.DefaultValue,
		SortOrder:     def.SortOrder,
		Constraints:   def.Constraints,
		Scope:         scope,
		GroupfolderID: gid,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
}

// applyDefinition replaces the mutable attributes of f
func applyDefinition(f *models.Field, def models.FieldDefinition) {
	f.Name = def.Name
	f.Type = def.Type
	f.Description = def.Description
	f.Options = append([]string(nil), def.Options...)
	f.Required = def.Required
	f.DefaultValue = def.DefaultValue
	f.SortOrder = def.SortOrder
	f.Constraints = def.Constraints
	f.UpdatedAt = now()
}

func encodeFieldJSON(f models.Field) (string, string, error) {
	options := f.Options
	if options == nil {
		options = []string{}
	}
	optionsJSON, err := json.Marshal(options)
	if err != nil {
		return "", "", err
	}
	constraintsJSON, err := json.Marshal(f.Constraints)
	if err != nil {
		return "", "", err
	}
	return string(optionsJSON), string(constraintsJSON), nil
}

func insertField(ctx context.Context, tx *sql.Tx, f models.Field) error {
	existing, err := loadField(ctx, tx, f.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return Conflict("field %s already exists", f.ID)
	}

	options, constraints, err := encodeFieldJSON(f)
	if err != nil {
		return WrapDatabaseError(ErrTypeQuery, "failed to encode field", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO metadata_fields (`+fieldColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.Name, f.Type, f.Description, options, f.Required, f.DefaultValue, f.SortOrder,
		constraints, f.Scope, f.GroupfolderID, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return WrapDatabaseError(ErrTypeConstraint, "failed to insert field", err)
	}
	return nil
}

func updateFieldRow(ctx context.Context, tx *sql.Tx, f models.Field) error {
	options, constraints, err := encodeFieldJSON(f)
	if err != nil {
		return WrapDatabaseError(ErrTypeQuery, "failed to encode field", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE metadata_fields
		SET name = ?, type = ?, description = ?, options = ?, required = ?, default_value = ?,
			sort_order = ?, constraints = ?, updated_at = ?
		WHERE id = ?
	`, f.Name, f.Type, f.Description, options, f.Required, f.DefaultValue, f.SortOrder,
		constraints, f.UpdatedAt, f.ID)
	if err != nil {
		return WrapDatabaseError(ErrTypeQuery, "failed to update field", err)
	}
	return nil
}

var valueTables = []string{"file_metadata", "groupfolder_file_metadata", "groupfolder_metadata"}

// countValues counts stored values of a field across all value tables
func countValues(ctx context.Context, q queryer, fieldID string) (int, error) {
	total := 0
	for _, table := range valueTables {
		var n int
		if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` WHERE field_id = ?`, fieldID).Scan(&n); err != nil {
			return 0, WrapDatabaseError(ErrTypeQuery, "failed to count values", err)
		}
		total += n
	}
	return total, nil
}

// countDependents counts every row that references a field
func countDependents(ctx context.Context, q queryer, fieldID string) (int, error) {
	total, err := countValues(ctx, q, fieldID)
	if err != nil {
		return 0, err
	}
	for _, table := range []string{"groupfolder_field_assignments", "groupfolder_field_overrides"} {
		var n int
		if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` WHERE field_id = ?`, fieldID).Scan(&n); err != nil {
			return 0, WrapDatabaseError(ErrTypeQuery, "failed to count dependents", err)
		}
		total += n
	}
	return total, nil
}

// affectedGroupfolders returns the groupfolders whose resolved schema includes the field
func affectedGroupfolders(ctx context.Context, q queryer, fieldID string) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT groupfolder_id FROM groupfolder_field_assignments WHERE field_id = ?
		UNION
		SELECT groupfolder_id FROM groupfolder_field_overrides WHERE field_id = ?
		UNION
		SELECT groupfolder_id FROM metadata_fields WHERE id = ? AND groupfolder_id IS NOT NULL
	`, fieldID, fieldID, fieldID)
	if err != nil {
		return nil, WrapDatabaseError(ErrTypeQuery, "failed to query affected groupfolders", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, WrapDatabaseError(ErrTypeQuery, "failed to scan groupfolder id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// removeField deletes a field according to policy. Dependent rows are removed explicitly
// so the result does not depend on the foreign_keys pragma.
func removeField(ctx context.Context, tx *sql.Tx, fieldID string, policy DeletePolicy) error {
	if policy == DeletePolicyReject {
		n, err := countDependents(ctx, tx, fieldID)
		if err != nil {
			return err
		}
		if n > 0 {
			return Conflict("field %s is still referenced by %d assignments, overrides or values", fieldID, n)
		}
	}

	stmts := []string{
		`DELETE FROM groupfolder_field_overrides WHERE field_id = ?`,
		`DELETE FROM groupfolder_field_assignments WHERE field_id = ?`,
		`DELETE FROM file_metadata WHERE field_id = ?`,
		`DELETE FROM groupfolder_file_metadata WHERE field_id = ?`,
		`DELETE FROM groupfolder_metadata WHERE field_id = ?`,
		`DELETE FROM metadata_search_index WHERE field_id = ?`,
		`DELETE FROM metadata_fields WHERE id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, fieldID); err != nil {
			return WrapDatabaseError(ErrTypeQuery, "failed to delete field", err)
		}
	}
	return nil
}

// checkTypeChange refuses to change the type of a field that already has values
func checkTypeChange(ctx context.Context, q queryer, current models.Field, next models.FieldType) error {
	if current.Type == next {
		return nil
	}
	n, err := countValues(ctx, q, current.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return Conflict("cannot change type of field %s from %s to %s while %d values exist", current.ID, current.Type, next, n)
	}
	return nil
}
