package services

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"groupfolderMetadata/internal/models"
)

// MetadataService stores metadata values of plain files, groupfolder files and groupfolders
type MetadataService struct {
	db *sql.DB
}

// NewMetadataService creates a new metadata store
func NewMetadataService(db *sql.DB) *MetadataService {
	return &MetadataService{db: db}
}

// valueTarget addresses one row set in a value table, e.g. all values of file 42
type valueTarget struct {
	table   string
	keyCols []string
	keyVals []interface{}
}

func fileTarget(fileID int64) valueTarget {
	return valueTarget{table: "file_metadata", keyCols: []string{"file_id"}, keyVals: []interface{}{fileID}}
}

func groupfolderFileTarget(gid, fileID int64) valueTarget {
	return valueTarget{
		table:   "groupfolder_file_metadata",
		keyCols: []string{"groupfolder_id", "file_id"},
		keyVals: []interface{}{gid, fileID},
	}
}

func groupfolderTarget(gid int64) valueTarget {
	return valueTarget{table: "groupfolder_metadata", keyCols: []string{"groupfolder_id"}, keyVals: []interface{}{gid}}
}

func (t valueTarget) where() string {
	parts := make([]string, len(t.keyCols))
	for i, col := range t.keyCols {
		parts[i] = col + " = ?"
	}
	return strings.Join(parts, " AND ")
}

// valueOp is one validated change: either a new stored value or a removal
type valueOp struct {
	fieldID string
	stored  string
	clear   bool
}

// GetFileMetadata returns the values of a file outside any groupfolder
func (s *MetadataService) GetFileMetadata(ctx context.Context, fileID int64) (models.Values, error) {
	if err := validateFileID(fileID); err != nil {
		return nil, err
	}
	schema, err := globalSchema(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return readValues(ctx, s.db, fileTarget(fileID), schema)
}

// SaveFileMetadata validates every value against its global field and stores them all, or none
func (s *MetadataService) SaveFileMetadata(ctx context.Context, fileID int64, values models.Values) (models.Values, error) {
	if err := validateFileID(fileID); err != nil {
		return nil, err
	}

	target := fileTarget(fileID)
	err := WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		schema, err := globalSchema(ctx, tx)
		if err != nil {
			return err
		}
		ops, err := normalizeValues(schema, values)
		if err != nil {
			return err
		}
		return writeValues(ctx, tx, target, ops)
	})
	if err != nil {
		return nil, err
	}
	return s.GetFileMetadata(ctx, fileID)
}

// GetGroupfolderFileMetadata returns the values of a file inside a groupfolder
func (s *MetadataService) GetGroupfolderFileMetadata(ctx context.Context, gid, fileID int64) (models.Values, error) {
	if err := validateFileID(fileID); err != nil {
		return nil, err
	}
	return s.readGroupfolderValues(ctx, gid, groupfolderFileTarget(gid, fileID))
}

// SaveGroupfolderFileMetadata validates values against the groupfolder's effective fields and stores them all, or none.
// A value for a field that is not assigned to the groupfolder is rejected with Forbidden.
func (s *MetadataService) SaveGroupfolderFileMetadata(ctx context.Context, gid, fileID int64, values models.Values) (models.Values, error) {
	if err := validateFileID(fileID); err != nil {
		return nil, err
	}
	if err := s.saveGroupfolderValues(ctx, gid, groupfolderFileTarget(gid, fileID), values); err != nil {
		return nil, err
	}
	return s.GetGroupfolderFileMetadata(ctx, gid, fileID)
}

// GetGroupfolderMetadata returns the folder-level values of a groupfolder
func (s *MetadataService) GetGroupfolderMetadata(ctx context.Context, gid int64) (models.Values, error) {
	return s.readGroupfolderValues(ctx, gid, groupfolderTarget(gid))
}

// SaveGroupfolderMetadata stores folder-level values with the same contract as SaveGroupfolderFileMetadata
func (s *MetadataService) SaveGroupfolderMetadata(ctx context.Context, gid int64, values models.Values) (models.Values, error) {
	if err := s.saveGroupfolderValues(ctx, gid, groupfolderTarget(gid), values); err != nil {
		return nil, err
	}
	return s.GetGroupfolderMetadata(ctx, gid)
}

func (s *MetadataService) readGroupfolderValues(ctx context.Context, gid int64, target valueTarget) (models.Values, error) {
	if err := requireGroupfolder(ctx, s.db, gid); err != nil {
		return nil, err
	}
	schema, err := groupfolderSchema(ctx, s.db, gid)
	if err != nil {
		return nil, err
	}
	return readValues(ctx, s.db, target, schema)
}

func (s *MetadataService) saveGroupfolderValues(ctx context.Context, gid int64, target valueTarget, values models.Values) error {
	return WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		if err := requireGroupfolder(ctx, tx, gid); err != nil {
			return err
		}
		schema, err := groupfolderSchema(ctx, tx, gid)
		if err != nil {
			return err
		}

		var unassigned []string
		for id := range values {
			if _, ok := schema[id]; !ok {
				unassigned = append(unassigned, id)
			}
		}
		if len(unassigned) > 0 {
			sort.Strings(unassigned)
			return Forbidden("fields %s are not assigned to groupfolder %d", strings.Join(unassigned, ", "), gid)
		}

		ops, err := normalizeValues(schema, values)
		if err != nil {
			return err
		}
		return writeValues(ctx, tx, target, ops)
	})
}

func validateFileID(fileID int64) error {
	if fileID <= 0 {
		return ValidationFailed("invalid file", map[string]string{"file_id": "must be a positive integer"})
	}
	return nil
}

// globalSchema maps every global field by id
func globalSchema(ctx context.Context, q queryer) (map[string]models.Field, error) {
	fields, err := queryFields(ctx, q, `scope = ?`, models.ScopeGlobal)
	if err != nil {
		return nil, err
	}
	return indexFields(fields), nil
}

// groupfolderSchema maps the effective fields of gid by id
func groupfolderSchema(ctx context.Context, q queryer, gid int64) (map[string]models.Field, error) {
	fields, err := resolveFields(ctx, q, gid)
	if err != nil {
		return nil, err
	}
	return indexFields(fields), nil
}

func indexFields(fields []models.Field) map[string]models.Field {
	byID := make(map[string]models.Field, len(fields))
	for _, f := range fields {
		byID[f.ID] = f
	}
	return byID
}

// normalizeValues validates every value before anything is written
func normalizeValues(schema map[string]models.Field, values models.Values) ([]valueOp, error) {
	v := NewValidator()
	ops := make([]valueOp, 0, len(values))
	for _, id := range sortedKeys(values) {
		field, ok := schema[id]
		if !ok {
			v.AddError(id, "is not a known field")
			continue
		}
		stored, clear, err := NormalizeValue(field, values[id])
		if err != nil {
			v.AddError(id, err.Error())
			continue
		}
		ops = append(ops, valueOp{fieldID: id, stored: stored, clear: clear})
	}
	if err := v.Err("invalid metadata"); err != nil {
		return nil, err
	}
	return ops, nil
}

func writeValues(ctx context.Context, tx *sql.Tx, target valueTarget, ops []valueOp) error {
	cols := strings.Join(target.keyCols, ", ")
	placeholders := strings.Repeat("?, ", len(target.keyCols))
	upsert := `INSERT INTO ` + target.table + ` (` + cols + `, field_id, value, updated_at)
		VALUES (` + placeholders + `?, ?, ?)
		ON CONFLICT(` + cols + `, field_id) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	remove := `DELETE FROM ` + target.table + ` WHERE ` + target.where() + ` AND field_id = ?`

	ts := now()
	for _, op := range ops {
		var err error
		if op.clear {
			args := append(append([]interface{}{}, target.keyVals...), op.fieldID)
			_, err = tx.ExecContext(ctx, remove, args...)
		} else {
			args := append(append([]interface{}{}, target.keyVals...), op.fieldID, op.stored, ts)
			_, err = tx.ExecContext(ctx, upsert, args...)
		}
		if err != nil {
			return WrapDatabaseError(ErrTypeQuery, "failed to write metadata value", err)
		}
	}
	return nil
}

// readValues loads the stored values of target and decodes them with schema.
// Values of fields missing from schema are left out.
func readValues(ctx context.Context, q queryer, target valueTarget, schema map[string]models.Field) (models.Values, error) {
	stored, err := readStoredValues(ctx, q, target)
	if err != nil {
		return nil, err
	}
	values := make(models.Values, len(stored))
	for id, raw := range stored {
		field, ok := schema[id]
		if !ok {
			continue
		}
		values[id] = DecodeValue(field, raw)
	}
	return values, nil
}

func readStoredValues(ctx context.Context, q queryer, target valueTarget) (map[string]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT field_id, value FROM `+target.table+` WHERE `+target.where(), target.keyVals...)
	if err != nil {
		return nil, WrapDatabaseError(ErrTypeQuery, "failed to query metadata", err)
	}
	defer rows.Close()

	stored := make(map[string]string)
	for rows.Next() {
		var id, value string
		if err := rows.Scan(&id, &value); err != nil {
			return nil, WrapDatabaseError(ErrTypeQuery, "failed to scan metadata value", err)
		}
		stored[id] = value
	}
	if err := rows.Err(); err != nil {
		return nil, WrapDatabaseError(ErrTypeQuery, "failed to read metadata", err)
	}
	return stored, nil
}
