package services

import (
	"context"
	"database/sql"

	"groupfolderMetadata/internal/models"
)

// GroupfolderFieldService manages fields owned by a single groupfolder
type GroupfolderFieldService struct {
	db     *sql.DB
	cache  *SchemaCache
	policy DeletePolicy
}

// NewGroupfolderFieldService creates a new groupfolder field registry
func NewGroupfolderFieldService(db *sql.DB, cache *SchemaCache, policy DeletePolicy) *GroupfolderFieldService {
	if policy == "" {
		policy = DeletePolicyCascade
	}
	return &GroupfolderFieldService{db: db, cache: cache, policy: policy}
}

// ListGroupfolderFields returns the fields owned by a groupfolder
func (s *GroupfolderFieldService) ListGroupfolderFields(ctx context.Context, gid int64) ([]models.Field, error) {
	if err := requireGroupfolder(ctx, s.db, gid); err != nil {
		return nil, err
	}
	return queryFields(ctx, s.db, `scope = ? AND groupfolder_id = ?`, models.ScopeGroupfolder, gid)
}

// GetGroupfolderField returns one field owned by gid
func (s *GroupfolderFieldService) GetGroupfolderField(ctx context.Context, gid int64, id string) (*models.Field, error) {
	return loadOwnedField(ctx, s.db, gid, id)
}

// CreateGroupfolderField stores a new field owned by gid
func (s *GroupfolderFieldService) CreateGroupfolderField(ctx context.Context, gid int64, def models.FieldDefinition) (*models.Field, error) {
	if err := ValidateDefinition(&def); err != nil {
		return nil, err
	}

	owner := gid
	field := newField(def, models.ScopeGroupfolder, &owner)
	err := WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := bumpSchemaVersion(ctx, tx, gid, nil); err != nil {
			return err
		}
		return insertField(ctx, tx, field)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, gid)
	return &field, nil
}

// UpdateGroupfolderField replaces the mutable attributes of a field owned by gid
func (s *GroupfolderFieldService) UpdateGroupfolderField(ctx context.Context, gid int64, id string, def models.FieldDefinition) (*models.Field, error) {
	if def.ID != "" && def.ID != id {
		return nil, ValidationFailed("invalid field definition", map[string]string{"id": "cannot be changed"})
	}
	def.ID = ""
	if err := ValidateDefinition(&def); err != nil {
		return nil, err
	}

	var updated models.Field
	err := WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		current, err := loadOwnedField(ctx, tx, gid, id)
		if err != nil {
			return err
		}
		if err := checkTypeChange(ctx, tx, *current, def.Type); err != nil {
			return err
		}

		updated = *current
		applyDefinition(&updated, def)
		if err := updateFieldRow(ctx, tx, updated); err != nil {
			return err
		}
		_, err = bumpSchemaVersion(ctx, tx, gid, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, gid)
	return &updated, nil
}

// DeleteGroupfolderField removes a field owned by gid
func (s *GroupfolderFieldService) DeleteGroupfolderField(ctx context.Context, gid int64, id string) error {
	err := WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := loadOwnedField(ctx, tx, gid, id); err != nil {
			return err
		}
		if err := removeField(ctx, tx, id, s.policy); err != nil {
			return err
		}
		_, err := bumpSchemaVersion(ctx, tx, gid, nil)
		return err
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(ctx, gid)
	return nil
}

// loadOwnedField returns NotFound unless field id exists and belongs to gid
func loadOwnedField(ctx context.Context, q queryer, gid int64, id string) (*models.Field, error) {
	f, err := loadField(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if f == nil || f.Scope != models.ScopeGroupfolder || f.GroupfolderID == nil || *f.GroupfolderID != gid {
		return nil, NotFound("groupfolder field", id)
	}
	return f, nil
}
