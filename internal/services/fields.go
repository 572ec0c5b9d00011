package services

import (
	"context"
	"database/sql"

	"groupfolderMetadata/internal/models"
)

// FieldService manages global field definitions
type FieldService struct {
	db     *sql.DB
	cache  *SchemaCache
	policy DeletePolicy
}

// NewFieldService creates a new global field registry
func NewFieldService(db *sql.DB, cache *SchemaCache, policy DeletePolicy) *FieldService {
	if policy == "" {
		policy = DeletePolicyCascade
	}
	return &FieldService{db: db, cache: cache, policy: policy}
}

// ListFields returns all global fields in display order
func (s *FieldService) ListFields(ctx context.Context) ([]models.Field, error) {
	return queryFields(ctx, s.db, `scope = ?`, models.ScopeGlobal)
}

// GetField returns one global field
func (s *FieldService) GetField(ctx context.Context, id string) (*models.Field, error) {
	f, err := loadField(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if f == nil || f.Scope != models.ScopeGlobal {
		return nil, NotFound("field", id)
	}
	return f, nil
}

// CreateField validates def and stores it as a new global field
func (s *FieldService) CreateField(ctx context.Context, def models.FieldDefinition) (*models.Field, error) {
	if err := ValidateDefinition(&def); err != nil {
		return nil, err
	}

	field := newField(def, models.ScopeGlobal, nil)
	err := WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		return insertField(ctx, tx, field)
	})
	if err != nil {
		return nil, err
	}
	return &field, nil
}

// UpdateField replaces the mutable attributes of a global field.
// Every groupfolder the field is assigned to gets a new schema version.
func (s *FieldService) UpdateField(ctx context.Context, id string, def models.FieldDefinition) (*models.Field, error) {
	if def.ID != "" && def.ID != id {
		return nil, ValidationFailed("invalid field definition", map[string]string{"id": "cannot be changed"})
	}
	def.ID = ""
	if err := ValidateDefinition(&def); err != nil {
		return nil, err
	}

	var updated models.Field
	err := WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		current, err := loadField(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil || current.Scope != models.ScopeGlobal {
			return NotFound("field", id)
		}
		if err := checkTypeChange(ctx, tx, *current, def.Type); err != nil {
			return err
		}

		updated = *current
		applyDefinition(&updated, def)
		if err := updateFieldRow(ctx, tx, updated); err != nil {
			return err
		}

		affected, err := affectedGroupfolders(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, gid := range affected {
			if _, err := bumpSchemaVersion(ctx, tx, gid, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateAll(ctx)
	return &updated, nil
}

// DeleteField removes a global field, cascading or rejecting per the configured policy
func (s *FieldService) DeleteField(ctx context.Context, id string) error {
	var affected []int64
	err := WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		current, err := loadField(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil || current.Scope != models.ScopeGlobal {
			return NotFound("field", id)
		}

		affected, err = affectedGroupfolders(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := removeField(ctx, tx, id, s.policy); err != nil {
			return err
		}
		for _, gid := range affected {
			if _, err := bumpSchemaVersion(ctx, tx, gid, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cache.InvalidateAll(ctx)
	return nil
}
