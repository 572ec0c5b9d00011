package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"groupfolderMetadata/internal/models"
	"groupfolderMetadata/internal/services"
)

// FieldImport is the YAML document read by the import-fields command
type FieldImport struct {
	Fields       []models.FieldDefinition `yaml:"fields"`
	Groupfolders []GroupfolderImport      `yaml:"groupfolders"`
}

// GroupfolderImport registers a groupfolder with its own fields and, when Assign is present,
// replaces its assigned global fields
type GroupfolderImport struct {
	ID         int64                    `yaml:"id"`
	MountPoint string                   `yaml:"mount_point"`
	Fields     []models.FieldDefinition `yaml:"fields"`
	Assign     []string                 `yaml:"assign"`
}

// ImportResult counts what an import changed
type ImportResult struct {
	Created      int
	Updated      int
	Groupfolders int
}

// ParseFieldImport decodes an import document from r. Unknown keys are rejected and an empty
// document yields an empty import.
func ParseFieldImport(r io.Reader) (*FieldImport, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc FieldImport
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &doc, nil
		}
		return nil, fmt.Errorf("failed to parse field import: %w", err)
	}
	for i, g := range doc.Groupfolders {
		if g.ID <= 0 {
			return nil, fmt.Errorf("groupfolders[%d]: id must be a positive integer", i)
		}
	}
	return &doc, nil
}

// LoadFieldImport reads and parses the import document at path
func LoadFieldImport(path string) (*FieldImport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseFieldImport(f)
}

// ImportFields creates or updates every field of doc. Fields with an id that already exists are
// updated in place, so running the same import twice is harmless.
//
// Each field and each assignment set is written in its own transaction. When an item fails the
// import stops and the items before it stay applied; result counts them. Fix the document and
// run it again to finish.
func ImportFields(ctx context.Context, svc *services.Services, doc *FieldImport) (ImportResult, error) {
	var result ImportResult

	for _, def := range doc.Fields {
		created, err := upsertGlobalField(ctx, svc, def)
		if err != nil {
			return result, fmt.Errorf("field %q: %w", fieldLabel(def), err)
		}
		result.count(created)
	}

	for _, g := range doc.Groupfolders {
		if _, err := svc.Groupfolders.UpsertGroupfolder(ctx, g.ID, g.MountPoint); err != nil {
			return result, fmt.Errorf("groupfolder %d: %w", g.ID, err)
		}
		result.Groupfolders++

		for _, def := range g.Fields {
			created, err := upsertGroupfolderField(ctx, svc, g.ID, def)
			if err != nil {
				return result, fmt.Errorf("groupfolder %d field %q: %w", g.ID, fieldLabel(def), err)
			}
			result.count(created)
		}

		if g.Assign != nil {
			if _, err := svc.Assignments.SetAssignedFields(ctx, g.ID, g.Assign, nil); err != nil {
				return result, fmt.Errorf("groupfolder %d assignments: %w", g.ID, err)
			}
		}
	}

	return result, nil
}

func (r *ImportResult) count(created bool) {
	if created {
		r.Created++
	} else {
		r.Updated++
	}
}

func upsertGlobalField(ctx context.Context, svc *services.Services, def models.FieldDefinition) (bool, error) {
	if def.ID != "" {
		_, err := svc.Fields.GetField(ctx, def.ID)
		if err == nil {
			_, err = svc.Fields.UpdateField(ctx, def.ID, def)
			return false, err
		}
		if !errors.Is(err, services.ErrNotFound) {
			return false, err
		}
	}
	_, err := svc.Fields.CreateField(ctx, def)
	return true, err
}

func upsertGroupfolderField(ctx context.Context, svc *services.Services, gid int64, def models.FieldDefinition) (bool, error) {
	if def.ID != "" {
		_, err := svc.GroupfolderFields.GetGroupfolderField(ctx, gid, def.ID)
		if err == nil {
			_, err = svc.GroupfolderFields.UpdateGroupfolderField(ctx, gid, def.ID, def)
			return false, err
		}
		if !errors.Is(err, services.ErrNotFound) {
			return false, err
		}
	}
	_, err := svc.GroupfolderFields.CreateGroupfolderField(ctx, gid, def)
	return true, err
}

func fieldLabel(def models.FieldDefinition) string {
	if def.ID != "" {
		return def.ID
	}
	return def.Name
}
