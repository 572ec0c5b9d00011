package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupfolderMetadata/internal/models"
)

func TestFieldService_CreateGetRoundTrip(t *testing.T) {
	svc, _ := newTestServices(t, DeletePolicyCascade)
	ctx := context.Background()
	max := 100.0

	created, err := svc.Fields.CreateField(ctx, models.FieldDefinition{
		Name:        "Pages",
		Type:        models.FieldTypeNumber,
		Description: "Page count",
		SortOrder:   2,
		Constraints: models.Constraints{Max: &max},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	got, err := svc.Fields.GetField(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.Name, got.Name)
	assert.Equal(t, created.Type, got.Type)
	assert.Equal(t, created.Description, got.Description)
	assert.Equal(t, created.SortOrder, got.SortOrder)
	assert.Equal(t, created.Constraints, got.Constraints)
	assert.Equal(t, models.ScopeGlobal, got.Scope)
	assert.Nil(t, got.GroupfolderID)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
}

func TestFieldService_CreateWithExplicitID(t *testing.T) {
	svc, _ := newTestServices(t, DeletePolicyCascade)
	ctx := context.Background()

	f := mustField(t, svc, models.FieldDefinition{ID: "f1", Name: "Retention", Type: models.FieldTypeDate})
	assert.Equal(t, "f1", f.ID)

	_, err := svc.Fields.CreateField(ctx, models.FieldDefinition{ID: "f1", Name: "Other", Type: models.FieldTypeText})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestFieldService_CreateValidation(t *testing.T) {
	svc, _ := newTestServices(t, DeletePolicyCascade)
	ctx := context.Background()

	_, err := svc.Fields.CreateField(ctx, models.FieldDefinition{Name: "", Type: models.FieldTypeText})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Fields.CreateField(ctx, models.FieldDefinition{Name: "Color", Type: "color"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestFieldService_GetMissing(t *testing.T) {
	svc, _ := newTestServices(t, DeletePolicyCascade)

	_, err := svc.Fields.GetField(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFieldService_ListOrdered(t *testing.T) {
	svc, _ := newTestServices(t, DeletePolicyCascade)
	ctx := context.Background()

	mustField(t, svc, models.FieldDefinition{ID: "b", Name: "Beta", Type: models.FieldTypeText, SortOrder: 1})
	mustField(t, svc, models.FieldDefinition{ID: "a", Name: "Alpha", Type: models.FieldTypeText, SortOrder: 1})
	mustField(t, svc, models.FieldDefinition{ID: "z", Name: "Zulu", Type: models.FieldTypeText, SortOrder: 0})

	fields, err := svc.Fields.ListFields(ctx)
	require.NoError(t, err)
	require.Len(t, fields, 3)
	assert.Equal(t, []string{"z", "a", "b"}, []string{fields[0].ID, fields[1].ID, fields[2].ID})
}

func TestFieldService_UpdateField(t *testing.T) {
	svc, _ := newTestServices(t, DeletePolicyCascade)
	ctx := context.Background()
	mustField(t, svc, models.FieldDefinition{ID: "f1", Name: "Retention", Type: models.FieldTypeDate})

	updated, err := svc.Fields.UpdateField(ctx, "f1", models.FieldDefinition{Name: "Keep until", Type: models.FieldTypeDate, Required: true})
	require.NoError(t, err)
	assert.Equal(t, "Keep until", updated.Name)
	assert.True(t, updated.Required)

	got, err := svc.Fields.GetField(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "Keep until", got.Name)

	_, err = svc.Fields.UpdateField(ctx, "missing", models.FieldDefinition{Name: "X", Type: models.FieldTypeText})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Fields.UpdateField(ctx, "f1", models.FieldDefinition{ID: "f2", Name: "X", Type: models.FieldTypeDate})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestFieldService_TypeChangeBlockedByValues(t *testing.T) {
	svc, _ := newTestServices(t, DeletePolicyCascade)
	ctx := context.Background()
	mustField(t, svc, models.FieldDefinition{ID: "f1", Name: "Retention", Type: models.FieldTypeDate})

	_, err := svc.Fields.UpdateField(ctx, "f1", models.FieldDefinition{Name: "Retention", Type: models.FieldTypeText})
	require.NoError(t, err, "type change without values is allowed")

	_, err = svc.Metadata.SaveFileMetadata(ctx, 1, models.Values{"f1": "forever"})
	require.NoError(t, err)

	_, err = svc.Fields.UpdateField(ctx, "f1", models.FieldDefinition{Name: "Retention", Type: models.FieldTypeDate})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestFieldService_DeleteCascades(t *testing.T) {
	svc, db := newTestServices(t, DeletePolicyCascade)
	ctx := context.Background()
	mustGroupfolder(t, svc, 10)
	mustField(t, svc, models.FieldDefinition{ID: "f1", Name: "Retention", Type: models.FieldTypeDate})

	_, err := svc.Assignments.SetAssignedFields(ctx, 10, []string{"f1"}, nil)
	require.NoError(t, err)
	_, _, err = svc.Assignments.SaveFieldOverride(ctx, 10, "f1", models.OverridePatch{Name: ptr("Archive Date")}, nil)
	require.NoError(t, err)
	_, err = svc.Metadata.SaveGroupfolderFileMetadata(ctx, 10, 42, models.Values{"f1": "2025-01-01"})
	require.NoError(t, err)
	_, err = svc.Metadata.SaveFileMetadata(ctx, 7, models.Values{"f1": "2024-12-31"})
	require.NoError(t, err)

	require.NoError(t, svc.Fields.DeleteField(ctx, "f1"))

	_, err = svc.Fields.GetField(ctx, "f1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM groupfolder_field_overrides WHERE field_id = 'f1'`))
	assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM groupfolder_field_assignments WHERE field_id = 'f1'`))
	assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM groupfolder_file_metadata WHERE field_id = 'f1'`))
	assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM file_metadata WHERE field_id = 'f1'`))

	fields, err := svc.Assignments.GetAssignedFields(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestFieldService_DeleteRejectPolicy(t *testing.T) {
	svc, db := newTestServices(t, DeletePolicyReject)
	ctx := context.Background()
	mustGroupfolder(t, svc, 10)
	mustField(t, svc, models.FieldDefinition{ID: "f1", Name: "Retention", Type: models.FieldTypeDate})
	mustField(t, svc, models.FieldDefinition{ID: "free", Name: "Unused", Type: models.FieldTypeText})

	_, _, err := svc.Assignments.SaveFieldOverride(ctx, 10, "f1", models.OverridePatch{Name: ptr("Archive Date")}, nil)
	require.NoError(t, err)

	err = svc.Fields.DeleteField(ctx, "f1")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, countRows(t, db, `SELECT COUNT(*) FROM groupfolder_field_overrides WHERE field_id = 'f1'`))

	assert.NoError(t, svc.Fields.DeleteField(ctx, "free"))
}

func TestParseDeletePolicy(t *testing.T) {
	p, err := ParseDeletePolicy("")
	require.NoError(t, err)
	assert.Equal(t, DeletePolicyCascade, p)

	p, err = ParseDeletePolicy("REJECT")
	require.NoError(t, err)
	assert.Equal(t, DeletePolicyReject, p)

	_, err = ParseDeletePolicy("orphan")
	assert.Error(t, err)
}
