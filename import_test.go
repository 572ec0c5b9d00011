package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupfolderMetadata/internal/models"
)

const fieldImportYAML = `
fields:
  - id: project
    name: Project
    type: text
    constraints:
      max_length: 40
  - id: status
    name: Status
    type: select
    options: [draft, final]
groupfolders:
  - id: 10
    mount_point: Projects
    assign: [project]
    fields:
      - id: budget
        name: Budget
        type: number
`

func TestParseFieldImport(t *testing.T) {
	doc, err := ParseFieldImport(strings.NewReader(fieldImportYAML))
	require.NoError(t, err)

	require.Len(t, doc.Fields, 2)
	assert.Equal(t, models.FieldTypeSelect, doc.Fields[1].Type)
	assert.Equal(t, []string{"draft", "final"}, doc.Fields[1].Options)
	require.NotNil(t, doc.Fields[0].Constraints.MaxLength)
	assert.Equal(t, 40, *doc.Fields[0].Constraints.MaxLength)
	require.Len(t, doc.Groupfolders, 1)
	assert.Equal(t, int64(10), doc.Groupfolders[0].ID)
	assert.Equal(t, []string{"project"}, doc.Groupfolders[0].Assign)
}

func TestParseFieldImport_Errors(t *testing.T) {
	_, err := ParseFieldImport(strings.NewReader("fields:\n  - id: x\n    colour: red\n"))
	assert.Error(t, err, "unknown keys are rejected")

	_, err = ParseFieldImport(strings.NewReader("groupfolders:\n  - mount_point: Nowhere\n"))
	assert.ErrorContains(t, err, "groupfolders[0]")

	doc, err := ParseFieldImport(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, doc.Fields)
}

func TestImportFields_IsIdempotent(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fields.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fieldImportYAML), 0o600))

	doc, err := LoadFieldImport(path)
	require.NoError(t, err)

	result, err := ImportFields(ctx, app.Services, doc)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Created: 3, Groupfolders: 1}, result)

	doc.Fields[0].Name = "Project code"
	result, err = ImportFields(ctx, app.Services, doc)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Updated: 3, Groupfolders: 1}, result)

	project, err := app.Services.Fields.GetField(ctx, "project")
	require.NoError(t, err)
	assert.Equal(t, "Project code", project.Name)

	fields, err := app.Services.Assignments.GetAssignedFields(ctx, 10)
	require.NoError(t, err)
	ids := make([]string, 0, len(fields))
	for _, f := range fields {
		ids = append(ids, f.ID)
	}
	assert.ElementsMatch(t, []string{"project", "budget"}, ids)
}

func TestImportFields_ReportsInvalidField(t *testing.T) {
	app := newTestApp(t)
	doc := &FieldImport{Fields: []models.FieldDefinition{{ID: "broken", Name: "Broken", Type: "colour"}}}

	_, err := ImportFields(context.Background(), app.Services, doc)
	assert.ErrorContains(t, err, `field "broken"`)
}

func TestImportFields_StopsAtFirstFailureKeepingEarlierItems(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	doc := &FieldImport{Fields: []models.FieldDefinition{
		{ID: "project", Name: "Project", Type: models.FieldTypeText},
		{ID: "broken", Name: "Broken", Type: "colour"},
		{ID: "status", Name: "Status", Type: models.FieldTypeText},
	}}

	result, err := ImportFields(ctx, app.Services, doc)
	require.Error(t, err)
	assert.Equal(t, ImportResult{Created: 1}, result)

	_, err = app.Services.Fields.GetField(ctx, "project")
	assert.NoError(t, err)
	_, err = app.Services.Fields.GetField(ctx, "status")
	assert.Error(t, err)

	doc.Fields[1].Type = models.FieldTypeText
	result, err = ImportFields(ctx, app.Services, doc)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Created: 2, Updated: 1}, result)
}
