package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupfolderMetadata/internal/models"
)

func TestGroupfolderService_UpsertListDelete(t *testing.T) {
	svc, db := newTestServices(t, DeletePolicyCascade)
	ctx := context.Background()

	g, err := svc.Groupfolders.UpsertGroupfolder(ctx, 10, "Projects")
	require.NoError(t, err)
	assert.Equal(t, "Projects", g.MountPoint)

	g, err = svc.Groupfolders.UpsertGroupfolder(ctx, 10, "Projects 2025")
	require.NoError(t, err)
	assert.Equal(t, "Projects 2025", g.MountPoint)

	_, err = svc.Groupfolders.UpsertGroupfolder(ctx, 11, "Archive")
	require.NoError(t, err)

	list, err := svc.Groupfolders.ListGroupfolders(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Archive", list[0].MountPoint)

	_, err = svc.GroupfolderFields.CreateGroupfolderField(ctx, 10, models.FieldDefinition{ID: "own", Name: "Own", Type: models.FieldTypeText})
	require.NoError(t, err)
	_, err = svc.Metadata.SaveGroupfolderFileMetadata(ctx, 10, 1, models.Values{"own": "x"})
	require.NoError(t, err)

	require.NoError(t, svc.Groupfolders.DeleteGroupfolder(ctx, 10))

	_, err = svc.Groupfolders.GetGroupfolder(ctx, 10)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM metadata_fields WHERE groupfolder_id = 10`))
	assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM groupfolder_file_metadata`))

	assert.ErrorIs(t, svc.Groupfolders.DeleteGroupfolder(ctx, 10), ErrNotFound)
}

func TestGroupfolderService_UpsertValidation(t *testing.T) {
	svc, _ := newTestServices(t, DeletePolicyCascade)

	_, err := svc.Groupfolders.UpsertGroupfolder(context.Background(), 0, "x")
	assert.ErrorIs(t, err, ErrValidation)
}
