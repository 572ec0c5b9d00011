package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupfolderMetadata/internal/cache"
	"groupfolderMetadata/internal/models"
)

func TestAssignmentService_OverrideScenario(t *testing.T) {
	svc, _ := newTestServices(t, DeletePolicyCascade)
	ctx := context.Background()

	mustField(t, svc, models.FieldDefinition{ID: "f1", Name: "Retention", Type: models.FieldTypeDate})
	mustGroupfolder(t, svc, 10)

	_, err := svc.Assignments.SetAssignedFields(ctx, 10, []string{"f1"}, nil)
	require.NoError(t, err)

	fields, err := svc.Assignments.GetAssignedFields(ctx, 10)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "f1", fields[0].ID)
	assert.Equal(t, "Retention", fields[0].Name)
	assert.Equal(t, models.FieldTypeDate, fields[0].Type)

	_, _, err = svc.Assignments.SaveFieldOverride(ctx, 10, "f1", models.OverridePatch{Name: ptr("Archive Date")}, nil)
	require.NoError(t, err)

	fields, err = svc.Assignments.GetAssignedFields(ctx, 10)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "f1", fields[0].ID)
	assert.Equal(t, "Archive Date", fields[0].Name)
	assert.Equal(t, models.FieldTypeDate, fields[0].Type)

	base, err := svc.Fields.GetField(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "Retention", base.Name, "overrides never touch the base field")
}

func TestAssignmentService_IncludesOwnFields(t *testing.T) {
	svc, _ := newTestServices(t, DeletePolicyCascade)
	ctx := context.Background()
	mustGroupfolder(t, svc, 10)
	mustField(t, svc, models.FieldDefinition{ID: "g1", Name: "Global", Type: models.FieldTypeText, SortOrder: 2})
	mustField(t, svc, models.FieldDefinition{ID: "g2", Name: "Unassigned", Type: models.FieldTypeText})
	_, err := svc.GroupfolderFields.CreateGroupfolderField(ctx, 10, models.FieldDefinition{ID: "own", Name: "Own", Type: models.FieldTypeText, SortOrder: 1})
	require.NoError(t, err)

	_, err = svc.Assignments.SetAssignedFields(ctx, 10, []string{"g1", "g1", "own"}, nil)
	require.NoError(t, err)

	fields, err := svc.Assignments.GetAssignedFields(ctx, 10)
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "own", fields[0].ID)
	assert.Equal(t, "g1", fields[1].ID)
}

func TestAssignmentService_SetRejectsUnknownFields(t *testing.T) {
	svc, _ := newTestServices(t, DeletePolicyCascade)
	ctx := context.Background()
	mustGroupfolder(t, svc, 10)
	mustGroupfolder(t, svc, 11)
	mustField(t, svc, models.FieldDefinition{ID: "g1", Name: "Global", Type: models.FieldTypeText})
	_, err := svc.GroupfolderFields.CreateGroupfolderField(ctx, 11, models.FieldDefinition{ID: "foreign", Name: "Foreign", Type: models.FieldTypeText})
	require.NoError(t, err)

	_, err = svc.Assignments.SetAssignedFields(ctx, 10, []string{"g1"}, nil)
	require.NoError(t, err)

	_, err = svc.Assignments.SetAssignedFields(ctx, 10, []string{"g1", "missing", "foreign"}, nil)
	require.ErrorIs(t, err, ErrValidation)
	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	assert.Contains(t, svcErr.Fields, "missing")
	assert.Contains(t, svcErr.Fields, "foreign")

	fields, err := svc.Assignments.GetAssignedFields(ctx, 10)
	require.NoError(t, err)
	require.Len(t, fields, 1, "failed replacement leaves the previous set")
	assert.Equal(t, "g1", fields[0].ID)
}

func TestAssignmentService_UnknownGroupfolder(t *testing.T) {
	svc, _ := newTestServices(t, DeletePolicyCascade)
	ctx := context.Background()

	_, err := svc.Assignments.GetAssignedFields(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Assignments.SetAssignedFields(ctx, 404, nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAssignmentService_VersionCompareAndSwap(t *testing.T) {
	svc, _ := newTestServices(t, DeletePolicyCascade)
	ctx := context.Background()
	mustGroupfolder(t, svc, 10)
	mustField(t, svc, models.FieldDefinition{ID: "f1", Name: "Retention", Type: models.FieldTypeDate})

	v1, err := svc.Assignments.SetAssignedFields(ctx, 10, []string{"f1"}, ptr(int64(0)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v1)

	_, err = svc.Assignments.SetAssignedFields(ctx, 10, nil, ptr(int64(0)))
	assert.ErrorIs(t, err, ErrConflict, "stale version is rejected")

	_, v2, err := svc.Assignments.SaveFieldOverride(ctx, 10, "f1", models.OverridePatch{Required: ptr(true)}, ptr(v1))
	require.NoError(t, err)
	assert.Equal(t, int64(2), v2)
}

func TestAssignmentService_ConcurrentWritersDoNotLoseUpdates(t *testing.T) {
	svc, _ := newTestServices(t, DeletePolicyCascade)
	ctx := context.Background()
	mustGroupfolder(t, svc, 10)
	mustField(t, svc, models.FieldDefinition{ID: "f1", Name: "Retention", Type: models.FieldTypeDate})

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Assignments.SetAssignedFields(ctx, 10, []string{"f1"}, ptr(int64(0)))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if KindOf(err) == KindConflict {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded, "exactly one writer wins the version")
	assert.Equal(t, writers-1, conflicts)
}

func TestAssignmentService_UnassignPurgesValues(t *testing.T) {
	svc, db := newTestServices(t, DeletePolicyCascade)
	ctx := context.Background()
	mustGroupfolder(t, svc, 10)
	mustField(t, svc, models.FieldDefinition{ID: "f1", Name: "Retention", Type: models.FieldTypeDate})

	_, err := svc.Assignments.SetAssignedFields(ctx, 10, []string{"f1"}, nil)
	require.NoError(t, err)
	_, err = svc.Metadata.SaveGroupfolderFileMetadata(ctx, 10, 42, models.Values{"f1": "2025-01-01"})
	require.NoError(t, err)
	_, err = svc.Metadata.SaveGroupfolderMetadata(ctx, 10, models.Values{"f1": "2025-06-01"})
	require.NoError(t, err)

	_, err = svc.Assignments.SetAssignedFields(ctx, 10, []string{}, nil)
	require.NoError(t, err)

	assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM groupfolder_file_metadata`))
	assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM groupfolder_metadata`))
}

func TestAssignmentService_SaveOverrideValidation(t *testing.T) {
	svc, _ := newTestServices(t, DeletePolicyCascade)
	ctx := context.Background()
	mustGroupfolder(t, svc, 10)
	mustField(t, svc, models.FieldDefinition{ID: "s", Name: "Status", Type: models.FieldTypeSelect, Options: []string{"draft", "final"}})
	mustField(t, svc, models.FieldDefinition{ID: "n", Name: "Count", Type: models.FieldTypeNumber})

	_, _, err := svc.Assignments.SaveFieldOverride(ctx, 10, "missing", models.OverridePatch{Name: ptr("X")}, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = svc.Assignments.SaveFieldOverride(ctx, 10, "s", models.OverridePatch{}, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = svc.Assignments.SaveFieldOverride(ctx, 10, "s", models.OverridePatch{Name: ptr("   ")}, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = svc.Assignments.SaveFieldOverride(ctx, 10, "s", models.OverridePatch{Options: []string{}}, nil)
	assert.ErrorIs(t, err, ErrValidation, "select keeps at least one option")

	_, _, err = svc.Assignments.SaveFieldOverride(ctx, 10, "n", models.OverridePatch{Min: ptr(10.0), Max: ptr(1.0)}, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = svc.Assignments.SaveFieldOverride(ctx, 10, "s", models.OverridePatch{DefaultValue: ptr("archived")}, nil)
	assert.ErrorIs(t, err, ErrValidation)

	saved, _, err := svc.Assignments.SaveFieldOverride(ctx, 10, "s", models.OverridePatch{Options: []string{"draft", "final", "archived"}, DefaultValue: ptr("archived")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "archived", *saved.DefaultValue)
}

func TestAssignmentService_OverrideListAndDelete(t *testing.T) {
	svc, _ := newTestServices(t, DeletePolicyCascade)
	ctx := context.Background()
	mustGroupfolder(t, svc, 10)
	mustField(t, svc, models.FieldDefinition{ID: "f1", Name: "Retention", Type: models.FieldTypeDate})
	_, err := svc.Assignments.SetAssignedFields(ctx, 10, []string{"f1"}, nil)
	require.NoError(t, err)

	_, _, err = svc.Assignments.SaveFieldOverride(ctx, 10, "f1", models.OverridePatch{Name: ptr("Archive Date")}, nil)
	require.NoError(t, err)
	_, _, err = svc.Assignments.SaveFieldOverride(ctx, 10, "f1", models.OverridePatch{Description: ptr("When to archive")}, nil)
	require.NoError(t, err)

	overrides, err := svc.Assignments.GetFieldOverrides(ctx, 10)
	require.NoError(t, err)
	require.Len(t, overrides, 1)
	assert.Equal(t, "f1", overrides[0].FieldID)
	assert.Nil(t, overrides[0].Name, "saving replaces the whole patch")
	assert.Equal(t, "When to archive", *overrides[0].Description)

	_, err = svc.Assignments.DeleteFieldOverride(ctx, 10, "f1", nil)
	require.NoError(t, err)
	_, err = svc.Assignments.DeleteFieldOverride(ctx, 10, "f1", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	fields, err := svc.Assignments.GetAssignedFields(ctx, 10)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "Retention", fields[0].Name)
	assert.Empty(t, fields[0].Description)
}

func TestAssignmentService_CacheInvalidatedByGlobalUpdate(t *testing.T) {
	svc, _ := newTestServices(t, DeletePolicyCascade)
	ctx := context.Background()
	mustGroupfolder(t, svc, 10)
	mustField(t, svc, models.FieldDefinition{ID: "f1", Name: "Retention", Type: models.FieldTypeDate})
	_, err := svc.Assignments.SetAssignedFields(ctx, 10, []string{"f1"}, nil)
	require.NoError(t, err)

	fields, err := svc.Assignments.GetAssignedFields(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, "Retention", fields[0].Name)

	_, err = svc.Fields.UpdateField(ctx, "f1", models.FieldDefinition{Name: "Keep until", Type: models.FieldTypeDate})
	require.NoError(t, err)

	fields, err = svc.Assignments.GetAssignedFields(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "Keep until", fields[0].Name)
}

func TestAssignmentService_GlobalUpdateBumpsSchemaVersion(t *testing.T) {
	svc, _ := newTestServices(t, DeletePolicyCascade)
	ctx := context.Background()
	mustGroupfolder(t, svc, 10)
	mustGroupfolder(t, svc, 20)
	mustField(t, svc, models.FieldDefinition{ID: "f1", Name: "Retention", Type: models.FieldTypeDate})
	version, err := svc.Assignments.SetAssignedFields(ctx, 10, []string{"f1"}, nil)
	require.NoError(t, err)

	_, err = svc.Fields.UpdateField(ctx, "f1", models.FieldDefinition{Name: "Keep until", Type: models.FieldTypeDate})
	require.NoError(t, err)

	fields, current, err := svc.Assignments.GetAssignedSchema(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, version+1, current)
	assert.Equal(t, "Keep until", fields[0].Name)

	_, err = svc.Assignments.SetAssignedFields(ctx, 10, []string{}, &version)
	assert.ErrorIs(t, err, ErrConflict, "a client holding the old version must re-read")

	other, err := svc.Groupfolders.GetGroupfolder(ctx, 20)
	require.NoError(t, err)
	assert.Zero(t, other.SchemaVersion, "unrelated groupfolders keep their version")
}

// gatedCache holds the first Set until release is closed
type gatedCache struct {
	cache.Cache
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.Cache.Set(ctx, key, value, ttl)
}

func TestAssignmentService_ReaderRacingWriterDoesNotServeStaleSchema(t *testing.T) {
	db := newTestDB(t)
	mem := cache.NewMemoryCache(cache.DefaultConfig())
	t.Cleanup(func() { mem.Close() })
	gated := &gatedCache{Cache: mem, entered: make(chan struct{}), release: make(chan struct{})}
	svc := New(db, NewSchemaCache(gated, 0, nil), nil, Options{DeletePolicy: DeletePolicyCascade})
	ctx := context.Background()
	mustGroupfolder(t, svc, 10)
	mustField(t, svc, models.FieldDefinition{ID: "f1", Name: "Retention", Type: models.FieldTypeDate})

	type result struct {
		fields []models.Field
		err    error
	}
	done := make(chan result, 1)
	go func() {
		fields, err := svc.Assignments.GetAssignedFields(ctx, 10)
		done <- result{fields, err}
	}()

	<-gated.entered
	_, err := svc.Assignments.SetAssignedFields(ctx, 10, []string{"f1"}, nil)
	require.NoError(t, err)
	close(gated.release)

	stale := <-done
	require.NoError(t, stale.err)
	assert.Empty(t, stale.fields)

	fields, version, err := svc.Assignments.GetAssignedSchema(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	require.Len(t, fields, 1)
	assert.Equal(t, "f1", fields[0].ID)
}
