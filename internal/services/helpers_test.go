package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"groupfolderMetadata/internal/cache"
	"groupfolderMetadata/internal/models"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDatabase(filepath.Join(t.TempDir(), "metadata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func newTestServices(t *testing.T, policy DeletePolicy) (*Services, *sql.DB) {
	t.Helper()
	db := newTestDB(t)
	mem := cache.NewMemoryCache(cache.DefaultConfig())
	t.Cleanup(func() { mem.Close() })
	svc := New(db, NewSchemaCache(mem, 0, nil), nil, Options{
		DeletePolicy:  policy,
		AuthSecret:    "test-secret-test-secret-test-secret",
		SessionMaxAge: 3600,
	})
	return svc, db
}

func mustGroupfolder(t *testing.T, svc *Services, gid int64) {
	t.Helper()
	_, err := svc.Groupfolders.UpsertGroupfolder(context.Background(), gid, "Folder")
	require.NoError(t, err)
}

func mustField(t *testing.T, svc *Services, def models.FieldDefinition) *models.Field {
	t.Helper()
	f, err := svc.Fields.CreateField(context.Background(), def)
	require.NoError(t, err)
	return f
}

func countRows(t *testing.T, db *sql.DB, query string, args ...interface{}) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}

func ptr[T any](v T) *T { return &v }
