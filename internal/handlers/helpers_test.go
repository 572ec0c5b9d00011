package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"groupfolderMetadata/internal/cache"
	"groupfolderMetadata/internal/metrics"
	"groupfolderMetadata/internal/models"
	"groupfolderMetadata/internal/services"
	"groupfolderMetadata/internal/utils"
)

type testAPI struct {
	router  *mux.Router
	svc     *services.Services
	db      *sql.DB
	metrics *metrics.Metrics
}

// asAdmin is a guard that authenticates every request as a host administrator
func asAdmin(_ Access, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := &models.User{ID: "admin", DisplayName: "Admin", IsAdmin: true}
		next(w, r.WithContext(utils.WithUser(r.Context(), user)))
	}
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db, err := services.OpenDatabase(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, services.Migrate(context.Background(), db))

	mem := cache.NewMemoryCache(cache.DefaultConfig())
	t.Cleanup(func() { mem.Close() })
	svc := services.New(db, services.NewSchemaCache(mem, 0, nil), nil, services.Options{AuthSecret: "handlers-test-secret"})
	m := metrics.New(prometheus.NewRegistry())

	router := mux.NewRouter()
	New(svc, nil, m).Register(router, asAdmin)
	return &testAPI{router: router, svc: svc, db: db, metrics: m}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
