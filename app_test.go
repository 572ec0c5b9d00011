package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"groupfolderMetadata/internal/cache"
	"groupfolderMetadata/internal/handlers"
	"groupfolderMetadata/internal/jobs"
	"groupfolderMetadata/internal/metrics"
	"groupfolderMetadata/internal/models"
	"groupfolderMetadata/internal/services"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestApp(t *testing.T) *App {
	t.Helper()
	config := &Config{
		Environment:        "test",
		SessionSecret:      []byte(testSecret),
		SessionMaxAge:      3600,
		HookSecret:         testSecret,
		FieldDeletePolicy:  services.DeletePolicyCascade,
		CacheTTL:           time.Minute,
		RateLimitPerMinute: 120,
	}

	db, err := services.OpenDatabase(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	require.NoError(t, services.Migrate(context.Background(), db))

	app := &App{
		Config: config,
		Logger: NewLogger("ERROR", io.Discard),
		DB:     db,
		Cache:  cache.NewMemoryCache(cache.DefaultConfig()),
	}
	app.Services = services.New(db, services.NewSchemaCache(app.Cache, time.Minute, nil), nil, services.Options{
		DeletePolicy:  config.FieldDeletePolicy,
		AuthSecret:    config.HookSecret,
		SessionMaxAge: config.SessionMaxAge,
	})
	app.Registry = prometheus.NewRegistry()
	app.Metrics = metrics.New(app.Registry)
	app.SessionStore = sessions.NewCookieStore(config.SessionSecret)
	app.Scheduler = jobs.NewScheduler(nil, app.Metrics)
	t.Cleanup(app.Close)
	return app
}

func (app *App) tokenFor(t *testing.T, user *models.User) string {
	t.Helper()
	token, err := app.Services.Auth.IssueToken(user, time.Minute)
	require.NoError(t, err)
	return token
}

// sessionCookies returns the cookies of a logged in session for user
func (app *App) sessionCookies(t *testing.T, user *models.User, csrfToken string) []*http.Cookie {
	t.Helper()
	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	session, err := app.SessionStore.New(req, handlers.SessionName)
	require.NoError(t, err)

	data, err := json.Marshal(models.SessionData{
		UserID:        user.ID,
		DisplayName:   user.DisplayName,
		IsAdmin:       user.IsAdmin,
		CSRFToken:     csrfToken,
		Authenticated: true,
		CreatedAt:     time.Now(),
	})
	require.NoError(t, err)
	session.Values[handlers.SessionDataKey] = string(data)
	require.NoError(t, session.Save(req, rec))
	return rec.Result().Cookies()
}

type request struct {
	method  string
	path    string
	body    interface{}
	token   string
	cookies []*http.Cookie
	headers map[string]string
}

func serve(t *testing.T, h http.Handler, req request) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader = http.NoBody
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	r := httptest.NewRequest(req.method, req.path, body)
	r.Header.Set("Content-Type", "application/json")
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	for _, c := range req.cookies {
		r.AddCookie(c)
	}
	for k, v := range req.headers {
		r.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}
