package host

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ListGroupfolders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/index.php/apps/groupfolders/folders", r.URL.Path)
		assert.Equal(t, "true", r.Header.Get("OCS-APIRequest"))
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "metadata-bot", user)
		assert.Equal(t, "secret", pass)

		w.Write([]byte(`{"ocs":{"meta":{"status":"ok","statuscode":100},"data":{
			"10":{"id":10,"mount_point":"Projects"},
			"3":{"id":3,"mount_point":"Archive"}}}}`))
	}))
	defer srv.Close()

	folders, err := NewClient(srv.URL, "metadata-bot", "secret", nil).ListGroupfolders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Groupfolder{{ID: 3, MountPoint: "Archive"}, {ID: 10, MountPoint: "Projects"}}, folders)
}

func TestClient_ListGroupfoldersEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ocs":{"meta":{"status":"ok","statuscode":100},"data":[]}}`))
	}))
	defer srv.Close()

	folders, err := NewClient(srv.URL, "u", "p", nil).ListGroupfolders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, folders)
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "u", "p", nil).ListGroupfolders(context.Background())
	assert.Error(t, err)
}

func TestClient_CurrentUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ocs/v2.php/cloud/user", r.URL.Path)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		w.Write([]byte(`{"ocs":{"meta":{"status":"ok"},"data":{"id":"alice","displayname":"Alice","groups":["staff","admin"]}}}`))
	}))
	defer srv.Close()

	user, err := NewClient(srv.URL+"/", "", "", nil).CurrentUser(context.Background(), "token-123")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.ID)
	assert.Equal(t, "Alice", user.DisplayName)
	assert.True(t, user.IsAdmin)
}

func TestOAuthEndpoint(t *testing.T) {
	ep := OAuthEndpoint("https://cloud.example.com/")
	assert.Equal(t, "https://cloud.example.com/index.php/apps/oauth2/authorize", ep.AuthURL)
	assert.Equal(t, "https://cloud.example.com/index.php/apps/oauth2/api/v1/token", ep.TokenURL)
}
