package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"groupfolderMetadata/internal/models"
)

// Groupfolder is a groupfolder as listed by the host
type Groupfolder struct {
	ID         int64  `json:"id"`
	MountPoint string `json:"mount_point"`
}

// Client talks to the OCS API of the host platform
type Client struct {
	baseURL     string
	appUser     string
	appPassword string
	httpClient  *http.Client
}

// NewClient creates a host client. appUser and appPassword authenticate background calls
// such as the groupfolder listing and may be empty when those calls are not needed.
func NewClient(baseURL, appUser, appPassword string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		appUser:     appUser,
		appPassword: appPassword,
		httpClient:  httpClient,
	}
}

// OAuthEndpoint returns the OAuth2 endpoints of the host's OAuth2 provider app
func OAuthEndpoint(baseURL string) oauth2.Endpoint {
	base := strings.TrimRight(baseURL, "/")
	return oauth2.Endpoint{
		AuthURL:  base + "/index.php/apps/oauth2/authorize",
		TokenURL: base + "/index.php/apps/oauth2/api/v1/token",
	}
}

// ocsResponse is the envelope of every OCS API answer
type ocsResponse struct {
	OCS struct {
		Meta struct {
			Status     string `json:"status"`
			StatusCode int    `json:"statuscode"`
			Message    string `json:"message"`
		} `json:"meta"`
		Data json.RawMessage `json:"data"`
	} `json:"ocs"`
}

// ListGroupfolders returns every groupfolder configured on the host, ordered by id
func (c *Client) ListGroupfolders(ctx context.Context) ([]Groupfolder, error) {
	data, err := c.get(ctx, "/index.php/apps/groupfolders/folders", func(req *http.Request) {
		req.SetBasicAuth(c.appUser, c.appPassword)
	})
	if err != nil {
		return nil, err
	}

	// The host encodes an empty folder list as [] and a non-empty one as an object keyed by id
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] == '[' {
		var list []Groupfolder
		if err := json.Unmarshal(trimmed, &list); err != nil && len(trimmed) > 0 {
			return nil, fmt.Errorf("failed to decode groupfolders: %w", err)
		}
		return list, nil
	}

	var byID map[string]Groupfolder
	if err := json.Unmarshal(trimmed, &byID); err != nil {
		return nil, fmt.Errorf("failed to decode groupfolders: %w", err)
	}
	folders := make([]Groupfolder, 0, len(byID))
	for _, g := range byID {
		folders = append(folders, g)
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].ID < folders[j].ID })
	return folders, nil
}

// CurrentUser resolves the user an OAuth access token belongs to
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*models.User, error) {
	data, err := c.get(ctx, "/ocs/v2.php/cloud/user", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	})
	if err != nil {
		return nil, err
	}

	var info struct {
		ID          string   `json:"id"`
		DisplayName string   `json:"displayname"`
		Groups      []string `json:"groups"`
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	if info.ID == "" {
		return nil, fmt.Errorf("host returned a user without id")
	}

	user := &models.User{ID: info.ID, DisplayName: info.DisplayName, Groups: info.Groups}
	if user.DisplayName == "" {
		user.DisplayName = user.ID
	}
	user.IsAdmin = user.HasGroup(models.AdminGroup)
	return user, nil
}

func (c *Client) get(ctx context.Context, path string, authenticate func(*http.Request)) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?format=json", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("OCS-APIRequest", "true")
	req.Header.Set("Accept", "application/json")
	authenticate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("host request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read host response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("host request %s returned status %d", path, resp.StatusCode)
	}

	var envelope ocsResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode host response: %w", err)
	}
	if envelope.OCS.Meta.Status != "" && envelope.OCS.Meta.Status != "ok" {
		return nil, fmt.Errorf("host request %s failed: %s", path, envelope.OCS.Meta.Message)
	}
	return envelope.OCS.Data, nil
}
