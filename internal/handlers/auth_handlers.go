package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"groupfolderMetadata/internal/models"
	"groupfolderMetadata/internal/utils"
)

// SessionName is the cookie holding the login session
const SessionName = "auth-session"

const (
	sessionStateKey = "state"
	// SessionDataKey holds the JSON encoded models.SessionData inside the session
	SessionDataKey = "session_data"
)

// ErrNoSession is returned by LoadSession when the request carries no login session
var ErrNoSession = errors.New("no session")

// UserResolver resolves the host user an OAuth access token belongs to
type UserResolver interface {
	CurrentUser(ctx context.Context, accessToken string) (*models.User, error)
}

// AuthHandlers handles the interactive login against the host's OAuth2 provider
type AuthHandlers struct {
	store         sessions.Store
	oauth         *oauth2.Config
	users         UserResolver
	sessionMaxAge int
	secure        bool
	logger        *zap.Logger
}

// NewAuthHandlers creates new authentication handlers
func NewAuthHandlers(store sessions.Store, oauth *oauth2.Config, users UserResolver, sessionMaxAge int, secure bool, logger *zap.Logger) *AuthHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandlers{
		store:         store,
		oauth:         oauth,
		users:         users,
		sessionMaxAge: sessionMaxAge,
		secure:        secure,
		logger:        logger,
	}
}

// LoadSession returns the login session of r. It fails with ErrNoSession when none is stored.
func LoadSession(store sessions.Store, r *http.Request) (*models.SessionData, error) {
	session, err := store.Get(r, SessionName)
	if err != nil {
		return nil, err
	}
	raw, ok := session.Values[SessionDataKey].(string)
	if !ok || raw == "" {
		return nil, ErrNoSession
	}
	var data models.SessionData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (h *AuthHandlers) sessionOptions() *sessions.Options {
	return &sessions.Options{
		Path:     "/",
		MaxAge:   h.sessionMaxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode, // Lax so the OAuth redirect carries the cookie
	}
}

// HandleLogin redirects to the host's authorization page
func (h *AuthHandlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := utils.GenerateSecureToken(16)
	if err != nil {
		h.logger.Error("failed to generate state", zap.Error(err))
		utils.InternalServerError(w, "Failed to generate state")
		return
	}

	session, err := h.store.Get(r, SessionName)
	if err != nil {
		// A corrupted cookie starts a fresh session
		session, err = h.store.New(r, SessionName)
		if err != nil {
			h.logger.Error("failed to create session", zap.Error(err))
			utils.InternalServerError(w, "Session error")
			return
		}
	}
	for k := range session.Values {
		delete(session.Values, k)
	}
	session.Values[sessionStateKey] = state
	session.Options = h.sessionOptions()

	if err := session.Save(r, w); err != nil {
		h.logger.Error("failed to save session", zap.Error(err))
		utils.InternalServerError(w, "Session error")
		return
	}

	http.Redirect(w, r, h.oauth.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// HandleOAuthCallback exchanges the authorization code and stores the host user in the session
func (h *AuthHandlers) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	session, err := h.store.Get(r, SessionName)
	if err != nil {
		utils.BadRequestError(w, "Session error - please try logging in again")
		return
	}

	state, ok := session.Values[sessionStateKey].(string)
	if !ok || state == "" || state != r.URL.Query().Get("state") {
		h.logger.Warn("oauth state mismatch", zap.String("remote_addr", r.RemoteAddr))
		utils.BadRequestError(w, "Invalid state parameter")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		utils.BadRequestError(w, "Code not found")
		return
	}

	token, err := h.oauth.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("failed to exchange token", zap.Error(err))
		utils.InternalServerError(w, "Failed to exchange token")
		return
	}
	user, err := h.users.CurrentUser(r.Context(), token.AccessToken)
	if err != nil {
		h.logger.Error("failed to resolve host user", zap.Error(err))
		utils.InternalServerError(w, "Failed to get user info")
		return
	}

	csrfToken, err := utils.GenerateCSRFToken()
	if err != nil {
		h.logger.Error("failed to generate CSRF token", zap.Error(err))
		utils.InternalServerError(w, "Security token error")
		return
	}
	data, err := json.Marshal(models.SessionData{
		UserID:        user.ID,
		DisplayName:   user.DisplayName,
		IsAdmin:       user.IsAdmin,
		CSRFToken:     csrfToken,
		Authenticated: true,
		CreatedAt:     time.Now(),
	})
	if err != nil {
		utils.InternalServerError(w, "Session processing error")
		return
	}

	delete(session.Values, sessionStateKey)
	session.Values[SessionDataKey] = string(data)
	session.Options = h.sessionOptions()
	if err := session.Save(r, w); err != nil {
		h.logger.Error("failed to save session", zap.Error(err))
		utils.InternalServerError(w, "Session error")
		return
	}

	h.logger.Info("user logged in", zap.String("user", user.ID), zap.Bool("admin", user.IsAdmin))
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// HandleLogout clears the session cookie
func (h *AuthHandlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	session, err := h.store.Get(r, SessionName)
	if err == nil && session != nil {
		for k := range session.Values {
			delete(session.Values, k)
		}
		session.Options = h.sessionOptions()
		session.Options.MaxAge = -1
		session.Save(r, w)
	}

	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// HandleSession reports the authenticated user and, for cookie sessions, the CSRF token
func (h *AuthHandlers) HandleSession(w http.ResponseWriter, r *http.Request) {
	user, ok := utils.RequireAuthentication(w, r)
	if !ok {
		return
	}
	resp := struct {
		User      *models.User `json:"user"`
		CSRFToken string       `json:"csrf_token,omitempty"`
	}{User: user}
	if token, ok := utils.GetCSRFToken(r); ok {
		resp.CSRFToken = token
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}
