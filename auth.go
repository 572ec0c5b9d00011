package main

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"groupfolderMetadata/internal/handlers"
	"groupfolderMetadata/internal/models"
	"groupfolderMetadata/internal/utils"
)

var errNoCredentials = errors.New("no credentials")

// bearerToken returns the token of an "Authorization: Bearer" header
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// authenticate resolves the caller from a host token or, failing that, the login session.
// session is nil for token authentication.
func (app *App) authenticate(r *http.Request) (*models.User, *models.SessionData, error) {
	if token, ok := bearerToken(r); ok {
		user, err := app.Services.Auth.ParseToken(token)
		return user, nil, err
	}

	if app.SessionStore == nil {
		return nil, nil, errNoCredentials
	}
	sessionData, err := handlers.LoadSession(app.SessionStore, r)
	if err != nil {
		return nil, nil, err
	}
	if err := app.Services.Auth.ValidateSession(sessionData); err != nil {
		return nil, nil, err
	}
	user := &models.User{
		ID:          sessionData.UserID,
		DisplayName: sessionData.DisplayName,
		IsAdmin:     sessionData.IsAdmin,
	}
	return user, sessionData, nil
}

func (app *App) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, sessionData, err := app.authenticate(r)
		if err != nil {
			if !errors.Is(err, errNoCredentials) && !errors.Is(err, handlers.ErrNoSession) {
				app.Logger.WithFields(map[string]interface{}{
					"path":       r.URL.Path,
					"request_id": utils.GetRequestID(r),
				}).WithError(err).Warn("Authentication failed")
			}
			utils.AuthenticationError(w)
			return
		}

		ctx := utils.WithUser(r.Context(), user)
		if sessionData != nil {
			ctx = utils.WithSession(ctx, sessionData.CSRFToken)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// CSRFMiddleware checks the X-CSRF-Token header on state-changing requests authenticated by cookie.
// Token-authenticated requests carry no ambient credentials and are exempt.
func (app *App) CSRFMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if utils.IsSessionAuth(r) && (r.Method == "POST" || r.Method == "PUT" || r.Method == "DELETE") {
			expectedToken, ok := utils.GetCSRFToken(r)
			if !ok {
				utils.RespondWithError(w, http.StatusForbidden, "CSRF token not found in session")
				return
			}

			providedToken := r.Header.Get("X-CSRF-Token")
			if subtle.ConstantTimeCompare([]byte(providedToken), []byte(expectedToken)) != 1 {
				app.Logger.WithFields(map[string]interface{}{
					"path":       r.URL.Path,
					"request_id": utils.GetRequestID(r),
				}).Warn("CSRF token mismatch")
				utils.RespondWithError(w, http.StatusForbidden, "CSRF token mismatch")
				return
			}
		}

		next.ServeHTTP(w, r)
	}
}

// AdminMiddleware requires a host administrator
func (app *App) AdminMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !utils.IsAdmin(r) {
			utils.AuthorizationError(w)
			return
		}
		next.ServeHTTP(w, r)
	}
}

// HookMiddleware accepts only host-issued tokens; the host's event dispatcher has no session
func (app *App) HookMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			utils.AuthenticationError(w)
			return
		}
		user, err := app.Services.Auth.ParseToken(token)
		if err != nil {
			app.Logger.WithFields(map[string]interface{}{
				"path":       r.URL.Path,
				"request_id": utils.GetRequestID(r),
			}).WithError(err).Warn("Rejected hook token")
			utils.AuthenticationError(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(utils.WithUser(r.Context(), user)))
	}
}

// guard maps the access level of an API route to its middleware chain
func (app *App) guard(access handlers.Access, next http.HandlerFunc) http.HandlerFunc {
	switch access {
	case handlers.AccessHook:
		return app.HookMiddleware(next)
	case handlers.AccessAdmin:
		return app.AuthMiddleware(app.CSRFMiddleware(app.AdminMiddleware(next)))
	default:
		return app.AuthMiddleware(app.CSRFMiddleware(next))
	}
}
