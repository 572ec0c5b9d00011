package utils

import (
	"context"
	"net/http"

	"groupfolderMetadata/internal/models"
)

type contextKey string

const (
	UserKey          contextKey = "user"
	CSRFTokenKey     contextKey = "csrf_token"
	AuthenticatedKey contextKey = "authenticated"
	RequestIDKey     contextKey = "request_id"
	// SessionAuthKey marks requests authenticated by cookie, which need CSRF protection
	SessionAuthKey contextKey = "session_auth"
)

// WithUser stores the authenticated user in ctx
func WithUser(ctx context.Context, user *models.User) context.Context {
	ctx = context.WithValue(ctx, UserKey, user)
	return context.WithValue(ctx, AuthenticatedKey, true)
}

// WithSession marks ctx as authenticated by a session cookie with the given CSRF token
func WithSession(ctx context.Context, csrfToken string) context.Context {
	ctx = context.WithValue(ctx, SessionAuthKey, true)
	return context.WithValue(ctx, CSRFTokenKey, csrfToken)
}

// GetUser extracts the authenticated user from request context
func GetUser(r *http.Request) (*models.User, bool) {
	user, ok := r.Context().Value(UserKey).(*models.User)
	return user, ok && user != nil && user.ID != ""
}

// GetCSRFToken extracts CSRF token from request context
func GetCSRFToken(r *http.Request) (string, bool) {
	token, ok := r.Context().Value(CSRFTokenKey).(string)
	return token, ok && token != ""
}

// IsAuthenticated checks if user is authenticated
func IsAuthenticated(r *http.Request) bool {
	authenticated, ok := r.Context().Value(AuthenticatedKey).(bool)
	return ok && authenticated
}

// IsSessionAuth reports whether the request was authenticated with a session cookie
func IsSessionAuth(r *http.Request) bool {
	session, ok := r.Context().Value(SessionAuthKey).(bool)
	return ok && session
}

// IsAdmin checks if user is admin from context
func IsAdmin(r *http.Request) bool {
	user, ok := GetUser(r)
	return ok && user.IsAdmin
}

// GetRequestID returns the request id assigned by the request id middleware
func GetRequestID(r *http.Request) string {
	id, _ := r.Context().Value(RequestIDKey).(string)
	return id
}

// RequireAuthentication is a helper that checks authentication and responds with error if not authenticated
func RequireAuthentication(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := GetUser(r)
	if !ok || !IsAuthenticated(r) {
		AuthenticationError(w)
		return nil, false
	}
	return user, true
}
