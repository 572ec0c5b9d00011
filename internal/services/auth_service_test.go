package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupfolderMetadata/internal/models"
)

const testSecret = "test-secret-test-secret-test-secret"

func TestAuthService_TokenRoundTrip(t *testing.T) {
	auth := NewAuthService(testSecret, 3600)

	token, err := auth.IssueToken(&models.User{ID: "alice", DisplayName: "Alice", Groups: []string{"admin"}}, time.Minute)
	require.NoError(t, err)

	user, err := auth.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.ID)
	assert.Equal(t, "Alice", user.DisplayName)
	assert.True(t, user.IsAdmin, "admin group grants admin")
}

func TestAuthService_RejectsBadTokens(t *testing.T) {
	auth := NewAuthService(testSecret, 3600)

	expired, err := auth.IssueToken(&models.User{ID: "alice"}, -time.Minute)
	require.NoError(t, err)
	_, err = auth.ParseToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewAuthService("another-secret-another-secret-xx", 3600).IssueToken(&models.User{ID: "alice"}, time.Minute)
	require.NoError(t, err)
	_, err = auth.ParseToken(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(time.Minute).Unix()})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = auth.ParseToken(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Minute).Unix()})
	signed, err := noSubject.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = auth.ParseToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_ValidateSession(t *testing.T) {
	auth := NewAuthService(testSecret, 60)

	assert.ErrorIs(t, auth.ValidateSession(nil), ErrInvalidSession)
	assert.ErrorIs(t, auth.ValidateSession(&models.SessionData{UserID: "a", Authenticated: true, CreatedAt: time.Now().Add(-time.Hour)}), ErrExpiredSession)
	assert.NoError(t, auth.ValidateSession(&models.SessionData{UserID: "a", Authenticated: true, CreatedAt: time.Now()}))
}
