package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"groupfolderMetadata/internal/models"
)

// Authentication errors. These are not part of the service error taxonomy: the HTTP layer
// answers them with 401 before any service is reached.
var (
	ErrInvalidSession = errors.New("invalid session")
	ErrExpiredSession = errors.New("session expired")
	ErrInvalidToken   = errors.New("invalid token")
)

// HostClaims are the claims the host platform puts into the tokens it issues for this service
type HostClaims struct {
	Name   string   `json:"name,omitempty"`
	Groups []string `json:"groups,omitempty"`
	Admin  bool     `json:"admin"`
	jwt.RegisteredClaims
}

// AuthService handles authentication business logic
type AuthService struct {
	secret        []byte
	sessionMaxAge int
}

// NewAuthService creates a new authentication service. secret signs host tokens with HS256.
func NewAuthService(secret string, sessionMaxAge int) *AuthService {
	return &AuthService{secret: []byte(secret), sessionMaxAge: sessionMaxAge}
}

// IssueToken signs a host token for user, valid for ttl
func (s *AuthService) IssueToken(user *models.User, ttl time.Duration) (string, error) {
	issued := time.Now()
	claims := HostClaims{
		Name:   user.DisplayName,
		Groups: user.Groups,
		Admin:  user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseToken verifies a host token and returns the user it was issued for
func (s *AuthService) ParseToken(tokenString string) (*models.User, error) {
	claims := &HostClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	user := &models.User{
		ID:          claims.Subject,
		DisplayName: claims.Name,
		Groups:      claims.Groups,
		IsAdmin:     claims.Admin,
	}
	if user.HasGroup(models.AdminGroup) {
		user.IsAdmin = true
	}
	if user.DisplayName == "" {
		user.DisplayName = user.ID
	}
	return user, nil
}

// ValidateSession validates a session
func (s *AuthService) ValidateSession(sessionData *models.SessionData) error {
	if sessionData == nil || !sessionData.Authenticated || sessionData.UserID == "" {
		return ErrInvalidSession
	}
	if sessionData.IsExpired(s.sessionMaxAge) {
		return ErrExpiredSession
	}
	return nil
}
