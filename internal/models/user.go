package models

import "time"

// User is a host platform account as seen by this service
type User struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Groups      []string `json:"groups,omitempty"`
	IsAdmin     bool     `json:"is_admin"`
}

// AdminGroup is the host group whose members may edit field schemas
const AdminGroup = "admin"

// HasGroup reports whether the user belongs to group
func (u *User) HasGroup(group string) bool {
	for _, g := range u.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// SessionData represents session information
type SessionData struct {
	UserID        string    `json:"user_id"`
	DisplayName   string    `json:"display_name"`
	IsAdmin       bool      `json:"is_admin"`
	CSRFToken     string    `json:"csrf_token"`
	Authenticated bool      `json:"authenticated"`
	CreatedAt     time.Time `json:"created_at"`
}

// IsExpired checks if the session has expired
func (s *SessionData) IsExpired(maxAge int) bool {
	return time.Since(s.CreatedAt) > time.Duration(maxAge)*time.Second
}
