// Package models defines the data structures that map to database tables
// and provides the core types used throughout the application.
package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account known to the identity layer.
type User struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"` // Never serialize the hash
	DisplayName   string    `json:"display_name"`
	AvatarURL     string    `json:"avatar_url"`
	EmailVerified bool      `json:"email_verified"`
	TOTPSecret    *string   `json:"-"` // Nullable; set during 2FA setup
	TOTPEnabled   bool      `json:"totp_enabled"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Needs2FA returns true if login must be followed by a TOTP code.
func (u *User) Needs2FA() bool {
	return u.TOTPEnabled && u.TOTPSecret != nil
}
