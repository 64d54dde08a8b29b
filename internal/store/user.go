// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"folio/internal/models"
)

const userColumns = `id, email, password_hash, display_name, avatar_url, email_verified, totp_secret, totp_enabled, created_at, updated_at`

// UserStore reads and writes accounts. Emails are stored normalized; the
// identity service lowercases them before they reach here.
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a new UserStore with the given database connection.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.AvatarURL,
		&u.EmailVerified, &u.TOTPSecret, &u.TOTPEnabled, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

// findOne runs a single-row user lookup on column.
func (s *UserStore) findOne(ctx context.Context, column string, arg any) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, arg))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("find user by %s: %w", column, err)
	}
	return u, nil
}

// FindByEmail returns nil when no account uses email.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, "email", email)
}

// FindByID returns nil when the account does not exist (or was removed
// while a session still pointed at it).
func (s *UserStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.findOne(ctx, "id", id)
}

// Create inserts an unverified account. The password is hashed with
// bcrypt; a taken email yields ErrDuplicate.
func (s *UserStore) Create(ctx context.Context, email, password, displayName string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := scanUser(s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, display_name)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns,
		email, string(hash), displayName,
	))
	if err != nil {
		return nil, wrapWrite("create user", err)
	}
	return u, nil
}

// touch runs an UPDATE on one user row and bumps updated_at.
func (s *UserStore) touch(ctx context.Context, op, set string, userID uuid.UUID, args ...any) error {
	args = append(args, userID)
	query := fmt.Sprintf(`UPDATE users SET %s, updated_at = NOW() WHERE id = $%d`, set, len(args))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetEmailVerified marks the email address as confirmed.
func (s *UserStore) SetEmailVerified(ctx context.Context, userID uuid.UUID) error {
	return s.touch(ctx, "set email verified", "email_verified = TRUE", userID)
}

// SetTOTPSecret stores a freshly generated secret. 2FA stays off until
// EnableTOTP.
func (s *UserStore) SetTOTPSecret(ctx context.Context, userID uuid.UUID, secret string) error {
	return s.touch(ctx, "set totp secret", "totp_secret = $1", userID, secret)
}

// EnableTOTP turns 2FA on once the user has proven the secret works.
func (s *UserStore) EnableTOTP(ctx context.Context, userID uuid.UUID) error {
	return s.touch(ctx, "enable totp", "totp_enabled = TRUE", userID)
}

// CheckPassword reports whether password matches the stored hash.
func (s *UserStore) CheckPassword(user *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}
