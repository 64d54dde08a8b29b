// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package identity manages reader and admin accounts: registration,
// password sign-in, email verification links and optional TOTP.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"

	"folio/internal/models"
	"folio/internal/store"
)

// Account limits.
const (
	MinPasswordLen    = 8
	MaxPasswordLen    = 72 // bcrypt ignores anything longer
	MaxDisplayNameLen = 80
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = fmt.Errorf("password must be %d to %d characters", MinPasswordLen, MaxPasswordLen)
	ErrInvalidName        = fmt.Errorf("display name must be 1 to %d characters", MaxDisplayNameLen)
	ErrInvalidCode        = errors.New("invalid authentication code")
)

// UserRepository is the user store as seen by this package.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, email, password, displayName string) (*models.User, error)
	CheckPassword(user *models.User, password string) bool
	SetEmailVerified(ctx context.Context, userID uuid.UUID) error
	SetTOTPSecret(ctx context.Context, userID uuid.UUID, secret string) error
	EnableTOTP(ctx context.Context, userID uuid.UUID) error
}

// Service implements the account flows.
type Service struct {
	users  UserRepository
	tokens *Tokens
	issuer string
}

// NewService creates the account service. issuer labels TOTP entries in
// authenticator apps.
func NewService(users UserRepository, tokens *Tokens, issuer string) *Service {
	return &Service{users: users, tokens: tokens, issuer: issuer}
}

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email is a single bare address.
func ValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// Register creates an unverified account and returns it together with a
// verification token to email to the user.
func (s *Service) Register(ctx context.Context, email, password, displayName string) (*models.User, string, error) {
	email = NormalizeEmail(email)
	displayName = strings.TrimSpace(displayName)

	if !ValidEmail(email) {
		return nil, "", ErrInvalidEmail
	}
	if n := utf8.RuneCountInString(password); n < MinPasswordLen || len(password) > MaxPasswordLen {
		return nil, "", ErrWeakPassword
	}
	if displayName == "" || utf8.RuneCountInString(displayName) > MaxDisplayNameLen {
		return nil, "", ErrInvalidName
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		return nil, "", ErrEmailTaken
	}

	user, err := s.users.Create(ctx, email, password, displayName)
	if errors.Is(err, store.ErrDuplicate) {
		// Lost a race with a concurrent sign-up for the same address.
		return nil, "", ErrEmailTaken
	}
	if err != nil {
		return nil, "", err
	}

	token, err := s.tokens.IssueVerify(user.ID, user.Email)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Authenticate checks an email and password pair.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil || !s.users.CheckPassword(user, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// VerifyEmail consumes a verification token and marks the account verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	userID, email, err := s.tokens.ParseVerify(token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	// A token issued for an address the account no longer has is stale.
	if user == nil || user.Email != email {
		return nil, ErrInvalidToken
	}
	if user.EmailVerified {
		return user, nil
	}

	if err := s.users.SetEmailVerified(ctx, user.ID); err != nil {
		return nil, err
	}
	user.EmailVerified = true
	return user, nil
}

// ResendToken issues a fresh verification token for an unverified user.
func (s *Service) ResendToken(user *models.User) (string, error) {
	return s.tokens.IssueVerify(user.ID, user.Email)
}

// TOTPEnrollment is the data shown on the 2FA setup page.
type TOTPEnrollment struct {
	Secret string
	QRCode []byte // PNG
}

// BeginTOTP generates and stores a new TOTP secret. 2FA is not enforced
// until ConfirmTOTP succeeds.
func (s *Service) BeginTOTP(ctx context.Context, user *models.User) (*TOTPEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: user.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("totp generate: %w", err)
	}

	if err := s.users.SetTOTPSecret(ctx, user.ID, key.Secret()); err != nil {
		return nil, err
	}

	png, err := qrcode.Encode(key.URL(), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("qr code: %w", err)
	}
	return &TOTPEnrollment{Secret: key.Secret(), QRCode: png}, nil
}

// PendingTOTP rebuilds the enrollment for a stored secret that has not
// been confirmed yet, so a mistyped code does not force a rescan.
func (s *Service) PendingTOTP(user *models.User) (*TOTPEnrollment, error) {
	if user.TOTPSecret == nil {
		return nil, ErrInvalidCode
	}

	q := url.Values{}
	q.Set("secret", *user.TOTPSecret)
	q.Set("issuer", s.issuer)
	uri := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + s.issuer + ":" + user.Email,
		RawQuery: q.Encode(),
	}

	png, err := qrcode.Encode(uri.String(), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("qr code: %w", err)
	}
	return &TOTPEnrollment{Secret: *user.TOTPSecret, QRCode: png}, nil
}

// ConfirmTOTP enables 2FA once the user proves their authenticator works.
func (s *Service) ConfirmTOTP(ctx context.Context, user *models.User, code string) error {
	if user.TOTPSecret == nil || !totp.Validate(strings.TrimSpace(code), *user.TOTPSecret) {
		return ErrInvalidCode
	}
	return s.users.EnableTOTP(ctx, user.ID)
}

// CheckTOTP validates a sign-in code for a user with 2FA enabled.
func (s *Service) CheckTOTP(user *models.User, code string) error {
	if !user.Needs2FA() || !totp.Validate(strings.TrimSpace(code), *user.TOTPSecret) {
		return ErrInvalidCode
	}
	return nil
}
