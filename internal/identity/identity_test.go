package identity

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"folio/internal/models"
	"folio/internal/store"
)

// memUsers is an in-memory UserRepository.
type memUsers struct {
	byID map[uuid.UUID]*models.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[uuid.UUID]*models.User)}
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (m *memUsers) Create(_ context.Context, email, password, displayName string) (*models.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			return nil, fmt.Errorf("create user: %w", store.ErrDuplicate)
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{ID: uuid.New(), Email: email, PasswordHash: string(hash), DisplayName: displayName}
	m.byID[u.ID] = u
	c := *u
	return &c, nil
}

func (m *memUsers) CheckPassword(user *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

func (m *memUsers) SetEmailVerified(_ context.Context, id uuid.UUID) error {
	m.byID[id].EmailVerified = true
	return nil
}

func (m *memUsers) SetTOTPSecret(_ context.Context, id uuid.UUID, secret string) error {
	m.byID[id].TOTPSecret = &secret
	return nil
}

func (m *memUsers) EnableTOTP(_ context.Context, id uuid.UUID) error {
	m.byID[id].TOTPEnabled = true
	return nil
}

func newTestService() (*Service, *memUsers) {
	users := newMemUsers()
	return NewService(users, NewTokens("test-secret"), "folio"), users
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		display  string
		want     error
	}{
		{"bad email", "not-an-email", "longenough", "Ana", ErrInvalidEmail},
		{"email with name", "Ana <ana@example.com>", "longenough", "Ana", ErrInvalidEmail},
		{"short password", "ana@example.com", "short", "Ana", ErrWeakPassword},
		{"long password", "ana@example.com", strings.Repeat("x", 73), "Ana", ErrWeakPassword},
		{"blank name", "ana@example.com", "longenough", "   ", ErrInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Register(ctx, tt.email, tt.password, tt.display)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// blindUsers misses every email lookup, as a concurrent sign-up would.
type blindUsers struct{ *memUsers }

func (blindUsers) FindByEmail(context.Context, string) (*models.User, error) { return nil, nil }

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "ana@example.com", "longenough", "Ana")
	require.NoError(t, err)
	_, _, err = svc.Register(ctx, "ANA@example.com", "longenough", "Ana again")
	assert.ErrorIs(t, err, ErrEmailTaken)

	users := newMemUsers()
	racy := NewService(blindUsers{users}, NewTokens("test-secret"), "folio")
	_, _, err = racy.Register(ctx, "bo@example.com", "longenough", "Bo")
	require.NoError(t, err)
	_, _, err = racy.Register(ctx, "bo@example.com", "longenough", "Bo")
	assert.ErrorIs(t, err, ErrEmailTaken, "unique violation maps to ErrEmailTaken")
}

func TestRegisterVerifyAndAuthenticate(t *testing.T) {
	svc, users := newTestService()
	ctx := context.Background()

	user, token, err := svc.Register(ctx, "  Ana@Example.com ", "correct horse", "Ana")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.False(t, user.EmailVerified)
	assert.NotEmpty(t, token)

	_, _, err = svc.Register(ctx, "ana@example.com", "another pass", "Ana 2")
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Authenticate(ctx, "ana@example.com", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	got, err := svc.Authenticate(ctx, "ANA@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	verified, err := svc.VerifyEmail(ctx, token)
	require.NoError(t, err)
	assert.True(t, verified.EmailVerified)
	assert.True(t, users.byID[user.ID].EmailVerified)

	// Verifying twice is harmless.
	_, err = svc.VerifyEmail(ctx, token)
	assert.NoError(t, err)
}

func TestVerifyEmailRejectsStaleAddress(t *testing.T) {
	svc, users := newTestService()
	ctx := context.Background()

	user, token, err := svc.Register(ctx, "ana@example.com", "correct horse", "Ana")
	require.NoError(t, err)
	users.byID[user.ID].Email = "new@example.com"

	_, err = svc.VerifyEmail(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.False(t, users.byID[user.ID].EmailVerified)
}

func TestTokens(t *testing.T) {
	id := uuid.New()
	tok := NewTokens("secret-a")

	s, err := tok.IssueVerify(id, "ana@example.com")
	require.NoError(t, err)

	gotID, gotEmail, err := tok.ParseVerify(s)
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, "ana@example.com", gotEmail)

	t.Run("wrong secret", func(t *testing.T) {
		_, _, err := NewTokens("secret-b").ParseVerify(s)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewTokens("secret-a")
		later.now = func() time.Time { return time.Now().Add(VerifyTokenTTL + time.Minute) }
		_, _, err := later.ParseVerify(s)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, _, err := tok.ParseVerify("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong purpose", func(t *testing.T) {
		claims := verifyClaims{
			Email:   "ana@example.com",
			Purpose: "reset",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   id.String(),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret-a"))
		require.NoError(t, err)
		_, _, err = tok.ParseVerify(other)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestTOTPEnrollment(t *testing.T) {
	svc, users := newTestService()
	ctx := context.Background()

	user, _, err := svc.Register(ctx, "ana@example.com", "correct horse", "Ana")
	require.NoError(t, err)

	enr, err := svc.BeginTOTP(ctx, user)
	require.NoError(t, err)
	assert.NotEmpty(t, enr.Secret)
	assert.True(t, len(enr.QRCode) > 8 && string(enr.QRCode[1:4]) == "PNG", "QR code should be a PNG")

	user, _ = users.FindByID(ctx, user.ID)
	assert.False(t, user.Needs2FA(), "2FA must not be enforced before confirmation")

	assert.ErrorIs(t, svc.ConfirmTOTP(ctx, user, "000000x"), ErrInvalidCode)

	code, err := totp.GenerateCode(enr.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmTOTP(ctx, user, code))

	user, _ = users.FindByID(ctx, user.ID)
	assert.True(t, user.Needs2FA())
	assert.NoError(t, svc.CheckTOTP(user, code))
	assert.ErrorIs(t, svc.CheckTOTP(user, "123"), ErrInvalidCode)
}

func TestPendingTOTPReusesSecret(t *testing.T) {
	svc, users := newTestService()
	ctx := context.Background()

	user, _, err := svc.Register(ctx, "ana@example.com", "correct horse", "Ana")
	require.NoError(t, err)

	_, err = svc.PendingTOTP(user)
	assert.ErrorIs(t, err, ErrInvalidCode)

	enr, err := svc.BeginTOTP(ctx, user)
	require.NoError(t, err)

	user, _ = users.FindByID(ctx, user.ID)
	again, err := svc.PendingTOTP(user)
	require.NoError(t, err)
	assert.Equal(t, enr.Secret, again.Secret)
	assert.NotEmpty(t, again.QRCode)
}
