package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// VerifyTokenTTL is how long an email verification link stays valid.
const VerifyTokenTTL = 24 * time.Hour

const purposeVerify = "verify"

var ErrInvalidToken = errors.New("invalid or expired token")

// verifyClaims is the payload of an email verification token.
type verifyClaims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Tokens signs and checks HMAC tokens for account links.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates a token issuer keyed by secret.
func NewTokens(secret string) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: VerifyTokenTTL, now: time.Now}
}

// IssueVerify creates a verification token for the user's current address.
func (t *Tokens) IssueVerify(userID uuid.UUID, email string) (string, error) {
	now := t.now()
	claims := verifyClaims{
		Email:   email,
		Purpose: purposeVerify,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// ParseVerify checks a verification token and returns its user id and email.
func (t *Tokens) ParseVerify(token string) (uuid.UUID, string, error) {
	claims := &verifyClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid || claims.Purpose != purposeVerify {
		return uuid.Nil, "", ErrInvalidToken
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, "", ErrInvalidToken
	}
	return id, claims.Email, nil
}
