package app

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const verifyEmailPurpose = "verify-email"

// ErrInvalidToken indicates a verification token that is malformed, expired
// or signed with another key.
var ErrInvalidToken = errors.New("invalid or expired token")

type verificationClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// VerificationTokens issues and checks signed e-mail verification tokens.
type VerificationTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewVerificationTokens creates a token issuer using an HMAC secret.
func NewVerificationTokens(secret string, ttl time.Duration) *VerificationTokens {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &VerificationTokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a token proving control of the account's e-mail address.
func (v *VerificationTokens) Issue(userID int64) (string, error) {
	now := v.now()
	claims := verificationClaims{
		Purpose: verifyEmailPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign verification token: %w", err)
	}
	return signed, nil
}

// Parse validates token and returns the user id it was issued for.
func (v *VerificationTokens) Parse(token string) (int64, error) {
	var claims verificationClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Purpose != verifyEmailPurpose {
		return 0, ErrInvalidToken
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return id, nil
}
