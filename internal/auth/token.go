// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

// PurposePasswordReset marks a token that may only be used to reset a password.
const PurposePasswordReset = "password_reset"

// Token lifetimes used when none are configured.
const (
	DefaultSessionTTL = 7 * 24 * time.Hour
	DefaultResetTTL   = 30 * time.Minute
)

// MinSecretLength is the shortest signing secret NewTokenIssuer accepts.
const MinSecretLength = 16

// Claims are the identity and scope carried by a signed token. A session
// token has an empty Purpose.
type Claims struct {
	UserID          ulid.ULID
	Email           string
	Purpose         string
	PasswordVersion int
	IssuedAt        time.Time
	ExpiresAt       time.Time
}

// IsSession reports whether the claims belong to a session token.
func (c *Claims) IsSession() bool {
	return c.Purpose == ""
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Email           string `json:"email"`
	Purpose         string `json:"purpose,omitempty"`
	PasswordVersion int    `json:"pwv,omitempty"`
}

// TokenIssuer signs and verifies HS256 JWTs.
type TokenIssuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// TokenOption configures a TokenIssuer.
type TokenOption func(*TokenIssuer)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) TokenOption {
	return func(t *TokenIssuer) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTokenIssuer creates a TokenIssuer signing with secret. When issuer is
// non-empty it is stamped into tokens and required on verification.
func NewTokenIssuer(secret, issuer string, opts ...TokenOption) (*TokenIssuer, error) {
	if len(secret) < MinSecretLength {
		return nil, oops.Code("AUTH_INVALID_SECRET").
			With("min_length", MinSecretLength).
			Errorf("token secret must be at least %d bytes", MinSecretLength)
	}
	t := &TokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Issue signs claims with an expiry ttl from now. IssuedAt and ExpiresAt on
// the input are ignored.
func (t *TokenIssuer) Issue(claims Claims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", oops.Code("AUTH_TOKEN_ISSUE_FAILED").With("ttl", ttl).Errorf("token ttl must be positive")
	}
	if claims.UserID.IsZero() {
		return "", oops.Code("AUTH_TOKEN_ISSUE_FAILED").Errorf("token subject cannot be empty")
	}

	now := t.now()
	tc := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.UserID.String(),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:           claims.Email,
		Purpose:         claims.Purpose,
		PasswordVersion: claims.PasswordVersion,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString(t.secret)
	if err != nil {
		return "", oops.Code("AUTH_TOKEN_ISSUE_FAILED").With("purpose", claims.Purpose).Wrap(err)
	}
	return signed, nil
}

// Verify checks the signature, algorithm, issuer, and expiry of token and
// returns its claims. Every failure is reported as an invalid token.
func (t *TokenIssuer) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, invalidToken("empty token")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	var tc tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &tc, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, invalidToken(reason(err))
	}

	id, err := ulid.Parse(tc.Subject)
	if err != nil {
		return nil, invalidToken("malformed subject")
	}

	claims := &Claims{
		UserID:          id,
		Email:           tc.Email,
		Purpose:         tc.Purpose,
		PasswordVersion: tc.PasswordVersion,
	}
	if tc.IssuedAt != nil {
		claims.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		claims.ExpiresAt = tc.ExpiresAt.Time
	}
	return claims, nil
}

func invalidToken(why string) error {
	return oops.Code("AUTH_TOKEN_INVALID").
		With("reason", why).
		Wrap(errutil.InvalidToken("AUTH_TOKEN_INVALID", "Invalid or expired token"))
}

func reason(err error) string {
	switch {
	case err == nil:
		return "invalid"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "bad signature"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	default:
		return "invalid"
	}
}
