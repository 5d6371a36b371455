// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PhotoStream Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// Token scopes. The values are part of the wire contract: clients
// inspect the scope claim of issued tokens.
const (
	ScopeAccess  = "access_token"
	ScopeRefresh = "refresh_token"
)

// Default token lifetimes.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
	DefaultActionTTL  = 7 * 24 * time.Hour
)

// Claims is the JWT claim set used for every token the service issues.
// Scope is empty for action tokens (email confirmation, password reset).
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

// TokenCodec issues and decodes HS256-signed JWTs. The signing secret is
// fixed at construction; the zero value is not usable.
type TokenCodec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	actionTTL  time.Duration
	now        func() time.Time
}

// TokenCodecOption configures a TokenCodec.
type TokenCodecOption func(*TokenCodec)

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenCodecOption {
	return func(c *TokenCodec) {
		c.accessTTL = ttl
	}
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokenCodecOption {
	return func(c *TokenCodec) {
		c.refreshTTL = ttl
	}
}

// WithActionTTL overrides the action token lifetime.
func WithActionTTL(ttl time.Duration) TokenCodecOption {
	return func(c *TokenCodec) {
		c.actionTTL = ttl
	}
}

// WithNowFunc overrides the clock. Tests use this to issue tokens in
// the past or decode at a chosen instant.
func WithNowFunc(now func() time.Time) TokenCodecOption {
	return func(c *TokenCodec) {
		c.now = now
	}
}

// NewTokenCodec creates a TokenCodec signing with the given secret.
func NewTokenCodec(secret []byte, opts ...TokenCodecOption) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, oops.Code("TOKEN_NO_SECRET").Errorf("signing secret cannot be empty")
	}

	c := &TokenCodec{
		secret:     secret,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		actionTTL:  DefaultActionTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// IssueAccess issues a short-lived access token for the subject.
func (c *TokenCodec) IssueAccess(subject string) (string, error) {
	return c.issue(subject, ScopeAccess, c.accessTTL)
}

// IssueRefresh issues a refresh token for the subject.
func (c *TokenCodec) IssueRefresh(subject string) (string, error) {
	return c.issue(subject, ScopeRefresh, c.refreshTTL)
}

// IssueAction issues an unscoped token for email-delivered links
// (address confirmation, password reset).
func (c *TokenCodec) IssueAction(subject string) (string, error) {
	return c.issue(subject, "", c.actionTTL)
}

func (c *TokenCodec) issue(subject, scope string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", oops.Code("TOKEN_NO_SUBJECT").Errorf("token subject cannot be empty")
	}

	now := c.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Scope: scope,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").With("scope", scope).Wrap(err)
	}
	return signed, nil
}

// Decode verifies the signature and expiry of raw and returns its
// claims. When expectedScope is non-empty the token's scope claim must
// match exactly; a mismatch fails with TOKEN_SCOPE_MISMATCH even for an
// otherwise valid token. Expired tokens fail with TOKEN_EXPIRED, all
// other failures with TOKEN_INVALID.
func (c *TokenCodec) Decode(raw, expectedScope string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, oops.Code("TOKEN_EXPIRED").Wrap(err)
		}
		return nil, oops.Code("TOKEN_INVALID").Wrap(err)
	}

	if claims.Subject == "" {
		return nil, oops.Code("TOKEN_INVALID").Errorf("token has no subject")
	}
	if expectedScope != "" && claims.Scope != expectedScope {
		return nil, oops.Code("TOKEN_SCOPE_MISMATCH").
			With("expected", expectedScope).
			With("actual", claims.Scope).
			Errorf("token scope %q does not match %q", claims.Scope, expectedScope)
	}
	return claims, nil
}
