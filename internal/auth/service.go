// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PhotoStream Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// TokenPair is the login/refresh response body.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Service resolves tokens to principals and drives the login and
// refresh flows. All collaborators are injected; Service itself holds
// no mutable state and is safe for concurrent use.
type Service struct {
	users         UserRepository
	cache         SessionCache
	codec         *TokenCodec
	hasher        PasswordHasher
	cacheTTL      time.Duration
	logger        *slog.Logger
	observeLookup func(result string)
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger used for best-effort failure reporting.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithCacheTTL overrides the snapshot cache TTL.
func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.cacheTTL = ttl
	}
}

// WithCacheObserver registers a callback invoked with "hit", "miss", or
// "error" for every snapshot cache lookup. The wiring layer points it
// at a metrics counter; the resolver stays metrics-agnostic.
func WithCacheObserver(observe func(result string)) ServiceOption {
	return func(s *Service) {
		s.observeLookup = observe
	}
}

// NewService creates the identity resolver.
func NewService(users UserRepository, cache SessionCache, codec *TokenCodec, hasher PasswordHasher, opts ...ServiceOption) *Service {
	s := &Service{
		users:         users,
		cache:         cache,
		codec:         codec,
		hasher:        hasher,
		cacheTTL:      DefaultCacheTTL,
		logger:        slog.Default(),
		observeLookup: func(string) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolveAccessToken maps a bearer access token to a Principal. The
// snapshot cache is consulted first; on a miss the user row is loaded
// and the cache repopulated. Every failure collapses to
// AUTH_UNAUTHORIZED so the HTTP layer answers 401 without leaking the
// reason.
func (s *Service) ResolveAccessToken(ctx context.Context, raw string) (*Principal, error) {
	claims, err := s.codec.Decode(raw, ScopeAccess)
	if err != nil {
		return nil, oops.Code("AUTH_UNAUTHORIZED").Wrap(err)
	}

	if p := s.cachedPrincipal(ctx, claims.Subject); p != nil {
		return p, nil
	}

	user, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_UNAUTHORIZED").Wrap(err)
		}
		return nil, oops.Code("AUTH_LOOKUP_FAILED").With("email", claims.Subject).Wrap(err)
	}

	p := SnapshotOf(user)
	s.storePrincipal(ctx, p)
	return p, nil
}

// ResolveOptionalRefreshToken resolves a refresh token carried in a
// cookie, returning nil when the token is absent, invalid, or does not
// name a known user. It never fails: the caller renders an anonymous
// view instead.
func (s *Service) ResolveOptionalRefreshToken(ctx context.Context, raw string) *Principal {
	if raw == "" {
		return nil
	}
	claims, err := s.codec.Decode(raw, ScopeRefresh)
	if err != nil {
		return nil
	}

	if p := s.cachedPrincipal(ctx, claims.Subject); p != nil {
		return p
	}

	user, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		return nil
	}
	p := SnapshotOf(user)
	s.storePrincipal(ctx, p)
	return p
}

// Login authenticates credentials and issues a fresh token pair. The
// failure arms stay distinct (unknown email, unconfirmed address, wrong
// password) to match the public API contract; all three map to 401.
// A verified legacy hash is transparently upgraded to the current
// scheme before tokens are issued.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_INVALID_EMAIL").Errorf("invalid email")
		}
		return nil, oops.Code("AUTH_LOOKUP_FAILED").With("email", email).Wrap(err)
	}
	if !user.Confirmed {
		return nil, oops.Code("AUTH_EMAIL_NOT_CONFIRMED").Errorf("email not confirmed")
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		if err != nil {
			s.logger.WarnContext(ctx, "password verification error treated as mismatch",
				slog.String("email", email), slog.Any("error", err))
		}
		return nil, oops.Code("AUTH_INVALID_PASSWORD").Errorf("invalid password")
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	return s.issuePair(ctx, user)
}

// Refresh exchanges a valid refresh token for a new pair. The presented
// token must match the stored one exactly; a valid-but-stale token is
// treated as evidence of replay, so the stored token is revoked and the
// whole chain dies.
func (s *Service) Refresh(ctx context.Context, raw string) (*TokenPair, error) {
	claims, err := s.codec.Decode(raw, ScopeRefresh)
	if err != nil {
		return nil, oops.Code("AUTH_UNAUTHORIZED").Wrap(err)
	}

	user, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_UNAUTHORIZED").Wrap(err)
		}
		return nil, oops.Code("AUTH_LOOKUP_FAILED").With("email", claims.Subject).Wrap(err)
	}

	if user.RefreshToken == nil || *user.RefreshToken != raw {
		if err := s.RevokeRefreshToken(ctx, user); err != nil {
			s.logger.ErrorContext(ctx, "failed to revoke refresh token after mismatch",
				slog.String("email", user.Email), slog.Any("error", err))
		}
		return nil, oops.Code("AUTH_UNAUTHORIZED").Errorf("refresh token does not match stored token")
	}

	return s.issuePair(ctx, user)
}

// RotateRefreshToken issues a refresh token for user and persists it as
// the single valid one. Concurrent rotations for the same user race
// last-write-wins; the loser's pair is dead on first use.
func (s *Service) RotateRefreshToken(ctx context.Context, user *User) (string, error) {
	token, err := s.codec.IssueRefresh(user.Email)
	if err != nil {
		return "", err
	}
	if err := s.users.SetRefreshToken(ctx, user.ID, &token); err != nil {
		return "", oops.Code("AUTH_PERSIST_FAILED").With("email", user.Email).Wrap(err)
	}
	return token, nil
}

// RevokeRefreshToken clears the stored refresh token so no outstanding
// refresh token for user can be exchanged again.
func (s *Service) RevokeRefreshToken(ctx context.Context, user *User) error {
	if err := s.users.SetRefreshToken(ctx, user.ID, nil); err != nil {
		return oops.Code("AUTH_PERSIST_FAILED").With("email", user.Email).Wrap(err)
	}
	return nil
}

func (s *Service) issuePair(ctx context.Context, user *User) (*TokenPair, error) {
	access, err := s.codec.IssueAccess(user.Email)
	if err != nil {
		return nil, err
	}
	refresh, err := s.RotateRefreshToken(ctx, user)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}

// cachedPrincipal is a best-effort cache read. Errors and undecodable
// entries count as misses.
func (s *Service) cachedPrincipal(ctx context.Context, email string) *Principal {
	entry, err := s.cache.Get(ctx, email)
	if err != nil {
		s.observeLookup("error")
		s.logger.WarnContext(ctx, "session cache read failed",
			slog.String("email", email), slog.Any("error", err))
		return nil
	}
	if entry == nil {
		s.observeLookup("miss")
		return nil
	}
	p, err := DecodeSnapshot(entry)
	if err != nil {
		s.observeLookup("error")
		s.logger.WarnContext(ctx, "discarding undecodable session cache entry",
			slog.String("email", email), slog.Any("error", err))
		return nil
	}
	s.observeLookup("hit")
	return p
}

// storePrincipal is a best-effort cache write.
func (s *Service) storePrincipal(ctx context.Context, p *Principal) {
	entry, err := EncodeSnapshot(p)
	if err != nil {
		s.logger.WarnContext(ctx, "session snapshot encode failed",
			slog.String("email", p.Email), slog.Any("error", err))
		return
	}
	if err := s.cache.Set(ctx, p.Email, entry, s.cacheTTL); err != nil {
		s.logger.WarnContext(ctx, "session cache write failed",
			slog.String("email", p.Email), slog.Any("error", err))
	}
}

// upgradeHash rehashes password with the current scheme. Failures only
// log: the login already succeeded against the legacy hash.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "password hash upgrade failed",
			slog.String("email", user.Email), slog.Any("error", err))
		return
	}
	if err := s.users.UpdatePassword(ctx, user.ID, newHash); err != nil {
		s.logger.WarnContext(ctx, "persisting upgraded password hash failed",
			slog.String("email", user.Email), slog.Any("error", err))
		return
	}
	user.PasswordHash = newHash
	s.logger.InfoContext(ctx, "upgraded legacy password hash",
		slog.String("email", user.Email))
}
