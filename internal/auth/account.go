// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PhotoStream Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// MinPasswordLength is the minimum accepted password length for new
// credentials.
const MinPasswordLength = 8

// AccountService handles account lifecycle: signup, email confirmation,
// and password recovery. Token-carrying emails are sent by the caller;
// AccountService only mints the action tokens.
type AccountService struct {
	users  UserRepository
	codec  *TokenCodec
	hasher PasswordHasher
	logger *slog.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(users UserRepository, codec *TokenCodec, hasher PasswordHasher, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		users:  users,
		codec:  codec,
		hasher: hasher,
		logger: logger,
	}
}

// SignUp registers a new, unconfirmed account and returns it together
// with the action token for the verification mail. A duplicate email
// fails with AUTH_EMAIL_TAKEN.
func (a *AccountService) SignUp(ctx context.Context, email, password string) (*User, string, error) {
	if err := validatePassword(password); err != nil {
		return nil, "", err
	}

	hash, err := a.hasher.Hash(password)
	if err != nil {
		return nil, "", err
	}

	user, err := NewUser(email, hash)
	if err != nil {
		return nil, "", err
	}

	if err := a.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, "", oops.Code("AUTH_EMAIL_TAKEN").
				With("email", email).
				Errorf("account already exists")
		}
		return nil, "", oops.Code("AUTH_PERSIST_FAILED").With("email", email).Wrap(err)
	}

	token, err := a.codec.IssueAction(user.Email)
	if err != nil {
		return nil, "", err
	}

	a.logger.InfoContext(ctx, "account created", slog.String("email", user.Email))
	return user, token, nil
}

// ConfirmEmail marks the address named by an action token as confirmed.
// Confirming twice is a no-op. A token naming no known account fails
// with AUTH_VERIFICATION_FAILED, which the HTTP layer maps to 400, not
// 404: the token is attacker-supplied input, not a resource path.
func (a *AccountService) ConfirmEmail(ctx context.Context, token string) error {
	email, err := a.EmailFromActionToken(token)
	if err != nil {
		return err
	}

	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("AUTH_VERIFICATION_FAILED").Errorf("verification error")
		}
		return oops.Code("AUTH_LOOKUP_FAILED").With("email", email).Wrap(err)
	}
	if user.Confirmed {
		return nil
	}

	if err := a.users.SetConfirmed(ctx, user.ID); err != nil {
		return oops.Code("AUTH_PERSIST_FAILED").With("email", email).Wrap(err)
	}
	a.logger.InfoContext(ctx, "email confirmed", slog.String("email", email))
	return nil
}

// ResendVerification returns a fresh action token for an unconfirmed
// account, or ("", nil) when the account is already confirmed or does
// not exist. The caller's response is identical either way so the
// endpoint cannot be used to probe for accounts.
func (a *AccountService) ResendVerification(ctx context.Context, email string) (string, error) {
	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", oops.Code("AUTH_LOOKUP_FAILED").With("email", email).Wrap(err)
	}
	if user.Confirmed {
		return "", nil
	}
	return a.codec.IssueAction(user.Email)
}

// RequestPasswordReset returns an action token for the reset link, or
// ("", nil) for an unknown address. The token stays valid until its
// expiry; it is not consumed by use.
func (a *AccountService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", oops.Code("AUTH_LOOKUP_FAILED").With("email", email).Wrap(err)
	}
	return a.codec.IssueAction(user.Email)
}

// ResetPassword sets a new password for the account named by a reset
// action token and revokes any outstanding refresh token.
func (a *AccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	email, err := a.EmailFromActionToken(token)
	if err != nil {
		return err
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("AUTH_VERIFICATION_FAILED").Errorf("verification error")
		}
		return oops.Code("AUTH_LOOKUP_FAILED").With("email", email).Wrap(err)
	}

	hash, err := a.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := a.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return oops.Code("AUTH_PERSIST_FAILED").With("email", email).Wrap(err)
	}
	if err := a.users.SetRefreshToken(ctx, user.ID, nil); err != nil {
		a.logger.WarnContext(ctx, "failed to revoke refresh token after reset",
			slog.String("email", email), slog.Any("error", err))
	}
	a.logger.InfoContext(ctx, "password reset", slog.String("email", email))
	return nil
}

// ChangePassword replaces the password of an authenticated principal
// after checking the current one. newPassword and confirm must match.
func (a *AccountService) ChangePassword(ctx context.Context, p *Principal, current, newPassword, confirm string) error {
	if newPassword != confirm {
		return oops.Code("AUTH_PASSWORD_MISMATCH").Errorf("passwords do not match")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := a.users.GetByEmail(ctx, p.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("AUTH_UNAUTHORIZED").Wrap(err)
		}
		return oops.Code("AUTH_LOOKUP_FAILED").With("email", p.Email).Wrap(err)
	}

	ok, err := a.hasher.Verify(current, user.PasswordHash)
	if err != nil || !ok {
		return oops.Code("AUTH_INVALID_PASSWORD").Errorf("invalid password")
	}

	hash, err := a.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := a.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return oops.Code("AUTH_PERSIST_FAILED").With("email", p.Email).Wrap(err)
	}
	a.logger.InfoContext(ctx, "password changed", slog.String("email", p.Email))
	return nil
}

// EmailFromActionToken decodes an unscoped action token to its subject.
// The reset form uses it to show which account is affected. Invalid or
// expired tokens fail with AUTH_ACTION_TOKEN_INVALID, which maps to 422
// at the HTTP layer.
func (a *AccountService) EmailFromActionToken(token string) (string, error) {
	claims, err := a.codec.Decode(token, "")
	if err != nil {
		return "", oops.Code("AUTH_ACTION_TOKEN_INVALID").Wrap(err)
	}
	return claims.Subject, nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return oops.Code("AUTH_WEAK_PASSWORD").
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}
