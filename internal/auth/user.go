// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PhotoStream Contributors

package auth

import (
	"context"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Email validation constraints.
const MaxEmailLength = 254

// emailRegex is a pragmatic check, not a full RFC 5322 parser. The
// confirmation mail is the real validation.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// User represents a registered account. Email is the identity key used
// in token subjects and cache keys; the flags drive role checks.
// RefreshToken holds the single currently valid refresh token, nil when
// revoked.
type User struct {
	ID           ulid.ULID
	Email        string
	PasswordHash string
	Confirmed    bool
	Admin        bool
	Moderator    bool
	RefreshToken *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser creates a validated User with a fresh ULID. The account starts
// unconfirmed and without roles.
func NewUser(email, passwordHash string) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &User{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ValidateEmail validates an email address against rules.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("AUTH_INVALID_EMAIL_FORMAT").Errorf("email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code("AUTH_INVALID_EMAIL_FORMAT").
			With("max", MaxEmailLength).
			Errorf("email must be at most %d characters", MaxEmailLength)
	}
	if !emailRegex.MatchString(email) {
		return oops.Code("AUTH_INVALID_EMAIL_FORMAT").Errorf("email address is not valid")
	}
	return nil
}

// UserRepository manages user persistence. Implementations wrap
// ErrNotFound for missing rows and ErrDuplicateEmail for unique
// violations on the email column.
type UserRepository interface {
	// Create stores a new user.
	Create(ctx context.Context, user *User) error

	// GetByEmail retrieves a user by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*User, error)

	// SetRefreshToken replaces the stored refresh token value.
	// A nil token revokes the current one.
	SetRefreshToken(ctx context.Context, id ulid.ULID, token *string) error

	// UpdatePassword updates only the password hash for a user.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// SetConfirmed marks the user's email address as confirmed.
	SetConfirmed(ctx context.Context, id ulid.ULID) error
}
