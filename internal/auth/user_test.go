// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PhotoStream Contributors

package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photostream/photostream/internal/auth"
	"github.com/photostream/photostream/pkg/errutil"
)

func TestNewUser(t *testing.T) {
	t.Run("creates unconfirmed user without roles", func(t *testing.T) {
		user, err := auth.NewUser("alice@example.com", "$argon2id$hash")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", user.Email)
		assert.False(t, user.Confirmed)
		assert.False(t, user.Admin)
		assert.False(t, user.Moderator)
		assert.Nil(t, user.RefreshToken)
		assert.NotZero(t, user.ID.Time())
	})

	t.Run("rejects empty hash", func(t *testing.T) {
		_, err := auth.NewUser("alice@example.com", "")
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_HASH")
	})

	t.Run("rejects invalid email", func(t *testing.T) {
		_, err := auth.NewUser("not-an-email", "$argon2id$hash")
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_EMAIL_FORMAT")
	})
}

func TestValidateEmail(t *testing.T) {
	t.Run("accepts plain addresses", func(t *testing.T) {
		assert.NoError(t, auth.ValidateEmail("user@example.com"))
		assert.NoError(t, auth.ValidateEmail("first.last+tag@sub.example.co"))
	})

	t.Run("rejects malformed addresses", func(t *testing.T) {
		for _, email := range []string{"", "plain", "@example.com", "user@", "user@host", "a b@example.com"} {
			err := auth.ValidateEmail(email)
			assert.Error(t, err, "email %q", email)
		}
	})

	t.Run("rejects overlong addresses", func(t *testing.T) {
		email := strings.Repeat("a", auth.MaxEmailLength) + "@example.com"
		errutil.AssertErrorCode(t, auth.ValidateEmail(email), "AUTH_INVALID_EMAIL_FORMAT")
	})
}
