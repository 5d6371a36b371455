// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PhotoStream Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photostream/photostream/internal/auth"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *UserRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return mock, NewUserRepository(mock)
}

func testUser() *auth.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &auth.User{
		ID:           ulid.Make(),
		Email:        "alice@example.com",
		PasswordHash: "$argon2id$hash",
		Confirmed:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts user row", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		user := testUser()

		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(user.ID.String(), user.Email, user.PasswordHash,
				user.Confirmed, user.Admin, user.Moderator,
				user.RefreshToken, user.CreatedAt, user.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Create(ctx, user))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to duplicate email", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		user := testUser()

		mock.ExpectExec(`INSERT INTO users`).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		err := repo.Create(ctx, user)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
	})

	t.Run("other database errors pass through", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		mock.ExpectExec(`INSERT INTO users`).
			WillReturnError(errors.New("connection refused"))

		err := repo.Create(ctx, testUser())
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrDuplicateEmail)
	})
}

func TestUserRepository_GetByEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("returns stored user", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		user := testUser()
		refresh := "stored-refresh-token"

		rows := pgxmock.NewRows([]string{
			"id", "email", "password_hash", "confirmed", "admin",
			"moderator", "refresh_token", "created_at", "updated_at",
		}).AddRow(user.ID.String(), user.Email, user.PasswordHash,
			true, false, true, &refresh, user.CreatedAt, user.UpdatedAt)

		mock.ExpectQuery(`SELECT (.+) FROM users`).
			WithArgs(user.Email).
			WillReturnRows(rows)

		got, err := repo.GetByEmail(ctx, user.Email)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.True(t, got.Moderator)
		require.NotNil(t, got.RefreshToken)
		assert.Equal(t, refresh, *got.RefreshToken)
	})

	t.Run("missing row wraps not found", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		mock.ExpectQuery(`SELECT (.+) FROM users`).
			WithArgs("ghost@example.com").
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "email", "password_hash", "confirmed", "admin",
				"moderator", "refresh_token", "created_at", "updated_at",
			}))

		_, err := repo.GetByEmail(ctx, "ghost@example.com")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("malformed id fails scan", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		rows := pgxmock.NewRows([]string{
			"id", "email", "password_hash", "confirmed", "admin",
			"moderator", "refresh_token", "created_at", "updated_at",
		}).AddRow("not-a-ulid", "alice@example.com", "hash",
			true, false, false, nil, time.Now(), time.Now())

		mock.ExpectQuery(`SELECT (.+) FROM users`).
			WithArgs("alice@example.com").
			WillReturnRows(rows)

		_, err := repo.GetByEmail(ctx, "alice@example.com")
		require.Error(t, err)
	})
}

func TestUserRepository_SetRefreshToken(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()

	t.Run("stores new token", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		token := "new-refresh-token"

		mock.ExpectExec(`UPDATE users SET refresh_token`).
			WithArgs(id.String(), &token, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.SetRefreshToken(ctx, id, &token))
	})

	t.Run("nil token revokes", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		mock.ExpectExec(`UPDATE users SET refresh_token`).
			WithArgs(id.String(), (*string)(nil), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.SetRefreshToken(ctx, id, nil))
	})

	t.Run("unknown user wraps not found", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		mock.ExpectExec(`UPDATE users SET refresh_token`).
			WithArgs(id.String(), (*string)(nil), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.SetRefreshToken(ctx, id, nil)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()

	t.Run("updates hash", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		mock.ExpectExec(`UPDATE users SET password_hash`).
			WithArgs(id.String(), "$argon2id$new", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.UpdatePassword(ctx, id, "$argon2id$new"))
	})

	t.Run("unknown user wraps not found", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		mock.ExpectExec(`UPDATE users SET password_hash`).
			WithArgs(id.String(), "$argon2id$new", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdatePassword(ctx, id, "$argon2id$new")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_ListUsers(t *testing.T) {
	ctx := context.Background()

	t.Run("returns page of users", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		a, b := testUser(), testUser()
		b.Email = "bob@example.com"

		rows := pgxmock.NewRows([]string{
			"id", "email", "password_hash", "confirmed", "admin",
			"moderator", "refresh_token", "created_at", "updated_at",
		}).
			AddRow(a.ID.String(), a.Email, a.PasswordHash, true, false, false, nil, a.CreatedAt, a.UpdatedAt).
			AddRow(b.ID.String(), b.Email, b.PasswordHash, false, true, false, nil, b.CreatedAt, b.UpdatedAt)

		mock.ExpectQuery(`SELECT (.+) FROM users`).
			WithArgs(50, 0).
			WillReturnRows(rows)

		users, err := repo.ListUsers(ctx, 50, 0)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, a.Email, users[0].Email)
		assert.True(t, users[1].Admin)
	})

	t.Run("query failure is wrapped", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		mock.ExpectQuery(`SELECT (.+) FROM users`).
			WithArgs(50, 0).
			WillReturnError(errors.New("connection refused"))

		_, err := repo.ListUsers(ctx, 50, 0)
		require.Error(t, err)
	})
}

func TestUserRepository_SetConfirmed(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()

	t.Run("confirms user", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		mock.ExpectExec(`UPDATE users SET confirmed`).
			WithArgs(id.String(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.SetConfirmed(ctx, id))
	})

	t.Run("unknown user wraps not found", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		mock.ExpectExec(`UPDATE users SET confirmed`).
			WithArgs(id.String(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.SetConfirmed(ctx, id)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}
