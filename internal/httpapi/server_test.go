// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PhotoStream Contributors

package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/photostream/photostream/internal/auth"
	"github.com/photostream/photostream/internal/auth/mocks"
	"github.com/photostream/photostream/internal/httpapi"
	"github.com/photostream/photostream/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

// fakeMailer records sends; delivery runs on handler goroutines, so
// access is synchronized.
type fakeMailer struct {
	mu            sync.Mutex
	verifications []string
	resets        []string
}

func (f *fakeMailer) IsEnabled() bool { return true }

func (f *fakeMailer) SendVerificationEmail(recipient, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifications = append(f.verifications, recipient)
	return nil
}

func (f *fakeMailer) SendResetEmail(recipient, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, recipient)
	return nil
}

func (f *fakeMailer) verificationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.verifications)
}

func (f *fakeMailer) resetCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.resets)
}

type fakeLister struct {
	users []*auth.User
	err   error
}

func (f *fakeLister) ListUsers(_ context.Context, _, _ int) ([]*auth.User, error) {
	return f.users, f.err
}

type testEnv struct {
	users  *mocks.MockUserRepository
	cache  *mocks.MockSessionCache
	hasher *mocks.MockPasswordHasher
	codec  *auth.TokenCodec
	mailer *fakeMailer
	lister *fakeLister
	server *httpapi.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	codec, err := auth.NewTokenCodec([]byte("test-secret"))
	require.NoError(t, err)

	env := &testEnv{
		users:  mocks.NewMockUserRepository(t),
		cache:  mocks.NewMockSessionCache(t),
		hasher: mocks.NewMockPasswordHasher(t),
		codec:  codec,
		mailer: &fakeMailer{},
		lister: &fakeLister{},
	}

	resolver := auth.NewService(env.users, env.cache, codec, env.hasher)
	accounts := auth.NewAccountService(env.users, codec, env.hasher, nil)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	env.server = httpapi.NewServer(
		httpapi.Options{Addr: "127.0.0.1:0", BaseURL: "https://photos.example.com"},
		resolver, accounts, env.lister, env.mailer, metrics, nil,
	)
	return env
}

func (env *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	return rec
}

// bearerFor issues an access token and primes the cache with the user's
// snapshot so resolution succeeds without repository expectations.
func (env *testEnv) bearerFor(t *testing.T, user *auth.User) string {
	t.Helper()

	token, err := env.codec.IssueAccess(user.Email)
	require.NoError(t, err)

	snapshot, err := auth.EncodeSnapshot(auth.SnapshotOf(user))
	require.NoError(t, err)
	env.cache.On("Get", mock.Anything, user.Email).Return(snapshot, nil)

	return token
}

func plainUser(email string) *auth.User {
	return &auth.User{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: "$argon2id$hash",
		Confirmed:    true,
	}
}

func TestSignUp(t *testing.T) {
	t.Run("creates account and sends verification mail", func(t *testing.T) {
		env := newTestEnv(t)
		env.hasher.On("Hash", "password123").Return("$argon2id$hash", nil)
		env.users.On("Create", mock.Anything, mock.Anything).Return(nil)

		rec := env.do(t, http.MethodPost, "/api/auth/signup", "",
			map[string]string{"email": "alice@example.com", "password": "password123"})

		require.Equal(t, http.StatusCreated, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "alice@example.com", resp["email"])
		assert.Equal(t, false, resp["confirmed"])

		assert.Eventually(t, func() bool {
			return env.mailer.verificationCount() == 1
		}, waitFor, tick)
	})

	t.Run("duplicate email answers 409", func(t *testing.T) {
		env := newTestEnv(t)
		env.hasher.On("Hash", "password123").Return("$argon2id$hash", nil)
		env.users.On("Create", mock.Anything, mock.Anything).Return(auth.ErrDuplicateEmail)

		rec := env.do(t, http.MethodPost, "/api/auth/signup", "",
			map[string]string{"email": "taken@example.com", "password": "password123"})

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("weak password answers 400", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.do(t, http.MethodPost, "/api/auth/signup", "",
			map[string]string{"email": "alice@example.com", "password": "short"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body answers 400", func(t *testing.T) {
		env := newTestEnv(t)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/signup",
			bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLogin(t *testing.T) {
	t.Run("valid credentials return bearer pair", func(t *testing.T) {
		env := newTestEnv(t)
		user := plainUser("alice@example.com")

		env.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(user, nil)
		env.hasher.On("Verify", "password123", user.PasswordHash).Return(true, nil)
		env.hasher.On("NeedsUpgrade", user.PasswordHash).Return(false)
		env.users.On("SetRefreshToken", mock.Anything, user.ID, mock.Anything).Return(nil)

		rec := env.do(t, http.MethodPost, "/api/auth/login", "",
			map[string]string{"email": "alice@example.com", "password": "password123"})

		require.Equal(t, http.StatusOK, rec.Code)

		var pair auth.TokenPair
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
		assert.Equal(t, "bearer", pair.TokenType)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
	})

	t.Run("wrong password answers 401 with distinct message", func(t *testing.T) {
		env := newTestEnv(t)
		user := plainUser("alice@example.com")

		env.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(user, nil)
		env.hasher.On("Verify", "wrongpass", user.PasswordHash).Return(false, nil)

		rec := env.do(t, http.MethodPost, "/api/auth/login", "",
			map[string]string{"email": "alice@example.com", "password": "wrongpass"})

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid password")
	})

	t.Run("unconfirmed account answers 401", func(t *testing.T) {
		env := newTestEnv(t)
		user := plainUser("alice@example.com")
		user.Confirmed = false

		env.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(user, nil)

		rec := env.do(t, http.MethodPost, "/api/auth/login", "",
			map[string]string{"email": "alice@example.com", "password": "password123"})

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "email not confirmed")
	})
}

func TestRefresh(t *testing.T) {
	t.Run("matching token rotates", func(t *testing.T) {
		env := newTestEnv(t)
		user := plainUser("alice@example.com")

		refresh, err := env.codec.IssueRefresh(user.Email)
		require.NoError(t, err)
		user.RefreshToken = &refresh

		env.users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
		env.users.On("SetRefreshToken", mock.Anything, user.ID, mock.AnythingOfType("*string")).Return(nil)

		rec := env.do(t, http.MethodGet, "/api/auth/refresh_token", refresh, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var pair auth.TokenPair
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
		assert.NotEqual(t, refresh, pair.RefreshToken)
	})

	t.Run("stale token answers 401 and revokes the stored one", func(t *testing.T) {
		env := newTestEnv(t)
		user := plainUser("alice@example.com")
		stored := "some-other-token"
		user.RefreshToken = &stored

		presented, err := env.codec.IssueRefresh(user.Email)
		require.NoError(t, err)

		env.users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
		env.users.On("SetRefreshToken", mock.Anything, user.ID, (*string)(nil)).Return(nil)

		rec := env.do(t, http.MethodGet, "/api/auth/refresh_token", presented, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing token answers 401", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.do(t, http.MethodGet, "/api/auth/refresh_token", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestConfirmEmail(t *testing.T) {
	t.Run("valid token confirms", func(t *testing.T) {
		env := newTestEnv(t)
		user := plainUser("alice@example.com")
		user.Confirmed = false

		token, err := env.codec.IssueAction(user.Email)
		require.NoError(t, err)

		env.users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
		env.users.On("SetConfirmed", mock.Anything, user.ID).Return(nil)

		rec := env.do(t, http.MethodGet, "/api/auth/confirmed_email/"+token, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("token for unknown account answers 400, never 404", func(t *testing.T) {
		env := newTestEnv(t)

		token, err := env.codec.IssueAction("ghost@example.com")
		require.NoError(t, err)

		env.users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, auth.ErrNotFound)

		rec := env.do(t, http.MethodGet, "/api/auth/confirmed_email/"+token, "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "verification error")
	})

	t.Run("garbage token answers 422", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.do(t, http.MethodGet, "/api/auth/confirmed_email/garbage", "", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestPasswordReset(t *testing.T) {
	t.Run("request answers 200 for unknown accounts too", func(t *testing.T) {
		env := newTestEnv(t)
		env.users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, auth.ErrNotFound)

		rec := env.do(t, http.MethodPost, "/api/auth/reset_password/request", "",
			map[string]string{"email": "ghost@example.com"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Zero(t, env.mailer.resetCount())
	})

	t.Run("request sends reset mail for known accounts", func(t *testing.T) {
		env := newTestEnv(t)
		user := plainUser("alice@example.com")
		env.users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)

		rec := env.do(t, http.MethodPost, "/api/auth/reset_password/request", "",
			map[string]string{"email": user.Email})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Eventually(t, func() bool {
			return env.mailer.resetCount() == 1
		}, waitFor, tick)
	})

	t.Run("GET with valid token reveals target email", func(t *testing.T) {
		env := newTestEnv(t)

		token, err := env.codec.IssueAction("alice@example.com")
		require.NoError(t, err)

		rec := env.do(t, http.MethodGet, "/api/auth/reset_password/"+token, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "alice@example.com")
	})

	t.Run("GET with invalid token answers 422", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.do(t, http.MethodGet, "/api/auth/reset_password/garbage", "", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("POST updates password and revokes refresh token", func(t *testing.T) {
		env := newTestEnv(t)
		user := plainUser("alice@example.com")

		token, err := env.codec.IssueAction(user.Email)
		require.NoError(t, err)

		env.users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
		env.hasher.On("Hash", "newpassword1").Return("$argon2id$new", nil)
		env.users.On("UpdatePassword", mock.Anything, user.ID, "$argon2id$new").Return(nil)
		env.users.On("SetRefreshToken", mock.Anything, user.ID, (*string)(nil)).Return(nil)

		rec := env.do(t, http.MethodPost, "/api/auth/reset_password/"+token, "",
			map[string]string{"password": "newpassword1", "confirm": "newpassword1"})

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("POST with mismatching confirmation answers 400", func(t *testing.T) {
		env := newTestEnv(t)

		token, err := env.codec.IssueAction("alice@example.com")
		require.NoError(t, err)

		rec := env.do(t, http.MethodPost, "/api/auth/reset_password/"+token, "",
			map[string]string{"password": "newpassword1", "confirm": "different1"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestChangePassword(t *testing.T) {
	t.Run("requires authentication", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.do(t, http.MethodPost, "/api/auth/change_password", "",
			map[string]string{"current_password": "a", "new_password": "b", "confirm_password": "b"})

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("changes password for authenticated principal", func(t *testing.T) {
		env := newTestEnv(t)
		user := plainUser("alice@example.com")
		token := env.bearerFor(t, user)

		env.users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
		env.hasher.On("Verify", "oldpassword", user.PasswordHash).Return(true, nil)
		env.hasher.On("Hash", "newpassword1").Return("$argon2id$new", nil)
		env.users.On("UpdatePassword", mock.Anything, user.ID, "$argon2id$new").Return(nil)

		rec := env.do(t, http.MethodPost, "/api/auth/change_password", token, map[string]string{
			"current_password": "oldpassword",
			"new_password":     "newpassword1",
			"confirm_password": "newpassword1",
		})

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestMe(t *testing.T) {
	t.Run("returns the authenticated principal", func(t *testing.T) {
		env := newTestEnv(t)
		user := plainUser("alice@example.com")
		token := env.bearerFor(t, user)

		rec := env.do(t, http.MethodGet, "/api/users/me", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, user.Email, resp["email"])
	})

	t.Run("missing token answers 401", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.do(t, http.MethodGet, "/api/users/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("refresh token is rejected on access path", func(t *testing.T) {
		env := newTestEnv(t)

		refresh, err := env.codec.IssueRefresh("alice@example.com")
		require.NoError(t, err)

		rec := env.do(t, http.MethodGet, "/api/users/me", refresh, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAdminUsers(t *testing.T) {
	t.Run("admin lists accounts", func(t *testing.T) {
		env := newTestEnv(t)
		admin := plainUser("root@example.com")
		admin.Admin = true
		token := env.bearerFor(t, admin)

		env.lister.users = []*auth.User{plainUser("a@example.com"), plainUser("b@example.com")}

		rec := env.do(t, http.MethodGet, "/api/admin/users", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "a@example.com")
		assert.Contains(t, rec.Body.String(), "b@example.com")
	})

	t.Run("non-admin answers 403", func(t *testing.T) {
		env := newTestEnv(t)
		user := plainUser("alice@example.com")
		token := env.bearerFor(t, user)

		rec := env.do(t, http.MethodGet, "/api/admin/users", token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestModerationPing(t *testing.T) {
	t.Run("moderator passes", func(t *testing.T) {
		env := newTestEnv(t)
		moderator := plainUser("mod@example.com")
		moderator.Moderator = true
		token := env.bearerFor(t, moderator)

		rec := env.do(t, http.MethodGet, "/api/moderation/ping", token, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("admin satisfies moderator", func(t *testing.T) {
		env := newTestEnv(t)
		admin := plainUser("root@example.com")
		admin.Admin = true
		token := env.bearerFor(t, admin)

		rec := env.do(t, http.MethodGet, "/api/moderation/ping", token, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("plain user answers 403", func(t *testing.T) {
		env := newTestEnv(t)
		user := plainUser("alice@example.com")
		token := env.bearerFor(t, user)

		rec := env.do(t, http.MethodGet, "/api/moderation/ping", token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
