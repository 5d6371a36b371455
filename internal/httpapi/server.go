// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PhotoStream Contributors

// Package httpapi exposes the public REST API.
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/oops"

	"github.com/photostream/photostream/internal/auth"
	"github.com/photostream/photostream/internal/mail"
	"github.com/photostream/photostream/internal/observability"
)

// UserLister lists accounts for the admin surface. The postgres
// repository implements it alongside auth.UserRepository.
type UserLister interface {
	ListUsers(ctx context.Context, limit, offset int) ([]*auth.User, error)
}

// Options configures the API server.
type Options struct {
	// Addr is the listen address, e.g. ":8000".
	Addr string
	// BaseURL is the public base URL used in emailed links.
	BaseURL string
}

// Server serves the REST API.
type Server struct {
	opts       Options
	resolver   *auth.Service
	accounts   *auth.AccountService
	users      UserLister
	mailer     mail.Mailer
	metrics    *observability.Metrics
	logger     *slog.Logger
	router     *mux.Router
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates the API server and registers all routes.
func NewServer(
	opts Options,
	resolver *auth.Service,
	accounts *auth.AccountService,
	users UserLister,
	mailer mail.Mailer,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		opts:     opts,
		resolver: resolver,
		accounts: accounts,
		users:    users,
		mailer:   mailer,
		metrics:  metrics,
		logger:   logger,
	}
	s.router = s.routes()
	return s
}

// Handler returns the routed handler. Tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.instrument)

	api := r.PathPrefix("/api").Subrouter()

	// Account lifecycle
	api.HandleFunc("/auth/signup", s.handleSignUp).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh_token", s.handleRefresh).Methods(http.MethodGet)
	api.HandleFunc("/auth/confirmed_email/{token}", s.handleConfirmEmail).Methods(http.MethodGet)
	api.HandleFunc("/auth/request_email", s.handleResendVerification).Methods(http.MethodPost)
	api.HandleFunc("/auth/reset_password/request", s.handleRequestPasswordReset).Methods(http.MethodPost)
	api.HandleFunc("/auth/reset_password/{token}", s.handleCheckResetToken).Methods(http.MethodGet)
	api.HandleFunc("/auth/reset_password/{token}", s.handleResetPassword).Methods(http.MethodPost)
	api.HandleFunc("/auth/change_password",
		s.requireAuth(auth.RoleAny, s.handleChangePassword)).Methods(http.MethodPost)

	// Authenticated surfaces
	api.HandleFunc("/users/me",
		s.requireAuth(auth.RoleAny, s.handleMe)).Methods(http.MethodGet)
	api.HandleFunc("/admin/users",
		s.requireAuth(auth.RoleAdmin, s.handleListUsers)).Methods(http.MethodGet)
	api.HandleFunc("/moderation/ping",
		s.requireAuth(auth.RoleModerator, s.handleModerationPing)).Methods(http.MethodGet)

	return r
}

// Start begins serving the API. It returns an error channel that
// receives any serve failure; the channel closes on graceful stop.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.opts.Addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", slog.Any("error", serveErr))
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", slog.String("addr", listener.Addr().String()))
	return errCh, nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the listen address, or empty when not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
