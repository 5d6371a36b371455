// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PhotoStream Contributors

package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"

	"github.com/photostream/photostream/internal/auth"
)

type contextKey int

const principalKey contextKey = iota

// PrincipalFromContext returns the authenticated principal, or nil when
// the request did not pass the auth middleware.
func PrincipalFromContext(ctx context.Context) *auth.Principal {
	p, _ := ctx.Value(principalKey).(*auth.Principal)
	return p
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}

// requireAuth authenticates the bearer token, enforces the role, and
// stores the principal in the request context. Authentication failures
// answer 401, privilege failures 403.
func (s *Server) requireAuth(role auth.Role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, err := s.resolver.ResolveAccessToken(r.Context(), bearerToken(r))
		if err != nil {
			writeError(w, r, s.logger, err)
			return
		}
		if err := auth.RequireRole(principal, role); err != nil {
			writeError(w, r, s.logger, err)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey, principal)
		next(w, r.WithContext(ctx))
	}
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// instrument traces every request and records the per-route request
// counter. The route template (not the raw path) labels the metric so
// tokens in the URL do not explode cardinality.
func (s *Server) instrument(next http.Handler) http.Handler {
	tracer := otel.Tracer("photostream/httpapi")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		ctx, span := tracer.Start(r.Context(), r.Method+" "+route)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		if s.metrics != nil {
			s.metrics.HTTPRequestsTotal.
				WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).
				Inc()
		}
	})
}
