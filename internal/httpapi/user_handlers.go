// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PhotoStream Contributors

package httpapi

import (
	"net/http"
	"strconv"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Confirmed bool   `json:"confirmed"`
	Admin     bool   `json:"admin"`
	Moderator bool   `json:"moderator"`
}

// handleMe returns the authenticated principal.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())

	writeJSON(w, http.StatusOK, userResponse{
		ID:        p.ID.String(),
		Email:     p.Email,
		Confirmed: p.Confirmed,
		Admin:     p.Admin,
		Moderator: p.Moderator,
	})
}

// handleListUsers returns a page of accounts. Admin only.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultListLimit)
	if limit < 1 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	users, err := s.users.ListUsers(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse{
			ID:        u.ID.String(),
			Email:     u.Email,
			Confirmed: u.Confirmed,
			Admin:     u.Admin,
			Moderator: u.Moderator,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

// handleModerationPing is a reachability probe for the moderator role.
func (s *Server) handleModerationPing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "pong"})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
