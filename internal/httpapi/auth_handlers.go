// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PhotoStream Contributors

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/samber/oops"

	"github.com/photostream/photostream/internal/observability"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetRequest struct {
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return oops.Code("HTTP_BAD_REQUEST").Errorf("invalid request body")
	}
	return nil
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	user, token, err := s.accounts.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	s.sendMailAsync("verification", user.Email, func() error {
		return s.mailer.SendVerificationEmail(user.Email, s.opts.BaseURL, token)
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        user.ID.String(),
		"email":     user.Email,
		"confirmed": user.Confirmed,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	pair, err := s.resolver.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.countLogin("failure")
		writeError(w, r, s.logger, err)
		return
	}
	s.countLogin("success")

	writeJSON(w, http.StatusOK, pair)
}

// handleRefresh exchanges a refresh token carried in the Authorization
// header for a fresh pair.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	pair, err := s.resolver.Refresh(r.Context(), bearerToken(r))
	if err != nil {
		s.countRefresh("rejected")
		writeError(w, r, s.logger, err)
		return
	}
	s.countRefresh("rotated")

	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) handleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	if err := s.accounts.ConfirmEmail(r.Context(), token); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Email confirmed"})
}

// handleResendVerification always answers the same message so the
// endpoint cannot probe for accounts.
func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	token, err := s.accounts.ResendVerification(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if token != "" {
		s.sendMailAsync("verification", req.Email, func() error {
			return s.mailer.SendVerificationEmail(req.Email, s.opts.BaseURL, token)
		})
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Check your email for confirmation"})
}

// handleRequestPasswordReset always answers the same message so the
// endpoint cannot probe for accounts.
func (s *Server) handleRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	token, err := s.accounts.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if token != "" {
		s.sendMailAsync("reset", req.Email, func() error {
			return s.mailer.SendResetEmail(req.Email, s.opts.BaseURL, token)
		})
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Check your email for the reset link"})
}

// handleCheckResetToken validates the token in a reset link before the
// client renders the form.
func (s *Server) handleCheckResetToken(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	email, err := s.accounts.EmailFromActionToken(token)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"email": email})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	var req resetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if req.Confirm != "" && req.Password != req.Confirm {
		writeError(w, r, s.logger,
			oops.Code("AUTH_PASSWORD_MISMATCH").Errorf("passwords do not match"))
		return
	}

	if err := s.accounts.ResetPassword(r.Context(), token, req.Password); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Password updated"})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	err := s.accounts.ChangePassword(r.Context(), principal,
		req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Password updated"})
}

// sendMailAsync delivers an email without blocking the response. The
// request context ends when the handler returns, so delivery runs on
// its own goroutine; failures are logged and counted, never surfaced.
func (s *Server) sendMailAsync(kind, recipient string, send func() error) {
	go func() {
		if err := send(); err != nil {
			observability.RecordMailSendFailure(kind)
			s.logger.Error("email delivery failed",
				slog.String("kind", kind),
				slog.String("recipient", recipient),
				slog.Any("error", err))
		}
	}()
}

func (s *Server) countLogin(status string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(status).Inc()
	}
}

func (s *Server) countRefresh(status string) {
	if s.metrics != nil {
		s.metrics.TokenRefreshesTotal.WithLabelValues(status).Inc()
	}
}
