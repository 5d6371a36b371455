// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PhotoStream Contributors

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/samber/oops"
)

// errorBody is the JSON error envelope: {"detail": "..."}.
type errorBody struct {
	Detail string `json:"detail"`
}

// statusForCode maps error codes to HTTP status. Codes not listed are
// treated as internal errors.
var statusForCode = map[string]int{
	"AUTH_INVALID_EMAIL":         http.StatusUnauthorized,
	"AUTH_EMAIL_NOT_CONFIRMED":   http.StatusUnauthorized,
	"AUTH_INVALID_PASSWORD":      http.StatusUnauthorized,
	"AUTH_UNAUTHORIZED":          http.StatusUnauthorized,
	"AUTH_FORBIDDEN":             http.StatusForbidden,
	"AUTH_EMAIL_TAKEN":           http.StatusConflict,
	"AUTH_VERIFICATION_FAILED":   http.StatusBadRequest,
	"AUTH_PASSWORD_MISMATCH":     http.StatusBadRequest,
	"AUTH_WEAK_PASSWORD":         http.StatusBadRequest,
	"AUTH_INVALID_EMAIL_FORMAT":  http.StatusBadRequest,
	"AUTH_EMPTY_PASSWORD":        http.StatusBadRequest,
	"AUTH_ACTION_TOKEN_INVALID":  http.StatusUnprocessableEntity,
	"HTTP_BAD_REQUEST":           http.StatusBadRequest,
}

// writeJSON serializes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // response write error means the client went away
	json.NewEncoder(w).Encode(v)
}

// writeError maps err to an HTTP status and writes the error envelope.
// Client-visible messages come from the error itself; unmapped codes
// hide the cause behind a generic 500 and log the details.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	detail := "internal server error"

	if oopsErr, ok := oops.AsOops(err); ok {
		if code, found := statusForCode[oopsErr.Code()]; found {
			status = code
			detail = oopsErr.Error()
		}
	}

	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}

	writeJSON(w, status, errorBody{Detail: detail})
}
