// Package handlers exposes the photo, album and Drive operations over HTTP.
// Success bodies are {"message", "data"}; failures are {"error", "code"}.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pysugar/photo-nexus/internal/apperror"
	"github.com/pysugar/photo-nexus/internal/auth/identity"
	"github.com/pysugar/photo-nexus/internal/logging"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, map[string]any{"message": message, "data": data})
}

// writeError reports err with the status its AppError carries. Unknown
// errors become a generic 500 and are logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae, ok := apperror.As(err)
	if !ok {
		logging.FromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}
	status := apperror.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error().Err(err).Str("code", string(ae.Code)).Msg("request failed")
	}
	body := map[string]any{"error": ae.Message, "code": ae.Code}
	if ae.Retryable {
		body["retryable"] = true
	}
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.InvalidInput("Request body is required")
		}
		return apperror.InvalidInput("Invalid request body: " + err.Error())
	}
	return nil
}

// requireUser returns the authenticated user id or writes 401.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := identity.UserID(r.Context())
	if userID == "" {
		writeError(w, r, apperror.Unauthorized("Authentication required"))
		return "", false
	}
	return userID, true
}

func uintParam(r *http.Request, name string) (uint, error) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, 32)
	if err != nil {
		return 0, apperror.InvalidInput("Invalid " + name)
	}
	return uint(v), nil
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

func (req idsRequest) validate() error {
	if len(req.IDs) == 0 {
		return apperror.InvalidInput("ids must contain at least one photo id")
	}
	return nil
}
