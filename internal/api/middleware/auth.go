package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pysugar/photo-nexus/internal/apperror"
	"github.com/pysugar/photo-nexus/internal/auth/identity"
	"github.com/pysugar/photo-nexus/internal/logging"
)

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// BearerAuth rejects requests without a valid bearer token and stores the
// token subject as the user id.
func BearerAuth(v TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				unauthorized(w, "Missing bearer token")
				return
			}
			userID, err := v.Verify(strings.TrimSpace(raw))
			if err != nil {
				logging.FromContext(r.Context()).Debug().Err(err).Msg("bearer token rejected")
				unauthorized(w, "Invalid or expired bearer token")
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.WithUserID(r.Context(), userID)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="photo-nexus"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
		"code":  string(apperror.CodeUnauthorized),
	})
}
