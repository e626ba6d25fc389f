package google

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/pysugar/photo-nexus/internal/auth/identity"
	"github.com/pysugar/photo-nexus/internal/logging"
)

// TokenSaver persists tokens received from the consent flow.
type TokenSaver interface {
	Save(ctx context.Context, userID string, tok *oauth2.Token) error
}

// HandleConnect returns the consent URL for the authenticated user.
func HandleConnect(o *OAuth, signer *StateSigner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := identity.UserID(r.Context())
		if userID == "" {
			writeJSONError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !o.Configured() {
			writeJSONError(w, http.StatusServiceUnavailable, "Google OAuth client is not configured")
			return
		}
		state, err := signer.Sign(userID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "Failed to start Drive connection")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"message": "Open the URL to connect Google Drive",
			"data":    map[string]string{"url": o.AuthCodeURL(state)},
		})
	}
}

// HandleCallback processes the OAuth redirect from Google.
func HandleCallback(o *OAuth, signer *StateSigner, store TokenSaver, successURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := logging.FromContext(r.Context())
		q := r.URL.Query()

		if e := q.Get("error"); e != "" {
			http.Error(w, "Drive connection was cancelled: "+e, http.StatusBadRequest)
			return
		}

		userID, err := signer.Verify(q.Get("state"))
		if err != nil {
			http.Error(w, "Invalid state token", http.StatusBadRequest)
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "Missing authorization code", http.StatusBadRequest)
			return
		}

		token, err := o.Exchange(r.Context(), code)
		if err != nil {
			logger.Warn().Err(err).Str("user_id", userID).Msg("drive token exchange failed")
			http.Error(w, fmt.Sprintf("Token exchange failed: %v", err), http.StatusBadGateway)
			return
		}
		if err := store.Save(r.Context(), userID, token); err != nil {
			logger.Error().Err(err).Str("user_id", userID).Msg("failed to save drive tokens")
			http.Error(w, "Failed to save Drive credentials", http.StatusInternalServerError)
			return
		}
		logger.Info().Str("user_id", userID).Bool("refresh_token", token.RefreshToken != "").Msg("drive connected")

		target := html.EscapeString(successURL)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<meta http-equiv="refresh" content="2;url=%s">
	<title>Google Drive Connected</title>
</head>
<body>
	<h1>Google Drive connected</h1>
	<p>You can close this window or wait to be redirected.</p>
</body>
</html>`, target)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
