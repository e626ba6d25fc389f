package handlers

import (
	"context"
	"net/http"
)

// DriveConnection is the part of the token cache behind the Drive routes.
type DriveConnection interface {
	HasTokens(ctx context.Context, userID string) (bool, error)
	Delete(ctx context.Context, userID string) (bool, error)
}

// DriveStatusHandler reports whether the caller has connected Drive.
func DriveStatusHandler(conn DriveConnection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		connected, err := conn.HasTokens(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		msg := "Google Drive is not connected"
		if connected {
			msg = "Google Drive is connected"
		}
		writeData(w, http.StatusOK, msg, map[string]bool{"connected": connected})
	}
}

// DisconnectDriveHandler forgets the caller's Drive credentials. Files in
// Drive and their metadata are kept.
func DisconnectDriveHandler(conn DriveConnection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		removed, err := conn.Delete(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		msg := "Google Drive was not connected"
		if removed {
			msg = "Google Drive disconnected"
		}
		writeData(w, http.StatusOK, msg, map[string]bool{"disconnected": removed})
	}
}
