// Package handler is the JSON boundary over the authenticator and guard.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/authd/internal/autherr"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err onto its status and a caller-safe message. Anything
// outside the taxonomy is logged and reported with fallback.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, fallback string) {
	status := autherr.Status(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), fallback, "error", err)
	}
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   autherr.Message(err, fallback),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Invalid request body",
		})
		return false
	}
	return true
}
