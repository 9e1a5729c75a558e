package handler

import (
	"net/http"

	"github.com/dukerupert/authd/internal/auth"
)

// ListerPing confirms the caller passed the Lister-or-Admin gate.
func ListerPing(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    id,
	})
}
