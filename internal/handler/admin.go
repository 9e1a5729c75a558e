package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/authd/internal/auth"
	"github.com/dukerupert/authd/internal/autherr"
)

type AdminHandler struct {
	guard  *auth.Guard
	logger *slog.Logger
}

func NewAdminHandler(guard *auth.Guard, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{guard: guard, logger: logger}
}

type promoteRequest struct {
	UserID string `json:"userId"`
}

// Promote makes the requested user a Lister. The caller's identity comes
// from RequireAuth; the guard re-checks the Admin role before touching the
// target.
func (h *AdminHandler) Promote(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, autherr.ErrUnauthenticated, "Promotion failed")
		return
	}

	var req promoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.guard.Promote(r.Context(), actor, req.UserID)
	if err != nil {
		writeError(w, r, h.logger, err, "Promotion failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "User " + u.Email + " promoted to Lister successfully",
	})
}
