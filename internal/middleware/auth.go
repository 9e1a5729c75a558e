package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/authd/internal/auth"
	"github.com/dukerupert/authd/internal/autherr"
	"github.com/dukerupert/authd/internal/model"
)

// SessionCookieName is the cookie carrying the opaque session token.
const SessionCookieName = "session"

// SessionValidator resolves a session token to the owner's identity.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (model.Identity, error)
}

// SessionToken returns the session cookie value, or "" when absent.
func SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// RequireAuth validates the session cookie and attaches the identity to the
// request context. Missing or invalid sessions get a 401 JSON body.
func RequireAuth(sessions SessionValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			id, err := sessions.Validate(r.Context(), token)
			if errors.Is(err, autherr.ErrUnauthenticated) {
				writeError(w, http.StatusUnauthorized, "Invalid or expired session")
				return
			}
			if err != nil {
				logger.ErrorContext(r.Context(), "session validation failed", "error", err)
				writeError(w, http.StatusInternalServerError, "Session validation failed")
				return
			}

			ctx := auth.WithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated callers whose role p does not allow.
// It must run after RequireAuth.
func RequireRole(p auth.Predicate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !p.Allow(id.Role) {
				writeError(w, http.StatusForbidden, p.Name+" access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}
