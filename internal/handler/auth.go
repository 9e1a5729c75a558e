package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/authd/internal/auth"
	"github.com/dukerupert/authd/internal/middleware"
)

type AuthHandler struct {
	authn        *auth.Authenticator
	sessionTTL   time.Duration
	secureCookie bool
	logger       *slog.Logger
}

func NewAuthHandler(authn *auth.Authenticator, sessionTTL time.Duration, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authn:        authn,
		sessionTTL:   sessionTTL,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

type registerRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Password  string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID, err := h.authn.Register(r.Context(), auth.RegisterInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		writeError(w, r, h.logger, err, "Registration failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "User registered successfully",
		"userId":  userID,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.authn.Login(r.Context(), auth.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeError(w, r, h.logger, err, "Login failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.ExpiresAt,
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    res.Identity,
		"message": "Login successful",
	})
}

// Logout always clears the cookie and reports success; a store failure is
// only logged.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authn.Logout(r.Context(), middleware.SessionToken(r)); err != nil {
		h.logger.ErrorContext(r.Context(), "logout", "error", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out successfully",
	})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	token := middleware.SessionToken(r)
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"success": false,
			"error":   "Not authenticated",
		})
		return
	}

	id, err := h.authn.WhoAmI(r.Context(), token)
	if err != nil {
		writeError(w, r, h.logger, err, "Session validation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    id,
	})
}
