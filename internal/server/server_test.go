package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/authd/internal/database"
	"github.com/dukerupert/authd/internal/logging"
	"github.com/dukerupert/authd/internal/model"
	"github.com/dukerupert/authd/internal/store"
	"golang.org/x/crypto/bcrypt"
)

type client struct {
	t      *testing.T
	router http.Handler
	cookie *http.Cookie
}

type response struct {
	Success bool           `json:"success"`
	Error   string         `json:"error"`
	Message string         `json:"message"`
	UserID  string         `json:"userId"`
	User    model.Identity `json:"user"`
	Status  string         `json:"status"`
}

func (c *client) do(method, path, body string) (int, response) {
	c.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "session" {
			if ck.MaxAge < 0 {
				c.cookie = nil
			} else {
				c.cookie = ck
			}
		}
	}

	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		c.t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, resp
}

func setupServer(t *testing.T) (http.Handler, *store.UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	srv, err := New(db, Options{BcryptCost: bcrypt.MinCost}, logging.Discard())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv.Router(), store.NewUserStore(db)
}

func TestAliceScenario(t *testing.T) {
	router, users := setupServer(t)
	ctx := context.Background()

	admin := &client{t: t, router: router}
	if code, _ := admin.do("POST", "/api/auth/register", `{"email":"admin@example.com","firstName":"Ada","lastName":"Admin","password":"adminpass1"}`); code != http.StatusOK {
		t.Fatalf("register admin: %d", code)
	}
	seeded, _ := users.GetByEmail(ctx, "admin@example.com")
	if err := users.SetRole(ctx, seeded.ID, model.RoleAdmin); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	if code, resp := admin.do("POST", "/api/auth/login", `{"email":"admin@example.com","password":"adminpass1"}`); code != http.StatusOK || resp.User.Role != model.RoleAdmin {
		t.Fatalf("admin login: %d %+v", code, resp)
	}

	alice := &client{t: t, router: router}
	code, resp := alice.do("POST", "/api/auth/register", `{"email":"alice@example.com","firstName":"Alice","lastName":"Liddell","password":"password123"}`)
	if code != http.StatusOK || resp.UserID == "" {
		t.Fatalf("register alice: %d %+v", code, resp)
	}
	aliceID := resp.UserID

	if code, _ := alice.do("POST", "/api/auth/login", `{"email":"alice@example.com","password":"password123"}`); code != http.StatusOK {
		t.Fatalf("alice login: %d", code)
	}
	code, resp = alice.do("GET", "/api/auth/me", "")
	if code != http.StatusOK || resp.User.Role != model.RoleUser {
		t.Fatalf("alice me: %d role %v", code, resp.User.Role)
	}

	if code, _ := alice.do("GET", "/api/lister/ping", ""); code != http.StatusForbidden {
		t.Errorf("alice lister ping before promotion: %d, want 403", code)
	}
	if code, _ := alice.do("POST", "/api/admin/promote", `{"userId":"`+aliceID+`"}`); code != http.StatusForbidden {
		t.Errorf("alice self-promote: %d, want 403", code)
	}

	code, resp = admin.do("POST", "/api/admin/promote", `{"userId":"`+aliceID+`"}`)
	if code != http.StatusOK {
		t.Fatalf("promote: %d %q", code, resp.Error)
	}

	if code, _ := alice.do("POST", "/api/auth/logout", ""); code != http.StatusOK {
		t.Fatalf("alice logout: %d", code)
	}
	if code, _ := alice.do("GET", "/api/auth/me", ""); code != http.StatusUnauthorized {
		t.Errorf("me after logout: %d, want 401", code)
	}
	if code, _ := alice.do("POST", "/api/auth/login", `{"email":"alice@example.com","password":"password123"}`); code != http.StatusOK {
		t.Fatalf("alice re-login: %d", code)
	}
	code, resp = alice.do("GET", "/api/auth/me", "")
	if code != http.StatusOK || resp.User.Role != model.RoleLister {
		t.Fatalf("alice me after promotion: %d role %v", code, resp.User.Role)
	}
	if code, _ := alice.do("GET", "/api/lister/ping", ""); code != http.StatusOK {
		t.Errorf("alice lister ping after promotion: %d", code)
	}

	code, resp = admin.do("POST", "/api/admin/promote", `{"userId":"`+aliceID+`"}`)
	if code != http.StatusBadRequest || resp.Error != "User is already a Lister" {
		t.Errorf("second promotion: %d %q", code, resp.Error)
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	router, _ := setupServer(t)
	anon := &client{t: t, router: router}

	for _, tc := range []struct{ method, path string }{
		{"POST", "/api/admin/promote"},
		{"GET", "/api/lister/ping"},
		{"GET", "/api/auth/me"},
	} {
		if code, resp := anon.do(tc.method, tc.path, `{}`); code != http.StatusUnauthorized || resp.Success {
			t.Errorf("%s %s: %d, want 401", tc.method, tc.path, code)
		}
	}
}

func TestHealth(t *testing.T) {
	router, _ := setupServer(t)
	c := &client{t: t, router: router}
	code, resp := c.do("GET", "/health", "")
	if code != http.StatusOK || resp.Status != "ok" {
		t.Errorf("health: %d %q", code, resp.Status)
	}
}

func TestCORSPreflight(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	srv, err := New(db, Options{BcryptCost: bcrypt.MinCost, CORSOrigins: []string{"https://app.example.com"}}, logging.Discard())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	req := httptest.NewRequest("OPTIONS", "/api/auth/login", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q", got)
	}
}
