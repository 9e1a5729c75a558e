package server

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dukerupert/authd/internal/auth"
	"github.com/dukerupert/authd/internal/handler"
	"github.com/dukerupert/authd/internal/middleware"
	"github.com/dukerupert/authd/internal/password"
	"github.com/dukerupert/authd/internal/session"
	"github.com/dukerupert/authd/internal/store"
)

// Options are the tunables the router and auth components need.
type Options struct {
	SessionTTL     time.Duration
	BcryptCost     int
	SecureCookies  bool
	RequestTimeout time.Duration
	CORSOrigins    []string
}

type Server struct {
	db       *sql.DB
	opts     Options
	sessions *session.Manager
	authH    *handler.AuthHandler
	adminH   *handler.AdminHandler
	logger   *slog.Logger
}

func New(db *sql.DB, opts Options, logger *slog.Logger) (*Server, error) {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = session.DefaultTTL
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	hasher, err := password.New(opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)

	authLogger := logger.With("component", "auth")
	sessions := session.NewManager(sessionStore, logger.With("component", "session"))
	authn := auth.NewAuthenticator(userStore, hasher, sessions, opts.SessionTTL, authLogger)
	guard := auth.NewGuard(sessions, userStore, authLogger)

	httpLogger := logger.With("component", "http")
	return &Server{
		db:       db,
		opts:     opts,
		sessions: sessions,
		authH:    handler.NewAuthHandler(authn, opts.SessionTTL, opts.SecureCookies, httpLogger),
		adminH:   handler.NewAdminHandler(guard, httpLogger),
		logger:   httpLogger,
	}, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(s.opts.RequestTimeout))

	if len(s.opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", handler.Health(s.db, s.logger))

	requireAuth := middleware.RequireAuth(s.sessions, s.logger)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.authH.Register)
			r.Post("/login", s.authH.Login)
			r.Post("/logout", s.authH.Logout)
			r.Get("/me", s.authH.Me)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.RequireRole(auth.IsAdmin))
			r.Post("/promote", s.adminH.Promote)
		})

		r.Route("/lister", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.RequireRole(auth.IsListerOrAdmin))
			r.Get("/ping", handler.ListerPing)
		})
	})

	return r
}
