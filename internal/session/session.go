// Package session issues, validates and invalidates opaque session tokens.
// All state lives in the credential store; the Manager holds none.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/authd/internal/autherr"
	"github.com/dukerupert/authd/internal/model"
	"github.com/dukerupert/authd/internal/store"
)

// DefaultTTL is the lifetime of a session issued at login.
const DefaultTTL = 7 * 24 * time.Hour

// Repository is the subset of the session store the Manager needs.
type Repository interface {
	Create(ctx context.Context, ns store.NewSession) (*model.Session, error)
	GetIdentityByToken(ctx context.Context, token string, now time.Time) (*model.Identity, error)
	Deactivate(ctx context.Context, token string) error
}

// ClientMeta is optional request metadata recorded on a session.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

type Manager struct {
	repo   Repository
	now    func() time.Time
	logger *slog.Logger
}

func NewManager(repo Repository, logger *slog.Logger) *Manager {
	return &Manager{
		repo:   repo,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// IssueToken returns a new 256-bit hex token. Uniqueness is left to the
// store's unique index; a collision is negligible.
func (m *Manager) IssueToken() (string, error) {
	return store.NewToken()
}

// Create persists a session for userID expiring ttl from now.
func (m *Manager) Create(ctx context.Context, userID, token string, ttl time.Duration, meta ClientMeta) (*model.Session, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	sess, err := m.repo.Create(ctx, store.NewSession{
		UserID:    userID,
		Token:     token,
		ExpiresAt: m.now().Add(ttl),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "create session", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: create session", autherr.ErrInternal)
	}
	return sess, nil
}

// Validate resolves token to the owner's current identity. It fails with
// ErrUnauthenticated when the session is missing, inactive or expired, or
// when the owner is disabled.
func (m *Manager) Validate(ctx context.Context, token string) (model.Identity, error) {
	if token == "" {
		return model.Identity{}, autherr.ErrUnauthenticated
	}
	id, err := m.repo.GetIdentityByToken(ctx, token, m.now())
	if err != nil {
		m.logger.ErrorContext(ctx, "validate session", "error", err)
		return model.Identity{}, fmt.Errorf("%w: validate session", autherr.ErrInternal)
	}
	if id == nil {
		return model.Identity{}, autherr.ErrUnauthenticated
	}
	return *id, nil
}

// Invalidate marks the session inactive. Empty, unknown and already invalid
// tokens succeed.
func (m *Manager) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.repo.Deactivate(ctx, token); err != nil {
		m.logger.ErrorContext(ctx, "invalidate session", "error", err)
		return fmt.Errorf("%w: invalidate session", autherr.ErrInternal)
	}
	return nil
}
