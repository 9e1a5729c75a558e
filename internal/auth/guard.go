package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukerupert/authd/internal/autherr"
	"github.com/dukerupert/authd/internal/model"
	"github.com/dukerupert/authd/internal/store"
)

// Predicate is a named rule over the closed role set.
type Predicate struct {
	Name  string
	Allow func(model.Role) bool
}

var (
	IsAdmin         = Predicate{Name: "Admin", Allow: model.Role.IsAdmin}
	IsListerOrAdmin = Predicate{Name: "Lister or Admin", Allow: model.Role.IsListerOrAdmin}
)

// Validator resolves session tokens.
type Validator interface {
	Validate(ctx context.Context, token string) (model.Identity, error)
}

// Promoter performs the conditional role update for promotion.
type Promoter interface {
	PromoteToLister(ctx context.Context, id, promotedBy string) (*model.User, error)
}

// Guard enforces authentication and role policy before protected operations.
type Guard struct {
	sessions Validator
	users    Promoter
	logger   *slog.Logger
}

func NewGuard(sessions Validator, users Promoter, logger *slog.Logger) *Guard {
	return &Guard{sessions: sessions, users: users, logger: logger}
}

func (g *Guard) RequireAuthenticated(ctx context.Context, token string) (model.Identity, error) {
	return g.sessions.Validate(ctx, token)
}

// RequireRole returns id when p allows its role and ErrForbidden otherwise.
func (g *Guard) RequireRole(id model.Identity, p Predicate) (model.Identity, error) {
	if p.Allow == nil || !p.Allow(id.Role) {
		return model.Identity{}, autherr.WithMessage(autherr.ErrForbidden, p.Name+" access required")
	}
	return id, nil
}

// Promote makes targetUserID a Lister on behalf of actor. The actor's role is
// checked before the target is looked at, so non-admins get ErrForbidden even
// for unknown ids.
func (g *Guard) Promote(ctx context.Context, actor model.Identity, targetUserID string) (*model.User, error) {
	if _, err := g.RequireRole(actor, IsAdmin); err != nil {
		return nil, err
	}
	targetUserID = strings.TrimSpace(targetUserID)
	if targetUserID == "" {
		return nil, autherr.Validation("User ID is required")
	}

	u, err := g.users.PromoteToLister(ctx, targetUserID, actor.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, autherr.WithMessage(autherr.ErrNotFound, "User not found")
	case errors.Is(err, store.ErrAlreadyPrivileged):
		return nil, autherr.AlreadyPrivileged(u.Role.String())
	case err != nil:
		g.logger.ErrorContext(ctx, "promote user", "target_id", targetUserID, "actor_id", actor.ID, "error", err)
		return nil, fmt.Errorf("%w: promote user", autherr.ErrInternal)
	}

	g.logger.InfoContext(ctx, "user promoted", "target_id", u.ID, "actor_id", actor.ID, "role", u.Role.String())
	return u, nil
}
