package auth

import (
	"context"

	"github.com/dukerupert/authd/internal/model"
)

type contextKey struct{}

// WithIdentity attaches the authenticated identity to ctx.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(model.Identity)
	return id, ok
}
