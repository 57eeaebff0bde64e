package core

import (
	"context"
	"strings"
)

// UserID identifies the owner of every record.
type UserID string

type userKey struct{}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, id UserID) context.Context {
	return context.WithValue(ctx, userKey{}, id)
}

// UserFromContext returns the authenticated user or ErrNotAuthenticated.
func UserFromContext(ctx context.Context) (UserID, error) {
	id, ok := ctx.Value(userKey{}).(UserID)
	if !ok || strings.TrimSpace(string(id)) == "" {
		return "", ErrNotAuthenticated
	}
	return id, nil
}
