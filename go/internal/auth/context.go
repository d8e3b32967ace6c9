package auth

import (
	"context"

	"github.com/mcdev12/roomboard/go/internal/models"
)

// Identity is the authenticated caller resolved from a session token
type Identity struct {
	UserID string
	Email  string
	Role   models.Role
	Scope  models.Scope
}

type identityKey struct{}

// WithIdentity returns a context carrying id
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom extracts the caller, if any
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// ScopeFrom returns the caller's hospital/department, or ErrUnauthorized.
func ScopeFrom(ctx context.Context) (models.Scope, error) {
	id, ok := IdentityFrom(ctx)
	if !ok || !id.Scope.Valid() {
		return models.Scope{}, models.ErrUnauthorized
	}
	return id.Scope, nil
}
