package auth

import (
	"context"

	"fintrack/internal/core"
)

// Identity is the verified caller of a request.
type Identity struct {
	UserID  string
	UID     string
	Email   string
	Name    string
	Picture string
	// User is set when the authenticator resolved the caller against storage.
	User *core.User
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by the authenticator middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
