package context

import (
	"context"

	"github.com/mkrupp/pantry/internal/domain"
)

const contextKeyIdentity = contextKey("identity")

// IdentityFromContext extracts the authenticated identity from the context.
// Returns false if the request was not authenticated.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(contextKeyIdentity).(domain.Identity)

	return identity, ok && identity.ID != ""
}

// WithIdentity returns a copy of ctx carrying the authenticated identity.
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, identity)
}
