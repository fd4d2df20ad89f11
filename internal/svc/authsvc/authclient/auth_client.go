package authclient

import (
	"context"

	"github.com/mkrupp/pantry/internal/domain"
)

// AuthClient defines the interface for validating authentication tokens.
type AuthClient interface {
	// Validate checks if the given token is valid.
	// Returns the identity the token was issued for, whether the token is valid,
	// and any error encountered while asking the auth service.
	Validate(ctx context.Context, token string) (domain.Identity, bool, error)
}

// AccountClient extends AuthClient with account operations used by interactive clients.
type AccountClient interface {
	AuthClient

	// Login exchanges credentials for a token.
	// Returns domain.ErrInvalidCredentials if the auth service rejects them.
	Login(ctx context.Context, username, password string) (string, error)

	// Register creates a new account.
	// Returns domain.ErrUserAlreadyExists if the username is taken.
	Register(ctx context.Context, username, password, displayName string) error
}
