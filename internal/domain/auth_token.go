package domain

import "errors"

var (
	// ErrNoAuthToken is returned when an authentication token is required but not provided.
	ErrNoAuthToken = errors.New("no auth token")
	// ErrInvalidAuthToken is returned when a token's signature is invalid or it has expired.
	ErrInvalidAuthToken = errors.New("invalid auth token")
	// ErrUnauthorized is returned when the authenticated user lacks permission.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotSignedIn is returned by session operations that need a current identity.
	ErrNotSignedIn = errors.New("not signed in")
)

// AuthToken is the signed payload handed out on login.
type AuthToken struct {
	Subject     string `json:"sub"`         // User ID
	Username    string `json:"username"`    // Login name
	DisplayName string `json:"displayName"` // Display name at issue time
	IssuedAt    int64  `json:"iat"`         // Unix timestamp when the token was created
	ExpiresAt   int64  `json:"exp"`         // Unix timestamp when the token expires
}

// Identity returns the identity the token was issued for.
func (t AuthToken) Identity() Identity {
	return Identity{ID: t.Subject, DisplayName: t.DisplayName}
}

// AuthTokenResponse represents a response containing an authentication token.
type AuthTokenResponse struct {
	Token string `json:"token"`
}
