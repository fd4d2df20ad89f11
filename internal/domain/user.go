package domain

import "errors"

var (
	// ErrUserAlreadyExists is returned when trying to create a user with an existing username.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrUserNotFound is returned when looking up a non-existent user.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned when the username/password combination is incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User is an account known to the auth service.
type User struct {
	ID           string // Random UUID, becomes Identity.ID
	Username     string // Login name, unique
	DisplayName  string // Name shown in the shell header
	PasswordHash []byte // bcrypt hash
	CreatedAt    int64  // Unix timestamp of account creation
}

// Identity returns the session identity for the user.
func (u User) Identity() Identity {
	return Identity{ID: u.ID, DisplayName: u.DisplayName}
}
