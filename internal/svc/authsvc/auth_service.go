package authsvc

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkrupp/pantry/internal/domain"
	"github.com/mkrupp/pantry/internal/infra/logging"
	"github.com/mkrupp/pantry/internal/repo/user"
)

// AuthConfig contains configuration parameters for the authentication service.
type AuthConfig struct {
	// SigningKeyFile is the path to the RSA private key file
	SigningKeyFile string `env:"SIGNING_KEY_FILE" default:"var/storage/authsvc.key"`

	// TokenDuration is the validity of issued auth tokens
	TokenDuration time.Duration `env:"TOKEN_DURATION" default:"1h"`

	// PasswordCost is the bcrypt cost factor
	PasswordCost int `env:"PASSWORD_COST" default:"10"`

	// ClockSkew is the tolerance applied to token timestamps during validation
	ClockSkew time.Duration `env:"CLOCK_SKEW" default:"30s"`
}

// AuthService provides authentication and user management functionality.
// It handles user registration, login, and token validation.
type AuthService struct {
	Config     AuthConfig
	UserRepo   user.Repository
	Log        logging.Logger
	SigningKey *rsa.PrivateKey
}

// NewAuthService creates a new AuthService with the given user repository factory and configuration.
// Returns an error if the signing key cannot be loaded or the user repository cannot be created.
func NewAuthService(repoFactory user.RepositoryFactory, cfg AuthConfig) (*AuthService, error) {
	log := logging.GetLogger("svc.authsvc.auth_service")

	signingKey, err := LoadOrCreateSigningKey(cfg.SigningKeyFile)
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}

	userRepo, err := repoFactory()
	if err != nil {
		return nil, fmt.Errorf("new user repo: %w", err)
	}

	return &AuthService{
		Config:     cfg,
		UserRepo:   userRepo,
		Log:        log,
		SigningKey: signingKey,
	}, nil
}

// RegisterUser creates a new user account with a fresh random id.
// The password is hashed with bcrypt before storage; an empty display name
// defaults to the username.
func (s *AuthService) RegisterUser(ctx context.Context, username, password, displayName string) (_ domain.User, err error) {
	log := s.Log.With(logging.Group("user", "username", username))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "register user failed", "error", err)
		} else {
			log.DebugContext(ctx, "user registered")
		}
	}()

	id, err := uuid.NewRandom()
	if err != nil {
		return domain.User{}, fmt.Errorf("new user id: %w", err)
	}

	cost := s.Config.PasswordCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = username
	}

	newUser := domain.User{
		ID:           id.String(),
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().Unix(),
	}

	if err := s.UserRepo.CreateUser(ctx, newUser); err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	return newUser, nil
}

// Login authenticates a user and generates a signed token.
// Returns the encoded token string or an error if authentication fails.
func (s *AuthService) Login(ctx context.Context, username, password string) (_ string, err error) {
	log := s.Log

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "login failed", "error", err)
		} else {
			log.DebugContext(ctx, "login successful")
		}
	}()

	// Authenticate user
	user, ok, err := s.UserRepo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", errors.Join(domain.ErrInvalidCredentials, err)
		}

		return "", fmt.Errorf("get user: %w", err)
	} else if !ok {
		return "", domain.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return "", domain.ErrInvalidCredentials
		}

		return "", fmt.Errorf("compare password: %w", err)
	}

	// Generate token
	now := time.Now()
	expiry := now.Add(s.Config.TokenDuration)
	token := domain.AuthToken{
		Subject:     user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		IssuedAt:    now.Unix(),
		ExpiresAt:   expiry.Unix(),
	}

	log = log.With(logging.Group("token",
		"sub", token.Subject,
		"exp", expiry.UTC().Format(time.RFC3339),
		"iat", now.UTC().Format(time.RFC3339),
	))

	signed, err := SignToken(token, s.SigningKey)
	if err != nil {
		return "", err
	}

	return signed, nil
}

// ValidateToken verifies a token's signature and expiration.
// Returns the decoded token if valid, or an error if validation fails.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (token domain.AuthToken, err error) {
	log := s.Log

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "validate token failed", "error", err)
		} else {
			log.DebugContext(ctx, "token validated")
		}
	}()

	token, err = VerifyToken(tokenString, &s.SigningKey.PublicKey, time.Now(), s.Config.ClockSkew)
	if err != nil {
		return domain.AuthToken{}, fmt.Errorf("validate token: %w", err)
	}

	log = log.With(logging.Group("token",
		"sub", token.Subject,
		"exp", time.Unix(token.ExpiresAt, 0).UTC().Format(time.RFC3339),
		"iat", time.Unix(token.IssuedAt, 0).UTC().Format(time.RFC3339),
	))

	return token, nil
}

// Close releases resources held by the service, such as database connections.
func (s *AuthService) Close() error {
	if err := s.UserRepo.Close(); err != nil {
		return fmt.Errorf("close user repo: %w", err)
	}

	return nil
}
