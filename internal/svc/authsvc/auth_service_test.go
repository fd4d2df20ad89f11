package authsvc_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mkrupp/pantry/internal/domain"
	"github.com/mkrupp/pantry/internal/infra/logging"
	"github.com/mkrupp/pantry/internal/svc/authsvc"
)

// mockUserRepository implements user.Repository for testing.
type mockUserRepository struct {
	users map[string]*domain.User
	err   error
	m     sync.Mutex
}

func (m *mockUserRepository) CreateUser(_ context.Context, user domain.User) error {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return m.err
	}
	if _, exists := m.users[user.Username]; exists {
		return domain.ErrUserAlreadyExists
	}
	m.users[user.Username] = &user
	return nil
}

func (m *mockUserRepository) GetUserByUsername(_ context.Context, username string) (*domain.User, bool, error) {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return nil, false, m.err
	}
	user, exists := m.users[username]
	if !exists {
		return nil, false, domain.ErrUserNotFound
	}
	return user, true, nil
}

func (m *mockUserRepository) GetUserByID(_ context.Context, id string) (*domain.User, bool, error) {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return nil, false, m.err
	}
	for _, user := range m.users {
		if user.ID == id {
			return user, true, nil
		}
	}
	return nil, false, domain.ErrUserNotFound
}

func (m *mockUserRepository) Close() error {
	return m.err
}

func newMockUserRepo() *mockUserRepository {
	return &mockUserRepository{
		users: make(map[string]*domain.User),
	}
}

var ErrRepoError = errors.New("repository error")

func setupTestService(t *testing.T) (*authsvc.AuthService, *mockUserRepository) {
	t.Helper()

	// Generate temporary signing key
	signingKey, err := authsvc.GeneratePrivateKey(2048)
	if err != nil {
		t.Fatalf("failed to generate signing key: %v", err)
	}

	mockRepo := newMockUserRepo()
	cfg := authsvc.AuthConfig{
		TokenDuration: time.Hour,
		PasswordCost:  bcrypt.MinCost,
	}

	svc := &authsvc.AuthService{
		Config:     cfg,
		UserRepo:   mockRepo,
		Log:        logging.NewNopLogger(),
		SigningKey: signingKey,
	}

	return svc, mockRepo
}

//nolint:paralleltest
func TestAuthService_RegisterUser(t *testing.T) {
	svc, mockRepo := setupTestService(t)

	tests := []struct {
		name        string
		username    string
		displayName string
		repoErr     error
		wantName    string
		wantErr     error
	}{
		{
			name:        "successful registration",
			username:    "newuser",
			displayName: " New User ",
			wantName:    "New User",
		},
		{
			name:     "display name defaults to username",
			username: "plainuser",
			wantName: "plainuser",
		},
		{
			name:     "duplicate username",
			username: "existinguser",
			wantErr:  domain.ErrUserAlreadyExists,
		},
		{
			name:     "repository error",
			username: "erroruser",
			repoErr:  ErrRepoError,
			wantErr:  ErrRepoError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup test case
			if tt.name == "duplicate username" {
				_, _ = svc.RegisterUser(context.Background(), tt.username, "oldpass", "")
			}
			mockRepo.err = tt.repoErr

			// Execute test
			user, err := svc.RegisterUser(context.Background(), tt.username, "password123", tt.displayName)

			// Verify results
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("RegisterUser() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if user.ID == "" {
				t.Error("RegisterUser() returned empty id")
			}
			if user.DisplayName != tt.wantName {
				t.Errorf("RegisterUser() display name = %q, want %q", user.DisplayName, tt.wantName)
			}
			if string(user.PasswordHash) == "password123" {
				t.Error("RegisterUser() stored plain password")
			}
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	t.Parallel()

	svc, mockRepo := setupTestService(t)

	// Create test user
	registered, err := svc.RegisterUser(context.Background(), "testuser", "testpass123", "Test User")
	if err != nil {
		t.Fatalf("failed to register test user: %v", err)
	}

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{
			name:     "successful login",
			username: "testuser",
			password: "testpass123",
		},
		{
			name:     "wrong password",
			username: "testuser",
			password: "wrongpass",
			wantErr:  domain.ErrInvalidCredentials,
		},
		{
			name:     "user not found",
			username: "nonexistent",
			password: "anypass",
			wantErr:  domain.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Execute test
			token, err := svc.Login(context.Background(), tt.username, tt.password)

			// Verify results
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Login() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				// Verify token can be validated
				parsed, err := svc.ValidateToken(context.Background(), token)
				if err != nil {
					t.Fatalf("Login() generated invalid token: %v", err)
				}
				if got := parsed.Identity(); got != registered.Identity() {
					t.Errorf("token identity = %+v, want %+v", got, registered.Identity())
				}
			}
		})
	}

	t.Run("repository error", func(t *testing.T) {
		t.Parallel()

		failing := *svc
		failing.UserRepo = &mockUserRepository{users: mockRepo.users, err: ErrRepoError}

		if _, err := failing.Login(context.Background(), "testuser", "testpass123"); !errors.Is(err, ErrRepoError) {
			t.Errorf("Login() error = %v, wantErr %v", err, ErrRepoError)
		}
	})
}

func TestAuthService_ValidateToken(t *testing.T) {
	t.Parallel()

	svc, _ := setupTestService(t)

	// Generate a valid token
	ctx := context.Background()
	if _, err := svc.RegisterUser(ctx, "testuser", "testpass", ""); err != nil {
		t.Fatalf("failed to register test user: %v", err)
	}
	validToken, err := svc.Login(ctx, "testuser", "testpass")
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	expired := *svc
	expired.Config.TokenDuration = -time.Minute
	expiredToken, err := expired.Login(ctx, "testuser", "testpass")
	if err != nil {
		t.Fatalf("failed to generate expired token: %v", err)
	}

	otherKey, err := authsvc.GeneratePrivateKey(2048)
	if err != nil {
		t.Fatalf("failed to generate signing key: %v", err)
	}
	foreign := *svc
	foreign.SigningKey = otherKey
	foreignToken, err := foreign.Login(ctx, "testuser", "testpass")
	if err != nil {
		t.Fatalf("failed to generate foreign token: %v", err)
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{
			name:  "valid token",
			token: validToken,
		},
		{
			name:    "invalid token format",
			token:   "invalid-token",
			wantErr: domain.ErrInvalidAuthToken,
		},
		{
			name:    "empty token",
			token:   "",
			wantErr: domain.ErrInvalidAuthToken,
		},
		{
			name:    "expired token",
			token:   expiredToken,
			wantErr: domain.ErrInvalidAuthToken,
		},
		{
			name:    "signed with another key",
			token:   foreignToken,
			wantErr: domain.ErrInvalidAuthToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			token, err := svc.ValidateToken(ctx, tt.token)

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				if token.Username != "testuser" {
					t.Errorf("ValidateToken() username = %v, want %v", token.Username, "testuser")
				}
				if token.Subject == "" {
					t.Error("ValidateToken() empty subject")
				}
				if token.ExpiresAt <= time.Now().Unix() {
					t.Error("ValidateToken() token already expired")
				}
			}
		})
	}
}
