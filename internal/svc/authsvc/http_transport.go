package authsvc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mkrupp/pantry/internal/domain"
	"github.com/mkrupp/pantry/internal/infra/logging"
	http_ "github.com/mkrupp/pantry/internal/infra/transport/http"
)

var (
	// ErrNoUsername is returned when the username is missing from the request.
	ErrNoUsername = errors.New("no username")
	// ErrNoPassword is returned when the password is missing from the request.
	ErrNoPassword = errors.New("no password")
)

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig
}

// HTTPTransport handles HTTP requests for the authentication service.
// It provides endpoints for user registration, login, and token validation.
type HTTPTransport struct {
	authSvc *AuthService
	log     logging.Logger
	cfg     HTTPTransportConfig
}

// NewHTTPTransport creates a new HTTPTransport instance with the given configuration.
// It requires an AuthService for handling authentication operations.
func NewHTTPTransport(
	authSvc *AuthService,
	cfg HTTPTransportConfig,
) *HTTPTransport {
	return &HTTPTransport{
		authSvc: authSvc,
		log:     logging.GetLogger("svc.authsvc.http_transport"),
		cfg:     cfg,
	}
}

// ServeHTTP implements http.Handler and sets up routes for the auth service endpoints:
// - POST /auth/register: Register a new user
// - POST /auth/login: Login and get an auth token
// - POST /auth/validate: Validate an auth token.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", ht.HandleRegister)
	mux.HandleFunc("POST /auth/login", ht.HandleLogin)
	mux.HandleFunc("POST /auth/validate", ht.HandleValidate)
	mux.ServeHTTP(w, r)
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// HandleRegister processes user registration requests.
// Expects form parameters: username, password and an optional display_name.
// Answers 201 Created with the new identity.
func (ht *HTTPTransport) HandleRegister(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleRegister(w, r)
}

func (ht *HTTPTransport) handleRegister(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "user register failed", "error", err)
		} else {
			log.DebugContext(ctx, "user registered")
		}
	}(r.Context())

	username, password, err := ht.credentials(w, r)
	if err != nil {
		return err
	}

	log = log.With(logging.Group("user", "username", username))

	newUser, err := ht.authSvc.RegisterUser(r.Context(), username, password, r.FormValue("display_name"))
	if err != nil {
		ht.writeError(w, err)

		return fmt.Errorf("register user: %w", err)
	}

	log = log.With(logging.Group("user", "id", newUser.ID))

	return ht.writeJSON(w, http.StatusCreated, newUser.Identity())
}

// HandleLogin exchanges form parameters username and password for an auth token.
func (ht *HTTPTransport) HandleLogin(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLogin(w, r)
}

func (ht *HTTPTransport) handleLogin(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "user login failed", "error", err)
		} else {
			log.DebugContext(ctx, "user logged in")
		}
	}(r.Context())

	username, password, err := ht.credentials(w, r)
	if err != nil {
		return err
	}

	log = log.With(logging.Group("user", "username", username))

	token, err := ht.authSvc.Login(r.Context(), username, password)
	if err != nil {
		ht.writeError(w, err)

		return fmt.Errorf("login user: %w", err)
	}

	return ht.writeJSON(w, http.StatusOK, domain.AuthTokenResponse{Token: token})
}

// HandleValidate checks the bearer token of the request and answers with the
// identity it was issued for.
func (ht *HTTPTransport) HandleValidate(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleValidate(w, r)
}

func (ht *HTTPTransport) handleValidate(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "user token validation failed", "error", err)
		} else {
			log.DebugContext(ctx, "user token validated")
		}
	}(r.Context())

	tokenString := http_.BearerToken(r.Header.Get(http_.AuthorizationHeader))
	if tokenString == "" {
		ht.writeError(w, domain.ErrNoAuthToken)

		return domain.ErrNoAuthToken
	}

	token, err := ht.authSvc.ValidateToken(r.Context(), tokenString)
	if err != nil {
		// Any token that cannot be validated is rejected, whatever the cause.
		ht.writeError(w, errors.Join(domain.ErrInvalidAuthToken, err))

		return fmt.Errorf("validate token: %w", err)
	}

	log = log.With(logging.Group("token",
		"sub", token.Subject,
		"exp", time.Unix(token.ExpiresAt, 0).UTC().Format(time.RFC3339),
	))

	return ht.writeJSON(w, http.StatusOK, token.Identity())
}

// credentials reads username and password from the request form.
// A 400 response has been written when an error is returned.
func (ht *HTTPTransport) credentials(w http.ResponseWriter, r *http.Request) (string, string, error) {
	if err := r.ParseForm(); err != nil {
		ht.writeError(w, ErrNoUsername)

		return "", "", fmt.Errorf("parse form: %w", err)
	}

	username := strings.TrimSpace(r.FormValue("username"))
	if username == "" {
		ht.writeError(w, ErrNoUsername)

		return "", "", ErrNoUsername
	}

	password := r.FormValue("password")
	if password == "" {
		ht.writeError(w, ErrNoPassword)

		return "", "", ErrNoPassword
	}

	return username, password, nil
}

func (ht *HTTPTransport) writeJSON(w http.ResponseWriter, status int, v any) error {
	if err := http_.WriteJSON(w, status, v); err != nil {
		return fmt.Errorf("write response: %w", err)
	}

	return nil
}

// writeError maps auth errors to status codes.
func (ht *HTTPTransport) writeError(w http.ResponseWriter, err error) {
	var status int

	switch {
	case errors.Is(err, ErrNoUsername),
		errors.Is(err, ErrNoPassword),
		errors.Is(err, domain.ErrNoAuthToken):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrInvalidAuthToken):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrUserAlreadyExists):
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
	}

	http.Error(w, http.StatusText(status), status)
}
