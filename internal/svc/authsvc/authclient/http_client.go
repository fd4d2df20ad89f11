package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mkrupp/pantry/internal/domain"
	context_ "github.com/mkrupp/pantry/internal/infra/context"
	"github.com/mkrupp/pantry/internal/infra/logging"
)

// ErrUnexpectedStatus is returned when the auth service answers with a status the client does not handle.
var ErrUnexpectedStatus = errors.New("unexpected status")

const (
	TraceIDHeader       = "X-Request-ID"
	AuthorizationHeader = "Authorization"
)

// HTTPClientConfig holds configuration for the HTTP auth client.
type HTTPClientConfig struct {
	// BaseURL is the root of the auth service; /auth/... paths are appended
	BaseURL string `env:"BASE_URL" default:"http://localhost:8080"`
}

// HTTPClient implements AccountClient against the auth service HTTP API.
type HTTPClient struct {
	httpClient *http.Client
	log        logging.Logger
	cfg        HTTPClientConfig
}

var _ AccountClient = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTPClient with the given configuration.
// If httpClient is nil, http.DefaultClient will be used.
func NewHTTPClient(
	cfg HTTPClientConfig,
	httpClient *http.Client,
) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &HTTPClient{
		httpClient: httpClient,
		log:        logging.GetLogger("svc.authsvc.authclient.http_client"),
		cfg:        cfg,
	}
}

// Validate implements AuthClient.Validate via POST /auth/validate.
// Any non-200 answer is reported as an invalid token, not as an error.
func (c *HTTPClient) Validate(ctx context.Context, token string) (domain.Identity, bool, error) {
	req, err := c.newRequest(ctx, "/auth/validate", nil)
	if err != nil {
		return domain.Identity{}, false, err
	}

	req.Header.Set(AuthorizationHeader, "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Identity{}, false, fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Identity{}, false, nil
	}

	var identity domain.Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return domain.Identity{}, false, fmt.Errorf("decode identity: %w", err)
	}

	if identity.ID == "" {
		return domain.Identity{}, false, nil
	}

	return identity, true, nil
}

// Login implements AccountClient.Login via POST /auth/login.
func (c *HTTPClient) Login(ctx context.Context, username, password string) (_ string, err error) {
	defer func() {
		if err != nil {
			c.log.DebugContext(ctx, "login failed", "error", err)
		}
	}()

	resp, err := c.postForm(ctx, "/auth/login", url.Values{
		"username": {username},
		"password": {password},
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return "", domain.ErrInvalidCredentials
	default:
		return "", unexpectedStatus(resp)
	}

	var tokenResp domain.AuthTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}

	return tokenResp.Token, nil
}

// Register implements AccountClient.Register via POST /auth/register.
func (c *HTTPClient) Register(ctx context.Context, username, password, displayName string) error {
	resp, err := c.postForm(ctx, "/auth/register", url.Values{
		"username":     {username},
		"password":     {password},
		"display_name": {displayName},
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusConflict:
		return domain.ErrUserAlreadyExists
	default:
		return unexpectedStatus(resp)
	}
}

func (c *HTTPClient) newRequest(ctx context.Context, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+path, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	if traceID, ok := context_.TraceIDFromContext(ctx); ok {
		req.Header.Set(TraceIDHeader, traceID)
	}

	return req, nil
}

func (c *HTTPClient) postForm(ctx context.Context, path string, form url.Values) (*http.Response, error) {
	req, err := c.newRequest(ctx, path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post: %w", err)
	}

	return resp, nil
}

func unexpectedStatus(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	return fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(body)))
}
