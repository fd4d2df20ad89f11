package http_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mkrupp/pantry/internal/domain"
	context_ "github.com/mkrupp/pantry/internal/infra/context"
	"github.com/mkrupp/pantry/internal/infra/logging"
	http_ "github.com/mkrupp/pantry/internal/infra/transport/http"
)

type stubAuthClient struct {
	tokens map[string]domain.Identity
	err    error
}

func (c stubAuthClient) Validate(_ context.Context, token string) (domain.Identity, bool, error) {
	if c.err != nil {
		return domain.Identity{}, false, c.err
	}

	identity, ok := c.tokens[token]

	return identity, ok, nil
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
	}{
		{header: "", want: ""},
		{header: "Bearer abc", want: "abc"},
		{header: "bearer  abc ", want: "abc"},
		{header: "abc", want: "abc"},
	}

	for _, tt := range tests {
		if got := http_.BearerToken(tt.header); got != tt.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestAuthorizingMiddleware(t *testing.T) {
	t.Parallel()

	identity := domain.Identity{ID: "u1", DisplayName: "Ada"}

	tests := []struct {
		name       string
		header     string
		client     stubAuthClient
		wantStatus int
	}{
		{
			name:       "valid token",
			header:     "Bearer good",
			client:     stubAuthClient{tokens: map[string]domain.Identity{"good": identity}},
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "missing token",
			header:     "",
			client:     stubAuthClient{},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown token",
			header:     "Bearer bad",
			client:     stubAuthClient{tokens: map[string]domain.Identity{"good": identity}},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "auth service down",
			header:     "Bearer good",
			client:     stubAuthClient{err: errors.New("connection refused")},
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, ok := context_.IdentityFromContext(r.Context())
				if !ok || got != identity {
					t.Errorf("identity in context = %+v, %v", got, ok)
				}

				w.WriteHeader(http.StatusNoContent)
			})

			handler := http_.AuthorizingMiddleware(next, tt.client, logging.NewNopLogger())

			req := httptest.NewRequest(http.MethodGet, "/inventory", nil)
			if tt.header != "" {
				req.Header.Set(http_.AuthorizationHeader, tt.header)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestWrap_TracingAndRescue(t *testing.T) {
	t.Parallel()

	var seenTraceID string

	handler := http_.Wrap(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seenTraceID, _ = context_.TraceIDFromContext(r.Context())

		panic("boom")
	}), logging.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(http_.TraceIDHeader, "trace-42")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}

	if seenTraceID != "trace-42" {
		t.Errorf("trace ID in context = %q, want trace-42", seenTraceID)
	}

	if got := rec.Header().Get(http_.TraceIDHeader); got != "trace-42" {
		t.Errorf("trace header = %q, want trace-42", got)
	}
}

func TestWrap_GeneratesTraceID(t *testing.T) {
	t.Parallel()

	handler := http_.Wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), logging.NewNopLogger())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get(http_.TraceIDHeader); len(got) != 26 {
		t.Errorf("generated trace header = %q, want 26 Crockford characters", got)
	}
}
