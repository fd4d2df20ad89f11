package authclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mkrupp/pantry/internal/domain"
	context_ "github.com/mkrupp/pantry/internal/infra/context"
	"github.com/mkrupp/pantry/internal/svc/authsvc/authclient"
)

// fakeAuthServer mimics the auth service routes with a single known account.
func fakeAuthServer(t *testing.T) *httptest.Server {
	t.Helper()

	identity := domain.Identity{ID: "u-1", DisplayName: "Ada"}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("username") != "ada" || r.FormValue("password") != "secret" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)

			return
		}

		_ = json.NewEncoder(w).Encode(domain.AuthTokenResponse{Token: "tok-ada"})
	})
	mux.HandleFunc("POST /auth/validate", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-ada" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)

			return
		}

		if r.Header.Get(authclient.TraceIDHeader) == "boom" {
			http.Error(w, "boom", http.StatusInternalServerError)

			return
		}

		_ = json.NewEncoder(w).Encode(identity)
	})
	mux.HandleFunc("POST /auth/register", func(w http.ResponseWriter, r *http.Request) {
		switch r.FormValue("username") {
		case "ada":
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		case "":
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		default:
			w.WriteHeader(http.StatusCreated)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func newClient(t *testing.T) *authclient.HTTPClient {
	t.Helper()

	srv := fakeAuthServer(t)

	return authclient.NewHTTPClient(authclient.HTTPClientConfig{BaseURL: srv.URL + "/"}, srv.Client())
}

func TestHTTPClient_Login(t *testing.T) {
	t.Parallel()

	client := newClient(t)

	tests := []struct {
		name     string
		username string
		password string
		want     string
		wantErr  error
	}{
		{name: "valid credentials", username: "ada", password: "secret", want: "tok-ada"},
		{name: "wrong password", username: "ada", password: "nope", wantErr: domain.ErrInvalidCredentials},
		{name: "unknown user", username: "bob", password: "secret", wantErr: domain.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := client.Login(context.Background(), tt.username, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Login() error = %v, wantErr %v", err, tt.wantErr)
			}

			if got != tt.want {
				t.Errorf("Login() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHTTPClient_Validate(t *testing.T) {
	t.Parallel()

	client := newClient(t)

	identity, ok, err := client.Validate(context.Background(), "tok-ada")
	if err != nil || !ok {
		t.Fatalf("Validate(valid) = %v, %v", ok, err)
	}

	if identity.ID != "u-1" || identity.DisplayName != "Ada" {
		t.Errorf("Validate(valid) identity = %+v", identity)
	}

	_, ok, err = client.Validate(context.Background(), "tok-bob")
	if err != nil || ok {
		t.Errorf("Validate(invalid) = %v, %v, want false, nil", ok, err)
	}

	// Server errors are reported as an invalid token.
	ctx := context_.WithTraceID(context.Background(), "boom")

	_, ok, err = client.Validate(ctx, "tok-ada")
	if err != nil || ok {
		t.Errorf("Validate(server error) = %v, %v, want false, nil", ok, err)
	}
}

func TestHTTPClient_Register(t *testing.T) {
	t.Parallel()

	client := newClient(t)

	tests := []struct {
		name     string
		username string
		wantErr  error
	}{
		{name: "new user", username: "bob"},
		{name: "duplicate", username: "ada", wantErr: domain.ErrUserAlreadyExists},
		{name: "bad request", username: "", wantErr: authclient.ErrUnexpectedStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := client.Register(context.Background(), tt.username, "pw", "Name")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
