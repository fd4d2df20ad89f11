package authclient_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mkrupp/pantry/internal/domain"
	"github.com/mkrupp/pantry/internal/svc/authsvc/authclient"
)

// mockAccountClient knows a single user "ada" with password "secret".
type mockAccountClient struct {
	err error
}

func (m mockAccountClient) Validate(_ context.Context, token string) (domain.Identity, bool, error) {
	if m.err != nil {
		return domain.Identity{}, false, m.err
	}

	if token != "tok-ada" {
		return domain.Identity{}, false, nil
	}

	return domain.Identity{ID: "u-1", DisplayName: "Ada"}, true, nil
}

func (m mockAccountClient) Login(_ context.Context, username, password string) (string, error) {
	if m.err != nil {
		return "", m.err
	}

	if username != "ada" || password != "secret" {
		return "", domain.ErrInvalidCredentials
	}

	return "tok-ada", nil
}

func (m mockAccountClient) Register(context.Context, string, string, string) error {
	return m.err
}

func receive(t *testing.T, ch <-chan domain.IdentityEvent) domain.IdentityEvent {
	t.Helper()

	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}

		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}

	return domain.IdentityEvent{}
}

func TestTokenSession_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := authclient.NewTokenSession(mockAccountClient{})
	events := session.Subscribe(ctx)

	if ev := receive(t, events); ev.SignedIn() {
		t.Fatalf("initial event signed in: %+v", ev.Identity)
	}

	identity, err := session.SignIn(ctx, "ada", "secret")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	if ev := receive(t, events); !ev.SignedIn() || ev.Identity.ID != identity.ID {
		t.Fatalf("sign in event = %+v, want %s", ev.Identity, identity.ID)
	}

	if got := session.Token(); got != "tok-ada" {
		t.Errorf("Token() = %q", got)
	}

	if err := session.SignOut(ctx); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}

	if ev := receive(t, events); ev.SignedIn() {
		t.Fatalf("sign out event still signed in: %+v", ev.Identity)
	}

	if _, ok := session.Identity(); ok {
		t.Error("Identity() present after sign out")
	}
}

func TestTokenSession_LateSubscriberGetsCurrentState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	session := authclient.NewTokenSession(mockAccountClient{})

	if _, err := session.SignIn(ctx, "ada", "secret"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if ev := receive(t, session.Subscribe(subCtx)); !ev.SignedIn() || ev.Identity.ID != "u-1" {
		t.Errorf("initial event = %+v, want u-1", ev.Identity)
	}
}

func TestTokenSession_SlowSubscriberSeesNewest(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := authclient.NewTokenSession(mockAccountClient{})
	events := session.Subscribe(ctx)

	if _, err := session.SignIn(ctx, "ada", "secret"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	_ = session.SignOut(ctx)

	if ev := receive(t, events); ev.SignedIn() {
		t.Fatalf("pending event = %+v, want signed out", ev.Identity)
	}

	select {
	case ev := <-events:
		t.Fatalf("unexpected extra event %+v", ev)
	default:
	}
}

func TestTokenSession_SignInFailures(t *testing.T) {
	t.Parallel()

	errBackend := errors.New("backend down")

	tests := []struct {
		name     string
		client   mockAccountClient
		password string
		wantErr  error
	}{
		{name: "wrong password", password: "nope", wantErr: domain.ErrInvalidCredentials},
		{name: "backend error", client: mockAccountClient{err: errBackend}, password: "secret", wantErr: errBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			session := authclient.NewTokenSession(tt.client)

			if _, err := session.SignIn(context.Background(), "ada", tt.password); !errors.Is(err, tt.wantErr) {
				t.Errorf("SignIn() error = %v, wantErr %v", err, tt.wantErr)
			}

			if _, ok := session.Identity(); ok {
				t.Error("Identity() present after failed sign in")
			}
		})
	}
}

func TestTokenSession_ResumeInvalidToken(t *testing.T) {
	t.Parallel()

	session := authclient.NewTokenSession(mockAccountClient{})

	if _, err := session.Resume(context.Background(), "stale"); !errors.Is(err, domain.ErrInvalidAuthToken) {
		t.Errorf("Resume() error = %v, want %v", err, domain.ErrInvalidAuthToken)
	}
}

func TestTokenSession_ChannelClosesWithContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	session := authclient.NewTokenSession(mockAccountClient{})
	events := session.Subscribe(ctx)

	receive(t, events)
	cancel()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("received event after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
