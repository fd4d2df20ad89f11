package authclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/mkrupp/pantry/internal/domain"
	"github.com/mkrupp/pantry/internal/infra/logging"
)

// SessionNotifier reports the current identity, or its absence, whenever it changes.
type SessionNotifier interface {
	// Subscribe returns a channel that first receives the current state and then
	// every change. Only the newest pending event is kept for slow readers.
	// The channel is closed when ctx is done.
	Subscribe(ctx context.Context) <-chan domain.IdentityEvent

	// SignOut ends the session and notifies subscribers with an absent identity.
	SignOut(ctx context.Context) error
}

// TokenSession is a SessionNotifier backed by a token obtained from the auth service.
type TokenSession struct {
	client AccountClient
	log    logging.Logger

	mu       sync.Mutex
	token    string
	identity *domain.Identity
	subs     map[chan domain.IdentityEvent]struct{}
}

var _ SessionNotifier = (*TokenSession)(nil)

// NewTokenSession creates a signed-out session.
func NewTokenSession(client AccountClient) *TokenSession {
	return &TokenSession{
		client: client,
		log:    logging.GetLogger("svc.authsvc.authclient.token_session"),
		subs:   make(map[chan domain.IdentityEvent]struct{}),
	}
}

// SignIn logs in with the given credentials and publishes the resulting identity.
func (s *TokenSession) SignIn(ctx context.Context, username, password string) (_ domain.Identity, err error) {
	log := s.log.With(logging.Group("user", "username", username))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "sign in failed", "error", err)
		} else {
			log.DebugContext(ctx, "signed in")
		}
	}()

	token, err := s.client.Login(ctx, username, password)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("login: %w", err)
	}

	return s.Resume(ctx, token)
}

// Resume validates an existing token and publishes its identity.
func (s *TokenSession) Resume(ctx context.Context, token string) (domain.Identity, error) {
	identity, ok, err := s.client.Validate(ctx, token)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("validate: %w", err)
	} else if !ok {
		return domain.Identity{}, domain.ErrInvalidAuthToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	s.identity = &identity
	s.publish()

	return identity, nil
}

// SignOut implements SessionNotifier.SignOut.
func (s *TokenSession) SignOut(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identity != nil {
		s.log.DebugContext(ctx, "signed out", logging.Group("identity", "id", s.identity.ID))
	}

	s.token = ""
	s.identity = nil
	s.publish()

	return nil
}

// Token returns the current bearer token, empty when signed out.
func (s *TokenSession) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.token
}

// Identity returns the current identity.
func (s *TokenSession) Identity() (domain.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identity == nil {
		return domain.Identity{}, false
	}

	return *s.identity, true
}

// Subscribe implements SessionNotifier.Subscribe.
func (s *TokenSession) Subscribe(ctx context.Context) <-chan domain.IdentityEvent {
	ch := make(chan domain.IdentityEvent, 1)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	ch <- s.event()
	s.mu.Unlock()

	go func() {
		<-ctx.Done()

		s.mu.Lock()
		defer s.mu.Unlock()

		delete(s.subs, ch)
		close(ch)
	}()

	return ch
}

// event must be called with mu held.
func (s *TokenSession) event() domain.IdentityEvent {
	if s.identity == nil {
		return domain.IdentityEvent{}
	}

	identity := *s.identity

	return domain.IdentityEvent{Identity: &identity}
}

// publish must be called with mu held. Sends never block: each channel has a
// buffer of one, and an unread older event is replaced by the new one.
func (s *TokenSession) publish() {
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}

		ch <- s.event()
	}
}
