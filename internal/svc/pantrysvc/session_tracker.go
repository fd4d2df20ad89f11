package pantrysvc

import (
	"context"
	"errors"
	"sync"

	"github.com/mkrupp/pantry/internal/domain"
	"github.com/mkrupp/pantry/internal/infra/logging"
)

// ErrSessionChanged is returned by Apply when the identity changed while the mutation ran.
var ErrSessionChanged = errors.New("session changed")

// SessionState is a snapshot of what a client currently shows.
type SessionState struct {
	// Identity is nil while nobody is signed in.
	Identity *domain.Identity
	Profile  domain.Profile
	View     domain.ViewState

	// Syncing is set while the initial load for Identity is in flight.
	Syncing bool

	// Err is the last error of a load or mutation; View then holds the last good state.
	Err error
}

// DisplayName prefers the stored profile name over the name carried by the identity.
func (s SessionState) DisplayName() string {
	if s.Profile.DisplayName != "" {
		return s.Profile.DisplayName
	} else if s.Identity != nil {
		return s.Identity.DisplayName
	}

	return ""
}

// SessionTracker follows identity events and keeps the matching session state.
//
// Each event supersedes the previous one: an in-flight load is cancelled and
// its result discarded. Sign-out clears the state entirely.
type SessionTracker struct {
	invSvc InventoryService
	log    logging.Logger

	mu         sync.Mutex
	state      SessionState
	generation uint64
	cancel     context.CancelFunc
	changed    chan struct{}
	loads      sync.WaitGroup
}

// NewSessionTracker creates a tracker with a signed-out state.
func NewSessionTracker(invSvc InventoryService) *SessionTracker {
	return &SessionTracker{
		invSvc:  invSvc,
		log:     logging.GetLogger("svc.pantrysvc.session_tracker"),
		cancel:  func() {},
		changed: make(chan struct{}),
	}
}

// Run consumes events until the channel is closed or ctx is done.
// Pending loads are cancelled and awaited before Run returns.
func (t *SessionTracker) Run(ctx context.Context, events <-chan domain.IdentityEvent) error {
	defer func() {
		t.mu.Lock()
		t.cancel()
		t.mu.Unlock()

		t.loads.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}

			t.handle(ctx, ev)
		}
	}
}

func (t *SessionTracker) handle(ctx context.Context, ev domain.IdentityEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancel()
	t.generation++

	if !ev.SignedIn() {
		t.log.DebugContext(ctx, "session cleared")
		t.setState(SessionState{})

		return
	}

	identity := *ev.Identity
	loadCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.setState(SessionState{
		Identity: &identity,
		View:     domain.NewViewState(nil),
		Syncing:  true,
	})

	t.loads.Add(1)

	go t.load(loadCtx, t.generation, identity)
}

// load fetches the profile and the inventory for identity.
// A missing profile is logged but does not fail the load.
func (t *SessionTracker) load(ctx context.Context, generation uint64, identity domain.Identity) {
	defer t.loads.Done()

	log := t.log.With(logging.Group("identity", "id", identity.ID))

	profile, err := t.invSvc.GetProfile(ctx, identity)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			log.WarnContext(ctx, "no profile stored")
		} else {
			log.ErrorContext(ctx, "profile load failed", "error", err)
		}

		profile = domain.Profile{ID: identity.ID}
	}

	view, err := t.invSvc.Sync(ctx, identity)

	t.mu.Lock()
	defer t.mu.Unlock()

	if generation != t.generation {
		log.DebugContext(ctx, "discarding superseded load")

		return
	}

	state := t.state
	state.Profile = profile
	state.Syncing = false
	state.Err = err

	if err == nil {
		state.View = view
	}

	t.setState(state)
}

// State returns the current snapshot.
func (t *SessionTracker) State() SessionState {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state
}

// WaitFor blocks until the state satisfies cond or ctx is done.
func (t *SessionTracker) WaitFor(ctx context.Context, cond func(SessionState) bool) (SessionState, error) {
	for {
		t.mu.Lock()
		state, changed := t.state, t.changed
		t.mu.Unlock()

		if cond(state) {
			return state, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

// Search narrows the filtered list of the current view. The store is not consulted.
func (t *SessionTracker) Search(query string) SessionState {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.state
	state.View = state.View.Search(query)
	t.setState(state)

	return state
}

// MutationFunc performs a change for identity based on the view the client shows.
type MutationFunc func(ctx context.Context, identity domain.Identity, view domain.ViewState) (domain.ViewState, error)

// Apply runs op for the signed-in identity. On success the returned view
// replaces the current one; on failure the current view is kept and the error
// recorded. The result is dropped if the identity changed meanwhile.
func (t *SessionTracker) Apply(ctx context.Context, op MutationFunc) (SessionState, error) {
	t.mu.Lock()
	state, generation := t.state, t.generation
	t.mu.Unlock()

	if state.Identity == nil {
		return state, domain.ErrNotSignedIn
	}

	view, err := op(ctx, *state.Identity, state.View)

	t.mu.Lock()
	defer t.mu.Unlock()

	if generation != t.generation {
		return t.state, ErrSessionChanged
	}

	state = t.state
	state.Err = err

	if err == nil {
		state.View = view
	}

	t.setState(state)

	return state, err
}

// UpdateProfile stores a new display name for the signed-in identity.
func (t *SessionTracker) UpdateProfile(ctx context.Context, displayName string) (SessionState, error) {
	t.mu.Lock()
	state, generation := t.state, t.generation
	t.mu.Unlock()

	if state.Identity == nil {
		return state, domain.ErrNotSignedIn
	}

	profile, err := t.invSvc.SetProfile(ctx, *state.Identity, displayName)
	if err != nil {
		return state, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if generation == t.generation {
		state = t.state
		state.Profile = profile
		t.setState(state)
	}

	return t.state, nil
}

// setState must be called with mu held; it wakes all WaitFor callers.
func (t *SessionTracker) setState(state SessionState) {
	t.state = state

	close(t.changed)
	t.changed = make(chan struct{})
}
