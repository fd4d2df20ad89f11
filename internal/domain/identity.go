package domain

// Identity is the authenticated user reference that scopes all inventory records.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// IdentityEvent is emitted by a session notifier whenever the current identity changes.
// A nil Identity means that no user is signed in.
type IdentityEvent struct {
	Identity *Identity
}

// SignedIn reports whether the event carries an identity.
func (e IdentityEvent) SignedIn() bool {
	return e.Identity != nil && e.Identity.ID != ""
}
