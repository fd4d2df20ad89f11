package pantrysvc

import (
	"context"

	"github.com/mkrupp/pantry/internal/domain"
)

// InventoryService synchronizes and mutates the inventory of one identity at a time.
//
// Every mutation is followed by a fresh synchronization, and the resulting
// view state is returned. Nothing is cached between calls.
//
// On error AddItem returns current unchanged. The other mutations return a
// zero view state on error, which callers must ignore.
type InventoryService interface {
	// Sync returns a fresh view state holding all items owned by identity.
	// On failure the caller should keep its previous state.
	Sync(ctx context.Context, identity domain.Identity) (domain.ViewState, error)

	// AddItem stores a new item. An empty (or blank) name is a no-op that
	// returns current unchanged without touching the store. A zero quantity
	// means the configured default.
	AddItem(ctx context.Context, identity domain.Identity, current domain.ViewState, name string, quantity int) (domain.ViewState, error)

	// IncrementItem raises the quantity of an item by one.
	// A missing item is a no-op.
	IncrementItem(ctx context.Context, identity domain.Identity, id domain.ItemID) (domain.ViewState, error)

	// DecrementItem lowers the quantity of an item by one, deleting it when
	// the quantity would drop to zero. A missing item is a no-op.
	DecrementItem(ctx context.Context, identity domain.Identity, id domain.ItemID) (domain.ViewState, error)

	// RemoveAll deletes an item regardless of its quantity.
	// A missing item is a no-op.
	RemoveAll(ctx context.Context, identity domain.Identity, id domain.ItemID) (domain.ViewState, error)

	// GetProfile returns the stored profile of identity.
	// Returns domain.ErrProfileNotFound if none exists.
	GetProfile(ctx context.Context, identity domain.Identity) (domain.Profile, error)

	// SetProfile stores the display name of identity.
	SetProfile(ctx context.Context, identity domain.Identity, displayName string) (domain.Profile, error)
}
