package pantrysvc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mkrupp/pantry/internal/domain"
	"github.com/mkrupp/pantry/internal/infra/logging"
	"github.com/mkrupp/pantry/internal/repo/document"
)

// DocumentInventoryService implements InventoryService on top of a document store.
// Items live in domain.InventoryCollection, profiles in domain.ProfileCollection
// keyed by identity id.
type DocumentInventoryService struct {
	store document.Store
	cfg   InventoryConfig
	log   logging.Logger
}

var _ InventoryService = (*DocumentInventoryService)(nil)

// NewDocumentInventoryService creates a new DocumentInventoryService with a store from storeFactory.
func NewDocumentInventoryService(
	ctx context.Context,
	storeFactory document.StoreFactory,
	cfg InventoryConfig,
) (*DocumentInventoryService, error) {
	store, err := storeFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("new document store: %w", err)
	}

	return &DocumentInventoryService{
		store: store,
		cfg:   cfg,
		log:   logging.GetLogger("svc.pantrysvc.document_inventory_service"),
	}, nil
}

// Sync implements InventoryService.Sync.
func (invSvc *DocumentInventoryService) Sync(ctx context.Context, identity domain.Identity) (view domain.ViewState, err error) {
	log := invSvc.log.With(logging.Group("identity", "id", identity.ID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "inventory sync failed", "error", err)
		} else {
			log.DebugContext(ctx, "inventory synced", "items", len(view.FullList))
		}
	}()

	if identity.ID == "" {
		return domain.ViewState{}, domain.ErrNotSignedIn
	}

	docs, err := invSvc.store.QueryByField(ctx, domain.InventoryCollection, domain.FieldOwnerID, identity.ID)
	if err != nil {
		return domain.ViewState{}, fmt.Errorf("query items: %w", err)
	}

	items := make([]domain.InventoryItem, 0, len(docs))

	for _, doc := range docs {
		item, err := domain.NewInventoryItemFromDocument(doc)
		if err != nil {
			return domain.ViewState{}, err
		}

		if item.OwnedBy(identity) {
			items = append(items, item)
		}
	}

	return domain.NewViewState(items), nil
}

// AddItem implements InventoryService.AddItem.
func (invSvc *DocumentInventoryService) AddItem(
	ctx context.Context,
	identity domain.Identity,
	current domain.ViewState,
	name string,
	quantity int,
) (_ domain.ViewState, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return current, nil
	}

	log := invSvc.log.With(logging.Group("item", "name", name, "quantity", quantity))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "item add failed", "error", err)
		} else {
			log.DebugContext(ctx, "item added")
		}
	}()

	if identity.ID == "" {
		return current, domain.ErrNotSignedIn
	}

	if n := utf8.RuneCountInString(name); n > invSvc.cfg.MaxNameLength {
		return current, fmt.Errorf("%w: %d characters exceeds %d", domain.ErrInvalidItemName, n, invSvc.cfg.MaxNameLength)
	}

	if quantity == 0 {
		quantity = invSvc.cfg.DefaultQuantity
	}

	if quantity < 1 {
		return current, fmt.Errorf("%w: %d", domain.ErrInvalidQuantity, quantity)
	}

	if err := invSvc.addItem(ctx, identity, name, quantity); err != nil {
		return current, err
	}

	view, err := invSvc.Sync(ctx, identity)
	if err != nil {
		return current, err
	}

	return view, nil
}

func (invSvc *DocumentInventoryService) addItem(ctx context.Context, identity domain.Identity, name string, quantity int) error {
	if invSvc.cfg.MergeByName {
		merged, err := invSvc.mergeByName(ctx, identity, name, quantity)
		if err != nil || merged {
			return err
		}
	}

	id, err := domain.NewItemID()
	if err != nil {
		return fmt.Errorf("new item id: %w", err)
	}

	// A fresh id is practically never taken; an existing item of the same
	// owner still has the quantity added to it.
	found, err := invSvc.adjustQuantity(ctx, identity, id, quantity)
	if err != nil || found {
		return err
	}

	data, err := domain.InventoryItem{
		ID:       id,
		Name:     name,
		Quantity: quantity,
		OwnerID:  identity.ID,
	}.Data()
	if err != nil {
		return fmt.Errorf("item data: %w", err)
	}

	if _, err := invSvc.store.Upsert(ctx, domain.InventoryCollection, id, data, false); err != nil {
		return fmt.Errorf("insert item: %w", err)
	}

	return nil
}

// mergeByName adds quantity to the first owned item whose name matches case-insensitively.
func (invSvc *DocumentInventoryService) mergeByName(ctx context.Context, identity domain.Identity, name string, quantity int) (bool, error) {
	docs, err := invSvc.store.QueryByField(ctx, domain.InventoryCollection, domain.FieldOwnerID, identity.ID)
	if err != nil {
		return false, fmt.Errorf("query items: %w", err)
	}

	for _, doc := range docs {
		item, err := domain.NewInventoryItemFromDocument(doc)
		if err != nil {
			return false, err
		}

		if item.OwnedBy(identity) && strings.EqualFold(strings.TrimSpace(item.Name), name) {
			return invSvc.adjustQuantity(ctx, identity, item.ID, quantity)
		}
	}

	return false, nil
}

// IncrementItem implements InventoryService.IncrementItem.
func (invSvc *DocumentInventoryService) IncrementItem(ctx context.Context, identity domain.Identity, id domain.ItemID) (domain.ViewState, error) {
	return invSvc.mutate(ctx, "item increment", identity, id, func() error {
		_, err := invSvc.adjustQuantity(ctx, identity, id, 1)

		return err
	})
}

// DecrementItem implements InventoryService.DecrementItem.
func (invSvc *DocumentInventoryService) DecrementItem(ctx context.Context, identity domain.Identity, id domain.ItemID) (domain.ViewState, error) {
	return invSvc.mutate(ctx, "item decrement", identity, id, func() error {
		_, err := invSvc.adjustQuantity(ctx, identity, id, -1)

		return err
	})
}

// RemoveAll implements InventoryService.RemoveAll.
func (invSvc *DocumentInventoryService) RemoveAll(ctx context.Context, identity domain.Identity, id domain.ItemID) (domain.ViewState, error) {
	return invSvc.mutate(ctx, "item remove", identity, id, func() error {
		doc, ok, err := invSvc.store.GetByID(ctx, domain.InventoryCollection, id)
		if err != nil {
			return fmt.Errorf("get item: %w", err)
		} else if !ok {
			return nil
		}

		item, err := domain.NewInventoryItemFromDocument(doc)
		if err != nil {
			return err
		}

		if err := authorize(identity, item); err != nil {
			return err
		}

		if err := invSvc.store.Delete(ctx, domain.InventoryCollection, id); err != nil {
			return fmt.Errorf("delete item: %w", err)
		}

		return nil
	})
}

// mutate runs op for an item and synchronizes afterwards.
func (invSvc *DocumentInventoryService) mutate(
	ctx context.Context,
	action string,
	identity domain.Identity,
	id domain.ItemID,
	op func() error,
) (_ domain.ViewState, err error) {
	log := invSvc.log.With(
		logging.Group("identity", "id", identity.ID),
		logging.Group("item", "id", id),
	)

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, action+" failed", "error", err)
		} else {
			log.DebugContext(ctx, action+" done")
		}
	}()

	if identity.ID == "" {
		return domain.ViewState{}, domain.ErrNotSignedIn
	} else if id == "" {
		return domain.ViewState{}, domain.ErrNoItemID
	}

	if err := op(); err != nil {
		return domain.ViewState{}, err
	}

	return invSvc.Sync(ctx, identity)
}

// adjustQuantity adds delta to the quantity of an existing item, deleting it
// when the result is not positive. Concurrent writes are detected through the
// document version and retried up to MaxRetries times.
// Returns false if the item does not exist.
func (invSvc *DocumentInventoryService) adjustQuantity(
	ctx context.Context,
	identity domain.Identity,
	id domain.ItemID,
	delta int,
) (bool, error) {
	for attempt := 0; ; attempt++ {
		doc, ok, err := invSvc.store.GetByID(ctx, domain.InventoryCollection, id)
		if err != nil {
			return false, fmt.Errorf("get item: %w", err)
		} else if !ok {
			return false, nil
		}

		item, err := domain.NewInventoryItemFromDocument(doc)
		if err != nil {
			return true, err
		}

		if err := authorize(identity, item); err != nil {
			return true, err
		}

		if next := item.Quantity + delta; next > 0 {
			_, err = invSvc.store.CompareAndSwap(ctx, domain.InventoryCollection, id,
				doc.Data.Merge(domain.DocumentData{domain.FieldQuantity: next}), doc.Version)
		} else {
			err = invSvc.store.CompareAndDelete(ctx, domain.InventoryCollection, id, doc.Version)
		}

		if err == nil {
			return true, nil
		}

		if !errors.Is(err, domain.ErrVersionConflict) || attempt >= invSvc.cfg.MaxRetries {
			return true, fmt.Errorf("update quantity: %w", err)
		}

		invSvc.log.DebugContext(ctx, "version conflict, retrying",
			logging.Group("item", "id", id, "version", doc.Version),
			"attempt", attempt+1,
		)
	}
}

// authorize fails with domain.ErrUnauthorized unless item is owned by identity.
func authorize(identity domain.Identity, item domain.InventoryItem) error {
	if !item.OwnedBy(identity) {
		return fmt.Errorf("%w: item %s is not owned by %s", domain.ErrUnauthorized, item.ID, identity.ID)
	}

	return nil
}

// GetProfile implements InventoryService.GetProfile.
func (invSvc *DocumentInventoryService) GetProfile(ctx context.Context, identity domain.Identity) (_ domain.Profile, err error) {
	log := invSvc.log.With(logging.Group("identity", "id", identity.ID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "profile fetch failed", "error", err)
		} else {
			log.DebugContext(ctx, "profile fetched")
		}
	}()

	if identity.ID == "" {
		return domain.Profile{}, domain.ErrNotSignedIn
	}

	doc, ok, err := invSvc.store.GetByID(ctx, domain.ProfileCollection, domain.DocumentID(identity.ID))
	if err != nil {
		return domain.Profile{}, fmt.Errorf("get profile: %w", err)
	} else if !ok {
		return domain.Profile{}, fmt.Errorf("%w: %s", domain.ErrProfileNotFound, identity.ID)
	}

	profile, err := domain.NewProfileFromDocument(doc)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("decode profile: %w", err)
	}

	return profile, nil
}

// SetProfile implements InventoryService.SetProfile.
func (invSvc *DocumentInventoryService) SetProfile(ctx context.Context, identity domain.Identity, displayName string) (_ domain.Profile, err error) {
	log := invSvc.log.With(logging.Group("identity", "id", identity.ID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "profile update failed", "error", err)
		} else {
			log.DebugContext(ctx, "profile updated")
		}
	}()

	if identity.ID == "" {
		return domain.Profile{}, domain.ErrNotSignedIn
	}

	profile := domain.Profile{ID: identity.ID, DisplayName: strings.TrimSpace(displayName)}
	if profile.DisplayName == "" {
		return domain.Profile{}, domain.ErrNoDisplayName
	}

	data, err := domain.NewDocumentData(profile)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("profile data: %w", err)
	}

	if _, err := invSvc.store.Upsert(ctx, domain.ProfileCollection, domain.DocumentID(identity.ID), data, true); err != nil {
		return domain.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}

	return profile, nil
}

// Close releases the underlying store.
func (invSvc *DocumentInventoryService) Close() error {
	if err := invSvc.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}

	return nil
}
