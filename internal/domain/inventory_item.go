package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mkrupp/pantry/internal/util/encoding"
)

var (
	// ErrNoItemName is returned when an item name is required but empty.
	ErrNoItemName = errors.New("no item name")
	// ErrInvalidItemName is returned when an item name exceeds the configured limits.
	ErrInvalidItemName = errors.New("invalid item name")
	// ErrNoItemID is returned when an item ID is required but not provided.
	ErrNoItemID = errors.New("no item ID")
	// ErrInvalidItemID is returned when an item ID is not a valid Crockford Base32 string.
	ErrInvalidItemID = errors.New("invalid item ID")
	// ErrInvalidQuantity is returned for quantities that cannot be stored.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrItemNotFound is returned when an item does not exist.
	ErrItemNotFound = errors.New("item not found")
)

const (
	// InventoryCollection is the document collection holding inventory items.
	InventoryCollection = "inventory"
	// FieldOwnerID is the document field that scopes an item to its owner.
	FieldOwnerID = "ownerId"
	// FieldName is the document field holding the item name.
	FieldName = "name"
	// FieldQuantity is the document field holding the item quantity.
	FieldQuantity = "quantity"
)

// ItemID identifies an inventory item.
// It is the lowercase Crockford Base32 encoding of a random (v4) UUID.
type ItemID = DocumentID

// NewItemID returns a fresh random item identifier.
func NewItemID() (ItemID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("new uuid: %w", err)
	}

	return ItemID(encoding.EncodeCrockfordB32LC(id[:])), nil
}

// ParseItemID normalizes user input into an ItemID.
func ParseItemID(s string) (ItemID, error) {
	if s == "" {
		return "", ErrNoItemID
	}

	s = encoding.NormalizeCrockfordB32LC(s)
	if !encoding.IsCrockfordB32LC(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidItemID, s)
	}

	return ItemID(s), nil
}

// InventoryItem is a named, quantified record owned by one identity.
type InventoryItem struct {
	ID       ItemID `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	OwnerID  string `json:"ownerId"`
}

// itemData is the persisted shape of an item; the ID lives in the document key.
type itemData struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	OwnerID  string `json:"ownerId"`
}

// NewInventoryItemFromDocument decodes a stored document into an item.
func NewInventoryItemFromDocument(doc Document) (InventoryItem, error) {
	var data itemData
	if err := doc.Decode(&data); err != nil {
		return InventoryItem{}, fmt.Errorf("decode item %s: %w", doc.ID, err)
	}

	return InventoryItem{
		ID:       doc.ID,
		Name:     data.Name,
		Quantity: data.Quantity,
		OwnerID:  data.OwnerID,
	}, nil
}

// Data returns the document body for the item.
func (item InventoryItem) Data() (DocumentData, error) {
	return NewDocumentData(itemData{
		Name:     item.Name,
		Quantity: item.Quantity,
		OwnerID:  item.OwnerID,
	})
}

// OwnedBy reports whether the item belongs to the given identity.
func (item InventoryItem) OwnedBy(identity Identity) bool {
	return identity.ID != "" && item.OwnerID == identity.ID
}

// StockLevel classifies a quantity into the bands shown to users.
type StockLevel string

const (
	StockLevelLow    StockLevel = "low"
	StockLevelMedium StockLevel = "medium"
	StockLevelHigh   StockLevel = "high"
)

// Level returns the stock band of the item: low up to 3, medium up to 7, high from 8.
func (item InventoryItem) Level() StockLevel {
	switch {
	case item.Quantity <= 3:
		return StockLevelLow
	case item.Quantity <= 7:
		return StockLevelMedium
	default:
		return StockLevelHigh
	}
}
