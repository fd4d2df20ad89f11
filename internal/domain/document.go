package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrVersionConflict is returned when a conditional write observes a document
	// version other than the one it was based on.
	ErrVersionConflict = errors.New("document version conflict")
	// ErrDocumentNotFound is returned when a conditional write targets a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInvalidField is returned when a query names a field that cannot be addressed.
	ErrInvalidField = errors.New("invalid document field")
)

// DocumentID is an opaque, collection-scoped document identifier.
type DocumentID string

// String returns the string representation of the DocumentID.
func (id DocumentID) String() string {
	return string(id)
}

// DocumentData is the JSON-shaped body of a document.
type DocumentData map[string]any

// NewDocumentData converts a JSON-taggable value into DocumentData.
func NewDocumentData(v any) (DocumentData, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal document data: %w", err)
	}

	var data DocumentData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal document data: %w", err)
	}

	return data, nil
}

// Merge returns a copy of data with the top-level fields of patch applied on top.
func (data DocumentData) Merge(patch DocumentData) DocumentData {
	merged := make(DocumentData, len(data)+len(patch))

	for k, v := range data {
		merged[k] = v
	}

	for k, v := range patch {
		merged[k] = v
	}

	return merged
}

// Document is a stored record together with its store-assigned version.
// Version starts at 1 on insert and increases by one on every write.
type Document struct {
	ID      DocumentID   `json:"id"`
	Data    DocumentData `json:"data"`
	Version int64        `json:"version"`
}

// Decode unmarshals the document data into v.
func (doc Document) Decode(v any) error {
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return fmt.Errorf("marshal document data: %w", err)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal document data: %w", err)
	}

	return nil
}
