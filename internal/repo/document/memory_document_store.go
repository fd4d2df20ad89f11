package document

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/mkrupp/pantry/internal/domain"
)

type memoryEntry struct {
	data    domain.DocumentData
	version int64
	seq     uint64
}

// MemoryDocumentStore is an in-process Store. Data is copied on the way in and
// out so callers never share maps with the store.
type MemoryDocumentStore struct {
	mu          sync.RWMutex
	collections map[string]map[domain.DocumentID]*memoryEntry
	seq         uint64
}

var _ Store = (*MemoryDocumentStore)(nil)

// NewMemoryDocumentStore creates an empty store.
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{
		collections: make(map[string]map[domain.DocumentID]*memoryEntry),
	}
}

// QueryByField implements Store.QueryByField.
func (s *MemoryDocumentStore) QueryByField(ctx context.Context, collection, field, value string) ([]domain.Document, error) {
	if err := validateField(field); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type match struct {
		doc domain.Document
		seq uint64
	}

	var matches []match

	for id, entry := range s.collections[collection] {
		if matchesField(entry.data, field, value) {
			matches = append(matches, match{doc: entry.document(id), seq: entry.seq})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].seq < matches[j].seq })

	docs := make([]domain.Document, len(matches))
	for i, m := range matches {
		docs[i] = m.doc
	}

	return docs, nil
}

// GetByID implements Store.GetByID.
func (s *MemoryDocumentStore) GetByID(ctx context.Context, collection string, id domain.DocumentID) (domain.Document, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.collections[collection][id]
	if !ok {
		return domain.Document{}, false, nil
	}

	return entry.document(id), true, nil
}

// Upsert implements Store.Upsert.
func (s *MemoryDocumentStore) Upsert(
	ctx context.Context,
	collection string,
	id domain.DocumentID,
	data domain.DocumentData,
	merge bool,
) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[domain.DocumentID]*memoryEntry)
		s.collections[collection] = docs
	}

	entry, ok := docs[id]
	if !ok {
		s.seq++
		entry = &memoryEntry{data: maps.Clone(data), version: 1, seq: s.seq}
		docs[id] = entry

		return entry.document(id), nil
	}

	if merge {
		entry.data = entry.data.Merge(data)
	} else {
		entry.data = maps.Clone(data)
	}

	entry.version++

	return entry.document(id), nil
}

// Delete implements Store.Delete.
func (s *MemoryDocumentStore) Delete(ctx context.Context, collection string, id domain.DocumentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections[collection], id)

	return nil
}

// CompareAndSwap implements Store.CompareAndSwap.
func (s *MemoryDocumentStore) CompareAndSwap(
	ctx context.Context,
	collection string,
	id domain.DocumentID,
	data domain.DocumentData,
	version int64,
) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.collections[collection][id]
	if !ok || entry.version != version {
		return domain.Document{}, domain.ErrVersionConflict
	}

	entry.data = maps.Clone(data)
	entry.version++

	return entry.document(id), nil
}

// CompareAndDelete implements Store.CompareAndDelete.
func (s *MemoryDocumentStore) CompareAndDelete(ctx context.Context, collection string, id domain.DocumentID, version int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.collections[collection][id]
	if !ok || entry.version != version {
		return domain.ErrVersionConflict
	}

	delete(s.collections[collection], id)

	return nil
}

// Close implements Store.Close.
func (s *MemoryDocumentStore) Close() error {
	return nil
}

func (e *memoryEntry) document(id domain.DocumentID) domain.Document {
	return domain.Document{
		ID:      id,
		Data:    maps.Clone(e.data),
		Version: e.version,
	}
}
