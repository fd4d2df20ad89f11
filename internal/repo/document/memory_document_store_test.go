package document_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mkrupp/pantry/internal/domain"
	"github.com/mkrupp/pantry/internal/repo/document"
)

func TestMemoryDocumentStore(t *testing.T) {
	t.Parallel()

	testStoreContract(t, document.NewMemoryDocumentStore())
}

func TestMemoryDocumentStore_CopiesData(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := document.NewMemoryDocumentStore()

	data := domain.DocumentData{"name": "tea"}
	if _, err := store.Upsert(ctx, "c", "id", data, false); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	data["name"] = "coffee"

	doc, _, _ := store.GetByID(ctx, "c", "id")
	doc.Data["name"] = "cocoa"

	again, _, _ := store.GetByID(ctx, "c", "id")
	if again.Data["name"] != "tea" {
		t.Errorf("stored name = %v, want tea", again.Data["name"])
	}
}

func TestMemoryDocumentStore_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := document.NewMemoryDocumentStore()

	if _, err := store.QueryByField(ctx, "c", "name", "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("QueryByField() error = %v, want %v", err, context.Canceled)
	}
}

func TestNewStoreFactory(t *testing.T) {
	t.Parallel()

	factory, err := document.NewStoreFactory(document.StoreConfig{Driver: document.DriverMemory})
	if err != nil {
		t.Fatalf("NewStoreFactory(memory) error = %v", err)
	}

	store, err := factory(context.Background())
	if err != nil {
		t.Fatalf("factory() error = %v", err)
	}
	defer store.Close()

	if _, ok := store.(*document.MemoryDocumentStore); !ok {
		t.Errorf("factory() = %T, want *document.MemoryDocumentStore", store)
	}

	if _, err := document.NewStoreFactory(document.StoreConfig{Driver: "mongo"}); !errors.Is(err, document.ErrUnknownDriver) {
		t.Errorf("NewStoreFactory(mongo) error = %v, want %v", err, document.ErrUnknownDriver)
	}
}
