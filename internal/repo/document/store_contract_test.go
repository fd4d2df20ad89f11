package document_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/mkrupp/pantry/internal/domain"
	"github.com/mkrupp/pantry/internal/repo/document"
)

type testItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	OwnerID  string `json:"ownerId"`
}

// testCollection returns a collection name unique to the calling test so
// shared servers can run the suite repeatedly.
func testCollection(t *testing.T) string {
	t.Helper()

	return "test_" + uuid.NewString()[:8]
}

func mustData(t *testing.T, v any) domain.DocumentData {
	t.Helper()

	data, err := domain.NewDocumentData(v)
	if err != nil {
		t.Fatalf("NewDocumentData() error = %v", err)
	}

	return data
}

func decodeItem(t *testing.T, doc domain.Document) testItem {
	t.Helper()

	var item testItem
	if err := doc.Decode(&item); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	return item
}

// testStoreContract runs the behaviour every Store implementation must share.
func testStoreContract(t *testing.T, store document.Store) {
	t.Helper()

	t.Run("get missing", func(t *testing.T) {
		_, ok, err := store.GetByID(context.Background(), testCollection(t), "nope")
		if err != nil || ok {
			t.Errorf("GetByID() = %v, %v, want false, nil", ok, err)
		}
	})

	t.Run("upsert versions", func(t *testing.T) {
		ctx := context.Background()
		coll := testCollection(t)

		doc, err := store.Upsert(ctx, coll, "a", mustData(t, testItem{Name: "milk", Quantity: 2, OwnerID: "u1"}), false)
		if err != nil {
			t.Fatalf("Upsert(insert) error = %v", err)
		}
		if doc.Version != 1 {
			t.Errorf("insert version = %d, want 1", doc.Version)
		}

		doc, err = store.Upsert(ctx, coll, "a", domain.DocumentData{"quantity": 5}, true)
		if err != nil {
			t.Fatalf("Upsert(merge) error = %v", err)
		}
		if doc.Version != 2 {
			t.Errorf("merge version = %d, want 2", doc.Version)
		}

		got, ok, err := store.GetByID(ctx, coll, "a")
		if err != nil || !ok {
			t.Fatalf("GetByID() = %v, %v", ok, err)
		}
		if item := decodeItem(t, got); item != (testItem{Name: "milk", Quantity: 5, OwnerID: "u1"}) {
			t.Errorf("after merge = %+v", item)
		}

		if _, err := store.Upsert(ctx, coll, "a", domain.DocumentData{"name": "oat milk"}, false); err != nil {
			t.Fatalf("Upsert(replace) error = %v", err)
		}

		got, _, _ = store.GetByID(ctx, coll, "a")
		if item := decodeItem(t, got); item != (testItem{Name: "oat milk"}) {
			t.Errorf("after replace = %+v", item)
		}
		if got.Version != 3 {
			t.Errorf("replace version = %d, want 3", got.Version)
		}
	})

	t.Run("query by field", func(t *testing.T) {
		ctx := context.Background()
		coll := testCollection(t)

		for _, tc := range []struct {
			id    domain.DocumentID
			owner string
		}{
			{"c", "u1"}, {"a", "u2"}, {"b", "u1"}, {"d", "u1"},
		} {
			if _, err := store.Upsert(ctx, coll, tc.id, mustData(t, testItem{Name: tc.id.String(), Quantity: 1, OwnerID: tc.owner}), false); err != nil {
				t.Fatalf("Upsert(%s) error = %v", tc.id, err)
			}
		}

		if err := store.Delete(ctx, coll, "d"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}

		docs, err := store.QueryByField(ctx, coll, domain.FieldOwnerID, "u1")
		if err != nil {
			t.Fatalf("QueryByField() error = %v", err)
		}

		var ids []domain.DocumentID
		for _, doc := range docs {
			ids = append(ids, doc.ID)
		}

		if len(ids) != 2 || ids[0] != "c" || ids[1] != "b" {
			t.Errorf("QueryByField() ids = %v, want [c b]", ids)
		}

		if docs, err := store.QueryByField(ctx, coll, domain.FieldOwnerID, "nobody"); err != nil || len(docs) != 0 {
			t.Errorf("QueryByField(nobody) = %v, %v", docs, err)
		}

		if _, err := store.QueryByField(ctx, coll, "owner') OR 1=1 --", "u1"); !errors.Is(err, domain.ErrInvalidField) {
			t.Errorf("QueryByField(bad field) error = %v, want %v", err, domain.ErrInvalidField)
		}
	})

	t.Run("compare and swap", func(t *testing.T) {
		ctx := context.Background()
		coll := testCollection(t)

		doc, err := store.Upsert(ctx, coll, "x", mustData(t, testItem{Name: "eggs", Quantity: 3}), false)
		if err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}

		swapped, err := store.CompareAndSwap(ctx, coll, "x", mustData(t, testItem{Name: "eggs", Quantity: 2}), doc.Version)
		if err != nil {
			t.Fatalf("CompareAndSwap() error = %v", err)
		}
		if swapped.Version != doc.Version+1 {
			t.Errorf("CompareAndSwap() version = %d, want %d", swapped.Version, doc.Version+1)
		}

		if _, err := store.CompareAndSwap(ctx, coll, "x", mustData(t, testItem{Name: "eggs"}), doc.Version); !errors.Is(err, domain.ErrVersionConflict) {
			t.Errorf("CompareAndSwap(stale) error = %v, want %v", err, domain.ErrVersionConflict)
		}

		if _, err := store.CompareAndSwap(ctx, coll, "missing", mustData(t, testItem{Name: "eggs"}), 1); !errors.Is(err, domain.ErrVersionConflict) {
			t.Errorf("CompareAndSwap(missing) error = %v, want %v", err, domain.ErrVersionConflict)
		}

		got, _, _ := store.GetByID(ctx, coll, "x")
		if item := decodeItem(t, got); item.Quantity != 2 || got.Version != swapped.Version {
			t.Errorf("after swap = %+v (version %d)", item, got.Version)
		}
	})

	t.Run("compare and delete", func(t *testing.T) {
		ctx := context.Background()
		coll := testCollection(t)

		doc, err := store.Upsert(ctx, coll, "y", mustData(t, testItem{Name: "jam", Quantity: 1}), false)
		if err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}

		if err := store.CompareAndDelete(ctx, coll, "y", doc.Version+1); !errors.Is(err, domain.ErrVersionConflict) {
			t.Errorf("CompareAndDelete(stale) error = %v, want %v", err, domain.ErrVersionConflict)
		}

		if err := store.CompareAndDelete(ctx, coll, "y", doc.Version); err != nil {
			t.Fatalf("CompareAndDelete() error = %v", err)
		}

		if _, ok, _ := store.GetByID(ctx, coll, "y"); ok {
			t.Error("document still present after CompareAndDelete")
		}

		if docs, _ := store.QueryByField(ctx, coll, domain.FieldName, "jam"); len(docs) != 0 {
			t.Errorf("deleted document still queryable: %v", docs)
		}

		if err := store.Delete(ctx, coll, "y"); err != nil {
			t.Errorf("Delete(missing) error = %v", err)
		}
	})
}
