package memory_test

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/worklens/backend/pkg/store/memory"
)

func TestUpsertMergeAndReplace(t *testing.T) {
	st := memory.NewStore()
	ctx := context.Background()

	if err := st.Upsert(ctx, "t1", "c", "d1", map[string]any{"name": "a", "nested": map[string]any{"x": "1"}}, false); err != nil {
		t.Fatal(err)
	}
	if err := st.Upsert(ctx, "t1", "c", "d1", map[string]any{"nested": map[string]any{"y": "2"}}, true); err != nil {
		t.Fatal(err)
	}

	got, ok, err := st.Get(ctx, "t1", "c", "d1")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v, %v", got, ok, err)
	}
	want := map[string]any{"name": "a", "nested": map[string]any{"x": "1", "y": "2"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("merged doc = %v, want %v", got, want)
	}

	// Replace drops fields not present in the new document.
	if err := st.Upsert(ctx, "t1", "c", "d1", map[string]any{"name": "b"}, false); err != nil {
		t.Fatal(err)
	}
	got, _, _ = st.Get(ctx, "t1", "c", "d1")
	if !reflect.DeepEqual(got, map[string]any{"name": "b"}) {
		t.Errorf("replaced doc = %v, want only the new fields", got)
	}
}

func TestTenantIsolation(t *testing.T) {
	st := memory.NewStore()
	ctx := context.Background()
	if err := st.Upsert(ctx, "t1", "c", "d1", map[string]any{"name": "a"}, false); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := st.Get(ctx, "t2", "c", "d1"); ok {
		t.Error("document visible from another tenant")
	}
	if n, _ := st.Count(ctx, "t2", "c"); n != 0 {
		t.Errorf("foreign tenant count = %d, want 0", n)
	}
}

func TestQueryPrefix(t *testing.T) {
	st := memory.NewStore()
	ctx := context.Background()
	for id, name := range map[string]string{
		"d1": "Database",
		"d2": "Database Backup Tool",
		"d3": "network monitor",
	} {
		if err := st.Upsert(ctx, "t1", "c", id, map[string]any{"name": name}, false); err != nil {
			t.Fatal(err)
		}
	}

	docs, err := st.Query(ctx, "t1", "c", "name", "data", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
	if docs[0].ID != "d1" || docs[1].ID != "d2" {
		t.Errorf("order = %s, %s, want field order d1, d2", docs[0].ID, docs[1].ID)
	}

	docs, err = st.Query(ctx, "t1", "c", "name", "data", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Errorf("limit ignored, got %d docs", len(docs))
	}
}

func TestDeleteAllChunks(t *testing.T) {
	st := memory.NewStore()
	ctx := context.Background()
	const total = 1001
	for i := 0; i < total; i++ {
		id := fmt.Sprintf("d%04d", i)
		if err := st.Upsert(ctx, "t1", "c", id, map[string]any{"name": id}, false); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := st.DeleteAll(ctx, "t1", "c")
	if err != nil {
		t.Fatal(err)
	}
	if deleted != total {
		t.Errorf("deleted = %d, want %d", deleted, total)
	}
	if want := []int{500, 500, 1}; !reflect.DeepEqual(st.DeleteBatches, want) {
		t.Errorf("batch sizes = %v, want %v", st.DeleteBatches, want)
	}
	if n, _ := st.Count(ctx, "t1", "c"); n != 0 {
		t.Errorf("count after delete = %d, want 0", n)
	}
}
