package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"lifedash/internal/core"
)

func tx(id string, day int) core.Transaction {
	return core.Transaction{
		ID: id, Amount: core.Cents(100), Currency: "EUR", Category: core.CategoryFood,
		Description: id, Date: time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC), Type: core.Expense,
	}
}

func TestMemoryStoreUpsertKeepsRowRef(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref1, err := s.Upsert(ctx, "u1", tx("a", 1))
	if err != nil || ref1 != "mem:1" {
		t.Fatalf("unexpected upsert: ref=%q err=%v", ref1, err)
	}
	updated := tx("a", 1)
	updated.Description = "changed"
	ref2, _ := s.Upsert(ctx, "u1", updated)
	if ref2 != ref1 {
		t.Fatalf("row ref changed on update: %q -> %q", ref1, ref2)
	}
	if ref3, _ := s.Upsert(ctx, "u2", tx("a", 1)); ref3 != "mem:2" {
		t.Fatalf("other user should get its own row, got %q", ref3)
	}

	recs, _ := s.ListRecords(ctx, "u1")
	if len(recs) != 1 || recs[0].Description != "changed" || !recs[0].Synced {
		t.Fatalf("unexpected records: %+v", recs)
	}
}

func TestMemoryStoreListOrderAndDelete(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c"} {
		if _, err := s.Upsert(ctx, "u1", tx(id, i+1)); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}
	if err := s.Delete(ctx, "u1", "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "u1", "missing"); err != nil {
		t.Fatalf("deleting unknown record: %v", err)
	}
	recs, _ := s.ListRecords(ctx, "u1")
	if len(recs) != 2 || recs[0].ID != "c" || recs[1].ID != "a" {
		t.Fatalf("unexpected order: %+v", recs)
	}
}

func TestMemoryStoreFailOn(t *testing.T) {
	s := New()
	boom := errors.New("quota exceeded")
	s.FailOn("a", boom)
	if _, err := s.Upsert(context.Background(), "u1", tx("a", 1)); !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if _, err := s.Upsert(context.Background(), "u1", tx("a", 1)); err != nil {
		t.Fatalf("failure should fire once, got %v", err)
	}
}
