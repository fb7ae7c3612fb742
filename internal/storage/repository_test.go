package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"lifedash/internal/core"
	"lifedash/internal/session"
)

func newTestRepo(t *testing.T) *SnapshotRepository {
	t.Helper()
	repo, err := NewSnapshotRepository(filepath.Join(t.TempDir(), "data", "lifedash.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func samplePersisted() session.Persisted {
	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return session.Persisted{
		Version: session.PersistVersion,
		Transactions: []core.Transaction{
			{ID: "a", Amount: core.Cents(1250), Currency: "EUR", Category: core.CategoryFood, Description: "Lunch",
				Date: ts, Type: core.Expense, PaymentMethod: core.PaymentCash, Tags: []string{"work"},
				CreatedAt: ts, UpdatedAt: ts},
			{ID: "b", Amount: core.Cents(500000), Currency: "EUR", Category: core.CategoryIncome, Description: "Salary",
				Date: ts, Type: core.Income, PaymentMethod: core.PaymentBankTransfer, Tags: []string{},
				CreatedAt: ts, UpdatedAt: ts, Synced: true},
		},
		Events: []core.CalendarEvent{
			{ID: "e1", Title: "Rent due", StartDate: ts, EndDate: ts, IsAllDay: true},
		},
	}
}

func TestSnapshotRepositoryRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, found, err := repo.Load(ctx, "alice"); err != nil || found {
		t.Fatalf("expected no snapshot, found=%v err=%v", found, err)
	}

	want := samplePersisted()
	if err := repo.Save(ctx, "alice", want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, found, err := repo.Load(ctx, "alice")
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	if len(got.Transactions) != 2 || got.Transactions[0].Amount.Cents != 1250 || got.Transactions[1].Description != "Salary" {
		t.Fatalf("unexpected transactions: %+v", got.Transactions)
	}
	if len(got.Events) != 1 || !got.Events[0].IsAllDay {
		t.Fatalf("unexpected events: %+v", got.Events)
	}
}

func TestSnapshotRepositoryUpsertAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p := samplePersisted()
	if err := repo.Save(ctx, "alice", p); err != nil {
		t.Fatalf("save: %v", err)
	}
	p.Transactions = p.Transactions[:1]
	if err := repo.Save(ctx, "alice", p); err != nil {
		t.Fatalf("resave: %v", err)
	}
	if err := repo.Save(ctx, "bob", session.Persisted{Version: session.PersistVersion}); err != nil {
		t.Fatalf("save bob: %v", err)
	}

	keys, err := repo.Keys(ctx)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "alice" || keys[1] != "bob" {
		t.Fatalf("unexpected keys %v", keys)
	}

	infos, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var alice SnapshotInfo
	for _, info := range infos {
		if info.UserID == "alice" {
			alice = info
		}
	}
	if alice.TransactionCount != 1 || alice.UnsyncedCount != 1 || alice.EventCount != 1 {
		t.Fatalf("unexpected metadata: %+v", alice)
	}
}

func TestSnapshotRepositoryDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Save(ctx, "alice", samplePersisted()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Delete(ctx, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, _ := repo.Load(ctx, "alice"); found {
		t.Fatalf("snapshot still present")
	}
	if err := repo.Delete(ctx, "nobody"); err != nil {
		t.Fatalf("deleting a missing snapshot should succeed: %v", err)
	}
}

func TestSnapshotRepositoryBacksManager(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	m := session.NewManager(session.ManagerConfig{}, repo)
	s, release, err := m.Acquire(ctx, "alice")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()
	if _, err := s.Add(ctx, core.TransactionInput{
		Amount: core.Cents(999), Category: core.CategoryTravel, Description: "Train",
		Date: time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC), Type: core.Expense,
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	restored, done, err := session.NewManager(session.ManagerConfig{}, repo).Acquire(ctx, "alice")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	defer done()
	if txs := restored.Transactions(); len(txs) != 1 || txs[0].Description != "Train" {
		t.Fatalf("unexpected restored records: %+v", txs)
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	for i := 0; i < 2; i++ {
		version, err := RunMigrations(path)
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if version != 1 {
			t.Fatalf("run %d: schema version = %d, want 1", i, version)
		}
	}
}
