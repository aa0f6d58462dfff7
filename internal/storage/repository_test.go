package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"finanzas/internal/core"
)

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "finanzas.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestMigrationsSeedDefaults(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	if repo.SchemaVersion() != 2 {
		t.Fatalf("expected schema version 2, got %d", repo.SchemaVersion())
	}
	cats, err := repo.QueryCategories(ctx, 42, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 13 {
		t.Fatalf("expected 13 default categories, got %d", len(cats))
	}
	exp := core.Expense
	cats, _ = repo.QueryCategories(ctx, 42, &exp)
	if len(cats) != 8 {
		t.Fatalf("expected 8 expense categories, got %d", len(cats))
	}

	c, ok, err := repo.LookupCategory(ctx, 1, 42)
	if err != nil || !ok || c.Name != "Salario" || c.Type != core.Income || !c.IsDefault {
		t.Fatalf("unexpected lookup %+v ok=%v err=%v", c, ok, err)
	}
	if _, ok, _ := repo.LookupCategory(ctx, 999, 42); ok {
		t.Fatal("unknown category must not resolve")
	}
}

func TestRepositoryMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.sqlite")
	first, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatal(err)
	}
	first.Close()
	second, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	cats, _ := second.QueryCategories(context.Background(), 1, nil)
	if len(cats) != 13 {
		t.Fatalf("defaults must not be duplicated, got %d", len(cats))
	}
}

func TestTransactionLifecycle(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	rows := []core.Transaction{
		{Type: core.Income, Amount: core.Money{Cents: 2607527}, CategoryID: 1, Date: "2024-01-01", OwnerID: 1, Description: "Salary", ImportBatch: "b1"},
		{Type: core.Expense, Amount: core.Money{Cents: 123450}, CategoryID: 8, Date: "2024-01-02", OwnerID: 1, Description: "Rent"},
		{Type: core.Expense, Amount: core.Money{Cents: 999}, CategoryID: 6, Date: "2024-01-03", OwnerID: 2, Description: "Other owner"},
	}
	var ids []int64
	for _, tx := range rows {
		id, err := repo.InsertTransaction(ctx, tx)
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		ids = append(ids, id)
	}

	got, err := repo.GetTransaction(ctx, 1, ids[0])
	if err != nil || got.Amount.Cents != 2607527 || got.Date != "2024-01-01" || got.ImportBatch != "b1" {
		t.Fatalf("unexpected get %+v err=%v", got, err)
	}
	if _, err := repo.GetTransaction(ctx, 2, ids[0]); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found for other owner, got %v", err)
	}

	list, err := repo.QueryTransactions(ctx, 1, core.TransactionFilter{})
	if err != nil || len(list) != 2 || list[0].Description != "Rent" {
		t.Fatalf("unexpected list %+v err=%v", list, err)
	}

	exp := core.Expense
	cases := []struct {
		name string
		f    core.TransactionFilter
		want int
	}{
		{"type", core.TransactionFilter{Type: &exp}, 1},
		{"category", core.TransactionFilter{CategoryID: 1}, 1},
		{"range", core.TransactionFilter{Range: core.DateRange{Start: "2024-01-02", End: "2024-01-31"}}, 1},
		{"search description", core.TransactionFilter{Search: "sal"}, 1},
		{"search category", core.TransactionFilter{Search: "vivienda"}, 1},
		{"page", core.TransactionFilter{Limit: 1, Offset: 1}, 1},
	}
	for _, tc := range cases {
		list, err := repo.QueryTransactions(ctx, 1, tc.f)
		if err != nil || len(list) != tc.want {
			t.Fatalf("%s: expected %d rows, got %d (%v)", tc.name, tc.want, len(list), err)
		}
	}
	if n, _ := repo.CountTransactions(ctx, 1, core.TransactionFilter{Limit: 1}); n != 2 {
		t.Fatalf("count must ignore pagination, got %d", n)
	}

	byIDs, _ := repo.TransactionsByIDs(ctx, 1, ids)
	if len(byIDs) != 2 {
		t.Fatalf("expected owner rows only, got %d", len(byIDs))
	}

	if err := repo.DeleteTransaction(ctx, 2, ids[0]); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("delete across owners must fail, got %v", err)
	}
	if err := repo.DeleteTransaction(ctx, 1, ids[0]); err != nil {
		t.Fatal(err)
	}
	if n, _ := repo.CountTransactions(ctx, 1, core.TransactionFilter{}); n != 1 {
		t.Fatalf("expected 1 row after delete, got %d", n)
	}
}

func TestUpdateTransaction(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	id, err := repo.InsertTransaction(ctx, core.Transaction{
		Type: core.Expense, Amount: core.Money{Cents: 500}, CategoryID: 6, Date: "2024-01-02", OwnerID: 1,
		Description: "Pan", ImportBatch: "b1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.MarkSynced(ctx, id); err != nil {
		t.Fatal(err)
	}

	upd := core.Transaction{
		ID: id, Type: core.Income, Amount: core.Money{Cents: 1200}, CategoryID: 1, Date: "2024-01-05", OwnerID: 1,
		Description: "Reembolso", Notes: "corregido",
	}
	if err := repo.UpdateTransaction(ctx, upd); err != nil {
		t.Fatal(err)
	}
	got, err := repo.GetTransaction(ctx, 1, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != core.Income || got.Amount.Cents != 1200 || got.Date != "2024-01-05" || got.Notes != "corregido" || got.ImportBatch != "b1" {
		t.Fatalf("unexpected row after update %+v", got)
	}
	pending, _ := repo.PendingSync(ctx, 10)
	if len(pending) != 1 || pending[0].ID != id {
		t.Fatalf("updated row must be mirrored again, pending=%+v", pending)
	}

	upd.OwnerID = 2
	if err := repo.UpdateTransaction(ctx, upd); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found across owners, got %v", err)
	}
	upd.OwnerID, upd.Date = 1, "2024-02-30"
	if err := repo.UpdateTransaction(ctx, upd); !errors.Is(err, core.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestInsertRejectsInvalid(t *testing.T) {
	repo := newRepo(t)
	_, err := repo.InsertTransaction(context.Background(), core.Transaction{
		Type: core.Expense, Amount: core.Money{Cents: 100}, CategoryID: 6, Date: "2024-02-30", OwnerID: 1,
	})
	if !errors.Is(err, core.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
	_, err = repo.InsertTransaction(context.Background(), core.Transaction{
		Type: core.Expense, Amount: core.Money{Cents: 100}, CategoryID: 777, Date: "2024-02-01", OwnerID: 1,
	})
	if err == nil {
		t.Fatal("expected foreign key failure for unknown category")
	}
}

func TestSyncState(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := repo.InsertTransaction(ctx, core.Transaction{
			Type: core.Income, Amount: core.Money{Cents: 100}, CategoryID: 1, Date: "2024-01-01", OwnerID: 7,
		})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	pending, err := repo.PendingSync(ctx, 10)
	if err != nil || len(pending) != 3 || pending[0].OwnerID != 7 {
		t.Fatalf("unexpected pending %+v err=%v", pending, err)
	}
	if err := repo.MarkSynced(ctx, ids[0], ids[1]); err != nil {
		t.Fatal(err)
	}
	if err := repo.MarkSyncError(ctx, ids[2]); err != nil {
		t.Fatal(err)
	}
	pending, _ = repo.PendingSync(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("expected nothing pending, got %+v", pending)
	}

	moved, err := repo.RetryFailedSyncs(ctx)
	if err != nil || moved != 1 {
		t.Fatalf("expected one row retried, got %d (%v)", moved, err)
	}
	pending, _ = repo.PendingSync(ctx, 10)
	if len(pending) != 1 || pending[0].ID != ids[2] {
		t.Fatalf("expected the failed row pending again, got %+v", pending)
	}
}
