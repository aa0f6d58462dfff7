package stats

import (
	"context"
	"sync"
	"testing"
	"time"

	"finanzas/internal/cache"
	"finanzas/internal/core"
)

type countingSource struct {
	Source
	queries int
}

func (c *countingSource) QueryTransactions(ctx context.Context, ownerID int64, f core.TransactionFilter) ([]core.Transaction, error) {
	c.queries++
	return c.Source.QueryTransactions(ctx, ownerID, f)
}

func TestCachedAggregatorInvalidation(t *testing.T) {
	store := seed(t, income(1000, "2024-01-01"))
	src := &countingSource{Source: store}
	c := NewCachedAggregator(NewAggregator(src), cache.NewLRUCache[any](16, time.Minute))
	ctx := context.Background()

	s1, _ := c.Summary(ctx, 1, core.DateRange{})
	s2, _ := c.Summary(ctx, 1, core.DateRange{})
	if src.queries != 1 || s1 != s2 {
		t.Fatalf("second call should be cached, queries=%d", src.queries)
	}
	if _, err := c.Summary(ctx, 1, core.DateRange{Start: "2024-01-01"}); err != nil || src.queries != 2 {
		t.Fatalf("different range must miss, queries=%d err=%v", src.queries, err)
	}

	tx := income(500, "2024-01-02")
	tx.OwnerID = 1
	if _, err := store.InsertTransaction(ctx, tx); err != nil {
		t.Fatal(err)
	}
	c.InvalidateOwner(1)
	s3, _ := c.Summary(ctx, 1, core.DateRange{})
	if s3.TotalIncome.Cents != 1500 {
		t.Fatalf("expected fresh summary after invalidation, got %+v", s3)
	}
	hits, misses := c.Stats()
	if hits != 1 || misses != 3 {
		t.Fatalf("unexpected hits/misses %d/%d", hits, misses)
	}
}

// gatedSource snapshots the first query, then holds it until released.
type gatedSource struct {
	Source
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (g *gatedSource) QueryTransactions(ctx context.Context, ownerID int64, f core.TransactionFilter) ([]core.Transaction, error) {
	txs, err := g.Source.QueryTransactions(ctx, ownerID, f)
	g.once.Do(func() {
		close(g.started)
		<-g.release
	})
	return txs, err
}

func TestCachedAggregatorWriteDuringLoad(t *testing.T) {
	store := seed(t, income(100, "2024-01-01"))
	src := &gatedSource{Source: store, started: make(chan struct{}), release: make(chan struct{})}
	c := NewCachedAggregator(NewAggregator(src), cache.NewLRUCache[any](16, time.Minute))
	ctx := context.Background()

	done := make(chan core.Summary)
	go func() {
		s, _ := c.Summary(ctx, 1, core.DateRange{})
		done <- s
	}()
	<-src.started

	tx := income(400, "2024-01-02")
	tx.OwnerID = 1
	if _, err := store.InsertTransaction(ctx, tx); err != nil {
		t.Fatal(err)
	}
	c.InvalidateOwner(1)
	close(src.release)
	if stale := <-done; stale.TotalIncome.Cents != 100 {
		t.Fatalf("in-flight load should see its snapshot, got %d", stale.TotalIncome.Cents)
	}

	fresh, err := c.Summary(ctx, 1, core.DateRange{})
	if err != nil {
		t.Fatal(err)
	}
	if fresh.TotalIncome.Cents != 500 {
		t.Fatalf("expected 500 cents after invalidation, got %d", fresh.TotalIncome.Cents)
	}
}
