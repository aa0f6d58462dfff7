package stats

import (
	"context"
	"fmt"
	"log/slog"

	"finanzas/internal/cache"
	"finanzas/internal/core"
)

// Provider is implemented by Aggregator and CachedAggregator.
type Provider interface {
	Summary(ctx context.Context, ownerID int64, rng core.DateRange) (core.Summary, error)
	CategoryBreakdown(ctx context.Context, ownerID int64, typ *core.TransactionType, rng core.DateRange) (core.CategoryBreakdown, error)
	MonthlySeries(ctx context.Context, ownerID int64, year int) ([]core.MonthlyBucket, error)
	TrendSeries(ctx context.Context, ownerID int64, period Period, limit int) ([]core.TrendBucket, error)
	TopTransactions(ctx context.Context, ownerID int64, typ *core.TransactionType, limit int) ([]core.TopTransaction, error)
}

var (
	_ Provider = (*Aggregator)(nil)
	_ Provider = (*CachedAggregator)(nil)
)

// CachedAggregator memoizes views per owner until InvalidateOwner is
// called or the entry expires.
type CachedAggregator struct {
	inner  Provider
	loader *cache.Loader[any]
}

func NewCachedAggregator(inner Provider, c cache.Cache[any]) *CachedAggregator {
	return &CachedAggregator{inner: inner, loader: cache.NewLoader(c)}
}

func ownerPrefix(ownerID int64) string {
	return fmt.Sprintf("owner:%d:", ownerID)
}

func typeKey(typ *core.TransactionType) string {
	if typ == nil {
		return "all"
	}
	return string(*typ)
}

func cached[T any](ctx context.Context, l *cache.Loader[any], key string, load func(context.Context) (T, error)) (T, error) {
	v, err := l.Get(ctx, key, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (c *CachedAggregator) Summary(ctx context.Context, ownerID int64, rng core.DateRange) (core.Summary, error) {
	key := fmt.Sprintf("%ssummary:%s:%s", ownerPrefix(ownerID), rng.Start, rng.End)
	return cached(ctx, c.loader, key, func(ctx context.Context) (core.Summary, error) {
		return c.inner.Summary(ctx, ownerID, rng)
	})
}

func (c *CachedAggregator) CategoryBreakdown(ctx context.Context, ownerID int64, typ *core.TransactionType, rng core.DateRange) (core.CategoryBreakdown, error) {
	key := fmt.Sprintf("%scategories:%s:%s:%s", ownerPrefix(ownerID), typeKey(typ), rng.Start, rng.End)
	return cached(ctx, c.loader, key, func(ctx context.Context) (core.CategoryBreakdown, error) {
		return c.inner.CategoryBreakdown(ctx, ownerID, typ, rng)
	})
}

func (c *CachedAggregator) MonthlySeries(ctx context.Context, ownerID int64, year int) ([]core.MonthlyBucket, error) {
	key := fmt.Sprintf("%smonthly:%d", ownerPrefix(ownerID), year)
	return cached(ctx, c.loader, key, func(ctx context.Context) ([]core.MonthlyBucket, error) {
		return c.inner.MonthlySeries(ctx, ownerID, year)
	})
}

func (c *CachedAggregator) TrendSeries(ctx context.Context, ownerID int64, period Period, limit int) ([]core.TrendBucket, error) {
	key := fmt.Sprintf("%strends:%s:%d", ownerPrefix(ownerID), period, limit)
	return cached(ctx, c.loader, key, func(ctx context.Context) ([]core.TrendBucket, error) {
		return c.inner.TrendSeries(ctx, ownerID, period, limit)
	})
}

func (c *CachedAggregator) TopTransactions(ctx context.Context, ownerID int64, typ *core.TransactionType, limit int) ([]core.TopTransaction, error) {
	key := fmt.Sprintf("%stop:%s:%d", ownerPrefix(ownerID), typeKey(typ), limit)
	return cached(ctx, c.loader, key, func(ctx context.Context) ([]core.TopTransaction, error) {
		return c.inner.TopTransactions(ctx, ownerID, typ, limit)
	})
}

// InvalidateOwner drops every cached view of ownerID.
func (c *CachedAggregator) InvalidateOwner(ownerID int64) {
	if n := c.loader.Invalidate(ownerPrefix(ownerID)); n > 0 {
		slog.Debug("Stats cache invalidated", "owner_id", ownerID, "entries", n)
	}
}

// Stats reports cache hits and misses.
func (c *CachedAggregator) Stats() (hits, misses int64) {
	return c.loader.Stats()
}
