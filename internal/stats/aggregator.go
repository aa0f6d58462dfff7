// Package stats derives read-only views from an owner's transactions.
package stats

import (
	"context"
	"fmt"
	"sort"

	"finanzas/internal/core"
)

const (
	DefaultTrendLimit = 12
	DefaultTopLimit   = 10
	MaxTrendLimit     = 120
	MaxTopLimit       = 100
)

// clampLimit maps non-positive limits to def and caps the rest at max.
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, max)
}

// Source is the read side of the storage collaborator.
type Source interface {
	QueryTransactions(ctx context.Context, ownerID int64, f core.TransactionFilter) ([]core.Transaction, error)
	QueryCategories(ctx context.Context, ownerID int64, typ *core.TransactionType) ([]core.Category, error)
}

type Aggregator struct {
	src Source
}

func NewAggregator(src Source) *Aggregator {
	return &Aggregator{src: src}
}

func (a *Aggregator) transactions(ctx context.Context, ownerID int64, f core.TransactionFilter) ([]core.Transaction, error) {
	txs, err := a.src.QueryTransactions(ctx, ownerID, f)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	return txs, nil
}

// Summary totals income and expense over rng.
func (a *Aggregator) Summary(ctx context.Context, ownerID int64, rng core.DateRange) (core.Summary, error) {
	txs, err := a.transactions(ctx, ownerID, core.TransactionFilter{Range: rng})
	if err != nil {
		return core.Summary{}, err
	}
	s := core.Summary{Period: rng, TransactionCount: len(txs)}
	for _, t := range txs {
		switch t.Type {
		case core.Income:
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
		case core.Expense:
			s.TotalExpense = s.TotalExpense.Add(t.Amount)
		}
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpense)
	if s.TotalIncome.Cents > 0 {
		s.SavingsRate = core.Percent(s.Balance, s.TotalIncome)
	}
	return s, nil
}

// CategoryBreakdown lists every category visible to the owner, including
// those without transactions. Percentages share one denominator, the sum
// of all listed totals, so without a type filter income and expense
// categories are measured against each other.
func (a *Aggregator) CategoryBreakdown(ctx context.Context, ownerID int64, typ *core.TransactionType, rng core.DateRange) (core.CategoryBreakdown, error) {
	cats, err := a.src.QueryCategories(ctx, ownerID, typ)
	if err != nil {
		return core.CategoryBreakdown{}, fmt.Errorf("query categories: %w", err)
	}
	txs, err := a.transactions(ctx, ownerID, core.TransactionFilter{Range: rng})
	if err != nil {
		return core.CategoryBreakdown{}, err
	}

	byID := make(map[int64]*core.CategoryStat, len(cats))
	stats := make([]core.CategoryStat, len(cats))
	for i, c := range cats {
		stats[i] = core.CategoryStat{
			CategoryID: c.ID,
			Name:       c.Name,
			Color:      c.Color,
			Icon:       c.Icon,
			Type:       c.Type,
		}
		byID[c.ID] = &stats[i]
	}
	for _, t := range txs {
		if st, ok := byID[t.CategoryID]; ok {
			st.Total = st.Total.Add(t.Amount)
			st.TransactionCount++
		}
	}

	var total core.Money
	for _, st := range stats {
		total = total.Add(st.Total)
	}
	for i := range stats {
		stats[i].Percentage = core.Percent(stats[i].Total, total)
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Total.Cents > stats[j].Total.Cents })

	return core.CategoryBreakdown{Categories: stats, TotalAmount: total}, nil
}

// MonthlySeries always returns twelve buckets for year, zero when empty.
func (a *Aggregator) MonthlySeries(ctx context.Context, ownerID int64, year int) ([]core.MonthlyBucket, error) {
	rng := core.DateRange{Start: core.NewDate(year, 1, 1), End: core.NewDate(year, 12, 31)}
	txs, err := a.transactions(ctx, ownerID, core.TransactionFilter{Range: rng})
	if err != nil {
		return nil, err
	}

	buckets := make([]core.MonthlyBucket, 12)
	for m := range buckets {
		buckets[m].Month = fmt.Sprintf("%04d-%02d", year, m+1)
	}
	for _, t := range txs {
		tm, err := t.Date.Time()
		if err != nil || tm.Year() != year {
			continue
		}
		b := &buckets[int(tm.Month())-1]
		switch t.Type {
		case core.Income:
			b.Income = b.Income.Add(t.Amount)
		case core.Expense:
			b.Expense = b.Expense.Add(t.Amount)
		}
	}
	for m := range buckets {
		buckets[m].Balance = buckets[m].Income.Sub(buckets[m].Expense)
	}
	return buckets, nil
}

// TrendSeries groups by (period, type), newest period first, and keeps at
// most limit*2 buckets so both types fit for limit periods. limit is capped
// at MaxTrendLimit.
func (a *Aggregator) TrendSeries(ctx context.Context, ownerID int64, period Period, limit int) ([]core.TrendBucket, error) {
	limit = clampLimit(limit, DefaultTrendLimit, MaxTrendLimit)
	txs, err := a.transactions(ctx, ownerID, core.TransactionFilter{})
	if err != nil {
		return nil, err
	}

	type key struct {
		period string
		typ    core.TransactionType
	}
	index := map[key]int{}
	var out []core.TrendBucket
	for _, t := range txs {
		p, err := period.Key(t.Date)
		if err != nil {
			continue
		}
		k := key{p, t.Type}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, core.TrendBucket{Period: p, Type: t.Type})
		}
		out[i].Total = out[i].Total.Add(t.Amount)
		out[i].Count++
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Period != out[j].Period {
			return out[i].Period > out[j].Period
		}
		return out[i].Type < out[j].Type
	})
	if len(out) > limit*2 {
		out = out[:limit*2]
	}
	return out, nil
}

// TopTransactions ranks by amount, largest first. Transactions whose
// category the owner cannot see are left out. limit is capped at MaxTopLimit.
func (a *Aggregator) TopTransactions(ctx context.Context, ownerID int64, typ *core.TransactionType, limit int) ([]core.TopTransaction, error) {
	limit = clampLimit(limit, DefaultTopLimit, MaxTopLimit)
	cats, err := a.src.QueryCategories(ctx, ownerID, nil)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	byID := make(map[int64]core.Category, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}
	txs, err := a.transactions(ctx, ownerID, core.TransactionFilter{Type: typ})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Amount.Cents > txs[j].Amount.Cents })
	out := make([]core.TopTransaction, 0, min(limit, len(txs)))
	for _, t := range txs {
		if len(out) == limit {
			break
		}
		c, ok := byID[t.CategoryID]
		if !ok {
			continue
		}
		out = append(out, core.TopTransaction{
			Transaction:   t,
			CategoryName:  c.Name,
			CategoryColor: c.Color,
			CategoryIcon:  c.Icon,
		})
	}
	return out, nil
}
