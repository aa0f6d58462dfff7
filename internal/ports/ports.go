// Package ports declares the storage surface consumed by the importer,
// the stats aggregator and the transaction service.
package ports

import (
	"context"

	"finanzas/internal/core"
)

type (
	CategoryReader interface {
		// LookupCategory resolves owner-private and shared default categories.
		// The bool is false when no visible category has that id.
		LookupCategory(ctx context.Context, id, ownerID int64) (core.Category, bool, error)
		// QueryCategories lists categories visible to owner, optionally by type.
		QueryCategories(ctx context.Context, ownerID int64, typ *core.TransactionType) ([]core.Category, error)
	}

	TransactionWriter interface {
		InsertTransaction(ctx context.Context, t core.Transaction) (int64, error)
		// UpdateTransaction replaces the row t.ID owned by t.OwnerID and
		// returns core.ErrNotFound when there is none.
		UpdateTransaction(ctx context.Context, t core.Transaction) error
		DeleteTransaction(ctx context.Context, ownerID, id int64) error
	}

	TransactionReader interface {
		// QueryTransactions returns matches ordered by date desc, id desc.
		QueryTransactions(ctx context.Context, ownerID int64, f core.TransactionFilter) ([]core.Transaction, error)
		// GetTransaction returns core.ErrNotFound when the id is not the owner's.
		GetTransaction(ctx context.Context, ownerID, id int64) (core.Transaction, error)
		// CountTransactions ignores the filter's Limit and Offset.
		CountTransactions(ctx context.Context, ownerID int64, f core.TransactionFilter) (int, error)
	}

	// Store is the full storage collaborator.
	Store interface {
		CategoryReader
		TransactionWriter
		TransactionReader
	}
)
