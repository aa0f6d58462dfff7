// Package services orchestrates the transaction store, the import pipeline,
// the sync publisher and the stats cache.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finanzas/internal/amqp"
	"finanzas/internal/core"
	"finanzas/internal/importer"
	"finanzas/internal/log"
	"finanzas/internal/ports"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Publisher announces newly stored transactions to the sync worker.
type Publisher interface {
	PublishTransactionsSync(ctx context.Context, msg *amqp.TransactionsSyncMessage) error
}

// Invalidator drops cached projections for an owner after a write.
type Invalidator interface {
	InvalidateOwner(ownerID int64)
}

type TransactionService struct {
	store       ports.Store
	pipeline    *importer.Pipeline
	publisher   Publisher
	invalidator Invalidator
	logger      *log.Logger
	events      *log.StructuredLogger
	today       func() core.ISODate
}

// NewTransactionService wires the service. publisher and invalidator may be nil.
func NewTransactionService(store ports.Store, publisher Publisher, invalidator Invalidator, logger *log.Logger) *TransactionService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if c, ok := publisher.(*amqp.Client); ok && c == nil {
		publisher = nil
	}
	logger = logger.WithComponent(log.ComponentTx)
	return &TransactionService{
		store:       store,
		pipeline:    importer.NewPipeline(store, logger.WithComponent(log.ComponentImport)),
		publisher:   publisher,
		invalidator: invalidator,
		logger:      logger,
		events:      log.NewStructuredLogger(logger),
		today:       core.Today,
	}
}

// CreateInput is a manually entered transaction. Date defaults to today.
type CreateInput struct {
	Type        core.TransactionType `json:"type"`
	Amount      core.Money           `json:"amount"`
	Description string               `json:"description"`
	CategoryID  int64                `json:"category_id"`
	Date        core.ISODate         `json:"date,omitempty"`
	Notes       string               `json:"notes,omitempty"`
}

// Create validates and stores one transaction. Every rejection is a
// *core.ValidationError.
func (s *TransactionService) Create(ctx context.Context, ownerID int64, in CreateInput) (core.Transaction, error) {
	t := core.Transaction{
		Type:        in.Type,
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		CategoryID:  in.CategoryID,
		Date:        in.Date,
		Notes:       in.Notes,
		OwnerID:     ownerID,
	}
	if t.Date == "" {
		t.Date = s.today()
	}
	if err := s.validate(ctx, t); err != nil {
		return core.Transaction{}, err
	}

	id, err := s.store.InsertTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	t.ID = id

	s.events.LogTransactionCreated(ctx, ownerID, id, string(t.Type), t.Amount.Cents, t.CategoryID)
	s.afterWrite(ctx, ownerID, "", amqp.SourceManual, []int64{id})
	return t, nil
}

// Update replaces type, amount, description, category and date of an
// existing transaction. An empty date or notes keeps the stored value.
// The category is checked again as in Create.
func (s *TransactionService) Update(ctx context.Context, ownerID, id int64, in CreateInput) (core.Transaction, error) {
	cur, err := s.store.GetTransaction(ctx, ownerID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	t := core.Transaction{
		ID:          id,
		Type:        in.Type,
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		CategoryID:  in.CategoryID,
		Date:        in.Date,
		Notes:       in.Notes,
		OwnerID:     ownerID,
		ImportBatch: cur.ImportBatch,
	}
	if t.Date == "" {
		t.Date = cur.Date
	}
	if t.Notes == "" {
		t.Notes = cur.Notes
	}
	if err := s.validate(ctx, t); err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.UpdateTransaction(ctx, t); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Transaction{}, err
		}
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Transaction updated",
		"owner_id", ownerID, "transaction_id", id, "type", t.Type, "amount_cents", t.Amount.Cents)
	s.afterWrite(ctx, ownerID, "", amqp.SourceUpdate, []int64{id})
	return t, nil
}

// validate checks t and that its category is visible to the owner and of
// the same type.
func (s *TransactionService) validate(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return &core.ValidationError{Field: validationField(err), Reason: err.Error(), Err: err}
	}
	cat, ok, err := s.store.LookupCategory(ctx, t.CategoryID, t.OwnerID)
	if err != nil {
		return fmt.Errorf("lookup category %d: %w", t.CategoryID, err)
	}
	if !ok {
		return &core.ValidationError{Field: "category_id", Reason: "category not found", Err: core.ErrInvalidCategory}
	}
	if cat.Type != t.Type {
		return &core.ValidationError{Field: "category_id", Reason: core.ErrCategoryMismatch.Error(), Err: core.ErrCategoryMismatch}
	}
	return nil
}

func validationField(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidType):
		return "type"
	case errors.Is(err, core.ErrInvalidAmount):
		return "amount"
	case errors.Is(err, core.ErrInvalidDate):
		return "date"
	case errors.Is(err, core.ErrInvalidCategory):
		return "category_id"
	default:
		return "description"
	}
}

// Import runs the statement pipeline and announces the created rows.
func (s *TransactionService) Import(ctx context.Context, req importer.Request) (core.ImportReport, error) {
	report, err := s.pipeline.Import(ctx, req)
	if err != nil {
		return report, err
	}
	if len(report.TransactionIDs) > 0 {
		s.afterWrite(ctx, req.OwnerID, report.BatchID, amqp.SourceImport, report.TransactionIDs)
	}
	return report, nil
}

// afterWrite never fails the request: the rows are already stored and
// pending rows are picked up again by the sync sweeper.
func (s *TransactionService) afterWrite(ctx context.Context, ownerID int64, batchID, source string, ids []int64) {
	if s.invalidator != nil {
		s.invalidator.InvalidateOwner(ownerID)
	}
	if s.publisher == nil {
		s.logger.WarnContext(ctx, "AMQP client not available, skipping sync message", "owner_id", ownerID, "count", len(ids))
		return
	}
	msg := amqp.NewTransactionsSyncMessage(ownerID, batchID, source, ids)
	if err := s.publisher.PublishTransactionsSync(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish sync message", "owner_id", ownerID, "count", len(ids), "error", err)
	}
}

// Page is one slice of a filtered listing.
type Page struct {
	Transactions []core.Transaction `json:"transactions"`
	Total        int                `json:"total"`
	Page         int                `json:"page"`
	Limit        int                `json:"limit"`
	Pages        int                `json:"pages"`
}

// List applies f with 1-based page numbering. Limit is clamped to MaxPageSize.
func (s *TransactionService) List(ctx context.Context, ownerID int64, f core.TransactionFilter, page, limit int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if err := f.Range.Validate(); err != nil {
		return Page{}, &core.ValidationError{Field: "date", Reason: err.Error(), Err: err}
	}
	f.Limit, f.Offset = limit, (page-1)*limit

	total, err := s.store.CountTransactions(ctx, ownerID, f)
	if err != nil {
		return Page{}, err
	}
	items, err := s.store.QueryTransactions(ctx, ownerID, f)
	if err != nil {
		return Page{}, err
	}
	if items == nil {
		items = []core.Transaction{}
	}
	return Page{
		Transactions: items,
		Total:        total,
		Page:         page,
		Limit:        limit,
		Pages:        (total + limit - 1) / limit,
	}, nil
}

func (s *TransactionService) Get(ctx context.Context, ownerID, id int64) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, ownerID, id)
}

func (s *TransactionService) Delete(ctx context.Context, ownerID, id int64) error {
	if err := s.store.DeleteTransaction(ctx, ownerID, id); err != nil {
		return err
	}
	if s.invalidator != nil {
		s.invalidator.InvalidateOwner(ownerID)
	}
	s.logger.InfoContext(ctx, "Transaction deleted", "owner_id", ownerID, "transaction_id", id)
	return nil
}

// Categories lists what the owner may reference, optionally by type.
func (s *TransactionService) Categories(ctx context.Context, ownerID int64, typ *core.TransactionType) ([]core.Category, error) {
	return s.store.QueryCategories(ctx, ownerID, typ)
}
