// Package importer loads bank statement exports into the transaction store.
package importer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/ports"
)

// MaxErrorDetails caps the messages kept in a report.
const MaxErrorDetails = 10

// Store is the storage surface the pipeline needs.
type Store interface {
	LookupCategory(ctx context.Context, id, ownerID int64) (core.Category, bool, error)
	InsertTransaction(ctx context.Context, t core.Transaction) (int64, error)
}

var _ Store = ports.Store(nil)

type Request struct {
	OwnerID                int64
	Text                   string
	Delimiter              string   // defaults to "|"
	ExpectedHeaders        []string // defaults to DefaultHeaders
	DefaultExpenseCategory int64
	DefaultIncomeCategory  int64
}

type Pipeline struct {
	store   Store
	logger  *log.StructuredLogger
	batchID func() string
}

func NewPipeline(store Store, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Pipeline{
		store:   store,
		logger:  log.NewStructuredLogger(logger),
		batchID: func() string { return uuid.NewString() },
	}
}

// Import parses req.Text and persists every valid row.
//
// A *core.FormatError is returned for a malformed file and a
// *core.ValidationError when there are no rows or the default categories
// are unusable; in both cases nothing is written. Row failures never abort
// the batch and are reported in the returned report.
func (p *Pipeline) Import(ctx context.Context, req Request) (core.ImportReport, error) {
	delim := req.Delimiter
	if delim == "" {
		delim = DefaultDelimiter
	}
	expected := req.ExpectedHeaders
	if len(expected) == 0 {
		expected = DefaultHeaders
	}

	lines := nonBlankLines(req.Text)
	if len(lines) < 2 {
		return core.ImportReport{}, &core.FormatError{Reason: "file must contain a header and at least one row"}
	}
	h, width, err := parseHeader(lines[0], delim, expected)
	if err != nil {
		return core.ImportReport{}, err
	}
	rows := extractRows(lines[1:], delim, h, width)
	if len(rows) == 0 {
		return core.ImportReport{}, &core.ValidationError{Reason: "no importable rows found"}
	}

	categories, err := p.resolveDefaults(ctx, req)
	if err != nil {
		return core.ImportReport{}, err
	}

	report := core.ImportReport{BatchID: p.batchID(), TotalRows: len(rows), ErrorDetails: []string{}}
	for _, row := range rows {
		tx, rowErr := p.importRow(ctx, req.OwnerID, report.BatchID, row, categories)
		if rowErr != nil {
			report.ErrorCount++
			if len(report.ErrorDetails) < MaxErrorDetails {
				report.ErrorDetails = append(report.ErrorDetails, rowErr.Error())
			}
			continue
		}
		report.ImportedCount++
		report.TransactionIDs = append(report.TransactionIDs, tx.ID)
		report.Transactions = append(report.Transactions, tx)
	}

	p.logger.LogImport(ctx, req.OwnerID, report.BatchID, report.ImportedCount, report.ErrorCount, report.TotalRows)
	return report, nil
}

func (p *Pipeline) resolveDefaults(ctx context.Context, req Request) (map[core.TransactionType]int64, error) {
	wanted := []struct {
		field string
		id    int64
		typ   core.TransactionType
	}{
		{"default_expense_category", req.DefaultExpenseCategory, core.Expense},
		{"default_income_category", req.DefaultIncomeCategory, core.Income},
	}
	out := make(map[core.TransactionType]int64, len(wanted))
	for _, w := range wanted {
		if w.id <= 0 {
			return nil, &core.ValidationError{Field: w.field, Reason: "is required", Err: core.ErrInvalidCategory}
		}
		cat, ok, err := p.store.LookupCategory(ctx, w.id, req.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("lookup category %d: %w", w.id, err)
		}
		if !ok {
			return nil, &core.ValidationError{Field: w.field, Reason: "category not found", Err: core.ErrInvalidCategory}
		}
		if cat.Type != w.typ {
			return nil, &core.ValidationError{
				Field:  w.field,
				Reason: fmt.Sprintf("category %q is of type %s", cat.Name, cat.Type),
				Err:    core.ErrCategoryMismatch,
			}
		}
		out[w.typ] = cat.ID
	}
	return out, nil
}

func (p *Pipeline) importRow(ctx context.Context, ownerID int64, batch string, row Row, categories map[core.TransactionType]int64) (core.Transaction, *core.RowError) {
	amount, err := core.ParseLocaleNumber(row.Amount)
	if err != nil {
		return core.Transaction{}, &core.RowError{
			Line: row.Line,
			Msg:  fmt.Sprintf("Importe inválido %q", row.Amount),
			Err:  err,
		}
	}

	typ := core.Income
	if amount.IsNegative() {
		typ = core.Expense
	}
	tx := core.Transaction{
		Type:        typ,
		Amount:      core.MoneyFromDecimal(amount.Abs()),
		Description: row.Description,
		CategoryID:  categories[typ],
		Date:        core.NormalizeDate(row.AccountingDate),
		Notes:       provenance(row),
		OwnerID:     ownerID,
		ImportBatch: batch,
	}
	id, err := p.store.InsertTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, &core.RowError{Line: row.Line, Msg: err.Error(), Err: err}
	}
	tx.ID = id
	return tx, nil
}

func provenance(row Row) string {
	return fmt.Sprintf("Importado de extracto bancario. Fecha valor: %s. Saldo: %s", orNA(row.ValueDate), orNA(row.Balance))
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
