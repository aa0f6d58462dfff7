package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const maxDescriptionLen = 255

type (
	TransactionType string

	Transaction struct {
		ID          int64           `json:"id"`
		Type        TransactionType `json:"type"`
		Amount      Money           `json:"amount"`
		Description string          `json:"description"`
		CategoryID  int64           `json:"category_id"`
		Date        ISODate         `json:"date"`
		Notes       string          `json:"notes,omitempty"`
		OwnerID     int64           `json:"-"`
		ImportBatch string          `json:"import_batch,omitempty"`
	}

	Category struct {
		ID        int64           `json:"id"`
		Name      string          `json:"name"`
		Type      TransactionType `json:"type"`
		Color     string          `json:"color"`
		Icon      string          `json:"icon"`
		OwnerID   int64           `json:"-"` // 0 for shared defaults
		IsDefault bool            `json:"is_default"`
	}

	// TransactionFilter narrows QueryTransactions. Zero values mean "no filter".
	TransactionFilter struct {
		Type       *TransactionType
		CategoryID int64
		Range      DateRange
		Search     string
		Limit      int
		Offset     int
	}
)

// ParseTransactionType accepts "income" or "expense" in any case.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Ptr is a convenience for optional type filters.
func (t TransactionType) Ptr() *TransactionType { return &t }

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.CategoryID <= 0 {
		return ErrInvalidCategory
	}
	if len(t.Description) > maxDescriptionLen {
		return errors.New("description too long (max 255 characters)")
	}
	return nil
}

// VisibleTo reports whether owner may reference the category.
func (c Category) VisibleTo(owner int64) bool {
	return c.IsDefault || c.OwnerID == owner
}

// Matches applies the filter in memory. Search looks at the description
// and the category name. Pagination is not considered.
func (f TransactionFilter) Matches(t Transaction, categoryName string) bool {
	if f.Type != nil && t.Type != *f.Type {
		return false
	}
	if f.CategoryID != 0 && t.CategoryID != f.CategoryID {
		return false
	}
	if !f.Range.Contains(t.Date) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Description), q) && !strings.Contains(strings.ToLower(categoryName), q) {
			return false
		}
	}
	return true
}
