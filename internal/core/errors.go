package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrCategoryMismatch = errors.New("transaction type does not match category type")
	ErrNotFound         = errors.New("not found")
)

// FormatError reports a malformed import file. Nothing is imported when it is returned.
type FormatError struct {
	Reason  string
	Missing []string
}

func (e *FormatError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: %s", e.Reason, strings.Join(e.Missing, ", "))
	}
	return e.Reason
}

// ValidationError reports a request that cannot be processed as a whole,
// e.g. missing default categories or a category/type mismatch.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return e.Reason
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ParseError is returned by ParseLocaleNumber when the cleaned input has no numeric value.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q as a number", e.Input)
}

func (e *ParseError) Unwrap() error { return ErrInvalidAmount }

// RowError is a non-fatal failure of a single import row.
type RowError struct {
	Line int
	Msg  string
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("Fila %d: %s", e.Line, e.Msg)
}

func (e RowError) Unwrap() error { return e.Err }

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsFormat reports whether err carries a *FormatError.
func IsFormat(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}
