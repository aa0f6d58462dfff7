// Package core holds the domain model shared by the importer, the stats
// aggregator and the storage adapters.
//
// Money is kept as integer cents. Conversions to and from decimals go
// through shopspring/decimal so rounding is always half-up at 2 places.
package core

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

type Money struct {
	Cents int64
}

var hundred = decimal.NewFromInt(100)

// MoneyFromDecimal rounds d to cents.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Mul(hundred).Round(0).IntPart()}
}

// ParseMoney parses a plain dot-decimal amount such as "12.34".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return MoneyFromDecimal(d), nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Euros returns a float for display and JSON only; sums stay in cents.
func (m Money) Euros() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

func (m Money) String() string { return m.Decimal().StringFixed(2) }

// MarshalJSON renders a number with two decimals, e.g. 26075.27.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*m = Money{}
		return nil
	}
	v, err := ParseMoney(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Percent returns part/whole*100 rounded to 2 decimals, or 0 when whole is 0.
func Percent(part, whole Money) float64 {
	if whole.Cents == 0 {
		return 0
	}
	p, _ := part.Decimal().Div(whole.Decimal()).Mul(hundred).Round(2).Float64()
	return p
}
