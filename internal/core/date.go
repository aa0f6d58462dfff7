package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const isoLayout = "2006-01-02"

// ISODate is a calendar date in YYYY-MM-DD form. Lexical order equals date order.
type ISODate string

// DateRange is inclusive on both ends; an empty bound is open.
type DateRange struct {
	Start ISODate `json:"start_date"`
	End   ISODate `json:"end_date"`
}

// MarshalJSON renders open bounds as null.
func (r DateRange) MarshalJSON() ([]byte, error) {
	bound := func(d ISODate) *ISODate {
		if d == "" {
			return nil
		}
		return &d
	}
	return json.Marshal(struct {
		Start *ISODate `json:"start_date"`
		End   *ISODate `json:"end_date"`
	}{bound(r.Start), bound(r.End)})
}

// NewDate builds an ISODate from its parts.
func NewDate(year, month, day int) ISODate {
	return DateOf(time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC))
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) ISODate {
	return ISODate(t.Format(isoLayout))
}

// Today returns the current UTC date.
func Today() ISODate {
	return DateOf(time.Now().UTC())
}

// NormalizeDate rewrites DD/MM/YYYY into YYYY-MM-DD, padding day and month.
// Anything without a slash is returned trimmed and otherwise untouched.
func NormalizeDate(raw string) ISODate {
	s := strings.TrimSpace(raw)
	if !strings.Contains(s, "/") {
		return ISODate(s)
	}
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return ISODate(s)
	}
	day, month, year := parts[0], parts[1], parts[2]
	return ISODate(fmt.Sprintf("%s-%s-%s", year, padLeft(month, 2), padLeft(day, 2)))
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

func (d ISODate) Time() (time.Time, error) {
	t, err := time.Parse(isoLayout, string(d))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, string(d))
	}
	return t, nil
}

func (d ISODate) Validate() error {
	_, err := d.Time()
	return err
}

func (d ISODate) String() string { return string(d) }

// Year returns the four digit year prefix, or "" when malformed.
func (d ISODate) Year() string {
	if len(d) < 4 {
		return ""
	}
	return string(d[:4])
}

// Month returns the YYYY-MM prefix, or "" when malformed.
func (d ISODate) Month() string {
	if len(d) < 7 {
		return ""
	}
	return string(d[:7])
}

func (r DateRange) Contains(d ISODate) bool {
	if r.Start != "" && d < r.Start {
		return false
	}
	if r.End != "" && d > r.End {
		return false
	}
	return true
}

func (r DateRange) Validate() error {
	if r.Start != "" {
		if err := r.Start.Validate(); err != nil {
			return fmt.Errorf("start_date: %w", err)
		}
	}
	if r.End != "" {
		if err := r.End.Validate(); err != nil {
			return fmt.Errorf("end_date: %w", err)
		}
	}
	return nil
}
