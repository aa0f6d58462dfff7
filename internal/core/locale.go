package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseLocaleNumber turns bank-export numbers such as "26.075,27" or
// "-1.234,50" into a signed decimal.
//
// A comma is always the decimal separator when exactly one is present.
// Without a comma, several dots are thousands separators, and a single dot
// followed by more than two digits is one as well. The cleaned string is
// read up to the first non-numeric character; no number at all yields a
// *ParseError. Empty input is zero.
func ParseLocaleNumber(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, nil
	}

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}

	switch {
	case strings.Contains(s, ","):
		if parts := strings.Split(s, ","); len(parts) == 2 {
			s = strings.ReplaceAll(parts[0], ".", "") + "." + parts[1]
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	case strings.Contains(s, "."):
		if i := strings.Index(s, "."); len(s)-i-1 > 2 {
			s = s[:i] + s[i+1:]
		}
	}

	prefix := numericPrefix(s)
	if prefix == "" {
		return decimal.Zero, &ParseError{Input: raw}
	}
	d, err := decimal.NewFromString(prefix)
	if err != nil {
		return decimal.Zero, &ParseError{Input: raw}
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// numericPrefix returns the longest leading decimal literal of s:
// optional sign, digits, optional fraction, optional exponent.
func numericPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	intStart := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	digits := i - intStart
	end := i
	if i < len(s) && s[i] == '.' {
		j := i + 1
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		if frac := j - i - 1; frac > 0 || digits > 0 {
			digits += frac
			end = j
			i = j
		}
	}
	if digits == 0 {
		return ""
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && isDigit(s[k]) {
			k++
		}
		if k > j {
			end = k
		}
	}
	out := strings.TrimPrefix(s[:end], "+")
	out = strings.TrimSuffix(out, ".")
	if strings.HasPrefix(out, "-.") {
		out = "-0" + out[1:]
	} else if strings.HasPrefix(out, ".") {
		out = "0" + out
	}
	return out
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
