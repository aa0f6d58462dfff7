package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"finanzas/internal/core"
)

// OwnerHeader carries the authenticated owner id, set by the upstream auth proxy.
const OwnerHeader = "X-Owner-ID"

var errMissingOwner = errors.New("missing or invalid " + OwnerHeader)

// ParseOwnerID reads a positive owner id from OwnerHeader.
func ParseOwnerID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get(OwnerHeader))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errMissingOwner
	}
	return id, nil
}

// ParsePathID reads a positive id from the named path wildcard.
func ParsePathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, r.PathValue(name))
	}
	return id, nil
}

// ParseTypeParam returns nil when the parameter is absent.
func ParseTypeParam(query url.Values) (*core.TransactionType, error) {
	raw := strings.TrimSpace(query.Get("type"))
	if raw == "" {
		return nil, nil
	}
	typ, err := core.ParseTransactionType(raw)
	if err != nil {
		return nil, &core.ValidationError{Field: "type", Reason: err.Error(), Err: err}
	}
	return &typ, nil
}

// ParseDateRange reads start_date and end_date; either may be absent.
func ParseDateRange(query url.Values) (core.DateRange, error) {
	rng := core.DateRange{
		Start: core.NormalizeDate(query.Get("start_date")),
		End:   core.NormalizeDate(query.Get("end_date")),
	}
	if err := rng.Validate(); err != nil {
		return core.DateRange{}, &core.ValidationError{Field: "date", Reason: err.Error(), Err: err}
	}
	return rng, nil
}

// QueryInt falls back to def when the parameter is absent, malformed or
// not positive.
func QueryInt(query url.Values, key string, def int) int {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// ParseTransactionFilter reads the listing filters of GET /api/transactions.
func ParseTransactionFilter(query url.Values) (core.TransactionFilter, error) {
	typ, err := ParseTypeParam(query)
	if err != nil {
		return core.TransactionFilter{}, err
	}
	rng, err := ParseDateRange(query)
	if err != nil {
		return core.TransactionFilter{}, err
	}
	return core.TransactionFilter{
		Type:       typ,
		CategoryID: int64(QueryInt(query, "category_id", 0)),
		Range:      rng,
		Search:     sanitizeInput(query.Get("search")),
	}, nil
}

// DecodeJSON reads at most maxBytes of JSON into dst and rejects trailing data.
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return err
		}
		return &core.FormatError{Reason: msgInvalidBody}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return &core.FormatError{Reason: msgInvalidBody}
	}
	return nil
}

// sanitizeInput drops control characters other than tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
