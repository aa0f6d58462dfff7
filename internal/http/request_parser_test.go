package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"finanzas/internal/core"
)

func TestParseOwnerID(t *testing.T) {
	tests := []struct {
		header  string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{" 7 ", 7, false},
		{"", 0, true},
		{"0", 0, true},
		{"-1", 0, true},
		{"12abc", 0, true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(OwnerHeader, tt.header)
		got, err := ParseOwnerID(req)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOwnerID(%q) = %d, %v", tt.header, got, err)
		}
	}
}

func TestParsePathID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/transactions/15", nil)
	req.SetPathValue("id", "15")
	if id, err := ParsePathID(req, "id"); err != nil || id != 15 {
		t.Fatalf("got %d, %v", id, err)
	}
	req.SetPathValue("id", "x")
	if _, err := ParsePathID(req, "id"); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
}

func TestParseTypeParam(t *testing.T) {
	typ, err := ParseTypeParam(url.Values{})
	if typ != nil || err != nil {
		t.Fatalf("absent type should be nil, got %v %v", typ, err)
	}
	typ, err = ParseTypeParam(url.Values{"type": {"Income"}})
	if err != nil || *typ != core.Income {
		t.Fatalf("got %v %v", typ, err)
	}
	if _, err := ParseTypeParam(url.Values{"type": {"transfer"}}); !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseDateRange(t *testing.T) {
	tests := []struct {
		name    string
		query   url.Values
		want    core.DateRange
		wantErr bool
	}{
		{"empty", url.Values{}, core.DateRange{}, false},
		{"iso dates", url.Values{"start_date": {"2024-01-01"}, "end_date": {"2024-01-31"}}, core.DateRange{Start: "2024-01-01", End: "2024-01-31"}, false},
		{"european date", url.Values{"start_date": {"5/2/2024"}}, core.DateRange{Start: "2024-02-05"}, false},
		{"invalid", url.Values{"end_date": {"yesterday"}}, core.DateRange{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDateRange(tt.query)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestQueryInt(t *testing.T) {
	q := url.Values{"page": {"3"}, "limit": {"abc"}, "year": {"-1"}}
	if got := QueryInt(q, "page", 1); got != 3 {
		t.Errorf("page = %d", got)
	}
	if got := QueryInt(q, "limit", 20); got != 20 {
		t.Errorf("limit = %d", got)
	}
	if got := QueryInt(q, "year", 2024); got != 2024 {
		t.Errorf("year = %d", got)
	}
	if got := QueryInt(q, "missing", 7); got != 7 {
		t.Errorf("missing = %d", got)
	}
}

func TestParseTransactionFilter(t *testing.T) {
	f, err := ParseTransactionFilter(url.Values{
		"type":        {"expense"},
		"category_id": {"8"},
		"search":      {"  alquiler\x00 "},
	})
	if err != nil {
		t.Fatal(err)
	}
	if *f.Type != core.Expense || f.CategoryID != 8 || f.Search != "alquiler" {
		t.Fatalf("unexpected filter %+v", f)
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Text string `json:"text"`
	}
	decodeBody := func(body string, max int64) error {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		return DecodeJSON(httptest.NewRecorder(), req, max, &dst)
	}

	if err := decodeBody(`{"text":"hola"}`+"\n", 1024); err != nil || dst.Text != "hola" {
		t.Fatalf("got %q, %v", dst.Text, err)
	}
	if err := decodeBody(`{"text":`, 1024); !core.IsFormat(err) {
		t.Fatalf("expected format error, got %v", err)
	}
	if err := decodeBody(`{"text":"a"} {"text":"b"}`, 1024); !core.IsFormat(err) {
		t.Fatalf("expected format error for trailing data, got %v", err)
	}
	var maxErr *http.MaxBytesError
	if err := decodeBody(`{"text":"`+strings.Repeat("x", 100)+`"}`, 16); !errors.As(err, &maxErr) {
		t.Fatalf("expected MaxBytesError, got %v", err)
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput(" a\x01b\tc\n "); got != "ab\tc" {
		t.Fatalf("got %q", got)
	}
}
