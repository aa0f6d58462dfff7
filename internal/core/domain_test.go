package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Type:       Income,
		Amount:     Money{Cents: 100},
		CategoryID: 1,
		Date:       "2024-01-01",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name string
		mod  func(*Transaction)
		want error
	}{
		{"bad type", func(tx *Transaction) { tx.Type = "transfer" }, ErrInvalidType},
		{"zero amount", func(tx *Transaction) { tx.Amount = Money{} }, ErrInvalidAmount},
		{"negative amount", func(tx *Transaction) { tx.Amount = Money{Cents: -5} }, ErrInvalidAmount},
		{"bad date", func(tx *Transaction) { tx.Date = "2024-02-30" }, ErrInvalidDate},
		{"no category", func(tx *Transaction) { tx.CategoryID = 0 }, ErrInvalidCategory},
	}
	for _, tc := range cases {
		tx := good
		tc.mod(&tx)
		if err := tx.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestParseTransactionType(t *testing.T) {
	if got, err := ParseTransactionType(" Income "); err != nil || got != Income {
		t.Fatalf("expected income, got %q (%v)", got, err)
	}
	if _, err := ParseTransactionType("refund"); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Money `json:"a"`
	}{Money{Cents: 123450}})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"a":1234.50}` {
		t.Fatalf("unexpected json %s", b)
	}

	var in struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a":12.345,"b":"7.1"}`), &in); err != nil {
		t.Fatal(err)
	}
	if in.A.Cents != 1235 || in.B.Cents != 710 {
		t.Fatalf("unexpected cents %d %d", in.A.Cents, in.B.Cents)
	}
}

func TestPercent(t *testing.T) {
	if p := Percent(Money{Cents: 100}, Money{}); p != 0 {
		t.Fatalf("expected 0 for empty denominator, got %v", p)
	}
	if p := Percent(Money{Cents: 1}, Money{Cents: 3}); p != 33.33 {
		t.Fatalf("expected 33.33, got %v", p)
	}
}

func TestCategoryVisibleTo(t *testing.T) {
	def := Category{ID: 1, IsDefault: true}
	own := Category{ID: 2, OwnerID: 7}
	if !def.VisibleTo(99) || !own.VisibleTo(7) || own.VisibleTo(8) {
		t.Fatal("unexpected visibility")
	}
}
