package record

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"int", 500, "500"},
		{"float", 12.5, "12.5"},
		{"json number", json.Number("42.10"), "42.1"},
		{"decimal", decimal.RequireFromString("7.25"), "7.25"},
		{"plain string", "19.99", "19.99"},
		{"thousands", "1,234.50", "1234.5"},
		{"currency symbol", "$ 1,000", "1000"},
		{"currency code", "USD 88.00", "88"},
		{"euro decimal comma", "€1.234,56", "1234.56"},
		{"bare decimal comma", "12,5", "12.5"},
		{"many thousands", "1,234,567", "1234567"},
		{"parenthesised negative", "(45.10)", "-45.1"},
		{"leading minus", "-3", "-3"},
		{"garbage", "lunch", "0"},
		{"trailing letters", "12abc", "0"},
		{"scientific", "1e3", "1000"},
		{"iso date", "2026-02-08", "0"},
		{"inner minus", "12-34", "0"},
		{"phone number", "call 555-1234", "0"},
		{"prose with digits", "5 apples and 3 pears", "0"},
		{"double sign", "--5", "0"},
		{"sign before symbol", "-$45.00", "-45"},
		{"trailing code", "88.00 EUR", "88"},
		{"bad grouping", "1,23,4", "0"},
		{"empty", "", "0"},
		{"nil", nil, "0"},
		{"bool", true, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAmount(tt.in)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ParseAmount(%v) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"iso", "2026-02-08", "2026-02-08"},
		{"iso timestamp", "2026-02-08T13:45:00Z", "2026-02-08"},
		{"us slashes", "02/08/2026", "2026-02-08"},
		{"long form", "February 8, 2026", "2026-02-08"},
		{"time.Time", time.Date(2026, 2, 8, 9, 0, 0, 0, time.UTC), "2026-02-08"},
		{"unix seconds", int64(1770508800), "2026-02-08"},
		{"unix seconds string", "1770508800", "2026-02-08"},
		{"unix millis", int64(1770508800000), "2026-02-08"},
		{"garbage", "not a date", ""},
		{"empty", "", ""},
		{"nil", nil, ""},
		{"zero time", time.Time{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseDate(tt.in); got != tt.want {
				t.Errorf("ParseDate(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeText(t *testing.T) {
	tests := map[string]string{
		"  LUNCH   at  Cafe ": "lunch at cafe",
		"ＬＵＮＣＨ":             "lunch",
		"ﬁle fee":            "file fee",
		"":                   "",
		"\tTaxi\n":           "taxi",
	}
	for in, want := range tests {
		if got := NormalizeText(in); got != want {
			t.Errorf("NormalizeText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalize_Aliases(t *testing.T) {
	raw := Raw{
		"Total":            "1,200.00",
		"Transaction_Date": "2026-02-08",
		"Memo":             "  Office CHAIRS ",
		"Type":             "Furniture",
		"Reference":        "INV-7",
	}
	want := Record{
		Amount:      decimal.RequireFromString("1200"),
		Date:        "2026-02-08",
		Description: "office chairs",
		Category:    "furniture",
		SourceID:    "INV-7",
	}
	got := Normalize(raw)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_AliasPrecedence(t *testing.T) {
	got := Normalize(Raw{"price": 3, "amount": 5, "name": "shop", "description": "coffee"})
	if !got.Amount.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Amount = %s, want 5 (amount beats price)", got.Amount)
	}
	if got.Description != "coffee" {
		t.Errorf("Description = %q, want coffee", got.Description)
	}

	// A blank debit column must not hide the credit amount.
	got = Normalize(Raw{"debit": "", "credit": "1500.00", "memo": "salary", "description": "  "})
	if !got.Amount.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("Amount = %s, want 1500 (blank debit defers to credit)", got.Amount)
	}
	if got.Description != "salary" {
		t.Errorf("Description = %q, want salary (blank description defers to memo)", got.Description)
	}
}

func TestNormalize_MissingFields(t *testing.T) {
	got := Normalize(Raw{"id": 42})
	want := Record{Amount: decimal.Zero, SourceID: "42"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestSum(t *testing.T) {
	recs := NormalizeAll([]Raw{{"amount": "10.10"}, {"amount": 5}, {"amount": "(2.10)"}})
	got := Sum(recs)
	if got.Count != 3 || !got.Sum.Equal(decimal.RequireFromString("13")) {
		t.Errorf("Sum = %+v", got)
	}
	if empty := Sum(nil); empty.Count != 0 || !empty.Sum.IsZero() {
		t.Errorf("Sum(nil) = %+v", empty)
	}
}

func TestRecord_Time(t *testing.T) {
	if _, ok := (Record{}).Time(); ok {
		t.Error("empty date should not parse")
	}
	tm, ok := Record{Date: "2026-02-08"}.Time()
	if !ok || tm.Day() != 8 {
		t.Errorf("Time() = %v, %v", tm, ok)
	}
}
