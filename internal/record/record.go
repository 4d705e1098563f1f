// Package record converts heterogeneous financial entries into canonical,
// comparable records.
package record

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical calendar-date form.
const DateLayout = "2006-01-02"

// Raw is an entry as supplied by a caller or extractor, with arbitrary
// field names.
type Raw map[string]any

// Record is a normalized entry. Date is empty when the input had no usable
// date. Records are immutable once normalized.
type Record struct {
	Amount      decimal.Decimal `json:"amount" yaml:"amount"`
	Date        string          `json:"date,omitempty" yaml:"date,omitempty"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string          `json:"category,omitempty" yaml:"category,omitempty"`
	SourceID    string          `json:"sourceId,omitempty" yaml:"sourceId,omitempty"`
}

// Time parses Date. ok is false when the record has no date.
func (r Record) Time() (t time.Time, ok bool) {
	if r.Date == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Text is the description and category joined for similarity scoring.
func (r Record) Text() string {
	return r.Description + " " + r.Category
}

// Raw converts the record back to its canonical field map.
func (r Record) Raw() Raw {
	out := Raw{"amount": r.Amount.String()}
	if r.Date != "" {
		out["date"] = r.Date
	}
	if r.Description != "" {
		out["description"] = r.Description
	}
	if r.Category != "" {
		out["category"] = r.Category
	}
	if r.SourceID != "" {
		out["sourceId"] = r.SourceID
	}
	return out
}

// Totals is a count and amount sum over a list of records.
type Totals struct {
	Count int             `json:"count"`
	Sum   decimal.Decimal `json:"sum"`
}

// Sum totals records.
func Sum(records []Record) Totals {
	t := Totals{Sum: decimal.Zero}
	for _, r := range records {
		t.Count++
		t.Sum = t.Sum.Add(r.Amount)
	}
	return t
}

// Filter narrows a ledger fetch. Empty dates are unbounded.
type Filter struct {
	OwnerID string `json:"ownerId"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// Includes reports whether r falls in the filter's date range. Records
// without a date are always included.
func (f Filter) Includes(r Record) bool {
	if r.Date == "" {
		return true
	}
	if f.From != "" && r.Date < f.From {
		return false
	}
	if f.To != "" && r.Date > f.To {
		return false
	}
	return true
}
