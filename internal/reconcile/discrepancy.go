// Package reconcile compares caller-supplied records against the ledger and
// turns the outcome into a structured report. It also hosts the
// reconciliation workflow built on the framework engine.
package reconcile

import (
	"ledgerflow/internal/match"
	"ledgerflow/internal/record"
)

// DiscrepancyType names what is inconsistent between the two lists.
type DiscrepancyType string

const (
	// MissingInTarget is a source record with no ledger counterpart.
	MissingInTarget DiscrepancyType = "missing_in_target"
	// MissingInSource is a ledger record no source record matched.
	MissingInSource DiscrepancyType = "missing_in_source"
	// AmountMismatch flags a fuzzy match; the pair is also kept as a match.
	AmountMismatch DiscrepancyType = "amount_mismatch"
)

// Severity ranks a discrepancy.
type Severity string

const (
	High   Severity = "high"
	Medium Severity = "medium"
	Low    Severity = "low"
)

// Discrepancy is one inconsistency. Source and Target are set according to
// Type: missing_in_target has only Source, missing_in_source only Target.
type Discrepancy struct {
	Type     DiscrepancyType `json:"type"`
	Severity Severity        `json:"severity"`
	Source   *record.Record  `json:"source,omitempty"`
	Target   *record.Record  `json:"target,omitempty"`
	Score    float64         `json:"score,omitempty"`
	Note     string          `json:"note,omitempty"`
}

// Diff is the raw outcome of comparing source (the matching primary list)
// with target (the ledger).
type Diff struct {
	Source        []record.Record   `json:"-"`
	Target        []record.Record   `json:"-"`
	Matches       []match.Candidate `json:"matches"`
	Discrepancies []Discrepancy     `json:"discrepancies"`
}

// Compare assigns source records to target records and derives
// discrepancies. Fuzzy matches stay in Matches and additionally raise an
// amount_mismatch, so such a pair counts toward both the match rate and
// the discrepancy list.
func Compare(source, target []record.Record, cfg match.Config) Diff {
	res := cfg.Assign(source, target)
	d := Diff{Source: source, Target: target, Matches: res.Matches}

	for _, m := range res.Matches {
		if m.Type != match.Fuzzy {
			continue
		}
		src, tgt := m.Primary, m.Secondary
		d.Discrepancies = append(d.Discrepancies, Discrepancy{
			Type:     AmountMismatch,
			Severity: Medium,
			Source:   &src,
			Target:   &tgt,
			Score:    m.Score,
			Note:     "fuzzy match: " + src.Amount.String() + " vs " + tgt.Amount.String(),
		})
	}
	for _, r := range res.UnmatchedPrimary {
		d.Discrepancies = append(d.Discrepancies, Discrepancy{Type: MissingInTarget, Severity: High, Source: &r})
	}
	for _, r := range res.UnmatchedSecondary {
		d.Discrepancies = append(d.Discrepancies, Discrepancy{Type: MissingInSource, Severity: Medium, Target: &r})
	}
	return d
}

// Count returns how many discrepancies have type t.
func Count(ds []Discrepancy, t DiscrepancyType) int {
	n := 0
	for _, d := range ds {
		if d.Type == t {
			n++
		}
	}
	return n
}
