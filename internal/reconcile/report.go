package reconcile

import (
	"fmt"
	"strings"
	"time"

	"ledgerflow/internal/match"
	"ledgerflow/internal/record"
)

// SyncFailure records a ledger create that failed during auto-sync.
type SyncFailure struct {
	SourceID string `json:"sourceId"`
	Error    string `json:"error"`
}

// Report is the immutable outcome of one reconciliation run.
type Report struct {
	TraceID          string            `json:"traceId,omitempty"`
	OwnerID          string            `json:"ownerId,omitempty"`
	Source           record.Totals     `json:"source"`
	Target           record.Totals     `json:"target"`
	Matched          record.Totals     `json:"matched"`
	Matches          []match.Candidate `json:"matches"`
	Discrepancies    []Discrepancy     `json:"discrepancies"`
	SuggestedActions []string          `json:"suggestedActions"`
	MatchRate        float64           `json:"matchRate"`
	Summary          string            `json:"summary"`
	Synced           []record.Record   `json:"synced,omitempty"`
	SyncFailures     []SyncFailure     `json:"syncFailures,omitempty"`
	Metadata         map[string]any    `json:"metadata,omitempty"`
	GeneratedAt      time.Time         `json:"generatedAt"`
}

// BuildReport derives totals, match rate and suggested actions from d.
// Summary and sync fields are left for the caller to fill.
func BuildReport(d Diff) Report {
	matched := make([]record.Record, len(d.Matches))
	for i, m := range d.Matches {
		matched[i] = m.Primary
	}
	return Report{
		Source:           record.Sum(d.Source),
		Target:           record.Sum(d.Target),
		Matched:          record.Sum(matched),
		Matches:          d.Matches,
		Discrepancies:    d.Discrepancies,
		SuggestedActions: SuggestedActions(d.Discrepancies),
		MatchRate:        MatchRate(len(d.Matches), len(d.Source), len(d.Target)),
		GeneratedAt:      time.Now().UTC(),
	}
}

// MatchRate is matched/primary. Two empty lists reconcile perfectly (1.0);
// an empty primary list against a non-empty secondary scores 0.
func MatchRate(matched, primary, secondary int) float64 {
	if primary == 0 {
		if secondary == 0 {
			return 1
		}
		return 0
	}
	return float64(matched) / float64(primary)
}

// SuggestedActions returns one action per high-severity missing_in_target.
func SuggestedActions(ds []Discrepancy) []string {
	out := []string{}
	for _, d := range ds {
		if d.Type == MissingInTarget && d.Severity == High && d.Source != nil {
			out = append(out, "create record from source "+SourceLabel(*d.Source))
		}
	}
	return out
}

// SourceLabel identifies a record in human-facing text: its source id when
// present, else its description, amount and date.
func SourceLabel(r record.Record) string {
	if r.SourceID != "" {
		return r.SourceID
	}
	parts := []string{}
	if r.Description != "" {
		parts = append(parts, fmt.Sprintf("%q", r.Description))
	}
	parts = append(parts, r.Amount.String())
	if r.Date != "" {
		parts = append(parts, "on "+r.Date)
	}
	return strings.Join(parts, " ")
}

// TemplateSummary builds the deterministic summary used when no
// Summarizer is configured or it fails.
func TemplateSummary(r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Compared %d source records (total %s) with %d ledger records (total %s): ",
		r.Source.Count, r.Source.Sum.StringFixed(2), r.Target.Count, r.Target.Sum.StringFixed(2))
	fmt.Fprintf(&b, "%d matched (%.0f%% match rate), ", len(r.Matches), r.MatchRate*100)
	fmt.Fprintf(&b, "%d missing from the ledger, %d missing from the source, %d amount mismatches.",
		Count(r.Discrepancies, MissingInTarget), Count(r.Discrepancies, MissingInSource), Count(r.Discrepancies, AmountMismatch))
	if n := len(r.SuggestedActions); n > 0 {
		fmt.Fprintf(&b, " %d suggested action(s).", n)
	}
	return b.String()
}
