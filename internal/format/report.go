package format

import (
	"fmt"
	"strings"

	"ledgerflow/internal/display"
	"ledgerflow/internal/record"
	"ledgerflow/internal/reconcile"
)

const descriptionWidth = 40

// Report renders a reconciliation report: totals, discrepancies, matches,
// suggested actions and auto-sync outcome.
func Report(r reconcile.Report, m Mode) string {
	var b strings.Builder
	if m == Markdown {
		b.WriteString("## Reconciliation report\n\n")
	}
	if r.Summary != "" {
		b.WriteString(r.Summary)
		b.WriteString("\n\n")
	}

	totals := NewTable(m)
	totals.Header("", "Count", "Total")
	totals.Row("Source", r.Source.Count, Amount(r.Source.Sum))
	totals.Row("Ledger", r.Target.Count, Amount(r.Target.Sum))
	totals.Row("Matched", r.Matched.Count, Amount(r.Matched.Sum))
	totals.Footer("Match rate", Percent(r.MatchRate), "")
	totals.Columns(ColumnConfig{Number: 2, Align: AlignRight}, ColumnConfig{Number: 3, Align: AlignRight})
	section(&b, m, "Totals", totals)

	if len(r.Discrepancies) > 0 {
		t := NewTable(m)
		t.Header("#", "Type", "Severity", "Amount", "Date", "Description", "Note")
		for i, d := range r.Discrepancies {
			rec := d.Source
			if rec == nil {
				rec = d.Target
			}
			t.Row(i+1, display.DiscrepancyType(string(d.Type)), display.Severity(string(d.Severity)),
				recordAmount(rec), recordField(rec, func(r record.Record) string { return r.Date }),
				Truncate(recordField(rec, func(r record.Record) string { return r.Description }), descriptionWidth), d.Note)
		}
		t.Columns(ColumnConfig{Number: 4, Align: AlignRight})
		section(&b, m, "Discrepancies", t)
	}

	if len(r.Matches) > 0 {
		t := NewTable(m)
		t.Header("Source", "Ledger", "Amount", "Type", "Score")
		for _, c := range r.Matches {
			t.Row(reconcile.SourceLabel(c.Primary), reconcile.SourceLabel(c.Secondary),
				Amount(c.Primary.Amount), display.MatchType(string(c.Type)), fmt.Sprintf("%.2f", c.Score))
		}
		t.Columns(ColumnConfig{Number: 3, Align: AlignRight}, ColumnConfig{Number: 5, Align: AlignRight})
		section(&b, m, "Matches", t)
	}

	if len(r.SuggestedActions) > 0 {
		heading(&b, m, "Suggested actions")
		for _, a := range r.SuggestedActions {
			fmt.Fprintf(&b, "- %s\n", a)
		}
		b.WriteString("\n")
	}

	if len(r.Synced) > 0 || len(r.SyncFailures) > 0 {
		t := NewTable(m)
		t.Header("Entry", "Outcome")
		for _, s := range r.Synced {
			t.Row(reconcile.SourceLabel(s), "created")
		}
		for _, f := range r.SyncFailures {
			t.Row(f.SourceID, "failed: "+f.Error)
		}
		section(&b, m, "Auto-sync", t)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func section(b *strings.Builder, m Mode, title string, t TableBuilder) {
	heading(b, m, title)
	b.WriteString(t.String())
	b.WriteString("\n\n")
}

func heading(b *strings.Builder, m Mode, title string) {
	if m == Markdown {
		fmt.Fprintf(b, "### %s\n\n", title)
		return
	}
	fmt.Fprintf(b, "%s\n", strings.ToUpper(title))
}

func recordAmount(r *record.Record) string {
	if r == nil {
		return ""
	}
	return Amount(r.Amount)
}

func recordField(r *record.Record, f func(record.Record) string) string {
	if r == nil {
		return ""
	}
	return f(*r)
}
