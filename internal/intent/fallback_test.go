package intent

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFallback(t *testing.T) {
	tests := []struct {
		msg        string
		want       Intent
		confidence float64
	}{
		{"What's the difference between these two invoices?", RAGCompare, KeywordConfidence},
		{"compare my receipts", RAGCompare, KeywordConfidence},
		{"Find the PDF I uploaded", RAGQuestion, KeywordConfidence},
		{"show me the receipt documents", RAGQuestion, KeywordConfidence},
		{"sync my bank statement", Reconciliation, KeywordConfidence},
		{"please reconcile March", Reconciliation, KeywordConfidence},
		{"add a 12 dollar taxi ride", ExpenseOperation, KeywordConfidence},
		{"Delete the lunch expense", ExpenseOperation, KeywordConfidence},
		{"hello there", GeneralChat, DefaultConfidence},
		{"this is difficult", GeneralChat, DefaultConfidence},
		{"", GeneralChat, DefaultConfidence},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			got := Fallback(tt.msg)
			if Intent(got.Intent) != tt.want || got.Confidence != tt.confidence {
				t.Errorf("Fallback(%q) = %s@%v, want %s@%v", tt.msg, got.Intent, got.Confidence, tt.want, tt.confidence)
			}
			if got.Source != SourceFallback {
				t.Errorf("source = %q", got.Source)
			}
		})
	}
}

func TestFallback_RuleOrder(t *testing.T) {
	// compare beats document beats reconciliation regardless of word order.
	got := Fallback("sync the documents and compare them")
	if Intent(got.Intent) != RAGCompare {
		t.Errorf("intent = %s, want rag_compare", got.Intent)
	}
	if diff := cmp.Diff(map[string]any{"keyword": "compare"}, got.Entities); diff != "" {
		t.Errorf("entities (-want +got):\n%s", diff)
	}

	got = Fallback("delete the bank statement")
	if Intent(got.Intent) != Reconciliation {
		t.Errorf("keyword rule should win over imperative verb, got %s", got.Intent)
	}
}

func TestIsAffirmative(t *testing.T) {
	for _, msg := range []string{"yes", "Yes!", "ok", "go ahead", "Yes, please"} {
		if !IsAffirmative(msg) {
			t.Errorf("IsAffirmative(%q) = false", msg)
		}
	}
	for _, msg := range []string{"no", "yes but only the lunch", "maybe", ""} {
		if IsAffirmative(msg) {
			t.Errorf("IsAffirmative(%q) = true", msg)
		}
	}
}

func TestConfirmation(t *testing.T) {
	prompt := []Turn{
		{Role: "user", Content: "delete my lunch expense"},
		{Role: "assistant", Content: "Are you sure you want to delete the $12 lunch expense?"},
	}

	c, ok := Confirmation("yes", prompt)
	if !ok {
		t.Fatal("confirmation not recognised")
	}
	if Intent(c.Intent) != ExpenseOperation || c.Confidence < 0.95 {
		t.Errorf("got %s@%v, want expense_operation@>=0.95", c.Intent, c.Confidence)
	}
	want := map[string]any{"confirmed": true, "action": "delete"}
	if diff := cmp.Diff(want, c.Entities); diff != "" {
		t.Errorf("entities (-want +got):\n%s", diff)
	}

	if _, ok := Confirmation("yes", nil); ok {
		t.Error("confirmation without history")
	}
	if _, ok := Confirmation("tell me more", prompt); ok {
		t.Error("non-affirmative treated as confirmation")
	}
	greeting := []Turn{{Role: "assistant", Content: "How can I help you today?"}}
	if _, ok := Confirmation("yes", greeting); ok {
		t.Error("question without a mutation treated as confirmation")
	}
	statement := []Turn{{Role: "assistant", Content: "I deleted the expense."}}
	if _, ok := Confirmation("ok", statement); ok {
		t.Error("non-question treated as confirmation")
	}
}
