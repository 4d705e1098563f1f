package display

import "testing"

func TestIntent(t *testing.T) {
	cases := []struct {
		code, want string
	}{
		{"expense_operation", "Expense Operation"},
		{"rag_question", "Document Question"},
		{"rag_compare", "Document Comparison"},
		{"reconciliation", "Reconciliation"},
		{"general_chat", "General Chat"},
		{"clarification", "Clarification Needed"},
		{"weather", "weather"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Intent(tc.code); got != tc.want {
			t.Errorf("Intent(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestDiscrepancyAndSeverity(t *testing.T) {
	if got := DiscrepancyType("missing_in_target"); got != "Missing from Ledger" {
		t.Errorf("got %q", got)
	}
	if got := Severity("medium"); got != "Medium" {
		t.Errorf("got %q", got)
	}
	if got := MatchType("none"); got != "No Match" {
		t.Errorf("got %q", got)
	}
	if got := Source("fallback"); got != "Keyword Rules" {
		t.Errorf("got %q", got)
	}
}

func TestWithCode(t *testing.T) {
	if got := WithCode(Intent("rag_compare"), "rag_compare"); got != "Document Comparison (rag_compare)" {
		t.Errorf("got %q", got)
	}
	if got := WithCode(Intent("x"), "x"); got != "x" {
		t.Errorf("got %q", got)
	}
}
