// Package display provides human-readable names for machine codes.
//
// Code is for machines, words are for humans: use these in CLI output and
// Markdown reports, and keep the raw codes in JSON and comparisons.
package display

var intents = map[string]string{
	"expense_operation": "Expense Operation",
	"rag_question":      "Document Question",
	"rag_compare":       "Document Comparison",
	"reconciliation":    "Reconciliation",
	"general_chat":      "General Chat",
	"clarification":     "Clarification Needed",
}

// Intent returns the name of an intent label. Unknown labels are returned
// as-is.
func Intent(code string) string { return lookup(intents, code) }

var matchTypes = map[string]string{
	"exact":    "Exact",
	"probable": "Probable",
	"fuzzy":    "Fuzzy",
	"none":     "No Match",
}

// MatchType returns the name of a match classification.
func MatchType(code string) string { return lookup(matchTypes, code) }

var discrepancyTypes = map[string]string{
	"missing_in_target": "Missing from Ledger",
	"missing_in_source": "Missing from Source",
	"amount_mismatch":   "Amount Mismatch",
}

// DiscrepancyType returns the name of a discrepancy type.
func DiscrepancyType(code string) string { return lookup(discrepancyTypes, code) }

var severities = map[string]string{
	"high":   "High",
	"medium": "Medium",
	"low":    "Low",
}

// Severity returns the name of a severity.
func Severity(code string) string { return lookup(severities, code) }

var sources = map[string]string{
	"classifier":   "Classifier",
	"fallback":     "Keyword Rules",
	"confirmation": "Confirmed Follow-up",
}

// Source returns the name of a classification source.
func Source(code string) string { return lookup(sources, code) }

// WithCode returns "Name (code)", or just the code when name equals it.
func WithCode(name, code string) string {
	if name == code || code == "" {
		return name
	}
	return name + " (" + code + ")"
}

func lookup(m map[string]string, code string) string {
	if name, ok := m[code]; ok {
		return name
	}
	return code
}
