package intent

import (
	"strings"
	"unicode"
)

const (
	// KeywordConfidence is assigned to a keyword rule hit.
	KeywordConfidence = 0.7
	// DefaultConfidence is assigned when no rule matches.
	DefaultConfidence = 0.5
	// ConfirmationConfidence is assigned to a confirmed follow-up.
	ConfirmationConfidence = 0.97
)

type keywordRule struct {
	intent Intent
	stems  []string
}

// keywordRules are checked in order; the first rule with a matching token
// wins.
var keywordRules = []keywordRule{
	{RAGCompare, []string{"compar", "differenc", "diff", "versus", "vs"}},
	{RAGQuestion, []string{"document", "pdf", "receipt"}},
	{Reconciliation, []string{"sync", "syncing", "synced", "reconcil", "bank", "statement"}},
}

// stemMatch accepts the stem itself, its plural, and for stems of five or
// more letters any word it prefixes.
func stemMatch(tok, stem string) bool {
	return tok == stem || tok == stem+"s" || (len(stem) >= 5 && strings.HasPrefix(tok, stem))
}

// imperativeVerbs start an expense operation when they lead the message.
var imperativeVerbs = map[string]bool{
	"add": true, "create": true, "list": true, "show": true, "modify": true,
	"update": true, "delete": true, "remove": true, "clear": true,
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Fallback classifies message with the ordered keyword rules. It is
// deterministic and never fails.
func Fallback(message string) Classification {
	tokens := words(message)
	for _, rule := range keywordRules {
		for _, tok := range tokens {
			for _, stem := range rule.stems {
				if stemMatch(tok, stem) {
					return Classification{
						Intent:     string(rule.intent),
						Confidence: KeywordConfidence,
						Entities:   map[string]any{"keyword": tok},
						Source:     SourceFallback,
					}
				}
			}
		}
	}
	if len(tokens) > 0 && imperativeVerbs[tokens[0]] {
		return Classification{
			Intent:     string(ExpenseOperation),
			Confidence: KeywordConfidence,
			Entities:   map[string]any{"action": tokens[0]},
			Source:     SourceFallback,
		}
	}
	return Classification{Intent: string(GeneralChat), Confidence: DefaultConfidence, Source: SourceFallback}
}

var affirmatives = map[string]bool{
	"yes": true, "y": true, "yeah": true, "yep": true, "yup": true, "sure": true,
	"ok": true, "okay": true, "confirm": true, "confirmed": true, "correct": true,
	"absolutely": true, "do it": true, "go ahead": true, "please do": true,
	"yes please": true, "yes do it": true, "yes go ahead": true,
}

var mutationStems = []string{"delet", "remov", "modif", "updat", "chang", "edit", "clear"}

// IsAffirmative reports whether message is a bare confirmation.
func IsAffirmative(message string) bool {
	return affirmatives[strings.Join(words(message), " ")]
}

// Confirmation recognises a bare affirmative answering an assistant turn
// that asked to confirm a deletion or modification. ok is false when the
// rule does not apply.
func Confirmation(message string, history []Turn) (Classification, bool) {
	if !IsAffirmative(message) {
		return Classification{}, false
	}
	prev, found := lastAssistant(history)
	if !found {
		return Classification{}, false
	}
	text := strings.ToLower(prev)
	if !strings.Contains(text, "confirm") && !strings.Contains(text, "are you sure") && !strings.Contains(text, "?") {
		return Classification{}, false
	}
	for _, tok := range words(text) {
		for _, stem := range mutationStems {
			if strings.HasPrefix(tok, stem) {
				return Classification{
					Intent:     string(ExpenseOperation),
					Confidence: ConfirmationConfidence,
					Entities:   map[string]any{"confirmed": true, "action": tok},
					Source:     SourceConfirmation,
				}, true
			}
		}
	}
	return Classification{}, false
}

func lastAssistant(history []Turn) (string, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if strings.EqualFold(history[i].Role, "assistant") {
			return history[i].Content, true
		}
	}
	return "", false
}
