// Package intent classifies free-form user messages and routes them to one
// of a closed set of handlers.
package intent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Intent is the closed set of handling strategies.
type Intent string

const (
	ExpenseOperation Intent = "expense_operation"
	RAGQuestion      Intent = "rag_question"
	RAGCompare       Intent = "rag_compare"
	Reconciliation   Intent = "reconciliation"
	GeneralChat      Intent = "general_chat"
	Clarification    Intent = "clarification"
)

// All lists every intent in routing-table order.
func All() []Intent {
	return []Intent{ExpenseOperation, RAGQuestion, RAGCompare, Reconciliation, GeneralChat, Clarification}
}

// Valid reports whether i is one of the known intents.
func (i Intent) Valid() bool {
	switch i {
	case ExpenseOperation, RAGQuestion, RAGCompare, Reconciliation, GeneralChat, Clarification:
		return true
	}
	return false
}

// ParseIntent maps a classifier label onto an Intent. Unknown labels become
// GeneralChat.
func ParseIntent(label string) Intent {
	i := Intent(strings.ToLower(strings.TrimSpace(label)))
	if i.Valid() {
		return i
	}
	return GeneralChat
}

// DefaultClarifyBelow is the confidence under which a classification is
// routed to Clarification whatever its label.
const DefaultClarifyBelow = 0.5

// Route applies the routing rule with DefaultClarifyBelow.
func Route(c Classification) Intent {
	return RouteWith(c, DefaultClarifyBelow)
}

// RouteWith sends confidence below threshold to Clarification and
// otherwise routes by label.
func RouteWith(c Classification, threshold float64) Intent {
	if c.Confidence < threshold {
		return Clarification
	}
	return ParseIntent(c.Intent)
}

// Turn is one message of the recent conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Classification sources.
const (
	SourceClassifier   = "classifier"
	SourceFallback     = "fallback"
	SourceConfirmation = "confirmation"
)

// Classification is a classifier verdict.
type Classification struct {
	Intent     string         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Entities   map[string]any `json:"entities,omitempty"`
	Source     string         `json:"-"`
}

// ErrInvalidClassification marks structurally unusable classifier output.
var ErrInvalidClassification = errors.New("intent: invalid classification")

// Validate rejects an empty label or a confidence outside [0,1].
func (c Classification) Validate() error {
	if strings.TrimSpace(c.Intent) == "" {
		return fmt.Errorf("%w: empty intent", ErrInvalidClassification)
	}
	if math.IsNaN(c.Confidence) || c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidClassification, c.Confidence)
	}
	return nil
}

// Classifier is the external text-classification collaborator.
type Classifier interface {
	Classify(ctx context.Context, message string, history []Turn) (Classification, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, message string, history []Turn) (Classification, error)

func (f ClassifierFunc) Classify(ctx context.Context, message string, history []Turn) (Classification, error) {
	return f(ctx, message, history)
}
