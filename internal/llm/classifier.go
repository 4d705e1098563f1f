package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ledgerflow/internal/intent"
)

// maxHistory bounds how many recent turns are sent with a classification.
const maxHistory = 6

const classifyPrompt = `You route messages for a personal expense assistant.
Classify the user's latest message into exactly one intent:
- expense_operation: add, list, modify or delete expenses
- rag_question: a question answered from the user's uploaded documents
- rag_compare: compare or contrast documents or records
- reconciliation: sync or reconcile records with the expense ledger
- general_chat: greetings and anything else
- clarification: the request is too ambiguous to act on
Reply with a single JSON object and nothing else:
{"intent": "<label>", "confidence": <0..1>, "entities": {}}`

// Classifier implements intent.Classifier on top of a chat completion.
type Classifier struct {
	client *Client
}

// NewClassifier wraps client.
func NewClassifier(client *Client) *Classifier { return &Classifier{client: client} }

var _ intent.Classifier = (*Classifier)(nil)

// Classify asks the model for a verdict. Replies without a JSON object, or
// whose object does not decode, are reported as intent.ErrInvalidClassification
// so the router falls back to keyword rules.
func (c *Classifier) Classify(ctx context.Context, message string, history []intent.Turn) (intent.Classification, error) {
	msgs := []Message{{Role: "system", Content: classifyPrompt}}
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	for _, t := range history {
		msgs = append(msgs, Message{Role: strings.ToLower(t.Role), Content: t.Content})
	}
	msgs = append(msgs, Message{Role: "user", Content: message})

	content, err := c.client.Complete(ctx, msgs)
	if err != nil {
		return intent.Classification{}, err
	}
	raw := ExtractJSON(content)
	if raw == "" {
		return intent.Classification{}, fmt.Errorf("%w: %w", intent.ErrInvalidClassification, ErrNoJSON)
	}
	var out intent.Classification
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return intent.Classification{}, fmt.Errorf("%w: %v", intent.ErrInvalidClassification, err)
	}
	return out, out.Validate()
}
