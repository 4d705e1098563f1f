package intent

import (
	"context"
	"fmt"

	"ledgerflow/internal/auth"
)

// Request is the input of one routing run.
type Request struct {
	Message string       `json:"message"`
	OwnerID string       `json:"ownerId"`
	Auth    auth.Context `json:"auth"`
	History []Turn       `json:"history,omitempty"`
}

// Handler serves a routed request and returns the result shown to the
// caller.
type Handler func(ctx context.Context, req Request, c Classification) (any, error)

// Handlers has one explicit handler per intent, so a missing route is a
// construction error instead of a silent default.
type Handlers struct {
	ExpenseOperation Handler
	RAGQuestion      Handler
	RAGCompare       Handler
	Reconciliation   Handler
	GeneralChat      Handler
	Clarification    Handler
}

// For returns the handler bound to i.
func (h Handlers) For(i Intent) Handler {
	switch i {
	case ExpenseOperation:
		return h.ExpenseOperation
	case RAGQuestion:
		return h.RAGQuestion
	case RAGCompare:
		return h.RAGCompare
	case Reconciliation:
		return h.Reconciliation
	case Clarification:
		return h.Clarification
	default:
		return h.GeneralChat
	}
}

// Validate reports the first intent without a handler.
func (h Handlers) Validate() error {
	for _, i := range All() {
		if h.For(i) == nil {
			return fmt.Errorf("intent: no handler for %s", i)
		}
	}
	return nil
}

// Reply is the result produced by the default handlers.
type Reply struct {
	Intent   Intent         `json:"intent"`
	Message  string         `json:"message"`
	Entities map[string]any `json:"entities,omitempty"`
}

func reply(i Intent, msg string) Handler {
	return func(_ context.Context, _ Request, c Classification) (any, error) {
		return Reply{Intent: i, Message: msg, Entities: c.Entities}, nil
	}
}

// DefaultHandlers returns deterministic acknowledgements for every intent.
// Deployments replace individual fields with real services.
func DefaultHandlers() Handlers {
	return Handlers{
		ExpenseOperation: reply(ExpenseOperation, "I'll take care of that expense operation."),
		RAGQuestion:      reply(RAGQuestion, "Let me look that up in your documents."),
		RAGCompare:       reply(RAGCompare, "Let me compare those documents for you."),
		Reconciliation:   reply(Reconciliation, "I'll reconcile your records against the ledger."),
		GeneralChat:      reply(GeneralChat, "Happy to help. What would you like to do?"),
		Clarification:    reply(Clarification, "I'm not sure what you mean. Could you rephrase or add more detail?"),
	}
}
