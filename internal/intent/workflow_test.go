package intent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ledgerflow/internal/auth"
	"ledgerflow/pkg/framework"

	"github.com/google/go-cmp/cmp"
)

func fixed(label string, confidence float64) Classifier {
	return ClassifierFunc(func(context.Context, string, []Turn) (Classification, error) {
		return Classification{Intent: label, Confidence: confidence}, nil
	})
}

func newRouter(t *testing.T, c Classifier, h Handlers, opts ...framework.Option) *Workflow {
	t.Helper()
	s := DefaultSettings()
	s.CallTimeout = time.Second
	w, err := NewWorkflow(c, h, s, opts...)
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}
	return w
}

func TestWorkflow_RoutesByClassifier(t *testing.T) {
	tests := []struct {
		label      string
		confidence float64
		want       Intent
	}{
		{"expense_operation", 0.9, ExpenseOperation},
		{"rag_question", 0.8, RAGQuestion},
		{"rag_compare", 0.92, RAGCompare},
		{"reconciliation", 0.75, Reconciliation},
		{"general_chat", 0.6, GeneralChat},
		{"expense_operation", 0.5, ExpenseOperation},
		{"expense_operation", 0.49, Clarification},
		{"no_such_intent", 0.9, GeneralChat},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			w := newRouter(t, fixed(tt.label, tt.confidence), DefaultHandlers())
			resp := w.Run(context.Background(), Request{Message: "something"})
			if resp.Error != "" {
				t.Fatalf("unexpected error: %s", resp.Error)
			}
			if resp.Intent != tt.want {
				t.Errorf("intent = %s, want %s", resp.Intent, tt.want)
			}
			reply, ok := resp.Result.(Reply)
			if !ok || reply.Intent != tt.want {
				t.Errorf("result = %#v, want Reply from %s", resp.Result, tt.want)
			}
			if resp.Source != SourceClassifier {
				t.Errorf("source = %q", resp.Source)
			}
		})
	}
}

func TestWorkflow_ExactlyOneHandler(t *testing.T) {
	var visited []string
	h := DefaultHandlers()
	track := func(name string, next Handler) Handler {
		return func(ctx context.Context, req Request, c Classification) (any, error) {
			visited = append(visited, name)
			return next(ctx, req, c)
		}
	}
	h.RAGCompare = track("rag_compare", h.RAGCompare)
	h.GeneralChat = track("general_chat", h.GeneralChat)
	h.Clarification = track("clarification", h.Clarification)

	tc := &framework.TraceCollector{}
	w := newRouter(t, fixed("rag_compare", 0.92), h, framework.WithObserver(tc))
	w.Run(context.Background(), Request{Message: "what's the difference between A and B"})

	if diff := cmp.Diff([]string{"rag_compare"}, visited); diff != "" {
		t.Errorf("handlers (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"classify", "rag_compare"}, tc.Visited()); diff != "" {
		t.Errorf("walk (-want +got):\n%s", diff)
	}
}

func TestWorkflow_ConfirmationOverridesClassifier(t *testing.T) {
	called := false
	c := ClassifierFunc(func(context.Context, string, []Turn) (Classification, error) {
		called = true
		return Classification{Intent: "general_chat", Confidence: 0.9}, nil
	})
	w := newRouter(t, c, DefaultHandlers())

	resp := w.Run(context.Background(), Request{
		Message: "yes",
		History: []Turn{
			{Role: "user", Content: "delete my lunch expense"},
			{Role: "assistant", Content: "Please confirm: delete the lunch expense?"},
		},
	})
	if resp.Intent != ExpenseOperation || resp.Confidence < 0.95 {
		t.Errorf("got %s@%v, want expense_operation@>=0.95", resp.Intent, resp.Confidence)
	}
	if resp.Source != SourceConfirmation {
		t.Errorf("source = %q", resp.Source)
	}
	if called {
		t.Error("classifier consulted for a confirmation")
	}
}

func TestWorkflow_FallbackOnClassifierFailure(t *testing.T) {
	tests := []struct {
		name string
		c    Classifier
	}{
		{"error", ClassifierFunc(func(context.Context, string, []Turn) (Classification, error) {
			return Classification{}, errors.New("service unavailable")
		})},
		{"malformed output", fixed("", 0.9)},
		{"confidence out of range", fixed("rag_question", 7)},
		{"timeout", ClassifierFunc(func(ctx context.Context, _ string, _ []Turn) (Classification, error) {
			<-ctx.Done()
			return Classification{}, ctx.Err()
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			s.CallTimeout = 20 * time.Millisecond
			w, err := NewWorkflow(tt.c, DefaultHandlers(), s)
			if err != nil {
				t.Fatal(err)
			}
			resp := w.Run(context.Background(), Request{Message: "sync my bank account"})
			if resp.Error != "" {
				t.Fatalf("unexpected error: %s", resp.Error)
			}
			if resp.Intent != Reconciliation || resp.Confidence != KeywordConfidence {
				t.Errorf("got %s@%v, want reconciliation@%v", resp.Intent, resp.Confidence, KeywordConfidence)
			}
			if resp.Source != SourceFallback {
				t.Errorf("source = %q", resp.Source)
			}
		})
	}
}

func TestWorkflow_NilClassifierUsesFallback(t *testing.T) {
	w := newRouter(t, nil, DefaultHandlers())
	resp := w.Run(context.Background(), Request{Message: "hi"})
	if resp.Intent != GeneralChat || resp.Confidence != DefaultConfidence {
		t.Errorf("got %s@%v", resp.Intent, resp.Confidence)
	}
}

func TestWorkflow_EmptyMessage(t *testing.T) {
	w := newRouter(t, fixed("general_chat", 0.9), DefaultHandlers())
	resp := w.Run(context.Background(), Request{Message: "   "})
	if !strings.Contains(resp.Error, "message is empty") {
		t.Errorf("error = %q", resp.Error)
	}
	if resp.Result != nil {
		t.Errorf("result = %#v, want nil", resp.Result)
	}
}

func TestWorkflow_HandlerErrorIsCaptured(t *testing.T) {
	h := DefaultHandlers()
	h.ExpenseOperation = func(context.Context, Request, Classification) (any, error) {
		return nil, framework.Permanent(errors.New("expense service down"))
	}
	w := newRouter(t, fixed("expense_operation", 0.9), h)
	resp := w.Run(context.Background(), Request{Message: "add lunch"})
	if !strings.Contains(resp.Error, "expense service down") {
		t.Errorf("error = %q", resp.Error)
	}
	if resp.Intent != ExpenseOperation {
		t.Errorf("intent = %s", resp.Intent)
	}
}

func TestWorkflow_HandlerSeesAuth(t *testing.T) {
	var got auth.Context
	h := DefaultHandlers()
	h.GeneralChat = func(ctx context.Context, req Request, _ Classification) (any, error) {
		got, _ = auth.From(ctx)
		return "hello " + req.OwnerID, nil
	}
	w := newRouter(t, fixed("general_chat", 0.9), h)
	a := auth.Context{UserID: "u1", Scopes: []string{"chat"}}
	resp := w.Run(context.Background(), Request{Message: "hi", OwnerID: "u1", Auth: a})
	if diff := cmp.Diff(a, got); diff != "" {
		t.Errorf("auth (-want +got):\n%s", diff)
	}
	if resp.Result != "hello u1" {
		t.Errorf("result = %#v", resp.Result)
	}
}

func TestNewWorkflow_RequiresEveryHandler(t *testing.T) {
	h := DefaultHandlers()
	h.RAGQuestion = nil
	if _, err := NewWorkflow(nil, h, DefaultSettings()); err == nil || !strings.Contains(err.Error(), "rag_question") {
		t.Errorf("err = %v, want missing rag_question handler", err)
	}
	s := DefaultSettings()
	s.ClarifyBelow = 1.5
	if _, err := NewWorkflow(nil, DefaultHandlers(), s); err == nil {
		t.Error("threshold outside [0,1] accepted")
	}
}
