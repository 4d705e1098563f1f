package intent

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ledgerflow/internal/auth"
	"ledgerflow/internal/logging"
	"ledgerflow/pkg/framework"
)

//go:embed pipeline.yaml
var pipelineYAML []byte

// PipelineYAML returns the embedded router definition.
func PipelineYAML() []byte { return pipelineYAML }

// ErrEmptyMessage is the validation failure for a blank message.
var ErrEmptyMessage = errors.New("intent: message is empty")

const (
	fieldRequest        = "request"
	fieldClassification = "classification"
	fieldIntent         = "intent"
)

// Settings tune routing.
type Settings struct {
	ClarifyBelow float64
	CallTimeout  time.Duration
}

// DefaultSettings returns the 0.5 clarification threshold and a 5s
// classifier timeout.
func DefaultSettings() Settings {
	return Settings{ClarifyBelow: DefaultClarifyBelow, CallTimeout: 5 * time.Second}
}

// Response is the outcome of one routing run.
type Response struct {
	TraceID    string  `json:"traceId"`
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source,omitempty"`
	Result     any     `json:"result,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Workflow is the compiled intent router.
type Workflow struct {
	graph      *framework.Graph
	classifier Classifier
	handlers   Handlers
	settings   Settings
	log        *slog.Logger
}

// NewWorkflow compiles the router. classifier may be nil, in which case
// every message goes through the keyword fallback.
func NewWorkflow(classifier Classifier, handlers Handlers, settings Settings, opts ...framework.Option) (*Workflow, error) {
	if err := handlers.Validate(); err != nil {
		return nil, err
	}
	if settings.ClarifyBelow < 0 || settings.ClarifyBelow > 1 {
		return nil, fmt.Errorf("intent: clarify threshold %v outside [0,1]", settings.ClarifyBelow)
	}
	def, err := framework.LoadPipeline(pipelineYAML)
	if err != nil {
		return nil, fmt.Errorf("load embedded pipeline: %w", err)
	}

	w := &Workflow{classifier: classifier, handlers: handlers, settings: settings, log: logging.New("intent")}
	nodes := framework.NodeRegistry{"classify": w.classify}
	for _, i := range All() {
		nodes[string(i)] = w.handle(i)
	}
	w.graph, err = def.Build(nodes, framework.RouterRegistry{"by_intent": byIntent}, opts...)
	if err != nil {
		return nil, err
	}

	edge, _ := w.graph.EdgeFrom("classify")
	for _, i := range All() {
		if _, ok := edge.Routes[string(i)]; !ok {
			return nil, fmt.Errorf("intent: pipeline has no route for %s", i)
		}
	}
	return w, nil
}

// Graph exposes the compiled graph for rendering.
func (w *Workflow) Graph() *framework.Graph { return w.graph }

// Run classifies and dispatches req. It never returns a Go error; failures
// are reported in Response.Error.
func (w *Workflow) Run(ctx context.Context, req Request) Response {
	ctx = auth.With(ctx, req.Auth)
	final := w.graph.Run(ctx, framework.NewState(map[string]any{fieldRequest: req}))

	c, _ := framework.Value[Classification](final, fieldClassification)
	resp := Response{
		TraceID:    final.TraceID(),
		Confidence: c.Confidence,
		Source:     c.Source,
		Result:     final.Result(),
		Error:      final.Err(),
	}
	resp.Intent, _ = framework.Value[Intent](final, fieldIntent)
	return resp
}

func (w *Workflow) classify(ctx context.Context, s framework.State) (framework.Update, error) {
	req, _ := framework.Value[Request](s, fieldRequest)
	if strings.TrimSpace(req.Message) == "" {
		return nil, framework.Permanent(ErrEmptyMessage)
	}

	c, meta := w.classification(ctx, req)
	routed := RouteWith(c, w.settings.ClarifyBelow)
	meta["classified_as"] = c.Intent
	meta["routed_to"] = string(routed)
	return framework.Update{
		fieldClassification:   c,
		fieldIntent:           routed,
		framework.KeyMetadata: meta,
	}, nil
}

// classification applies the confirmation rule, then the classifier, then
// the keyword fallback.
func (w *Workflow) classification(ctx context.Context, req Request) (Classification, map[string]any) {
	if c, ok := Confirmation(req.Message, req.History); ok {
		return c, map[string]any{"classification_source": SourceConfirmation}
	}
	if w.classifier == nil {
		return Fallback(req.Message), map[string]any{"classification_source": SourceFallback}
	}

	cctx, cancel := context.WithCancel(ctx)
	if w.settings.CallTimeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, w.settings.CallTimeout)
	}
	c, err := w.classifier.Classify(cctx, req.Message, req.History)
	cancel()
	if err == nil {
		err = c.Validate()
	}
	if err != nil {
		w.log.Warn("classifier unavailable, using keyword fallback", "error", err)
		return Fallback(req.Message), map[string]any{
			"classification_source": SourceFallback,
			"classifier_error":      err.Error(),
		}
	}
	c.Source = SourceClassifier
	return c, map[string]any{"classification_source": SourceClassifier}
}

func byIntent(s framework.State) string {
	i, _ := framework.Value[Intent](s, fieldIntent)
	return string(i)
}

func (w *Workflow) handle(i Intent) framework.NodeFunc {
	h := w.handlers.For(i)
	return func(ctx context.Context, s framework.State) (framework.Update, error) {
		req, _ := framework.Value[Request](s, fieldRequest)
		c, _ := framework.Value[Classification](s, fieldClassification)
		out, err := h(ctx, req, c)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = Reply{Intent: i}
		}
		return framework.Update{framework.KeyResult: out}, nil
	}
}
