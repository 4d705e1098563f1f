// Package orchestrate wires the intent router and the reconciliation
// workflow to their collaborators and runs them.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"ledgerflow/internal/auth"
	"ledgerflow/internal/config"
	"ledgerflow/internal/intent"
	"ledgerflow/internal/llm"
	"ledgerflow/internal/logging"
	"ledgerflow/internal/record"
	"ledgerflow/internal/reconcile"
	"ledgerflow/internal/telemetry"
	"ledgerflow/pkg/framework"
)

// Pipeline names accepted by Graph.
const (
	PipelineIntent    = "intent"
	PipelineReconcile = "reconcile"
)

// Deps are the collaborators. Ledger is required; every other field is
// optional. A nil Classifier or Summarizer is built from the LLM config
// when an endpoint is configured.
type Deps struct {
	Ledger     reconcile.LedgerStore
	Documents  reconcile.DocumentStore
	Search     reconcile.SemanticSearch
	Classifier intent.Classifier
	Summarizer reconcile.Summarizer
	Handlers   *intent.Handlers
	Metrics    *telemetry.Metrics
}

// Service holds both compiled workflows. Graphs are built once and shared
// by concurrent runs.
type Service struct {
	intent    *intent.Workflow
	reconcile *reconcile.Workflow
	metrics   *telemetry.Metrics
	log       *slog.Logger
}

// New compiles both workflows from cfg and deps.
func New(cfg config.Config, deps Deps) (*Service, error) {
	if deps.Ledger == nil {
		return nil, errors.New("orchestrate: ledger store is required")
	}
	if cfg.LLM.Enabled() && (deps.Classifier == nil || deps.Summarizer == nil) {
		client := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.Breaker, llm.WithAPIKey(cfg.LLM.APIKey()))
		if deps.Classifier == nil {
			deps.Classifier = llm.NewClassifier(client)
		}
		if deps.Summarizer == nil {
			deps.Summarizer = llm.NewSummarizer(client)
		}
	}
	handlers := intent.DefaultHandlers()
	if deps.Handlers != nil {
		handlers = *deps.Handlers
	}

	s := &Service{metrics: deps.Metrics, log: logging.New("orchestrate")}

	var err error
	s.intent, err = intent.NewWorkflow(deps.Classifier, handlers, cfg.IntentSettings(),
		framework.WithObserver(s.observer(PipelineIntent)))
	if err != nil {
		return nil, fmt.Errorf("build intent router: %w", err)
	}
	s.reconcile, err = reconcile.NewWorkflow(reconcile.Deps{
		Ledger:     deps.Ledger,
		Documents:  deps.Documents,
		Search:     deps.Search,
		Summarizer: deps.Summarizer,
	}, cfg.ReconcileSettings(), framework.WithObserver(s.observer(PipelineReconcile)))
	if err != nil {
		return nil, fmt.Errorf("build reconciliation workflow: %w", err)
	}
	return s, nil
}

func (s *Service) observer(pipeline string) framework.WalkObserver {
	obs := framework.MultiObserver{&framework.LogObserver{Logger: s.log.With("pipeline", pipeline)}}
	if s.metrics != nil {
		obs = append(obs, s.metrics.Observer(pipeline))
	}
	return obs
}

// IntentRequest is the input of RunIntentRouting.
type IntentRequest struct {
	Message string        `json:"message"`
	OwnerID string        `json:"ownerId"`
	Auth    auth.Context  `json:"auth"`
	History []intent.Turn `json:"history,omitempty"`
}

// RunIntentRouting classifies the message and dispatches it to exactly one
// handler. Failures are reported in Response.Error.
func (s *Service) RunIntentRouting(ctx context.Context, req IntentRequest) intent.Response {
	resp := s.intent.Run(ctx, intent.Request{
		Message: req.Message,
		OwnerID: req.OwnerID,
		Auth:    req.Auth,
		History: req.History,
	})
	log := logging.ForRun(s.log, PipelineIntent, resp.TraceID)
	if resp.Error != "" {
		log.Warn("intent routing failed", "error", resp.Error)
	} else {
		log.Info("intent routed", "intent", resp.Intent, "confidence", resp.Confidence, "source", resp.Source)
	}
	if s.metrics != nil && resp.Intent != "" {
		s.metrics.IntentRouted(string(resp.Intent), resp.Source)
	}
	return resp
}

// ReconcileRequest is the input of RunReconciliation.
type ReconcileRequest struct {
	Records []record.Raw      `json:"records"`
	OwnerID string            `json:"ownerId"`
	Auth    auth.Context      `json:"auth"`
	Options reconcile.Options `json:"options"`
}

// RunReconciliation compares the records with the owner's ledger. On
// failure the error is a *framework.RunError.
func (s *Service) RunReconciliation(ctx context.Context, req ReconcileRequest) (reconcile.Report, error) {
	rep, err := s.reconcile.Run(ctx, reconcile.Request{
		OwnerID: req.OwnerID,
		Records: req.Records,
		Auth:    req.Auth,
		Options: req.Options,
	})
	log := logging.ForRun(s.log, PipelineReconcile, rep.TraceID)
	if err != nil {
		log.Warn("reconciliation failed", "error", err)
		return rep, err
	}
	log.Info("reconciliation finished",
		"matches", len(rep.Matches), "discrepancies", len(rep.Discrepancies), "synced", len(rep.Synced))
	if s.metrics != nil {
		for _, d := range rep.Discrepancies {
			s.metrics.Discrepancy(string(d.Type), string(d.Severity))
		}
	}
	return rep, nil
}

// Pipelines lists the names accepted by Graph.
func Pipelines() []string { return []string{PipelineIntent, PipelineReconcile} }

// Graph returns a compiled graph by pipeline name.
func (s *Service) Graph(name string) (*framework.Graph, error) {
	switch name {
	case PipelineIntent:
		return s.intent.Graph(), nil
	case PipelineReconcile:
		return s.reconcile.Graph(), nil
	}
	return nil, fmt.Errorf("unknown pipeline %q (want one of %v)", name, Pipelines())
}

// Mermaid renders a pipeline as a Mermaid flowchart.
func (s *Service) Mermaid(name string) (string, error) {
	g, err := s.Graph(name)
	if err != nil {
		return "", err
	}
	return framework.Render(g), nil
}

// ValidPipeline reports whether name is a known pipeline.
func ValidPipeline(name string) bool { return slices.Contains(Pipelines(), name) }
