package reconcile

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
	"ledgerflow/internal/match"
	"ledgerflow/internal/record"
	"ledgerflow/pkg/framework"
)

//go:embed pipeline.yaml
var pipelineYAML []byte

// PipelineYAML returns the embedded workflow definition.
func PipelineYAML() []byte { return pipelineYAML }

// Validation failures. Both are fatal and never retried.
var (
	ErrNoRecords = errors.New("reconcile: no comparison records supplied")
	ErrNoOwner   = errors.New("reconcile: owner id is required")
)

// State fields used by the workflow.
const (
	fieldRequest       = "request"
	fieldSource        = "source"
	fieldTarget        = "target"
	fieldDetails       = "details"
	fieldDiff          = "diff"
	fieldDiscrepancies = "discrepancies"
	fieldSummary       = "summary"
	fieldSynced        = "synced"
	fieldSyncFailures  = "sync_failures"
)

// Options toggles optional stages.
type Options struct {
	AutoSync bool `json:"autoSync" yaml:"autoSync"`
}

// Request is the validated input of one run. Records are the externally
// extracted entries; they are the primary list for matching.
type Request struct {
	OwnerID string       `json:"ownerId"`
	Records []record.Raw `json:"records"`
	Auth    auth.Context `json:"auth"`
	Options Options      `json:"options"`
}

// Validate checks the required inputs.
func (r Request) Validate() error {
	if strings.TrimSpace(r.OwnerID) == "" {
		return ErrNoOwner
	}
	if len(r.Records) == 0 {
		return ErrNoRecords
	}
	return nil
}

// Deps are the collaborators. Only Ledger is required.
type Deps struct {
	Ledger     LedgerStore
	Documents  DocumentStore
	Search     SemanticSearch
	Summarizer Summarizer
}

// Settings tune the workflow.
type Settings struct {
	Match          match.Config
	CallTimeout    time.Duration
	PrimaryRetries int
	PrimaryBackoff time.Duration
}

// DefaultSettings returns the standard matcher, a 5s call timeout and three
// ledger retries 50ms apart.
func DefaultSettings() Settings {
	return Settings{
		Match:          match.DefaultConfig(),
		CallTimeout:    5 * time.Second,
		PrimaryRetries: 3,
		PrimaryBackoff: 50 * time.Millisecond,
	}
}

// Workflow is the compiled reconciliation graph bound to its collaborators.
// It is immutable and safe for concurrent Run calls.
type Workflow struct {
	graph    *framework.Graph
	deps     Deps
	settings Settings
	log      *slog.Logger
}

// NewWorkflow builds the graph from the embedded pipeline definition.
func NewWorkflow(deps Deps, settings Settings, opts ...framework.Option) (*Workflow, error) {
	if deps.Ledger == nil {
		return nil, errors.New("reconcile: ledger store is required")
	}
	if err := settings.Match.Validate(); err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	def, err := framework.LoadPipeline(pipelineYAML)
	if err != nil {
		return nil, fmt.Errorf("load embedded pipeline: %w", err)
	}
	for i := range def.Nodes {
		if def.Nodes[i].Name == "fetch_primary" {
			def.Nodes[i].Retries = settings.PrimaryRetries
			def.Nodes[i].Backoff = settings.PrimaryBackoff.String()
		}
	}

	w := &Workflow{deps: deps, settings: settings, log: logging.New("reconcile")}
	if deps.Search != nil {
		w.deps.Search = timeoutSearch{SemanticSearch: deps.Search, timeout: settings.CallTimeout}
	}
	nodes := framework.NodeRegistry{
		"initialize":      w.initialize,
		"fetch_primary":   w.fetchPrimary,
		"fetch_secondary": w.fetchSecondary,
		"compare":         w.compare,
		"analyze_context": w.analyzeContext,
		"analyze":         w.analyze,
		"auto_sync":       w.autoSync,
		"report":          w.report,
	}
	routers := framework.RouterRegistry{
		"has_details": hasDetails,
		"auto_sync":   autoSyncEnabled,
	}
	schema := framework.Schema{fieldSynced: framework.Append, fieldSyncFailures: framework.Append}
	opts = append([]framework.Option{framework.WithSchema(schema)}, opts...)

	w.graph, err = def.Build(nodes, routers, opts...)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Graph exposes the compiled graph for rendering.
func (w *Workflow) Graph() *framework.Graph { return w.graph }

// Run executes one reconciliation. On failure the returned error is a
// *framework.RunError and the report carries only trace and metadata.
func (w *Workflow) Run(ctx context.Context, req Request) (Report, error) {
	ctx = auth.With(ctx, req.Auth)
	final := w.graph.Run(ctx, framework.NewState(map[string]any{fieldRequest: req}))
	if err := framework.ErrorOf(final); err != nil {
		return Report{TraceID: final.TraceID(), OwnerID: req.OwnerID, Metadata: final.Metadata()}, err
	}
	rep, ok := final.Result().(Report)
	if !ok {
		return Report{}, fmt.Errorf("reconcile: unexpected result %T", final.Result())
	}
	return rep, nil
}

func (w *Workflow) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.settings.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, w.settings.CallTimeout)
}

func request(s framework.State) Request {
	req, _ := framework.Value[Request](s, fieldRequest)
	return req
}

func (w *Workflow) initialize(_ context.Context, s framework.State) (framework.Update, error) {
	req, ok := framework.Value[Request](s, fieldRequest)
	if !ok {
		return nil, framework.Permanent(errors.New("reconcile: request missing from state"))
	}
	if err := req.Validate(); err != nil {
		return nil, framework.Permanent(err)
	}
	return framework.Update{
		fieldSource: record.NormalizeAll(req.Records),
		framework.KeyMetadata: map[string]any{
			"owner_id":     req.OwnerID,
			"source_count": len(req.Records),
			"auto_sync":    req.Options.AutoSync,
			"strict_match": w.settings.Match.Strict,
		},
	}, nil
}

func (w *Workflow) fetchPrimary(ctx context.Context, s framework.State) (framework.Update, error) {
	cctx, cancel := w.callContext(ctx)
	defer cancel()
	recs, err := w.deps.Ledger.Fetch(cctx, record.Filter{OwnerID: request(s).OwnerID})
	if err != nil {
		return nil, fmt.Errorf("fetch ledger: %w", err)
	}
	if recs == nil {
		recs = []record.Record{}
	}
	return framework.Update{fieldTarget: recs}, nil
}

// fetchSecondary never fails: document problems degrade to no details.
func (w *Workflow) fetchSecondary(ctx context.Context, s framework.State) (framework.Update, error) {
	if w.deps.Documents == nil {
		return framework.Update{
			fieldDetails:          []string{},
			framework.KeyMetadata: map[string]any{"secondary_fetch": "skipped"},
		}, nil
	}
	cctx, cancel := w.callContext(ctx)
	defer cancel()
	details, err := w.deps.Documents.FetchDetails(cctx, request(s).OwnerID)
	if err != nil {
		w.log.Warn("document details unavailable, continuing without context", "error", err)
		return framework.Update{
			fieldDetails:          []string{},
			framework.KeyMetadata: map[string]any{"secondary_fetch": "degraded: " + err.Error()},
		}, nil
	}
	if details == nil {
		details = []string{}
	}
	return framework.Update{
		fieldDetails:          details,
		framework.KeyMetadata: map[string]any{"secondary_fetch": "ok", "detail_chunks": len(details)},
	}, nil
}

func (w *Workflow) compare(_ context.Context, s framework.State) (framework.Update, error) {
	source, _ := framework.Value[[]record.Record](s, fieldSource)
	target, _ := framework.Value[[]record.Record](s, fieldTarget)
	d := Compare(source, target, w.settings.Match)
	return framework.Update{
		fieldDiff:          d,
		fieldDiscrepancies: d.Discrepancies,
		framework.KeyMetadata: map[string]any{
			"matched":       len(d.Matches),
			"discrepancies": len(d.Discrepancies),
		},
	}, nil
}

func hasDetails(s framework.State) string {
	details, _ := framework.Value[[]string](s, fieldDetails)
	if len(details) > 0 {
		return "context"
	}
	return "skip"
}

func (w *Workflow) analyzeContext(ctx context.Context, s framework.State) (framework.Update, error) {
	ds, _ := framework.Value[[]Discrepancy](s, fieldDiscrepancies)
	if w.deps.Search == nil {
		return framework.Update{framework.KeyMetadata: map[string]any{"context_search": "unavailable"}}, nil
	}
	out, n := Downgrade(ctx, w.deps.Search, request(s).OwnerID, ds, w.log)
	return framework.Update{
		fieldDiscrepancies:    out,
		framework.KeyMetadata: map[string]any{"context_search": "ok", "downgraded": n},
	}, nil
}

// draft assembles the report from the current diff and discrepancy list.
func draft(s framework.State) Report {
	d, _ := framework.Value[Diff](s, fieldDiff)
	if ds, ok := framework.Value[[]Discrepancy](s, fieldDiscrepancies); ok {
		d.Discrepancies = ds
	}
	return BuildReport(d)
}

func (w *Workflow) analyze(ctx context.Context, s framework.State) (framework.Update, error) {
	rep := draft(s)
	summary, source := TemplateSummary(rep), "template"
	if w.deps.Summarizer != nil {
		cctx, cancel := w.callContext(ctx)
		text, err := w.deps.Summarizer.Summarize(cctx, rep)
		cancel()
		switch {
		case err != nil:
			w.log.Warn("summarizer failed, using template summary", "error", err)
		case strings.TrimSpace(text) == "":
			w.log.Warn("summarizer returned empty text, using template summary")
		default:
			summary, source = strings.TrimSpace(text), "summarizer"
		}
	}
	return framework.Update{
		fieldSummary:          summary,
		framework.KeyMetadata: map[string]any{"summary_source": source},
	}, nil
}

func autoSyncEnabled(s framework.State) string {
	if request(s).Options.AutoSync {
		return "sync"
	}
	return "skip"
}

// autoSync creates a ledger record for every missing_in_target. A failed
// create is logged and recorded; the remaining items still run.
func (w *Workflow) autoSync(ctx context.Context, s framework.State) (framework.Update, error) {
	owner := request(s).OwnerID
	ds, _ := framework.Value[[]Discrepancy](s, fieldDiscrepancies)

	synced := []record.Record{}
	failures := []SyncFailure{}
	for _, d := range ds {
		if d.Type != MissingInTarget || d.Source == nil {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		cctx, cancel := w.callContext(ctx)
		created, err := w.deps.Ledger.Create(cctx, owner, *d.Source)
		cancel()
		if err != nil {
			w.log.Warn("auto-sync create failed", "source_id", d.Source.SourceID, "error", err)
			failures = append(failures, SyncFailure{SourceID: SourceLabel(*d.Source), Error: err.Error()})
			continue
		}
		synced = append(synced, created)
	}
	return framework.Update{
		fieldSynced:       synced,
		fieldSyncFailures: failures,
		framework.KeyMetadata: map[string]any{
			"synced":      len(synced),
			"sync_failed": len(failures),
		},
	}, nil
}

func (w *Workflow) report(_ context.Context, s framework.State) (framework.Update, error) {
	rep := draft(s)
	req := request(s)
	rep.TraceID = s.TraceID()
	rep.OwnerID = req.OwnerID
	rep.Summary, _ = framework.Value[string](s, fieldSummary)
	rep.Synced, _ = framework.Value[[]record.Record](s, fieldSynced)
	rep.SyncFailures, _ = framework.Value[[]SyncFailure](s, fieldSyncFailures)
	rep.Metadata = s.Metadata()
	return framework.Update{framework.KeyResult: rep}, nil
}

// timeoutSearch bounds each semantic search call.
type timeoutSearch struct {
	SemanticSearch
	timeout time.Duration
}

func (t timeoutSearch) Query(ctx context.Context, text, ownerID string, k int) ([]SearchHit, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return t.SemanticSearch.Query(ctx, text, ownerID, k)
}
