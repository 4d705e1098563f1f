// Package mcp exposes the workflows as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"ledgerflow/internal/auth"
	"ledgerflow/internal/display"
	"ledgerflow/internal/format"
	"ledgerflow/internal/intent"
	"ledgerflow/internal/logging"
	"ledgerflow/internal/orchestrate"
	"ledgerflow/internal/record"
	"ledgerflow/internal/reconcile"
)

// Server wraps the MCP SDK server around an orchestrate.Service.
type Server struct {
	MCPServer *sdkmcp.Server
	svc       *orchestrate.Service
}

// NewServer registers the route_intent, reconcile and pipeline_graph tools.
func NewServer(svc *orchestrate.Service, version string) *Server {
	s := &Server{svc: svc}
	s.MCPServer = sdkmcp.NewServer(&sdkmcp.Implementation{Name: "ledgerflow", Version: version}, nil)
	s.registerTools()
	return s
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	logging.New("mcp").Info("serving MCP over stdio")
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "route_intent",
		Description: "Classify a user message into one intent (expense_operation, rag_question, rag_compare, reconciliation, general_chat, clarification) and run its handler.",
	}, s.handleRouteIntent)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "reconcile",
		Description: "Reconcile externally extracted expense records against the owner's ledger and return the discrepancy report. Optionally creates missing ledger entries.",
	}, s.handleReconcile)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "pipeline_graph",
		Description: "Render a workflow (intent or reconcile) as a Mermaid flowchart.",
	}, s.handlePipelineGraph)
}

// --- Tool input/output types ---

type routeIntentInput struct {
	UserID  string        `json:"user_id,omitempty" jsonschema:"authenticated user id, forwarded to collaborators"`
	Scopes  []string      `json:"scopes,omitempty" jsonschema:"granted scopes"`
	Message string        `json:"message" jsonschema:"the user's latest message"`
	OwnerID string        `json:"owner_id,omitempty" jsonschema:"owner of the expense data"`
	History []intent.Turn `json:"history,omitempty" jsonschema:"recent turns, oldest first"`
}

type routeIntentOutput struct {
	TraceID    string  `json:"trace_id"`
	Intent     string  `json:"intent"`
	IntentName string  `json:"intent_name"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source,omitempty"`
	Result     any     `json:"result,omitempty"`
	Error      string  `json:"error,omitempty"`
}

type reconcileInput struct {
	UserID   string           `json:"user_id,omitempty" jsonschema:"authenticated user id, forwarded to collaborators"`
	Scopes   []string         `json:"scopes,omitempty" jsonschema:"granted scopes"`
	OwnerID  string           `json:"owner_id" jsonschema:"owner of the ledger"`
	Records  []map[string]any `json:"records" jsonschema:"records with amount, date, description, category and id fields (aliases accepted)"`
	AutoSync bool             `json:"auto_sync,omitempty" jsonschema:"create ledger entries for records missing from the ledger"`
}

type reconcileOutput struct {
	TraceID  string         `json:"trace_id"`
	Summary  string         `json:"summary"`
	Markdown string         `json:"markdown"`
	Report   map[string]any `json:"report"`
}

type pipelineGraphInput struct {
	Pipeline string `json:"pipeline" jsonschema:"intent or reconcile"`
}

type pipelineGraphOutput struct {
	Pipeline string `json:"pipeline"`
	Mermaid  string `json:"mermaid"`
}

// --- Tool handlers ---

func (s *Server) handleRouteIntent(ctx context.Context, _ *sdkmcp.CallToolRequest, in routeIntentInput) (*sdkmcp.CallToolResult, routeIntentOutput, error) {
	resp := s.svc.RunIntentRouting(ctx, orchestrate.IntentRequest{
		Message: in.Message,
		OwnerID: in.OwnerID,
		Auth:    auth.Context{UserID: in.UserID, Scopes: in.Scopes},
		History: in.History,
	})
	return nil, routeIntentOutput{
		TraceID:    resp.TraceID,
		Intent:     string(resp.Intent),
		IntentName: display.Intent(string(resp.Intent)),
		Confidence: resp.Confidence,
		Source:     resp.Source,
		Result:     resp.Result,
		Error:      resp.Error,
	}, nil
}

func (s *Server) handleReconcile(ctx context.Context, _ *sdkmcp.CallToolRequest, in reconcileInput) (*sdkmcp.CallToolResult, reconcileOutput, error) {
	raws := make([]record.Raw, len(in.Records))
	for i, r := range in.Records {
		raws[i] = record.Raw(r)
	}
	rep, err := s.svc.RunReconciliation(ctx, orchestrate.ReconcileRequest{
		Records: raws,
		OwnerID: in.OwnerID,
		Auth:    auth.Context{UserID: in.UserID, Scopes: in.Scopes},
		Options: reconcile.Options{AutoSync: in.AutoSync},
	})
	if err != nil {
		return nil, reconcileOutput{}, fmt.Errorf("reconcile: %w", err)
	}
	asMap, err := toMap(rep)
	if err != nil {
		return nil, reconcileOutput{}, err
	}
	return nil, reconcileOutput{
		TraceID:  rep.TraceID,
		Summary:  rep.Summary,
		Markdown: format.Report(rep, format.Markdown),
		Report:   asMap,
	}, nil
}

func (s *Server) handlePipelineGraph(_ context.Context, _ *sdkmcp.CallToolRequest, in pipelineGraphInput) (*sdkmcp.CallToolResult, pipelineGraphOutput, error) {
	out, err := s.svc.Mermaid(in.Pipeline)
	if err != nil {
		return nil, pipelineGraphOutput{}, err
	}
	return nil, pipelineGraphOutput{Pipeline: in.Pipeline, Mermaid: out}, nil
}

// toMap re-encodes v so decimals travel as JSON strings.
func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return out, nil
}
