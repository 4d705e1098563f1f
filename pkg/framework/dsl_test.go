package framework

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const samplePipeline = `
pipeline: sample
description: "fan-out then route"
start: init
nodes:
  - name: init
  - name: left
    retries: 2
    backoff: 5ms
  - name: right
  - name: decide
  - name: high
  - name: low
edges:
  - id: E1
    name: fan-out
    from: init
    parallel: [left, right]
    join: decide
  - id: E2
    name: by-size
    from: decide
    router: size
    routes:
      big: high
      small: low
`

func sampleRegistry() (NodeRegistry, RouterRegistry) {
	value := func(key string, v any) NodeFunc {
		return func(_ context.Context, _ State) (Update, error) { return Update{key: v}, nil }
	}
	nodes := NodeRegistry{
		"init":   value("n", 10),
		"left":   value("left", true),
		"right":  value("right", true),
		"decide": noop,
		"high":   value(KeyResult, "high"),
		"low":    value(KeyResult, "low"),
	}
	routers := RouterRegistry{
		"size": func(s State) string {
			if n, _ := Value[int](s, "n"); n > 5 {
				return "big"
			}
			return "small"
		},
	}
	return nodes, routers
}

func TestLoadPipeline_Build(t *testing.T) {
	def, err := LoadPipeline([]byte(samplePipeline))
	if err != nil {
		t.Fatalf("LoadPipeline: %v", err)
	}
	if def.Pipeline != "sample" || def.Start != "init" {
		t.Errorf("def = %+v", def)
	}
	nodes, routers := sampleRegistry()
	g, err := def.Build(nodes, routers)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := []string{"init", "left", "right", "decide", "high", "low", ErrorNode}
	if diff := cmp.Diff(want, g.Nodes()); diff != "" {
		t.Errorf("Nodes mismatch (-want +got):\n%s", diff)
	}
	left, _ := g.NodeByName("left")
	if left.MaxRetries != 2 || left.Backoff != 5*time.Millisecond {
		t.Errorf("left policy = retries %d backoff %v", left.MaxRetries, left.Backoff)
	}
	e, _ := g.EdgeFrom("init")
	if e.ID != "E1" || e.Name != "fan-out" || e.Kind != EdgeFork {
		t.Errorf("E1 = %+v", e)
	}

	final := g.Run(context.Background(), NewState(nil))
	if final.Err() != "" {
		t.Fatalf("run error: %s", final.Err())
	}
	if final.Result() != "high" || !final.Has("left") || !final.Has("right") {
		t.Errorf("final fields = %v", final.Fields())
	}
}

func TestLoadPipelineFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.yaml")
	if err := os.WriteFile(path, []byte(samplePipeline), 0o644); err != nil {
		t.Fatal(err)
	}
	def, err := LoadPipelineFile(path)
	if err != nil {
		t.Fatalf("LoadPipelineFile: %v", err)
	}
	if len(def.Edges) != 2 {
		t.Errorf("edges = %d, want 2", len(def.Edges))
	}
	if _, err := LoadPipelineFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadPipeline_InvalidYAML(t *testing.T) {
	if _, err := LoadPipeline([]byte("nodes: [unterminated")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestPipelineDef_Validate(t *testing.T) {
	base := func() *PipelineDef {
		return &PipelineDef{
			Pipeline: "p",
			Start:    "a",
			Nodes:    []NodeDef{{Name: "a"}, {Name: "b"}},
			Edges:    []EdgeDef{{ID: "E1", From: "a", To: "b"}},
		}
	}
	tests := []struct {
		name    string
		mutate  func(*PipelineDef)
		wantErr string
	}{
		{"valid", func(*PipelineDef) {}, ""},
		{"edge to error terminal", func(d *PipelineDef) { d.Edges[0].To = ErrorNode }, ""},
		{"no name", func(d *PipelineDef) { d.Pipeline = "" }, "pipeline name"},
		{"no nodes", func(d *PipelineDef) { d.Nodes = nil }, "at least one node"},
		{"no start", func(d *PipelineDef) { d.Start = "" }, "start node is required"},
		{"unknown start", func(d *PipelineDef) { d.Start = "z" }, "not found"},
		{"duplicate node", func(d *PipelineDef) { d.Nodes = append(d.Nodes, NodeDef{Name: "a"}) }, "duplicate node"},
		{"bad backoff", func(d *PipelineDef) { d.Nodes[0].Backoff = "soon" }, "backoff"},
		{"unknown on_error", func(d *PipelineDef) { d.Nodes[0].OnError = "z" }, "on_error"},
		{"missing edge id", func(d *PipelineDef) { d.Edges[0].ID = "" }, "edge id"},
		{"duplicate edge id", func(d *PipelineDef) { d.Edges = append(d.Edges, EdgeDef{ID: "E1", From: "b", To: "a"}) }, "duplicate edge"},
		{"unknown source", func(d *PipelineDef) { d.Edges[0].From = "z" }, "unknown source"},
		{"unknown target", func(d *PipelineDef) { d.Edges[0].To = "z" }, "unknown target"},
		{"two shapes", func(d *PipelineDef) {
			d.Edges[0].Router = "r"
			d.Edges[0].Routes = map[string]string{"x": "b"}
		}, "exactly one"},
		{"no shape", func(d *PipelineDef) { d.Edges[0].To = "" }, "exactly one"},
		{"router without routes", func(d *PipelineDef) {
			d.Edges[0].To = ""
			d.Edges[0].Router = "r"
		}, "without routes"},
		{"parallel without join", func(d *PipelineDef) {
			d.Edges[0].To = ""
			d.Edges[0].Parallel = []string{"a", "b"}
		}, "without join"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := base()
			tt.mutate(d)
			err := d.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestPipelineDef_BuildMissingBindings(t *testing.T) {
	def, err := LoadPipeline([]byte(samplePipeline))
	if err != nil {
		t.Fatal(err)
	}
	nodes, routers := sampleRegistry()

	delete(nodes, "left")
	if _, err := def.Build(nodes, routers); err == nil || !strings.Contains(err.Error(), `"left"`) {
		t.Errorf("Build without node = %v", err)
	}

	nodes, _ = sampleRegistry()
	if _, err := def.Build(nodes, RouterRegistry{}); err == nil || !strings.Contains(err.Error(), `"size"`) {
		t.Errorf("Build without router = %v", err)
	}
}
