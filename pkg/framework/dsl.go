package framework

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PipelineDef is the YAML form of a workflow graph. Node behaviour and
// routers are bound by name at Build time; the file only carries topology
// and retry policy.
type PipelineDef struct {
	Pipeline    string    `yaml:"pipeline"`
	Description string    `yaml:"description,omitempty"`
	Start       string    `yaml:"start"`
	Nodes       []NodeDef `yaml:"nodes"`
	Edges       []EdgeDef `yaml:"edges"`
}

// NodeDef declares a node and its retry policy.
type NodeDef struct {
	Name    string `yaml:"name"`
	Retries int    `yaml:"retries,omitempty"`
	Backoff string `yaml:"backoff,omitempty"`
	OnError string `yaml:"on_error,omitempty"`
}

// EdgeDef declares the outgoing edge of a node. Exactly one of To, Router
// or Parallel must be set.
type EdgeDef struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name,omitempty"`
	From string `yaml:"from"`

	To string `yaml:"to,omitempty"`

	Router string            `yaml:"router,omitempty"`
	Routes map[string]string `yaml:"routes,omitempty"`

	Parallel []string `yaml:"parallel,omitempty"`
	Join     string   `yaml:"join,omitempty"`
}

// NodeRegistry binds node names to their implementations.
type NodeRegistry map[string]NodeFunc

// RouterRegistry binds router names used by conditional edges.
type RouterRegistry map[string]Router

// LoadPipeline parses a YAML pipeline definition.
func LoadPipeline(data []byte) (*PipelineDef, error) {
	var def PipelineDef
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse pipeline YAML: %w", err)
	}
	return &def, nil
}

// LoadPipelineFile reads and parses a pipeline file.
func LoadPipelineFile(path string) (*PipelineDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline %s: %w", path, err)
	}
	return LoadPipeline(data)
}

// Validate checks referential integrity of the definition:
//   - pipeline name, start and at least one node are present
//   - node names and edge ids are unique
//   - every edge has exactly one shape and references known nodes
//   - backoff values parse as durations
//
// The error terminal may be referenced without being declared.
func (def *PipelineDef) Validate() error {
	if def.Pipeline == "" {
		return fmt.Errorf("pipeline name is required")
	}
	if len(def.Nodes) == 0 {
		return fmt.Errorf("at least one node is required")
	}
	if def.Start == "" {
		return fmt.Errorf("start node is required")
	}

	nodeSet := map[string]bool{ErrorNode: true}
	for _, n := range def.Nodes {
		if n.Name == "" {
			return fmt.Errorf("node name is required")
		}
		if nodeSet[n.Name] && n.Name != ErrorNode {
			return fmt.Errorf("duplicate node name %q", n.Name)
		}
		nodeSet[n.Name] = true
		if n.Backoff != "" {
			if _, err := time.ParseDuration(n.Backoff); err != nil {
				return fmt.Errorf("node %q backoff: %w", n.Name, err)
			}
		}
	}
	if !nodeSet[def.Start] {
		return fmt.Errorf("start node %q not found in node list", def.Start)
	}
	for _, n := range def.Nodes {
		if n.OnError != "" && !nodeSet[n.OnError] {
			return fmt.Errorf("node %q on_error references unknown node %q", n.Name, n.OnError)
		}
	}

	edgeIDs := make(map[string]bool, len(def.Edges))
	for _, e := range def.Edges {
		if e.ID == "" {
			return fmt.Errorf("edge id is required")
		}
		if edgeIDs[e.ID] {
			return fmt.Errorf("duplicate edge id %q", e.ID)
		}
		edgeIDs[e.ID] = true

		if !nodeSet[e.From] {
			return fmt.Errorf("edge %s references unknown source node %q", e.ID, e.From)
		}
		shapes := 0
		var targets []string
		if e.To != "" {
			shapes++
			targets = append(targets, e.To)
		}
		if e.Router != "" {
			shapes++
			if len(e.Routes) == 0 {
				return fmt.Errorf("edge %s declares router %q without routes", e.ID, e.Router)
			}
			for _, to := range e.Routes {
				targets = append(targets, to)
			}
		}
		if len(e.Parallel) > 0 {
			shapes++
			if e.Join == "" {
				return fmt.Errorf("edge %s declares parallel branches without join", e.ID)
			}
			targets = append(append(targets, e.Parallel...), e.Join)
		}
		if shapes != 1 {
			return fmt.Errorf("edge %s must declare exactly one of to, router or parallel", e.ID)
		}
		for _, to := range targets {
			if !nodeSet[to] {
				return fmt.Errorf("edge %s references unknown target node %q", e.ID, to)
			}
		}
	}
	return nil
}

// Build validates the definition, binds node functions and routers from the
// registries and compiles the graph. A declared error node without a
// registered function uses the built-in terminal.
func (def *PipelineDef) Build(nodes NodeRegistry, routers RouterRegistry, opts ...Option) (*Graph, error) {
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", def.Pipeline, err)
	}

	fwNodes := make([]Node, 0, len(def.Nodes))
	for _, nd := range def.Nodes {
		run, ok := nodes[nd.Name]
		if !ok {
			if nd.Name != ErrorNode {
				return nil, fmt.Errorf("pipeline %s: no implementation registered for node %q", def.Pipeline, nd.Name)
			}
			run = errorTerminal
		}
		var backoff time.Duration
		if nd.Backoff != "" {
			backoff, _ = time.ParseDuration(nd.Backoff)
		}
		fwNodes = append(fwNodes, Node{
			Name:       nd.Name,
			Run:        run,
			MaxRetries: nd.Retries,
			Backoff:    backoff,
			OnError:    nd.OnError,
		})
	}

	fwEdges := make([]Edge, 0, len(def.Edges))
	for _, ed := range def.Edges {
		var e Edge
		switch {
		case ed.Router != "":
			r, ok := routers[ed.Router]
			if !ok {
				return nil, fmt.Errorf("pipeline %s: edge %s uses unregistered router %q", def.Pipeline, ed.ID, ed.Router)
			}
			e = Branch(ed.From, r, ed.Routes)
		case len(ed.Parallel) > 0:
			e = Fork(ed.From, ed.Parallel, ed.Join)
		default:
			e = Then(ed.From, ed.To)
		}
		fwEdges = append(fwEdges, e.WithID(ed.ID, ed.Name))
	}

	return Compile(def.Pipeline, fwNodes, fwEdges, def.Start, opts...)
}
