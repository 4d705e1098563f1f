package framework

import (
	"fmt"
	"sort"
)

// DefaultMaxSteps guards runs against a misbehaving graph. Compile already
// rejects unbounded cycles; this is a second line.
const DefaultMaxSteps = 100

// Graph is a compiled, immutable workflow. It is safe to share across
// goroutines and to Run concurrently; per-run state never lives on the Graph.
type Graph struct {
	name      string
	entry     string
	nodes     []*Node
	edges     []Edge
	nodeIndex map[string]*Node
	edgeIndex map[string]Edge // from-node -> its single outgoing edge
	schema    Schema
	observer  WalkObserver
	maxSteps  int
}

// Option configures a Graph during Compile.
type Option func(*Graph)

// WithSchema sets the per-field merge policies.
func WithSchema(s Schema) Option {
	return func(g *Graph) { g.schema = s }
}

// WithObserver attaches an observer that receives every walk event.
func WithObserver(obs WalkObserver) Option {
	return func(g *Graph) { g.observer = obs }
}

// WithMaxSteps overrides DefaultMaxSteps.
func WithMaxSteps(n int) Option {
	return func(g *Graph) { g.maxSteps = n }
}

// Compile validates nodes and edges and returns an executable Graph.
// All configuration problems are reported here, never during Run, except
// a router returning a label it did not declare.
func Compile(name string, nodes []Node, edges []Edge, entry string, opts ...Option) (*Graph, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: graph name is required", ErrInvalidGraph)
	}
	g := &Graph{
		name:      name,
		entry:     entry,
		nodeIndex: make(map[string]*Node, len(nodes)+1),
		edgeIndex: make(map[string]Edge, len(edges)),
		schema:    Schema{},
		maxSteps:  DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(g)
	}

	for i := range nodes {
		n := nodes[i]
		if n.Name == "" {
			return nil, fmt.Errorf("%w: node name is required", ErrInvalidGraph)
		}
		if n.Run == nil {
			return nil, fmt.Errorf("%w: node %q has no Run func", ErrInvalidGraph, n.Name)
		}
		if _, dup := g.nodeIndex[n.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateNode, n.Name)
		}
		if n.MaxRetries < 0 || n.MaxRetries > MaxRetryLimit {
			return nil, fmt.Errorf("%w: node %q retries %d outside [0,%d]", ErrInvalidGraph, n.Name, n.MaxRetries, MaxRetryLimit)
		}
		g.nodes = append(g.nodes, &n)
		g.nodeIndex[n.Name] = &n
	}
	if _, ok := g.nodeIndex[ErrorNode]; !ok {
		errNode := &Node{Name: ErrorNode, Run: errorTerminal}
		g.nodes = append(g.nodes, errNode)
		g.nodeIndex[ErrorNode] = errNode
	}

	if entry == "" {
		return nil, fmt.Errorf("%w: entry node is required", ErrInvalidGraph)
	}
	if _, ok := g.nodeIndex[entry]; !ok {
		return nil, fmt.Errorf("%w: entry %q", ErrNodeNotFound, entry)
	}

	for _, e := range edges {
		if err := g.addEdge(e); err != nil {
			return nil, err
		}
	}
	for _, n := range g.nodes {
		if n.OnError != "" {
			if _, ok := g.nodeIndex[n.OnError]; !ok {
				return nil, fmt.Errorf("%w: node %q on_error target %q", ErrNodeNotFound, n.Name, n.OnError)
			}
		}
	}
	if err := g.checkForks(); err != nil {
		return nil, err
	}
	if err := g.checkCycles(); err != nil {
		return nil, err
	}
	if err := g.checkReachable(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) addEdge(e Edge) error {
	if _, ok := g.nodeIndex[e.From]; !ok {
		return fmt.Errorf("%w: edge %s references source %q", ErrNodeNotFound, e.ID, e.From)
	}
	if _, dup := g.edgeIndex[e.From]; dup {
		return fmt.Errorf("%w: node %q declares more than one outgoing edge", ErrInvalidGraph, e.From)
	}
	switch e.Kind {
	case EdgeConditional:
		if e.Router == nil {
			return fmt.Errorf("%w: edge %s has no router", ErrInvalidGraph, e.ID)
		}
		if len(e.Routes) == 0 {
			return fmt.Errorf("%w: edge %s has no routes", ErrInvalidGraph, e.ID)
		}
	case EdgeFork:
		if len(e.Branches) < 2 {
			return fmt.Errorf("%w: fork %s needs at least two branches", ErrInvalidGraph, e.ID)
		}
		seen := make(map[string]bool, len(e.Branches))
		for _, b := range e.Branches {
			if seen[b] || b == e.From || b == e.Join {
				return fmt.Errorf("%w: fork %s repeats node %q", ErrInvalidGraph, e.ID, b)
			}
			seen[b] = true
		}
	}
	for _, to := range e.targets() {
		if _, ok := g.nodeIndex[to]; !ok {
			return fmt.Errorf("%w: edge %s references target %q", ErrNodeNotFound, e.ID, to)
		}
		if to == e.From && g.nodeIndex[e.From].MaxRetries == 0 {
			return fmt.Errorf("%w: node %q", ErrUnboundedLoop, e.From)
		}
	}
	g.edges = append(g.edges, e)
	g.edgeIndex[e.From] = e
	return nil
}

// checkForks rejects branch nodes that carry their own outgoing edge: the
// engine joins branches itself, so such an edge would never fire.
func (g *Graph) checkForks() error {
	for _, e := range g.edges {
		if e.Kind != EdgeFork {
			continue
		}
		for _, b := range e.Branches {
			if _, has := g.edgeIndex[b]; has {
				return fmt.Errorf("%w: fork branch %q declares its own outgoing edge", ErrInvalidGraph, b)
			}
		}
	}
	return nil
}

// successors lists transitions out of name, excluding bounded self-edges.
func (g *Graph) successors(name string) []string {
	var out []string
	if e, ok := g.edgeIndex[name]; ok {
		for _, to := range e.targets() {
			if to != name {
				out = append(out, to)
			}
		}
	}
	n := g.nodeIndex[name]
	if name != ErrorNode && n.failTarget() != name {
		out = append(out, n.failTarget())
	}
	sort.Strings(out)
	return out
}

func (g *Graph) checkCycles() error {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.nodes))
	var visit func(string) error
	visit = func(name string) error {
		color[name] = grey
		for _, next := range g.successors(name) {
			switch color[next] {
			case grey:
				return fmt.Errorf("%w: %s -> %s", ErrCycle, name, next)
			case white:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		color[name] = black
		return nil
	}
	for _, n := range g.nodes {
		if color[n.Name] == white {
			if err := visit(n.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Graph) checkReachable() error {
	seen := map[string]bool{g.entry: true}
	queue := []string{g.entry}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.successors(cur) {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	for _, n := range g.nodes {
		if !seen[n.Name] {
			return fmt.Errorf("%w: %q", ErrUnreachable, n.Name)
		}
	}
	return nil
}

func (g *Graph) Name() string   { return g.name }
func (g *Graph) Entry() string  { return g.entry }
func (g *Graph) Edges() []Edge  { return g.edges }
func (g *Graph) Schema() Schema { return g.schema }

// Nodes returns node names in declaration order, the synthesised error
// terminal last.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.Name
	}
	return out
}

// NodeByName returns a copy of the named node.
func (g *Graph) NodeByName(name string) (Node, bool) {
	n, ok := g.nodeIndex[name]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// EdgeFrom returns the outgoing edge of name; false for terminal nodes.
func (g *Graph) EdgeFrom(name string) (Edge, bool) {
	e, ok := g.edgeIndex[name]
	return e, ok
}

// IsTerminal reports whether name has no outgoing edge.
func (g *Graph) IsTerminal(name string) bool {
	_, ok := g.edgeIndex[name]
	return !ok
}
