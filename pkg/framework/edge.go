package framework

import "fmt"

// EdgeKind distinguishes the three transition shapes.
type EdgeKind int

const (
	// EdgeDirect always moves From -> To.
	EdgeDirect EdgeKind = iota
	// EdgeConditional asks Router for a label and looks it up in Routes.
	EdgeConditional
	// EdgeFork runs Branches concurrently, then continues at Join.
	EdgeFork
)

// Router picks an outgoing label from the merged state. It must be a
// deterministic function of the state alone.
type Router func(s State) string

// Edge is the single outgoing transition declared for a node.
type Edge struct {
	ID   string
	Name string
	Kind EdgeKind
	From string

	To string // EdgeDirect

	Router Router            // EdgeConditional
	Routes map[string]string // label -> target

	Branches []string // EdgeFork
	Join     string
}

// Then declares an unconditional edge.
func Then(from, to string) Edge {
	return Edge{ID: from + "->" + to, Kind: EdgeDirect, From: from, To: to}
}

// Branch declares a conditional edge.
func Branch(from string, router Router, routes map[string]string) Edge {
	return Edge{ID: from + "?", Kind: EdgeConditional, From: from, Router: router, Routes: routes}
}

// Fork declares a fan-out of branches that are joined before join runs.
func Fork(from string, branches []string, join string) Edge {
	return Edge{ID: from + "=>", Kind: EdgeFork, From: from, Branches: branches, Join: join}
}

// WithID returns a copy of e with the given machine id and human name.
func (e Edge) WithID(id, name string) Edge {
	e.ID = id
	e.Name = name
	return e
}

// targets lists every node the edge may transition to.
func (e Edge) targets() []string {
	switch e.Kind {
	case EdgeConditional:
		out := make([]string, 0, len(e.Routes))
		for _, to := range e.Routes {
			out = append(out, to)
		}
		return out
	case EdgeFork:
		return append(append([]string{}, e.Branches...), e.Join)
	default:
		return []string{e.To}
	}
}

// Transition records which edge fired and why.
type Transition struct {
	EdgeID   string
	Label    string
	NextNode string
}

// resolve picks the next node for a direct or conditional edge.
func (e Edge) resolve(s State) (Transition, error) {
	switch e.Kind {
	case EdgeDirect:
		return Transition{EdgeID: e.ID, NextNode: e.To}, nil
	case EdgeConditional:
		label := e.Router(s)
		to, ok := e.Routes[label]
		if !ok {
			return Transition{EdgeID: e.ID, Label: label}, fmt.Errorf("%w: %q from %s", ErrUnknownRoute, label, e.From)
		}
		return Transition{EdgeID: e.ID, Label: label, NextNode: to}, nil
	default:
		return Transition{EdgeID: e.ID, NextNode: e.Join}, nil
	}
}
