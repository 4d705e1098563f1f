package framework

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Error kinds recorded under metadata.error_kind.
const (
	KindValidation    = "validation"
	KindTransient     = "transient"
	KindConfiguration = "configuration"
	KindPanic         = "panic"
	KindCancelled     = "cancelled"
	KindNode          = "node"
)

// MetaErrorKind is the metadata key that classifies a recorded error.
const MetaErrorKind = "error_kind"

// CancelledMessage is written to the error field when ctx is cancelled.
const CancelledMessage = "cancelled"

// panicError carries a recovered node panic.
type panicError struct{ value any }

func (p *panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }

// nodeFailure is the outcome of executing a node, including its retries.
type nodeFailure struct {
	node    *Node
	err     error
	retries int
	kind    string
}

// Run executes the graph from its entry against initial and returns the
// final state. It never returns a Go error and never panics on node
// failure: the returned state carries either a result or an error.
func (g *Graph) Run(ctx context.Context, initial State) State {
	obs := g.observer
	state := initial
	if state.TraceID() == "" {
		state = g.schema.Merge(state, Update{KeyTraceID: uuid.NewString()})
	}

	current := g.entry
	for step := 0; ; step++ {
		if ctx.Err() != nil {
			return g.cancelled(state, obs)
		}
		if step >= g.maxSteps {
			err := fmt.Errorf("%w: %d at node %q", ErrMaxSteps, g.maxSteps, current)
			emitEvent(obs, WalkEvent{Type: EventWalkError, Node: current, Error: err})
			return g.merge(state, Update{KeyStage: ErrorNode, KeyError: err.Error(), KeyMetadata: map[string]any{MetaErrorKind: KindConfiguration}})
		}

		node := g.nodeIndex[current]
		state = g.merge(state, Update{KeyStage: current})

		var fail *nodeFailure
		state, fail = g.execute(ctx, node, state)
		if fail == nil && ctx.Err() != nil {
			return g.cancelled(state, obs)
		}
		if fail != nil {
			if fail.kind == KindCancelled {
				return g.cancelled(state, obs)
			}
			state = g.recordFailure(state, fail)
			if current == ErrorNode {
				return g.finish(state, current, obs)
			}
			current = g.fail(current, fail, obs)
			continue
		}

		edge, ok := g.edgeIndex[current]
		if !ok {
			return g.finish(state, current, obs)
		}

		if edge.Kind == EdgeFork {
			state, fail = g.fork(ctx, edge, state)
			if fail != nil {
				if fail.kind == KindCancelled {
					return g.cancelled(state, obs)
				}
				state = g.recordFailure(state, fail)
				current = g.fail(fail.node.Name, fail, obs)
				continue
			}
			emitEvent(obs, WalkEvent{Type: EventTransition, Node: current, Edge: edge.ID, Metadata: map[string]any{"next": edge.Join}})
			current = edge.Join
			continue
		}

		next, err := g.route(edge, state)
		if err != nil {
			emitEvent(obs, WalkEvent{Type: EventNodeError, Node: current, Edge: edge.ID, Error: err})
			state = g.merge(state, Update{KeyError: err.Error(), KeyMetadata: map[string]any{MetaErrorKind: KindConfiguration, "failed_node": current}})
			current = ErrorNode
			continue
		}
		if next.NextNode == current {
			retries := state.Retries(current)
			if retries >= node.MaxRetries {
				fail := &nodeFailure{node: node, retries: retries, kind: KindTransient,
					err: &retryExhausted{limit: node.MaxRetries, cause: fmt.Errorf("router %s requested retry", edge.ID)}}
				state = g.recordFailure(state, fail)
				current = g.fail(current, fail, obs)
				continue
			}
			state = g.merge(state, Update{KeyRetries: map[string]int{current: retries + 1}})
			emitEvent(obs, WalkEvent{Type: EventRetry, Node: current, Edge: edge.ID, Attempt: retries + 1})
			if err := sleepCtx(ctx, node.Backoff); err != nil {
				return g.cancelled(state, obs)
			}
			continue
		}
		emitEvent(obs, WalkEvent{Type: EventTransition, Node: current, Edge: edge.ID, Metadata: map[string]any{"label": next.Label, "next": next.NextNode}})
		current = next.NextNode
	}
}

func (g *Graph) merge(s State, u Update) State { return g.schema.Merge(s, u) }

// route resolves a direct or conditional edge, turning a router panic into
// a configuration error.
func (g *Graph) route(e Edge, s State) (t Transition, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("router %s: %w", e.ID, &panicError{value: r})
		}
	}()
	return e.resolve(s)
}

// execute runs node with in-place retries and folds the successful update
// into the state.
func (g *Graph) execute(ctx context.Context, node *Node, state State) (State, *nodeFailure) {
	upd, fail := g.attempt(ctx, node, state)
	if fail != nil {
		if fail.retries > 0 {
			state = g.merge(state, Update{KeyRetries: map[string]int{node.Name: fail.retries}})
		}
		return state, fail
	}
	return g.merge(state, upd), nil
}

// attempt calls node.Run until it succeeds, fails permanently or exhausts
// MaxRetries. The returned update includes the retry count when retries
// happened. It reads, but never writes, state, so branches may call it
// concurrently.
func (g *Graph) attempt(ctx context.Context, node *Node, state State) (Update, *nodeFailure) {
	obs := g.observer
	retries := state.Retries(node.Name)
	for {
		emitEvent(obs, WalkEvent{Type: EventNodeEnter, Node: node.Name, Attempt: retries})
		start := time.Now()
		upd, err := safeRun(ctx, node, state)
		elapsed := time.Since(start)
		if err == nil {
			emitEvent(obs, WalkEvent{Type: EventNodeExit, Node: node.Name, Attempt: retries, Elapsed: elapsed})
			if retries > state.Retries(node.Name) {
				if upd == nil {
					upd = Update{}
				}
				retryUpd := make(Update, len(upd)+1)
				for k, v := range upd {
					retryUpd[k] = v
				}
				retryUpd[KeyRetries] = map[string]int{node.Name: retries}
				upd = retryUpd
			}
			return upd, nil
		}
		emitEvent(obs, WalkEvent{Type: EventNodeExit, Node: node.Name, Attempt: retries, Elapsed: elapsed, Error: err})

		if ctx.Err() != nil {
			return nil, &nodeFailure{node: node, err: err, retries: retries, kind: KindCancelled}
		}
		if !node.retryable(err) || node.MaxRetries == 0 {
			return nil, &nodeFailure{node: node, err: err, retries: retries, kind: failureKind(node, err)}
		}
		if retries >= node.MaxRetries {
			return nil, &nodeFailure{node: node, retries: retries, kind: KindTransient,
				err: &retryExhausted{limit: node.MaxRetries, cause: err}}
		}
		retries++
		emitEvent(obs, WalkEvent{Type: EventRetry, Node: node.Name, Attempt: retries, Error: err})
		if sleepCtx(ctx, node.Backoff) != nil {
			return nil, &nodeFailure{node: node, err: err, retries: retries, kind: KindCancelled}
		}
	}
}

func failureKind(node *Node, err error) string {
	var p *panicError
	switch {
	case errors.As(err, &p):
		return KindPanic
	case IsPermanent(err):
		return KindValidation
	case node.MaxRetries > 0:
		return KindTransient
	default:
		return KindNode
	}
}

// safeRun invokes the node and converts a panic into an error.
func safeRun(ctx context.Context, node *Node, state State) (upd Update, err error) {
	defer func() {
		if r := recover(); r != nil {
			upd, err = nil, &panicError{value: r}
		}
	}()
	return node.Run(ctx, state)
}

// fork runs every branch against the same snapshot, waits for all of them
// and merges their updates in declaration order. The first failure in
// declaration order is reported only after every branch has settled.
func (g *Graph) fork(ctx context.Context, e Edge, state State) (State, *nodeFailure) {
	emitEvent(g.observer, WalkEvent{Type: EventFork, Node: e.From, Edge: e.ID, Metadata: map[string]any{"branches": e.Branches}})

	updates := make([]Update, len(e.Branches))
	failures := make([]*nodeFailure, len(e.Branches))
	var eg errgroup.Group
	for i, name := range e.Branches {
		node := g.nodeIndex[name]
		branchState := g.merge(state, Update{KeyStage: name})
		eg.Go(func() error {
			updates[i], failures[i] = g.attempt(ctx, node, branchState)
			return nil
		})
	}
	_ = eg.Wait() // failures are collected per branch

	for i, name := range e.Branches {
		if failures[i] != nil {
			u := Update{KeyStage: name, KeyMetadata: map[string]any{"failed_node": name}}
			if failures[i].retries > 0 {
				u[KeyRetries] = map[string]int{name: failures[i].retries}
			}
			return g.merge(state, u), failures[i]
		}
	}
	for _, u := range updates {
		state = g.merge(state, u)
	}
	return g.merge(state, Update{KeyStage: e.Join}), nil
}

// recordFailure writes the error message and its kind into the state.
func (g *Graph) recordFailure(s State, f *nodeFailure) State {
	return g.merge(s, Update{
		KeyError:    fmt.Sprintf("%s: %v", f.node.Name, f.err),
		KeyMetadata: map[string]any{MetaErrorKind: f.kind, "failed_node": f.node.Name},
	})
}

// fail emits the node_error event and returns the failure edge target. The
// run's single walk_error is emitted by finish once a terminal is reached.
func (g *Graph) fail(from string, f *nodeFailure, obs WalkObserver) string {
	emitEvent(obs, WalkEvent{Type: EventNodeError, Node: from, Attempt: f.retries, Error: f.err})
	return f.node.failTarget()
}

func (g *Graph) finish(s State, node string, obs WalkObserver) State {
	if node == ErrorNode && s.Err() == "" {
		s = g.merge(s, Update{KeyError: "workflow routed to error terminal"})
	}
	if s.Err() == "" && !s.Has(KeyResult) {
		s = g.merge(s, Update{
			KeyError:    fmt.Sprintf("terminal node %q produced no result", node),
			KeyMetadata: map[string]any{MetaErrorKind: KindConfiguration},
		})
	}
	if s.Err() != "" {
		emitEvent(obs, WalkEvent{Type: EventWalkError, Node: node, Error: errors.New(s.Err()), Metadata: failedNode(s)})
	} else {
		emitEvent(obs, WalkEvent{Type: EventWalkComplete, Node: node})
	}
	return s
}

func (g *Graph) cancelled(s State, obs WalkObserver) State {
	emitEvent(obs, WalkEvent{Type: EventWalkError, Node: s.Stage(), Error: context.Canceled, Metadata: failedNode(s)})
	return g.merge(s, Update{KeyError: CancelledMessage, KeyMetadata: map[string]any{MetaErrorKind: KindCancelled}})
}

// failedNode carries the recorded failed_node, if any, into a walk_error.
func failedNode(s State) map[string]any {
	if n, ok := s.Metadata()["failed_node"].(string); ok {
		return map[string]any{"failed_node": n}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
