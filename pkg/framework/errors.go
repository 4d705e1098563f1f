package framework

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNodeNotFound is returned when a referenced node does not exist in the graph.
	ErrNodeNotFound = errors.New("framework: node not found")

	// ErrDuplicateNode is returned when two nodes share a name.
	ErrDuplicateNode = errors.New("framework: duplicate node")

	// ErrInvalidGraph is returned for structural problems that are not covered
	// by a more specific sentinel (missing entry, empty routes, bad fork).
	ErrInvalidGraph = errors.New("framework: invalid graph")

	// ErrCycle is returned when the graph contains a cycle other than a bounded
	// retry self-edge.
	ErrCycle = errors.New("framework: cycle detected")

	// ErrUnboundedLoop is returned when a node routes to itself without a
	// MaxRetries bound.
	ErrUnboundedLoop = errors.New("framework: self-edge without retry bound")

	// ErrUnreachable is returned when a node cannot be reached from the entry.
	ErrUnreachable = errors.New("framework: unreachable node")

	// ErrUnknownRoute is recorded when a router returns a label with no edge.
	ErrUnknownRoute = errors.New("framework: router returned unknown label")

	// ErrMaxRetries is recorded when a node exhausts its retry budget.
	ErrMaxRetries = errors.New("framework: max retries exceeded")

	// ErrMaxSteps is recorded when a run exceeds the configured step guard.
	ErrMaxSteps = errors.New("framework: max steps exceeded")
)

// permanentError marks an error as not worth retrying.
type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so the engine never retries it. Validation failures
// use this to route straight to the node's failure edge.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err (or anything it wraps) was marked Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// retryExhausted reports the last cause after a node used up its retries.
// It matches ErrMaxRetries under errors.Is.
type retryExhausted struct {
	limit int
	cause error
}

func (r *retryExhausted) Error() string {
	return fmt.Sprintf("max retries (%d) exceeded: %v", r.limit, r.cause)
}

func (r *retryExhausted) Unwrap() error        { return r.cause }
func (r *retryExhausted) Is(target error) bool { return target == ErrMaxRetries }

// RunError describes a run that ended with a recorded error.
type RunError struct {
	TraceID string
	Stage   string
	Node    string
	Kind    string
	Message string
}

func (e *RunError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("workflow failed at %s (%s): %s", e.Node, e.Kind, e.Message)
	}
	return fmt.Sprintf("workflow failed at %s: %s", e.Stage, e.Message)
}

// Is lets cancelled runs match context.Canceled.
func (e *RunError) Is(target error) bool {
	return e.Kind == KindCancelled && target == context.Canceled
}

// ErrorOf returns a *RunError when s carries an error, nil otherwise.
func ErrorOf(s State) error {
	if s.Err() == "" {
		return nil
	}
	meta := s.Metadata()
	node, _ := meta["failed_node"].(string)
	kind, _ := meta[MetaErrorKind].(string)
	return &RunError{TraceID: s.TraceID(), Stage: s.Stage(), Node: node, Kind: kind, Message: s.Err()}
}
