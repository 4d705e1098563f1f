package framework

import (
	"context"
	"errors"
	"time"
)

// ErrorNode is the conventional failure terminal. Compile synthesises it
// when the caller does not declare one.
const ErrorNode = "error"

// MaxRetryLimit is the static ceiling on Node.MaxRetries.
const MaxRetryLimit = 10

// NodeFunc is a state transform: it reads the current State and returns a
// partial Update. It must not mutate values reachable from the State.
type NodeFunc func(ctx context.Context, s State) (Update, error)

// Node is a named unit of work in a Graph.
type Node struct {
	Name string
	Run  NodeFunc

	// MaxRetries bounds both in-place retries after an error and router
	// labels that target the node itself. Zero disables retry.
	MaxRetries int

	// Retryable decides whether an error is worth another attempt. Nil means
	// every error except those marked Permanent.
	Retryable func(error) bool

	// Backoff is slept between attempts, cut short by ctx cancellation.
	Backoff time.Duration

	// OnError is the failure edge target. Empty means ErrorNode.
	OnError string
}

func (n *Node) failTarget() string {
	if n.OnError == "" {
		return ErrorNode
	}
	return n.OnError
}

func (n *Node) retryable(err error) bool {
	var p *panicError
	if IsPermanent(err) || errors.As(err, &p) {
		return false
	}
	if n.Retryable != nil {
		return n.Retryable(err)
	}
	return true
}

// errorTerminal is the synthesised ErrorNode. The engine has already written
// the error and stage fields, so there is nothing left to add.
func errorTerminal(_ context.Context, _ State) (Update, error) {
	return nil, nil
}
