package framework

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// WalkEventType classifies walk events for filtering and routing.
type WalkEventType string

const (
	EventNodeEnter    WalkEventType = "node_enter"
	EventNodeExit     WalkEventType = "node_exit"
	EventTransition   WalkEventType = "transition"
	EventRetry        WalkEventType = "retry"
	EventFork         WalkEventType = "fork"
	EventWalkComplete WalkEventType = "walk_complete"
	EventNodeError    WalkEventType = "node_error"
	EventWalkError    WalkEventType = "walk_error"
)

// WalkEvent is a single observation from a run. Metadata carries
// event-specific extras such as the routed label or the fork branches.
type WalkEvent struct {
	Type     WalkEventType
	Node     string
	Edge     string
	Attempt  int
	Elapsed  time.Duration
	Error    error
	Metadata map[string]any
}

// WalkObserver receives events during a run. Events from fork branches may
// arrive concurrently, so implementations must be safe for concurrent use.
type WalkObserver interface {
	OnEvent(WalkEvent)
}

// WalkObserverFunc adapts a plain function to the WalkObserver interface.
type WalkObserverFunc func(WalkEvent)

func (f WalkObserverFunc) OnEvent(e WalkEvent) { f(e) }

// MultiObserver fans out events to multiple observers.
type MultiObserver []WalkObserver

func (m MultiObserver) OnEvent(e WalkEvent) {
	for _, obs := range m {
		if obs != nil {
			obs.OnEvent(e)
		}
	}
}

// LogObserver writes walk events as structured slog lines.
type LogObserver struct {
	Logger *slog.Logger
}

func (o *LogObserver) OnEvent(e WalkEvent) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []slog.Attr{slog.String("event", string(e.Type))}
	if e.Node != "" {
		attrs = append(attrs, slog.String("node", e.Node))
	}
	if e.Edge != "" {
		attrs = append(attrs, slog.String("edge", e.Edge))
	}
	if e.Attempt > 0 {
		attrs = append(attrs, slog.Int("attempt", e.Attempt))
	}
	if e.Elapsed > 0 {
		attrs = append(attrs, slog.Duration("elapsed", e.Elapsed))
	}
	if next, ok := e.Metadata["next"].(string); ok {
		attrs = append(attrs, slog.String("next", next))
	}
	if e.Error != nil {
		attrs = append(attrs, slog.String("error", e.Error.Error()))
	}

	level := slog.LevelDebug
	switch e.Type {
	case EventWalkError, EventNodeError, EventRetry:
		level = slog.LevelWarn
	case EventWalkComplete:
		level = slog.LevelInfo
	}
	logger.LogAttrs(context.Background(), level, "walk", attrs...)
}

// TraceCollector accumulates walk events in memory for post-run analysis.
// Safe for concurrent use.
type TraceCollector struct {
	mu     sync.Mutex
	events []WalkEvent
}

func (t *TraceCollector) OnEvent(e WalkEvent) {
	t.mu.Lock()
	t.events = append(t.events, e)
	t.mu.Unlock()
}

// Events returns a copy of all collected events.
func (t *TraceCollector) Events() []WalkEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]WalkEvent, len(t.events))
	copy(out, t.events)
	return out
}

// Reset clears collected events.
func (t *TraceCollector) Reset() {
	t.mu.Lock()
	t.events = nil
	t.mu.Unlock()
}

// EventsOfType returns only events matching the given type.
func (t *TraceCollector) EventsOfType(typ WalkEventType) []WalkEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []WalkEvent
	for _, e := range t.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// Visited returns the node_enter sequence, one entry per attempt.
func (t *TraceCollector) Visited() []string {
	var out []string
	for _, e := range t.EventsOfType(EventNodeEnter) {
		out = append(out, e.Node)
	}
	return out
}

func emitEvent(obs WalkObserver, e WalkEvent) {
	if obs != nil {
		obs.OnEvent(e)
	}
}
