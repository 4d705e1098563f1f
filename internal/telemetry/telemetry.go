// Package telemetry exports workflow activity as Prometheus metrics.
package telemetry

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ledgerflow/pkg/framework"
)

const namespace = "ledgerflow"

// Metrics owns a private registry so tests and embedded servers do not
// collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	nodeDuration *prometheus.HistogramVec
	retries      *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	walks        *prometheus.CounterVec
	walkErrors   *prometheus.CounterVec
	nodeErrors   *prometheus.CounterVec
	intents      *prometheus.CounterVec
	discrepancy  *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Duration of a single node attempt.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"pipeline", "node", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_retries_total",
			Help:      "Node retries, in place or via a self route.",
		}, []string{"pipeline", "node"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Edges taken.",
		}, []string{"pipeline", "edge"}),
		walks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "walks_completed_total",
			Help:      "Runs that reached a terminal node with a result.",
		}, []string{"pipeline"}),
		walkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "walk_errors_total",
			Help:      "Runs that ended in error, by the node that failed.",
		}, []string{"pipeline", "node"}),
		nodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_errors_total",
			Help:      "Node failures that sent a run down its failure edge.",
		}, []string{"pipeline", "node"}),
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_routed_total",
			Help:      "Messages routed, by intent and classification source.",
		}, []string{"intent", "source"}),
		discrepancy: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discrepancies_total",
			Help:      "Reconciliation discrepancies, by type and severity.",
		}, []string{"type", "severity"}),
	}
	for _, c := range []prometheus.Collector{m.nodeDuration, m.retries, m.transitions, m.walks, m.walkErrors, m.nodeErrors, m.intents, m.discrepancy} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return m, nil
}

// Registry exposes the registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observer returns a WalkObserver that labels events with pipeline.
func (m *Metrics) Observer(pipeline string) framework.WalkObserver {
	return framework.WalkObserverFunc(func(e framework.WalkEvent) {
		switch e.Type {
		case framework.EventNodeExit:
			outcome := "ok"
			if e.Error != nil {
				outcome = "error"
			}
			m.nodeDuration.WithLabelValues(pipeline, e.Node, outcome).Observe(e.Elapsed.Seconds())
		case framework.EventRetry:
			m.retries.WithLabelValues(pipeline, e.Node).Inc()
		case framework.EventTransition:
			m.transitions.WithLabelValues(pipeline, e.Edge).Inc()
		case framework.EventWalkComplete:
			m.walks.WithLabelValues(pipeline).Inc()
		case framework.EventNodeError:
			m.nodeErrors.WithLabelValues(pipeline, e.Node).Inc()
		case framework.EventWalkError:
			node := e.Node
			if n, ok := e.Metadata["failed_node"].(string); ok {
				node = n
			}
			m.walkErrors.WithLabelValues(pipeline, node).Inc()
		}
	})
}

// IntentRouted counts one routed message.
func (m *Metrics) IntentRouted(intent, source string) {
	m.intents.WithLabelValues(intent, source).Inc()
}

// Discrepancy counts one reconciliation discrepancy.
func (m *Metrics) Discrepancy(typ, severity string) {
	m.discrepancy.WithLabelValues(typ, severity).Inc()
}
