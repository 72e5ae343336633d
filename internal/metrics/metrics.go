// Package metrics exposes Prometheus instrumentation for patch runs,
// namespaced "gearforge_" and scoped to the events this engine actually
// emits (no merge/backpressure metrics: this engine has no concurrent
// scheduler to report on).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus series for one patch engine instance.
type Metrics struct {
	runsInflight  prometheus.Gauge
	nodeLatencyMs *prometheus.HistogramVec
	nodeErrors    *prometheus.CounterVec
	forwardFails  *prometheus.CounterVec
}

// New registers all metrics with registry. Pass prometheus.DefaultRegisterer
// to expose on the global registry, or a fresh prometheus.NewRegistry()
// for isolation in tests.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		runsInflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "gearforge",
			Name:      "runs_inflight",
			Help:      "Number of patch runs currently executing",
		}),
		nodeLatencyMs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gearforge",
			Name:      "node_latency_ms",
			Help:      "Per-node execution duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"node_kind", "status"}),
		nodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gearforge",
			Name:      "node_errors_total",
			Help:      "Cumulative node execution failures",
		}, []string{"node_kind"}),
		forwardFails: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gearforge",
			Name:      "gear_forward_failures_total",
			Help:      "Cumulative failed POSTs while fanning a gear's output out to its configured URLs",
		}, []string{"gear_id"}),
	}
}

func (m *Metrics) RunStarted()   { m.runsInflight.Inc() }
func (m *Metrics) RunCompleted() { m.runsInflight.Dec() }

func (m *Metrics) RecordNodeLatency(nodeKind, status string, d time.Duration) {
	m.nodeLatencyMs.WithLabelValues(nodeKind, status).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) RecordNodeError(nodeKind string) {
	m.nodeErrors.WithLabelValues(nodeKind).Inc()
}

func (m *Metrics) RecordForwardFailure(gearID string) {
	m.forwardFails.WithLabelValues(gearID).Inc()
}
