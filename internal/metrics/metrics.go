// Package metrics exposes Prometheus instruments for reconstruction and
// query execution.
//
// All recording methods accept a nil *Metrics, so components can be built
// without instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "timeagnostic"

// Reconstruction outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeCached = "cached"
	OutcomeError  = "error"
)

// Metrics holds the Prometheus instruments.
//
// Thread Safety: Safe for concurrent use (Prometheus metrics are thread-safe).
type Metrics struct {
	// ReconstructionsTotal counts entity reconstructions by outcome.
	ReconstructionsTotal *prometheus.CounterVec

	// ReconstructionSeconds measures the time to rebuild one history.
	ReconstructionSeconds prometheus.Histogram

	// SnapshotsReplayed counts inverted deltas applied.
	SnapshotsReplayed prometheus.Counter

	// QueriesTotal counts query executions by error code ("" on success).
	QueriesTotal *prometheus.CounterVec

	// ResolutionRounds observes the rounds each query needed.
	ResolutionRounds prometheus.Histogram

	// WarningsTotal counts warnings attached to query results.
	WarningsTotal prometheus.Counter
}

// New creates the instruments and registers them with reg. A nil reg
// registers with the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		ReconstructionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "history",
				Name:      "reconstructions_total",
				Help:      "Entity history reconstructions by outcome",
			},
			[]string{"outcome"},
		),
		ReconstructionSeconds: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "history",
				Name:      "reconstruction_seconds",
				Help:      "Time to reconstruct one entity history",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		SnapshotsReplayed: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "history",
				Name:      "snapshots_replayed_total",
				Help:      "Inverted deltas applied while rebuilding past states",
			},
		),
		QueriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "query",
				Name:      "executions_total",
				Help:      "Time-agnostic query executions by error code",
			},
			[]string{"code"},
		),
		ResolutionRounds: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "query",
				Name:      "resolution_rounds",
				Help:      "Variable resolution rounds per query",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34, 64},
			},
		),
		WarningsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "query",
				Name:      "warnings_total",
				Help:      "Warnings attached to query results",
			},
		),
	}
}

// ObserveReconstruction records one reconstruction.
func (m *Metrics) ObserveReconstruction(outcome string, replayed int, d time.Duration) {
	if m == nil {
		return
	}
	m.ReconstructionsTotal.WithLabelValues(outcome).Inc()
	m.ReconstructionSeconds.Observe(d.Seconds())
	m.SnapshotsReplayed.Add(float64(replayed))
}

// ObserveQuery records one query execution.
func (m *Metrics) ObserveQuery(code string, rounds, warnings int) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(code).Inc()
	m.ResolutionRounds.Observe(float64(rounds))
	m.WarningsTotal.Add(float64(warnings))
}
