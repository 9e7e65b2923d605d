package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ScoreMetrics instruments the CLE submission pipeline.
type ScoreMetrics interface {
	OperationMetrics
	RecordSubmission(ctx context.Context, kind, outcome string)
	RecordIntegrityFlag(ctx context.Context, reason string)
	RecordSimulatorRun(ctx context.Context, d time.Duration, failed bool)
	RecordForward(ctx context.Context, method string, failed bool)
}

type scoreMetrics struct {
	operationMetrics
	submissions *prometheus.CounterVec
	flags       *prometheus.CounterVec
	simulator   *prometheus.HistogramVec
	forwards    *prometheus.CounterVec
}

// NewScoreMetrics registers the score instruments on reg.
func NewScoreMetrics(reg prometheus.Registerer) ScoreMetrics {
	f := promauto.With(reg)
	return &scoreMetrics{
		operationMetrics: newOperationMetrics(f, "score"),
		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "score",
			Name: "submissions_total", Help: "Score submissions by outcome.",
		}, []string{"kind", "outcome"}),
		flags: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "score",
			Name: "integrity_flags_total", Help: "Scores flagged for operator review.",
		}, []string{"reason"}),
		simulator: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "score",
			Name: "simulator_duration_seconds", Help: "Simulator subprocess latency.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"result"}),
		forwards: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "score",
			Name: "upstream_forwards_total", Help: "Requests forwarded to the upstream server.",
		}, []string{"method", "result"}),
	}
}

func (m *scoreMetrics) RecordSubmission(_ context.Context, kind, outcome string) {
	m.submissions.WithLabelValues(kind, outcome).Inc()
}

func (m *scoreMetrics) RecordIntegrityFlag(_ context.Context, reason string) {
	m.flags.WithLabelValues(reason).Inc()
}

func (m *scoreMetrics) RecordSimulatorRun(_ context.Context, d time.Duration, failed bool) {
	result := "ok"
	if failed {
		result = "error"
	}
	m.simulator.WithLabelValues(result).Observe(d.Seconds())
}

func (m *scoreMetrics) RecordForward(_ context.Context, method string, failed bool) {
	result := "ok"
	if failed {
		result = "error"
	}
	m.forwards.WithLabelValues(method, result).Inc()
}
