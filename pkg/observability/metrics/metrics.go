// Package metrics defines the Prometheus instruments of each module and a
// no-op implementation for tests and tooling.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "inne"

// OperationMetrics tracks service operations wrapped by the telemetry helpers.
type OperationMetrics interface {
	RecordOperationAttempt(ctx context.Context, operation string)
	RecordOperationSuccess(ctx context.Context, operation string)
	RecordOperationFailure(ctx context.Context, operation string)
	RecordOperationDuration(ctx context.Context, operation string, d time.Duration)
}

type operationMetrics struct {
	attempts  *prometheus.CounterVec
	successes *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

func newOperationMetrics(f promauto.Factory, subsystem string) operationMetrics {
	labels := []string{"operation"}
	return operationMetrics{
		attempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "operation_attempts_total", Help: "Service operations started.",
		}, labels),
		successes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "operation_successes_total", Help: "Service operations that returned a success result.",
		}, labels),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "operation_failures_total", Help: "Service operations that returned an error.",
		}, labels),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "operation_duration_seconds", Help: "Service operation latency.",
			Buckets: prometheus.DefBuckets,
		}, labels),
	}
}

func (m operationMetrics) RecordOperationAttempt(_ context.Context, op string) {
	m.attempts.WithLabelValues(op).Inc()
}

func (m operationMetrics) RecordOperationSuccess(_ context.Context, op string) {
	m.successes.WithLabelValues(op).Inc()
}

func (m operationMetrics) RecordOperationFailure(_ context.Context, op string) {
	m.failures.WithLabelValues(op).Inc()
}

func (m operationMetrics) RecordOperationDuration(_ context.Context, op string, d time.Duration) {
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

func hitLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
