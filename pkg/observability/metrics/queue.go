package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NewQueueMetrics registers the background job instruments on reg.
func NewQueueMetrics(reg prometheus.Registerer) OperationMetrics {
	return newOperationMetrics(promauto.With(reg), "queue")
}
