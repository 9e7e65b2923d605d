package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MappackMetrics instruments ingestion and hashing.
type MappackMetrics interface {
	OperationMetrics
	RecordMapsParsed(ctx context.Context, file string, parsed, failed int)
	RecordHashesComputed(ctx context.Context, kind string, computed, missing int)
	RecordCacheLookup(ctx context.Context, hit bool)
}

type mappackMetrics struct {
	operationMetrics
	maps   *prometheus.CounterVec
	hashes *prometheus.CounterVec
	cache  *prometheus.CounterVec
}

// NewMappackMetrics registers the mappack instruments on reg.
func NewMappackMetrics(reg prometheus.Registerer) MappackMetrics {
	f := promauto.With(reg)
	return &mappackMetrics{
		operationMetrics: newOperationMetrics(f, "mappack"),
		maps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "mappack",
			Name: "maps_parsed_total", Help: "Maps read from mappack files.",
		}, []string{"file", "result"}),
		hashes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "mappack",
			Name: "hashes_computed_total", Help: "Highscoreable hashes recomputed.",
		}, []string{"kind", "result"}),
		cache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "mappack",
			Name: "hash_cache_lookups_total", Help: "Hash cache lookups.",
		}, []string{"result"}),
	}
}

func (m *mappackMetrics) RecordMapsParsed(_ context.Context, file string, parsed, failed int) {
	m.maps.WithLabelValues(file, "ok").Add(float64(parsed))
	m.maps.WithLabelValues(file, "error").Add(float64(failed))
}

func (m *mappackMetrics) RecordHashesComputed(_ context.Context, kind string, computed, missing int) {
	m.hashes.WithLabelValues(kind, "ok").Add(float64(computed))
	m.hashes.WithLabelValues(kind, "missing").Add(float64(missing))
}

func (m *mappackMetrics) RecordCacheLookup(_ context.Context, hit bool) {
	m.cache.WithLabelValues(hitLabel(hit)).Inc()
}
