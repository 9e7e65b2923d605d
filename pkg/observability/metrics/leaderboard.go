package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LeaderboardMetrics instruments ranking and leaderboard reads.
type LeaderboardMetrics interface {
	OperationMetrics
	RecordRankUpdate(ctx context.Context, board string, rows int)
	RecordObsoleteDeletion(ctx context.Context, rows int)
	RecordCacheLookup(ctx context.Context, hit bool)
}

type leaderboardMetrics struct {
	operationMetrics
	ranked   *prometheus.CounterVec
	obsolete prometheus.Counter
	cache    *prometheus.CounterVec
}

// NewLeaderboardMetrics registers the leaderboard instruments on reg.
func NewLeaderboardMetrics(reg prometheus.Registerer) LeaderboardMetrics {
	f := promauto.With(reg)
	return &leaderboardMetrics{
		operationMetrics: newOperationMetrics(f, "leaderboard"),
		ranked: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "leaderboard",
			Name: "ranked_rows_total", Help: "Rows written by rank recomputation.",
		}, []string{"board"}),
		obsolete: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "leaderboard",
			Name: "obsolete_scores_deleted_total", Help: "Obsolete scores removed.",
		}),
		cache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "leaderboard",
			Name: "cache_lookups_total", Help: "Leaderboard response cache lookups.",
		}, []string{"result"}),
	}
}

func (m *leaderboardMetrics) RecordRankUpdate(_ context.Context, board string, rows int) {
	m.ranked.WithLabelValues(board).Add(float64(rows))
}

func (m *leaderboardMetrics) RecordObsoleteDeletion(_ context.Context, rows int) {
	m.obsolete.Add(float64(rows))
}

func (m *leaderboardMetrics) RecordCacheLookup(_ context.Context, hit bool) {
	m.cache.WithLabelValues(hitLabel(hit)).Inc()
}
