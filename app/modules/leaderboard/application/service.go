package leaderboardservice

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	leaderboarddomain "github.com/edelkas/inne-sub000/app/modules/leaderboard/domain"
	leaderboarddb "github.com/edelkas/inne-sub000/app/modules/leaderboard/infrastructure/repositories"
	mappackservice "github.com/edelkas/inne-sub000/app/modules/mappack/application"
	"github.com/edelkas/inne-sub000/pkg/attr"
	"github.com/edelkas/inne-sub000/pkg/observability/metrics"
	"github.com/edelkas/inne-sub000/pkg/results"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// BoardCache memoizes leaderboard responses per highscoreable and query type.
type BoardCache interface {
	Get(key string) (*ScoresResponse, bool)
	Set(key string, resp *ScoresResponse)
	Delete(key string)
}

// LeaderboardService implements the Service interface.
type LeaderboardService struct {
	repo     leaderboarddb.Repository
	mappacks mappackservice.Service
	logger   *slog.Logger
	metrics  metrics.LeaderboardMetrics
	tracer   trace.Tracer
	db       *bun.DB
	cache    BoardCache
}

// NewLeaderboardService creates a new LeaderboardService. A nil cache
// disables response caching.
func NewLeaderboardService(
	repo leaderboarddb.Repository,
	mappacks mappackservice.Service,
	logger *slog.Logger,
	metrics metrics.LeaderboardMetrics,
	tracer trace.Tracer,
	db *bun.DB,
	cache BoardCache,
) *LeaderboardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaderboardService{
		repo:     repo,
		mappacks: mappacks,
		logger:   logger,
		metrics:  metrics,
		tracer:   tracer,
		db:       db,
		cache:    cache,
	}
}

var _ Service = (*LeaderboardService)(nil)

func toEntries(rows []leaderboarddb.ScoreRow) []leaderboarddomain.Entry {
	out := make([]leaderboarddomain.Entry, len(rows))
	for i, r := range rows {
		out[i] = leaderboarddomain.Entry{
			ID:       r.ID,
			PlayerID: r.PlayerID,
			ScoreHS:  r.ScoreHS,
			ScoreSR:  r.ScoreSR,
			Fraction: r.Fraction,
			Gold:     r.Gold,
			RankHS:   r.RankHS,
			RankSR:   r.RankSR,
			Date:     r.Date,
		}
	}
	return out
}

type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

func withTelemetry[S any, F any](
	s *LeaderboardService,
	ctx context.Context,
	operationName string,
	identifier string,
	op operationFunc[S, F],
) (result results.OperationResult[S, F], err error) {
	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operationName, trace.WithAttributes(
			attribute.String("operation", operationName),
			attribute.String("identifier", identifier),
		))
	} else {
		span = trace.SpanFromContext(ctx)
	}
	defer span.End()

	if s.metrics != nil {
		s.metrics.RecordOperationAttempt(ctx, operationName)
	}

	startTime := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordOperationDuration(ctx, operationName, time.Since(startTime))
		}
	}()

	s.logger.InfoContext(ctx, operationName+" triggered", attr.ExtractCorrelationID(ctx), attr.String("identifier", identifier))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.ExtractCorrelationID(ctx),
				attr.String("identifier", identifier),
				attr.Error(err),
			)
			if s.metrics != nil {
				s.metrics.RecordOperationFailure(ctx, operationName)
			}
			span.RecordError(err)
			result = results.OperationResult[S, F]{}
		}
	}()

	result, err = op(ctx)
	if err != nil {
		wrappedErr := fmt.Errorf("%s: %w", operationName, err)
		s.logger.ErrorContext(ctx, "Operation failed with error",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Error(wrappedErr),
		)
		if s.metrics != nil {
			s.metrics.RecordOperationFailure(ctx, operationName)
		}
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	s.logger.InfoContext(ctx, operationName+" completed successfully",
		attr.ExtractCorrelationID(ctx),
		attr.String("identifier", identifier),
	)
	if s.metrics != nil {
		s.metrics.RecordOperationSuccess(ctx, operationName)
	}
	return result, nil
}

func runInTx[S any, F any](
	s *LeaderboardService,
	ctx context.Context,
	fn func(ctx context.Context, db bun.IDB) (results.OperationResult[S, F], error),
) (results.OperationResult[S, F], error) {
	if s.db == nil {
		return fn(ctx, nil)
	}

	var result results.OperationResult[S, F]
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var txErr error
		result, txErr = fn(ctx, tx)
		return txErr
	})
	return result, err
}
