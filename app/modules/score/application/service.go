package scoreservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	leaderboardservice "github.com/edelkas/inne-sub000/app/modules/leaderboard/application"
	mappackservice "github.com/edelkas/inne-sub000/app/modules/mappack/application"
	scoredb "github.com/edelkas/inne-sub000/app/modules/score/infrastructure/repositories"
	"github.com/edelkas/inne-sub000/pkg/attr"
	"github.com/edelkas/inne-sub000/pkg/eventbus"
	"github.com/edelkas/inne-sub000/pkg/observability/metrics"
	"github.com/edelkas/inne-sub000/pkg/results"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Options toggles the submission policies.
type Options struct {
	// Forward relays requests for unknown boards to the official server.
	Forward bool
	// IntegrityChecks rejects runs whose security token does not verify.
	IntegrityChecks bool
	// RejectCorrupt rejects runs with inconsistent gold instead of flagging them.
	RejectCorrupt bool
	// WarnVersion flags runs submitted from an outdated mappack version.
	WarnVersion bool
	// LocalLogin answers logins locally when the official server fails.
	LocalLogin bool
}

// DefaultOptions returns the production policies.
func DefaultOptions() Options {
	return Options{Forward: true, IntegrityChecks: true, LocalLogin: true}
}

// ScoreService implements the Service interface.
type ScoreService struct {
	repo      scoredb.Repository
	mappacks  mappackservice.Service
	ranker    leaderboardservice.Ranker
	publisher message.Publisher
	forwarder Forwarder
	simulator Simulator
	refresher RefreshScheduler
	logger    *slog.Logger
	metrics   metrics.ScoreMetrics
	tracer    trace.Tracer
	db        *bun.DB
	opts      Options
	now       func() time.Time
}

// Collaborators groups the optional services the submission pipeline calls
// out to. Nil members disable the matching feature.
type Collaborators struct {
	Publisher message.Publisher
	Forwarder Forwarder
	Simulator Simulator
	Refresher RefreshScheduler
}

// NewScoreService creates a new ScoreService.
func NewScoreService(
	repo scoredb.Repository,
	mappacks mappackservice.Service,
	ranker leaderboardservice.Ranker,
	collab Collaborators,
	logger *slog.Logger,
	metrics metrics.ScoreMetrics,
	tracer trace.Tracer,
	db *bun.DB,
	opts Options,
) *ScoreService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScoreService{
		repo:      repo,
		mappacks:  mappacks,
		ranker:    ranker,
		publisher: collab.Publisher,
		forwarder: collab.Forwarder,
		simulator: collab.Simulator,
		refresher: collab.Refresher,
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
		db:        db,
		opts:      opts,
		now:       time.Now,
	}
}

var _ Service = (*ScoreService)(nil)

// publish sends an event on its global topic and on the mappack-scoped one.
func (s *ScoreService) publish(ctx context.Context, topic, code string, payload any) {
	if s.publisher == nil {
		return
	}
	msg, err := eventbus.NewMessage(ctx, payload)
	if err == nil {
		err = s.publisher.Publish(topic, msg)
	}
	if err == nil && code != "" {
		scoped, scopedErr := eventbus.NewMessage(ctx, payload)
		if scopedErr != nil {
			err = scopedErr
		} else {
			err = eventbus.PublishWithMappackScope(s.publisher, topic, code, scoped)
		}
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event",
			attr.ExtractCorrelationID(ctx),
			attr.String("topic", topic),
			attr.Error(err),
		)
	}
}

// forward relays a request upstream and records the attempt.
func (s *ScoreService) forward(ctx context.Context, req UpstreamRequest) ([]byte, error) {
	if s.forwarder == nil {
		return nil, nil
	}
	body, err := s.forwarder.Forward(ctx, req)
	if s.metrics != nil {
		s.metrics.RecordForward(ctx, req.Method, err != nil || body == nil)
	}
	return body, err
}

// bestEffort runs fn in a savepoint so that its failure is logged without
// aborting the surrounding transaction.
func (s *ScoreService) bestEffort(ctx context.Context, db bun.IDB, step string, fn func(ctx context.Context, db bun.IDB) error) bool {
	var err error
	if tx, ok := db.(bun.Tx); ok {
		err = tx.RunInTx(ctx, nil, func(ctx context.Context, sp bun.Tx) error {
			return fn(ctx, sp)
		})
	} else {
		err = fn(ctx, db)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Ranking step failed",
			attr.ExtractCorrelationID(ctx),
			attr.String("step", step),
			attr.Error(err),
		)
		return false
	}
	return true
}

func isNotFound(err error) bool {
	return errors.Is(err, scoredb.ErrNotFound)
}

type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

func withTelemetry[S any, F any](
	s *ScoreService,
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

	s.logger.DebugContext(ctx, operationName+" triggered", attr.ExtractCorrelationID(ctx), attr.String("identifier", identifier))

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

	if s.metrics != nil {
		s.metrics.RecordOperationSuccess(ctx, operationName)
	}
	return result, nil
}

func runInTx[S any, F any](
	s *ScoreService,
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
