// Package queue runs the River client shared by every module's background
// jobs.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edelkas/inne-sub000/pkg/attr"
	"github.com/edelkas/inne-sub000/pkg/observability/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/uptrace/bun"
)

// Inserter enqueues jobs. Modules depend on this rather than on the client.
type Inserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (int64, error)
}

// QueueService defines the contract for the shared job queue.
type QueueService interface {
	Inserter
	// JobCounts returns the number of jobs per state for a job kind.
	JobCounts(ctx context.Context, kind string) (map[string]int, error)
	HealthCheck(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

var _ QueueService = (*Service)(nil)

// Service wraps a River client backed by its own pgx pool.
type Service struct {
	client  *river.Client[pgx.Tx]
	pool    *pgxpool.Pool
	logger  *slog.Logger
	db      *bun.DB
	metrics metrics.OperationMetrics
}

// Queue names.
const (
	QueueMappack     = "mappack"
	QueueScore       = "score"
	QueueLeaderboard = "leaderboard"
)

// Jobs is what a module contributes to the shared client.
type Jobs struct {
	Workers  func(*river.Workers)
	Periodic []*river.PeriodicJob
}

// NewService connects to Postgres, migrates the River schema and builds a
// client running the workers registered by each module.
func NewService(ctx context.Context, bunDB *bun.DB, logger *slog.Logger, dsn string, m metrics.OperationMetrics, jobs ...Jobs) (*Service, error) {
	ctxLogger := logger.With(
		attr.String("operation", "new_queue_service"),
		attr.String("component", "river_queue"),
	)

	start := time.Now()
	m.RecordOperationAttempt(ctx, "initialize_service")
	ctxLogger.Info("Initializing queue service")

	fail := func(msg string, err error) (*Service, error) {
		ctxLogger.Error(msg, attr.Error(err))
		m.RecordOperationFailure(ctx, "initialize_service")
		return nil, fmt.Errorf("%s: %w", msg, err)
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fail("failed to parse DSN", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fail("failed to create pgx pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fail("failed to ping database", err)
	}

	driver := riverpgxv5.New(pool)
	migrator, err := rivermigrate.New(driver, nil)
	if err != nil {
		pool.Close()
		return fail("failed to create river migrator", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{}); err != nil {
		pool.Close()
		return fail("failed to migrate river schema", err)
	}

	workers := river.NewWorkers()
	var periodic []*river.PeriodicJob
	for _, j := range jobs {
		if j.Workers != nil {
			j.Workers(workers)
		}
		periodic = append(periodic, j.Periodic...)
	}

	client, err := river.NewClient(driver, &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
			QueueMappack:       {MaxWorkers: 1},
			QueueScore:         {MaxWorkers: 10},
			QueueLeaderboard:   {MaxWorkers: 2},
		},
		Workers:      workers,
		PeriodicJobs: periodic,
	})
	if err != nil {
		pool.Close()
		return fail("failed to create River client", err)
	}

	m.RecordOperationSuccess(ctx, "initialize_service")
	m.RecordOperationDuration(ctx, "initialize_service", time.Since(start))
	ctxLogger.Info("Queue service initialized successfully")

	return &Service{
		client:  client,
		pool:    pool,
		logger:  ctxLogger,
		db:      bunDB,
		metrics: m,
	}, nil
}

// Start starts working jobs.
func (s *Service) Start(ctx context.Context) error {
	s.metrics.RecordOperationAttempt(ctx, "start_service")
	s.logger.Info("Starting queue service")
	if err := s.client.Start(ctx); err != nil {
		s.logger.Error("Failed to start River client", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "start_service")
		return fmt.Errorf("failed to start River client: %w", err)
	}
	s.metrics.RecordOperationSuccess(ctx, "start_service")
	return nil
}

// Stop waits for running jobs and closes the pool.
func (s *Service) Stop(ctx context.Context) error {
	s.metrics.RecordOperationAttempt(ctx, "stop_service")
	s.logger.Info("Stopping queue service")
	defer s.pool.Close()
	if err := s.client.Stop(ctx); err != nil {
		s.logger.Error("Failed to stop River client", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "stop_service")
		return fmt.Errorf("failed to stop River client: %w", err)
	}
	s.metrics.RecordOperationSuccess(ctx, "stop_service")
	return nil
}

// Insert enqueues a job and returns its ID.
func (s *Service) Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (int64, error) {
	start := time.Now()
	op := "insert_" + args.Kind()
	s.metrics.RecordOperationAttempt(ctx, op)

	res, err := s.client.Insert(ctx, args, opts)
	if err != nil {
		s.logger.Error("Failed to insert job", attr.String("kind", args.Kind()), attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, op)
		return 0, fmt.Errorf("failed to insert %s job: %w", args.Kind(), err)
	}

	s.metrics.RecordOperationSuccess(ctx, op)
	s.metrics.RecordOperationDuration(ctx, op, time.Since(start))
	s.logger.Info("Job inserted",
		attr.String("kind", args.Kind()),
		attr.Int64("job_id", res.Job.ID),
		attr.Bool("duplicate", res.UniqueSkippedAsDuplicate),
	)
	return res.Job.ID, nil
}

// JobCounts groups the jobs of a kind by state.
func (s *Service) JobCounts(ctx context.Context, kind string) (map[string]int, error) {
	var rows []struct {
		State string `bun:"state"`
		Count int    `bun:"count"`
	}
	err := s.db.NewSelect().
		Table("river_job").
		ColumnExpr("state, COUNT(*) AS count").
		Where("kind = ?", kind).
		Group("state").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s jobs: %w", kind, err)
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.State] = r.Count
	}
	return counts, nil
}

// HealthCheck verifies the queue tables are reachable.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("river client is nil")
	}
	var count int
	if err := s.db.NewSelect().Table("river_job").ColumnExpr("COUNT(*)").Scan(ctx, &count); err != nil {
		s.logger.Error("Queue service health check failed", attr.Error(err))
		return fmt.Errorf("queue service health check failed: %w", err)
	}
	s.logger.Debug("Queue service health check passed", attr.Int("total_jobs", count))
	return nil
}
