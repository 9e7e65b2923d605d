// Package mappackqueue holds the mappack background jobs.
package mappackqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mappackservice "github.com/edelkas/inne-sub000/app/modules/mappack/application"
	"github.com/edelkas/inne-sub000/app/queue"
	"github.com/edelkas/inne-sub000/pkg/attr"
	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/riverqueue/river"
)

// UpdateHashesJob recomputes the integrity hashes of a mappack.
type UpdateHashesJob struct {
	MappackID int64 `json:"mappack_id"`
}

// Kind returns the job type identifier for River
func (UpdateHashesJob) Kind() string { return "mappack_update_hashes" }

// InsertOpts keeps at most one pending recomputation per mappack.
func (UpdateHashesJob) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       queue.QueueMappack,
		MaxAttempts: 3,
		UniqueOpts:  river.UniqueOpts{ByArgs: true},
	}
}

// UpdateHashesWorker runs UpdateHashesJob.
type UpdateHashesWorker struct {
	river.WorkerDefaults[UpdateHashesJob]
	service mappackservice.Service
	logger  *slog.Logger
}

func NewUpdateHashesWorker(service mappackservice.Service, logger *slog.Logger) *UpdateHashesWorker {
	return &UpdateHashesWorker{service: service, logger: logger}
}

// Timeout allows for large mappacks, where hashing dominates seeding time.
func (w *UpdateHashesWorker) Timeout(*river.Job[UpdateHashesJob]) time.Duration {
	return 30 * time.Minute
}

func (w *UpdateHashesWorker) Work(ctx context.Context, job *river.Job[UpdateHashesJob]) error {
	report, err := w.service.UpdateHashes(ctx, job.Args.MappackID)
	if err != nil {
		return fmt.Errorf("update hashes of mappack %d: %w", job.Args.MappackID, err)
	}
	for _, kind := range npp.Kinds {
		w.logger.InfoContext(ctx, "Mappack hashes updated",
			attr.Int64("mappack_id", job.Args.MappackID),
			attr.String("kind", kind.String()),
			attr.Int("computed", report.Computed[kind]),
			attr.Int("missing", report.Missing[kind]),
		)
	}
	return nil
}

// Register adds the mappack workers to a River worker registry.
func Register(service mappackservice.Service, logger *slog.Logger) func(*river.Workers) {
	return func(workers *river.Workers) {
		river.AddWorker(workers, NewUpdateHashesWorker(service, logger))
	}
}

// Scheduler enqueues mappack jobs.
type Scheduler struct {
	inserter queue.Inserter
}

func NewScheduler(inserter queue.Inserter) *Scheduler {
	return &Scheduler{inserter: inserter}
}

// ScheduleUpdateHashes enqueues a hash recomputation and returns the job ID.
func (s *Scheduler) ScheduleUpdateHashes(ctx context.Context, mappackID int64) (int64, error) {
	return s.inserter.Insert(ctx, UpdateHashesJob{MappackID: mappackID}, nil)
}
