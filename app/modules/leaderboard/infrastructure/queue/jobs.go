// Package leaderboardqueue holds the leaderboard background jobs.
package leaderboardqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	leaderboardservice "github.com/edelkas/inne-sub000/app/modules/leaderboard/application"
	"github.com/edelkas/inne-sub000/app/queue"
	"github.com/edelkas/inne-sub000/pkg/attr"
	"github.com/riverqueue/river"
)

// RecountCompletionsJob refreshes the completion counts of a mappack, or of
// every mappack when MappackID is zero.
type RecountCompletionsJob struct {
	MappackID int64 `json:"mappack_id"`
}

// Kind returns the job type identifier for River
func (RecountCompletionsJob) Kind() string { return "leaderboard_recount_completions" }

func (RecountCompletionsJob) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       queue.QueueLeaderboard,
		MaxAttempts: 5,
		UniqueOpts:  river.UniqueOpts{ByArgs: true},
	}
}

// RecountCompletionsWorker runs RecountCompletionsJob.
type RecountCompletionsWorker struct {
	river.WorkerDefaults[RecountCompletionsJob]
	service leaderboardservice.Service
	logger  *slog.Logger
}

func NewRecountCompletionsWorker(service leaderboardservice.Service, logger *slog.Logger) *RecountCompletionsWorker {
	return &RecountCompletionsWorker{service: service, logger: logger}
}

func (w *RecountCompletionsWorker) Timeout(*river.Job[RecountCompletionsJob]) time.Duration {
	return 10 * time.Minute
}

func (w *RecountCompletionsWorker) Work(ctx context.Context, job *river.Job[RecountCompletionsJob]) error {
	n, err := w.service.RecountCompletions(ctx, job.Args.MappackID)
	if err != nil {
		return fmt.Errorf("recount completions of mappack %d: %w", job.Args.MappackID, err)
	}
	w.logger.InfoContext(ctx, "Completions recounted",
		attr.Int64("mappack_id", job.Args.MappackID),
		attr.Int("highscoreables", n),
	)
	return nil
}

// Register adds the leaderboard workers to a River worker registry.
func Register(service leaderboardservice.Service, logger *slog.Logger) func(*river.Workers) {
	return func(workers *river.Workers) {
		river.AddWorker(workers, NewRecountCompletionsWorker(service, logger))
	}
}

// Periodic schedules a full recount every interval. A non-positive interval
// disables it.
func Periodic(interval time.Duration) []*river.PeriodicJob {
	if interval <= 0 {
		return nil
	}
	return []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(interval),
			func() (river.JobArgs, *river.InsertOpts) {
				return RecountCompletionsJob{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: false},
		),
	}
}

// Scheduler enqueues leaderboard jobs.
type Scheduler struct {
	inserter queue.Inserter
}

func NewScheduler(inserter queue.Inserter) *Scheduler {
	return &Scheduler{inserter: inserter}
}

// ScheduleRecount enqueues a completion recount and returns the job ID.
func (s *Scheduler) ScheduleRecount(ctx context.Context, mappackID int64) (int64, error) {
	return s.inserter.Insert(ctx, RecountCompletionsJob{MappackID: mappackID}, nil)
}
