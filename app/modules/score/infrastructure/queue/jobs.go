// Package scorequeue holds the score background jobs.
package scorequeue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/edelkas/inne-sub000/app/events"
	"github.com/edelkas/inne-sub000/app/queue"
	"github.com/edelkas/inne-sub000/pkg/attr"
	"github.com/edelkas/inne-sub000/pkg/eventbus"
	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/riverqueue/river"
)

// VanillaRefreshJob asks the vanilla score collector to refresh a board of
// the official game after a submission for it was forwarded.
type VanillaRefreshJob struct {
	Kind     string `json:"kind"`
	ID       int64  `json:"id"`
	PlayerID int64  `json:"player_id"`
}

// Kind returns the job type identifier for River
func (VanillaRefreshJob) Kind() string { return "score_vanilla_refresh" }

// InsertOpts delays the refresh so the official server has stored the run,
// and collapses repeated requests for the same board.
func (VanillaRefreshJob) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       queue.QueueScore,
		MaxAttempts: 3,
		ScheduledAt: time.Now().Add(refreshDelay),
		UniqueOpts: river.UniqueOpts{
			ByArgs:   true,
			ByPeriod: time.Minute,
		},
	}
}

const refreshDelay = 5 * time.Second

// VanillaRefreshWorker runs VanillaRefreshJob.
type VanillaRefreshWorker struct {
	river.WorkerDefaults[VanillaRefreshJob]
	publisher message.Publisher
	logger    *slog.Logger
}

func NewVanillaRefreshWorker(publisher message.Publisher, logger *slog.Logger) *VanillaRefreshWorker {
	return &VanillaRefreshWorker{publisher: publisher, logger: logger}
}

func (w *VanillaRefreshWorker) Timeout(*river.Job[VanillaRefreshJob]) time.Duration {
	return 30 * time.Second
}

func (w *VanillaRefreshWorker) Work(ctx context.Context, job *river.Job[VanillaRefreshJob]) error {
	msg, err := eventbus.NewMessage(ctx, events.VanillaRefreshRequestedPayloadV1{
		Kind:     job.Args.Kind,
		ID:       job.Args.ID,
		PlayerID: job.Args.PlayerID,
	})
	if err != nil {
		return fmt.Errorf("build vanilla refresh event: %w", err)
	}
	if err := w.publisher.Publish(events.VanillaRefreshRequestedV1, msg); err != nil {
		return fmt.Errorf("publish vanilla refresh of %s %d: %w", job.Args.Kind, job.Args.ID, err)
	}
	w.logger.InfoContext(ctx, "Vanilla refresh requested",
		attr.Highscoreable(job.Args.Kind, job.Args.ID),
		attr.Player(job.Args.PlayerID),
	)
	return nil
}

// Register adds the score workers to a River worker registry.
func Register(publisher message.Publisher, logger *slog.Logger) func(*river.Workers) {
	return func(workers *river.Workers) {
		river.AddWorker(workers, NewVanillaRefreshWorker(publisher, logger))
	}
}

// Scheduler enqueues score jobs.
type Scheduler struct {
	inserter queue.Inserter
}

func NewScheduler(inserter queue.Inserter) *Scheduler {
	return &Scheduler{inserter: inserter}
}

// ScheduleVanillaRefresh enqueues a refresh of an official board.
func (s *Scheduler) ScheduleVanillaRefresh(ctx context.Context, kind npp.Kind, id int64, metanetID int64) error {
	_, err := s.inserter.Insert(ctx, VanillaRefreshJob{Kind: kind.String(), ID: id, PlayerID: metanetID}, nil)
	return err
}
