package score

import (
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	leaderboardservice "github.com/edelkas/inne-sub000/app/modules/leaderboard/application"
	mappackservice "github.com/edelkas/inne-sub000/app/modules/mappack/application"
	scoreservice "github.com/edelkas/inne-sub000/app/modules/score/application"
	scorehandlers "github.com/edelkas/inne-sub000/app/modules/score/infrastructure/handlers"
	scorequeue "github.com/edelkas/inne-sub000/app/modules/score/infrastructure/queue"
	scoredb "github.com/edelkas/inne-sub000/app/modules/score/infrastructure/repositories"
	"github.com/edelkas/inne-sub000/app/modules/score/infrastructure/simulator"
	"github.com/edelkas/inne-sub000/app/modules/score/infrastructure/upstream"
	"github.com/edelkas/inne-sub000/app/queue"
	"github.com/edelkas/inne-sub000/pkg/observability"
	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"
)

// Config configures the score module.
type Config struct {
	Service   scoreservice.Options
	Simulator simulator.Config
	// UpstreamURL is the official server requests are forwarded to.
	UpstreamURL    string
	ForwardTimeout time.Duration
	// RatePerSecond and Burst bound the CLE requests of a single client.
	// A zero rate disables the limit.
	RatePerSecond float64
	Burst         int
}

// Module represents the score module.
type Module struct {
	ScoreService  scoreservice.Service
	Handlers      *scorehandlers.CLEHandlers
	publisher     message.Publisher
	cancelFunc    context.CancelFunc
	observability observability.Observability
}

// NewScoreModule creates the score module and mounts the CLE routes on
// httpRouter when one is given. The inserter may be a queue.Deferred bound
// once the job queue is running.
func NewScoreModule(
	ctx context.Context,
	cfg Config,
	obs observability.Observability,
	db *bun.DB,
	mappacks mappackservice.Service,
	boards leaderboardservice.Service,
	publisher message.Publisher,
	httpRouter chi.Router,
	inserter queue.Inserter,
) (*Module, error) {
	logger := obs.Provider.Logger
	logger.InfoContext(ctx, "score.NewScoreModule called")

	forwarder := upstream.NewHTTPForwarder(cfg.UpstreamURL, cfg.ForwardTimeout)

	collab := scoreservice.Collaborators{
		Publisher: publisher,
		Forwarder: forwarder,
	}
	if cfg.Simulator.Path != "" {
		collab.Simulator = simulator.New(cfg.Simulator, logger)
	}
	if inserter != nil {
		collab.Refresher = scorequeue.NewScheduler(inserter)
	}

	service := scoreservice.NewScoreService(
		scoredb.NewRepository(db),
		mappacks,
		boards,
		collab,
		logger,
		obs.Registry.ScoreMetrics,
		obs.Registry.Tracer,
		db,
		cfg.Service,
	)

	handlers := scorehandlers.NewCLEHandlers(service, boards, mappacks, forwarder, cfg.Service.Forward, logger)
	if httpRouter != nil {
		httpRouter.Group(func(r chi.Router) {
			if cfg.RatePerSecond > 0 {
				burst := cfg.Burst
				if burst <= 0 {
					burst = 1
				}
				r.Use(scorehandlers.RateLimit(scorehandlers.NewClientLimiter(cfg.RatePerSecond, burst)))
			}
			handlers.Routes(r)
		})
	}

	return &Module{
		ScoreService:  service,
		Handlers:      handlers,
		publisher:     publisher,
		observability: obs,
	}, nil
}

// Jobs returns the score background jobs.
func (m *Module) Jobs() queue.Jobs {
	return queue.Jobs{
		Workers: scorequeue.Register(m.publisher, m.observability.Provider.Logger),
	}
}

// Run starts the score module.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	logger := m.observability.Provider.Logger
	logger.InfoContext(ctx, "Starting score module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	<-ctx.Done()
	logger.InfoContext(ctx, "Score module goroutine stopped")
}

// Close stops the score module.
func (m *Module) Close() error {
	m.observability.Provider.Logger.Info("Stopping score module")
	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	return nil
}
