package leaderboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	leaderboardservice "github.com/edelkas/inne-sub000/app/modules/leaderboard/application"
	leaderboardcache "github.com/edelkas/inne-sub000/app/modules/leaderboard/infrastructure/cache"
	leaderboardhandlers "github.com/edelkas/inne-sub000/app/modules/leaderboard/infrastructure/handlers"
	leaderboardqueue "github.com/edelkas/inne-sub000/app/modules/leaderboard/infrastructure/queue"
	leaderboarddb "github.com/edelkas/inne-sub000/app/modules/leaderboard/infrastructure/repositories"
	leaderboardrouter "github.com/edelkas/inne-sub000/app/modules/leaderboard/infrastructure/router"
	mappackservice "github.com/edelkas/inne-sub000/app/modules/mappack/application"
	"github.com/edelkas/inne-sub000/app/queue"
	"github.com/edelkas/inne-sub000/pkg/eventbus"
	"github.com/edelkas/inne-sub000/pkg/observability"
	"github.com/uptrace/bun"
)

// Config configures the leaderboard module.
type Config struct {
	// CacheItems bounds the number of cached leaderboard pages. Zero disables
	// the cache.
	CacheItems int64
	CacheTTL   time.Duration
	// RecountInterval schedules a periodic completion recount when positive.
	RecountInterval time.Duration
}

// Module represents the leaderboard module.
type Module struct {
	LeaderboardService leaderboardservice.Service
	LeaderboardRouter  *leaderboardrouter.LeaderboardRouter
	cache              *leaderboardcache.BoardCache
	cfg                Config
	cancelFunc         context.CancelFunc
	observability      observability.Observability
}

// NewLeaderboardModule creates a new instance of the Leaderboard module. The
// router is optional; without it the module does not consume score events.
func NewLeaderboardModule(
	ctx context.Context,
	cfg Config,
	obs observability.Observability,
	db *bun.DB,
	mappacks mappackservice.Service,
	eventBus eventbus.EventBus,
	router *message.Router,
) (*Module, error) {
	logger := obs.Provider.Logger
	metrics := obs.Registry.LeaderboardMetrics
	tracer := obs.Registry.Tracer

	logger.InfoContext(ctx, "leaderboard.NewLeaderboardModule called")

	module := &Module{cfg: cfg, observability: obs}

	var cache leaderboardservice.BoardCache
	if cfg.CacheItems > 0 {
		c, err := leaderboardcache.NewBoardCache(cfg.CacheItems, cfg.CacheTTL)
		if err != nil {
			return nil, err
		}
		module.cache = c
		cache = c
	}

	service := leaderboardservice.NewLeaderboardService(
		leaderboarddb.NewRepository(db),
		mappacks,
		logger,
		metrics,
		tracer,
		db,
		cache,
	)
	module.LeaderboardService = service

	if router != nil && eventBus != nil {
		module.LeaderboardRouter = leaderboardrouter.NewLeaderboardRouter(logger, router, eventBus, tracer, metrics, obs.Registry.Prometheus)
		handlers := leaderboardhandlers.NewLeaderboardHandlers(service, logger)
		if err := module.LeaderboardRouter.Configure(ctx, handlers); err != nil {
			return nil, fmt.Errorf("failed to configure leaderboard router: %w", err)
		}
	}

	return module, nil
}

// Jobs returns the leaderboard background jobs.
func (m *Module) Jobs() queue.Jobs {
	return queue.Jobs{
		Workers:  leaderboardqueue.Register(m.LeaderboardService, m.observability.Provider.Logger),
		Periodic: leaderboardqueue.Periodic(m.cfg.RecountInterval),
	}
}

// Run starts the leaderboard module.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	logger := m.observability.Provider.Logger
	logger.InfoContext(ctx, "Starting leaderboard module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	<-ctx.Done()
	logger.InfoContext(ctx, "Leaderboard module goroutine stopped")
}

// Close stops the leaderboard module and cleans up resources.
func (m *Module) Close() error {
	logger := m.observability.Provider.Logger
	logger.Info("Stopping leaderboard module")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	if m.cache != nil {
		m.cache.Close()
	}

	logger.Info("Leaderboard module stopped")
	return nil
}
