package mappack

import (
	"context"
	"fmt"
	"sync"

	mappackservice "github.com/edelkas/inne-sub000/app/modules/mappack/application"
	mappackcache "github.com/edelkas/inne-sub000/app/modules/mappack/infrastructure/cache"
	mappackqueue "github.com/edelkas/inne-sub000/app/modules/mappack/infrastructure/queue"
	mappackdb "github.com/edelkas/inne-sub000/app/modules/mappack/infrastructure/repositories"
	"github.com/edelkas/inne-sub000/app/queue"
	"github.com/edelkas/inne-sub000/pkg/observability"
	"github.com/uptrace/bun"
)

// Config configures the mappack module.
type Config struct {
	Service mappackservice.Options
	// HashCacheItems bounds the number of cached hash sets.
	HashCacheItems int64
}

// Module represents the mappack module.
type Module struct {
	MappackService mappackservice.Service
	cache          *mappackcache.HashCache
	cancelFunc     context.CancelFunc
	observability  observability.Observability
}

// NewMappackModule creates and initializes a new mappack module.
func NewMappackModule(ctx context.Context, obs observability.Observability, db *bun.DB, cfg Config) (*Module, error) {
	logger := obs.Provider.Logger
	logger.InfoContext(ctx, "mappack.NewMappackModule initializing")

	repo := mappackdb.NewRepository(db)

	if cfg.HashCacheItems <= 0 {
		cfg.HashCacheItems = 10000
	}
	cache, err := mappackcache.NewHashCache(cfg.HashCacheItems)
	if err != nil {
		return nil, fmt.Errorf("failed to create mappack hash cache: %w", err)
	}

	service := mappackservice.NewMappackService(
		repo,
		logger,
		obs.Registry.MappackMetrics,
		obs.Registry.Tracer,
		db,
		cache,
		cfg.Service,
	)

	return &Module{
		MappackService: service,
		cache:          cache,
		observability:  obs,
	}, nil
}

// Jobs returns the mappack background jobs.
func (m *Module) Jobs() queue.Jobs {
	return queue.Jobs{Workers: mappackqueue.Register(m.MappackService, m.observability.Provider.Logger)}
}

// Run starts the mappack module.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	logger := m.observability.Provider.Logger
	logger.InfoContext(ctx, "Starting mappack module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	<-ctx.Done()
	logger.InfoContext(ctx, "Mappack module goroutine stopped")
}

// Close shuts down the mappack module.
func (m *Module) Close() error {
	logger := m.observability.Provider.Logger
	logger.Info("Stopping mappack module")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	if m.cache != nil {
		m.cache.Close()
	}

	logger.Info("Mappack module stopped")
	return nil
}
