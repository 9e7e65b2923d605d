// Package app assembles the leaderboard server from its modules.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	appeventbus "github.com/edelkas/inne-sub000/app/eventbus"
	"github.com/edelkas/inne-sub000/app/modules/leaderboard"
	"github.com/edelkas/inne-sub000/app/modules/mappack"
	mappackservice "github.com/edelkas/inne-sub000/app/modules/mappack/application"
	"github.com/edelkas/inne-sub000/app/modules/score"
	scoreservice "github.com/edelkas/inne-sub000/app/modules/score/application"
	"github.com/edelkas/inne-sub000/app/modules/score/infrastructure/simulator"
	"github.com/edelkas/inne-sub000/app/queue"
	"github.com/edelkas/inne-sub000/config"
	"github.com/edelkas/inne-sub000/pkg/attr"
	"github.com/edelkas/inne-sub000/pkg/eventbus"
	"github.com/edelkas/inne-sub000/pkg/observability"
	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Modules groups the application modules.
type Modules struct {
	MappackModule     *mappack.Module
	LeaderboardModule *leaderboard.Module
	ScoreModule       *score.Module
}

// App holds the shared infrastructure and the modules built on it.
type App struct {
	Config        *config.Config
	Observability observability.Observability
	DB            *bun.DB
	EventBus      eventbus.EventBus
	Router        *message.Router
	HTTPRouter    chi.Router
	Modules       Modules
	Queue         *queue.Service

	jobs *queue.Deferred
	wg   sync.WaitGroup
}

// OpenDB opens a bun handle over the Postgres DSN.
func OpenDB(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// NewApp connects to the database and the event bus and builds every module.
// Nothing is started until Run.
func NewApp(ctx context.Context, cfg *config.Config, obs observability.Observability) (*App, error) {
	logger := obs.Provider.Logger

	app := &App{
		Config:        cfg,
		Observability: obs,
		jobs:          &queue.Deferred{},
	}

	app.DB = OpenDB(cfg.Postgres.DSN)
	if err := app.DB.PingContext(ctx); err != nil {
		app.DB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.NATS.URL != "" {
		bus, err := appeventbus.NewEventBus(ctx, cfg.NATS.URL, cfg.NATS.Consumer, logger)
		if err != nil {
			app.DB.Close()
			return nil, err
		}
		app.EventBus = bus
	} else {
		logger.WarnContext(ctx, "No NATS URL configured, events stay in process")
		app.EventBus = eventbus.NewInMemory(logger)
	}

	router, err := message.NewRouter(message.RouterConfig{}, watermill.NewSlogLogger(logger))
	if err != nil {
		app.closeInfra()
		return nil, fmt.Errorf("failed to create message router: %w", err)
	}
	app.Router = router
	app.HTTPRouter = newHTTPRouter()

	if err := app.initializeModules(ctx); err != nil {
		app.closeInfra()
		return nil, err
	}
	return app, nil
}

func (app *App) initializeModules(ctx context.Context) error {
	cfg := app.Config
	obs := app.Observability

	mappackModule, err := mappack.NewMappackModule(ctx, obs, app.DB, mappack.Config{
		Service: mappackservice.Options{
			HashPassword: cfg.CLE.HashPassword,
			Root:         cfg.Mappacks.Dir,
		},
		HashCacheItems: cfg.Mappacks.HashCacheItems,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize mappack module: %w", err)
	}
	app.Modules.MappackModule = mappackModule

	leaderboardModule, err := leaderboard.NewLeaderboardModule(ctx, leaderboard.Config{
		CacheItems:      cfg.Leaderboard.CacheItems,
		CacheTTL:        cfg.Leaderboard.CacheTTL,
		RecountInterval: cfg.Leaderboard.RecountInterval,
	}, obs, app.DB, mappackModule.MappackService, app.EventBus, app.Router)
	if err != nil {
		return fmt.Errorf("failed to initialize leaderboard module: %w", err)
	}
	app.Modules.LeaderboardModule = leaderboardModule

	scoreModule, err := score.NewScoreModule(ctx, score.Config{
		Service: scoreservice.Options{
			Forward:         cfg.CLE.Forward,
			IntegrityChecks: cfg.CLE.IntegrityChecks,
			RejectCorrupt:   cfg.CLE.RejectCorrupt,
			WarnVersion:     cfg.CLE.WarnVersion,
			LocalLogin:      cfg.CLE.LocalLogin,
		},
		Simulator: simulator.Config{
			Path:        cfg.Simulator.Path,
			Args:        cfg.Simulator.Args,
			Timeout:     cfg.Simulator.Timeout,
			Concurrency: cfg.Simulator.Concurrency,
		},
		UpstreamURL:    cfg.CLE.UpstreamURL,
		ForwardTimeout: cfg.CLE.ForwardTimeout,
		RatePerSecond:  cfg.HTTP.RatePerSecond,
		Burst:          cfg.HTTP.RateBurst,
	}, obs, app.DB, mappackModule.MappackService, leaderboardModule.LeaderboardService, app.EventBus, app.HTTPRouter, app.jobs)
	if err != nil {
		return fmt.Errorf("failed to initialize score module: %w", err)
	}
	app.Modules.ScoreModule = scoreModule

	return nil
}

// Jobs is the inserter handed to the modules. It accepts jobs once Run has
// started the queue.
func (app *App) Jobs() queue.Inserter {
	return app.jobs
}

// Run starts the job queue, the message router, the modules and the HTTP
// listeners, and blocks until ctx is done.
func (app *App) Run(ctx context.Context) error {
	logger := app.Observability.Provider.Logger

	q, err := queue.NewService(ctx, app.DB, logger, app.Config.Postgres.DSN, app.Observability.Registry.QueueMetrics,
		app.Modules.MappackModule.Jobs(),
		app.Modules.LeaderboardModule.Jobs(),
		app.Modules.ScoreModule.Jobs(),
	)
	if err != nil {
		return fmt.Errorf("failed to create job queue: %w", err)
	}
	if err := q.Start(ctx); err != nil {
		return fmt.Errorf("failed to start job queue: %w", err)
	}
	app.Queue = q
	app.jobs.Bind(q)

	go func() {
		if err := app.Router.Run(ctx); err != nil {
			logger.ErrorContext(ctx, "Message router stopped", attr.Error(err))
		}
	}()

	app.wg.Add(3)
	go app.Modules.MappackModule.Run(ctx, &app.wg)
	go app.Modules.LeaderboardModule.Run(ctx, &app.wg)
	go app.Modules.ScoreModule.Run(ctx, &app.wg)

	return app.Start(ctx)
}

// Close stops the modules and releases the shared infrastructure.
func (app *App) Close(ctx context.Context) error {
	logger := app.Observability.Provider.Logger
	var errs []error

	if app.Modules.ScoreModule != nil {
		errs = append(errs, app.Modules.ScoreModule.Close())
	}
	if app.Modules.LeaderboardModule != nil {
		errs = append(errs, app.Modules.LeaderboardModule.Close())
	}
	if app.Modules.MappackModule != nil {
		errs = append(errs, app.Modules.MappackModule.Close())
	}
	app.wg.Wait()

	if app.Queue != nil {
		errs = append(errs, app.Queue.Stop(ctx))
	}
	errs = append(errs, app.closeInfra())

	err := errors.Join(errs...)
	if err != nil {
		logger.ErrorContext(ctx, "Shutdown finished with errors", attr.Error(err))
	}
	return err
}

func (app *App) closeInfra() error {
	var errs []error
	if app.Router != nil {
		errs = append(errs, app.Router.Close())
	}
	if app.EventBus != nil {
		errs = append(errs, app.EventBus.Close())
	}
	if app.DB != nil {
		errs = append(errs, app.DB.Close())
	}
	return errors.Join(errs...)
}
