package testutils

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"strings"
	"testing"

	"github.com/edelkas/inne-sub000/app"
	appeventbus "github.com/edelkas/inne-sub000/app/eventbus"
	"github.com/edelkas/inne-sub000/integration_tests/containers"
	"github.com/edelkas/inne-sub000/pkg/eventbus"
	"github.com/edelkas/inne-sub000/pkg/observability"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/uptrace/bun"
)

// TestEnvironment holds the containers and connections shared by a test
// package.
type TestEnvironment struct {
	Ctx           context.Context
	CancelContext context.CancelFunc
	PgContainer   *postgres.PostgresContainer
	NatsContainer testcontainers.Container
	DB            *bun.DB
	DSN           string
	NatsURL       string
	EventBus      eventbus.EventBus
	Obs           observability.Observability
	Logger        *slog.Logger
}

// appTables are truncated between tests. Identities restart so that score
// IDs begin at the replay ID floor again.
var appTables = []string{
	"bad_hashes",
	"mappack_scores_tweaks",
	"mappack_demos",
	"mappack_scores",
	"players",
	"mappack_hashes",
	"mappack_data",
	"mappack_highscoreables",
	"mappacks",
}

// NewTestEnvironment starts Postgres and NATS, applies every module migration
// and connects the event bus.
func NewTestEnvironment(t *testing.T) (*TestEnvironment, error) {
	ctx, cancel := context.WithCancel(context.Background())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	env := &TestEnvironment{
		Ctx:           ctx,
		CancelContext: cancel,
		Obs:           observability.NewNoop(),
		Logger:        logger,
	}

	pgContainer, dsn, err := containers.SetupPostgresContainer(ctx)
	if err != nil {
		cancel()
		return nil, err
	}
	env.PgContainer = pgContainer
	env.DSN = dsn

	natsContainer, natsURL, err := containers.SetupNatsContainer(ctx)
	if err != nil {
		env.Cleanup()
		return nil, err
	}
	env.NatsContainer = natsContainer
	env.NatsURL = natsURL

	env.DB = app.OpenDB(dsn)
	if err := env.DB.PingContext(ctx); err != nil {
		env.Cleanup()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := app.Migrate(ctx, app.Migrators(env.DB), func(module, group string) {
		log.Printf("Migrated %s: %s", module, group)
	}); err != nil {
		env.Cleanup()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	bus, err := appeventbus.NewEventBus(ctx, natsURL, "inne-test", logger)
	if err != nil {
		env.Cleanup()
		return nil, err
	}
	env.EventBus = bus

	return env, nil
}

// Reset truncates every application table.
func (env *TestEnvironment) Reset(ctx context.Context) error {
	query := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(appTables, ", "))
	if _, err := env.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}
	return nil
}

// Cleanup closes the connections and terminates the containers.
func (env *TestEnvironment) Cleanup() {
	if env.EventBus != nil {
		_ = env.EventBus.Close()
	}
	if env.DB != nil {
		_ = env.DB.Close()
	}
	ctx := context.Background()
	if env.NatsContainer != nil {
		if err := env.NatsContainer.Terminate(ctx); err != nil {
			log.Printf("Failed to terminate NATS container: %v", err)
		}
	}
	if env.PgContainer != nil {
		if err := env.PgContainer.Terminate(ctx); err != nil {
			log.Printf("Failed to terminate postgres container: %v", err)
		}
	}
	env.CancelContext()
}
