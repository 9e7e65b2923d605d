package scoreintegrationtests

import (
	"context"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace/noop"

	leaderboardservice "github.com/edelkas/inne-sub000/app/modules/leaderboard/application"
	leaderboarddb "github.com/edelkas/inne-sub000/app/modules/leaderboard/infrastructure/repositories"
	mappackservice "github.com/edelkas/inne-sub000/app/modules/mappack/application"
	mappackdb "github.com/edelkas/inne-sub000/app/modules/mappack/infrastructure/repositories"
	scoreservice "github.com/edelkas/inne-sub000/app/modules/score/application"
	scoredb "github.com/edelkas/inne-sub000/app/modules/score/infrastructure/repositories"
	"github.com/edelkas/inne-sub000/integration_tests/testutils"
	"github.com/edelkas/inne-sub000/pkg/eventbus"
	"github.com/edelkas/inne-sub000/pkg/observability/metrics"
)

var (
	testEnv     *testutils.TestEnvironment
	testEnvOnce sync.Once
	testEnvErr  error
)

type TestDeps struct {
	Ctx      context.Context
	BunDB    *bun.DB
	Repo     scoredb.Repository
	Service  scoreservice.Service
	Boards   leaderboardservice.Service
	EventBus eventbus.EventBus
	Data     *testutils.DataGenerator
}

func GetTestEnv(t *testing.T) *testutils.TestEnvironment {
	t.Helper()

	testEnvOnce.Do(func() {
		log.Println("Initializing score test environment...")
		testEnv, testEnvErr = testutils.NewTestEnvironment(t)
	})
	if testEnvErr != nil {
		t.Fatalf("Score test environment initialization failed: %v", testEnvErr)
	}
	return testEnv
}

func SetupTestScoreService(t *testing.T) TestDeps {
	t.Helper()
	env := GetTestEnv(t)

	resetCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.Reset(resetCtx); err != nil {
		t.Fatalf("Failed to reset environment: %v", err)
	}

	tracer := noop.NewTracerProvider().Tracer("test_score_service")
	mappacks := mappackservice.NewMappackService(
		mappackdb.NewRepository(env.DB),
		env.Logger,
		metrics.NewNoop(),
		tracer,
		env.DB,
		nil,
		mappackservice.Options{},
	)
	boards := leaderboardservice.NewLeaderboardService(
		leaderboarddb.NewRepository(env.DB),
		mappacks,
		env.Logger,
		metrics.NewNoop(),
		tracer,
		env.DB,
		nil,
	)
	repo := scoredb.NewRepository(env.DB)
	service := scoreservice.NewScoreService(
		repo,
		mappacks,
		boards,
		scoreservice.Collaborators{Publisher: env.EventBus},
		env.Logger,
		metrics.NewNoop(),
		tracer,
		env.DB,
		scoreservice.DefaultOptions(),
	)

	return TestDeps{
		Ctx:      env.Ctx,
		BunDB:    env.DB,
		Repo:     repo,
		Service:  service,
		Boards:   boards,
		EventBus: env.EventBus,
		Data:     testutils.NewDataGenerator(env.DB, uint64(time.Now().UnixNano())),
	}
}

func intPtr(v int) *int { return &v }
