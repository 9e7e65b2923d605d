package mappackintegrationtests

import (
	"context"
	"log"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	mappackservice "github.com/edelkas/inne-sub000/app/modules/mappack/application"
	mappackdb "github.com/edelkas/inne-sub000/app/modules/mappack/infrastructure/repositories"
	"github.com/edelkas/inne-sub000/integration_tests/testutils"
	"github.com/edelkas/inne-sub000/pkg/observability/metrics"
)

const testPassword = "hunter2"

var (
	testEnv     *testutils.TestEnvironment
	testEnvOnce sync.Once
	testEnvErr  error
)

type TestDeps struct {
	Ctx     context.Context
	Repo    mappackdb.Repository
	Service *mappackservice.MappackService
	Root    string
}

func GetTestEnv(t *testing.T) *testutils.TestEnvironment {
	t.Helper()

	testEnvOnce.Do(func() {
		log.Println("Initializing mappack test environment...")
		testEnv, testEnvErr = testutils.NewTestEnvironment(t)
	})
	if testEnvErr != nil {
		t.Fatalf("Mappack test environment initialization failed: %v", testEnvErr)
	}
	return testEnv
}

// SetupTestMappackService returns a service reading mappacks from a fresh
// temporary root.
func SetupTestMappackService(t *testing.T) TestDeps {
	t.Helper()
	env := GetTestEnv(t)

	resetCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.Reset(resetCtx); err != nil {
		t.Fatalf("Failed to reset environment: %v", err)
	}

	root := t.TempDir()
	repo := mappackdb.NewRepository(env.DB)
	service := mappackservice.NewMappackService(
		repo,
		env.Logger,
		metrics.NewNoop(),
		noop.NewTracerProvider().Tracer("test_mappack_service"),
		env.DB,
		nil,
		mappackservice.Options{HashPassword: testPassword, Root: root},
	)
	return TestDeps{Ctx: env.Ctx, Repo: repo, Service: service, Root: root}
}
