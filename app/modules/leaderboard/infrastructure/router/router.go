package leaderboardrouter

import (
	"context"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/edelkas/inne-sub000/app/events"
	leaderboardhandlers "github.com/edelkas/inne-sub000/app/modules/leaderboard/infrastructure/handlers"
	"github.com/edelkas/inne-sub000/pkg/eventbus"
	"github.com/edelkas/inne-sub000/pkg/handlerwrapper"
	opmetrics "github.com/edelkas/inne-sub000/pkg/observability/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

const (
	TestEnvironmentFlag  = "APP_ENV"
	TestEnvironmentValue = "test"
)

type LeaderboardRouter struct {
	logger         *slog.Logger
	Router         *message.Router
	subscriber     eventbus.EventBus
	tracer         trace.Tracer
	metrics        opmetrics.OperationMetrics
	metricsBuilder *metrics.PrometheusMetricsBuilder
}

// NewLeaderboardRouter creates a new instance of the router. Router metrics
// are skipped in the test environment or without a registry.
func NewLeaderboardRouter(
	logger *slog.Logger,
	router *message.Router,
	subscriber eventbus.EventBus,
	tracer trace.Tracer,
	m opmetrics.OperationMetrics,
	prometheusRegistry *prometheus.Registry,
) *LeaderboardRouter {
	inTestEnv := os.Getenv(TestEnvironmentFlag) == TestEnvironmentValue

	var metricsBuilder *metrics.PrometheusMetricsBuilder
	if prometheusRegistry != nil && !inTestEnv {
		builder := metrics.NewPrometheusMetricsBuilder(prometheusRegistry, "inne", "leaderboard")
		metricsBuilder = &builder
	}

	return &LeaderboardRouter{
		logger:         logger,
		Router:         router,
		subscriber:     subscriber,
		tracer:         tracer,
		metrics:        m,
		metricsBuilder: metricsBuilder,
	}
}

// Configure sets up the middlewares and registers the event handlers.
func (r *LeaderboardRouter) Configure(ctx context.Context, handlers leaderboardhandlers.Handlers) error {
	if r.metricsBuilder != nil {
		r.logger.Info("Adding Prometheus router metrics middleware for Leaderboard")
		r.metricsBuilder.AddPrometheusRouterMetrics(r.Router)
	}

	r.Router.AddMiddleware(
		middleware.CorrelationID,
		middleware.Recoverer,
	)

	return r.RegisterHandlers(ctx, handlers)
}

// registerHandler subscribes a typed handler to a topic.
func registerHandler[T any](r *LeaderboardRouter, topic string, handler func(context.Context, *T) error) {
	handlerName := "leaderboard." + topic
	r.Router.AddNoPublisherHandler(
		handlerName,
		topic,
		r.subscriber,
		handlerwrapper.WrapTyped(handlerName, r.logger, r.tracer, r.metrics, handler),
	)
}

// RegisterHandlers binds event topics to their handlers.
func (r *LeaderboardRouter) RegisterHandlers(ctx context.Context, handlers leaderboardhandlers.Handlers) error {
	r.logger.InfoContext(ctx, "Registering Leaderboard Event Handlers")

	registerHandler(r, events.ScoreAcceptedV1, handlers.HandleScoreAccepted)
	registerHandler(r, events.ScoreWipedV1, handlers.HandleScoreWiped)
	return nil
}

// Run blocks until the router stops.
func (r *LeaderboardRouter) Run(ctx context.Context) error {
	return r.Router.Run(ctx)
}

// Close stops the router and cleans up resources.
func (r *LeaderboardRouter) Close() error {
	return r.Router.Close()
}

var _ Router = (*LeaderboardRouter)(nil)
