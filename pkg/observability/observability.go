// Package observability wires logging, tracing and metrics for the process.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/edelkas/inne-sub000/pkg/observability/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the observability backends.
type Config struct {
	ServiceName   string
	Environment   string
	OTLPEndpoint  string
	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogBackups    int
	LogMaxAgeDays int
}

// Provider owns the process-wide logger and shutdown hooks.
type Provider struct {
	Logger   *slog.Logger
	shutdown []func(context.Context) error
}

// Registry hands instruments to the modules.
type Registry struct {
	Tracer             trace.Tracer
	Prometheus         *prometheus.Registry
	MappackMetrics     metrics.MappackMetrics
	ScoreMetrics       metrics.ScoreMetrics
	LeaderboardMetrics metrics.LeaderboardMetrics
	QueueMetrics       metrics.OperationMetrics
}

// Observability bundles what every module constructor receives.
type Observability struct {
	Provider *Provider
	Registry *Registry
}

// Init builds the logger, tracer provider and Prometheus registry.
func Init(ctx context.Context, cfg Config) (Observability, error) {
	logger := NewLogger(cfg)
	slog.SetDefault(logger)

	provider := &Provider{Logger: logger}

	var tp trace.TracerProvider = noop.NewTracerProvider()
	if cfg.OTLPEndpoint != "" {
		exporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return Observability{}, fmt.Errorf("observability.Init: trace exporter: %w", err)
		}
		sdkProvider := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(resource.NewSchemaless(
				attribute.String("service.name", cfg.ServiceName),
				attribute.String("deployment.environment", cfg.Environment),
			)),
		)
		provider.shutdown = append(provider.shutdown, sdkProvider.Shutdown)
		tp = sdkProvider
	}
	otel.SetTracerProvider(tp)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	logger.InfoContext(ctx, "Observability initialized",
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing", cfg.OTLPEndpoint != ""),
		slog.String("log_file", cfg.LogFile),
	)

	return Observability{
		Provider: provider,
		Registry: &Registry{
			Tracer:             tp.Tracer(cfg.ServiceName),
			Prometheus:         reg,
			MappackMetrics:     metrics.NewMappackMetrics(reg),
			ScoreMetrics:       metrics.NewScoreMetrics(reg),
			LeaderboardMetrics: metrics.NewLeaderboardMetrics(reg),
			QueueMetrics:       metrics.NewQueueMetrics(reg),
		},
	}, nil
}

// NewNoop returns an Observability that logs to slog.Default and records nothing.
func NewNoop() Observability {
	m := metrics.NewNoop()
	return Observability{
		Provider: &Provider{Logger: slog.Default()},
		Registry: &Registry{
			Tracer:             noop.NewTracerProvider().Tracer("noop"),
			Prometheus:         prometheus.NewRegistry(),
			MappackMetrics:     m,
			ScoreMetrics:       m,
			LeaderboardMetrics: m,
			QueueMetrics:       m,
		},
	}
}

// Shutdown flushes the tracer provider.
func (o Observability) Shutdown(ctx context.Context) error {
	if o.Provider == nil {
		return nil
	}
	var errs []error
	for _, fn := range o.Provider.shutdown {
		errs = append(errs, fn(ctx))
	}
	return errors.Join(errs...)
}

// NewLogger builds the JSON logger, teeing into a rotated file when configured.
func NewLogger(cfg Config) *slog.Logger {
	var w io.Writer = os.Stdout
	if cfg.LogFile != "" {
		w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogBackups,
			MaxAge:     cfg.LogMaxAgeDays,
			Compress:   true,
		})
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
