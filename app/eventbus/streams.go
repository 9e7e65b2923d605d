package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/edelkas/inne-sub000/pkg/attr"
	"github.com/nats-io/nats.go/jetstream"
)

// streamConfigs lists the JetStream streams the server publishes to.
var streamConfigs = []jetstream.StreamConfig{
	{
		Name:     "score",
		Subjects: []string{"score.>"},
	},
	{
		Name:     "vanilla",
		Subjects: []string{"vanilla.>"},
	},
}

// InitializeStreams creates the missing streams.
func InitializeStreams(ctx context.Context, js jetstream.JetStream, logger *slog.Logger) error {
	for _, cfg := range streamConfigs {
		_, err := js.Stream(ctx, cfg.Name)
		if errors.Is(err, jetstream.ErrStreamNotFound) {
			if _, err := js.CreateStream(ctx, cfg); err != nil {
				logger.ErrorContext(ctx, "Failed to create JetStream stream", attr.String("stream", cfg.Name), attr.Error(err))
				return fmt.Errorf("failed to create stream %s: %w", cfg.Name, err)
			}
			logger.InfoContext(ctx, "Created JetStream stream", attr.String("stream", cfg.Name))
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to check stream %s: %w", cfg.Name, err)
		}
	}
	return nil
}
