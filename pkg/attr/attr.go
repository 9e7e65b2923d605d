// Package attr provides slog attribute helpers used across the modules.
package attr

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type ctxKey struct{}

// WithCorrelationID stores a correlation ID in the context. An empty id
// generates a fresh one.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

// CorrelationID returns the correlation ID stored in ctx, if any.
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// ExtractCorrelationID returns the correlation ID as a log attribute.
func ExtractCorrelationID(ctx context.Context) slog.Attr {
	return slog.String("correlation_id", CorrelationID(ctx))
}

func String(key, value string) slog.Attr { return slog.String(key, value) }
func Int(key string, value int) slog.Attr { return slog.Int(key, value) }
func Int64(key string, value int64) slog.Attr { return slog.Int64(key, value) }
func Bool(key string, value bool) slog.Attr { return slog.Bool(key, value) }
func Float64(key string, v float64) slog.Attr { return slog.Float64(key, v) }
func Any(key string, value any) slog.Attr { return slog.Any(key, value) }
func Duration(key string, d time.Duration) slog.Attr { return slog.Duration(key, d) }

// Error renders err under the "error" key.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Mappack tags a log line with the mappack code.
func Mappack(code string) slog.Attr { return slog.String("mappack", code) }

// Highscoreable groups the kind and ID of a leaderboard target.
func Highscoreable(kind string, id int64) slog.Attr {
	return slog.Group("highscoreable", slog.String("kind", kind), slog.Int64("id", id))
}

// Player tags a log line with a Metanet player ID.
func Player(metanetID int64) slog.Attr { return slog.Int64("player_id", metanetID) }
