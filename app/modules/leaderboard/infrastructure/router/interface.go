package leaderboardrouter

import (
	"context"

	leaderboardhandlers "github.com/edelkas/inne-sub000/app/modules/leaderboard/infrastructure/handlers"
)

// Router binds the leaderboard handlers to their topics.
type Router interface {
	Configure(ctx context.Context, handlers leaderboardhandlers.Handlers) error
	Run(ctx context.Context) error
	Close() error
}
