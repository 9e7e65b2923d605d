package scorehandlers

import (
	"context"

	leaderboardservice "github.com/edelkas/inne-sub000/app/modules/leaderboard/application"
	mappackdomain "github.com/edelkas/inne-sub000/app/modules/mappack/domain"
)

// Boards answers leaderboard requests.
type Boards interface {
	GetScores(ctx context.Context, q leaderboardservice.ScoresQuery) (*leaderboardservice.ScoresResponse, error)
}

// Mappacks resolves the mappack named in a request path.
type Mappacks interface {
	GetMappack(ctx context.Context, code string) (*mappackdomain.Pack, error)
}
