package leaderboardservice

import (
	"context"
	"io"

	leaderboarddb "github.com/edelkas/inne-sub000/app/modules/leaderboard/infrastructure/repositories"
	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/uptrace/bun"
)

// Ranker maintains ranks inside a caller's transaction. The score module runs
// every method after Lock, within the transaction that stored the score.
type Ranker interface {
	// Lock serialises rank recomputation of a highscoreable until the
	// surrounding transaction ends.
	Lock(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) error

	// UpdateRanks recomputes rank and tied rank of a board in one bulk write.
	UpdateRanks(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, board npp.Board) (int, error)

	// Promote moves a player's rank on a board to their current PB and
	// re-ranks the board. It returns the ID of the promoted score, 0 if none.
	Promote(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, playerID int64, board npp.Board, fractional bool) (int64, error)

	// DeleteObsoletes removes a player's obsolete scores, or every player's
	// when playerID is zero.
	DeleteObsoletes(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, playerID int64) (int, error)

	// RefreshCompletions recounts and stores the completions of a highscoreable.
	RefreshCompletions(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) (int, error)
}

// Service defines the contract for leaderboard operations.
type Service interface {
	Ranker

	// GetScores answers a game client leaderboard request.
	GetScores(ctx context.Context, q ScoresQuery) (*ScoresResponse, error)
	// InvalidateBoard drops the cached responses of a highscoreable.
	InvalidateBoard(kind npp.Kind, id int64)

	// Rerank recomputes both boards of a highscoreable and drops obsolete scores.
	Rerank(ctx context.Context, kind npp.Kind, id int64) (*RerankReport, error)
	// RecountCompletions refreshes completion counts of a mappack (0 for all).
	RecountCompletions(ctx context.Context, mappackID int64) (int, error)

	// GoldCheck lists the level scores whose gold is inconsistent.
	GoldCheck(ctx context.Context, filter leaderboarddb.GoldFilter) (*GoldReport, error)
	// ExportGoldCheck writes a report as an XLSX workbook.
	ExportGoldCheck(ctx context.Context, report *GoldReport, w io.Writer) error
}
