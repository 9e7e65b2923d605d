package leaderboarddb

import (
	"context"

	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/uptrace/bun"
)

// Repository defines the contract for ranking persistence. Every method takes
// an optional bun.IDB so that callers can run it inside their transaction.
//
// Error semantics:
//   - ErrNotFound: Record does not exist
//   - ErrNoRowsAffected: UPDATE/DELETE matched no rows
//   - Other errors: Infrastructure failures (DB connection, query errors)
type Repository interface {
	// LockHighscoreable takes a transaction-scoped advisory lock serialising
	// rank recomputation of one highscoreable. It must run inside a transaction.
	LockHighscoreable(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) error

	// ListScores returns every score of a highscoreable.
	ListScores(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) ([]ScoreRow, error)

	// ListPlayerScores returns the scores of one player on a highscoreable.
	ListPlayerScores(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, playerID int64) ([]ScoreRow, error)

	// ApplyRanks rewrites rank and tied rank of a board in a single statement.
	ApplyRanks(ctx context.Context, db bun.IDB, board npp.Board, rows []RankRow) (int, error)

	// SetRanks sets both rank fields of a board to rank (nil clears them).
	SetRanks(ctx context.Context, db bun.IDB, board npp.Board, ids []int64, rank *int) error

	// DeleteScores removes scores; their demos are removed by cascade.
	DeleteScores(ctx context.Context, db bun.IDB, ids []int64) (int, error)

	// CountCompletions counts the players ranked on the hs board.
	CountCompletions(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) (int, error)

	// SetCompletions stores the completion count of a highscoreable.
	SetCompletions(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, n int) error

	// RecountCompletions recounts every highscoreable of a mappack, or of all
	// mappacks when mappackID is zero. It returns the number of rows updated.
	RecountCompletions(ctx context.Context, db bun.IDB, mappackID int64) (int, error)

	// GetBoard returns a page of a board ordered by rank.
	GetBoard(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, board npp.Board, offset, limit int) ([]BoardRow, error)

	// ListGoldRows returns the level scores selected by the filter, ordered by
	// level and score ID.
	ListGoldRows(ctx context.Context, db bun.IDB, filter GoldFilter) ([]GoldRow, error)
}
