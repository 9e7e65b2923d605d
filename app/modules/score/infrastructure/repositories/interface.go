package scoredb

import (
	"context"

	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/uptrace/bun"
)

// Repository defines the contract for score persistence. Every method takes an
// optional bun.IDB so that callers can run it inside their transaction.
//
// Error semantics:
//   - ErrNotFound: Record does not exist
//   - ErrNoRowsAffected: UPDATE/DELETE matched no rows
//   - Other errors: Infrastructure failures (DB connection, query errors)
type Repository interface {
	// GetPlayer finds a player by Metanet ID.
	GetPlayer(ctx context.Context, db bun.IDB, metanetID int64) (*Player, error)
	// GetPlayerBySteamID finds a player by Steam ID.
	GetPlayerBySteamID(ctx context.Context, db bun.IDB, steamID string) (*Player, error)
	// EnsurePlayer returns the player with a Metanet ID, creating it with the
	// given name if needed.
	EnsurePlayer(ctx context.Context, db bun.IDB, metanetID int64, name string) (*Player, error)
	// UpsertPlayer stores the name and Steam ID reported by a login.
	UpsertPlayer(ctx context.Context, db bun.IDB, p *Player) error
	// SetBlacklisted flags or clears a player.
	SetBlacklisted(ctx context.Context, db bun.IDB, metanetID int64, blacklisted bool) error

	// ListPlayerScores returns the scores of one player on a highscoreable ordered by ID.
	ListPlayerScores(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, playerID int64) ([]Score, error)
	// GetScore finds a score by ID.
	GetScore(ctx context.Context, db bun.IDB, id int64) (*Score, error)
	// InsertScore stores a score and sets its ID.
	InsertScore(ctx context.Context, db bun.IDB, s *Score) error
	// UpdateHighscore rewrites the highscore and gold of a score.
	UpdateHighscore(ctx context.Context, db bun.IDB, id int64, scoreHS int, gold int) error
	// DeleteScore removes a score together with its demo.
	DeleteScore(ctx context.Context, db bun.IDB, id int64) error
	// ClearRanks clears a player's ranks on one board of a highscoreable.
	ClearRanks(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, playerID int64, board npp.Board) error
	// BestRanked returns the player's ranked score on a board, if any.
	BestRanked(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, playerID int64, board npp.Board) (*Score, error)

	// InsertDemo stores the compressed demos of a score.
	InsertDemo(ctx context.Context, db bun.IDB, d *Demo) error
	// GetDemo returns the compressed demos of a score.
	GetDemo(ctx context.Context, db bun.IDB, id int64) (*Demo, error)

	// GetTweak returns the stored episode offset of a player.
	GetTweak(ctx context.Context, db bun.IDB, playerID, episodeID int64) (*Tweak, error)
	// SaveTweak creates or replaces an episode offset.
	SaveTweak(ctx context.Context, db bun.IDB, t *Tweak) error
	// DeleteTweak removes an episode offset.
	DeleteTweak(ctx context.Context, db bun.IDB, playerID, episodeID int64) error

	// SaveBadHash records a score whose security token did not verify.
	SaveBadHash(ctx context.Context, db bun.IDB, b *BadHash) error
}
