package mappackdb

import (
	"context"

	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/uptrace/bun"
)

// Repository defines the contract for mappack persistence. Every method
// accepts an optional bun.IDB so callers can run it inside a transaction.
type Repository interface {
	// GetMappackByCode retrieves a mappack by its code, case-insensitively.
	GetMappackByCode(ctx context.Context, db bun.IDB, code string) (*Mappack, error)

	// GetMappackByID retrieves a mappack by its numeric ID.
	GetMappackByID(ctx context.Context, db bun.IDB, id int64) (*Mappack, error)

	// ListMappacks returns every mappack ordered by ID.
	ListMappacks(ctx context.Context, db bun.IDB) ([]Mappack, error)

	// UpsertMappack creates or updates a mappack.
	UpsertMappack(ctx context.Context, db bun.IDB, m *Mappack) error

	// GetHighscoreable finds a highscoreable by its mappack-relative ID.
	GetHighscoreable(ctx context.Context, db bun.IDB, mappackID int64, kind npp.Kind, innerID int) (*Highscoreable, error)

	// GetHighscoreableByID finds a highscoreable by its global ID.
	GetHighscoreableByID(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) (*Highscoreable, error)

	// ListHighscoreables returns the highscoreables of a kind in a mappack ordered by ID.
	ListHighscoreables(ctx context.Context, db bun.IDB, mappackID int64, kind npp.Kind) ([]Highscoreable, error)

	// UpsertHighscoreable creates or updates a highscoreable.
	UpsertHighscoreable(ctx context.Context, db bun.IDB, h *Highscoreable) error

	// DeleteHighscoreables removes every highscoreable of a mappack.
	DeleteHighscoreables(ctx context.Context, db bun.IDB, mappackID int64) error

	// RollupGold sets episode and story gold to the sum of their children.
	RollupGold(ctx context.Context, db bun.IDB, mappackID int64) error

	// GetMapData returns the newest tile and object data at or below version.
	// A version <= 0 selects the latest data.
	GetMapData(ctx context.Context, db bun.IDB, levelID int64, version int) (tiles, objects []byte, err error)

	// SaveMapData upserts a map data version, leaving nil columns untouched.
	SaveMapData(ctx context.Context, db bun.IDB, d *MapData) error

	// DeleteMapDataFrom removes the map data of a mappack at or above version.
	DeleteMapDataFrom(ctx context.Context, db bun.IDB, mappackID int64, version int) error

	// ListVersions returns the map versions stored for the levels of a highscoreable.
	ListVersions(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) ([]int, error)

	// GetHashes returns the stored hashes of a highscoreable ordered by version.
	GetHashes(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) ([]Hash, error)

	// ReplaceHashes swaps the stored hashes of a highscoreable.
	ReplaceHashes(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, hashes []Hash) error
}
