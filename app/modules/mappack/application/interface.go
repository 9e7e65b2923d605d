package mappackservice

import (
	"context"

	mappackdomain "github.com/edelkas/inne-sub000/app/modules/mappack/domain"
	"github.com/edelkas/inne-sub000/pkg/npp"
)

// Service is the mappack catalog used by the score and leaderboard modules
// and by the command line tools.
type Service interface {
	// GetMappack resolves a mappack by code. Missing mappacks are an npp.ErrNotFound.
	GetMappack(ctx context.Context, code string) (*mappackdomain.Pack, error)
	ListMappacks(ctx context.Context) ([]mappackdomain.Pack, error)

	// FindHighscoreable resolves a highscoreable by its mappack-relative ID.
	FindHighscoreable(ctx context.Context, mappackID int64, kind npp.Kind, innerID int) (*mappackdomain.Highscoreable, error)
	GetHighscoreable(ctx context.Context, kind npp.Kind, id int64) (*mappackdomain.Highscoreable, error)
	ListHighscoreables(ctx context.Context, mappackID int64, kind npp.Kind) ([]mappackdomain.Highscoreable, error)

	// LoadLevel decodes the map of a level at a version (<= 0 for the latest).
	LoadLevel(ctx context.Context, levelID int64, version int) (*mappackdomain.Level, error)
	// DumpLevels returns the userlevel dumps of every level of a highscoreable.
	DumpLevels(ctx context.Context, h *mappackdomain.Highscoreable) ([][]byte, error)

	// VerifyReplay checks a security token against every stored map version.
	VerifyReplay(ctx context.Context, h *mappackdomain.Highscoreable, frames int, token []byte) (bool, error)
	UpdateHashes(ctx context.Context, mappackID int64) (*HashReport, error)

	Seed(ctx context.Context, opts SeedOptions) (*SeedReport, error)
	Digest(ctx context.Context) ([]mappackdomain.DigestEntry, error)
	WriteDigest(ctx context.Context, path string) error
}
