package mappackdb

import (
	"time"

	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/uptrace/bun"
)

// Mappack is a hosted collection of levels.
type Mappack struct {
	bun.BaseModel `bun:"table:mappacks,alias:mp"`

	ID         int64     `bun:"id,pk"`
	Code       string    `bun:"code,notnull,unique"`
	Version    int       `bun:"version,notnull,default:1"`
	Name       string    `bun:"name"`
	Authors    string    `bun:"authors"`
	Date       string    `bun:"date"`
	Enabled    bool      `bun:"enabled,notnull,default:true"`
	Fractional bool      `bun:"fractional,notnull,default:false"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Highscoreable is a mappack level, episode or story. IDs are global: the
// mappack offset is already applied.
type Highscoreable struct {
	bun.BaseModel `bun:"table:mappack_highscoreables,alias:h"`

	Kind      npp.Kind `bun:"kind,pk"`
	ID        int64    `bun:"id,pk"`
	InnerID   int      `bun:"inner_id,notnull"`
	MappackID int64    `bun:"mappack_id,notnull"`
	Mode      npp.Mode `bun:"mode,notnull"`
	Tab       int      `bun:"tab,notnull"`
	// ParentID is the episode of a level or the story of an episode.
	ParentID    *int64 `bun:"parent_id"`
	Name        string `bun:"name,notnull"`
	Longname    string `bun:"longname"`
	Gold        int    `bun:"gold,notnull,default:0"`
	Completions int    `bun:"completions,notnull,default:0"`
}

// MapData is one version of a level's compressed tiles and objects. A nil
// column means it did not change in this version.
type MapData struct {
	bun.BaseModel `bun:"table:mappack_data,alias:md"`

	LevelID    int64  `bun:"level_id,pk"`
	Version    int    `bun:"version,pk"`
	TileData   []byte `bun:"tile_data"`
	ObjectData []byte `bun:"object_data"`
}

// Hash is the precomputed integrity hash of a highscoreable at a version.
type Hash struct {
	bun.BaseModel `bun:"table:mappack_hashes,alias:mh"`

	Kind            npp.Kind `bun:"kind,pk"`
	HighscoreableID int64    `bun:"highscoreable_id,pk"`
	Version         int      `bun:"version,pk"`
	SHA1            []byte   `bun:"sha1_hash"`
}
