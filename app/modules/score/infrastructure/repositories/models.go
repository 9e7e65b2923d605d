package scoredb

import (
	"time"

	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/uptrace/bun"
)

// Player is a Metanet account seen by the server.
type Player struct {
	bun.BaseModel `bun:"table:players,alias:p"`

	ID          int64     `bun:"id,pk,autoincrement"`
	MetanetID   int64     `bun:"metanet_id,notnull,unique"`
	Name        string    `bun:"name,notnull"`
	SteamID     *string   `bun:"steam_id"`
	Blacklisted bool      `bun:"blacklisted,notnull,default:false"`
	LastActive  time.Time `bun:"last_active,notnull,default:current_timestamp"`
}

// Score is a stored mappack run. Rank columns are nil when the run holds no
// rank on that board, and -1 while a recomputation is pending.
type Score struct {
	bun.BaseModel `bun:"table:mappack_scores,alias:s"`

	ID              int64     `bun:"id,pk,autoincrement"`
	Kind            npp.Kind  `bun:"kind,notnull"`
	HighscoreableID int64     `bun:"highscoreable_id,notnull"`
	MappackID       int64     `bun:"mappack_id,notnull"`
	PlayerID        int64     `bun:"player_id,notnull"`
	MetanetID       int64     `bun:"metanet_id,notnull"`
	ScoreHS         int       `bun:"score_hs,notnull"`
	ScoreSR         int       `bun:"score_sr,notnull"`
	Fraction        float64   `bun:"fraction,notnull,default:1"`
	Gold            int       `bun:"gold,notnull,default:0"`
	RankHS          *int      `bun:"rank_hs"`
	TiedRankHS      *int      `bun:"tied_rank_hs"`
	RankSR          *int      `bun:"rank_sr"`
	TiedRankSR      *int      `bun:"tied_rank_sr"`
	Tab             int       `bun:"tab,notnull"`
	Version         int       `bun:"version"`
	Simulated       bool      `bun:"simulated,notnull,default:false"`
	Date            time.Time `bun:"date,notnull,default:current_timestamp"`
}

// Demo holds the compressed inputs of a score.
type Demo struct {
	bun.BaseModel `bun:"table:mappack_demos,alias:d"`

	ID   int64  `bun:"id,pk"`
	Demo []byte `bun:"demo,notnull"`
}

// Tweak is the episode offset carried between level submissions.
type Tweak struct {
	bun.BaseModel `bun:"table:mappack_scores_tweaks,alias:t"`

	PlayerID  int64     `bun:"player_id,pk"`
	EpisodeID int64     `bun:"episode_id,pk"`
	Index     int       `bun:"idx,notnull"`
	Tweak     int       `bun:"tweak,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// BadHash records a score whose security token did not match any map version.
type BadHash struct {
	bun.BaseModel `bun:"table:bad_hashes,alias:bh"`

	ScoreID int64  `bun:"score_id,pk"`
	NppHash string `bun:"npp_hash,notnull"`
	Score   int    `bun:"score,notnull"`
}
