package leaderboarddb

import (
	"time"

	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/uptrace/bun"
)

// ScoreRow is the ranking view of a mappack score. The table itself is owned
// by the score module.
type ScoreRow struct {
	bun.BaseModel `bun:"table:mappack_scores,alias:s"`

	ID              int64     `bun:"id,pk"`
	Kind            npp.Kind  `bun:"kind"`
	HighscoreableID int64     `bun:"highscoreable_id"`
	MappackID       int64     `bun:"mappack_id"`
	PlayerID        int64     `bun:"player_id"`
	ScoreHS         int       `bun:"score_hs"`
	ScoreSR         int       `bun:"score_sr"`
	Fraction        float64   `bun:"fraction"`
	Gold            int       `bun:"gold"`
	RankHS          *int      `bun:"rank_hs"`
	TiedRankHS      *int      `bun:"tied_rank_hs"`
	RankSR          *int      `bun:"rank_sr"`
	TiedRankSR      *int      `bun:"tied_rank_sr"`
	Date            time.Time `bun:"date"`
}

// RankRow is one row of a bulk rank rewrite.
type RankRow struct {
	ID       int64 `bun:"id"`
	Rank     int   `bun:"rank"`
	TiedRank int   `bun:"tied_rank"`
}

// BoardRow is one leaderboard line as served to the game.
type BoardRow struct {
	ID        int64  `bun:"id"`
	Score     int    `bun:"score"`
	Rank      int    `bun:"rank"`
	Name      string `bun:"name"`
	MetanetID int64  `bun:"metanet_id"`
}

// GoldRow is a level score together with the data the gold check needs.
type GoldRow struct {
	ID        int64  `bun:"id"`
	LevelID   int64  `bun:"level_id"`
	LevelName string `bun:"level_name"`
	LevelGold int    `bun:"level_gold"`
	Player    string `bun:"player"`
	ScoreHS   int    `bun:"score_hs"`
	ScoreSR   int    `bun:"score_sr"`
	Gold      int    `bun:"gold"`
	RankHS    *int   `bun:"rank_hs"`
	RankSR    *int   `bun:"rank_sr"`
}

// GoldFilter narrows the gold check.
type GoldFilter struct {
	// MinID skips older scores. Values below npp.MinReplayID are raised to it.
	MinID int64
	// MappackID restricts the check to one mappack when non-zero.
	MappackID int64
	// Strict only includes scores in the top 20 of either board.
	Strict bool
}
