// Package events holds the topics and payloads exchanged between modules and
// with the external consumers of the leaderboard server.
package events

import "time"

const (
	// ScoreAcceptedV1 is published after a submission improved a PB.
	ScoreAcceptedV1 = "score.accepted.v1"
	// ScoreFlaggedV1 is published for scores that need operator review.
	ScoreFlaggedV1 = "score.flagged.v1"
	// ScoreWipedV1 is published after a score was removed by an operator.
	ScoreWipedV1 = "score.wiped.v1"
	// VanillaRefreshRequestedV1 asks the vanilla score collector to refresh a board.
	VanillaRefreshRequestedV1 = "vanilla.refresh_requested.v1"
)

// Flag reasons carried by ScoreFlaggedPayloadV1.
const (
	FlagCorrupt      = "corrupt"
	FlagHashMismatch = "hash_mismatch"
	FlagOldVersion   = "old_version"
)

// ScoreAcceptedPayloadV1 describes an accepted improvement. Ranks are -1 when
// the score holds no rank on that board.
type ScoreAcceptedPayloadV1 struct {
	ScoreID         int64     `json:"score_id"`
	Mappack         string    `json:"mappack"`
	Kind            string    `json:"kind"`
	HighscoreableID int64     `json:"highscoreable_id"`
	InnerID         int       `json:"inner_id"`
	PlayerID        int64     `json:"player_id"`
	ScoreHS         int       `json:"score_hs"`
	ScoreSR         int       `json:"score_sr"`
	RankHS          int       `json:"rank_hs"`
	RankSR          int       `json:"rank_sr"`
	ImprovedHS      bool      `json:"improved_hs"`
	ImprovedSR      bool      `json:"improved_sr"`
	SubmittedAt     time.Time `json:"submitted_at"`
}

// ScoreFlaggedPayloadV1 describes a suspicious score.
type ScoreFlaggedPayloadV1 struct {
	ScoreID  int64  `json:"score_id"`
	Mappack  string `json:"mappack"`
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	PlayerID int64  `json:"player_id"`
	Reason   string `json:"reason"`
	Detail   string `json:"detail,omitempty"`
}

// ScoreWipedPayloadV1 identifies a removed score and the board it was on.
type ScoreWipedPayloadV1 struct {
	ScoreID         int64  `json:"score_id"`
	Mappack         string `json:"mappack"`
	Kind            string `json:"kind"`
	HighscoreableID int64  `json:"highscoreable_id"`
	InnerID         int    `json:"inner_id"`
	PlayerID        int64  `json:"player_id"`
}

// VanillaRefreshRequestedPayloadV1 names a vanilla board to refresh.
type VanillaRefreshRequestedPayloadV1 struct {
	Kind     string `json:"kind"`
	ID       int64  `json:"id"`
	PlayerID int64  `json:"player_id"`
}
