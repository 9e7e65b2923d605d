package leaderboarddomain

import (
	"sort"
	"time"

	"github.com/edelkas/inne-sub000/pkg/npp"
)

// Unranked marks a score that must be placed by the next rank recomputation.
const Unranked = -1

// Entry is the ranking view of a stored score.
type Entry struct {
	ID       int64
	PlayerID int64
	ScoreHS  int
	ScoreSR  int
	// Fraction is the unused share of the last frame, only meaningful on
	// fractional mappacks.
	Fraction float64
	Gold     int
	RankHS   *int
	RankSR   *int
	Date     time.Time
}

// Score returns the raw score of the entry on a board.
func (e Entry) Score(board npp.Board) int {
	if board == npp.Speedrun {
		return e.ScoreSR
	}
	return e.ScoreHS
}

// Effective returns the score used to pick a player's PB. On fractional
// mappacks the frame fraction breaks ties between equal frame counts.
func (e Entry) Effective(board npp.Board, fractional bool) float64 {
	s := float64(e.Score(board))
	if !fractional {
		return s
	}
	if board == npp.Speedrun {
		return s + e.Fraction
	}
	return s - e.Fraction
}

// Rank returns the rank field of the entry on a board.
func (e Entry) Rank(board npp.Board) *int {
	if board == npp.Speedrun {
		return e.RankSR
	}
	return e.RankHS
}

// RankUpdate is one row of a bulk rank rewrite.
type RankUpdate struct {
	ID       int64
	Rank     int
	TiedRank int
}

// ComputeRanks orders every ranked entry of a board (rank not nil, which
// includes entries marked Unranked) and assigns 0-based ranks. Ties on score
// are broken by date, then by ID. The tied rank only advances when the score
// gets strictly worse than the previous distinct score.
func ComputeRanks(entries []Entry, board npp.Board) []RankUpdate {
	ranked := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Rank(board) != nil {
			ranked = append(ranked, e)
		}
	}
	if len(ranked) == 0 {
		return nil
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score(board) != b.Score(board) {
			return board.Better(float64(a.Score(board)), float64(b.Score(board)))
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.ID < b.ID
	})

	updates := make([]RankUpdate, len(ranked))
	tiedScore := ranked[0].Score(board)
	tiedRank := 0
	for i, e := range ranked {
		score := e.Score(board)
		if board.Better(float64(tiedScore), float64(score)) {
			tiedRank = i
			tiedScore = score
		}
		updates[i] = RankUpdate{ID: e.ID, Rank: i, TiedRank: tiedRank}
	}
	return updates
}

// FindPB returns the best entry among a single player's entries on a board,
// or nil when there are none. Equal effective scores favour the older entry.
func FindPB(entries []Entry, board npp.Board, fractional bool) *Entry {
	var best *Entry
	for i := range entries {
		e := &entries[i]
		if best == nil {
			best = e
			continue
		}
		es, bs := e.Effective(board, fractional), best.Effective(board, fractional)
		if board.Better(es, bs) || (es == bs && (e.Date.Before(best.Date) || (e.Date.Equal(best.Date) && e.ID < best.ID))) {
			best = e
		}
	}
	return best
}

// Promote clears every rank a player holds on a board and marks their PB as
// Unranked, so that the next ComputeRanks places exactly one of their entries.
// It returns the promoted entry ID, or 0 when the player has no entries.
func Promote(entries []Entry, board npp.Board, fractional bool) ([]Entry, int64) {
	out := make([]Entry, len(entries))
	copy(out, entries)
	for i := range out {
		setRank(&out[i], board, nil)
	}
	pb := FindPB(out, board, fractional)
	if pb == nil {
		return out, 0
	}
	unranked := Unranked
	setRank(pb, board, &unranked)
	return out, pb.ID
}

func setRank(e *Entry, board npp.Board, rank *int) {
	if board == npp.Speedrun {
		e.RankSR = rank
		return
	}
	e.RankHS = rank
}
