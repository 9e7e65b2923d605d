package leaderboardservice

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/edelkas/inne-sub000/pkg/attr"
	"github.com/edelkas/inne-sub000/pkg/npp"
)

// ScoresQuery is a parsed get_scores request.
type ScoresQuery struct {
	Code    string
	Kind    npp.Kind
	InnerID int
	// QT selects the board: 0 and 1 are highscores, 2 is speedrun.
	QT int
	// PlayerID is the Metanet ID of the requester, only used for logging.
	PlayerID int64
}

// ScoreLine is one leaderboard row in the format the game expects.
type ScoreLine struct {
	Score    int    `json:"score"`
	Rank     int    `json:"rank"`
	UserID   int64  `json:"user_id"`
	UserName string `json:"user_name"`
	ReplayID int64  `json:"replay_id"`
}

// ScoresResponse is the get_scores reply. The ID field name depends on the kind.
type ScoresResponse struct {
	Scores    []ScoreLine
	QueryType int
	Kind      npp.Kind
	InnerID   int
}

func (r ScoresResponse) MarshalJSON() ([]byte, error) {
	scores := r.Scores
	if scores == nil {
		scores = []ScoreLine{}
	}
	return json.Marshal(map[string]any{
		"scores":         scores,
		"query_type":     r.QueryType,
		r.Kind.IDField(): r.InnerID,
	})
}

func boardCacheKey(kind npp.Kind, id int64, qt int) string {
	return fmt.Sprintf("%d:%d:%d", kind, id, qt)
}

// leaderboardQTs are the query types a board response can be cached under.
var leaderboardQTs = []int{0, 1, 2}

// GetScores returns the first page of a mappack board. Unknown mappacks and
// highscoreables are npp.ErrNotFound so that the caller can forward them.
func (s *LeaderboardService) GetScores(ctx context.Context, q ScoresQuery) (*ScoresResponse, error) {
	board, ok := npp.BoardFromQT(q.QT)
	if !ok {
		return nil, npp.Errorf("leaderboard.GetScores", npp.ErrFormat, "query type %d", q.QT)
	}

	pack, err := s.mappacks.GetMappack(ctx, q.Code)
	if err != nil {
		return nil, err
	}
	h, err := s.mappacks.FindHighscoreable(ctx, pack.ID, q.Kind, q.InnerID)
	if err != nil {
		return nil, err
	}

	key := boardCacheKey(h.Kind, h.ID, q.QT)
	if s.cache != nil {
		resp, hit := s.cache.Get(key)
		if s.metrics != nil {
			s.metrics.RecordCacheLookup(ctx, hit)
		}
		if hit {
			return resp, nil
		}
	}

	const page = 0
	rows, err := s.repo.GetBoard(ctx, nil, h.Kind, h.ID, board, page*npp.PageSize, npp.PageSize)
	if err != nil {
		return nil, fmt.Errorf("leaderboard.GetScores: %w", err)
	}

	resp := &ScoresResponse{
		Scores:    make([]ScoreLine, 0, len(rows)),
		QueryType: q.QT,
		Kind:      h.Kind,
		InnerID:   h.InnerID,
	}
	for i, row := range rows {
		rank := page*npp.PageSize + i
		score := npp.SRDisplay(row.Score)
		if board == npp.Highscore {
			score = npp.HSDisplay(row.Score)
		}
		resp.Scores = append(resp.Scores, ScoreLine{
			Score:    score,
			Rank:     rank,
			UserID:   row.MetanetID,
			UserName: strings.ReplaceAll(row.Name, `\`, ""),
			ReplayID: npp.PackReplayID(rank, row.ID),
		})
	}

	if s.cache != nil {
		s.cache.Set(key, resp)
	}
	s.logger.DebugContext(ctx, "Leaderboard requested",
		attr.ExtractCorrelationID(ctx),
		attr.String("name", h.Name),
		attr.Player(q.PlayerID),
		attr.Int("rows", len(resp.Scores)),
	)
	return resp, nil
}

// InvalidateBoard drops every cached response of a highscoreable.
func (s *LeaderboardService) InvalidateBoard(kind npp.Kind, id int64) {
	if s.cache == nil {
		return
	}
	for _, qt := range leaderboardQTs {
		s.cache.Delete(boardCacheKey(kind, id, qt))
	}
}
