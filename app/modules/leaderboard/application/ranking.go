package leaderboardservice

import (
	"context"
	"fmt"

	leaderboarddomain "github.com/edelkas/inne-sub000/app/modules/leaderboard/domain"
	leaderboarddb "github.com/edelkas/inne-sub000/app/modules/leaderboard/infrastructure/repositories"
	"github.com/edelkas/inne-sub000/pkg/attr"
	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/edelkas/inne-sub000/pkg/results"
	"github.com/uptrace/bun"
)

// RerankReport summarises an administrative rank recomputation.
type RerankReport struct {
	Ranked      map[npp.Board]int
	Deleted     int
	Completions int
}

func (s *LeaderboardService) Lock(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) error {
	return s.repo.LockHighscoreable(ctx, db, kind, id)
}

func (s *LeaderboardService) UpdateRanks(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, board npp.Board) (int, error) {
	if !board.Valid() {
		return 0, npp.Errorf("leaderboard.UpdateRanks", npp.ErrFormat, "board %q", board)
	}
	rows, err := s.repo.ListScores(ctx, db, kind, id)
	if err != nil {
		return 0, err
	}

	updates := leaderboarddomain.ComputeRanks(toEntries(rows), board)
	rankRows := make([]leaderboarddb.RankRow, len(updates))
	for i, u := range updates {
		rankRows[i] = leaderboarddb.RankRow{ID: u.ID, Rank: u.Rank, TiedRank: u.TiedRank}
	}

	n, err := s.repo.ApplyRanks(ctx, db, board, rankRows)
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.RecordRankUpdate(ctx, string(board), n)
	}
	s.InvalidateBoard(kind, id)
	return n, nil
}

func (s *LeaderboardService) Promote(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, playerID int64, board npp.Board, fractional bool) (int64, error) {
	rows, err := s.repo.ListPlayerScores(ctx, db, kind, id, playerID)
	if err != nil {
		return 0, err
	}

	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	if err := s.repo.SetRanks(ctx, db, board, ids, nil); err != nil {
		return 0, err
	}

	_, pbID := leaderboarddomain.Promote(toEntries(rows), board, fractional)
	if pbID != 0 {
		unranked := leaderboarddomain.Unranked
		if err := s.repo.SetRanks(ctx, db, board, []int64{pbID}, &unranked); err != nil {
			return 0, err
		}
	}

	if _, err := s.UpdateRanks(ctx, db, kind, id, board); err != nil {
		return 0, err
	}
	return pbID, nil
}

func (s *LeaderboardService) DeleteObsoletes(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, playerID int64) (int, error) {
	var (
		rows []leaderboarddb.ScoreRow
		err  error
	)
	if playerID != 0 {
		rows, err = s.repo.ListPlayerScores(ctx, db, kind, id, playerID)
	} else {
		rows, err = s.repo.ListScores(ctx, db, kind, id)
	}
	if err != nil {
		return 0, err
	}

	var obsolete []int64
	for _, entries := range leaderboarddomain.GroupByPlayer(toEntries(rows)) {
		obsolete = append(obsolete, leaderboarddomain.SelectObsoletes(entries)...)
	}
	if len(obsolete) == 0 {
		return 0, nil
	}

	n, err := s.repo.DeleteScores(ctx, db, obsolete)
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.RecordObsoleteDeletion(ctx, n)
	}
	s.logger.DebugContext(ctx, "Deleted obsolete scores",
		attr.ExtractCorrelationID(ctx),
		attr.Highscoreable(kind.String(), id),
		attr.Int("count", n),
	)
	return n, nil
}

func (s *LeaderboardService) RefreshCompletions(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) (int, error) {
	n, err := s.repo.CountCompletions(ctx, db, kind, id)
	if err != nil {
		return 0, err
	}
	if err := s.repo.SetCompletions(ctx, db, kind, id, n); err != nil {
		return 0, fmt.Errorf("leaderboard.RefreshCompletions: %w", err)
	}
	return n, nil
}

// Rerank recomputes both boards of a highscoreable under its lock, then drops
// the obsolete scores of every player and refreshes the completion count.
func (s *LeaderboardService) Rerank(ctx context.Context, kind npp.Kind, id int64) (*RerankReport, error) {
	identifier := fmt.Sprintf("%s:%d", kind, id)
	result, err := withTelemetry(s, ctx, "Rerank", identifier, func(ctx context.Context) (results.OperationResult[*RerankReport, error], error) {
		return runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[*RerankReport, error], error) {
			if err := s.Lock(ctx, db, kind, id); err != nil {
				return results.OperationResult[*RerankReport, error]{}, err
			}
			report := &RerankReport{Ranked: make(map[npp.Board]int, len(npp.Boards))}
			for _, board := range npp.Boards {
				n, err := s.UpdateRanks(ctx, db, kind, id, board)
				if err != nil {
					return results.OperationResult[*RerankReport, error]{}, err
				}
				report.Ranked[board] = n
			}
			deleted, err := s.DeleteObsoletes(ctx, db, kind, id, 0)
			if err != nil {
				return results.OperationResult[*RerankReport, error]{}, err
			}
			report.Deleted = deleted
			completions, err := s.RefreshCompletions(ctx, db, kind, id)
			if err != nil {
				return results.OperationResult[*RerankReport, error]{}, err
			}
			report.Completions = completions
			return results.SuccessResult[*RerankReport, error](report), nil
		})
	})
	if err != nil {
		return nil, err
	}
	return *result.Success, nil
}

// RecountCompletions refreshes the completion count of every highscoreable of
// a mappack, or of all mappacks when mappackID is zero.
func (s *LeaderboardService) RecountCompletions(ctx context.Context, mappackID int64) (int, error) {
	result, err := withTelemetry(s, ctx, "RecountCompletions", fmt.Sprint(mappackID), func(ctx context.Context) (results.OperationResult[int, error], error) {
		n, err := s.repo.RecountCompletions(ctx, nil, mappackID)
		if err != nil {
			return results.OperationResult[int, error]{}, err
		}
		return results.SuccessResult[int, error](n), nil
	})
	if err != nil {
		return 0, err
	}
	return *result.Success, nil
}
