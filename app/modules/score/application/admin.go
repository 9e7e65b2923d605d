package scoreservice

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/edelkas/inne-sub000/app/events"
	mappackdomain "github.com/edelkas/inne-sub000/app/modules/mappack/domain"
	scoredomain "github.com/edelkas/inne-sub000/app/modules/score/domain"
	scoredb "github.com/edelkas/inne-sub000/app/modules/score/infrastructure/repositories"
	"github.com/edelkas/inne-sub000/pkg/attr"
	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/edelkas/inne-sub000/pkg/results"
	"github.com/uptrace/bun"
)

// PatchRequest rewrites the highscore of a run. A zero Seconds asks the
// simulator for the precise value.
type PatchRequest struct {
	ScoreID int64
	Seconds float64
}

// PatchResult describes an applied patch.
type PatchResult struct {
	ScoreID int64
	Name    string
	OldHS   int
	NewHS   int
	Gold    int
	// PromotedID is the player's highscore run after re-ranking.
	PromotedID int64
}

// WipeResult describes a removed run.
type WipeResult struct {
	ScoreID    int64
	Name       string
	PromotedHS int64
	PromotedSR int64
}

// target is a stored run with the catalog entries it belongs to.
type target struct {
	row  *scoredb.Score
	h    *mappackdomain.Highscoreable
	pack *mappackdomain.Pack
}

func (s *ScoreService) loadTarget(ctx context.Context, op string, scoreID int64) (*target, error) {
	row, err := s.repo.GetScore(ctx, nil, scoreID)
	if isNotFound(err) {
		return nil, npp.Errorf(op, npp.ErrNotFound, "score %d", scoreID)
	} else if err != nil {
		return nil, err
	}
	h, err := s.mappacks.GetHighscoreable(ctx, row.Kind, row.HighscoreableID)
	if err != nil {
		return nil, err
	}
	packs, err := s.mappacks.ListMappacks(ctx)
	if err != nil {
		return nil, err
	}
	for i := range packs {
		if packs[i].ID == row.MappackID {
			return &target{row: row, h: h, pack: &packs[i]}, nil
		}
	}
	return nil, npp.Errorf(op, npp.ErrNotFound, "mappack %d", row.MappackID)
}

func (s *ScoreService) PatchScore(ctx context.Context, req PatchRequest) (*PatchResult, error) {
	const op = "score.PatchScore"
	identifier := strconv.FormatInt(req.ScoreID, 10)
	result, err := withTelemetry(s, ctx, "PatchScore", identifier, func(ctx context.Context) (results.OperationResult[*PatchResult, error], error) {
		t, err := s.loadTarget(ctx, op, req.ScoreID)
		if err != nil {
			return results.OperationResult[*PatchResult, error]{}, err
		}

		seconds := req.Seconds
		if seconds <= 0 {
			if seconds, err = s.simulatedSeconds(ctx, op, t); err != nil {
				return results.OperationResult[*PatchResult, error]{}, err
			}
		}

		kind := t.row.Kind
		newHS := int(math.Round(seconds * 60))
		goldf := npp.GoldCount(kind, newHS, t.row.ScoreSR)
		gold := int(math.Round(goldf))
		switch {
		case gold < 0 || gold > t.h.Gold:
			return results.OperationResult[*PatchResult, error]{}, npp.Errorf(op, npp.ErrIntegrity, "gold %d out of range 0-%d", gold, t.h.Gold)
		case kind != npp.Story && !npp.VerifyGold(goldf):
			return results.OperationResult[*PatchResult, error]{}, npp.Errorf(op, npp.ErrIntegrity, "gold count %.3f is not an integer", goldf)
		case newHS == t.row.ScoreHS:
			return results.OperationResult[*PatchResult, error]{}, npp.Errorf(op, npp.ErrState, "score %d already has that highscore", t.row.ID)
		}

		return runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[*PatchResult, error], error) {
			if err := s.ranker.Lock(ctx, db, kind, t.h.ID); err != nil {
				return results.OperationResult[*PatchResult, error]{}, err
			}
			if err := s.repo.UpdateHighscore(ctx, db, t.row.ID, newHS, gold); err != nil {
				return results.OperationResult[*PatchResult, error]{}, err
			}
			promoted, err := s.ranker.Promote(ctx, db, kind, t.h.ID, t.row.PlayerID, npp.Highscore, t.pack.Fractional)
			if err != nil {
				return results.OperationResult[*PatchResult, error]{}, err
			}
			return results.SuccessResult[*PatchResult, error](&PatchResult{
				ScoreID:    t.row.ID,
				Name:       t.h.Name,
				OldHS:      t.row.ScoreHS,
				NewHS:      newHS,
				Gold:       gold,
				PromotedID: promoted,
			}), nil
		})
	})
	if err != nil {
		return nil, err
	}
	res := *result.Success
	s.logger.InfoContext(ctx, "Score patched",
		attr.ExtractCorrelationID(ctx),
		attr.String("name", res.Name),
		attr.Int64("score_id", res.ScoreID),
		attr.Int("old_hs", res.OldHS),
		attr.Int("new_hs", res.NewHS),
	)
	return res, nil
}

// simulatedSeconds asks the simulator for the precise highscore of a level run.
func (s *ScoreService) simulatedSeconds(ctx context.Context, op string, t *target) (float64, error) {
	if s.simulator == nil {
		return 0, npp.Errorf(op, npp.ErrState, "no score given and no simulator configured")
	}
	if t.row.Kind != npp.Level {
		return 0, npp.Errorf(op, npp.ErrFormat, "only level runs can be simulated")
	}
	demo, err := s.repo.GetDemo(ctx, nil, t.row.ID)
	if err != nil {
		return 0, fmt.Errorf("load demo: %w", err)
	}
	demos, err := scoredomain.DecodeDemos(demo.Demo)
	if err != nil {
		return 0, err
	}
	maps, err := s.mappacks.DumpLevels(ctx, t.h)
	if err != nil {
		return 0, err
	}
	res, err := s.simulator.Run(ctx, maps, demos)
	if err != nil {
		return 0, npp.Errorf(op, npp.ErrTransient, "simulate: %v", err)
	}
	if len(res.Valid) == 0 || !res.Valid[0] || len(res.Scores) == 0 {
		return 0, npp.Errorf(op, npp.ErrIntegrity, "demo does not complete the level")
	}
	return res.Scores[0], nil
}

func (s *ScoreService) WipeScore(ctx context.Context, scoreID int64) (*WipeResult, error) {
	const op = "score.WipeScore"
	identifier := strconv.FormatInt(scoreID, 10)
	var wiped *target
	result, err := withTelemetry(s, ctx, "WipeScore", identifier, func(ctx context.Context) (results.OperationResult[*WipeResult, error], error) {
		t, err := s.loadTarget(ctx, op, scoreID)
		if err != nil {
			return results.OperationResult[*WipeResult, error]{}, err
		}
		wiped = t
		return runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[*WipeResult, error], error) {
			return s.wipe(ctx, db, t)
		})
	})
	if err != nil {
		return nil, err
	}

	res := *result.Success
	s.publish(ctx, events.ScoreWipedV1, wiped.pack.Code, events.ScoreWipedPayloadV1{
		ScoreID:         res.ScoreID,
		Mappack:         wiped.pack.Code,
		Kind:            wiped.h.Kind.String(),
		HighscoreableID: wiped.h.ID,
		InnerID:         wiped.h.InnerID,
		PlayerID:        wiped.row.MetanetID,
	})
	s.logger.InfoContext(ctx, "Score wiped",
		attr.ExtractCorrelationID(ctx),
		attr.String("name", res.Name),
		attr.Int64("score_id", res.ScoreID),
	)
	return res, nil
}

func (s *ScoreService) wipe(ctx context.Context, db bun.IDB, t *target) (results.OperationResult[*WipeResult, error], error) {
	kind, id := t.row.Kind, t.h.ID
	if err := s.ranker.Lock(ctx, db, kind, id); err != nil {
		return results.OperationResult[*WipeResult, error]{}, err
	}
	if err := s.repo.DeleteScore(ctx, db, t.row.ID); err != nil {
		if errors.Is(err, scoredb.ErrNoRowsAffected) {
			return results.OperationResult[*WipeResult, error]{}, npp.Errorf("score.WipeScore", npp.ErrNotFound, "score %d", t.row.ID)
		}
		return results.OperationResult[*WipeResult, error]{}, err
	}

	res := &WipeResult{ScoreID: t.row.ID, Name: t.h.Name}
	var err error
	if t.row.RankHS != nil {
		if res.PromotedHS, err = s.ranker.Promote(ctx, db, kind, id, t.row.PlayerID, npp.Highscore, t.pack.Fractional); err != nil {
			return results.OperationResult[*WipeResult, error]{}, err
		}
	}
	if t.row.RankSR != nil {
		if res.PromotedSR, err = s.ranker.Promote(ctx, db, kind, id, t.row.PlayerID, npp.Speedrun, t.pack.Fractional); err != nil {
			return results.OperationResult[*WipeResult, error]{}, err
		}
	}
	if _, err := s.ranker.RefreshCompletions(ctx, db, kind, id); err != nil {
		return results.OperationResult[*WipeResult, error]{}, err
	}
	return results.SuccessResult[*WipeResult, error](res), nil
}

func (s *ScoreService) SetBlacklisted(ctx context.Context, metanetID int64, blacklisted bool) error {
	_, err := withTelemetry(s, ctx, "SetBlacklisted", strconv.FormatInt(metanetID, 10), func(ctx context.Context) (results.OperationResult[bool, error], error) {
		if err := s.repo.SetBlacklisted(ctx, nil, metanetID, blacklisted); err != nil {
			if errors.Is(err, scoredb.ErrNoRowsAffected) {
				return results.OperationResult[bool, error]{}, npp.Errorf("score.SetBlacklisted", npp.ErrNotFound, "player %d", metanetID)
			}
			return results.OperationResult[bool, error]{}, err
		}
		return results.SuccessResult[bool, error](blacklisted), nil
	})
	return err
}
