package scoreservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/edelkas/inne-sub000/app/events"
	leaderboarddomain "github.com/edelkas/inne-sub000/app/modules/leaderboard/domain"
	mappackdomain "github.com/edelkas/inne-sub000/app/modules/mappack/domain"
	scoredomain "github.com/edelkas/inne-sub000/app/modules/score/domain"
	scoredb "github.com/edelkas/inne-sub000/app/modules/score/infrastructure/repositories"
	"github.com/edelkas/inne-sub000/pkg/attr"
	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/edelkas/inne-sub000/pkg/results"
	"github.com/uptrace/bun"
)

// Outcome is the terminal state of a submission.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeRejected  Outcome = "rejected"
	OutcomeForwarded Outcome = "forwarded"
)

// RejectReason explains a rejected submission.
type RejectReason string

const (
	RejectInvalidPlayer        RejectReason = "invalid_player"
	RejectBlacklisted          RejectReason = "blacklisted"
	RejectUnknownKind          RejectReason = "unknown_kind"
	RejectUnknownMappack       RejectReason = "unknown_mappack"
	RejectUnknownHighscoreable RejectReason = "unknown_highscoreable"
	RejectBadScore             RejectReason = "bad_score"
	RejectBadDemo              RejectReason = "bad_demo"
	RejectHashMismatch         RejectReason = "hash_mismatch"
	RejectCorrupt              RejectReason = "corrupt"
	RejectRequirements         RejectReason = "requirements"
)

// SubmitRequest is a submit_score call.
type SubmitRequest struct {
	// Code is the mappack code taken from the request path.
	Code string
	// Version is the mappack version the client was built for, 0 if unknown.
	Version int
	// Query holds the form fields, replay_data included.
	Query    url.Values
	Upstream UpstreamRequest
}

// SubmitReply is the JSON body the game expects after a submission.
type SubmitReply struct {
	Better   int
	Score    int
	Rank     int
	ReplayID int64
	UserID   int64
	QT       int
	Kind     npp.Kind
	InnerID  int
}

func (r SubmitReply) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"better":         r.Better,
		"score":          r.Score,
		"rank":           r.Rank,
		"replay_id":      r.ReplayID,
		"user_id":        r.UserID,
		"qt":             r.QT,
		r.Kind.IDField(): r.InnerID,
	})
}

// SubmitResult describes what happened to a submission.
type SubmitResult struct {
	Outcome Outcome
	Reason  RejectReason
	// Reply is set for accepted submissions, stored or not.
	Reply *SubmitReply
	// Body is the upstream answer of a forwarded submission, nil if it failed.
	Body []byte
	// ScoreID is the ID of the stored run, 0 if nothing was stored.
	ScoreID int64
	// Flags lists the reasons the stored run was flagged for review.
	Flags []string
}

func rejected(reason RejectReason) *SubmitResult {
	return &SubmitResult{Outcome: OutcomeRejected, Reason: reason}
}

// candidate is a validated run ready to be stored.
type candidate struct {
	pack      *mappackdomain.Pack
	h         *mappackdomain.Highscoreable
	player    *scoredb.Player
	score     int
	hs        int
	sr        int
	fraction  float64
	gold      int
	simulated bool
	legit     bool
	token     string
	version   int
	demos     [][]byte
}

func (s *ScoreService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	identifier := req.Code + ":" + req.Query.Get("user_id")
	result, err := withTelemetry(s, ctx, "Submit", identifier, func(ctx context.Context) (results.OperationResult[*SubmitResult, error], error) {
		res, err := s.submit(ctx, req)
		if err != nil {
			return results.OperationResult[*SubmitResult, error]{}, err
		}
		return results.SuccessResult[*SubmitResult, error](res), nil
	})
	if err != nil {
		return nil, err
	}

	res := *result.Success
	if s.metrics != nil {
		kind, _ := npp.KindFromFields(req.Query.Has)
		s.metrics.RecordSubmission(ctx, kind.String(), string(res.Outcome))
	}
	if res.Outcome == OutcomeRejected {
		s.logger.InfoContext(ctx, "Submission rejected",
			attr.ExtractCorrelationID(ctx),
			attr.Mappack(req.Code),
			attr.String("reason", string(res.Reason)),
		)
	}
	return res, nil
}

func (s *ScoreService) submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	q := req.Query

	uid, err := strconv.ParseInt(q.Get("user_id"), 10, 64)
	if err != nil || !npp.ValidPlayerID(uid) {
		return rejected(RejectInvalidPlayer), nil
	}
	known, err := s.repo.GetPlayer(ctx, nil, uid)
	switch {
	case err == nil && known.Blacklisted:
		return rejected(RejectBlacklisted), nil
	case err != nil && !isNotFound(err):
		return nil, err
	}

	kind, ok := npp.KindFromFields(q.Has)
	if !ok {
		return rejected(RejectUnknownKind), nil
	}
	innerID, err := strconv.Atoi(q.Get(kind.IDField()))
	if err != nil {
		return rejected(RejectUnknownHighscoreable), nil
	}
	score, err := strconv.Atoi(q.Get("score"))
	if err != nil {
		return rejected(RejectBadScore), nil
	}

	pack, err := s.mappacks.GetMappack(ctx, req.Code)
	if errors.Is(err, npp.ErrNotFound) {
		return rejected(RejectUnknownMappack), nil
	} else if err != nil {
		return nil, err
	}
	h, err := s.mappacks.FindHighscoreable(ctx, pack.ID, kind, innerID)
	if errors.Is(err, npp.ErrNotFound) {
		return s.forwardUnknown(ctx, req, kind, innerID, uid), nil
	} else if err != nil {
		return nil, err
	}

	replay := []byte(q.Get("replay_data"))
	demos, err := scoredomain.ParseDemos(replay, kind)
	if err != nil {
		s.logger.WarnContext(ctx, "Undecodable replay",
			attr.ExtractCorrelationID(ctx),
			attr.Highscoreable(kind.String(), h.ID),
			attr.Player(uid),
			attr.Error(err),
		)
		return rejected(RejectBadDemo), nil
	}

	player, err := s.repo.EnsurePlayer(ctx, nil, uid, fmt.Sprintf("Player %d", uid))
	if err != nil {
		return nil, err
	}

	c := &candidate{
		pack:     pack,
		h:        h,
		player:   player,
		score:    score,
		hs:       npp.HSFrames(score),
		sr:       scoredomain.SpeedrunFrames(demos, h.Mode),
		fraction: 1,
		token:    q.Get("ninja_check"),
		version:  req.Version,
		demos:    demos,
	}
	framesOrig := c.hs
	if kind == npp.Level {
		c.hs = s.applyTweak(ctx, player.ID, h, replay, c.hs)
	}

	c.legit, err = s.mappacks.VerifyReplay(ctx, h, framesOrig, []byte(c.token))
	if err != nil {
		return nil, err
	}
	if !c.legit && s.opts.IntegrityChecks {
		if s.metrics != nil {
			s.metrics.RecordIntegrityFlag(ctx, events.FlagHashMismatch)
		}
		return rejected(RejectHashMismatch), nil
	}

	if err := scoredomain.CheckRequirements(pack.Code, demos); err != nil {
		return rejected(RejectRequirements), nil
	}

	if pack.Fractional && kind == npp.Level && s.simulator != nil {
		s.simulate(ctx, c)
	}

	goldf := npp.GoldCount(kind, c.hs, c.sr)
	c.gold = int(math.Round(goldf))
	issue := goldIssue(kind, goldf, c.gold, h.Gold)
	if issue != "" && s.opts.RejectCorrupt {
		if s.metrics != nil {
			s.metrics.RecordIntegrityFlag(ctx, events.FlagCorrupt)
		}
		return rejected(RejectCorrupt), nil
	}

	reply := &SubmitReply{
		Score:    score,
		Rank:     -1,
		ReplayID: -1,
		UserID:   uid,
		QT:       kind.QT(),
		Kind:     kind,
		InnerID:  innerID,
	}
	txResult, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[*stored, error], error) {
		st, err := s.store(ctx, db, c, reply)
		if err != nil {
			return results.OperationResult[*stored, error]{}, err
		}
		return results.SuccessResult[*stored, error](st), nil
	})
	if err != nil {
		return nil, err
	}
	st := *txResult.Success

	res := &SubmitResult{Outcome: OutcomeAccepted, Reply: reply}
	if st.row == nil {
		return res, nil
	}
	res.ScoreID = st.row.ID

	s.publish(ctx, events.ScoreAcceptedV1, pack.Code, events.ScoreAcceptedPayloadV1{
		ScoreID:         st.row.ID,
		Mappack:         pack.Code,
		Kind:            kind.String(),
		HighscoreableID: h.ID,
		InnerID:         h.InnerID,
		PlayerID:        uid,
		ScoreHS:         c.hs,
		ScoreSR:         c.sr,
		RankHS:          rankOr(st.row.RankHS),
		RankSR:          rankOr(st.row.RankSR),
		ImprovedHS:      st.improvement.HS,
		ImprovedSR:      st.improvement.SR,
		SubmittedAt:     st.row.Date,
	})

	if issue != "" {
		res.Flags = append(res.Flags, events.FlagCorrupt)
		s.flag(ctx, c, st.row.ID, events.FlagCorrupt, issue)
	}
	if !c.legit {
		res.Flags = append(res.Flags, events.FlagHashMismatch)
		s.flag(ctx, c, st.row.ID, events.FlagHashMismatch, "")
	}
	if s.opts.WarnVersion && c.version != 0 && c.version < pack.Version {
		res.Flags = append(res.Flags, events.FlagOldVersion)
		s.flag(ctx, c, st.row.ID, events.FlagOldVersion, fmt.Sprintf("version %d, latest is %d", c.version, pack.Version))
	}

	s.logger.InfoContext(ctx, "Score submitted",
		attr.ExtractCorrelationID(ctx),
		attr.String("name", h.Name),
		attr.Player(uid),
		attr.Int64("score_id", st.row.ID),
		attr.Bool("better", reply.Better == 1),
	)
	return res, nil
}

// stored is the result of the transactional part of a submission.
type stored struct {
	row         *scoredb.Score
	improvement scoredomain.Improvement
}

func (s *ScoreService) store(ctx context.Context, db bun.IDB, c *candidate, reply *SubmitReply) (*stored, error) {
	h := c.h
	if err := s.ranker.Lock(ctx, db, h.Kind, h.ID); err != nil {
		return nil, err
	}

	previous, err := s.repo.ListPlayerScores(ctx, db, h.Kind, h.ID, c.player.ID)
	if err != nil {
		return nil, err
	}
	attempts := make([]scoredomain.Attempt, len(previous))
	for i, p := range previous {
		attempts[i] = scoredomain.Attempt{ScoreHS: p.ScoreHS, ScoreSR: p.ScoreSR, Fraction: p.Fraction, Gold: p.Gold}
	}
	imp := scoredomain.Compare(attempts, scoredomain.Attempt{ScoreHS: c.hs, ScoreSR: c.sr, Fraction: c.fraction, Gold: c.gold}, c.pack.Fractional)

	st := &stored{improvement: imp}
	if imp.HS {
		reply.Better = 1
	}
	if imp.Any() {
		if st.row, err = s.insert(ctx, db, c, imp); err != nil {
			return nil, err
		}
	}

	if imp.HS {
		s.bestEffort(ctx, db, "update_ranks_hs", func(ctx context.Context, db bun.IDB) error {
			_, err := s.ranker.UpdateRanks(ctx, db, h.Kind, h.ID, npp.Highscore)
			return err
		})
	}
	if imp.SR {
		s.bestEffort(ctx, db, "update_ranks_sr", func(ctx context.Context, db bun.IDB) error {
			_, err := s.ranker.UpdateRanks(ctx, db, h.Kind, h.ID, npp.Speedrun)
			return err
		})
	}
	if imp.HS || imp.SR {
		s.bestEffort(ctx, db, "completions", func(ctx context.Context, db bun.IDB) error {
			_, err := s.ranker.RefreshCompletions(ctx, db, h.Kind, h.ID)
			return err
		})
	}
	s.bestEffort(ctx, db, "delete_obsoletes", func(ctx context.Context, db bun.IDB) error {
		_, err := s.ranker.DeleteObsoletes(ctx, db, h.Kind, h.ID, c.player.ID)
		return err
	})

	if err := s.fillRank(ctx, db, h, c.player.ID, reply); err != nil {
		return nil, err
	}
	if st.row != nil {
		if err := s.refreshRow(ctx, db, st); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// insert stores the run with pending ranks on the boards it improved.
func (s *ScoreService) insert(ctx context.Context, db bun.IDB, c *candidate, imp scoredomain.Improvement) (*scoredb.Score, error) {
	h := c.h
	if imp.HS {
		if err := s.repo.ClearRanks(ctx, db, h.Kind, h.ID, c.player.ID, npp.Highscore); err != nil {
			return nil, err
		}
	}
	if imp.SR {
		if err := s.repo.ClearRanks(ctx, db, h.Kind, h.ID, c.player.ID, npp.Speedrun); err != nil {
			return nil, err
		}
	}

	pending := func(on bool) *int {
		if !on {
			return nil
		}
		v := leaderboarddomain.Unranked
		return &v
	}
	row := &scoredb.Score{
		Kind:            h.Kind,
		HighscoreableID: h.ID,
		MappackID:       c.pack.ID,
		PlayerID:        c.player.ID,
		MetanetID:       c.player.MetanetID,
		ScoreHS:         c.hs,
		ScoreSR:         c.sr,
		Fraction:        c.fraction,
		Gold:            c.gold,
		RankHS:          pending(imp.HS),
		TiedRankHS:      pending(imp.HS),
		RankSR:          pending(imp.SR),
		TiedRankSR:      pending(imp.SR),
		Tab:             h.Tab,
		Version:         c.version,
		Simulated:       c.simulated,
		Date:            s.now(),
	}
	if err := s.repo.InsertScore(ctx, db, row); err != nil {
		return nil, err
	}

	encoded, err := scoredomain.EncodeDemos(c.demos)
	if err != nil {
		return nil, fmt.Errorf("encode demos: %w", err)
	}
	if err := s.repo.InsertDemo(ctx, db, &scoredb.Demo{ID: row.ID, Demo: encoded}); err != nil {
		return nil, err
	}

	if !c.legit {
		if err := s.repo.SaveBadHash(ctx, db, &scoredb.BadHash{ScoreID: row.ID, NppHash: c.token, Score: c.score}); err != nil {
			return nil, err
		}
	}
	return row, nil
}

// refreshRow reloads the stored run so that its final ranks are reported.
func (s *ScoreService) refreshRow(ctx context.Context, db bun.IDB, st *stored) error {
	row, err := s.repo.GetScore(ctx, db, st.row.ID)
	if isNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	st.row = row
	return nil
}

// fillRank reports the player's best rank on the highscore board, falling
// back to the speedrun board.
func (s *ScoreService) fillRank(ctx context.Context, db bun.IDB, h *mappackdomain.Highscoreable, playerID int64, reply *SubmitReply) error {
	for _, board := range npp.Boards {
		best, err := s.repo.BestRanked(ctx, db, h.Kind, h.ID, playerID, board)
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return err
		}
		rank := best.RankHS
		if board == npp.Speedrun {
			rank = best.RankSR
		}
		reply.Rank = *rank
		reply.ReplayID = best.ID
		return nil
	}
	return nil
}

// forwardUnknown relays a submission for a board this server does not host
// and asks the vanilla collector to refresh it.
func (s *ScoreService) forwardUnknown(ctx context.Context, req SubmitRequest, kind npp.Kind, innerID int, uid int64) *SubmitResult {
	if !s.opts.Forward {
		return rejected(RejectUnknownHighscoreable)
	}
	body, err := s.forward(ctx, req.Upstream)
	if err != nil {
		s.logger.WarnContext(ctx, "Forwarding submission failed", attr.ExtractCorrelationID(ctx), attr.Error(err))
		body = nil
	}
	if body != nil && s.refresher != nil {
		if err := s.refresher.ScheduleVanillaRefresh(ctx, kind, int64(innerID), uid); err != nil {
			s.logger.WarnContext(ctx, "Failed to schedule vanilla refresh", attr.ExtractCorrelationID(ctx), attr.Error(err))
		}
	}
	return &SubmitResult{Outcome: OutcomeForwarded, Body: body}
}

// applyTweak restores the level score of a run played inside an episode.
// Failures keep the submitted score.
func (s *ScoreService) applyTweak(ctx context.Context, playerID int64, h *mappackdomain.Highscoreable, replay []byte, hs int) int {
	header, err := scoredomain.ParseReplayHeader(replay)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read demo header", attr.ExtractCorrelationID(ctx), attr.Error(err))
		return hs
	}
	if header.Type != scoredomain.HeaderEpisode {
		return hs
	}

	episodeID := npp.Parent(npp.Level, npp.Episode, h.ID)
	if h.ParentID != nil {
		episodeID = *h.ParentID
	}

	var state *scoredomain.TweakState
	tw, err := s.repo.GetTweak(ctx, nil, playerID, episodeID)
	switch {
	case err == nil:
		state = &scoredomain.TweakState{Index: tw.Index, Tweak: tw.Tweak}
	case !isNotFound(err):
		s.logger.WarnContext(ctx, "Failed to load tweak", attr.ExtractCorrelationID(ctx), attr.Error(err))
		return hs
	}

	res, err := scoredomain.ApplyTweak(state, header, h.InnerID, hs)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to tweak score",
			attr.ExtractCorrelationID(ctx),
			attr.String("name", h.Name),
			attr.Error(err),
		)
		return hs
	}

	switch res.Action {
	case scoredomain.TweakSave:
		err = s.repo.SaveTweak(ctx, nil, &scoredb.Tweak{PlayerID: playerID, EpisodeID: episodeID, Index: res.State.Index, Tweak: res.State.Tweak})
	case scoredomain.TweakDelete:
		err = s.repo.DeleteTweak(ctx, nil, playerID, episodeID)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to store tweak", attr.ExtractCorrelationID(ctx), attr.Error(err))
	}
	return res.Score
}

// simulate runs the level through the simulator to get the sub-frame
// fraction and, when the reported highscore is miscalculated, a precise one.
func (s *ScoreService) simulate(ctx context.Context, c *candidate) {
	maps, err := s.mappacks.DumpLevels(ctx, c.h)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to dump level for simulation", attr.ExtractCorrelationID(ctx), attr.Error(err))
		return
	}

	start := time.Now()
	res, err := s.simulator.Run(ctx, maps, c.demos)
	if s.metrics != nil {
		s.metrics.RecordSimulatorRun(ctx, time.Since(start), err != nil)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Simulation failed", attr.ExtractCorrelationID(ctx), attr.Error(err))
		return
	}
	if len(res.Valid) == 0 || !res.Valid[0] || len(res.Fractions) == 0 {
		s.logger.WarnContext(ctx, "Simulation did not complete the level",
			attr.ExtractCorrelationID(ctx),
			attr.String("name", c.h.Name),
		)
		return
	}

	c.fraction = res.Fractions[0]
	c.simulated = true
	if npp.VerifyGold(npp.GoldCount(npp.Level, c.hs, c.sr)) || len(res.Scores) == 0 {
		return
	}
	patched := int(math.Round(res.Scores[0] * 60))
	if npp.VerifyGold(npp.GoldCount(npp.Level, patched, c.sr)) {
		s.logger.InfoContext(ctx, "Highscore patched from simulation",
			attr.ExtractCorrelationID(ctx),
			attr.Int("reported", c.hs),
			attr.Int("simulated", patched),
		)
		c.hs = patched
	}
}

// goldIssue describes why the gold of a run is inconsistent, or returns "".
// Story gold is not checked for integrality.
func goldIssue(kind npp.Kind, goldf float64, gold, available int) string {
	switch {
	case kind != npp.Story && !npp.VerifyGold(goldf):
		return fmt.Sprintf("gold count %.3f is not an integer", goldf)
	case gold > available:
		return fmt.Sprintf("gold %d exceeds the %d available", gold, available)
	case gold < 0:
		return fmt.Sprintf("negative gold %d", gold)
	}
	return ""
}

func (s *ScoreService) flag(ctx context.Context, c *candidate, scoreID int64, reason, detail string) {
	if s.metrics != nil {
		s.metrics.RecordIntegrityFlag(ctx, reason)
	}
	s.logger.WarnContext(ctx, "Score flagged",
		attr.ExtractCorrelationID(ctx),
		attr.String("name", c.h.Name),
		attr.Player(c.player.MetanetID),
		attr.Int64("score_id", scoreID),
		attr.String("reason", reason),
		attr.String("detail", detail),
	)
	s.publish(ctx, events.ScoreFlaggedV1, c.pack.Code, events.ScoreFlaggedPayloadV1{
		ScoreID:  scoreID,
		Mappack:  c.pack.Code,
		Kind:     c.h.Kind.String(),
		Name:     c.h.Name,
		PlayerID: c.player.MetanetID,
		Reason:   reason,
		Detail:   detail,
	})
}

func rankOr(rank *int) int {
	if rank == nil {
		return -1
	}
	return *rank
}
