package scoreservice

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	scoredomain "github.com/edelkas/inne-sub000/app/modules/score/domain"
	"github.com/edelkas/inne-sub000/pkg/attr"
	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/edelkas/inne-sub000/pkg/results"
)

// ReplayRequest is a get_replay call.
type ReplayRequest struct {
	Code     string
	Query    url.Values
	Upstream UpstreamRequest
}

// ReplayResult carries the replay body. A nil Body means the request is
// answered with an error status.
type ReplayResult struct {
	Forwarded bool
	Body      []byte
}

func (s *ScoreService) GetReplay(ctx context.Context, req ReplayRequest) (*ReplayResult, error) {
	identifier := req.Code + ":" + req.Query.Get("replay_id")
	result, err := withTelemetry(s, ctx, "GetReplay", identifier, func(ctx context.Context) (results.OperationResult[*ReplayResult, error], error) {
		res, err := s.getReplay(ctx, req)
		if err != nil {
			return results.OperationResult[*ReplayResult, error]{}, err
		}
		return results.SuccessResult[*ReplayResult, error](res), nil
	})
	if err != nil {
		return nil, err
	}
	return *result.Success, nil
}

func (s *ScoreService) getReplay(ctx context.Context, req ReplayRequest) (*ReplayResult, error) {
	q := req.Query
	packed, err := strconv.ParseInt(q.Get("replay_id"), 10, 64)
	if err != nil {
		return &ReplayResult{}, nil
	}
	qt, err := strconv.Atoi(q.Get("qt"))
	if err != nil {
		return &ReplayResult{}, nil
	}
	kind, ok := npp.KindFromQT(qt)
	if !ok {
		return &ReplayResult{}, nil
	}

	pack, err := s.mappacks.GetMappack(ctx, req.Code)
	if errors.Is(err, npp.ErrNotFound) {
		return &ReplayResult{}, nil
	} else if err != nil {
		return nil, err
	}

	_, id := npp.UnpackReplayID(packed)
	score, err := s.repo.GetScore(ctx, nil, id)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	if score == nil || score.MappackID != pack.ID || score.Kind != kind {
		if !s.opts.Forward {
			return &ReplayResult{}, nil
		}
		body, err := s.forward(ctx, req.Upstream)
		if err != nil {
			s.logger.WarnContext(ctx, "Forwarding replay request failed", attr.ExtractCorrelationID(ctx), attr.Error(err))
			body = nil
		}
		return &ReplayResult{Forwarded: true, Body: body}, nil
	}

	demo, err := s.repo.GetDemo(ctx, nil, score.ID)
	if isNotFound(err) {
		s.logger.WarnContext(ctx, "Score has no demo", attr.ExtractCorrelationID(ctx), attr.Int64("score_id", score.ID))
		return &ReplayResult{}, nil
	} else if err != nil {
		return nil, err
	}

	h, err := s.mappacks.GetHighscoreable(ctx, score.Kind, score.HighscoreableID)
	if err != nil {
		return nil, err
	}
	demos, err := scoredomain.DecodeDemos(demo.Demo)
	if err != nil {
		return nil, err
	}
	dump, err := scoredomain.DumpDemo(h.Kind, h.Mode, h.InnerID, demos)
	if err != nil {
		return nil, err
	}
	body, err := scoredomain.DumpReplay(h.Kind, packed, h.InnerID, score.MetanetID, dump)
	if err != nil {
		return nil, err
	}

	requester, _ := strconv.ParseInt(q.Get("user_id"), 10, 64)
	s.logger.DebugContext(ctx, "Replay requested",
		attr.ExtractCorrelationID(ctx),
		attr.String("name", h.Name),
		attr.Int64("score_id", score.ID),
		attr.Player(requester),
	)
	return &ReplayResult{Body: body}, nil
}
