package scoreservice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	scoredb "github.com/edelkas/inne-sub000/app/modules/score/infrastructure/repositories"
	"github.com/edelkas/inne-sub000/pkg/attr"
	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/edelkas/inne-sub000/pkg/results"
	"github.com/tidwall/gjson"
)

// invalidLogin is the body the official server answers failed logins with.
const invalidLogin = "-1337"

// LoginRequest is a login call.
type LoginRequest struct {
	Query    url.Values
	Upstream UpstreamRequest
}

type localLogin struct {
	SteamID string `json:"steam_id"`
	UserID  int64  `json:"user_id"`
	Name    string `json:"name"`
}

func (s *ScoreService) Login(ctx context.Context, req LoginRequest) ([]byte, error) {
	result, err := withTelemetry(s, ctx, "Login", req.Query.Get("user_id"), func(ctx context.Context) (results.OperationResult[[]byte, error], error) {
		body, err := s.login(ctx, req)
		if err != nil {
			return results.OperationResult[[]byte, error]{}, err
		}
		return results.SuccessResult[[]byte, error](body), nil
	})
	if err != nil {
		return nil, err
	}
	return *result.Success, nil
}

func (s *ScoreService) login(ctx context.Context, req LoginRequest) ([]byte, error) {
	body, err := s.forward(ctx, req.Upstream)
	if err != nil {
		s.logger.WarnContext(ctx, "Forwarding login failed", attr.ExtractCorrelationID(ctx), attr.Error(err))
		body = nil
	}

	if body != nil && string(body) != invalidLogin {
		s.recordLogin(ctx, body)
		return body, nil
	}
	if !s.opts.LocalLogin {
		return body, nil
	}
	return s.loginLocally(ctx, req.Query)
}

// recordLogin stores the account the official server vouched for.
func (s *ScoreService) recordLogin(ctx context.Context, body []byte) {
	res := gjson.ParseBytes(body)
	uid := res.Get("user_id").Int()
	if !npp.ValidPlayerID(uid) {
		return
	}
	p := &scoredb.Player{MetanetID: uid, Name: res.Get("name").String()}
	if steam := res.Get("steam_id"); steam.Exists() {
		id := steam.String()
		p.SteamID = &id
	}
	if err := s.repo.UpsertPlayer(ctx, nil, p); err != nil {
		s.logger.ErrorContext(ctx, "Failed to record login", attr.ExtractCorrelationID(ctx), attr.Player(uid), attr.Error(err))
		return
	}
	s.logger.InfoContext(ctx, "Player logged in", attr.ExtractCorrelationID(ctx), attr.Player(uid), attr.String("name", p.Name))
}

// loginLocally answers a login from the players table. A nil body means the
// player could not be identified.
func (s *ScoreService) loginLocally(ctx context.Context, q url.Values) ([]byte, error) {
	uid, err := strconv.ParseInt(q.Get("user_id"), 10, 64)
	if err != nil || !npp.ValidPlayerID(uid) {
		uid = 0
	}
	steamID := q.Get("steam_id")

	var player *scoredb.Player
	if uid != 0 {
		player, err = s.repo.GetPlayer(ctx, nil, uid)
		if err != nil && !isNotFound(err) {
			return nil, err
		}
	}
	if player == nil && steamID != "" {
		player, err = s.repo.GetPlayerBySteamID(ctx, nil, steamID)
		if err != nil && !isNotFound(err) {
			return nil, err
		}
	}
	if player == nil {
		if uid == 0 {
			return nil, nil
		}
		player = &scoredb.Player{MetanetID: uid, Name: fmt.Sprintf("Player %d", uid)}
		if steamID != "" {
			player.SteamID = &steamID
		}
		if err := s.repo.UpsertPlayer(ctx, nil, player); err != nil {
			return nil, err
		}
	}

	out := localLogin{UserID: player.MetanetID, Name: player.Name, SteamID: steamID}
	if player.SteamID != nil && steamID == "" {
		out.SteamID = *player.SteamID
	}
	s.logger.InfoContext(ctx, "Player logged in locally", attr.ExtractCorrelationID(ctx), attr.Player(player.MetanetID))
	return json.Marshal(out)
}
