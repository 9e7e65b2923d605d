package scoreintegrationtests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edelkas/inne-sub000/app/events"
	scoreservice "github.com/edelkas/inne-sub000/app/modules/score/application"
	scoredb "github.com/edelkas/inne-sub000/app/modules/score/infrastructure/repositories"
	"github.com/edelkas/inne-sub000/integration_tests/testutils"
	"github.com/edelkas/inne-sub000/pkg/eventbus"
	"github.com/edelkas/inne-sub000/pkg/npp"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type board struct {
	level *testutils.SeededMappack
	// best and worse belong to the first player, rival to the second.
	best, worse, rival *scoredb.Score
}

func seedBoard(t *testing.T, deps TestDeps) board {
	t.Helper()
	ctx := deps.Ctx

	pack, err := deps.Data.SeedMappack(ctx, 1, "ctp", 2)
	require.NoError(t, err)
	level := pack.Levels[0]
	first, err := deps.Data.CreatePlayer(ctx, 1001)
	require.NoError(t, err)
	second, err := deps.Data.CreatePlayer(ctx, 1002)
	require.NoError(t, err)

	run := func(p *scoredb.Player, gold, sr int, date time.Time, pending bool) *scoredb.Score {
		opts := []testutils.ScoreOption{testutils.WithGold(gold), testutils.WithSpeedrun(sr), testutils.WithDate(date)}
		if pending {
			opts = append(opts, testutils.WithPendingRank())
		}
		s, err := deps.Data.CreateScore(ctx, level, p, testutils.LevelHighscore(gold, sr), opts...)
		require.NoError(t, err)
		return s
	}
	b := board{level: pack}
	b.best = run(first, 2, 1, t0, true)
	b.worse = run(first, 1, 1, t0.Add(time.Minute), false)
	b.rival = run(second, 2, 2, t0.Add(2*time.Minute), true)

	_, err = deps.Boards.Rerank(ctx, npp.Level, level.ID)
	require.NoError(t, err)
	return b
}

func (b board) levelID() int64 { return b.level.Levels[0].ID }

func TestScoreIDsStartAtReplayFloor(t *testing.T) {
	deps := SetupTestScoreService(t)
	b := seedBoard(t, deps)

	assert.EqualValues(t, npp.MinReplayID, b.best.ID)
	assert.EqualValues(t, npp.MinReplayID+1, b.worse.ID)
}

func TestWipeScore(t *testing.T) {
	deps := SetupTestScoreService(t)
	b := seedBoard(t, deps)

	subCtx, cancel := context.WithTimeout(deps.Ctx, 30*time.Second)
	defer cancel()
	messages, err := deps.EventBus.Subscribe(subCtx, events.ScoreWipedV1)
	require.NoError(t, err)

	res, err := deps.Service.WipeScore(deps.Ctx, b.best.ID)
	require.NoError(t, err)
	assert.Equal(t, &scoreservice.WipeResult{
		ScoreID:    b.best.ID,
		Name:       b.level.Levels[0].Name,
		PromotedHS: b.worse.ID,
		PromotedSR: b.worse.ID,
	}, res)

	_, err = deps.Repo.GetScore(deps.Ctx, nil, b.best.ID)
	assert.ErrorIs(t, err, scoredb.ErrNotFound)

	tests := []struct {
		name           string
		id             int64
		rankHS, rankSR *int
	}{
		{name: "rival takes the highscore lead", id: b.rival.ID, rankHS: intPtr(0), rankSR: intPtr(1)},
		{name: "promoted run is ranked", id: b.worse.ID, rankHS: intPtr(1), rankSR: intPtr(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := deps.Repo.GetScore(deps.Ctx, nil, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.rankHS, got.RankHS)
			assert.Equal(t, tt.rankSR, got.RankSR)
		})
	}

	select {
	case msg := <-messages:
		payload, err := eventbus.Decode[events.ScoreWipedPayloadV1](msg)
		require.NoError(t, err)
		msg.Ack()
		assert.Equal(t, b.best.ID, payload.ScoreID)
		assert.Equal(t, "CTP", payload.Mappack)
		assert.EqualValues(t, 1001, payload.PlayerID)
	case <-subCtx.Done():
		t.Fatal("timed out waiting for the wipe event")
	}

	_, err = deps.Service.WipeScore(deps.Ctx, b.best.ID)
	assert.ErrorIs(t, err, npp.ErrNotFound)
}

func TestPatchScore(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		wantErr error
		wantHS  int
		wantGld int
	}{
		{name: "lowers the highscore by one gold", seconds: 92, wantHS: 5520, wantGld: 1},
		{name: "fractional gold", seconds: 92.01, wantErr: npp.ErrIntegrity},
		{name: "more gold than the level has", seconds: 96, wantErr: npp.ErrIntegrity},
		{name: "unchanged highscore", seconds: 94, wantErr: npp.ErrState},
		{name: "simulation without a simulator", seconds: 0, wantErr: npp.ErrState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := SetupTestScoreService(t)
			b := seedBoard(t, deps)

			res, err := deps.Service.PatchScore(deps.Ctx, scoreservice.PatchRequest{ScoreID: b.best.ID, Seconds: tt.seconds})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				got, getErr := deps.Repo.GetScore(deps.Ctx, nil, b.best.ID)
				require.NoError(t, getErr)
				assert.Equal(t, b.best.ScoreHS, got.ScoreHS, "failed patch must not write")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, b.best.ScoreHS, res.OldHS)
			assert.Equal(t, tt.wantHS, res.NewHS)
			assert.Equal(t, tt.wantGld, res.Gold)
			assert.Equal(t, b.best.ID, res.PromotedID)

			got, err := deps.Repo.GetScore(deps.Ctx, nil, b.best.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHS, got.ScoreHS)
			assert.Equal(t, tt.wantGld, got.Gold)
			assert.Equal(t, intPtr(1), got.RankHS, "rival now leads the highscore board")

			rival, err := deps.Repo.GetScore(deps.Ctx, nil, b.rival.ID)
			require.NoError(t, err)
			assert.Equal(t, intPtr(0), rival.RankHS)
		})
	}
}

func TestSetBlacklisted(t *testing.T) {
	deps := SetupTestScoreService(t)
	_, err := deps.Data.CreatePlayer(deps.Ctx, 4242)
	require.NoError(t, err)

	require.NoError(t, deps.Service.SetBlacklisted(deps.Ctx, 4242, true))
	p, err := deps.Repo.GetPlayer(deps.Ctx, nil, 4242)
	require.NoError(t, err)
	assert.True(t, p.Blacklisted)

	require.NoError(t, deps.Service.SetBlacklisted(deps.Ctx, 4242, false))
	p, err = deps.Repo.GetPlayer(deps.Ctx, nil, 4242)
	require.NoError(t, err)
	assert.False(t, p.Blacklisted)

	err = deps.Service.SetBlacklisted(deps.Ctx, 999, true)
	assert.ErrorIs(t, err, npp.ErrNotFound)
}
