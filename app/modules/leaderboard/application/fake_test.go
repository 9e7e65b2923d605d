package leaderboardservice

import (
	"context"
	"sort"
	"sync"

	leaderboarddb "github.com/edelkas/inne-sub000/app/modules/leaderboard/infrastructure/repositories"
	mappackservice "github.com/edelkas/inne-sub000/app/modules/mappack/application"
	mappackdomain "github.com/edelkas/inne-sub000/app/modules/mappack/domain"
	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/uptrace/bun"
)

// ------------------------
// Fake Leaderboard Repo
// ------------------------

// FakeLeaderboardRepo keeps scores in memory and records every call.
type FakeLeaderboardRepo struct {
	mu    sync.Mutex
	trace []string

	scores      map[int64]*leaderboarddb.ScoreRow
	players     map[int64]leaderboarddb.BoardRow
	completions map[[2]int64]int
	goldRows    []leaderboarddb.GoldRow

	LockHighscoreableFunc func(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) error
	ApplyRanksFunc        func(ctx context.Context, db bun.IDB, board npp.Board, rows []leaderboarddb.RankRow) (int, error)
	GetBoardFunc          func(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, board npp.Board, offset, limit int) ([]leaderboarddb.BoardRow, error)
	ListGoldRowsFunc      func(ctx context.Context, db bun.IDB, filter leaderboarddb.GoldFilter) ([]leaderboarddb.GoldRow, error)
}

func NewFakeLeaderboardRepo() *FakeLeaderboardRepo {
	return &FakeLeaderboardRepo{
		trace:       []string{},
		scores:      make(map[int64]*leaderboarddb.ScoreRow),
		players:     make(map[int64]leaderboarddb.BoardRow),
		completions: make(map[[2]int64]int),
	}
}

func (f *FakeLeaderboardRepo) record(step string) {
	f.trace = append(f.trace, step)
}

// Trace returns the recorded calls.
func (f *FakeLeaderboardRepo) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

// AddPlayer registers a player name for board queries.
func (f *FakeLeaderboardRepo) AddPlayer(id, metanetID int64, name string) {
	f.players[id] = leaderboarddb.BoardRow{MetanetID: metanetID, Name: name}
}

// AddScore stores a copy of row.
func (f *FakeLeaderboardRepo) AddScore(row leaderboarddb.ScoreRow) {
	r := row
	f.scores[row.ID] = &r
}

// Score returns the stored row, if any.
func (f *FakeLeaderboardRepo) Score(id int64) (leaderboarddb.ScoreRow, bool) {
	r, ok := f.scores[id]
	if !ok {
		return leaderboarddb.ScoreRow{}, false
	}
	return *r, true
}

func (f *FakeLeaderboardRepo) sorted(keep func(*leaderboarddb.ScoreRow) bool) []leaderboarddb.ScoreRow {
	var out []leaderboarddb.ScoreRow
	for _, r := range f.scores {
		if keep(r) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func rankPtrs(r *leaderboarddb.ScoreRow, board npp.Board) (**int, **int) {
	if board == npp.Speedrun {
		return &r.RankSR, &r.TiedRankSR
	}
	return &r.RankHS, &r.TiedRankHS
}

func (f *FakeLeaderboardRepo) LockHighscoreable(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) error {
	f.mu.Lock()
	f.record("LockHighscoreable")
	f.mu.Unlock()
	if f.LockHighscoreableFunc != nil {
		return f.LockHighscoreableFunc(ctx, db, kind, id)
	}
	return nil
}

func (f *FakeLeaderboardRepo) ListScores(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) ([]leaderboarddb.ScoreRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListScores")
	return f.sorted(func(r *leaderboarddb.ScoreRow) bool {
		return r.Kind == kind && r.HighscoreableID == id
	}), nil
}

func (f *FakeLeaderboardRepo) ListPlayerScores(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, playerID int64) ([]leaderboarddb.ScoreRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListPlayerScores")
	return f.sorted(func(r *leaderboarddb.ScoreRow) bool {
		return r.Kind == kind && r.HighscoreableID == id && r.PlayerID == playerID
	}), nil
}

func (f *FakeLeaderboardRepo) ApplyRanks(ctx context.Context, db bun.IDB, board npp.Board, rows []leaderboarddb.RankRow) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ApplyRanks")
	if f.ApplyRanksFunc != nil {
		return f.ApplyRanksFunc(ctx, db, board, rows)
	}
	n := 0
	for _, row := range rows {
		r, ok := f.scores[row.ID]
		if !ok {
			continue
		}
		rank, tied := rankPtrs(r, board)
		rv, tv := row.Rank, row.TiedRank
		*rank, *tied = &rv, &tv
		n++
	}
	return n, nil
}

func (f *FakeLeaderboardRepo) SetRanks(ctx context.Context, db bun.IDB, board npp.Board, ids []int64, value *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetRanks")
	for _, id := range ids {
		r, ok := f.scores[id]
		if !ok {
			continue
		}
		rank, tied := rankPtrs(r, board)
		if value == nil {
			*rank, *tied = nil, nil
			continue
		}
		rv, tv := *value, *value
		*rank, *tied = &rv, &tv
	}
	return nil
}

func (f *FakeLeaderboardRepo) DeleteScores(ctx context.Context, db bun.IDB, ids []int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteScores")
	n := 0
	for _, id := range ids {
		if _, ok := f.scores[id]; ok {
			delete(f.scores, id)
			n++
		}
	}
	return n, nil
}

func (f *FakeLeaderboardRepo) CountCompletions(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CountCompletions")
	n := 0
	for _, r := range f.scores {
		if r.Kind == kind && r.HighscoreableID == id && r.RankHS != nil {
			n++
		}
	}
	return n, nil
}

func (f *FakeLeaderboardRepo) SetCompletions(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetCompletions")
	f.completions[[2]int64{int64(kind), id}] = n
	return nil
}

func (f *FakeLeaderboardRepo) RecountCompletions(ctx context.Context, db bun.IDB, mappackID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RecountCompletions")
	counts := make(map[[2]int64]int)
	for _, r := range f.scores {
		if mappackID != 0 && r.MappackID != mappackID {
			continue
		}
		key := [2]int64{int64(r.Kind), r.HighscoreableID}
		if r.RankHS != nil {
			counts[key]++
		} else if _, ok := counts[key]; !ok {
			counts[key] = 0
		}
	}
	for k, v := range counts {
		f.completions[k] = v
	}
	return len(counts), nil
}

// Completions returns the stored completion count.
func (f *FakeLeaderboardRepo) Completions(kind npp.Kind, id int64) int {
	return f.completions[[2]int64{int64(kind), id}]
}

func (f *FakeLeaderboardRepo) GetBoard(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, board npp.Board, offset, limit int) ([]leaderboarddb.BoardRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetBoard")
	if f.GetBoardFunc != nil {
		return f.GetBoardFunc(ctx, db, kind, id, board, offset, limit)
	}

	var out []leaderboarddb.BoardRow
	for _, r := range f.scores {
		if r.Kind != kind || r.HighscoreableID != id {
			continue
		}
		rank, _ := rankPtrs(r, board)
		if *rank == nil {
			continue
		}
		p := f.players[r.PlayerID]
		score := r.ScoreHS
		if board == npp.Speedrun {
			score = r.ScoreSR
		}
		out = append(out, leaderboarddb.BoardRow{ID: r.ID, Score: score, Rank: **rank, Name: p.Name, MetanetID: p.MetanetID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *FakeLeaderboardRepo) ListGoldRows(ctx context.Context, db bun.IDB, filter leaderboarddb.GoldFilter) ([]leaderboarddb.GoldRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListGoldRows")
	if f.ListGoldRowsFunc != nil {
		return f.ListGoldRowsFunc(ctx, db, filter)
	}
	return f.goldRows, nil
}

var _ leaderboarddb.Repository = (*FakeLeaderboardRepo)(nil)

// ------------------------
// Fake Mappack Service
// ------------------------

// FakeMappackService resolves a fixed catalog.
type FakeMappackService struct {
	mappackservice.Service

	packs []mappackdomain.Pack
	hs    []mappackdomain.Highscoreable
}

func (f *FakeMappackService) GetMappack(_ context.Context, code string) (*mappackdomain.Pack, error) {
	for i := range f.packs {
		if f.packs[i].Code == code {
			return &f.packs[i], nil
		}
	}
	return nil, npp.Errorf("mappack.GetMappack", npp.ErrNotFound, "mappack %q", code)
}

func (f *FakeMappackService) FindHighscoreable(_ context.Context, mappackID int64, kind npp.Kind, innerID int) (*mappackdomain.Highscoreable, error) {
	for i := range f.hs {
		h := &f.hs[i]
		if h.MappackID == mappackID && h.Kind == kind && h.InnerID == innerID {
			return h, nil
		}
	}
	return nil, npp.Errorf("mappack.FindHighscoreable", npp.ErrNotFound, "%s %d", kind, innerID)
}

// ------------------------
// Fake Board Cache
// ------------------------

type FakeBoardCache struct {
	entries map[string]*ScoresResponse
	deleted []string
}

func NewFakeBoardCache() *FakeBoardCache {
	return &FakeBoardCache{entries: make(map[string]*ScoresResponse)}
}

func (c *FakeBoardCache) Get(key string) (*ScoresResponse, bool) {
	r, ok := c.entries[key]
	return r, ok
}

func (c *FakeBoardCache) Set(key string, resp *ScoresResponse) { c.entries[key] = resp }

func (c *FakeBoardCache) Delete(key string) {
	c.deleted = append(c.deleted, key)
	delete(c.entries, key)
}
