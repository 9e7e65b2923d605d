package scoreservice

import (
	"context"
	"sort"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	mappackservice "github.com/edelkas/inne-sub000/app/modules/mappack/application"
	mappackdomain "github.com/edelkas/inne-sub000/app/modules/mappack/domain"
	scoredb "github.com/edelkas/inne-sub000/app/modules/score/infrastructure/repositories"
	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/uptrace/bun"
)

// ------------------------
// Fake Score Repo
// ------------------------

// FakeScoreRepo keeps players, scores, demos and tweaks in memory.
type FakeScoreRepo struct {
	mu    sync.Mutex
	trace []string

	nextPlayer int64
	nextScore  int64
	players    map[int64]*scoredb.Player
	scores     map[int64]*scoredb.Score
	demos      map[int64][]byte
	tweaks     map[[2]int64]scoredb.Tweak
	badHashes  map[int64]scoredb.BadHash

	GetPlayerFunc   func(ctx context.Context, db bun.IDB, metanetID int64) (*scoredb.Player, error)
	InsertScoreFunc func(ctx context.Context, db bun.IDB, s *scoredb.Score) error
}

func NewFakeScoreRepo() *FakeScoreRepo {
	return &FakeScoreRepo{
		trace:      []string{},
		nextPlayer: 1,
		nextScore:  npp.MinReplayID,
		players:    make(map[int64]*scoredb.Player),
		scores:     make(map[int64]*scoredb.Score),
		demos:      make(map[int64][]byte),
		tweaks:     make(map[[2]int64]scoredb.Tweak),
		badHashes:  make(map[int64]scoredb.BadHash),
	}
}

func (f *FakeScoreRepo) record(step string) {
	f.trace = append(f.trace, step)
}

// Trace returns the recorded calls.
func (f *FakeScoreRepo) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

// AddPlayer stores a player and returns its internal ID.
func (f *FakeScoreRepo) AddPlayer(p scoredb.Player) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == 0 {
		p.ID = f.nextPlayer
		f.nextPlayer++
	}
	f.players[p.MetanetID] = &p
	return p.ID
}

// AddScore stores a copy of s, assigning an ID when missing.
func (f *FakeScoreRepo) AddScore(s scoredb.Score, demo []byte) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID == 0 {
		s.ID = f.nextScore
		f.nextScore++
	}
	f.scores[s.ID] = &s
	if demo != nil {
		f.demos[s.ID] = demo
	}
	return s.ID
}

// Scores returns the stored scores ordered by ID.
func (f *FakeScoreRepo) Scores() []scoredb.Score {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]scoredb.Score, 0, len(f.scores))
	for _, s := range f.scores {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetTweak stores an episode offset.
func (f *FakeScoreRepo) SetTweak(t scoredb.Tweak) {
	f.tweaks[[2]int64{t.PlayerID, t.EpisodeID}] = t
}

// Tweak returns a stored episode offset.
func (f *FakeScoreRepo) Tweak(playerID, episodeID int64) (scoredb.Tweak, bool) {
	t, ok := f.tweaks[[2]int64{playerID, episodeID}]
	return t, ok
}

// BadHash returns the bad hash record of a score.
func (f *FakeScoreRepo) BadHash(scoreID int64) (scoredb.BadHash, bool) {
	b, ok := f.badHashes[scoreID]
	return b, ok
}

// Player returns a stored player.
func (f *FakeScoreRepo) Player(metanetID int64) (*scoredb.Player, bool) {
	p, ok := f.players[metanetID]
	return p, ok
}

func boardRank(s *scoredb.Score, board npp.Board) **int {
	if board == npp.Speedrun {
		return &s.RankSR
	}
	return &s.RankHS
}

func (f *FakeScoreRepo) GetPlayer(ctx context.Context, db bun.IDB, metanetID int64) (*scoredb.Player, error) {
	f.mu.Lock()
	f.record("GetPlayer")
	f.mu.Unlock()
	if f.GetPlayerFunc != nil {
		return f.GetPlayerFunc(ctx, db, metanetID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[metanetID]
	if !ok {
		return nil, scoredb.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *FakeScoreRepo) GetPlayerBySteamID(ctx context.Context, db bun.IDB, steamID string) (*scoredb.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetPlayerBySteamID")
	for _, p := range f.players {
		if p.SteamID != nil && *p.SteamID == steamID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, scoredb.ErrNotFound
}

func (f *FakeScoreRepo) EnsurePlayer(ctx context.Context, db bun.IDB, metanetID int64, name string) (*scoredb.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("EnsurePlayer")
	if p, ok := f.players[metanetID]; ok {
		cp := *p
		return &cp, nil
	}
	p := &scoredb.Player{ID: f.nextPlayer, MetanetID: metanetID, Name: name}
	f.nextPlayer++
	f.players[metanetID] = p
	cp := *p
	return &cp, nil
}

func (f *FakeScoreRepo) UpsertPlayer(ctx context.Context, db bun.IDB, p *scoredb.Player) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpsertPlayer")
	if existing, ok := f.players[p.MetanetID]; ok {
		existing.Name = p.Name
		if p.SteamID != nil {
			existing.SteamID = p.SteamID
		}
		*p = *existing
		return nil
	}
	p.ID = f.nextPlayer
	f.nextPlayer++
	cp := *p
	f.players[p.MetanetID] = &cp
	return nil
}

func (f *FakeScoreRepo) SetBlacklisted(ctx context.Context, db bun.IDB, metanetID int64, blacklisted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetBlacklisted")
	p, ok := f.players[metanetID]
	if !ok {
		return scoredb.ErrNoRowsAffected
	}
	p.Blacklisted = blacklisted
	return nil
}

func (f *FakeScoreRepo) ListPlayerScores(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, playerID int64) ([]scoredb.Score, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListPlayerScores")
	var out []scoredb.Score
	for _, s := range f.scores {
		if s.Kind == kind && s.HighscoreableID == id && s.PlayerID == playerID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *FakeScoreRepo) GetScore(ctx context.Context, db bun.IDB, id int64) (*scoredb.Score, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetScore")
	s, ok := f.scores[id]
	if !ok {
		return nil, scoredb.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *FakeScoreRepo) InsertScore(ctx context.Context, db bun.IDB, s *scoredb.Score) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("InsertScore")
	if f.InsertScoreFunc != nil {
		return f.InsertScoreFunc(ctx, db, s)
	}
	s.ID = f.nextScore
	f.nextScore++
	cp := *s
	f.scores[s.ID] = &cp
	return nil
}

func (f *FakeScoreRepo) UpdateHighscore(ctx context.Context, db bun.IDB, id int64, scoreHS int, gold int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateHighscore")
	s, ok := f.scores[id]
	if !ok {
		return scoredb.ErrNoRowsAffected
	}
	s.ScoreHS, s.Gold = scoreHS, gold
	return nil
}

func (f *FakeScoreRepo) DeleteScore(ctx context.Context, db bun.IDB, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteScore")
	if _, ok := f.scores[id]; !ok {
		return scoredb.ErrNoRowsAffected
	}
	delete(f.scores, id)
	delete(f.demos, id)
	return nil
}

func (f *FakeScoreRepo) ClearRanks(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, playerID int64, board npp.Board) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ClearRanks")
	for _, s := range f.scores {
		if s.Kind == kind && s.HighscoreableID == id && s.PlayerID == playerID {
			*boardRank(s, board) = nil
		}
	}
	return nil
}

func (f *FakeScoreRepo) BestRanked(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, playerID int64, board npp.Board) (*scoredb.Score, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("BestRanked")
	var best *scoredb.Score
	for _, s := range f.scores {
		if s.Kind != kind || s.HighscoreableID != id || s.PlayerID != playerID {
			continue
		}
		rank := *boardRank(s, board)
		if rank == nil {
			continue
		}
		if best == nil || *rank < **boardRank(best, board) {
			best = s
		}
	}
	if best == nil {
		return nil, scoredb.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (f *FakeScoreRepo) InsertDemo(ctx context.Context, db bun.IDB, d *scoredb.Demo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("InsertDemo")
	f.demos[d.ID] = d.Demo
	return nil
}

func (f *FakeScoreRepo) GetDemo(ctx context.Context, db bun.IDB, id int64) (*scoredb.Demo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetDemo")
	d, ok := f.demos[id]
	if !ok {
		return nil, scoredb.ErrNotFound
	}
	return &scoredb.Demo{ID: id, Demo: d}, nil
}

func (f *FakeScoreRepo) GetTweak(ctx context.Context, db bun.IDB, playerID, episodeID int64) (*scoredb.Tweak, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetTweak")
	t, ok := f.tweaks[[2]int64{playerID, episodeID}]
	if !ok {
		return nil, scoredb.ErrNotFound
	}
	return &t, nil
}

func (f *FakeScoreRepo) SaveTweak(ctx context.Context, db bun.IDB, t *scoredb.Tweak) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SaveTweak")
	f.tweaks[[2]int64{t.PlayerID, t.EpisodeID}] = *t
	return nil
}

func (f *FakeScoreRepo) DeleteTweak(ctx context.Context, db bun.IDB, playerID, episodeID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteTweak")
	delete(f.tweaks, [2]int64{playerID, episodeID})
	return nil
}

func (f *FakeScoreRepo) SaveBadHash(ctx context.Context, db bun.IDB, b *scoredb.BadHash) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SaveBadHash")
	f.badHashes[b.ScoreID] = *b
	return nil
}

var _ scoredb.Repository = (*FakeScoreRepo)(nil)

// ------------------------
// Fake Ranker
// ------------------------

// FakeRanker places pending runs at rank 0 of the fake repo and records calls.
type FakeRanker struct {
	repo  *FakeScoreRepo
	trace []string

	UpdateRanksFunc func(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, board npp.Board) (int, error)
	PromoteFunc     func(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, playerID int64, board npp.Board, fractional bool) (int64, error)
}

func (r *FakeRanker) record(step string) { r.trace = append(r.trace, step) }

func (r *FakeRanker) Trace() []string { return append([]string(nil), r.trace...) }

func (r *FakeRanker) Lock(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) error {
	r.record("Lock")
	return nil
}

func (r *FakeRanker) UpdateRanks(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, board npp.Board) (int, error) {
	r.record("UpdateRanks:" + string(board))
	if r.UpdateRanksFunc != nil {
		return r.UpdateRanksFunc(ctx, db, kind, id, board)
	}
	r.repo.mu.Lock()
	defer r.repo.mu.Unlock()
	n := 0
	for _, s := range r.repo.scores {
		rank := boardRank(s, board)
		if s.Kind == kind && s.HighscoreableID == id && *rank != nil && **rank < 0 {
			zero := 0
			*rank = &zero
			n++
		}
	}
	return n, nil
}

func (r *FakeRanker) Promote(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, playerID int64, board npp.Board, fractional bool) (int64, error) {
	r.record("Promote:" + string(board))
	if r.PromoteFunc != nil {
		return r.PromoteFunc(ctx, db, kind, id, playerID, board, fractional)
	}
	return 0, nil
}

func (r *FakeRanker) DeleteObsoletes(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, playerID int64) (int, error) {
	r.record("DeleteObsoletes")
	return 0, nil
}

func (r *FakeRanker) RefreshCompletions(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) (int, error) {
	r.record("RefreshCompletions")
	return 1, nil
}

// ------------------------
// Fake Mappack Service
// ------------------------

// FakeMappackService resolves a fixed catalog.
type FakeMappackService struct {
	mappackservice.Service

	packs []mappackdomain.Pack
	hs    []mappackdomain.Highscoreable

	VerifyReplayFunc func(ctx context.Context, h *mappackdomain.Highscoreable, frames int, token []byte) (bool, error)
}

func (f *FakeMappackService) GetMappack(_ context.Context, code string) (*mappackdomain.Pack, error) {
	for i := range f.packs {
		if f.packs[i].Code == code {
			return &f.packs[i], nil
		}
	}
	return nil, npp.Errorf("mappack.GetMappack", npp.ErrNotFound, "mappack %q", code)
}

func (f *FakeMappackService) ListMappacks(context.Context) ([]mappackdomain.Pack, error) {
	return f.packs, nil
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

func (f *FakeMappackService) GetHighscoreable(_ context.Context, kind npp.Kind, id int64) (*mappackdomain.Highscoreable, error) {
	for i := range f.hs {
		if f.hs[i].Kind == kind && f.hs[i].ID == id {
			return &f.hs[i], nil
		}
	}
	return nil, npp.Errorf("mappack.GetHighscoreable", npp.ErrNotFound, "%s %d", kind, id)
}

func (f *FakeMappackService) DumpLevels(_ context.Context, h *mappackdomain.Highscoreable) ([][]byte, error) {
	out := make([][]byte, h.Kind.Size())
	for i := range out {
		out[i] = []byte("map")
	}
	return out, nil
}

func (f *FakeMappackService) VerifyReplay(ctx context.Context, h *mappackdomain.Highscoreable, frames int, token []byte) (bool, error) {
	if f.VerifyReplayFunc != nil {
		return f.VerifyReplayFunc(ctx, h, frames, token)
	}
	return true, nil
}

// ------------------------
// Fake collaborators
// ------------------------

type FakeForwarder struct {
	calls []UpstreamRequest
	body  []byte
	err   error
}

func (f *FakeForwarder) Forward(_ context.Context, req UpstreamRequest) ([]byte, error) {
	f.calls = append(f.calls, req)
	return f.body, f.err
}

type FakeSimulator struct {
	result *SimResult
	err    error
	calls  int
}

func (f *FakeSimulator) Run(context.Context, [][]byte, [][]byte) (*SimResult, error) {
	f.calls++
	return f.result, f.err
}

type refreshCall struct {
	kind      npp.Kind
	id        int64
	metanetID int64
}

type FakeRefresher struct {
	calls []refreshCall
}

func (f *FakeRefresher) ScheduleVanillaRefresh(_ context.Context, kind npp.Kind, id int64, metanetID int64) error {
	f.calls = append(f.calls, refreshCall{kind, id, metanetID})
	return nil
}

// FakePublisher records published topics.
type FakePublisher struct {
	mu     sync.Mutex
	topics []string
	msgs   []*message.Message
}

func (p *FakePublisher) Publish(topic string, msgs ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range msgs {
		p.topics = append(p.topics, topic)
		p.msgs = append(p.msgs, m)
	}
	return nil
}

func (p *FakePublisher) Close() error { return nil }

func (p *FakePublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}
