package testutils

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	mappackdb "github.com/edelkas/inne-sub000/app/modules/mappack/infrastructure/repositories"
	scoredb "github.com/edelkas/inne-sub000/app/modules/score/infrastructure/repositories"
	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/uptrace/bun"
)

// DataGenerator builds database fixtures with random but reproducible names.
type DataGenerator struct {
	faker    *gofakeit.Faker
	mappacks mappackdb.Repository
	scores   scoredb.Repository
}

// NewDataGenerator creates a generator seeded for reproducible runs.
func NewDataGenerator(db bun.IDB, seed uint64) *DataGenerator {
	return &DataGenerator{
		faker:    gofakeit.New(seed),
		mappacks: mappackdb.NewRepository(db),
		scores:   scoredb.NewRepository(db),
	}
}

// SeededMappack is a mappack with one episode of five levels and the story
// containing it.
type SeededMappack struct {
	Mappack *mappackdb.Mappack
	Levels  []*mappackdb.Highscoreable
	Episode *mappackdb.Highscoreable
	Story   *mappackdb.Highscoreable
}

// SeedMappack inserts a mappack and the first episode of its first story.
// gold is the gold count of every level.
func (g *DataGenerator) SeedMappack(ctx context.Context, id int64, code string, gold int) (*SeededMappack, error) {
	pack := &mappackdb.Mappack{
		ID:      id,
		Code:    strings.ToUpper(code),
		Version: 1,
		Name:    g.faker.Company(),
		Authors: g.faker.Name(),
		Date:    g.faker.Date().Format("02/01/06"),
		Enabled: true,
	}
	if err := g.mappacks.UpsertMappack(ctx, nil, pack); err != nil {
		return nil, err
	}

	story := g.highscoreable(pack, npp.Story, 0, nil, "")
	if err := g.mappacks.UpsertHighscoreable(ctx, nil, story); err != nil {
		return nil, err
	}
	episode := g.highscoreable(pack, npp.Episode, 0, &story.ID, "")
	if err := g.mappacks.UpsertHighscoreable(ctx, nil, episode); err != nil {
		return nil, err
	}

	seeded := &SeededMappack{Mappack: pack, Episode: episode, Story: story}
	for i := 0; i < npp.Episode.Size(); i++ {
		level := g.highscoreable(pack, npp.Level, i, &episode.ID, g.faker.HipsterWord())
		level.Gold = gold
		if err := g.mappacks.UpsertHighscoreable(ctx, nil, level); err != nil {
			return nil, err
		}
		seeded.Levels = append(seeded.Levels, level)
	}

	if err := g.mappacks.RollupGold(ctx, nil, id); err != nil {
		return nil, err
	}
	episode.Gold = gold * npp.Episode.Size()
	story.Gold = episode.Gold
	return seeded, nil
}

func (g *DataGenerator) highscoreable(pack *mappackdb.Mappack, kind npp.Kind, inner int, parent *int64, longname string) *mappackdb.Highscoreable {
	return &mappackdb.Highscoreable{
		Kind:      kind,
		ID:        npp.GlobalID(kind, pack.ID, inner),
		InnerID:   inner,
		MappackID: pack.ID,
		Mode:      npp.Solo,
		Tab:       0,
		ParentID:  parent,
		Name:      npp.Name(pack.Code, kind, inner),
		Longname:  longname,
	}
}

// CreatePlayer inserts a player with a random name.
func (g *DataGenerator) CreatePlayer(ctx context.Context, metanetID int64) (*scoredb.Player, error) {
	name := fmt.Sprintf("%s%d", g.faker.Username(), metanetID)
	return g.scores.EnsurePlayer(ctx, nil, metanetID, name)
}

// ScoreOption adjusts a generated score before it is inserted.
type ScoreOption func(*scoredb.Score)

// WithGold sets the gold count of the run.
func WithGold(gold int) ScoreOption {
	return func(s *scoredb.Score) { s.Gold = gold }
}

// WithDate sets the submission date, which breaks ties between equal runs.
func WithDate(t time.Time) ScoreOption {
	return func(s *scoredb.Score) { s.Date = t }
}

// WithSpeedrun sets the speedrun frame count.
func WithSpeedrun(frames int) ScoreOption {
	return func(s *scoredb.Score) { s.ScoreSR = frames }
}

// CreateScore inserts an unranked score of a player on a highscoreable.
// scoreHS is in frames of the highscore board.
func (g *DataGenerator) CreateScore(ctx context.Context, h *mappackdb.Highscoreable, player *scoredb.Player, scoreHS int, opts ...ScoreOption) (*scoredb.Score, error) {
	s := &scoredb.Score{
		Kind:            h.Kind,
		HighscoreableID: h.ID,
		MappackID:       h.MappackID,
		PlayerID:        player.ID,
		MetanetID:       player.MetanetID,
		ScoreHS:         scoreHS,
		ScoreSR:         g.faker.IntRange(60, 6000),
		Fraction:        1,
		Tab:             h.Tab,
		Version:         1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := g.scores.InsertScore(ctx, nil, s); err != nil {
		return nil, err
	}
	return s, nil
}

// WithPendingRank marks the run for placement on both boards by the next
// rank recomputation.
func WithPendingRank() ScoreOption {
	return func(s *scoredb.Score) {
		hs, sr := -1, -1
		s.RankHS, s.RankSR = &hs, &sr
	}
}

// LevelHighscore returns the highscore frames of a level run whose gold count
// is consistent with its speedrun frames.
func LevelHighscore(gold, speedrun int) int {
	return 5400 + npp.Level.Size() + 120*gold - speedrun
}
