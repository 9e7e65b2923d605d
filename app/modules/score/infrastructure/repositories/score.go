package scoredb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/uptrace/bun"
)

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new score repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

func rankColumns(board npp.Board) (string, string) {
	return "rank_" + string(board), "tied_rank_" + string(board)
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNoRowsAffected
	}
	return nil
}

// -- Players --

func (r *Impl) GetPlayer(ctx context.Context, db bun.IDB, metanetID int64) (*Player, error) {
	db = r.resolveDB(db)
	p := new(Player)
	err := db.NewSelect().Model(p).Where("metanet_id = ?", metanetID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get player %d: %w", metanetID, err)
	}
	return p, nil
}

func (r *Impl) GetPlayerBySteamID(ctx context.Context, db bun.IDB, steamID string) (*Player, error) {
	db = r.resolveDB(db)
	p := new(Player)
	err := db.NewSelect().Model(p).Where("steam_id = ?", steamID).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get player by steam ID: %w", err)
	}
	return p, nil
}

// EnsurePlayer relies on the unique Metanet ID so that concurrent first
// submissions of a player converge on one row.
func (r *Impl) EnsurePlayer(ctx context.Context, db bun.IDB, metanetID int64, name string) (*Player, error) {
	db = r.resolveDB(db)
	p := &Player{MetanetID: metanetID, Name: name, LastActive: time.Now()}
	err := db.NewInsert().
		Model(p).
		On("CONFLICT (metanet_id) DO UPDATE").
		Set("last_active = EXCLUDED.last_active").
		Returning("*").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure player %d: %w", metanetID, err)
	}
	return p, nil
}

func (r *Impl) UpsertPlayer(ctx context.Context, db bun.IDB, p *Player) error {
	db = r.resolveDB(db)
	p.LastActive = time.Now()
	err := db.NewInsert().
		Model(p).
		On("CONFLICT (metanet_id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("steam_id = COALESCE(EXCLUDED.steam_id, p.steam_id)").
		Set("last_active = EXCLUDED.last_active").
		Returning("*").
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert player %d: %w", p.MetanetID, err)
	}
	return nil
}

func (r *Impl) SetBlacklisted(ctx context.Context, db bun.IDB, metanetID int64, blacklisted bool) error {
	db = r.resolveDB(db)
	res, err := db.NewUpdate().
		Model((*Player)(nil)).
		Set("blacklisted = ?", blacklisted).
		Where("metanet_id = ?", metanetID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to blacklist player %d: %w", metanetID, err)
	}
	return affected(res)
}

// -- Scores --

func (r *Impl) ListPlayerScores(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, playerID int64) ([]Score, error) {
	db = r.resolveDB(db)
	var scores []Score
	err := db.NewSelect().
		Model(&scores).
		Where("kind = ?", kind).
		Where("highscoreable_id = ?", id).
		Where("player_id = ?", playerID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores of player %d on %s %d: %w", playerID, kind, id, err)
	}
	return scores, nil
}

func (r *Impl) GetScore(ctx context.Context, db bun.IDB, id int64) (*Score, error) {
	db = r.resolveDB(db)
	s := new(Score)
	if err := db.NewSelect().Model(s).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get score %d: %w", id, err)
	}
	return s, nil
}

func (r *Impl) InsertScore(ctx context.Context, db bun.IDB, s *Score) error {
	db = r.resolveDB(db)
	if s.Date.IsZero() {
		s.Date = time.Now()
	}
	if _, err := db.NewInsert().Model(s).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert score: %w", err)
	}
	return nil
}

func (r *Impl) UpdateHighscore(ctx context.Context, db bun.IDB, id int64, scoreHS int, gold int) error {
	db = r.resolveDB(db)
	res, err := db.NewUpdate().
		Model((*Score)(nil)).
		Set("score_hs = ?", scoreHS).
		Set("gold = ?", gold).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update score %d: %w", id, err)
	}
	return affected(res)
}

func (r *Impl) DeleteScore(ctx context.Context, db bun.IDB, id int64) error {
	db = r.resolveDB(db)
	res, err := db.NewDelete().Model((*Score)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete score %d: %w", id, err)
	}
	return affected(res)
}

func (r *Impl) ClearRanks(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, playerID int64, board npp.Board) error {
	db = r.resolveDB(db)
	rank, tied := rankColumns(board)
	_, err := db.NewUpdate().
		Model((*Score)(nil)).
		Set("? = NULL", bun.Ident(rank)).
		Set("? = NULL", bun.Ident(tied)).
		Where("kind = ?", kind).
		Where("highscoreable_id = ?", id).
		Where("player_id = ?", playerID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear %s ranks of player %d: %w", board, playerID, err)
	}
	return nil
}

func (r *Impl) BestRanked(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, playerID int64, board npp.Board) (*Score, error) {
	db = r.resolveDB(db)
	rank, _ := rankColumns(board)
	s := new(Score)
	err := db.NewSelect().
		Model(s).
		Where("kind = ?", kind).
		Where("highscoreable_id = ?", id).
		Where("player_id = ?", playerID).
		Where("? IS NOT NULL", bun.Ident(rank)).
		OrderExpr("? ASC", bun.Ident(rank)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get best %s score of player %d: %w", board, playerID, err)
	}
	return s, nil
}

// -- Demos --

func (r *Impl) InsertDemo(ctx context.Context, db bun.IDB, d *Demo) error {
	db = r.resolveDB(db)
	if _, err := db.NewInsert().Model(d).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert demo %d: %w", d.ID, err)
	}
	return nil
}

func (r *Impl) GetDemo(ctx context.Context, db bun.IDB, id int64) (*Demo, error) {
	db = r.resolveDB(db)
	d := new(Demo)
	if err := db.NewSelect().Model(d).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get demo %d: %w", id, err)
	}
	return d, nil
}

// -- Tweaks --

func (r *Impl) GetTweak(ctx context.Context, db bun.IDB, playerID, episodeID int64) (*Tweak, error) {
	db = r.resolveDB(db)
	t := new(Tweak)
	err := db.NewSelect().
		Model(t).
		Where("player_id = ?", playerID).
		Where("episode_id = ?", episodeID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get tweak: %w", err)
	}
	return t, nil
}

func (r *Impl) SaveTweak(ctx context.Context, db bun.IDB, t *Tweak) error {
	db = r.resolveDB(db)
	t.UpdatedAt = time.Now()
	_, err := db.NewInsert().
		Model(t).
		On("CONFLICT (player_id, episode_id) DO UPDATE").
		Set("idx = EXCLUDED.idx").
		Set("tweak = EXCLUDED.tweak").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save tweak: %w", err)
	}
	return nil
}

func (r *Impl) DeleteTweak(ctx context.Context, db bun.IDB, playerID, episodeID int64) error {
	db = r.resolveDB(db)
	_, err := db.NewDelete().
		Model((*Tweak)(nil)).
		Where("player_id = ?", playerID).
		Where("episode_id = ?", episodeID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete tweak: %w", err)
	}
	return nil
}

// -- Bad hashes --

func (r *Impl) SaveBadHash(ctx context.Context, db bun.IDB, b *BadHash) error {
	db = r.resolveDB(db)
	_, err := db.NewInsert().
		Model(b).
		On("CONFLICT (score_id) DO UPDATE").
		Set("npp_hash = EXCLUDED.npp_hash").
		Set("score = EXCLUDED.score").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record bad hash of score %d: %w", b.ScoreID, err)
	}
	return nil
}
