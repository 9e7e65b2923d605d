package leaderboarddb

import (
	"context"
	"fmt"

	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/uptrace/bun"
)

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new leaderboard repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

// rankColumns returns the rank and tied rank columns of a board.
func rankColumns(board npp.Board) (string, string) {
	return "rank_" + string(board), "tied_rank_" + string(board)
}

func (r *Impl) LockHighscoreable(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) error {
	db = r.resolveDB(db)
	if _, err := db.NewRaw("SELECT pg_advisory_xact_lock(?, ?)", int32(kind), int32(id)).Exec(ctx); err != nil {
		return fmt.Errorf("failed to lock %s %d: %w", kind, id, err)
	}
	return nil
}

func (r *Impl) ListScores(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) ([]ScoreRow, error) {
	db = r.resolveDB(db)
	var rows []ScoreRow
	err := db.NewSelect().
		Model(&rows).
		Where("kind = ?", kind).
		Where("highscoreable_id = ?", id).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores of %s %d: %w", kind, id, err)
	}
	return rows, nil
}

func (r *Impl) ListPlayerScores(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, playerID int64) ([]ScoreRow, error) {
	db = r.resolveDB(db)
	var rows []ScoreRow
	err := db.NewSelect().
		Model(&rows).
		Where("kind = ?", kind).
		Where("highscoreable_id = ?", id).
		Where("player_id = ?", playerID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores of player %d on %s %d: %w", playerID, kind, id, err)
	}
	return rows, nil
}

// ApplyRanks performs a bulk UPDATE ... FROM (VALUES ...) so that the new
// ordering becomes visible atomically.
func (r *Impl) ApplyRanks(ctx context.Context, db bun.IDB, board npp.Board, rows []RankRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	db = r.resolveDB(db)
	rank, tied := rankColumns(board)

	values := db.NewValues(&rows)
	res, err := db.NewUpdate().
		With("_data", values).
		Model((*ScoreRow)(nil)).
		TableExpr("_data").
		Set("? = _data.rank", bun.Ident(rank)).
		Set("? = _data.tied_rank", bun.Ident(tied)).
		Where("s.id = _data.id").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to apply %s ranks: %w", board, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

func (r *Impl) SetRanks(ctx context.Context, db bun.IDB, board npp.Board, ids []int64, value *int) error {
	if len(ids) == 0 {
		return nil
	}
	db = r.resolveDB(db)
	rank, tied := rankColumns(board)
	_, err := db.NewUpdate().
		Model((*ScoreRow)(nil)).
		Set("? = ?", bun.Ident(rank), value).
		Set("? = ?", bun.Ident(tied), value).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set %s ranks: %w", board, err)
	}
	return nil
}

func (r *Impl) DeleteScores(ctx context.Context, db bun.IDB, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	db = r.resolveDB(db)
	res, err := db.NewDelete().
		Model((*ScoreRow)(nil)).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete scores: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

func (r *Impl) CountCompletions(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) (int, error) {
	db = r.resolveDB(db)
	n, err := db.NewSelect().
		Model((*ScoreRow)(nil)).
		Where("kind = ?", kind).
		Where("highscoreable_id = ?", id).
		Where("rank_hs IS NOT NULL").
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count completions of %s %d: %w", kind, id, err)
	}
	return n, nil
}

func (r *Impl) SetCompletions(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, n int) error {
	db = r.resolveDB(db)
	res, err := db.NewUpdate().
		Table("mappack_highscoreables").
		Set("completions = ?", n).
		Where("kind = ?", kind).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set completions of %s %d: %w", kind, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNoRowsAffected
	}
	return nil
}

func (r *Impl) RecountCompletions(ctx context.Context, db bun.IDB, mappackID int64) (int, error) {
	db = r.resolveDB(db)
	res, err := db.NewRaw(`
		UPDATE mappack_highscoreables AS h
		SET completions = (
			SELECT COUNT(*)
			FROM mappack_scores AS s
			WHERE s.kind = h.kind AND s.highscoreable_id = h.id AND s.rank_hs IS NOT NULL
		)
		WHERE ? = 0 OR h.mappack_id = ?`,
		mappackID, mappackID,
	).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to recount completions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

func (r *Impl) GetBoard(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, board npp.Board, offset, limit int) ([]BoardRow, error) {
	db = r.resolveDB(db)
	rank, _ := rankColumns(board)
	score := "score_" + string(board)

	var rows []BoardRow
	q := db.NewSelect().
		TableExpr("mappack_scores AS s").
		ColumnExpr("s.id").
		ColumnExpr("s.? AS score", bun.Ident(score)).
		ColumnExpr("s.? AS rank", bun.Ident(rank)).
		ColumnExpr("p.name, p.metanet_id").
		Join("JOIN players AS p ON p.id = s.player_id").
		Where("s.kind = ?", kind).
		Where("s.highscoreable_id = ?", id).
		Where("s.? IS NOT NULL", bun.Ident(rank)).
		OrderExpr("s.? ASC", bun.Ident(rank)).
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to get %s board of %s %d: %w", board, kind, id, err)
	}
	return rows, nil
}

func (r *Impl) ListGoldRows(ctx context.Context, db bun.IDB, filter GoldFilter) ([]GoldRow, error) {
	db = r.resolveDB(db)
	minID := max(filter.MinID, npp.MinReplayID)

	var rows []GoldRow
	q := db.NewSelect().
		TableExpr("mappack_scores AS s").
		ColumnExpr("s.id, s.highscoreable_id AS level_id").
		ColumnExpr("h.name AS level_name, h.gold AS level_gold").
		ColumnExpr("SUBSTRING(p.name, 1, 16) AS player").
		ColumnExpr("s.score_hs, s.score_sr, s.gold, s.rank_hs, s.rank_sr").
		Join("JOIN mappack_highscoreables AS h ON h.kind = s.kind AND h.id = s.highscoreable_id").
		Join("JOIN players AS p ON p.id = s.player_id").
		Where("s.kind = ?", npp.Level).
		Where("s.id >= ?", minID)
	if filter.MappackID != 0 {
		q = q.Where("s.mappack_id = ?", filter.MappackID)
	}
	if filter.Strict {
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("s.rank_hs < ?", npp.PageSize).WhereOr("s.rank_sr < ?", npp.PageSize)
		})
	}
	if err := q.OrderExpr("s.highscoreable_id ASC, s.id ASC").Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to list gold check rows: %w", err)
	}
	return rows, nil
}
