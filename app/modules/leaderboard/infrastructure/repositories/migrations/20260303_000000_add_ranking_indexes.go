package leaderboardmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Adding leaderboard ranking indexes...")

		// Board pages: "rank N of highscoreable H"
		_, err := db.NewRaw(`
			CREATE INDEX IF NOT EXISTS idx_mappack_scores_board_hs
			ON mappack_scores (kind, highscoreable_id, rank_hs)
			WHERE rank_hs IS NOT NULL
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("create idx_mappack_scores_board_hs: %w", err)
		}

		_, err = db.NewRaw(`
			CREATE INDEX IF NOT EXISTS idx_mappack_scores_board_sr
			ON mappack_scores (kind, highscoreable_id, rank_sr)
			WHERE rank_sr IS NOT NULL
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("create idx_mappack_scores_board_sr: %w", err)
		}

		// Obsolete scan and PB lookup per player
		_, err = db.NewRaw(`
			CREATE INDEX IF NOT EXISTS idx_mappack_scores_player_board
			ON mappack_scores (kind, highscoreable_id, player_id, id)
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("create idx_mappack_scores_player_board: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping leaderboard ranking indexes...")
		for _, idx := range []string{
			"idx_mappack_scores_board_hs",
			"idx_mappack_scores_board_sr",
			"idx_mappack_scores_player_board",
		} {
			if _, err := db.NewRaw("DROP INDEX IF EXISTS ?", bun.Ident(idx)).Exec(ctx); err != nil {
				return fmt.Errorf("drop %s: %w", idx, err)
			}
		}
		return nil
	})
}
