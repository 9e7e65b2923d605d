package scoremigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating score tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS players (
					id BIGSERIAL PRIMARY KEY,
					metanet_id BIGINT NOT NULL UNIQUE,
					name TEXT NOT NULL,
					steam_id TEXT,
					blacklisted BOOLEAN NOT NULL DEFAULT FALSE,
					last_active TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_players_steam_id ON players(steam_id);
			`); err != nil {
				return fmt.Errorf("failed to create players table: %w", err)
			}

			// Score IDs double as replay IDs; the client fetches replays over
			// HTTP only from 131072 upwards.
			if _, err := tx.ExecContext(ctx, `
				CREATE SEQUENCE IF NOT EXISTS mappack_scores_id_seq START WITH 131072 MINVALUE 131072;
				CREATE TABLE IF NOT EXISTS mappack_scores (
					id BIGINT PRIMARY KEY DEFAULT nextval('mappack_scores_id_seq'),
					kind SMALLINT NOT NULL,
					highscoreable_id BIGINT NOT NULL,
					mappack_id BIGINT NOT NULL REFERENCES mappacks(id) ON DELETE CASCADE,
					player_id BIGINT NOT NULL REFERENCES players(id),
					metanet_id BIGINT NOT NULL,
					score_hs INTEGER NOT NULL,
					score_sr INTEGER NOT NULL,
					fraction DOUBLE PRECISION NOT NULL DEFAULT 1,
					gold INTEGER NOT NULL DEFAULT 0,
					rank_hs INTEGER,
					tied_rank_hs INTEGER,
					rank_sr INTEGER,
					tied_rank_sr INTEGER,
					tab SMALLINT NOT NULL,
					version INTEGER,
					simulated BOOLEAN NOT NULL DEFAULT FALSE,
					date TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				ALTER SEQUENCE mappack_scores_id_seq OWNED BY mappack_scores.id;
			`); err != nil {
				return fmt.Errorf("failed to create mappack_scores table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS mappack_demos (
					id BIGINT PRIMARY KEY REFERENCES mappack_scores(id) ON DELETE CASCADE,
					demo BYTEA NOT NULL
				);
			`); err != nil {
				return fmt.Errorf("failed to create mappack_demos table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS mappack_scores_tweaks (
					player_id BIGINT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
					episode_id BIGINT NOT NULL,
					idx SMALLINT NOT NULL,
					tweak INTEGER NOT NULL,
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (player_id, episode_id)
				);
			`); err != nil {
				return fmt.Errorf("failed to create mappack_scores_tweaks table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS bad_hashes (
					score_id BIGINT PRIMARY KEY REFERENCES mappack_scores(id) ON DELETE CASCADE,
					npp_hash TEXT NOT NULL,
					score INTEGER NOT NULL
				);
			`); err != nil {
				return fmt.Errorf("failed to create bad_hashes table: %w", err)
			}

			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping score tables...")
		_, err := db.ExecContext(ctx, `
			DROP TABLE IF EXISTS bad_hashes;
			DROP TABLE IF EXISTS mappack_scores_tweaks;
			DROP TABLE IF EXISTS mappack_demos;
			DROP TABLE IF EXISTS mappack_scores;
			DROP SEQUENCE IF EXISTS mappack_scores_id_seq;
			DROP TABLE IF EXISTS players;
		`)
		return err
	})
}
