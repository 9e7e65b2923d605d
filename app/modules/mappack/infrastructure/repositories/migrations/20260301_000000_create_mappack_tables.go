package mappackmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating mappack tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS mappacks (
					id BIGINT PRIMARY KEY,
					code VARCHAR(8) NOT NULL UNIQUE,
					version INTEGER NOT NULL DEFAULT 1,
					name TEXT,
					authors TEXT,
					date TEXT,
					enabled BOOLEAN NOT NULL DEFAULT TRUE,
					fractional BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`); err != nil {
				return fmt.Errorf("failed to create mappacks table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS mappack_highscoreables (
					kind SMALLINT NOT NULL,
					id BIGINT NOT NULL,
					inner_id INTEGER NOT NULL,
					mappack_id BIGINT NOT NULL REFERENCES mappacks(id) ON DELETE CASCADE,
					mode SMALLINT NOT NULL,
					tab SMALLINT NOT NULL,
					parent_id BIGINT,
					name VARCHAR(16) NOT NULL,
					longname TEXT,
					gold INTEGER NOT NULL DEFAULT 0,
					completions INTEGER NOT NULL DEFAULT 0,
					PRIMARY KEY (kind, id)
				);
				CREATE INDEX IF NOT EXISTS idx_mappack_highscoreables_mappack ON mappack_highscoreables(mappack_id, kind, inner_id);
				CREATE INDEX IF NOT EXISTS idx_mappack_highscoreables_parent ON mappack_highscoreables(kind, parent_id);
			`); err != nil {
				return fmt.Errorf("failed to create mappack_highscoreables table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS mappack_data (
					level_id BIGINT NOT NULL,
					version INTEGER NOT NULL,
					tile_data BYTEA,
					object_data BYTEA,
					PRIMARY KEY (level_id, version)
				);
			`); err != nil {
				return fmt.Errorf("failed to create mappack_data table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS mappack_hashes (
					kind SMALLINT NOT NULL,
					highscoreable_id BIGINT NOT NULL,
					version INTEGER NOT NULL,
					sha1_hash BYTEA,
					PRIMARY KEY (kind, highscoreable_id, version)
				);
			`); err != nil {
				return fmt.Errorf("failed to create mappack_hashes table: %w", err)
			}

			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping mappack tables...")
		_, err := db.ExecContext(ctx, `
			DROP TABLE IF EXISTS mappack_hashes;
			DROP TABLE IF EXISTS mappack_data;
			DROP TABLE IF EXISTS mappack_highscoreables;
			DROP TABLE IF EXISTS mappacks;
		`)
		return err
	})
}
