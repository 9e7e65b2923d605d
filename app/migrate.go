package app

import (
	"context"
	"fmt"

	leaderboardmigrations "github.com/edelkas/inne-sub000/app/modules/leaderboard/infrastructure/repositories/migrations"
	mappackmigrations "github.com/edelkas/inne-sub000/app/modules/mappack/infrastructure/repositories/migrations"
	scoremigrations "github.com/edelkas/inne-sub000/app/modules/score/infrastructure/repositories/migrations"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// ModuleMigrator is the bun migrator of one module. Each module keeps its
// own bookkeeping tables.
type ModuleMigrator struct {
	Module string
	*migrate.Migrator
}

// Migrators returns the module migrators in dependency order: scores
// reference mappacks and the leaderboard indexes score tables.
func Migrators(db *bun.DB) []ModuleMigrator {
	build := func(module string, m *migrate.Migrations) ModuleMigrator {
		return ModuleMigrator{
			Module: module,
			Migrator: migrate.NewMigrator(db, m,
				migrate.WithTableName("bun_migrations_"+module),
				migrate.WithLocksTableName("bun_migration_locks_"+module),
			),
		}
	}
	return []ModuleMigrator{
		build("mappack", mappackmigrations.Migrations),
		build("score", scoremigrations.Migrations),
		build("leaderboard", leaderboardmigrations.Migrations),
	}
}

// Migrate initializes and applies the migrations of every module in order.
// report, when set, receives the applied group of each module.
func Migrate(ctx context.Context, migrators []ModuleMigrator, report func(module, group string)) error {
	for _, m := range migrators {
		if err := m.Init(ctx); err != nil {
			return fmt.Errorf("init %s migrations: %w", m.Module, err)
		}
		group, err := m.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("migrate %s: %w", m.Module, err)
		}
		if report == nil {
			continue
		}
		if group.IsZero() {
			report(m.Module, "up to date")
		} else {
			report(m.Module, group.String())
		}
	}
	return nil
}
