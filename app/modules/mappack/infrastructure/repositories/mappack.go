package mappackdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/uptrace/bun"
)

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new mappack repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

// resolveDB returns the provided db handle, falling back to the repository's
// default connection if db is nil.
func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

// GetMappackByCode retrieves a mappack by its code.
func (r *Impl) GetMappackByCode(ctx context.Context, db bun.IDB, code string) (*Mappack, error) {
	db = r.resolveDB(db)
	m := new(Mappack)
	err := db.NewSelect().
		Model(m).
		Where("UPPER(code) = ?", strings.ToUpper(code)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get mappack by code: %w", err)
	}
	return m, nil
}

// GetMappackByID retrieves a mappack by its ID.
func (r *Impl) GetMappackByID(ctx context.Context, db bun.IDB, id int64) (*Mappack, error) {
	db = r.resolveDB(db)
	m := new(Mappack)
	err := db.NewSelect().
		Model(m).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get mappack by ID: %w", err)
	}
	return m, nil
}

func (r *Impl) ListMappacks(ctx context.Context, db bun.IDB) ([]Mappack, error) {
	db = r.resolveDB(db)
	var packs []Mappack
	if err := db.NewSelect().Model(&packs).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list mappacks: %w", err)
	}
	return packs, nil
}

// UpsertMappack creates or updates a mappack keyed by ID.
func (r *Impl) UpsertMappack(ctx context.Context, db bun.IDB, m *Mappack) error {
	db = r.resolveDB(db)
	m.UpdatedAt = time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = m.UpdatedAt
	}
	_, err := db.NewInsert().
		Model(m).
		On("CONFLICT (id) DO UPDATE").
		Set("code = EXCLUDED.code").
		Set("version = EXCLUDED.version").
		Set("name = EXCLUDED.name").
		Set("authors = EXCLUDED.authors").
		Set("date = EXCLUDED.date").
		Set("enabled = EXCLUDED.enabled").
		Set("fractional = EXCLUDED.fractional").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert mappack: %w", err)
	}
	return nil
}

// GetHighscoreable finds a highscoreable by mappack and inner ID.
func (r *Impl) GetHighscoreable(ctx context.Context, db bun.IDB, mappackID int64, kind npp.Kind, innerID int) (*Highscoreable, error) {
	db = r.resolveDB(db)
	h := new(Highscoreable)
	err := db.NewSelect().
		Model(h).
		Where("kind = ?", kind).
		Where("mappack_id = ?", mappackID).
		Where("inner_id = ?", innerID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s %d: %w", kind, innerID, err)
	}
	return h, nil
}

// GetHighscoreableByID finds a highscoreable by its global ID.
func (r *Impl) GetHighscoreableByID(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) (*Highscoreable, error) {
	db = r.resolveDB(db)
	h := new(Highscoreable)
	err := db.NewSelect().
		Model(h).
		Where("kind = ?", kind).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s by ID: %w", kind, err)
	}
	return h, nil
}

func (r *Impl) ListHighscoreables(ctx context.Context, db bun.IDB, mappackID int64, kind npp.Kind) ([]Highscoreable, error) {
	db = r.resolveDB(db)
	var hs []Highscoreable
	err := db.NewSelect().
		Model(&hs).
		Where("kind = ?", kind).
		Where("mappack_id = ?", mappackID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %ss: %w", kind, err)
	}
	return hs, nil
}

// UpsertHighscoreable creates or updates a highscoreable. Completions are
// owned by the leaderboard and are never overwritten here.
func (r *Impl) UpsertHighscoreable(ctx context.Context, db bun.IDB, h *Highscoreable) error {
	db = r.resolveDB(db)
	_, err := db.NewInsert().
		Model(h).
		On("CONFLICT (kind, id) DO UPDATE").
		Set("inner_id = EXCLUDED.inner_id").
		Set("mappack_id = EXCLUDED.mappack_id").
		Set("mode = EXCLUDED.mode").
		Set("tab = EXCLUDED.tab").
		Set("parent_id = EXCLUDED.parent_id").
		Set("name = EXCLUDED.name").
		Set("longname = EXCLUDED.longname").
		Set("gold = EXCLUDED.gold").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert %s %d: %w", h.Kind, h.ID, err)
	}
	return nil
}

func (r *Impl) DeleteHighscoreables(ctx context.Context, db bun.IDB, mappackID int64) error {
	db = r.resolveDB(db)
	_, err := db.NewDelete().
		Model((*Highscoreable)(nil)).
		Where("mappack_id = ?", mappackID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete highscoreables: %w", err)
	}
	return nil
}

// RollupGold recomputes episode gold from levels, then story gold from episodes.
func (r *Impl) RollupGold(ctx context.Context, db bun.IDB, mappackID int64) error {
	db = r.resolveDB(db)
	for _, parent := range []npp.Kind{npp.Episode, npp.Story} {
		child := parent - 1
		_, err := db.NewRaw(`
			UPDATE mappack_highscoreables AS p
			SET gold = c.total
			FROM (
				SELECT parent_id, SUM(gold) AS total
				FROM mappack_highscoreables
				WHERE kind = ? AND mappack_id = ? AND parent_id IS NOT NULL
				GROUP BY parent_id
			) AS c
			WHERE p.kind = ? AND p.id = c.parent_id`,
			child, mappackID, parent,
		).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to roll up %s gold: %w", parent, err)
		}
	}
	return nil
}

// GetMapData resolves tiles and objects independently, since a version only
// stores the columns that changed.
func (r *Impl) GetMapData(ctx context.Context, db bun.IDB, levelID int64, version int) ([]byte, []byte, error) {
	db = r.resolveDB(db)
	column := func(name string) ([]byte, error) {
		d := new(MapData)
		q := db.NewSelect().
			Model(d).
			Where("level_id = ?", levelID).
			Where("? IS NOT NULL", bun.Ident(name)).
			Order("version DESC").
			Limit(1)
		if version > 0 {
			q = q.Where("version <= ?", version)
		}
		if err := q.Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("failed to get %s of level %d: %w", name, levelID, err)
		}
		if name == "tile_data" {
			return d.TileData, nil
		}
		return d.ObjectData, nil
	}

	tiles, err := column("tile_data")
	if err != nil {
		return nil, nil, err
	}
	objects, err := column("object_data")
	if err != nil {
		return nil, nil, err
	}
	return tiles, objects, nil
}

func (r *Impl) SaveMapData(ctx context.Context, db bun.IDB, d *MapData) error {
	db = r.resolveDB(db)
	_, err := db.NewInsert().
		Model(d).
		On("CONFLICT (level_id, version) DO UPDATE").
		Set("tile_data = COALESCE(EXCLUDED.tile_data, md.tile_data)").
		Set("object_data = COALESCE(EXCLUDED.object_data, md.object_data)").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save map data for level %d: %w", d.LevelID, err)
	}
	return nil
}

func (r *Impl) DeleteMapDataFrom(ctx context.Context, db bun.IDB, mappackID int64, version int) error {
	db = r.resolveDB(db)
	lo, hi := npp.GlobalID(npp.Level, mappackID, 0), npp.GlobalID(npp.Level, mappackID+1, 0)
	_, err := db.NewDelete().
		Model((*MapData)(nil)).
		Where("level_id >= ? AND level_id < ?", lo, hi).
		Where("version >= ?", version).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete map data: %w", err)
	}
	return nil
}

// ListVersions returns the distinct data versions of every level in the
// highscoreable, ascending.
func (r *Impl) ListVersions(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) ([]int, error) {
	db = r.resolveDB(db)
	var versions []int
	err := db.NewSelect().
		Model((*MapData)(nil)).
		ColumnExpr("DISTINCT version").
		Where("level_id / ? = ?", kind.Size(), id).
		Order("version ASC").
		Scan(ctx, &versions)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions of %s %d: %w", kind, id, err)
	}
	return versions, nil
}

func (r *Impl) GetHashes(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) ([]Hash, error) {
	db = r.resolveDB(db)
	var hashes []Hash
	err := db.NewSelect().
		Model(&hashes).
		Where("kind = ?", kind).
		Where("highscoreable_id = ?", id).
		Order("version ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get hashes of %s %d: %w", kind, id, err)
	}
	return hashes, nil
}

func (r *Impl) ReplaceHashes(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, hashes []Hash) error {
	db = r.resolveDB(db)
	_, err := db.NewDelete().
		Model((*Hash)(nil)).
		Where("kind = ?", kind).
		Where("highscoreable_id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear hashes of %s %d: %w", kind, id, err)
	}
	if len(hashes) == 0 {
		return nil
	}
	if _, err := db.NewInsert().Model(&hashes).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert hashes of %s %d: %w", kind, id, err)
	}
	return nil
}
