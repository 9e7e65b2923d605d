package mappackservice

import (
	"context"
	"slices"
	"strings"

	mappackdomain "github.com/edelkas/inne-sub000/app/modules/mappack/domain"
	mappackdb "github.com/edelkas/inne-sub000/app/modules/mappack/infrastructure/repositories"
	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/uptrace/bun"
)

// ------------------------
// Fake Mappack Repo
// ------------------------

type hsKey struct {
	kind npp.Kind
	id   int64
}

type dataKey struct {
	level   int64
	version int
}

// FakeMappackRepo keeps everything in memory unless a XxxFunc override is set.
type FakeMappackRepo struct {
	trace []string

	packs  map[int64]*mappackdb.Mappack
	hs     map[hsKey]*mappackdb.Highscoreable
	data   map[dataKey]*mappackdb.MapData
	hashes map[hsKey][]mappackdb.Hash

	GetMappackByCodeFunc func(ctx context.Context, db bun.IDB, code string) (*mappackdb.Mappack, error)
	GetHashesFunc        func(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) ([]mappackdb.Hash, error)
	GetMapDataFunc       func(ctx context.Context, db bun.IDB, levelID int64, version int) ([]byte, []byte, error)
}

func NewFakeMappackRepo() *FakeMappackRepo {
	return &FakeMappackRepo{
		trace:  []string{},
		packs:  map[int64]*mappackdb.Mappack{},
		hs:     map[hsKey]*mappackdb.Highscoreable{},
		data:   map[dataKey]*mappackdb.MapData{},
		hashes: map[hsKey][]mappackdb.Hash{},
	}
}

func (f *FakeMappackRepo) record(step string) {
	f.trace = append(f.trace, step)
}

// --- Repository Interface Implementation ---

func (f *FakeMappackRepo) GetMappackByCode(ctx context.Context, db bun.IDB, code string) (*mappackdb.Mappack, error) {
	f.record("GetMappackByCode")
	if f.GetMappackByCodeFunc != nil {
		return f.GetMappackByCodeFunc(ctx, db, code)
	}
	for _, p := range f.packs {
		if strings.EqualFold(p.Code, code) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, mappackdb.ErrNotFound
}

func (f *FakeMappackRepo) GetMappackByID(ctx context.Context, db bun.IDB, id int64) (*mappackdb.Mappack, error) {
	f.record("GetMappackByID")
	p, ok := f.packs[id]
	if !ok {
		return nil, mappackdb.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *FakeMappackRepo) ListMappacks(ctx context.Context, db bun.IDB) ([]mappackdb.Mappack, error) {
	f.record("ListMappacks")
	var out []mappackdb.Mappack
	for _, p := range f.packs {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b mappackdb.Mappack) int { return int(a.ID - b.ID) })
	return out, nil
}

func (f *FakeMappackRepo) UpsertMappack(ctx context.Context, db bun.IDB, m *mappackdb.Mappack) error {
	f.record("UpsertMappack")
	cp := *m
	f.packs[m.ID] = &cp
	return nil
}

func (f *FakeMappackRepo) GetHighscoreable(ctx context.Context, db bun.IDB, mappackID int64, kind npp.Kind, innerID int) (*mappackdb.Highscoreable, error) {
	f.record("GetHighscoreable")
	return f.GetHighscoreableByID(ctx, db, kind, npp.GlobalID(kind, mappackID, innerID))
}

func (f *FakeMappackRepo) GetHighscoreableByID(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) (*mappackdb.Highscoreable, error) {
	f.record("GetHighscoreableByID")
	h, ok := f.hs[hsKey{kind, id}]
	if !ok {
		return nil, mappackdb.ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (f *FakeMappackRepo) ListHighscoreables(ctx context.Context, db bun.IDB, mappackID int64, kind npp.Kind) ([]mappackdb.Highscoreable, error) {
	f.record("ListHighscoreables")
	var out []mappackdb.Highscoreable
	for k, h := range f.hs {
		if k.kind == kind && h.MappackID == mappackID {
			out = append(out, *h)
		}
	}
	slices.SortFunc(out, func(a, b mappackdb.Highscoreable) int { return int(a.ID - b.ID) })
	return out, nil
}

func (f *FakeMappackRepo) UpsertHighscoreable(ctx context.Context, db bun.IDB, h *mappackdb.Highscoreable) error {
	f.record("UpsertHighscoreable")
	cp := *h
	if prev, ok := f.hs[hsKey{h.Kind, h.ID}]; ok {
		cp.Completions = prev.Completions
	}
	f.hs[hsKey{h.Kind, h.ID}] = &cp
	return nil
}

func (f *FakeMappackRepo) DeleteHighscoreables(ctx context.Context, db bun.IDB, mappackID int64) error {
	f.record("DeleteHighscoreables")
	for k, h := range f.hs {
		if h.MappackID == mappackID {
			delete(f.hs, k)
		}
	}
	return nil
}

func (f *FakeMappackRepo) RollupGold(ctx context.Context, db bun.IDB, mappackID int64) error {
	f.record("RollupGold")
	for _, parent := range []npp.Kind{npp.Episode, npp.Story} {
		for k, p := range f.hs {
			if k.kind != parent || p.MappackID != mappackID {
				continue
			}
			total := 0
			for ck, c := range f.hs {
				if ck.kind == parent-1 && c.ParentID != nil && *c.ParentID == p.ID {
					total += c.Gold
				}
			}
			p.Gold = total
		}
	}
	return nil
}

func (f *FakeMappackRepo) GetMapData(ctx context.Context, db bun.IDB, levelID int64, version int) ([]byte, []byte, error) {
	f.record("GetMapData")
	if f.GetMapDataFunc != nil {
		return f.GetMapDataFunc(ctx, db, levelID, version)
	}
	var tiles, objects []byte
	tv, ov := 0, 0
	for k, d := range f.data {
		if k.level != levelID || (version > 0 && k.version > version) {
			continue
		}
		if d.TileData != nil && k.version > tv {
			tiles, tv = d.TileData, k.version
		}
		if d.ObjectData != nil && k.version > ov {
			objects, ov = d.ObjectData, k.version
		}
	}
	if tiles == nil || objects == nil {
		return nil, nil, mappackdb.ErrNotFound
	}
	return tiles, objects, nil
}

func (f *FakeMappackRepo) SaveMapData(ctx context.Context, db bun.IDB, d *mappackdb.MapData) error {
	f.record("SaveMapData")
	k := dataKey{d.LevelID, d.Version}
	cp := *d
	if prev, ok := f.data[k]; ok {
		if cp.TileData == nil {
			cp.TileData = prev.TileData
		}
		if cp.ObjectData == nil {
			cp.ObjectData = prev.ObjectData
		}
	}
	f.data[k] = &cp
	return nil
}

func (f *FakeMappackRepo) DeleteMapDataFrom(ctx context.Context, db bun.IDB, mappackID int64, version int) error {
	f.record("DeleteMapDataFrom")
	for k := range f.data {
		if mp, _ := npp.InnerID(npp.Level, k.level); mp == mappackID && k.version >= version {
			delete(f.data, k)
		}
	}
	return nil
}

func (f *FakeMappackRepo) ListVersions(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) ([]int, error) {
	f.record("ListVersions")
	var versions []int
	for k := range f.data {
		if k.level/int64(kind.Size()) == id && !slices.Contains(versions, k.version) {
			versions = append(versions, k.version)
		}
	}
	slices.Sort(versions)
	return versions, nil
}

func (f *FakeMappackRepo) GetHashes(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) ([]mappackdb.Hash, error) {
	f.record("GetHashes")
	if f.GetHashesFunc != nil {
		return f.GetHashesFunc(ctx, db, kind, id)
	}
	return slices.Clone(f.hashes[hsKey{kind, id}]), nil
}

func (f *FakeMappackRepo) ReplaceHashes(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, hashes []mappackdb.Hash) error {
	f.record("ReplaceHashes")
	f.hashes[hsKey{kind, id}] = slices.Clone(hashes)
	return nil
}

// --- Accessors for assertions ---

func (f *FakeMappackRepo) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

// Ensure the fake actually satisfies the interface
var _ mappackdb.Repository = (*FakeMappackRepo)(nil)

// ------------------------
// Fake Hash Cache
// ------------------------

type FakeHashCache struct {
	sets    map[hsKey]mappackdomain.HashSet
	cleared int
}

func NewFakeHashCache() *FakeHashCache {
	return &FakeHashCache{sets: map[hsKey]mappackdomain.HashSet{}}
}

func (c *FakeHashCache) Get(kind npp.Kind, id int64) (mappackdomain.HashSet, bool) {
	set, ok := c.sets[hsKey{kind, id}]
	return set, ok
}

func (c *FakeHashCache) Set(kind npp.Kind, id int64, set mappackdomain.HashSet) {
	c.sets[hsKey{kind, id}] = set
}

func (c *FakeHashCache) Clear() {
	c.sets = map[hsKey]mappackdomain.HashSet{}
	c.cleared++
}

var _ HashCache = (*FakeHashCache)(nil)
