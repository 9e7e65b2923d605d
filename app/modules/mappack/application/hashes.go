package mappackservice

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	mappackdomain "github.com/edelkas/inne-sub000/app/modules/mappack/domain"
	mappackdb "github.com/edelkas/inne-sub000/app/modules/mappack/infrastructure/repositories"
	"github.com/edelkas/inne-sub000/pkg/attr"
	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/edelkas/inne-sub000/pkg/results"
	"github.com/uptrace/bun"
)

// HashReport counts the hashes stored per kind by UpdateHashes. Missing
// hashes could not be computed, usually because object completion ran off
// the end of a tab.
type HashReport struct {
	Computed map[npp.Kind]int
	Missing  map[npp.Kind]int
}

func newHashReport() *HashReport {
	return &HashReport{Computed: map[npp.Kind]int{}, Missing: map[npp.Kind]int{}}
}

func (r *HashReport) add(kind npp.Kind, set mappackdomain.HashSet) {
	for _, h := range set {
		if h.Hash == nil {
			r.Missing[kind]++
		} else {
			r.Computed[kind]++
		}
	}
}

// VerifyReplay checks a token against every stored hash of the highscoreable.
func (s *MappackService) VerifyReplay(ctx context.Context, h *mappackdomain.Highscoreable, frames int, token []byte) (bool, error) {
	if s.opts.HashPassword == "" {
		return true, nil
	}
	set, err := s.hashSet(ctx, h.Kind, h.ID)
	if err != nil {
		return false, err
	}
	return set.Verify(token, frames), nil
}

func (s *MappackService) hashSet(ctx context.Context, kind npp.Kind, id int64) (mappackdomain.HashSet, error) {
	if s.cache != nil {
		set, ok := s.cache.Get(kind, id)
		if s.metrics != nil {
			s.metrics.RecordCacheLookup(ctx, ok)
		}
		if ok {
			return set, nil
		}
	}

	stored, err := s.repo.GetHashes(ctx, nil, kind, id)
	if err != nil {
		return nil, fmt.Errorf("mappack.VerifyReplay: %w", err)
	}
	set := toHashSet(stored)
	if s.cache != nil {
		s.cache.Set(kind, id, set)
	}
	return set, nil
}

// UpdateHashes recomputes the hashes of every version of every highscoreable
// in a mappack.
func (s *MappackService) UpdateHashes(ctx context.Context, mappackID int64) (*HashReport, error) {
	tx := func(ctx context.Context, db bun.IDB) (results.OperationResult[*HashReport, error], error) {
		report, err := s.updateHashes(ctx, db, mappackID)
		if err != nil {
			return results.OperationResult[*HashReport, error]{}, err
		}
		return results.SuccessResult[*HashReport, error](report), nil
	}

	result, err := withTelemetry(s, ctx, "UpdateHashes", strconv.FormatInt(mappackID, 10), func(ctx context.Context) (results.OperationResult[*HashReport, error], error) {
		return runInTx(s, ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return *result.Success, nil
}

func (s *MappackService) updateHashes(ctx context.Context, db bun.IDB, mappackID int64) (*HashReport, error) {
	report := newHashReport()
	if s.opts.HashPassword == "" {
		s.logger.WarnContext(ctx, "No hash password configured, skipping hash update",
			attr.ExtractCorrelationID(ctx),
			attr.Int64("mappack_id", mappackID),
		)
		return report, nil
	}

	levels, err := s.repo.ListHighscoreables(ctx, db, mappackID, npp.Level)
	if err != nil {
		return nil, err
	}
	objects := s.objectSource(ctx, db, mappackID)
	levelSets := make(map[int64]mappackdomain.HashSet, len(levels))
	for i := range levels {
		set, err := s.levelHashes(ctx, db, &levels[i], objects)
		if err != nil {
			return nil, err
		}
		if err := s.storeHashes(ctx, db, npp.Level, levels[i].ID, set); err != nil {
			return nil, err
		}
		levelSets[levels[i].ID] = set
		report.add(npp.Level, set)
	}

	for _, kind := range []npp.Kind{npp.Episode, npp.Story} {
		fold := mappackdomain.EpisodeHash
		if kind == npp.Story {
			fold = mappackdomain.StoryHash
		}
		hs, err := s.repo.ListHighscoreables(ctx, db, mappackID, kind)
		if err != nil {
			return nil, err
		}
		for i := range hs {
			set, err := s.aggregateHashes(ctx, db, &hs[i], levelSets, fold)
			if err != nil {
				return nil, err
			}
			if err := s.storeHashes(ctx, db, kind, hs[i].ID, set); err != nil {
				return nil, err
			}
			report.add(kind, set)
		}
	}

	for _, kind := range npp.Kinds {
		if s.metrics != nil {
			s.metrics.RecordHashesComputed(ctx, kind.String(), report.Computed[kind], report.Missing[kind])
		}
	}
	if s.cache != nil {
		s.cache.Clear()
	}
	return report, nil
}

// objectSource resolves the latest objects of a sibling level, for object
// completion.
func (s *MappackService) objectSource(ctx context.Context, db bun.IDB, mappackID int64) mappackdomain.ObjectSource {
	memo := map[int][]mappackdomain.Object{}
	return func(innerID int) ([]mappackdomain.Object, bool) {
		if objs, ok := memo[innerID]; ok {
			return objs, objs != nil
		}
		_, data, err := s.repo.GetMapData(ctx, db, npp.GlobalID(npp.Level, mappackID, innerID), 0)
		var objs []mappackdomain.Object
		if err == nil {
			objs, err = mappackdomain.DecodeObjects(data)
		}
		if err != nil {
			if !errors.Is(err, mappackdb.ErrNotFound) {
				s.logger.WarnContext(ctx, "Failed to load successor objects",
					attr.Int("inner_id", innerID),
					attr.Error(err),
				)
			}
			memo[innerID] = nil
			return nil, false
		}
		if objs == nil {
			objs = []mappackdomain.Object{}
		}
		memo[innerID] = objs
		return objs, true
	}
}

func (s *MappackService) levelHashes(ctx context.Context, db bun.IDB, h *mappackdb.Highscoreable, objects mappackdomain.ObjectSource) (mappackdomain.HashSet, error) {
	versions, err := s.repo.ListVersions(ctx, db, npp.Level, h.ID)
	if err != nil {
		return nil, err
	}
	hashes := make([]mappackdomain.VersionedHash, 0, len(versions))
	for _, v := range versions {
		level, err := s.loadLevel(ctx, db, h, v)
		if err != nil {
			return nil, err
		}
		var sum []byte
		if dump, ok := mappackdomain.DumpForHash(*level, objects); ok {
			sum = mappackdomain.MapHash([]byte(s.opts.HashPassword), dump)
		}
		hashes = append(hashes, mappackdomain.VersionedHash{Version: v, Hash: sum})
	}
	return mappackdomain.NewHashSet(hashes), nil
}

// aggregateHashes combines the already computed level hashes of an episode or
// story for each of its versions.
func (s *MappackService) aggregateHashes(
	ctx context.Context,
	db bun.IDB,
	h *mappackdb.Highscoreable,
	levelSets map[int64]mappackdomain.HashSet,
	fold func([][]byte) []byte,
) (mappackdomain.HashSet, error) {
	versions, err := s.repo.ListVersions(ctx, db, h.Kind, h.ID)
	if err != nil {
		return nil, err
	}
	levels := toHighscoreable(h).Levels()
	hashes := make([]mappackdomain.VersionedHash, 0, len(versions))
	for _, v := range versions {
		parts := make([][]byte, len(levels))
		for i, id := range levels {
			parts[i], _ = levelSets[id].Saved(v)
		}
		hashes = append(hashes, mappackdomain.VersionedHash{Version: v, Hash: fold(parts)})
	}
	return mappackdomain.NewHashSet(hashes), nil
}

func (s *MappackService) storeHashes(ctx context.Context, db bun.IDB, kind npp.Kind, id int64, set mappackdomain.HashSet) error {
	rows := make([]mappackdb.Hash, 0, len(set))
	for _, h := range set {
		rows = append(rows, mappackdb.Hash{
			Kind:            kind,
			HighscoreableID: id,
			Version:         h.Version,
			SHA1:            h.Hash,
		})
	}
	return s.repo.ReplaceHashes(ctx, db, kind, id, rows)
}

func toHashSet(rows []mappackdb.Hash) mappackdomain.HashSet {
	hashes := make([]mappackdomain.VersionedHash, 0, len(rows))
	for _, r := range rows {
		hashes = append(hashes, mappackdomain.VersionedHash{Version: r.Version, Hash: r.SHA1})
	}
	return mappackdomain.NewHashSet(hashes)
}
