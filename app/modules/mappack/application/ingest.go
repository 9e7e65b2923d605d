package mappackservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	mappackdomain "github.com/edelkas/inne-sub000/app/modules/mappack/domain"
	mappackdb "github.com/edelkas/inne-sub000/app/modules/mappack/infrastructure/repositories"
	"github.com/edelkas/inne-sub000/pkg/attr"
	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/edelkas/inne-sub000/pkg/results"
	"github.com/uptrace/bun"
)

// Progress receives ingestion progress, one step per map.
type Progress interface {
	Start(label string, total int)
	Increment()
	Finish()
}

type noopProgress struct{}

func (noopProgress) Start(string, int) {}
func (noopProgress) Increment()        {}
func (noopProgress) Finish()           {}

// SeedOptions select what Seed reads.
type SeedOptions struct {
	// Update re-reads mappacks that already exist.
	Update bool
	// All reads every version instead of only the newest.
	All bool
	// Hard recreates highscoreables instead of checking the new files match.
	Hard     bool
	Progress Progress
}

// VersionReport summarizes one read mappack version.
type VersionReport struct {
	Code        string
	Version     int
	FileErrors  int
	MapErrors   int
	NameChanges int
	TileChanges int
	ObjChanges  int
	Hashes      *HashReport
}

// SeedReport lists the versions Seed read.
type SeedReport struct {
	Versions []VersionReport
}

var packDir = regexp.MustCompile(`^(\d+)_([A-Za-z0-9]+)_(\d+)$`)

type packDirs struct {
	id       int64
	code     string
	versions []int
}

// Seed reads every mappack directory under the configured root.
func (s *MappackService) Seed(ctx context.Context, opts SeedOptions) (*SeedReport, error) {
	if opts.Progress == nil {
		opts.Progress = noopProgress{}
	}

	result, err := withTelemetry(s, ctx, "Seed", s.opts.Root, func(ctx context.Context) (results.OperationResult[*SeedReport, error], error) {
		report, err := s.seed(ctx, opts)
		if err != nil {
			return results.OperationResult[*SeedReport, error]{}, err
		}
		return results.SuccessResult[*SeedReport, error](report), nil
	})
	if err != nil {
		return nil, err
	}
	return *result.Success, nil
}

func (s *MappackService) seed(ctx context.Context, opts SeedOptions) (*SeedReport, error) {
	packs, err := scanRoot(s.opts.Root)
	if err != nil {
		return nil, err
	}

	report := &SeedReport{}
	for _, p := range packs {
		latest := slices.Max(p.versions)
		// A new mappack is always created from its first version.
		_, err := s.repo.GetMappackByID(ctx, nil, p.id)
		if err != nil && !errors.Is(err, mappackdb.ErrNotFound) {
			return report, err
		}
		fresh := err != nil
		for _, v := range p.versions {
			if !opts.All && v < latest && !(fresh && v == 1) {
				continue
			}
			vr, err := s.seedVersion(ctx, p, v, opts)
			if err != nil {
				return report, err
			}
			if vr != nil {
				report.Versions = append(report.Versions, *vr)
			}
		}
	}
	return report, nil
}

// seedVersion creates or updates one mappack version inside a transaction.
// It returns a nil report when the version is skipped.
func (s *MappackService) seedVersion(ctx context.Context, p packDirs, v int, opts SeedOptions) (*VersionReport, error) {
	tx := func(ctx context.Context, db bun.IDB) (results.OperationResult[*VersionReport, error], error) {
		fail := func(err error) (results.OperationResult[*VersionReport, error], error) {
			return results.OperationResult[*VersionReport, error]{}, err
		}

		pack, err := s.repo.GetMappackByID(ctx, db, p.id)
		hard := opts.Hard
		switch {
		case errors.Is(err, mappackdb.ErrNotFound):
			if v != 1 {
				return fail(npp.Errorf("mappack.Seed", npp.ErrState, "%s v1 should exist (trying to create v%d)", strings.ToUpper(p.code), v))
			}
			pack = &mappackdb.Mappack{ID: p.id, Code: strings.ToUpper(p.code), Version: 1, Enabled: true}
			hard = true
		case err != nil:
			return fail(err)
		default:
			if !opts.Update {
				return results.SuccessResult[*VersionReport, error](nil), nil
			}
			if !strings.EqualFold(pack.Code, p.code) {
				return fail(npp.Errorf("mappack.Seed", npp.ErrState, "mappack with ID %d already belongs to %s", p.id, pack.Code))
			}
			if v < pack.Version && !hard {
				return fail(npp.Errorf("mappack.Seed", npp.ErrState, "cannot soft update %s to v%d (already at v%d)", pack.Code, v, pack.Version))
			}
		}

		pack.Version = v
		if err := s.applyInfo(pack, s.versionDir(p.id, p.code, v)); err != nil {
			return fail(err)
		}
		if err := s.repo.UpsertMappack(ctx, db, pack); err != nil {
			return fail(err)
		}

		vr, err := s.readVersion(ctx, db, pack, v, hard, opts.Progress)
		if err != nil {
			return fail(err)
		}
		return results.SuccessResult[*VersionReport, error](vr), nil
	}

	result, err := runInTx(s, ctx, tx)
	if err != nil {
		return nil, err
	}
	return *result.Success, nil
}

func (s *MappackService) versionDir(id int64, code string, v int) string {
	return filepath.Join(s.opts.Root, fmt.Sprintf("%03d_%s_%d", id, code, v))
}

// readVersion parses the map files of a mappack version into the database.
func (s *MappackService) readVersion(ctx context.Context, db bun.IDB, pack *mappackdb.Mappack, v int, hard bool, progress Progress) (*VersionReport, error) {
	label := fmt.Sprintf("%s v%d", pack.Code, v)
	dir := s.versionDir(pack.ID, pack.Code, v)
	files, err := mapFiles(dir)
	if err != nil {
		return nil, npp.Errorf("mappack.Seed", npp.ErrNotFound, "directory for %s: %w", label, err)
	}
	if len(files) == 0 {
		s.logger.WarnContext(ctx, "No map files found", attr.Mappack(pack.Code), attr.Int("version", v))
	}

	existing, err := s.repo.ListHighscoreables(ctx, db, pack.ID, npp.Level)
	if err != nil {
		return nil, err
	}
	if hard {
		if err := s.repo.DeleteHighscoreables(ctx, db, pack.ID); err != nil {
			return nil, err
		}
	} else if !sameTabs(existing, files) {
		return nil, npp.Errorf("mappack.Seed", npp.ErrState, "tabs for %s do not coincide, cannot do soft update", label)
	}
	if err := s.repo.DeleteMapDataFrom(ctx, db, pack.ID, v); err != nil {
		return nil, err
	}

	vr := &VersionReport{Code: pack.Code, Version: v}
	for _, f := range files {
		name := strings.TrimSuffix(f, ".txt")
		tab, ok := npp.TabForFile(name)
		if !ok {
			s.logger.WarnContext(ctx, "Unrecognized map file", attr.Mappack(pack.Code), attr.String("file", f))
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			vr.FileErrors++
			if !hard {
				return nil, npp.Errorf("mappack.Seed", npp.ErrFormat, "parsing of %s %s failed: %w", label, f, err)
			}
			continue
		}
		parsed := mappackdomain.ParseMetanetFile(content, tab.FileCount(name))
		if s.metrics != nil {
			s.metrics.RecordMapsParsed(ctx, name, len(parsed.Maps)-parsed.Failed(), parsed.Failed())
		}
		for i, warns := range parsed.Warnings {
			for _, w := range warns {
				s.logger.WarnContext(ctx, "Map parsed with warnings", attr.Mappack(pack.Code), attr.String("file", f), attr.Int("map", i), attr.String("warning", w))
			}
		}

		if !hard && len(parsed.Maps) > countInTab(existing, tab) {
			return nil, npp.Errorf("mappack.Seed", npp.ErrState, "map count in %s %s exceeds the stored one, must do hard update", pack.Code, f)
		}

		progress.Start(label+" "+name, len(parsed.Maps))
		err = s.readFile(ctx, db, pack, v, hard, tab, name, parsed, existing, vr, progress)
		progress.Finish()
		if err != nil {
			return nil, err
		}

		if parsed.Failed() == 0 {
			s.logger.DebugContext(ctx, "Parsed map file without errors", attr.Mappack(pack.Code), attr.String("file", name))
		} else {
			s.logger.WarnContext(ctx, "Parsed map file with errors", attr.Mappack(pack.Code), attr.String("file", name), attr.Int("errors", parsed.Failed()))
		}
	}

	if err := s.repo.RollupGold(ctx, db, pack.ID); err != nil {
		return nil, err
	}
	if vr.Hashes, err = s.updateHashes(ctx, db, pack.ID); err != nil {
		return nil, err
	}

	if vr.FileErrors+vr.MapErrors == 0 {
		s.logger.InfoContext(ctx, "Successfully parsed mappack", attr.Mappack(pack.Code), attr.Int("version", v))
	} else {
		s.logger.WarnContext(ctx, "Parsed mappack with errors",
			attr.Mappack(pack.Code),
			attr.Int("version", v),
			attr.Int("file_errors", vr.FileErrors),
			attr.Int("map_errors", vr.MapErrors),
		)
	}
	if !hard {
		s.logger.InfoContext(ctx, "Soft update changes",
			attr.Mappack(pack.Code),
			attr.Int("names", vr.NameChanges),
			attr.Int("tiles", vr.TileChanges),
			attr.Int("objects", vr.ObjChanges),
		)
	}
	return vr, nil
}

func (s *MappackService) readFile(
	ctx context.Context,
	db bun.IDB,
	pack *mappackdb.Mappack,
	v int,
	hard bool,
	tab npp.Tab,
	file string,
	parsed mappackdomain.FileResult,
	existing []mappackdb.Highscoreable,
	vr *VersionReport,
	progress Progress,
) error {
	fileOffset, _ := tab.FileOffset(file)
	fileCount := tab.FileCount(file)
	byID := make(map[int64]*mappackdb.Highscoreable, len(existing))
	for i := range existing {
		byID[existing[i].ID] = &existing[i]
	}

	for offset, m := range parsed.Maps {
		progress.Increment()
		if m == nil {
			vr.MapErrors++
			if !hard {
				return npp.Errorf("mappack.Seed", npp.ErrFormat, "parsing of %s %s map %d failed", pack.Code, file, offset)
			}
			continue
		}

		innerID := tab.Start + fileOffset + offset
		levelID := npp.GlobalID(npp.Level, pack.ID, innerID)
		longname := strings.TrimSpace(m.Title)

		changed := hard
		if !hard {
			prev, ok := byID[levelID]
			if !ok {
				return npp.Errorf("mappack.Seed", npp.ErrState, "%s level with ID %d should exist", pack.Code, levelID)
			}
			if prev.Longname != longname {
				vr.NameChanges++
				changed = true
			}
		}
		if changed {
			episodeID := levelID / int64(npp.Episode.Size())
			level := &mappackdb.Highscoreable{
				Kind:      npp.Level,
				ID:        levelID,
				InnerID:   innerID,
				MappackID: pack.ID,
				Mode:      tab.Mode,
				Tab:       tab.Enum(),
				ParentID:  &episodeID,
				Name:      npp.Name(pack.Code, npp.Level, innerID),
				Longname:  longname,
				Gold:      m.Gold,
			}
			if err := s.repo.UpsertHighscoreable(ctx, db, level); err != nil {
				return err
			}
		}

		if err := s.saveMapData(ctx, db, levelID, v, hard, m, vr); err != nil {
			return err
		}

		if tab.Secret || levelID%5 != 0 {
			continue
		}
		inStory := tab.Mode == npp.Solo && (!tab.X || offset < 5*fileCount/6)
		if err := s.ensureParent(ctx, db, pack, tab, npp.Episode, levelID, innerID, inStory, hard); err != nil {
			return err
		}
		if !inStory || levelID%25 != 0 {
			continue
		}
		if err := s.ensureParent(ctx, db, pack, tab, npp.Story, levelID, innerID, false, hard); err != nil {
			return err
		}
	}
	return nil
}

// saveMapData stores the columns that differ from the previous version.
func (s *MappackService) saveMapData(ctx context.Context, db bun.IDB, levelID int64, v int, hard bool, m *mappackdomain.Map, vr *VersionReport) error {
	tiles, err := mappackdomain.EncodeTiles(m.Tiles)
	if err != nil {
		return err
	}
	objects, err := mappackdomain.EncodeObjects(m.Objects)
	if err != nil {
		return err
	}

	var prevTiles, prevObjects []byte
	if v > 1 {
		prevTiles, prevObjects, err = s.repo.GetMapData(ctx, db, levelID, v-1)
		if err != nil && !errors.Is(err, mappackdb.ErrNotFound) {
			return err
		}
	}

	data := &mappackdb.MapData{LevelID: levelID, Version: v}
	if hard || !bytes.Equal(prevTiles, tiles) {
		data.TileData = tiles
		if !hard {
			vr.TileChanges++
		}
	}
	if hard || !bytes.Equal(prevObjects, objects) {
		data.ObjectData = objects
		if !hard {
			vr.ObjChanges++
		}
	}
	if data.TileData == nil && data.ObjectData == nil {
		return nil
	}
	return s.repo.SaveMapData(ctx, db, data)
}

// ensureParent creates the episode or story starting at levelID on hard
// updates and requires it to exist on soft ones.
func (s *MappackService) ensureParent(
	ctx context.Context,
	db bun.IDB,
	pack *mappackdb.Mappack,
	tab npp.Tab,
	kind npp.Kind,
	levelID int64,
	innerID int,
	inStory bool,
	hard bool,
) error {
	size := kind.Size()
	id := levelID / int64(size)
	_, err := s.repo.GetHighscoreableByID(ctx, db, kind, id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, mappackdb.ErrNotFound) {
		return err
	}
	if !hard {
		return npp.Errorf("mappack.Seed", npp.ErrState, "%s %s with ID %d should exist, stopping soft update", pack.Code, kind, id)
	}

	h := &mappackdb.Highscoreable{
		Kind:      kind,
		ID:        id,
		InnerID:   innerID / size,
		MappackID: pack.ID,
		Mode:      tab.Mode,
		Tab:       tab.Enum(),
		Name:      npp.Name(pack.Code, kind, innerID/size),
	}
	if inStory {
		storyID := levelID / int64(npp.Story.Size())
		h.ParentID = &storyID
	}
	return s.repo.UpsertHighscoreable(ctx, db, h)
}

// scanRoot groups the mappack directories by code and checks them for ID
// conflicts and missing versions.
func scanRoot(root string) ([]packDirs, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, npp.Errorf("mappack.Seed", npp.ErrNotFound, "mappacks directory: %w", err)
	}

	byCode := map[string]*packDirs{}
	var codes []string
	for _, e := range entries {
		m := packDir.FindStringSubmatch(e.Name())
		if !e.IsDir() || m == nil {
			continue
		}
		id, _ := strconv.ParseInt(m[1], 10, 64)
		v, _ := strconv.Atoi(m[3])
		code := strings.ToLower(m[2])
		p, ok := byCode[code]
		if !ok {
			p = &packDirs{code: m[2]}
			byCode[code] = p
			codes = append(codes, code)
		}
		p.id = id
		p.versions = append(p.versions, v)
	}

	byID := map[int64][]string{}
	packs := make([]packDirs, 0, len(codes))
	for _, code := range codes {
		p := byCode[code]
		sort.Ints(p.versions)
		byID[p.id] = append(byID[p.id], strings.ToUpper(code))
		var missing []string
		for v := 1; v <= slices.Max(p.versions); v++ {
			if !slices.Contains(p.versions, v) {
				missing = append(missing, strconv.Itoa(v))
			}
		}
		if len(missing) > 0 {
			return nil, npp.Errorf("mappack.Seed", npp.ErrState, "%s missing versions %s", strings.ToUpper(code), strings.Join(missing, ", "))
		}
		packs = append(packs, *p)
	}
	for id, conflict := range byID {
		if len(conflict) > 1 {
			return nil, npp.Errorf("mappack.Seed", npp.ErrState, "mappack ID %d conflict: %s", id, strings.Join(conflict, ", "))
		}
	}
	return packs, nil
}

func mapFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && filepath.Ext(e.Name()) == ".txt" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func sameTabs(levels []mappackdb.Highscoreable, files []string) bool {
	var old, cur []int
	for _, l := range levels {
		old = append(old, l.Tab)
	}
	for _, f := range files {
		if t, ok := npp.TabForFile(strings.TrimSuffix(f, ".txt")); ok {
			cur = append(cur, t.Enum())
		}
	}
	slices.Sort(old)
	slices.Sort(cur)
	return slices.Equal(slices.Compact(old), slices.Compact(cur))
}

func countInTab(levels []mappackdb.Highscoreable, tab npp.Tab) int {
	n := 0
	for _, l := range levels {
		if l.Tab == tab.Enum() {
			n++
		}
	}
	return n
}
