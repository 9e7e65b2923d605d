package mappackservice

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	mappackdomain "github.com/edelkas/inne-sub000/app/modules/mappack/domain"
	mappackdb "github.com/edelkas/inne-sub000/app/modules/mappack/infrastructure/repositories"
	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/edelkas/inne-sub000/pkg/observability/metrics"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace/noop"
)

const testPassword = "hunter2"

func newTestService(repo mappackdb.Repository, cache HashCache, root string) *MappackService {
	return NewMappackService(
		repo,
		slog.Default(),
		metrics.NewNoop(),
		noop.NewTracerProvider().Tracer("test"),
		nil,
		cache,
		Options{HashPassword: testPassword, Root: root},
	)
}

func swapHex(b []byte) string {
	const digits = "0123456789abcdef"
	var sb strings.Builder
	for _, c := range b {
		sb.WriteByte(digits[c&0xf])
		sb.WriteByte(digits[c>>4])
	}
	return sb.String()
}

// testMapLine builds a map line filled with one tile and gold pieces.
func testMapLine(title string, tile byte, gold int) string {
	var sb strings.Builder
	sb.WriteString("$" + title + "#00000000")
	sb.WriteString(swapHex(bytes.Repeat([]byte{tile}, mappackdomain.Rows*mappackdomain.Columns)))
	for _, spec := range mappackdomain.ObjectSpecs {
		if spec.Old < 0 {
			continue
		}
		n := 0
		if spec.ID == mappackdomain.IDGold {
			n = gold
		}
		sb.WriteString(swapHex([]byte{byte(n >> 8), byte(n)}))
		for i := range n {
			sb.WriteString(swapHex([]byte{byte(4 + 2*i), 10}))
		}
	}
	sb.WriteString("00000000#")
	return sb.String()
}

func writePack(t *testing.T, root, dir string, files map[string][]string) {
	t.Helper()
	path := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(path, 0o755))
	for name, lines := range files {
		content := []byte(strings.Join(lines, "\n") + "\n")
		require.NoError(t, os.WriteFile(filepath.Join(path, name), content, 0o644))
	}
}

func introLines(changed int) []string {
	lines := make([]string, 5)
	for i := range lines {
		tile := byte(0)
		if i == changed {
			tile = 1
		}
		lines[i] = testMapLine("Level "+string(rune('A'+i))+" ", tile, i)
	}
	return lines
}

func TestGetMappack(t *testing.T) {
	tests := []struct {
		name      string
		setupRepo func(*FakeMappackRepo)
		wantCode  string
		wantErr   error
	}{
		{
			name: "found case-insensitively",
			setupRepo: func(f *FakeMappackRepo) {
				f.packs[1] = &mappackdb.Mappack{ID: 1, Code: "CTP", Version: 3, Enabled: true}
			},
			wantCode: "CTP",
		},
		{
			name:      "not found",
			setupRepo: func(f *FakeMappackRepo) {},
			wantErr:   npp.ErrNotFound,
		},
		{
			name: "database error",
			setupRepo: func(f *FakeMappackRepo) {
				f.GetMappackByCodeFunc = func(ctx context.Context, db bun.IDB, code string) (*mappackdb.Mappack, error) {
					return nil, errors.New("connection refused")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewFakeMappackRepo()
			tt.setupRepo(repo)
			svc := newTestService(repo, nil, "")

			pack, err := svc.GetMappack(context.Background(), "ctp")
			if tt.wantCode == "" {
				require.Error(t, err)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.NotErrorIs(t, err, npp.ErrNotFound)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, pack.Code)
		})
	}
}

func TestVerifyReplay(t *testing.T) {
	mapHash := bytes.Repeat([]byte{7}, mappackdomain.HashSize)
	level := &mappackdomain.Highscoreable{Kind: npp.Level, ID: 20000}

	t.Run("no password skips verification", func(t *testing.T) {
		repo := NewFakeMappackRepo()
		svc := newTestService(repo, nil, "")
		svc.opts.HashPassword = ""

		ok, err := svc.VerifyReplay(context.Background(), level, 100, []byte("junk"))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, repo.Trace())
	})

	tests := []struct {
		name   string
		stored []mappackdb.Hash
		token  []byte
		want   bool
	}{
		{
			name:   "matching token",
			stored: []mappackdb.Hash{{Version: 1, SHA1: mapHash}},
			token:  mappackdomain.ScoreHash(mapHash, 100),
			want:   true,
		},
		{
			name:   "token for another score",
			stored: []mappackdb.Hash{{Version: 1, SHA1: mapHash}},
			token:  mappackdomain.ScoreHash(mapHash, 101),
			want:   false,
		},
		{
			name:   "older version matches",
			stored: []mappackdb.Hash{{Version: 1, SHA1: mapHash}, {Version: 2, SHA1: bytes.Repeat([]byte{8}, 20)}},
			token:  mappackdomain.ScoreHash(mapHash, 100),
			want:   true,
		},
		{
			name:   "uncomputable hash accepts anything",
			stored: []mappackdb.Hash{{Version: 1, SHA1: nil}},
			token:  []byte("junk"),
			want:   true,
		},
		{
			name:  "no stored hashes",
			token: []byte("junk"),
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewFakeMappackRepo()
			repo.GetHashesFunc = func(ctx context.Context, db bun.IDB, kind npp.Kind, id int64) ([]mappackdb.Hash, error) {
				return tt.stored, nil
			}
			cache := NewFakeHashCache()
			svc := newTestService(repo, cache, "")

			ok, err := svc.VerifyReplay(context.Background(), level, 100, tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)

			// The second lookup is served from the cache.
			_, err = svc.VerifyReplay(context.Background(), level, 100, tt.token)
			require.NoError(t, err)
			assert.Equal(t, []string{"GetHashes"}, repo.Trace())
		})
	}
}

func TestSeedCreatesMappack(t *testing.T) {
	root := t.TempDir()
	writePack(t, root, "001_tst_1", map[string][]string{"SI.txt": introLines(-1)})
	require.NoError(t, os.WriteFile(filepath.Join(root, "001_tst_1", InfoFile),
		[]byte("[mappack]\nname = Test Pack\nauthors = someone\nenabled = false\n"), 0o644))

	repo := NewFakeMappackRepo()
	cache := NewFakeHashCache()
	svc := newTestService(repo, cache, root)
	ctx := context.Background()

	report, err := svc.Seed(ctx, SeedOptions{})
	require.NoError(t, err)
	require.Len(t, report.Versions, 1)
	vr := report.Versions[0]
	assert.Equal(t, "TST", vr.Code)
	assert.Zero(t, vr.FileErrors+vr.MapErrors)
	assert.Equal(t, 5, vr.Hashes.Computed[npp.Level])
	assert.Equal(t, 1, vr.Hashes.Computed[npp.Episode])
	assert.Equal(t, 1, vr.Hashes.Missing[npp.Story], "a story needs 25 levels")
	assert.Equal(t, 1, cache.cleared)

	pack, err := svc.GetMappack(ctx, "tst")
	require.NoError(t, err)
	if diff := cmp.Diff(&mappackdomain.Pack{ID: 1, Code: "TST", Version: 1, Name: "Test Pack", Authors: "someone"}, pack); diff != "" {
		t.Errorf("pack mismatch (-want +got):\n%s", diff)
	}

	levels, err := svc.ListHighscoreables(ctx, 1, npp.Level)
	require.NoError(t, err)
	require.Len(t, levels, 5)
	assert.Equal(t, int64(20000), levels[0].ID)
	assert.Equal(t, "TST-SI-A-00-00", levels[0].Name)
	assert.Equal(t, "TST-SI-A-00-04", levels[4].Name)
	assert.Equal(t, "Level C", levels[2].Longname)
	assert.Equal(t, 2, levels[2].Gold)

	episode, err := svc.GetHighscoreable(ctx, npp.Episode, 4000)
	require.NoError(t, err)
	assert.Equal(t, "TST-SI-A-00", episode.Name)
	assert.Equal(t, 0+1+2+3+4, episode.Gold)
	require.NotNil(t, episode.ParentID)
	assert.Equal(t, int64(800), *episode.ParentID)

	story, err := svc.GetHighscoreable(ctx, npp.Story, 800)
	require.NoError(t, err)
	assert.Equal(t, "TST-SI-00", story.Name)
	assert.Equal(t, 10, story.Gold)

	// The stored hash verifies the token the game would send.
	l, err := svc.LoadLevel(ctx, 20003, 0)
	require.NoError(t, err)
	dump, ok := mappackdomain.DumpForHash(*l, nil)
	require.True(t, ok)
	token := mappackdomain.ScoreHash(mappackdomain.MapHash([]byte(testPassword), dump), 600)
	verified, err := svc.VerifyReplay(ctx, &levels[3], 600, token)
	require.NoError(t, err)
	assert.True(t, verified)

	dumps, err := svc.DumpLevels(ctx, episode)
	require.NoError(t, err)
	require.Len(t, dumps, 5)
	for i, d := range dumps {
		// Level i holds i gold pieces.
		assert.Len(t, d, mappackdomain.HeaderLen+mappackdomain.Rows*mappackdomain.Columns+2*mappackdomain.ObjectCount+5*i)
	}
}

func TestSeedSoftUpdate(t *testing.T) {
	root := t.TempDir()
	writePack(t, root, "001_tst_1", map[string][]string{"SI.txt": introLines(-1)})
	writePack(t, root, "001_tst_2", map[string][]string{"SI.txt": introLines(2)})

	repo := NewFakeMappackRepo()
	svc := newTestService(repo, nil, root)
	ctx := context.Background()

	_, err := svc.Seed(ctx, SeedOptions{})
	require.NoError(t, err)

	report, err := svc.Seed(ctx, SeedOptions{Update: true})
	require.NoError(t, err)
	require.Len(t, report.Versions, 1)
	vr := report.Versions[0]
	assert.Equal(t, 2, vr.Version)
	assert.Equal(t, 1, vr.TileChanges)
	assert.Zero(t, vr.ObjChanges)
	assert.Zero(t, vr.NameChanges)

	versions, err := repo.ListVersions(ctx, nil, npp.Level, 20002)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, versions)
	versions, err = repo.ListVersions(ctx, nil, npp.Level, 20001)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, versions)

	assert.Len(t, repo.hashes[hsKey{npp.Level, 20002}], 2)
	assert.Len(t, repo.hashes[hsKey{npp.Episode, 4000}], 2)

	old, err := svc.LoadLevel(ctx, 20002, 1)
	require.NoError(t, err)
	cur, err := svc.LoadLevel(ctx, 20002, 0)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), old.Tiles[0][0])
	assert.Equal(t, uint8(1), cur.Tiles[0][0])

	pack, err := svc.GetMappack(ctx, "TST")
	require.NoError(t, err)
	assert.Equal(t, 2, pack.Version)
	assert.True(t, pack.Enabled)
}

func TestSeedErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, root string)
		opts  SeedOptions
		// seedFirst seeds the first version before the case runs.
		seedFirst bool
	}{
		{
			name: "missing version",
			setup: func(t *testing.T, root string) {
				writePack(t, root, "001_tst_2", map[string][]string{"SI.txt": introLines(-1)})
			},
		},
		{
			name: "id conflict",
			setup: func(t *testing.T, root string) {
				writePack(t, root, "001_aaa_1", map[string][]string{"SI.txt": introLines(-1)})
				writePack(t, root, "001_bbb_1", map[string][]string{"SI.txt": introLines(-1)})
			},
		},
		{
			name: "soft update with different tabs",
			setup: func(t *testing.T, root string) {
				writePack(t, root, "001_tst_1", map[string][]string{"SI.txt": introLines(-1)})
				writePack(t, root, "001_tst_2", map[string][]string{"S.txt": introLines(-1)})
			},
			seedFirst: true,
			opts:      SeedOptions{Update: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			tt.setup(t, root)
			svc := newTestService(NewFakeMappackRepo(), nil, root)
			if tt.seedFirst {
				_, err := svc.seedVersion(context.Background(), packDirs{id: 1, code: "tst", versions: []int{1}}, 1, SeedOptions{Progress: noopProgress{}})
				require.NoError(t, err)
			}
			_, err := svc.Seed(context.Background(), tt.opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, npp.ErrState)
		})
	}
}

func TestDigest(t *testing.T) {
	repo := NewFakeMappackRepo()
	repo.packs[2] = &mappackdb.Mappack{ID: 2, Code: "CTP", Version: 3}
	repo.packs[1] = &mappackdb.Mappack{ID: 1, Code: "MET", Version: 1}
	svc := newTestService(repo, nil, "")

	path := filepath.Join(t.TempDir(), "digest")
	require.NoError(t, svc.WriteDigest(context.Background(), path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1 met 1\n2 ctp 3\n", string(content))

	entries, err := DecodeDigest(bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, []mappackdomain.DigestEntry{{ID: 1, Code: "met", Version: 1}, {ID: 2, Code: "ctp", Version: 3}}, entries)

	_, err = DecodeDigest(strings.NewReader("1 met\n"))
	assert.ErrorIs(t, err, npp.ErrFormat)
}
