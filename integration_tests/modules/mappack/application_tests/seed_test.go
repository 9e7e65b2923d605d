package mappackintegrationtests

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mappackservice "github.com/edelkas/inne-sub000/app/modules/mappack/application"
	mappackdomain "github.com/edelkas/inne-sub000/app/modules/mappack/domain"
	"github.com/edelkas/inne-sub000/integration_tests/testutils"
	"github.com/edelkas/inne-sub000/pkg/npp"
)

func TestSeed(t *testing.T) {
	deps := SetupTestMappackService(t)
	ctx := deps.Ctx
	testutils.WriteMappackDir(t, deps.Root, "001_tst_1", map[string][]string{"SI.txt": testutils.EpisodeLines(-1)})
	require.NoError(t, os.WriteFile(filepath.Join(deps.Root, "001_tst_1", mappackservice.InfoFile),
		[]byte("[mappack]\nname = Test Pack\nauthors = someone\n"), 0o644))

	report, err := deps.Service.Seed(ctx, mappackservice.SeedOptions{})
	require.NoError(t, err)
	require.Len(t, report.Versions, 1)
	vr := report.Versions[0]
	assert.Equal(t, "TST", vr.Code)
	assert.Zero(t, vr.FileErrors+vr.MapErrors)
	assert.Equal(t, 5, vr.Hashes.Computed[npp.Level])
	assert.Equal(t, 1, vr.Hashes.Computed[npp.Episode])

	pack, err := deps.Service.GetMappack(ctx, "tst")
	require.NoError(t, err)
	if diff := cmp.Diff(&mappackdomain.Pack{ID: 1, Code: "TST", Version: 1, Name: "Test Pack", Authors: "someone", Enabled: true}, pack); diff != "" {
		t.Errorf("pack mismatch (-want +got):\n%s", diff)
	}

	episode, err := deps.Service.GetHighscoreable(ctx, npp.Episode, npp.GlobalID(npp.Episode, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 0+1+2+3+4, episode.Gold, "episode gold is rolled up from its levels")

	hashes, err := deps.Repo.GetHashes(ctx, nil, npp.Level, 20003)
	require.NoError(t, err)
	require.Len(t, hashes, 1)

	levels, err := deps.Service.ListHighscoreables(ctx, 1, npp.Level)
	require.NoError(t, err)
	require.Len(t, levels, 5)
	l, err := deps.Service.LoadLevel(ctx, 20003, 0)
	require.NoError(t, err)
	dump, ok := mappackdomain.DumpForHash(*l, nil)
	require.True(t, ok)
	token := mappackdomain.ScoreHash(mappackdomain.MapHash([]byte(testPassword), dump), 600)

	verified, err := deps.Service.VerifyReplay(ctx, &levels[3], 600, token)
	require.NoError(t, err)
	assert.True(t, verified)
	verified, err = deps.Service.VerifyReplay(ctx, &levels[3], 601, token)
	require.NoError(t, err)
	assert.False(t, verified)
}

func TestSeedUpdateKeepsOldVersions(t *testing.T) {
	deps := SetupTestMappackService(t)
	ctx := deps.Ctx
	testutils.WriteMappackDir(t, deps.Root, "001_tst_1", map[string][]string{"SI.txt": testutils.EpisodeLines(-1)})
	testutils.WriteMappackDir(t, deps.Root, "001_tst_2", map[string][]string{"SI.txt": testutils.EpisodeLines(2)})

	_, err := deps.Service.Seed(ctx, mappackservice.SeedOptions{})
	require.NoError(t, err)

	report, err := deps.Service.Seed(ctx, mappackservice.SeedOptions{Update: true})
	require.NoError(t, err)
	require.Len(t, report.Versions, 1)
	assert.Equal(t, 1, report.Versions[0].TileChanges)

	versions, err := deps.Repo.ListVersions(ctx, nil, npp.Level, 20002)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, versions)

	old, err := deps.Service.LoadLevel(ctx, 20002, 1)
	require.NoError(t, err)
	cur, err := deps.Service.LoadLevel(ctx, 20002, 0)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), old.Tiles[0][0])
	assert.Equal(t, uint8(1), cur.Tiles[0][0])

	// Unchanged levels resolve every version to the first one's data.
	tiles1, objects1, err := deps.Repo.GetMapData(ctx, nil, 20001, 1)
	require.NoError(t, err)
	tiles2, objects2, err := deps.Repo.GetMapData(ctx, nil, 20001, 2)
	require.NoError(t, err)
	assert.Equal(t, tiles1, tiles2)
	assert.Equal(t, objects1, objects2)

	hashes, err := deps.Repo.GetHashes(ctx, nil, npp.Level, 20002)
	require.NoError(t, err)
	assert.Len(t, hashes, 2)

	var buf bytes.Buffer
	entries, err := deps.Service.Digest(ctx)
	require.NoError(t, err)
	require.NoError(t, mappackservice.EncodeDigest(&buf, entries))
	assert.Equal(t, "1 tst 2\n", buf.String())
}
