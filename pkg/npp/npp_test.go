package npp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayIDPacking(t *testing.T) {
	for rank := 0; rank < PageSize; rank++ {
		for _, id := range []int64{0, 42, MinReplayID, 1<<ReplayRankShift - 1} {
			gotRank, gotID := UnpackReplayID(PackReplayID(rank, id))
			assert.Equal(t, rank, gotRank)
			assert.Equal(t, id, gotID)
		}
	}

	rank, id := UnpackReplayID(PackReplayID(3, 42))
	assert.Equal(t, 3, rank)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, int64(3<<24|42), PackReplayID(3, 42))
}

func TestComputeName(t *testing.T) {
	tests := []struct {
		name string
		id   int
		kind Kind
		want string
	}{
		{"first solo level", 600, Level, "S-A-00-00"},
		{"second solo episode first level", 605, Level, "S-B-00-00"},
		{"x row level", 1100, Level, "S-X-00-00"},
		{"last x row level", 1199, Level, "S-X-19-04"},
		{"first solo episode", 120, Episode, "S-A-00"},
		{"first solo story", 24, Story, "S-00"},
		{"secret level", 1801, Level, "?-B-00"},
		{"second coop file", 5100, Level, "C-A-10-00"},
		{"intro level", 7, Level, "SI-B-00-02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ComputeName(tt.id, tt.kind)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := ComputeName(500, Level)
	assert.False(t, ok, "ids between tabs have no name")
}

func TestKindResolution(t *testing.T) {
	k, ok := KindFromQT(4)
	require.True(t, ok)
	assert.Equal(t, Story, k)

	_, ok = KindFromQT(3)
	assert.False(t, ok)

	fields := map[string]bool{"episode_id": true}
	k, ok = KindFromFields(func(f string) bool { return fields[f] })
	require.True(t, ok)
	assert.Equal(t, Episode, k)
	assert.Equal(t, "episode_id", k.IDField())

	_, err := ParseKind("nope")
	assert.True(t, errors.Is(err, ErrFormat))
}

func TestSuccessorStopsAtTabEnd(t *testing.T) {
	next, ok := Successor(600)
	require.True(t, ok)
	assert.Equal(t, 601, next)

	_, ok = Successor(1199)
	assert.False(t, ok)
}

func TestTabForFile(t *testing.T) {
	tab, ok := TabForFile("CL2")
	require.True(t, ok)
	assert.Equal(t, "CL", tab.Key)
	assert.Equal(t, 9, tab.Enum())
	off, _ := tab.FileOffset("CL2")
	assert.Equal(t, 120, off)
}

func TestIDArithmetic(t *testing.T) {
	assert.Equal(t, int64(20000*3+605), GlobalID(Level, 3, 605))
	mp, inner := InnerID(Episode, GlobalID(Episode, 3, 121))
	assert.Equal(t, int64(3), mp)
	assert.Equal(t, 121, inner)
	assert.Equal(t, int64(121), Parent(Level, Episode, 605))
	assert.True(t, Speedrun.Better(10, 12))
	assert.True(t, Highscore.Better(12, 10))
	assert.False(t, ValidPlayerID(MaxPlayerID))
}
