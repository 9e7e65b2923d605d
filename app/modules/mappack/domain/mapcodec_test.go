package mappackdomain

import (
	"errors"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// swapHex encodes bytes low nibble first, the layout of Metanet map files.
func swapHex(b []byte) string {
	const digits = "0123456789abcdef"
	var sb strings.Builder
	for _, c := range b {
		sb.WriteByte(digits[c&0xf])
		sb.WriteByte(digits[c>>4])
	}
	return sb.String()
}

// mapLine builds a Metanet map line with the given tiles and old-format records.
func mapLine(title string, tiles []byte, records map[int][][]byte, footer string) string {
	var sb strings.Builder
	sb.WriteString("$" + title + "#00000000")
	if tiles == nil {
		tiles = make([]byte, Rows*Columns)
	}
	sb.WriteString(swapHex(tiles))
	for _, spec := range oldFormatOrder() {
		recs := records[spec.ID]
		sb.WriteString(swapHex([]byte{byte(len(recs) >> 8), byte(len(recs))}))
		for _, r := range recs {
			sb.WriteString(swapHex(r))
		}
	}
	sb.WriteString(footer + "#")
	return sb.String()
}

func TestParseMetanetMapMinimal(t *testing.T) {
	m, warnings, err := ParseMetanetMap(mapLine("test", nil, nil, "00000000"))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "test", m.Title)
	assert.Equal(t, Tiles{}, m.Tiles)
	assert.Empty(t, m.Objects)
	assert.Equal(t, 0, m.Gold)
}

func TestParseMetanetMapObjects(t *testing.T) {
	tiles := make([]byte, Rows*Columns)
	tiles[0], tiles[Columns+1] = 1, 34

	line := mapLine("doors", tiles, map[int][][]byte{
		0:            {{10, 11}},
		IDGold:       {{5, 7}, {6, 8}},
		IDDoorLocked: {{1, 2, 3, 4, 5}, {6, 7, 8, 9, 10}},
		IDExit:       {{20, 21, 22, 23}},
	}, "00000000")

	m, warnings, err := ParseMetanetMap(line)
	require.NoError(t, err)
	assert.Equal(t, []string{"1 invalid tiles"}, warnings)
	assert.Equal(t, uint8(1), m.Tiles[0][0])
	assert.Equal(t, uint8(34), m.Tiles[1][1])
	assert.Equal(t, 2, m.Gold)

	want := []Object{
		{0, 10, 11, 0, 0},
		{2, 5, 7, 0, 0},
		{2, 6, 8, 0, 0},
		{3, 20, 21, 0, 0},
		{4, 22, 23, 0, 0},
		{6, 1, 2, 3, 0},
		{7, 4, 5, 0, 0},
		{6, 6, 7, 8, 0},
		{7, 9, 10, 0, 0},
	}
	if diff := cmp.Diff(want, m.Objects); diff != "" {
		t.Errorf("objects mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMetanetMapErrors(t *testing.T) {
	valid := mapLine("x", nil, nil, "00000000")
	truncated := mapLine("x", nil, map[int][][]byte{28: {{1, 2}, {3, 4}, {5, 6}}}, "")
	truncated = truncated[:len(truncated)-5] + "#"
	tests := []struct {
		name string
		line string
	}{
		{"no delimiters", "test"},
		{"non hex data", "$x#zz#"},
		{"odd length", strings.TrimSuffix(valid, "0#") + "#"},
		{"too short", "$x#0000#"},
		{"truncated objects", truncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, err := ParseMetanetMap(tt.line)
			assert.Nil(t, m)
			assert.True(t, errors.Is(err, npp.ErrFormat), "got %v", err)
		})
	}
}

func TestParseMetanetMapFooterWarnings(t *testing.T) {
	_, warnings, err := ParseMetanetMap(mapLine("x", nil, nil, "0000000000"))
	require.NoError(t, err)
	assert.Equal(t, []string{"incorrect footer length"}, warnings)

	_, warnings, err = ParseMetanetMap(mapLine("x", nil, nil, "00000001"))
	require.NoError(t, err)
	assert.Equal(t, []string{"incorrect footer format"}, warnings)
}

func TestParseMetanetFile(t *testing.T) {
	content := strings.Join([]string{
		mapLine("one", nil, nil, "00000000"),
		"garbage",
		mapLine("three", nil, nil, "00000000"),
		mapLine("four", nil, nil, "00000000"),
	}, "\n") + "\n"

	res := ParseMetanetFile([]byte(content), 3)
	require.Len(t, res.Maps, 3)
	assert.Equal(t, "one", res.Maps[0].Title)
	assert.Nil(t, res.Maps[1])
	assert.Equal(t, "three", res.Maps[2].Title)
	assert.Equal(t, 1, res.Failed())
}

func TestTilesRoundTrip(t *testing.T) {
	f := gofakeit.New(7)
	var tiles Tiles
	for r := range tiles {
		for c := range tiles[r] {
			tiles[r][c] = uint8(f.IntRange(0, MaxTile))
		}
	}

	enc, err := EncodeTiles(tiles)
	require.NoError(t, err)
	dec, err := DecodeTiles(enc)
	require.NoError(t, err)
	assert.Equal(t, tiles, dec)
}

func TestObjectsRoundTrip(t *testing.T) {
	f := gofakeit.New(11)
	for _, n := range []int{0, 1, 7, 250} {
		objects := make([]Object, n)
		for i := range objects {
			for j := range objects[i] {
				objects[i][j] = uint8(f.IntRange(0, 255))
			}
		}

		enc, err := EncodeObjects(objects)
		require.NoError(t, err)
		dec, err := DecodeObjects(enc)
		require.NoError(t, err)
		assert.Len(t, dec, n)
		if n > 0 {
			assert.Equal(t, objects, dec)
		}
	}
}

func TestEncodeObjectsIsColumnar(t *testing.T) {
	enc, err := EncodeObjects([]Object{{1, 2, 3, 4, 5}, {6, 7, 8, 9, 10}})
	require.NoError(t, err)
	raw, err := npp.Inflate(enc)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 6, 2, 7, 3, 8, 4, 9, 5, 10}, raw)
}
