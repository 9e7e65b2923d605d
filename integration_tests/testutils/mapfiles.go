package testutils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	mappackdomain "github.com/edelkas/inne-sub000/app/modules/mappack/domain"
)

// swapHex encodes bytes as the game does in map files, low nibble first.
func swapHex(b []byte) string {
	const digits = "0123456789abcdef"
	var sb strings.Builder
	for _, c := range b {
		sb.WriteByte(digits[c&0xf])
		sb.WriteByte(digits[c>>4])
	}
	return sb.String()
}

// MapLine builds a map file line filled with one tile and a number of gold
// pieces.
func MapLine(title string, tile byte, gold int) string {
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

// EpisodeLines returns the five maps of an episode. Level i holds i gold and
// the level at index changed uses a different tile.
func EpisodeLines(changed int) []string {
	lines := make([]string, 5)
	for i := range lines {
		tile := byte(0)
		if i == changed {
			tile = 1
		}
		lines[i] = MapLine("Level "+string(rune('A'+i))+" ", tile, i)
	}
	return lines
}

// WriteMappackDir creates a mappack version directory under root.
func WriteMappackDir(t *testing.T, root, dir string, files map[string][]string) {
	t.Helper()
	path := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(path, 0o755))
	for name, lines := range files {
		content := []byte(strings.Join(lines, "\n") + "\n")
		require.NoError(t, os.WriteFile(filepath.Join(path, name), content, 0o644))
	}
}
