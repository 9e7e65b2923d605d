package mappackdomain

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/edelkas/inne-sub000/pkg/npp"
)

// Tiles is the tile grid of a map, row major.
type Tiles [Rows][Columns]uint8

// Map is a parsed level.
type Map struct {
	Title   string
	Tiles   Tiles
	Objects []Object
	Gold    int
}

// minMapBytes is header + tiles + the shortest object table + footer.
const minMapBytes = 4 + Rows*Columns + 2*26 + 4

const tilesHexStart, tilesHexEnd = 8, 8 + 2*Rows*Columns

var metanetLine = regexp.MustCompile(`^\$(.*)#([0-9a-fA-F]+)#$`)

// ParseMetanetMap parses one line of a Metanet map file. Abnormalities that do
// not prevent parsing are returned as warnings.
func ParseMetanetMap(line string) (*Map, []string, error) {
	const op = "mappackdomain.ParseMetanetMap"

	m := metanetLine.FindStringSubmatch(line)
	if m == nil {
		return nil, nil, npp.Errorf(op, npp.ErrFormat, "incorrect overall format")
	}
	title, data := m[1], m[2]
	size := len(data)
	if size%2 == 1 || size/2 < minMapBytes {
		return nil, nil, npp.Errorf(op, npp.ErrFormat, "incorrect map data length %d", size)
	}

	var warnings []string
	if data[:8] != "00000000" {
		warnings = append(warnings, "non-zero header")
	}

	out := &Map{Title: title}
	invalid := 0
	for i, t := range nibbleSwapDecode(data[tilesHexStart:tilesHexEnd]) {
		if t > MaxTile {
			invalid++
		}
		out.Tiles[i/Columns][i%Columns] = t
	}
	if invalid > 0 {
		warnings = append(warnings, fmt.Sprintf("%d invalid tiles", invalid))
	}

	offset := tilesHexEnd
	for _, spec := range oldFormatOrder() {
		if size < offset+4 {
			return nil, nil, npp.Errorf(op, npp.ErrFormat, "object count for ID %d not found", spec.ID)
		}
		cb := nibbleSwapDecode(data[offset : offset+4])
		count := int(cb[0])<<8 | int(cb[1])
		if spec.ID == IDGold {
			out.Gold = count
		}

		recLen := 2 * spec.Atts
		end := offset + 4 + count*recLen
		if size < end {
			return nil, nil, npp.Errorf(op, npp.ErrFormat, "object data incomplete for ID %d", spec.ID)
		}
		for p := offset + 4; p < end; p += recLen {
			atts := nibbleSwapDecode(data[p : p+recLen])
			if !splitsIntoSwitch(spec.ID) {
				out.Objects = append(out.Objects, newObject(spec.ID, atts))
				continue
			}
			n := len(atts)
			out.Objects = append(out.Objects,
				newObject(spec.ID, atts[:n-2]),
				newObject(spec.ID+1, atts[n-2:]),
			)
		}
		offset = end
	}

	slices.SortStableFunc(out.Objects, func(a, b Object) int {
		return a.sortKey() - b.sortKey()
	})

	if size != offset+8 {
		warnings = append(warnings, "incorrect footer length")
	} else if data[offset:] != "00000000" {
		warnings = append(warnings, "incorrect footer format")
	}

	return out, warnings, nil
}

// FileResult holds the outcome of parsing a Metanet map file.
type FileResult struct {
	// Maps has one entry per line; lines that failed to parse are nil.
	Maps     []*Map
	Errors   []error
	Warnings map[int][]string
}

// Failed counts the lines that could not be parsed.
func (r FileResult) Failed() int { return len(r.Errors) }

// ParseMetanetFile parses up to limit maps from the contents of a map file.
// Bad lines do not stop the parse.
func ParseMetanetFile(content []byte, limit int) FileResult {
	lines := strings.Split(string(content), "\n")
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if limit > 0 && len(lines) > limit {
		lines = lines[:limit]
	}

	res := FileResult{Maps: make([]*Map, len(lines)), Warnings: map[int][]string{}}
	for i, line := range lines {
		m, warns, err := ParseMetanetMap(strings.TrimSpace(line))
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("map %d: %w", i, err))
			continue
		}
		if len(warns) > 0 {
			res.Warnings[i] = warns
		}
		res.Maps[i] = m
	}
	return res
}

func newObject(id int, atts []byte) Object {
	o := Object{uint8(id)}
	copy(o[1:], atts)
	return o
}

// nibbleSwapDecode decodes hex where each pair lists the low nibble first.
func nibbleSwapDecode(s string) []byte {
	out := make([]byte, len(s)/2)
	for i := range out {
		out[i] = hexVal(s[2*i]) | hexVal(s[2*i+1])<<4
	}
	return out
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

// EncodeTiles deflates the raw tile grid.
func EncodeTiles(t Tiles) ([]byte, error) {
	raw := make([]byte, 0, Rows*Columns)
	for _, row := range t {
		raw = append(raw, row[:]...)
	}
	return npp.Deflate(raw)
}

// DecodeTiles inflates a tile grid.
func DecodeTiles(data []byte) (Tiles, error) {
	var t Tiles
	raw, err := npp.Inflate(data)
	if err != nil {
		return t, npp.Errorf("mappackdomain.DecodeTiles", npp.ErrFormat, "%w", err)
	}
	if len(raw) != Rows*Columns {
		return t, npp.Errorf("mappackdomain.DecodeTiles", npp.ErrFormat, "tile data has %d bytes", len(raw))
	}
	for i, b := range raw {
		t[i/Columns][i%Columns] = b
	}
	return t, nil
}

// EncodeObjects deflates the object list in column-major order.
func EncodeObjects(objects []Object) ([]byte, error) {
	n := len(objects)
	raw := make([]byte, 5*n)
	for i, o := range objects {
		for f := 0; f < 5; f++ {
			raw[f*n+i] = o[f]
		}
	}
	return npp.Deflate(raw)
}

// DecodeObjects inflates and transposes back an object list.
func DecodeObjects(data []byte) ([]Object, error) {
	raw, err := npp.Inflate(data)
	if err != nil {
		return nil, npp.Errorf("mappackdomain.DecodeObjects", npp.ErrFormat, "%w", err)
	}
	if len(raw)%5 != 0 {
		return nil, npp.Errorf("mappackdomain.DecodeObjects", npp.ErrFormat, "object data has %d bytes", len(raw))
	}
	n := len(raw) / 5
	objects := make([]Object, n)
	for i := range objects {
		for f := 0; f < 5; f++ {
			objects[i][f] = raw[f*n+i]
		}
	}
	return objects, nil
}
