package mappackdomain

import (
	"bytes"
	"encoding/binary"
	"slices"

	"github.com/edelkas/inne-sub000/pkg/npp"
)

// DumpOptions fills the userlevel header. Zero values produce the header the
// server sends for mappack levels.
type DumpOptions struct {
	// Query dumps omit the magic and filesize prefix.
	Query    bool
	Magic    int32
	Title    string
	Author   string
	Mode     npp.Mode
	AuthorID *int32
	LevelID  *int32
	QT       *int32
	Favs     int32
}

// Level is the map data of one stored level version.
type Level struct {
	InnerID int
	Mode    npp.Mode
	Title   string
	Tiles   Tiles
	Objects []Object
}

// DumpLevel serializes a map in the userlevel binary format. When counts is
// nil they are computed from objects with the door switch counts zeroed, as
// the game does.
func DumpLevel(tiles Tiles, objects []Object, counts *[ObjectCount]uint16, opts DumpOptions) []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian

	if !opts.Query {
		size := HeaderLen + Rows*Columns + 2*ObjectCount + 5*len(objects)
		_ = binary.Write(&buf, le, [2]int32{opts.Magic, int32(size)})
	}

	_ = binary.Write(&buf, le, [5]int32{
		valueOr(opts.LevelID, -1),
		int32(opts.Mode),
		valueOr(opts.QT, QTUnset),
		valueOr(opts.AuthorID, -1),
		opts.Favs,
	})
	buf.Write(make([]byte, 10))
	buf.Write(fixedASCII(opts.Title, 128))
	buf.Write(fixedASCII(opts.Author, 16))
	buf.Write([]byte{0, 0})

	for _, row := range tiles {
		buf.Write(row[:])
	}

	if counts == nil {
		c := ObjectCounts(objects)
		c[IDDoorLockedSwitch] = 0
		c[IDDoorTrapSwitch] = 0
		counts = &c
	}
	_ = binary.Write(&buf, le, counts[:])

	for _, o := range objects {
		buf.Write(o[:])
	}
	return buf.Bytes()
}

// ObjectSource returns the latest objects of a level of the same mappack.
type ObjectSource func(innerID int) ([]Object, bool)

// CompleteObjects appends n objects borrowed from the levels following
// innerID in its tab. The game overruns its object buffer when hashing, so
// hashes only match when this is reproduced. Running off the end of the tab
// means the hash cannot be computed.
func CompleteObjects(innerID int, objects []Object, n int, next ObjectSource) ([]Object, bool) {
	out := slices.Clone(objects)
	for n > 0 {
		succ, ok := npp.Successor(innerID)
		if !ok {
			return nil, false
		}
		borrowed, ok := next(succ)
		if !ok {
			return nil, false
		}
		take := min(n, len(borrowed))
		out = append(out, borrowed[:take]...)
		n -= take
		innerID = succ
	}
	return out, true
}

// DumpForHash dumps a level the way the game does before hashing it. The
// second return is false when object completion runs out of levels.
func DumpForHash(l Level, next ObjectSource) ([]byte, bool) {
	counts := ObjectCounts(l.Objects)
	doors := int(counts[IDDoorLocked]) + int(counts[IDDoorTrap])
	objects, ok := CompleteObjects(l.InnerID, l.Objects, doors, next)
	if !ok {
		return nil, false
	}
	return DumpLevel(l.Tiles, objects, &counts, DumpOptions{Mode: l.Mode, Title: l.Title}), true
}

// fixedASCII keeps printable ASCII, replaces other runes with '_' and pads
// with NULs to n bytes.
func fixedASCII(s string, n int) []byte {
	out := make([]byte, 0, n)
	for _, r := range s {
		if len(out) == n {
			break
		}
		switch {
		case r > 126:
			out = append(out, '_')
		case r >= 32:
			out = append(out, byte(r))
		}
	}
	return append(out, make([]byte, n-len(out))...)
}

func valueOr(p *int32, def int32) int32 {
	if p == nil {
		return def
	}
	return *p
}
