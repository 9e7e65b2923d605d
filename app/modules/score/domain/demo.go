// Package scoredomain holds the pure parts of score submission: the demo
// codec, the episode tweak and the leaderboard-specific requirements.
package scoredomain

import (
	"bytes"
	"encoding/binary"
	"math/bits"

	"github.com/edelkas/inne-sub000/pkg/npp"
)

const (
	// HeaderSize is the length of a level demo header.
	HeaderSize = 26
	// EpisodeMagic opens the framing of an episode replay.
	EpisodeMagic uint32 = 0xffc0038e
	// StoryMagic opens the framing of a story replay.
	StoryMagic uint32 = 0xff3800ce
	// demoSeparator joins level demos in stored form. Input bytes never reach it.
	demoSeparator = '&'
)

// Header types of a level demo.
const (
	HeaderLevel   uint8 = 0
	HeaderEpisode uint8 = 1
)

// DemoHeader is the fixed-size prefix of a single level demo.
type DemoHeader struct {
	// Type is 1 when the level was played as part of an episode.
	Type       uint8
	Size       int32
	Version    int32
	Framecount int32
	// LevelID is the inner ID of the level that was played.
	LevelID  int32
	Mode     int32
	Reserved int32
	// Mask has one bit per ninja whose inputs follow the header.
	Mask uint8
}

// Ninjas is the number of ninjas recorded in the demo.
func (h DemoHeader) Ninjas() int { return bits.OnesCount8(h.Mask) }

// InputsStart is the offset of the first input byte from the header start.
func (h DemoHeader) InputsStart() int { return HeaderSize + 4*h.Ninjas() }

// ParseDemoHeader decodes the first HeaderSize bytes of b.
func ParseDemoHeader(b []byte) (DemoHeader, error) {
	if len(b) < HeaderSize {
		return DemoHeader{}, npp.Errorf("score.ParseDemoHeader", npp.ErrFormat, "header has %d bytes", len(b))
	}
	le := binary.LittleEndian
	return DemoHeader{
		Type:       b[0],
		Size:       int32(le.Uint32(b[1:])),
		Version:    int32(le.Uint32(b[5:])),
		Framecount: int32(le.Uint32(b[9:])),
		LevelID:    int32(le.Uint32(b[13:])),
		Mode:       int32(le.Uint32(b[17:])),
		Reserved:   int32(le.Uint32(b[21:])),
		Mask:       b[25],
	}, nil
}

// ParseReplayHeader inflates a submitted replay and decodes its first header.
func ParseReplayHeader(replay []byte) (DemoHeader, error) {
	data, err := npp.Inflate(replay)
	if err != nil {
		return DemoHeader{}, npp.Errorf("score.ParseReplayHeader", npp.ErrFormat, "inflate: %v", err)
	}
	return ParseDemoHeader(data)
}

// framing locates the per-level length table inside a submitted replay.
type framing struct {
	lengthOffset int
	firstHeader  int
}

var framings = map[npp.Kind]framing{
	npp.Level:   {lengthOffset: 1, firstHeader: 0},
	npp.Episode: {lengthOffset: 4, firstHeader: 24},
	npp.Story:   {lengthOffset: 8, firstHeader: 108},
}

// ParseDemos extracts the raw inputs of every level from a compressed replay
// as submitted by the game. The result has kind.Size() entries.
func ParseDemos(replay []byte, kind npp.Kind) ([][]byte, error) {
	const op = "score.ParseDemos"
	f, ok := framings[kind]
	if !ok {
		return nil, npp.Errorf(op, npp.ErrFormat, "kind %v", kind)
	}
	data, err := npp.Inflate(replay)
	if err != nil {
		return nil, npp.Errorf(op, npp.ErrFormat, "inflate: %v", err)
	}

	n := kind.Size()
	if len(data) < f.lengthOffset+4*n {
		return nil, npp.Errorf(op, npp.ErrFormat, "replay too short for %d lengths", n)
	}
	demos := make([][]byte, 0, n)
	offset := f.firstHeader
	for i := 0; i < n; i++ {
		length := int(int32(binary.LittleEndian.Uint32(data[f.lengthOffset+4*i:])))
		if offset+HeaderSize > len(data) {
			return nil, npp.Errorf(op, npp.ErrFormat, "demo %d header out of bounds", i)
		}
		header, err := ParseDemoHeader(data[offset:])
		if err != nil {
			return nil, err
		}
		start := offset + header.InputsStart()
		end := offset + length
		if length < header.InputsStart() || end > len(data) {
			return nil, npp.Errorf(op, npp.ErrFormat, "demo %d has invalid length %d", i, length)
		}
		demos = append(demos, bytes.Clone(data[start:end]))
		offset = end
	}
	return demos, nil
}

// EncodeDemos packs the level demos of a score into their stored form.
func EncodeDemos(demos [][]byte) ([]byte, error) {
	return npp.Deflate(bytes.Join(demos, []byte{demoSeparator}))
}

// DecodeDemos is the inverse of EncodeDemos.
func DecodeDemos(stored []byte) ([][]byte, error) {
	data, err := npp.Inflate(stored)
	if err != nil {
		return nil, npp.Errorf("score.DecodeDemos", npp.ErrFormat, "inflate: %v", err)
	}
	return bytes.Split(data, []byte{demoSeparator}), nil
}

// SpeedrunFrames is the speedrun score of a set of demos: one input byte per
// frame, and both ninjas' inputs interleaved in coop.
func SpeedrunFrames(demos [][]byte, mode npp.Mode) int {
	total := 0
	for _, d := range demos {
		total += len(d)
	}
	if mode == npp.Coop {
		total /= 2
	}
	return total
}

// demoHeaderSize is the header length of a re-framed demo in the given mode.
func demoHeaderSize(mode npp.Mode) int {
	return HeaderSize + 4*mode.Players()
}

// LevelDemoHeader builds the header the game expects in front of a level
// demo of framecount input bytes.
func LevelDemoHeader(innerID int, mode npp.Mode, framecount int) []byte {
	players := mode.Players()
	framecount /= players
	size := framecount*players + demoHeaderSize(mode)
	mask := uint8(1)
	if mode == npp.Coop {
		mask = 3
	}

	le := binary.LittleEndian
	b := make([]byte, 0, demoHeaderSize(mode))
	b = append(b, HeaderLevel)
	b = le.AppendUint32(b, uint32(size))
	b = le.AppendUint32(b, 1)
	b = le.AppendUint32(b, uint32(framecount))
	b = le.AppendUint32(b, uint32(innerID))
	b = le.AppendUint32(b, uint32(mode))
	b = le.AppendUint32(b, 0)
	b = append(b, mask)
	for i := 0; i < players; i++ {
		b = le.AppendUint32(b, 0xffffffff)
	}
	return b
}

// DumpDemo frames the stored demos of a highscoreable the way the game
// downloads them. innerID is the highscoreable's mappack-relative ID.
func DumpDemo(kind npp.Kind, mode npp.Mode, innerID int, demos [][]byte) ([]byte, error) {
	const op = "score.DumpDemo"
	n := kind.Size()
	if n == 0 {
		return nil, npp.Errorf(op, npp.ErrFormat, "kind %v", kind)
	}
	if len(demos) != n {
		return nil, npp.Errorf(op, npp.ErrFormat, "%v needs %d demos, got %d", kind, n, len(demos))
	}

	le := binary.LittleEndian
	var out []byte
	hsize := demoHeaderSize(mode)
	switch kind {
	case npp.Episode:
		out = le.AppendUint32(out, EpisodeMagic)
	case npp.Story:
		total := 0
		for _, d := range demos {
			total += len(d)
		}
		out = le.AppendUint32(out, StoryMagic)
		out = le.AppendUint32(out, uint32(total+n*hsize))
	}
	if kind != npp.Level {
		for _, d := range demos {
			out = le.AppendUint32(out, uint32(len(d)+hsize))
		}
	}
	for i, d := range demos {
		out = append(out, LevelDemoHeader(innerID*n+i, mode, len(d))...)
		out = append(out, d...)
	}
	return out, nil
}

// ReplayHeaderSize is the length of the uncompressed prefix of a replay response.
const ReplayHeaderSize = 16

// DumpReplay builds a get_replay response body: replay type, replay ID, inner
// ID and player, followed by the compressed demo.
func DumpReplay(kind npp.Kind, replayID int64, innerID int, metanetID int64, demo []byte) ([]byte, error) {
	compressed, err := npp.Deflate(demo)
	if err != nil {
		return nil, npp.Errorf("score.DumpReplay", npp.ErrFormat, "deflate: %v", err)
	}
	le := binary.LittleEndian
	out := make([]byte, 0, ReplayHeaderSize+len(compressed))
	out = le.AppendUint32(out, uint32(kind.RT()))
	out = le.AppendUint32(out, uint32(replayID))
	out = le.AppendUint32(out, uint32(innerID))
	out = le.AppendUint32(out, uint32(metanetID))
	return append(out, compressed...), nil
}
