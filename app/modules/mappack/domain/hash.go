package mappackdomain

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"math"
	"sort"
	"strconv"
)

// HashSize is the length of a raw SHA1 digest.
const HashSize = sha1.Size

// MapHash hashes a dump produced by DumpForHash, skipping its header.
func MapHash(password, dump []byte) []byte {
	if len(dump) < HeaderLen {
		return nil
	}
	h := sha1.New()
	h.Write(password)
	h.Write(dump[HeaderLen:])
	return h.Sum(nil)
}

// ScoreString is the decimal rendering of a frame score in thousandths of a
// second, wrapped to 32 bits the way the game computes it.
func ScoreString(frames int) string {
	ms := math.Floor(1000*float64(frames)/60 + 0.5)
	return strconv.FormatUint(uint64(uint32(int64(ms))), 10)
}

// ScoreHash is the security token a client sends with a score.
func ScoreHash(mapHash []byte, frames int) []byte {
	h := sha1.New()
	h.Write(mapHash)
	h.Write([]byte(ScoreString(frames)))
	return h.Sum(nil)
}

// EpisodeHash concatenates the hashes of the 5 levels in ID order. It is nil
// if any level hash is missing.
func EpisodeHash(levels [][]byte) []byte {
	if len(levels) < 5 {
		return nil
	}
	out := make([]byte, 0, 5*HashSize)
	for _, l := range levels[:5] {
		if l == nil {
			return nil
		}
		out = append(out, l...)
	}
	return out
}

// StoryHash folds the hashes of the 25 levels through SHA1 starting from a
// zero digest. It is nil if any level hash is missing.
func StoryHash(levels [][]byte) []byte {
	if len(levels) < 25 {
		return nil
	}
	work := make([]byte, HashSize)
	for _, l := range levels[:25] {
		if l == nil {
			return nil
		}
		sum := sha1.Sum(append(work, l...))
		work = sum[:]
	}
	return work
}

// ParseToken accepts a security token as raw bytes or hex.
func ParseToken(s string) []byte {
	if len(s) == 2*HashSize {
		if b, err := hex.DecodeString(s); err == nil {
			return b
		}
	}
	return []byte(s)
}

// VersionedHash is a precomputed hash of one map version. Hash is nil when
// it could not be computed.
type VersionedHash struct {
	Version int
	Hash    []byte
}

// HashSet holds the precomputed hashes of a highscoreable, sorted by version.
type HashSet []VersionedHash

// NewHashSet sorts the given hashes by version.
func NewHashSet(hashes []VersionedHash) HashSet {
	set := HashSet(append([]VersionedHash(nil), hashes...))
	sort.Slice(set, func(i, j int) bool { return set[i].Version < set[j].Version })
	return set
}

// Saved returns the hash of the newest version not newer than v.
func (s HashSet) Saved(v int) ([]byte, bool) {
	var found []byte
	ok := false
	for _, h := range s {
		if h.Version > v {
			break
		}
		found, ok = h.Hash, true
	}
	return found, ok
}

// Verify checks a token against every stored version. A version without a
// computable hash accepts any token, since integrity is then unknown.
func (s HashSet) Verify(token []byte, frames int) bool {
	if len(s) == 0 {
		return true
	}
	for _, h := range s {
		if h.Hash == nil {
			return true
		}
		if bytes.Equal(ScoreHash(h.Hash, frames), token) {
			return true
		}
	}
	return false
}
