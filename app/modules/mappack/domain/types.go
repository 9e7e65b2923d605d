package mappackdomain

import "github.com/edelkas/inne-sub000/pkg/npp"

// Pack is the public view of a mappack.
type Pack struct {
	ID         int64
	Code       string
	Version    int
	Name       string
	Authors    string
	Date       string
	Enabled    bool
	Fractional bool
}

// Highscoreable is the public view of a mappack level, episode or story.
type Highscoreable struct {
	Kind        npp.Kind
	ID          int64
	InnerID     int
	MappackID   int64
	Mode        npp.Mode
	Tab         int
	ParentID    *int64
	Name        string
	Longname    string
	Gold        int
	Completions int
}

// Levels returns the global IDs of the levels this highscoreable spans.
func (h Highscoreable) Levels() []int64 {
	n := int64(h.Kind.Size())
	ids := make([]int64, 0, n)
	for i := range n {
		ids = append(ids, h.ID*n+i)
	}
	return ids
}

// DigestEntry is one line of the mappack digest file.
type DigestEntry struct {
	ID      int64
	Code    string
	Version int
}
