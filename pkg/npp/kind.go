// Package npp holds the N++ vocabulary shared by every module: highscoreable
// kinds, playing modes, leaderboard boards, tabs and ID arithmetic.
package npp

import (
	"fmt"
	"strings"
)

// Kind identifies the shape of a highscoreable.
type Kind int

const (
	Level Kind = iota
	Episode
	Story
)

// KindSpec carries the per-kind protocol constants.
type KindSpec struct {
	Name string
	// QT is the query type the game client sends for this kind.
	QT int
	// RT is the replay type written in replay responses.
	RT int
	// Size is the number of levels contained in one highscoreable.
	Size int
	// Slots is the ID space reserved per mappack.
	Slots int
}

var kindSpecs = [...]KindSpec{
	Level:   {Name: "Level", QT: 0, RT: 0, Size: 1, Slots: 20000},
	Episode: {Name: "Episode", QT: 1, RT: 1, Size: 5, Slots: 4000},
	Story:   {Name: "Story", QT: 4, RT: 0, Size: 25, Slots: 800},
}

// Kinds lists every kind in resolution order.
var Kinds = []Kind{Level, Episode, Story}

func (k Kind) Valid() bool { return k >= Level && k <= Story }

func (k Kind) Spec() KindSpec {
	if !k.Valid() {
		return KindSpec{}
	}
	return kindSpecs[k]
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindSpecs[k].Name
}

// IDField is the request/response field carrying this kind's ID, e.g. "level_id".
func (k Kind) IDField() string { return strings.ToLower(k.String()) + "_id" }

func (k Kind) QT() int    { return k.Spec().QT }
func (k Kind) RT() int    { return k.Spec().RT }
func (k Kind) Size() int  { return k.Spec().Size }
func (k Kind) Slots() int { return k.Spec().Slots }

// KindFromQT resolves the kind the client asks for with a query type.
func KindFromQT(qt int) (Kind, bool) {
	for _, k := range Kinds {
		if k.QT() == qt {
			return k, true
		}
	}
	return 0, false
}

// KindFromFields returns the first kind whose ID field is present.
func KindFromFields(has func(field string) bool) (Kind, bool) {
	for _, k := range Kinds {
		if has(k.IDField()) {
			return k, true
		}
	}
	return 0, false
}

// ParseKind accepts the kind name in any case.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(k.String(), s) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown highscoreable kind %q", ErrFormat, s)
}

// Mode is the playing mode of a level.
type Mode int

const (
	Solo Mode = iota
	Coop
	Race
)

func (m Mode) String() string {
	switch m {
	case Solo:
		return "solo"
	case Coop:
		return "coop"
	case Race:
		return "race"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Players is the number of ninjas whose inputs are stored per demo.
func (m Mode) Players() int {
	if m == Coop {
		return 2
	}
	return 1
}

// Board is a leaderboard flavour.
type Board string

const (
	// Highscore boards rank by score_hs, higher is better.
	Highscore Board = "hs"
	// Speedrun boards rank by score_sr, lower is better.
	Speedrun Board = "sr"
)

// Boards lists both ranked boards.
var Boards = []Board{Highscore, Speedrun}

func (b Board) Valid() bool { return b == Highscore || b == Speedrun }

// Better reports whether x is strictly better than y on this board.
func (b Board) Better(x, y float64) bool {
	if b == Speedrun {
		return x < y
	}
	return x > y
}

// BoardFromQT maps a leaderboard query type to a board. Query types 0 and 1
// both request highscores, 2 requests speedruns.
func BoardFromQT(qt int) (Board, bool) {
	switch qt {
	case 0, 1:
		return Highscore, true
	case 2:
		return Speedrun, true
	}
	return "", false
}
