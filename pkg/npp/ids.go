package npp

import "fmt"

const (
	// MinReplayID is the lowest score ID; below it the client does not fetch replays over HTTP.
	MinReplayID = 131072
	// ReplayRankShift is the bit offset of the rank inside a packed replay ID.
	ReplayRankShift = 24
	replayIDMask    = 1<<ReplayRankShift - 1
	// MaxPlayerID bounds valid Metanet player IDs (exclusive).
	MaxPlayerID = 10000000
	// PageSize is the number of rows in a leaderboard response.
	PageSize = 20
)

// PackReplayID embeds the rank in the high bits so that client-side sorting by
// replay ID respects rank order.
func PackReplayID(rank int, id int64) int64 {
	return int64(rank)<<ReplayRankShift | id&replayIDMask
}

// UnpackReplayID is the inverse of PackReplayID.
func UnpackReplayID(packed int64) (rank int, id int64) {
	return int(packed >> ReplayRankShift), packed & replayIDMask
}

// ValidPlayerID reports whether a Metanet player ID is in range.
func ValidPlayerID(id int64) bool {
	return id > 0 && id < MaxPlayerID
}

// GlobalID converts a mappack-relative inner ID into the global ID space.
func GlobalID(kind Kind, mappackID int64, innerID int) int64 {
	return int64(kind.Slots())*mappackID + int64(innerID)
}

// InnerID converts a global ID into its mappack and mappack-relative ID.
func InnerID(kind Kind, globalID int64) (mappackID int64, innerID int) {
	slots := int64(kind.Slots())
	return globalID / slots, int(globalID % slots)
}

// Parent returns the ID of the highscoreable of kind to that contains the
// given level-granular ID of kind from.
func Parent(from, to Kind, id int64) int64 {
	return id * int64(from.Size()) / int64(to.Size())
}

// Name returns the display name of a mappack highscoreable, e.g. "CTP-S-A-00-01".
func Name(code string, kind Kind, innerID int) string {
	n, ok := ComputeName(innerID, kind)
	if !ok {
		return fmt.Sprintf("%s-%d", code, innerID)
	}
	return code + "-" + n
}
