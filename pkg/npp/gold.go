package npp

import "math"

const (
	// goldBase is the frame offset of a zero-gold run: 90 seconds at 60 fps.
	goldBase = 5400
	// goldFrames is the hs and sr frame value of one piece of gold.
	goldFrames = 120
	// GoldTolerance bounds the distance to an integer of a valid gold count.
	GoldTolerance = 0.001
)

// GoldCount infers the collected gold from the two scores of a run. The
// result is fractional when the highscore was miscalculated by the game.
func GoldCount(kind Kind, scoreHS, scoreSR int) float64 {
	return float64(scoreHS+scoreSR-goldBase-kind.Size()) / goldFrames
}

// VerifyGold reports whether a gold count is close enough to an integer.
func VerifyGold(gold float64) bool {
	return math.Abs(gold-math.Round(gold)) < GoldTolerance
}

// HSFrames converts a highscore in milliseconds-equivalent units as sent by
// the game (seconds * 1000) into frames.
func HSFrames(score int) int {
	return int(math.Round(60 * float64(score) / 1000))
}

// HSDisplay is the inverse of HSFrames, as shown on leaderboards.
func HSDisplay(frames int) int {
	return int(math.Round(1000 * float64(frames) / 60))
}

// SRDisplay is how a speedrun frame count is shown on leaderboards.
func SRDisplay(frames int) int {
	return 1000 * frames
}
