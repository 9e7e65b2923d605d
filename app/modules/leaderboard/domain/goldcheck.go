package leaderboarddomain

import "github.com/edelkas/inne-sub000/pkg/npp"

// GoldVerdict is the outcome of checking a level score against its gold.
type GoldVerdict struct {
	// Inferred is the gold count implied by the hs and sr scores.
	Inferred float64
	// Fractional is set when Inferred is not an integer, which happens when
	// the game miscalculated the highscore.
	Fractional bool
	// OutOfRange is set when the stored gold is negative or exceeds the
	// gold available in the level.
	OutOfRange bool
}

// Failed reports whether the score needs review.
func (v GoldVerdict) Failed() bool { return v.Fractional || v.OutOfRange }

// CheckGold evaluates a level score.
func CheckGold(scoreHS, scoreSR, gold, levelGold int) GoldVerdict {
	inferred := npp.GoldCount(npp.Level, scoreHS, scoreSR)
	return GoldVerdict{
		Inferred:   inferred,
		Fractional: !npp.VerifyGold(inferred),
		OutOfRange: gold < 0 || gold > levelGold,
	}
}
