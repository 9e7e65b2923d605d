package scoredomain

import "math"

// Attempt is the part of a stored or submitted run that decides whether it
// improves a player's personal bests.
type Attempt struct {
	ScoreHS  int
	ScoreSR  int
	Fraction float64
	Gold     int
}

// Improvement lists what a submission improved over the player's previous runs.
type Improvement struct {
	HS bool
	SR bool
	// GoldMax and GoldMin keep the runs with the most and the least gold.
	GoldMax bool
	GoldMin bool
}

// Any reports whether the submission has to be stored.
func (i Improvement) Any() bool { return i.HS || i.SR || i.GoldMax || i.GoldMin }

// effective applies the fractional frame of a simulated run. The fraction is 1
// for runs that were never simulated.
func effective(a Attempt, fractional bool) (hs, sr float64) {
	hs, sr = float64(a.ScoreHS), float64(a.ScoreSR)
	if fractional {
		hs -= a.Fraction
		sr += a.Fraction
	}
	return hs, sr
}

// Compare decides which personal bests a candidate beats. Every comparison is
// strict, so resubmitting an equal run stores nothing.
func Compare(previous []Attempt, candidate Attempt, fractional bool) Improvement {
	if len(previous) == 0 {
		return Improvement{HS: true, SR: true, GoldMax: true, GoldMin: true}
	}

	maxHS, minSR := math.Inf(-1), math.Inf(1)
	maxGold, minGold := math.MinInt, math.MaxInt
	for _, p := range previous {
		hs, sr := effective(p, fractional)
		maxHS = max(maxHS, hs)
		minSR = min(minSR, sr)
		maxGold = max(maxGold, p.Gold)
		minGold = min(minGold, p.Gold)
	}

	hs, sr := effective(candidate, fractional)
	return Improvement{
		HS:      hs > maxHS,
		SR:      sr < minSR,
		GoldMax: candidate.Gold > maxGold,
		GoldMin: candidate.Gold < minGold,
	}
}
