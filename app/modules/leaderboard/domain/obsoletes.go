package leaderboarddomain

import "sort"

// SelectObsoletes returns the IDs of a single player's entries that can be
// deleted. An entry survives when it holds a rank on either board, when it
// was a running hs or sr PB at the time it was submitted, or when its gold
// equals the player's maximum or minimum gold on the highscoreable.
func SelectObsoletes(entries []Entry) []int64 {
	if len(entries) == 0 {
		return nil
	}

	byID := make([]Entry, len(entries))
	copy(byID, entries)
	sort.Slice(byID, func(i, j int) bool { return byID[i].ID < byID[j].ID })

	goldMax, goldMin := byID[0].Gold, byID[0].Gold
	for _, e := range byID[1:] {
		goldMax = max(goldMax, e.Gold)
		goldMin = min(goldMin, e.Gold)
	}

	keep := make(map[int64]bool, len(byID))
	var pbHS, pbSR *int
	for _, e := range byID {
		if pbHS == nil || e.ScoreHS > *pbHS {
			hs := e.ScoreHS
			pbHS = &hs
			keep[e.ID] = true
		}
		if pbSR == nil || e.ScoreSR < *pbSR {
			sr := e.ScoreSR
			pbSR = &sr
			keep[e.ID] = true
		}
	}

	var obsolete []int64
	for _, e := range byID {
		if keep[e.ID] || e.RankHS != nil || e.RankSR != nil {
			continue
		}
		if e.Gold < goldMax && e.Gold > goldMin {
			obsolete = append(obsolete, e.ID)
		}
	}
	return obsolete
}

// GroupByPlayer splits entries per player, preserving order.
func GroupByPlayer(entries []Entry) map[int64][]Entry {
	out := make(map[int64][]Entry)
	for _, e := range entries {
		out[e.PlayerID] = append(out[e.PlayerID], e)
	}
	return out
}
