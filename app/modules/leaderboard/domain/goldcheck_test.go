package leaderboarddomain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckGold(t *testing.T) {
	tests := []struct {
		name                   string
		hs, sr, gold, levelMax int
		wantFractional, wantOR bool
	}{
		{name: "clean", hs: 5640, sr: 1, gold: 2, levelMax: 4},
		{name: "miscalculated hs", hs: 5641, sr: 1, gold: 2, levelMax: 4, wantFractional: true},
		{name: "negative gold", hs: 5280, sr: 1, gold: -1, levelMax: 4, wantOR: true},
		{name: "more gold than the level has", hs: 6000, sr: 1, gold: 5, levelMax: 4, wantOR: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := CheckGold(tt.hs, tt.sr, tt.gold, tt.levelMax)
			assert.Equal(t, tt.wantFractional, v.Fractional)
			assert.Equal(t, tt.wantOR, v.OutOfRange)
			assert.Equal(t, tt.wantFractional || tt.wantOR, v.Failed())
		})
	}
}
