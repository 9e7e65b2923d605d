package npp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGoldCount(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		hs, sr  int
		want    float64
		isValid bool
	}{
		{"level no gold", Level, 5400, 1, 0, true},
		{"level three gold", Level, 5600, 161, 3, true},
		{"episode", Episode, 6000, 125, 6, true},
		{"story", Story, 9000, 145, 31, true},
		{"miscalculated hs", Level, 5601, 161, 3.0083333333333333, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GoldCount(tt.kind, tt.hs, tt.sr)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.Equal(t, tt.isValid, VerifyGold(got))
		})
	}
}

func TestScoreDisplay(t *testing.T) {
	assert.Equal(t, 6000, HSFrames(100000))
	assert.Equal(t, 100000, HSDisplay(6000))
	assert.Equal(t, 1017, HSDisplay(61))
	assert.Equal(t, 61000, SRDisplay(61))
}
