package scoredomain

import (
	"errors"
	"testing"

	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	previous := []Attempt{
		{ScoreHS: 1000, ScoreSR: 300, Fraction: 1, Gold: 2},
		{ScoreHS: 900, ScoreSR: 250, Fraction: 1, Gold: 0},
	}

	tests := []struct {
		name       string
		previous   []Attempt
		candidate  Attempt
		fractional bool
		want       Improvement
	}{
		{
			name:      "first run improves everything",
			candidate: Attempt{ScoreHS: 1, ScoreSR: 1, Fraction: 1},
			want:      Improvement{HS: true, SR: true, GoldMax: true, GoldMin: true},
		},
		{
			name:      "equal run stores nothing",
			previous:  previous,
			candidate: Attempt{ScoreHS: 1000, ScoreSR: 250, Fraction: 1, Gold: 1},
			want:      Improvement{},
		},
		{
			name:      "better highscore",
			previous:  previous,
			candidate: Attempt{ScoreHS: 1001, ScoreSR: 260, Fraction: 1, Gold: 1},
			want:      Improvement{HS: true},
		},
		{
			name:      "better speedrun with most gold",
			previous:  previous,
			candidate: Attempt{ScoreHS: 950, ScoreSR: 249, Fraction: 1, Gold: 3},
			want:      Improvement{SR: true, GoldMax: true},
		},
		{
			name:       "fraction breaks a frame tie",
			previous:   []Attempt{{ScoreHS: 1000, ScoreSR: 300, Fraction: 0.8, Gold: 1}},
			candidate:  Attempt{ScoreHS: 1000, ScoreSR: 300, Fraction: 0.5, Gold: 1},
			fractional: true,
			want:       Improvement{HS: true, SR: true},
		},
		{
			name:      "fraction ignored on integer mappacks",
			previous:  []Attempt{{ScoreHS: 1000, ScoreSR: 300, Fraction: 0.8, Gold: 1}},
			candidate: Attempt{ScoreHS: 1000, ScoreSR: 300, Fraction: 0.5, Gold: 1},
			want:      Improvement{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(tt.previous, tt.candidate, tt.fractional)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want != Improvement{}, got.Any())
		})
	}
}

func TestCheckRequirements(t *testing.T) {
	mirrored := []byte{1, 2, 3, 1, 2, 3}

	tests := []struct {
		name    string
		code    string
		demos   [][]byte
		wantErr bool
	}{
		{name: "no rule", code: "CTP", demos: [][]byte{{1, 2, 3}}},
		{name: "dual mirrored", code: "DUA", demos: [][]byte{mirrored, mirrored}},
		{name: "dual odd length", code: "dua", demos: [][]byte{{1, 2, 3}}, wantErr: true},
		{name: "dual diverging", code: "dua", demos: [][]byte{mirrored, {1, 2, 3, 1, 2, 4}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRequirements(tt.code, tt.demos)
			if tt.wantErr {
				assert.True(t, errors.Is(err, npp.ErrIntegrity))
				return
			}
			assert.NoError(t, err)
		})
	}
}
