package main

import (
	"bytes"
	"strings"
	"testing"

	leaderboardservice "github.com/edelkas/inne-sub000/app/modules/leaderboard/application"
	mappackservice "github.com/edelkas/inne-sub000/app/modules/mappack/application"
	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintSeedReport(t *testing.T) {
	var buf bytes.Buffer
	err := printSeedReport(&buf, &mappackservice.SeedReport{Versions: []mappackservice.VersionReport{
		{Code: "CTP", Version: 2, MapErrors: 1, TileChanges: 4,
			Hashes: &mappackservice.HashReport{
				Computed: map[npp.Kind]int{npp.Level: 10, npp.Episode: 2},
				Missing:  map[npp.Kind]int{npp.Level: 1, npp.Story: 1},
			}},
		{Code: "DUA", Version: 1},
	}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "CTP")
	assert.Contains(t, lines[1], "Level 10/11, Episode 2/2, Story 0/1")
	assert.True(t, strings.HasSuffix(lines[2], "-"))
}

func TestPrintGoldReport(t *testing.T) {
	rank := 3
	var buf bytes.Buffer
	err := printGoldReport(&buf, &leaderboardservice.GoldReport{
		Checked: 12,
		Rows: []leaderboardservice.GoldReportRow{{
			ScoreID:   131080,
			Level:     "CTP-A-00-02",
			Player:    "runner",
			Seconds:   decimal.RequireFromString("93.350"),
			RankHS:    &rank,
			Gold:      4,
			LevelGold: 3,
		}},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "CTP-A-00-02")
	assert.Contains(t, out, "93.350")
	assert.Contains(t, out, "  4 /   3")
	assert.Contains(t, out, "1 of 12 scores failed the gold check")
}
