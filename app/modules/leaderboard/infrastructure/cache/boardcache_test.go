package leaderboardcache

import (
	"testing"
	"time"

	leaderboardservice "github.com/edelkas/inne-sub000/app/modules/leaderboard/application"
	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoardCache(t *testing.T) {
	c, err := NewBoardCache(100, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	resp := &leaderboardservice.ScoresResponse{Kind: npp.Level, InnerID: 3, Scores: []leaderboardservice.ScoreLine{{Score: 1000}}}

	_, ok := c.Get("0:3:0")
	assert.False(t, ok)

	c.Set("0:3:0", resp)
	got, ok := c.Get("0:3:0")
	require.True(t, ok)
	assert.Same(t, resp, got)

	c.Delete("0:3:0")
	_, ok = c.Get("0:3:0")
	assert.False(t, ok)
}

var _ leaderboardservice.BoardCache = (*BoardCache)(nil)
