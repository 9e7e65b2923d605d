// Package leaderboardcache keeps rendered leaderboard pages in memory.
package leaderboardcache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	leaderboardservice "github.com/edelkas/inne-sub000/app/modules/leaderboard/application"
)

// BoardCache is a ristretto-backed cache of get_scores responses. Entries
// expire after ttl even if no invalidation arrives.
type BoardCache struct {
	cache *ristretto.Cache[string, *leaderboardservice.ScoresResponse]
	ttl   time.Duration
}

// NewBoardCache creates a cache holding up to maxItems responses.
func NewBoardCache(maxItems int64, ttl time.Duration) (*BoardCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, *leaderboardservice.ScoresResponse]{
		NumCounters: 10 * maxItems,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create board cache: %w", err)
	}
	return &BoardCache{cache: c, ttl: ttl}, nil
}

func (c *BoardCache) Get(key string) (*leaderboardservice.ScoresResponse, bool) {
	return c.cache.Get(key)
}

func (c *BoardCache) Set(key string, resp *leaderboardservice.ScoresResponse) {
	if c.ttl > 0 {
		c.cache.SetWithTTL(key, resp, 1, c.ttl)
	} else {
		c.cache.Set(key, resp, 1)
	}
	c.cache.Wait()
}

func (c *BoardCache) Delete(key string) {
	c.cache.Del(key)
}

func (c *BoardCache) Close() {
	c.cache.Close()
}
