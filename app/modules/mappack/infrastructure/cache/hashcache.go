// Package mappackcache keeps recently verified hash sets in memory.
package mappackcache

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
	mappackdomain "github.com/edelkas/inne-sub000/app/modules/mappack/domain"
	"github.com/edelkas/inne-sub000/pkg/npp"
)

// HashCache is a ristretto-backed cache of hash sets keyed by highscoreable.
type HashCache struct {
	cache *ristretto.Cache[string, mappackdomain.HashSet]
}

// NewHashCache creates a cache holding up to maxItems hash sets.
func NewHashCache(maxItems int64) (*HashCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, mappackdomain.HashSet]{
		NumCounters: 10 * maxItems,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create hash cache: %w", err)
	}
	return &HashCache{cache: c}, nil
}

func key(kind npp.Kind, id int64) string {
	return fmt.Sprintf("%d:%d", kind, id)
}

func (c *HashCache) Get(kind npp.Kind, id int64) (mappackdomain.HashSet, bool) {
	return c.cache.Get(key(kind, id))
}

// Set stores a hash set. Writes are buffered, so it waits until the entry is
// visible to readers.
func (c *HashCache) Set(kind npp.Kind, id int64, set mappackdomain.HashSet) {
	c.cache.Set(key(kind, id), set, 1)
	c.cache.Wait()
}

func (c *HashCache) Clear() {
	c.cache.Clear()
}

func (c *HashCache) Close() {
	c.cache.Close()
}
