package degradation

import (
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/thushan/locallm/internal/core/domain"
)

type cacheEntry struct {
	storedAt time.Time
	value    any
}

// ResponseCache keeps the last good result per feature and key for the cached strategy
type ResponseCache struct {
	entries *xsync.Map[string, cacheEntry]
	now     func() time.Time
	ttl     time.Duration
}

func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		entries: xsync.NewMap[string, cacheEntry](),
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(feature domain.Feature, key string) string {
	return string(feature) + ":" + key
}

func (c *ResponseCache) Store(feature domain.Feature, key string, value any) {
	c.entries.Store(cacheKey(feature, key), cacheEntry{value: value, storedAt: c.now()})
}

// Load returns the cached value and its age, expired entries are dropped.
// A zero ttl keeps entries forever.
func (c *ResponseCache) Load(feature domain.Feature, key string) (any, time.Duration, bool) {
	k := cacheKey(feature, key)
	entry, ok := c.entries.Load(k)
	if !ok {
		return nil, 0, false
	}
	age := c.now().Sub(entry.storedAt)
	if c.ttl > 0 && age > c.ttl {
		c.entries.Delete(k)
		return nil, 0, false
	}
	return entry.value, age, true
}

func (c *ResponseCache) Size() int {
	return c.entries.Size()
}

func (c *ResponseCache) Clear() {
	c.entries.Clear()
}
