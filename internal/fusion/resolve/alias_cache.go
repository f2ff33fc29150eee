package resolve

import (
	"container/list"
	"sync"
	"time"

	"github.com/nvoloshin/betfuse/internal/pkg/models"
)

// aliasEntry is one remembered fuzzy resolution. Pure optimization: losing
// the whole cache only makes the next lookup walk the token-subset path
// again, it can never change which key a name resolves to.
type aliasEntry struct {
	fuzzyKey   string
	resolved   models.MatchKey
	method     Method
	createdAt  time.Time
	lastUsedAt time.Time
}

// aliasCache is a bounded LRU with a TTL. Size cap and time cap both apply;
// whichever hits first evicts the entry.
type aliasCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List               // front = most recently used
	entries  map[string]*list.Element // fuzzyKey -> element holding *aliasEntry
}

func newAliasCache(capacity int, ttl time.Duration) *aliasCache {
	if capacity < 1 {
		capacity = 1
	}
	return &aliasCache{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

// get returns the cached resolution for a fuzzy key, refreshing its LRU
// position. Expired entries are removed on access.
func (c *aliasCache) get(fuzzyKey string, now time.Time) (models.MatchKey, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[fuzzyKey]
	if !ok {
		return models.MatchKey{}, false
	}
	entry := el.Value.(*aliasEntry)
	if c.ttl > 0 && now.Sub(entry.createdAt) > c.ttl {
		c.order.Remove(el)
		delete(c.entries, fuzzyKey)
		return models.MatchKey{}, false
	}
	entry.lastUsedAt = now
	c.order.MoveToFront(el)
	return entry.resolved, true
}

// put records a fuzzy resolution, evicting the least recently used entry
// when over capacity.
func (c *aliasCache) put(fuzzyKey string, resolved models.MatchKey, method Method, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[fuzzyKey]; ok {
		entry := el.Value.(*aliasEntry)
		entry.resolved = resolved
		entry.method = method
		entry.createdAt = now
		entry.lastUsedAt = now
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&aliasEntry{
		fuzzyKey:   fuzzyKey,
		resolved:   resolved,
		method:     method,
		createdAt:  now,
		lastUsedAt: now,
	})
	c.entries[fuzzyKey] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*aliasEntry).fuzzyKey)
	}
}

// invalidate drops one entry (used when the resolved key disappears from
// the store, e.g. after a staleness sweep).
func (c *aliasCache) invalidate(fuzzyKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[fuzzyKey]; ok {
		c.order.Remove(el)
		delete(c.entries, fuzzyKey)
	}
}

func (c *aliasCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
