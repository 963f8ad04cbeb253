package resolve

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/path2target/transform-core/internal/core"
)

// DefaultCacheSize bounds the identifier cache.
const DefaultCacheSize = 65536

// DefaultStalenessHorizon is how long a cached resolution stays fresh.
const DefaultStalenessHorizon = 24 * time.Hour

// Cache stores resolved identifiers keyed by (authority, rawValue). Entries
// past the staleness horizon are still served (as cachedStale copies) so a
// run never blocks on a refresh; the normalizer re-enqueues them.
//
// The cache is explicitly injected, never process-global: tests substitute a
// fresh or pre-seeded instance, and the engine invalidates on source or
// config change.
type Cache struct {
	entries *lru.Cache[string, *core.CanonicalIdentifier]
	horizon time.Duration
	now     func() time.Time
}

// NewCache creates an identifier cache. Non-positive size or horizon fall
// back to the defaults.
func NewCache(size int, horizon time.Duration) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if horizon <= 0 {
		horizon = DefaultStalenessHorizon
	}
	entries, err := lru.New[string, *core.CanonicalIdentifier](size)
	if err != nil {
		// lru.New only fails on non-positive size, which is guarded above.
		panic(err)
	}
	return &Cache{entries: entries, horizon: horizon, now: time.Now}
}

func cacheKey(authority core.Authority, rawValue string) string {
	return string(authority) + "|" + rawValue
}

// Get returns the cached record for (authority, rawValue). Records past the
// staleness horizon come back as copies with status cachedStale; the stored
// record is never mutated.
func (c *Cache) Get(authority core.Authority, rawValue string) (*core.CanonicalIdentifier, bool) {
	rec, ok := c.entries.Get(cacheKey(authority, rawValue))
	if !ok {
		return nil, false
	}
	if c.now().Sub(rec.ResolvedAt) > c.horizon {
		stale := *rec
		stale.Status = core.StatusCachedStale
		return &stale, true
	}
	return rec, true
}

// Put stores a resolution record.
func (c *Cache) Put(rec *core.CanonicalIdentifier) {
	c.entries.Add(cacheKey(rec.Authority, rec.RawValue), rec)
}

// Len returns the number of cached records.
func (c *Cache) Len() int { return c.entries.Len() }

// Invalidate drops every entry. Called when the source or config changes.
func (c *Cache) Invalidate() { c.entries.Purge() }
