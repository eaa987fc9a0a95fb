package registry

import (
	"sync"

	"github.com/quillback/quillback/transit"
)

// patternKey identifies a shared formatter by the tuple the design caches
// on: (format pattern, time pattern, timezone). Timezone comparison is
// exact-string, inheriting case sensitivity from whatever the caller passed
// through (Go's time.LoadLocation is itself case-sensitive on IANA names).
type patternKey struct {
	pattern     string
	timePattern string
	timezone    string
}

// NewFormatterFunc constructs a concrete transit.Formatter for a pattern
// tuple; supplied by the caller so FormatterCache stays agnostic of any
// particular pattern-rendering implementation.
type NewFormatterFunc func(pattern, timePattern, timezone string) transit.Formatter

// formatterEntry pairs a cached formatter with a reference count of the
// live loggers currently pointing at it. The original design keeps strong
// references in a registry and weak references in this cache, sweeping
// expired (refcount-zero) entries during idle cleanup; Go's garbage
// collector makes a literal weak pointer moot, so this is the idiomatic
// substitute — the cache holds a strong reference but tracks installs and
// releases explicitly, and Sweep drops any entry whose count has fallen to
// zero, which is the same "prune what nothing holds anymore" behavior.
type formatterEntry struct {
	formatter transit.Formatter
	refs      int
}

// FormatterCache is the shared registry of reusable pattern formatters,
// mutated only by the backend.
type FormatterCache struct {
	mu      sync.Mutex
	entries map[patternKey]*formatterEntry
	newFn   NewFormatterFunc
}

// NewFormatterCache creates an empty cache that constructs formatters via
// newFn on a cache miss.
func NewFormatterCache(newFn NewFormatterFunc) *FormatterCache {
	return &FormatterCache{entries: make(map[patternKey]*formatterEntry), newFn: newFn}
}

// GetOrCreate implements transit.FormatterFactory: it looks up a formatter
// by the (pattern, time_pattern, tz) tuple, creating and registering one on
// a miss, and increments the tuple's reference count either way — this
// models "installed at most once, shared thereafter" (invariant 4).
func (c *FormatterCache) GetOrCreate(pattern, timePattern, timezone string) transit.Formatter {
	key := patternKey{pattern, timePattern, timezone}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.refs++
		return e.formatter
	}
	f := c.newFn(pattern, timePattern, timezone)
	c.entries[key] = &formatterEntry{formatter: f, refs: 1}
	return f
}

// Release decrements the reference count for a (pattern, time_pattern, tz)
// tuple, called when a logger holding it is removed. It does not evict
// immediately; Sweep performs the actual prune during idle cleanup, exactly
// as the original design only sweeps expired weak references during the
// idle maintenance pass.
func (c *FormatterCache) Release(pattern, timePattern, timezone string) {
	key := patternKey{pattern, timePattern, timezone}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.refs--
	}
}

// Sweep removes every entry whose reference count has fallen to zero or
// below, returning the number pruned.
func (c *FormatterCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	pruned := 0
	for k, e := range c.entries {
		if e.refs <= 0 {
			delete(c.entries, k)
			pruned++
		}
	}
	return pruned
}

// Len reports how many distinct pattern tuples are currently cached.
func (c *FormatterCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
