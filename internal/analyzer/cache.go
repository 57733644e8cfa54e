package analyzer

import (
	"sync"
	"time"
)

// cacheEntry is one CheckCache slot (spec.md §3): the most recent
// (ParseResult, CheckResult, checkedVersion) the Analyzer retained for
// one file under one set of ProjectOptions.
type cacheEntry struct {
	parse        ParseResult
	check        CheckResult
	version      int
	cachedAtNano int64
}

// checkCache is the Analyzer-owned read-through cache backing
// TryCached. Grounded on the teacher's cache.MetricsCache: a sync.Map
// keyed by content fingerprint with a TTL-based eviction sweep, scaled
// down here from three cooperating caches (content/symbol/parser) to
// the single (file, projectOptions) → result mapping spec.md §3 names.
type checkCache struct {
	entries sync.Map // map[string]*cacheEntry
	ttl     int64    // nanoseconds
	stop    chan struct{}
}

func newCheckCache(ttl time.Duration) *checkCache {
	c := &checkCache{ttl: int64(ttl), stop: make(chan struct{})}
	go c.sweepLoop()
	return c
}

// Close stops the background eviction sweep.
func (c *checkCache) Close() {
	close(c.stop)
}

func cacheKey(file string, projectVersion uint64) string {
	return file + "#" + itoa(projectVersion)
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

func (c *checkCache) put(file string, projectVersion uint64, e cacheEntry) {
	e.cachedAtNano = time.Now().UnixNano()
	c.entries.Store(cacheKey(file, projectVersion), &e)
}

func (c *checkCache) get(file string, projectVersion uint64) (cacheEntry, bool) {
	v, ok := c.entries.Load(cacheKey(file, projectVersion))
	if !ok {
		return cacheEntry{}, false
	}
	entry := v.(*cacheEntry)
	if c.ttl > 0 && time.Now().UnixNano()-entry.cachedAtNano > c.ttl {
		c.entries.Delete(cacheKey(file, projectVersion))
		return cacheEntry{}, false
	}
	return *entry, true
}

func (c *checkCache) sweepLoop() {
	if c.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(c.ttl))
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := time.Now().UnixNano()
			c.entries.Range(func(k, v interface{}) bool {
				entry := v.(*cacheEntry)
				if now-entry.cachedAtNano > c.ttl {
					c.entries.Delete(k)
				}
				return true
			})
		}
	}
}
