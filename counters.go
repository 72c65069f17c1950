package evecache

import "sync/atomic"

type counters struct {
	hits    atomic.Int64
	misses  atomic.Int64
	evicted atomic.Int64 // capacity evictions
	swept   atomic.Int64 // expired entries purged by reapers
}

func newCounters() *counters {
	return &counters{}
}

func (c *counters) snapshot() (hits, misses, evicted, swept int64) {
	return c.hits.Load(), c.misses.Load(), c.evicted.Load(), c.swept.Load()
}
