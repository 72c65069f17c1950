package evecache

import "time"

// Stats describes one instance: live entry count and approximate memory.
type Stats struct {
	Entries  int64
	MemBytes int64
}

// Get returns the cached value for key in the named instance.
// An unknown instance behaves as a miss, never an error.
func (c *Cache) Get(name, key string) (any, bool) {
	inst, ok := c.instance(name)
	if !ok {
		return nil, false
	}

	value, hit := inst.store.Get(key)
	c.access(name, hit)
	return value, hit
}

// GetMany partitions keys into those resolved from cache and those the
// caller still has to compute.
func (c *Cache) GetMany(name string, keys []string) (found map[string]any, missing []string) {
	inst, ok := c.instance(name)
	if !ok {
		return map[string]any{}, keys
	}

	found, missing = inst.store.GetMany(keys)
	for range found {
		c.access(name, true)
	}
	for range missing {
		c.access(name, false)
	}
	return found, missing
}

// Set stores value under key. A non-positive ttl means the instance
// default. Unknown instances swallow the write silently so background
// writers never crash on a cache that is not up.
func (c *Cache) Set(name, key string, value any, ttl time.Duration) {
	inst, ok := c.instance(name)
	if !ok {
		return
	}
	inst.store.Set(key, value, inst.ttl(ttl))
}

// SetMany bulk-stores entries under one shared expiry. Callers needing
// per-key TTLs call Set individually.
func (c *Cache) SetMany(name string, entries map[string]any, ttl time.Duration) {
	inst, ok := c.instance(name)
	if !ok {
		return
	}
	inst.store.SetMany(entries, inst.ttl(ttl))
}

// Delete removes key. Absent keys and unknown instances are no-ops.
func (c *Cache) Delete(name, key string) {
	if inst, ok := c.instance(name); ok {
		inst.store.Delete(key)
	}
}

// Clear removes every entry of the named instance and nothing else:
// instances are fully isolated from one another.
func (c *Cache) Clear(name string) {
	if inst, ok := c.instance(name); ok {
		inst.store.Clear()
	}
}

// GetOrCompute returns the cached value for key, or runs compute, caches
// its result under ttl and returns it. A compute failure propagates
// unchanged and caches nothing. On an unknown instance the computation
// still runs so callers degrade to slower, not broken.
//
// Without coalescing, concurrent callers racing on the same missing key
// may each run compute and overwrite one another; instances started with
// Coalesce share a single in-flight computation per key instead.
func (c *Cache) GetOrCompute(name, key string, compute func() (any, error), ttl time.Duration) (any, error) {
	inst, ok := c.instance(name)
	if !ok {
		return compute()
	}

	if value, hit := inst.store.Get(key); hit {
		c.access(name, true)
		return value, nil
	}
	c.access(name, false)

	ttl = inst.ttl(ttl)

	if inst.sf != nil {
		value, err, _ := inst.sf.Do(key, func() (any, error) {
			if value, hit := inst.store.Get(key); hit {
				return value, nil
			}
			value, err := compute()
			if err != nil {
				return nil, err
			}
			inst.store.Set(key, value, ttl)
			return value, nil
		})
		return value, err
	}

	value, err := compute()
	if err != nil {
		return nil, err
	}
	inst.store.Set(key, value, ttl)
	return value, nil
}

// InvalidatePattern removes every entry whose key matches the single-'*'
// wildcard pattern and returns the count removed.
func (c *Cache) InvalidatePattern(name, pattern string) int {
	inst, ok := c.instance(name)
	if !ok {
		return 0
	}
	return inst.store.InvalidatePattern(pattern)
}

// Len returns the live entry count of the named instance.
func (c *Cache) Len(name string) int64 {
	inst, ok := c.instance(name)
	if !ok {
		return 0
	}
	return inst.store.Len()
}

// InstanceStats reports entry count and approximate memory for one
// instance. Unknown instances report zeroes.
func (c *Cache) InstanceStats(name string) Stats {
	inst, ok := c.instance(name)
	if !ok {
		return Stats{}
	}
	return Stats{Entries: inst.store.Len(), MemBytes: inst.store.Mem()}
}

func (c *Cache) access(name string, hit bool) {
	if hit {
		c.counters.hits.Add(1)
	} else {
		c.counters.misses.Add(1)
	}
	c.sink.OnAccess(name, hit)
}

func (inst *instance) ttl(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return inst.cfg.TTL
	}
	return ttl
}
