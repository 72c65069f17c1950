// Package store implements the sharded expiring entry store backing one
// named cache instance. Hot paths (Get/Set/Delete) keep critical sections
// short; global counters are atomics so they can be read without locks.
package store

import (
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/zeebo/xxh3"
)

// Tunables.
const (
	numShards = 256
	shardMask = numShards - 1 // faster than division
)

// Store holds key -> (value, expires-at) entries for one instance.
// An entry is logically absent once its expiry passes, even while it is
// still physically present; reads purge such entries lazily.
type Store struct {
	clk     clock.Clock
	maxSize int64
	onEvict func(evicted int) // capacity eviction notification, may be nil

	len int64 // aggregated number of items (atomic)
	mem int64 // aggregated approximate weight in bytes (atomic)

	shards [numShards]*shard
}

// New creates a store bounded to maxSize entries. onEvict is invoked
// after each capacity eviction with the number of entries removed.
func New(clk clock.Clock, maxSize int, onEvict func(evicted int)) *Store {
	s := &Store{clk: clk, maxSize: int64(maxSize), onEvict: onEvict}
	for id := range s.shards {
		s.shards[id] = newShard()
	}
	return s
}

// Get returns the live value for key. An expired entry is removed as a
// side effect and reported as a miss.
func (s *Store) Get(key string) (any, bool) {
	sh := s.shard(key)
	e, hit := sh.get(key)
	if !hit {
		return nil, false
	}
	if e.expired(s.clk.Now().UnixNano()) {
		s.removeIfSame(sh, key, e)
		return nil, false
	}
	return e.value, true
}

// GetMany partitions keys into those resolved from cache and those
// requiring computation. Expired entries encountered on the way are
// purged opportunistically.
func (s *Store) GetMany(keys []string) (found map[string]any, missing []string) {
	found = make(map[string]any, len(keys))
	now := s.clk.Now().UnixNano()
	for _, key := range keys {
		sh := s.shard(key)
		e, hit := sh.get(key)
		if !hit {
			missing = append(missing, key)
			continue
		}
		if e.expired(now) {
			s.removeIfSame(sh, key, e)
			missing = append(missing, key)
			continue
		}
		found[key] = e.value
	}
	return found, missing
}

// Set inserts or overwrites unconditionally. When the entry count is at
// the bound, the entries closest to expiry are evicted first to make room.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	s.setAt(key, value, s.clk.Now().Add(ttl).UnixNano())
}

// SetMany bulk-inserts entries sharing a single expiry timestamp.
// One expiry for the whole batch trades per-key precision for throughput;
// callers needing heterogeneous TTLs use Set per key.
func (s *Store) SetMany(entries map[string]any, ttl time.Duration) {
	expiresAt := s.clk.Now().Add(ttl).UnixNano()
	for key, value := range entries {
		s.setAt(key, value, expiresAt)
	}
}

func (s *Store) setAt(key string, value any, expiresAt int64) {
	if s.maxSize > 0 && atomic.LoadInt64(&s.len) >= s.maxSize {
		s.evictSoonest()
	}

	e := &entry{value: value, expiresAt: expiresAt, weight: entryWeight(key, value)}
	bytesDelta, lenDelta := s.shard(key).set(key, e)
	if bytesDelta != 0 {
		atomic.AddInt64(&s.mem, bytesDelta)
	}
	if lenDelta != 0 {
		atomic.AddInt64(&s.len, lenDelta)
	}
}

// Delete removes a key unconditionally. Absent keys are not an error.
func (s *Store) Delete(key string) {
	freed, hit := s.shard(key).remove(key)
	if hit {
		atomic.AddInt64(&s.len, -1)
		atomic.AddInt64(&s.mem, -freed)
	}
}

// Clear wipes all shards and fixes the global counters.
func (s *Store) Clear() {
	for _, sh := range s.shards {
		freed, items := sh.clear()
		if freed != 0 {
			atomic.AddInt64(&s.mem, -freed)
		}
		if items != 0 {
			atomic.AddInt64(&s.len, -items)
		}
	}
}

// Sweep removes every expired entry and returns the count purged.
// Used by the background reaper so keys that are never re-read still die.
func (s *Store) Sweep() int {
	now := s.clk.Now().UnixNano()
	var purged int
	for _, sh := range s.shards {
		freed, items := sh.removeExpired(now)
		if freed != 0 {
			atomic.AddInt64(&s.mem, -freed)
		}
		if items != 0 {
			atomic.AddInt64(&s.len, -items)
			purged += int(items)
		}
	}
	return purged
}

// Walk applies fn to every live entry until fn returns false.
// Expired entries are skipped, not purged; this is a read-only pass.
func (s *Store) Walk(fn func(key string, value any, expiresAt time.Time) bool) {
	now := s.clk.Now().UnixNano()
	for _, sh := range s.shards {
		if !sh.walk(now, fn) {
			return
		}
	}
}

func (s *Store) Len() int64 { return atomic.LoadInt64(&s.len) }
func (s *Store) Mem() int64 { return atomic.LoadInt64(&s.mem) }

func (s *Store) shard(key string) *shard {
	return s.shards[xxh3.HashString(key)&shardMask]
}

// removeIfSame deletes key only while it still maps to the observed
// entry, so a concurrent overwrite is never lost to a lazy expiry purge.
func (s *Store) removeIfSame(sh *shard, key string, observed *entry) {
	freed, hit := sh.removeIfSame(key, observed)
	if hit {
		atomic.AddInt64(&s.len, -1)
		atomic.AddInt64(&s.mem, -freed)
	}
}
