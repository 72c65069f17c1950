package store

import (
	"sort"
	"sync/atomic"
)

// evictSoonest drops the entries with the soonest expiry until roughly
// 10% of the bound is freed, with a floor of one entry so a small
// MaxSize still makes forward progress. Expiry order approximates LRU
// cheaply: short-TTL, frequently refreshed entries cluster at the front.
//
// The scan-and-sort is O(n log n) per event, acceptable because
// eviction fires only when an insert meets the bound.
func (s *Store) evictSoonest() {
	target := int(s.maxSize / 10)
	if target < 1 {
		target = 1
	}

	type victim struct {
		key       string
		expiresAt int64
	}
	victims := make([]victim, 0, s.Len())
	for _, sh := range s.shards {
		sh.RLock()
		for key, e := range sh.items {
			victims = append(victims, victim{key: key, expiresAt: e.expiresAt})
		}
		sh.RUnlock()
	}
	if len(victims) == 0 {
		return
	}

	sort.Slice(victims, func(i, j int) bool {
		return victims[i].expiresAt < victims[j].expiresAt
	})
	if target > len(victims) {
		target = len(victims)
	}

	var evicted int
	for _, v := range victims[:target] {
		freed, hit := s.shard(v.key).remove(v.key)
		if hit {
			atomic.AddInt64(&s.len, -1)
			atomic.AddInt64(&s.mem, -freed)
			evicted++
		}
	}

	if evicted > 0 && s.onEvict != nil {
		s.onEvict(evicted)
	}
}
