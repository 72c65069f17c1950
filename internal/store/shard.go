package store

import (
	"sync"
	"time"
)

type entry struct {
	value     any
	expiresAt int64 // unix nano
	weight    int64 // approximate bytes, fixed at insert
}

func (e *entry) expired(now int64) bool {
	return now >= e.expiresAt
}

// shard is an independent segment of the store. Returned deltas let the
// owner maintain global aggregates without a global lock.
type shard struct {
	sync.RWMutex
	items map[string]*entry
}

func newShard() *shard {
	return &shard{items: make(map[string]*entry)}
}

func (sh *shard) get(key string) (*entry, bool) {
	sh.RLock()
	e, hit := sh.items[key]
	sh.RUnlock()
	return e, hit
}

func (sh *shard) set(key string, e *entry) (bytesDelta, lenDelta int64) {
	sh.Lock()
	if old, hit := sh.items[key]; hit {
		sh.items[key] = e
		bytesDelta = e.weight - old.weight
	} else {
		sh.items[key] = e
		bytesDelta = e.weight
		lenDelta = 1
	}
	sh.Unlock()
	return
}

func (sh *shard) remove(key string) (freedBytes int64, hit bool) {
	sh.Lock()
	freedBytes, hit = sh.removeLocked(key)
	sh.Unlock()
	return
}

func (sh *shard) removeLocked(key string) (freedBytes int64, hit bool) {
	var old *entry
	if old, hit = sh.items[key]; hit {
		delete(sh.items, key)
		freedBytes = old.weight
	}
	return
}

func (sh *shard) removeIfSame(key string, observed *entry) (freedBytes int64, hit bool) {
	sh.Lock()
	if cur, ok := sh.items[key]; ok && cur == observed {
		delete(sh.items, key)
		freedBytes = cur.weight
		hit = true
	}
	sh.Unlock()
	return
}

func (sh *shard) removeExpired(now int64) (freedBytes, items int64) {
	sh.Lock()
	for key, e := range sh.items {
		if e.expired(now) {
			delete(sh.items, key)
			freedBytes += e.weight
			items++
		}
	}
	sh.Unlock()
	return
}

func (sh *shard) clear() (freedBytes, items int64) {
	sh.Lock()
	for key, e := range sh.items {
		delete(sh.items, key)
		freedBytes += e.weight
		items++
	}
	sh.Unlock()
	return
}

func (sh *shard) walk(now int64, fn func(key string, value any, expiresAt time.Time) bool) bool {
	sh.RLock()
	defer sh.RUnlock()
	for key, e := range sh.items {
		if e.expired(now) {
			continue
		}
		if !fn(key, e.value, time.Unix(0, e.expiresAt)) {
			return false
		}
	}
	return true
}
