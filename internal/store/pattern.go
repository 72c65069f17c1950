package store

import (
	"strings"
	"sync/atomic"
)

// InvalidatePattern bulk-removes entries whose key matches pattern and
// returns the count removed. The pattern language is a '*' wildcard
// matching any substring; everything else matches literally. The full
// scan is O(n), fine for a rare targeted operation.
func (s *Store) InvalidatePattern(pattern string) int {
	m := compilePattern(pattern)
	var removed int
	for _, sh := range s.shards {
		sh.Lock()
		for key := range sh.items {
			if !m.match(key) {
				continue
			}
			freed, hit := sh.removeLocked(key)
			if hit {
				atomic.AddInt64(&s.len, -1)
				atomic.AddInt64(&s.mem, -freed)
				removed++
			}
		}
		sh.Unlock()
	}
	return removed
}

// matcher holds a pattern split on '*' into literal segments.
// Keys may contain any bytes, including path and bracket characters
// that filepath.Match would treat specially, so matching is done on
// raw segments instead.
type matcher struct {
	segments []string
	wildcard bool
}

func compilePattern(pattern string) matcher {
	if !strings.Contains(pattern, "*") {
		return matcher{segments: []string{pattern}}
	}
	return matcher{segments: strings.Split(pattern, "*"), wildcard: true}
}

func (m matcher) match(key string) bool {
	if !m.wildcard {
		return key == m.segments[0]
	}

	first, last := m.segments[0], m.segments[len(m.segments)-1]
	if !strings.HasPrefix(key, first) || !strings.HasSuffix(key[len(first):], last) {
		return false
	}

	rest := key[len(first) : len(key)-len(last)]
	for _, seg := range m.segments[1 : len(m.segments)-1] {
		idx := strings.Index(rest, seg)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(seg):]
	}
	return true
}
