package evecache

import "time"

// Typed is a view over one named instance with a fixed value type.
// The registry stores values type-erased because instances of different
// shapes share one map; call sites use a consistent value type per
// instance, and Typed gives that back at compile time.
type Typed[V any] struct {
	c    *Cache
	name string
}

func NewTyped[V any](c *Cache, name string) Typed[V] {
	return Typed[V]{c: c, name: name}
}

// Get returns the value for key. A cached value of the wrong dynamic
// type counts as a miss rather than a panic; that only happens when two
// call sites disagree about the instance's value shape.
func (t Typed[V]) Get(key string) (V, bool) {
	raw, hit := t.c.Get(t.name, key)
	if !hit {
		var zero V
		return zero, false
	}
	value, ok := raw.(V)
	if !ok {
		var zero V
		return zero, false
	}
	return value, true
}

func (t Typed[V]) Set(key string, value V, ttl time.Duration) {
	t.c.Set(t.name, key, value, ttl)
}

func (t Typed[V]) Delete(key string) {
	t.c.Delete(t.name, key)
}

func (t Typed[V]) GetOrCompute(key string, compute func() (V, error), ttl time.Duration) (V, error) {
	raw, err := t.c.GetOrCompute(t.name, key, func() (any, error) {
		return compute()
	}, ttl)
	if err != nil {
		var zero V
		return zero, err
	}
	value, ok := raw.(V)
	if !ok {
		// stale entry written by an untyped caller; recompute directly
		return compute()
	}
	return value, nil
}
