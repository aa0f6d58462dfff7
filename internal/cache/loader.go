package cache

import (
	"context"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Loader fronts a Cache: misses are filled by a load function and
// concurrent misses on one key share a single call. A load that overlaps
// an Invalidate returns its value but does not store it.
type Loader[T any] struct {
	cache  Cache[T]
	group  singleflight.Group
	gen    atomic.Uint64
	hits   atomic.Int64
	misses atomic.Int64
}

func NewLoader[T any](c Cache[T]) *Loader[T] {
	return &Loader[T]{cache: c}
}

// Get returns the cached value for key or stores the result of load.
// Errors are not cached.
func (l *Loader[T]) Get(ctx context.Context, key string, load func(context.Context) (T, error)) (T, error) {
	if v, ok := l.cache.Get(key); ok {
		l.hits.Add(1)
		return v, nil
	}
	l.misses.Add(1)
	gen := l.gen.Load()
	// Callers arriving after an Invalidate must not join an older flight.
	v, err, _ := l.group.Do(key+"@"+strconv.FormatUint(gen, 10), func() (any, error) {
		if v, ok := l.cache.Get(key); ok {
			return v, nil
		}
		v, err := load(ctx)
		if err != nil {
			return v, err
		}
		if l.gen.Load() == gen {
			l.cache.Set(key, v)
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate drops every key under prefix. Loads already in flight are
// not stored.
func (l *Loader[T]) Invalidate(prefix string) int {
	l.gen.Add(1)
	return l.cache.DeletePrefix(prefix)
}

// Stats reports hit and miss counters.
func (l *Loader[T]) Stats() (hits, misses int64) {
	return l.hits.Load(), l.misses.Load()
}
