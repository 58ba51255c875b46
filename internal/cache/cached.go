package cache

import (
	"context"
	"time"
)

// Host is the capability protocol a cache decorator needs from its owner:
// "dynamic dispatch via capability protocol" (spec §7 redesign notes). Any
// type that can hand back a *Cache for a given hint (e.g. a processor
// choosing between its status/catalog/config caches) satisfies Host.
type Host interface {
	GetCache(hint string) *Cache
}

// Cached wraps fn so that calls with the same method/args/kwargs within ttl
// return the cached value instead of invoking fn again. Concurrent misses
// for the same key are coalesced via singleflight so only one in-flight
// call to fn happens per key; every waiter receives that call's result.
func Cached[T any](host Host, hint, method string, args []any, kwargs map[string]any, ttl time.Duration, fn func(ctx context.Context) (T, error)) func(ctx context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		c := host.GetCache(hint)
		key := Key(method, args, kwargs)

		if v, ok := c.Get(key); ok {
			return v.(T), nil
		}

		type result struct {
			v   T
			err error
		}
		raw, err, _ := c.group.Do(key, func() (any, error) {
			v, err := fn(ctx)
			return result{v: v, err: err}, err
		})
		if err != nil {
			var zero T
			return zero, err
		}
		r := raw.(result)
		c.Put(key, r.v, ttl)
		return r.v, nil
	}
}
