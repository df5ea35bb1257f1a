package resilience

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// opCache memoizes the most recent successful result per operation name for
// a short TTL. Failed calls are never cached, so the next call always
// re-attempts. Concurrent misses for the same operation are collapsed into a
// single in-flight call.
type opCache[T any] struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry[T]
	group   singleflight.Group
}

type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

func newOpCache[T any](ttl time.Duration) *opCache[T] {
	return &opCache[T]{
		ttl:     ttl,
		entries: make(map[string]cacheEntry[T]),
	}
}

func (c *opCache[T]) get(operation string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[operation]
	if !ok {
		var zero T
		return zero, false
	}
	if time.Now().After(entry.expiresAt) {
		// Expired - clean up lazily
		delete(c.entries, operation)
		var zero T
		return zero, false
	}
	return entry.value, true
}

func (c *opCache[T]) set(operation string, value T) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[operation] = cacheEntry[T]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// do runs fn, collapsing concurrent calls for the same operation into one.
func (c *opCache[T]) do(operation string, fn func() (T, error)) (T, error) {
	v, err, _ := c.group.Do(operation, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
