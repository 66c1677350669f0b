// Package normalcache memoizes computed climate normals per grid cell with
// an at-most-one-computation-in-flight guarantee: concurrent requests for the
// same uncached key coalesce into a single computation and all waiters share
// the result.
package normalcache

import (
	"context"
	"sync"

	"github.com/couchcryptid/precip-forecast/internal/domain"
)

// Normals is the cached value: every computed bucket for one grid cell.
type Normals = map[domain.Period]domain.ClimateNormal

// ComputeFunc produces the normals for a key on cache miss.
type ComputeFunc func(ctx context.Context) (Normals, error)

// Cache is a bounded LRU of computed normals with per-key single-flight.
// Reads are concurrent; at most one computation runs per key at a time.
type Cache struct {
	maxEntries int

	mu      sync.Mutex
	entries map[string]*entry
	head    *entry // most recently used
	tail    *entry // least recently used
}

type entry struct {
	key   string
	prev  *entry
	next  *entry
	ready chan struct{} // closed once the computation finishes
	value Normals
	err   error
}

func New(maxEntries int) *Cache {
	return &Cache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

// Get returns the cached normals for key, computing them at most once when
// absent. Waiters block until the in-flight computation finishes or their
// context is cancelled; the computation itself is not cancelled by a single
// waiter giving up.
func (c *Cache) Get(ctx context.Context, key string, compute ComputeFunc) (Normals, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.moveToFront(e)
		c.mu.Unlock()
		select {
		case <-e.ready:
			return e.value, e.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	e := &entry{key: key, ready: make(chan struct{})}
	c.entries[key] = e
	c.addToFront(e)
	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
	c.mu.Unlock()

	e.value, e.err = compute(ctx)
	close(e.ready)

	if e.err != nil {
		// Failed computations are not cached so the next request retries.
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur == e {
			delete(c.entries, key)
			c.remove(e)
		}
		c.mu.Unlock()
	}
	return e.value, e.err
}

// Invalidate drops the entry for key. In-flight waiters still receive the
// result they are waiting on; subsequent Gets recompute.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.remove(e)
	}
}

// Len reports the number of cached (or in-flight) entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *Cache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (c *Cache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
