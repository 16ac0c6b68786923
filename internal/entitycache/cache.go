// Package entitycache is the bounded read-through cache of full backend
// entities shared by the models of one kind.
package entitycache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/d1vanov/quentier-sub007/internal/metrics"
)

// Cache keeps the most recently used entities by local id. It is safe for
// concurrent use by several models.
type Cache[E any] struct {
	kind     string
	entries  *lru.Cache[string, E]
	recorder metrics.Recorder
}

// New creates a cache holding at most capacity entities of kind.
func New[E any](kind string, capacity int, recorder metrics.Recorder) (*Cache[E], error) {
	entries, err := lru.New[string, E](capacity)
	if err != nil {
		return nil, fmt.Errorf("create %s cache: %w", kind, err)
	}
	return &Cache[E]{
		kind:     kind,
		entries:  entries,
		recorder: metrics.OrNoop(recorder),
	}, nil
}

// Get returns the cached entity and marks it recently used.
func (c *Cache[E]) Get(localID string) (E, bool) {
	e, ok := c.entries.Get(localID)
	c.recorder.ObserveCache(c.kind, ok)
	return e, ok
}

// Peek returns the cached entity without touching its recency or the metrics.
func (c *Cache[E]) Peek(localID string) (E, bool) {
	return c.entries.Peek(localID)
}

// Put stores e under localID, evicting the least recently used entity when full.
func (c *Cache[E]) Put(localID string, e E) {
	c.entries.Add(localID, e)
}

// Remove drops localID from the cache.
func (c *Cache[E]) Remove(localID string) {
	c.entries.Remove(localID)
}

// Len returns the number of cached entities.
func (c *Cache[E]) Len() int {
	return c.entries.Len()
}

// Purge empties the cache.
func (c *Cache[E]) Purge() {
	c.entries.Purge()
}
