package artifact

import (
	"sync"

	"github.com/chazu/scopeproxy/model"
)

type cacheKey struct {
	typeID   string
	contract Contract
}

type cacheEntry[A any] struct {
	once     sync.Once
	artifact A
	err      error
	built    bool // guarded by Cache.mu
}

// Cache memoizes a Builder by type ID and contract. Each artifact is built
// at most once, even under concurrent requests. Failed builds are not
// remembered.
type Cache[A any] struct {
	builder Builder[A]

	mu      sync.Mutex
	entries map[cacheKey]*cacheEntry[A]
}

// NewCache wraps builder.
func NewCache[A any](builder Builder[A]) *Cache[A] {
	return &Cache[A]{
		builder: builder,
		entries: make(map[cacheKey]*cacheEntry[A]),
	}
}

// Get returns the artifact for m and c, building it on first use.
func (c *Cache[A]) Get(m *model.Model, ct Contract) (A, error) {
	key := cacheKey{typeID: m.TypeID(), contract: ct}

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry[A]{}
		c.entries[key] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		log.Debugf("building artifact for %s (%s)", key.typeID, ct)
		e.artifact, e.err = c.builder.Build(m, ct)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if e.err != nil {
		if c.entries[key] == e {
			delete(c.entries, key)
		}
		var zero A
		return zero, e.err
	}
	e.built = true
	return e.artifact, nil
}

// Lookup returns a previously built artifact without building.
func (c *Cache[A]) Lookup(typeID string, ct Contract) (A, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[cacheKey{typeID: typeID, contract: ct}]
	if !ok || !e.built {
		var zero A
		return zero, false
	}
	return e.artifact, true
}

// Len returns the number of cached artifacts.
func (c *Cache[A]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
