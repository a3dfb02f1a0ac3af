// Package cache provides caching utilities for capture log readers.
package cache

import (
	"fmt"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/usestring/aptrace/pkg/aplog"
)

// HeaderCache provides thread-safe LRU caching for parsed connection
// headers. Concurrent misses on the same index share one load.
type HeaderCache struct {
	cache *lru.Cache[int, *aplog.Header]
	group singleflight.Group
}

// NewHeaderCache creates a new LRU cache with the specified maximum number of items.
func NewHeaderCache(maxItems int) (*HeaderCache, error) {
	c, err := lru.New[int, *aplog.Header](maxItems)
	if err != nil {
		return nil, err
	}
	return &HeaderCache{cache: c}, nil
}

// Get retrieves a header from the cache by connection index.
func (c *HeaderCache) Get(index int) (*aplog.Header, bool) {
	return c.cache.Get(index)
}

// Put adds or updates a header in the cache.
func (c *HeaderCache) Put(index int, h *aplog.Header) {
	c.cache.Add(index, h)
}

// GetOrLoad returns the cached header for index, calling load on a miss.
// Errors are not cached.
func (c *HeaderCache) GetOrLoad(index int, load func() (*aplog.Header, error)) (*aplog.Header, error) {
	if h, ok := c.cache.Get(index); ok {
		return h, nil
	}

	v, err, _ := c.group.Do(strconv.Itoa(index), func() (any, error) {
		h, err := load()
		if err != nil {
			return nil, err
		}
		c.cache.Add(index, h)
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*aplog.Header), nil
}

// Len returns the current number of items in the cache.
func (c *HeaderCache) Len() int {
	return c.cache.Len()
}

// OpenLog opens the capture log at path behind a header cache of maxItems
// entries. A non-positive maxItems opens it uncached.
func OpenLog(path string, maxItems int) (*aplog.Reader, error) {
	if maxItems <= 0 {
		return aplog.Open(path)
	}
	c, err := NewHeaderCache(maxItems)
	if err != nil {
		return nil, fmt.Errorf("creating header cache: %w", err)
	}
	return aplog.Open(path, aplog.WithHeaderCache(c))
}
