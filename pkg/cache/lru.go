package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU is a size-bounded, concurrency-safe cache that evicts the least
// recently used entry once capacity is reached.
type LRU[K comparable, V any] struct {
	internal *lru.Cache[K, V]
}

func NewLRU[K comparable, V any](capacity int) (*LRU[K, V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("lru capacity must be positive, got %d", capacity)
	}
	c, err := lru.New[K, V](capacity)
	if err != nil {
		return nil, err
	}
	return &LRU[K, V]{internal: c}, nil
}

// Get returns the cached value and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	return c.internal.Get(key)
}

// Add stores value and reports whether an older entry was evicted.
func (c *LRU[K, V]) Add(key K, value V) bool {
	return c.internal.Add(key, value)
}

func (c *LRU[K, V]) Contains(key K) bool {
	return c.internal.Contains(key)
}

func (c *LRU[K, V]) Remove(key K) {
	c.internal.Remove(key)
}

func (c *LRU[K, V]) Len() int {
	return c.internal.Len()
}

func (c *LRU[K, V]) Purge() {
	c.internal.Purge()
}
