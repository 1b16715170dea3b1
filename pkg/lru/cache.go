// Package lru provides a bounded least-recently-used set used to drop
// duplicates without unbounded memory.
package lru

import "container/list"

// Cache is a fixed-capacity LRU set. Looking up or re-adding a key marks it
// as most recently used; when full, the least recently used key is evicted.
// A Cache is not safe for concurrent use.
type Cache[K comparable] struct {
	capacity int
	items    map[K]*list.Element
	order    *list.List // front = most recent, back = least recent
}

// New creates a new LRU cache with the given capacity.
func New[K comparable](capacity int) *Cache[K] {
	return &Cache[K]{
		capacity: capacity,
		items:    make(map[K]*list.Element),
		order:    list.New(),
	}
}

// Contains reports whether key is present, marking it as recently used.
func (c *Cache[K]) Contains(key K) bool {
	elem, exists := c.items[key]
	if exists {
		c.order.MoveToFront(elem)
	}
	return exists
}

// Add adds a key to the cache, evicting the least recently used entry when
// at capacity. Returns true if the key was newly added.
func (c *Cache[K]) Add(key K) bool {
	if c.capacity <= 0 {
		return false // Zero or negative capacity means no caching
	}

	if elem, exists := c.items[key]; exists {
		c.order.MoveToFront(elem)
		return false
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			delete(c.items, oldest.Value.(K))
			c.order.Remove(oldest)
		}
	}

	c.items[key] = c.order.PushFront(key)
	return true
}

// Len returns the current number of items in the cache.
func (c *Cache[K]) Len() int {
	return len(c.items)
}
