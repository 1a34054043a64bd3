// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

// Package cache provides the in-process data structures used for caching
// within Bingelog, chiefly the resolver's resolution cache.
package cache

import "sync"

// entry is a node in the LRU's doubly-linked list.
type entry[V any] struct {
	key   string
	value V
	prev  *entry[V]
	next  *entry[V]
}

// LRU is a thread-safe least-recently-used cache keyed by string.
// Entries never expire on their own; the owner invalidates them explicitly
// (via Remove or Clear). This matches the resolution cache lifecycle, which
// is only flushed on a catalog-refresh signal.
//
// A doubly-linked list tracks recency and a map provides O(1) lookup, so
// Get, Add, Remove and eviction are all O(1).
type LRU[V any] struct {
	mu sync.Mutex

	capacity int
	items    map[string]*entry[V]

	// head.next is most recently used, tail.prev least recently used.
	head *entry[V]
	tail *entry[V]

	hits   int64
	misses int64
}

// NewLRU creates an LRU with the given capacity. Non-positive capacities
// fall back to a large default.
func NewLRU[V any](capacity int) *LRU[V] {
	if capacity <= 0 {
		capacity = 10000
	}

	c := &LRU[V]{
		capacity: capacity,
		items:    make(map[string]*entry[V], capacity),
		head:     &entry[V]{},
		tail:     &entry[V]{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get retrieves a value and marks it most recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		c.moveToFront(e)
		c.hits++
		return e.value, true
	}

	c.misses++
	var zero V
	return zero, false
}

// Add inserts or updates a value. Concurrent adds for the same key converge
// to the last writer's value. The least recently used entry is evicted when
// the cache is over capacity.
func (c *LRU[V]) Add(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value}
	c.addToFront(e)
	c.items[key] = e

	for len(c.items) > c.capacity {
		c.evictOldest()
	}
}

// Remove deletes a key. Returns true if it was present.
func (c *LRU[V]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		c.removeEntry(e)
		return true
	}
	return false
}

// Clear drops every entry. Hit/miss counters are preserved.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*entry[V], c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// Len returns the number of cached entries.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns cumulative hit and miss counts.
func (c *LRU[V]) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *LRU[V]) moveToFront(e *entry[V]) {
	c.unlink(e)
	c.addToFront(e)
}

func (c *LRU[V]) addToFront(e *entry[V]) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *LRU[V]) unlink(e *entry[V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (c *LRU[V]) removeEntry(e *entry[V]) {
	c.unlink(e)
	delete(c.items, e.key)
}

func (c *LRU[V]) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
}
