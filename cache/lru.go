// Copyright 2016-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package cache

// This file provides a simple LRU cache, keyed by name.  Cache
// handles are looked up by name far more often than they change, and
// lookup-by-name is what the REST layer does on every request.

import (
	"container/list"
	"sync"
)

// named describes things with names, like grid caches.
type named interface {
	Name() string
}

// lru is a least-recently-used cache with a fixed capacity.  The cache
// can be safely accessed from multiple goroutines.
type lru[T named] struct {
	size      int
	lock      sync.RWMutex
	evictList *list.List
	index     map[string]*list.Element
}

func newLRU[T named](size int) *lru[T] {
	return &lru[T]{
		size:      size,
		evictList: list.New(),
		index:     make(map[string]*list.Element),
	}
}

// Get retrieves an item from the cache.  If it is not present, calls
// fetch, and if that succeeds, saves the item and returns it.  An
// error is only returned from fetch.
func (c *lru[T]) Get(name string, fetch func(string) (T, error)) (T, error) {
	// Moving the hit to the back of the list needs the writer
	// lock
	c.lock.Lock()
	defer c.lock.Unlock()

	if element, present := c.index[name]; present {
		c.evictList.MoveToBack(element)
		return element.Value.(T), nil
	}

	item, err := fetch(name)
	if err != nil {
		return item, err
	}
	c.add(item)
	return item, nil
}

// Peek returns an item if present without changing its recency.
func (c *lru[T]) Peek(name string) (item T, ok bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if element, present := c.index[name]; present {
		return element.Value.(T), true
	}
	return
}

// Put adds or replaces an item, possibly evicting something.
func (c *lru[T]) Put(item T) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if element, present := c.index[item.Name()]; present {
		element.Value = item
		c.evictList.MoveToBack(element)
		return
	}
	c.add(item)
}

// Remove takes an item out of the cache.  It does nothing if that
// name does not exist.
func (c *lru[T]) Remove(name string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if element, present := c.index[name]; present {
		delete(c.index, name)
		c.evictList.Remove(element)
	}
}

// Len returns the number of items held.
func (c *lru[T]) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return len(c.index)
}

// add runs under the write lock and adds an item known to be absent.
func (c *lru[T]) add(item T) {
	element := c.evictList.PushBack(item)
	c.index[item.Name()] = element

	for len(c.index) > c.size {
		head := c.evictList.Front()
		delete(c.index, head.Value.(T).Name())
		c.evictList.Remove(head)
	}
}
