// Copyright 2016-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package cache

import (
	"sync"

	"github.com/diffeo/go-gridrest/grid"
)

type cache struct {
	name string
	grid *cacheGrid

	lock     sync.RWMutex
	upstream grid.Cache
}

func newCache(upstream grid.Cache, g *cacheGrid) *cache {
	return &cache{
		name:     upstream.Name(),
		grid:     g,
		upstream: upstream,
	}
}

// current returns the upstream handle.
func (c *cache) current() grid.Cache {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.upstream
}

// refresh re-fetches the upstream cache by name.  It should be called
// when a method on the upstream handle has returned ErrNoSuchCache.
// On error this handle is dropped from the grid's cache and the
// lookup error is returned.
func (c *cache) refresh(stale grid.Cache) error {
	upstream, err := c.grid.backend.Cache(c.name)
	if err != nil {
		c.grid.invalidate(c.name)
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.upstream == stale {
		c.upstream = upstream
	}
	return nil
}

// withCache calls f with the upstream cache.  If that returns
// ErrNoSuchCache, refreshes the handle once and tries again.  A
// failed refresh returns the original error.
func (c *cache) withCache(f func(grid.Cache) error) error {
	upstream := c.current()
	err := f(upstream)
	if _, gone := err.(grid.ErrNoSuchCache); !gone {
		return err
	}
	if c.refresh(upstream) != nil {
		return err
	}
	return f(c.current())
}

func (c *cache) Name() string {
	return c.name
}

func (c *cache) Config() (config grid.CacheConfig, err error) {
	err = c.withCache(func(upstream grid.Cache) (err error) {
		config, err = upstream.Config()
		return
	})
	return
}

func (c *cache) Get(key string) (entry *grid.Entry, err error) {
	err = c.withCache(func(upstream grid.Cache) (err error) {
		entry, err = upstream.Get(key)
		return
	})
	return
}

func (c *cache) Put(key string, value []byte, options grid.WriteOptions) error {
	return c.withCache(func(upstream grid.Cache) error {
		return upstream.Put(key, value, options)
	})
}

func (c *cache) PutIfAbsent(key string, value []byte, options grid.WriteOptions) (stored bool, err error) {
	err = c.withCache(func(upstream grid.Cache) (err error) {
		stored, err = upstream.PutIfAbsent(key, value, options)
		return
	})
	return
}

func (c *cache) Replace(key string, expected, value []byte, options grid.WriteOptions) (replaced bool, err error) {
	err = c.withCache(func(upstream grid.Cache) (err error) {
		replaced, err = upstream.Replace(key, expected, value, options)
		return
	})
	return
}

func (c *cache) Remove(key string) (removed bool, err error) {
	err = c.withCache(func(upstream grid.Cache) (err error) {
		removed, err = upstream.Remove(key)
		return
	})
	return
}

func (c *cache) Clear() error {
	return c.withCache(func(upstream grid.Cache) error {
		return upstream.Clear()
	})
}

func (c *cache) Size() (size int, err error) {
	err = c.withCache(func(upstream grid.Cache) (err error) {
		size, err = upstream.Size()
		return
	})
	return
}

func (c *cache) Keys() (keys []string, err error) {
	err = c.withCache(func(upstream grid.Cache) (err error) {
		keys, err = upstream.Keys()
		return
	})
	return
}

func (c *cache) Stats() (stats grid.CacheStats, err error) {
	err = c.withCache(func(upstream grid.Cache) (err error) {
		stats, err = upstream.Stats()
		return
	})
	return
}

func (c *cache) ResetStats() error {
	return c.withCache(func(upstream grid.Cache) error {
		return upstream.ResetStats()
	})
}
