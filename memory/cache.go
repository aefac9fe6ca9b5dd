// Copyright 2015-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package memory

import (
	"bytes"
	"sort"
	"time"

	"github.com/diffeo/go-gridrest/grid"
)

// memCache is a container type for a grid.Cache.
type memCache struct {
	name    string
	grid    *memGrid
	config  grid.CacheConfig
	entries map[string]*grid.Entry
	stats   grid.CacheStats
	started time.Time
	reset   time.Time
	deleted bool
}

func newCache(g *memGrid, name string, config grid.CacheConfig) *memCache {
	now := g.clock.Now()
	return &memCache{
		name:    name,
		grid:    g,
		config:  config,
		entries: make(map[string]*grid.Entry),
		started: now,
		reset:   now,
	}
}

func (c *memCache) Grid() *memGrid {
	return c.grid
}

// do runs f under the global lock, failing if the cache has been
// removed.
func (c *memCache) do(f func() error) error {
	globalLock(c)
	defer globalUnlock(c)

	if c.deleted {
		return grid.ErrNoSuchCache{Name: c.name}
	}
	return f()
}

// live returns the entry for key if it exists and has not expired,
// dropping it if it has.  Runs under the global lock.
func (c *memCache) live(key string, now time.Time) *grid.Entry {
	entry := c.entries[key]
	if entry == nil {
		return nil
	}
	if entry.Expired(now) {
		delete(c.entries, key)
		return nil
	}
	return entry
}

// purge drops every expired entry.  Runs under the global lock.
func (c *memCache) purge(now time.Time) {
	for key, entry := range c.entries {
		if entry.Expired(now) {
			delete(c.entries, key)
		}
	}
}

// makeEntry builds a fresh entry from write options.
func (c *memCache) makeEntry(key string, value []byte, options grid.WriteOptions, now time.Time) *grid.Entry {
	mediaType := c.config.Encoding
	if mediaType.Is(grid.UnknownType) {
		mediaType = options.MediaType
		if mediaType.IsZero() {
			mediaType = grid.OctetStreamType
		}
	}
	return &grid.Entry{
		Key:       key,
		Value:     append([]byte(nil), value...),
		MediaType: mediaType,
		Created:   now,
		LastUsed:  now,
		Lifespan:  grid.ResolveLifetime(options.Lifespan, c.config.Lifespan),
		MaxIdle:   grid.ResolveLifetime(options.MaxIdle, c.config.MaxIdle),
	}
}

// grid.Cache interface:

func (c *memCache) Name() string {
	return c.name
}

func (c *memCache) Config() (config grid.CacheConfig, err error) {
	err = c.do(func() error {
		config = c.config
		config.Sites = append([]string(nil), c.config.Sites...)
		return nil
	})
	return
}

func (c *memCache) Get(key string) (result *grid.Entry, err error) {
	if key == "" {
		return nil, grid.ErrNoKey
	}
	err = c.do(func() error {
		now := c.grid.clock.Now()
		entry := c.live(key, now)
		if entry == nil {
			c.stats.Misses++
			return nil
		}
		c.stats.Hits++
		entry.LastUsed = now
		copied := *entry
		copied.Value = append([]byte(nil), entry.Value...)
		result = &copied
		return nil
	})
	return
}

func (c *memCache) Put(key string, value []byte, options grid.WriteOptions) error {
	if key == "" {
		return grid.ErrNoKey
	}
	return c.do(func() error {
		now := c.grid.clock.Now()
		c.entries[key] = c.makeEntry(key, value, options, now)
		c.stats.Stores++
		return nil
	})
}

func (c *memCache) PutIfAbsent(key string, value []byte, options grid.WriteOptions) (stored bool, err error) {
	if key == "" {
		return false, grid.ErrNoKey
	}
	err = c.do(func() error {
		now := c.grid.clock.Now()
		if c.live(key, now) != nil {
			return nil
		}
		c.entries[key] = c.makeEntry(key, value, options, now)
		c.stats.Stores++
		stored = true
		return nil
	})
	return
}

func (c *memCache) Replace(key string, expected, value []byte, options grid.WriteOptions) (replaced bool, err error) {
	if key == "" {
		return false, grid.ErrNoKey
	}
	err = c.do(func() error {
		now := c.grid.clock.Now()
		entry := c.live(key, now)
		if entry == nil || !bytes.Equal(entry.Value, expected) {
			return nil
		}
		c.entries[key] = c.makeEntry(key, value, options, now)
		c.stats.Stores++
		replaced = true
		return nil
	})
	return
}

func (c *memCache) Remove(key string) (removed bool, err error) {
	if key == "" {
		return false, grid.ErrNoKey
	}
	err = c.do(func() error {
		if c.live(key, c.grid.clock.Now()) != nil {
			delete(c.entries, key)
			c.stats.Removes++
			removed = true
		}
		return nil
	})
	return
}

func (c *memCache) Clear() error {
	return c.do(func() error {
		c.entries = make(map[string]*grid.Entry)
		return nil
	})
}

func (c *memCache) Size() (size int, err error) {
	err = c.do(func() error {
		c.purge(c.grid.clock.Now())
		size = len(c.entries)
		return nil
	})
	return
}

func (c *memCache) Keys() (keys []string, err error) {
	err = c.do(func() error {
		c.purge(c.grid.clock.Now())
		keys = make([]string, 0, len(c.entries))
		for key := range c.entries {
			keys = append(keys, key)
		}
		return nil
	})
	sort.Strings(keys)
	return
}

func (c *memCache) Stats() (stats grid.CacheStats, err error) {
	err = c.do(func() error {
		now := c.grid.clock.Now()
		c.purge(now)
		stats = c.stats
		stats.CurrentEntries = len(c.entries)
		stats.TimeSinceStart = now.Sub(c.started)
		stats.TimeSinceReset = now.Sub(c.reset)
		stats.RequiredMinNodes = 1
		return nil
	})
	return
}

func (c *memCache) ResetStats() error {
	return c.do(func() error {
		c.stats = grid.CacheStats{}
		c.reset = c.grid.clock.Now()
		return nil
	})
}
