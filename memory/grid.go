// Copyright 2015-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package memory provides an in-process, in-memory implementation of
// the grid engine interfaces.  There is no persistence and no
// replication.  The entire grid is behind a single global mutex to
// protect against concurrent updates; in some cases this can limit
// performance in the name of correctness.
//
// This is mostly intended as a simple reference engine that can be
// used for testing, including in-process testing of the REST layer.
// It is generally tuned for correctness, not performance or
// scalability.
package memory

import (
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-gridrest/grid"
)

// New creates a new grid that operates purely in memory.
func New() grid.Grid {
	return NewWithClock(clock.New())
}

// NewWithClock creates a new in-memory grid with an explicit time
// source.  Most application code should call New(); this entry point
// is intended for tests that need to inject a mock time source.
func NewWithClock(clk clock.Clock) grid.Grid {
	return NewNode("local", "", clk)
}

// NewNode creates a new in-memory grid that reports the given node
// name and address in topology queries.
func NewNode(name, address string, clk clock.Clock) grid.Grid {
	return &memGrid{
		caches:      make(map[string]*memCache),
		clock:       clk,
		nodeName:    name,
		nodeAddress: address,
	}
}

// gridable is a common interface for objects that need to take the
// global lock on the grid state.
type gridable interface {
	// Grid returns a pointer to the grid object at the root of
	// this object tree.
	Grid() *memGrid
}

// globalLock locks the grid object at the root of the object tree.
// Pair this with globalUnlock, as
//
//     globalLock(self)
//     defer globalUnlock(self)
func globalLock(g gridable) {
	g.Grid().sem.Lock()
}

// globalUnlock unlocks the grid object at the root of the object
// tree.
func globalUnlock(g gridable) {
	g.Grid().sem.Unlock()
}

type memGrid struct {
	caches      map[string]*memCache
	listeners   grid.Listeners
	clock       clock.Clock
	nodeName    string
	nodeAddress string
	sem         sync.Mutex
}

func (g *memGrid) Grid() *memGrid {
	return g
}

func (g *memGrid) Cache(name string) (grid.Cache, error) {
	globalLock(g)
	defer globalUnlock(g)

	cache, present := g.caches[name]
	if !present {
		return nil, grid.ErrNoSuchCache{Name: name}
	}
	return cache, nil
}

func (g *memGrid) CacheNames() ([]string, error) {
	globalLock(g)
	defer globalUnlock(g)

	names := make([]string, 0, len(g.caches))
	for name := range g.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (g *memGrid) CreateCache(name string, config grid.CacheConfig) (grid.Cache, error) {
	if config.Encoding.IsZero() {
		config.Encoding = grid.UnknownType
	}
	config.Sites = append([]string(nil), config.Sites...)

	globalLock(g)
	if _, present := g.caches[name]; present {
		globalUnlock(g)
		return nil, grid.ErrCacheExists{Name: name}
	}
	cache := newCache(g, name, config)
	g.caches[name] = cache
	globalUnlock(g)

	g.listeners.Publish(grid.ConfigEvent{
		Kind:   grid.CacheCreated,
		Name:   name,
		Config: config,
	})
	return cache, nil
}

func (g *memGrid) RemoveCache(name string) error {
	globalLock(g)
	cache, present := g.caches[name]
	if !present {
		globalUnlock(g)
		return grid.ErrNoSuchCache{Name: name}
	}
	delete(g.caches, name)
	cache.deleted = true
	config := cache.config
	globalUnlock(g)

	g.listeners.Publish(grid.ConfigEvent{
		Kind:   grid.CacheRemoved,
		Name:   name,
		Config: config,
	})
	return nil
}

func (g *memGrid) SubscribeConfig(buffer int) *grid.Subscription {
	return g.listeners.Subscribe(buffer)
}

func (g *memGrid) NodeName() string {
	return g.nodeName
}

func (g *memGrid) NodeAddress() string {
	return g.nodeAddress
}
