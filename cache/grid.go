// Copyright 2016-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package cache provides name-based caching of grid cache handles.
// It wraps some other grid engine.  Most methods pass through to the
// underlying objects, but Grid.Cache returns a cached handle when it
// has one.
//
// Object identity
//
// Cached handles use name identity.  A handle always refers to the
// cache with its name, even if that cache is removed and recreated:
//
//     c, _ := g.Cache("c")
//     g.RemoveCache("c")
//     g.CreateCache("c", grid.CacheConfig{})
//     err := c.Put("k", []byte("v"), grid.WriteOptions{})
//
// On an engine that identifies caches by an internal ID, the Put
// would fail with ErrNoSuchCache; here it finds the new cache.
package cache

import (
	"github.com/diffeo/go-gridrest/grid"
)

// DefaultSize is the number of cache handles kept by New.
const DefaultSize = 64

type cacheGrid struct {
	backend grid.Grid
	caches  *lru[*cache]
}

// New creates a new caching grid, wrapping some other grid.
func New(backend grid.Grid) grid.Grid {
	return NewWithSize(backend, DefaultSize)
}

// NewWithSize creates a caching grid that holds at most size cache
// handles.
func NewWithSize(backend grid.Grid, size int) grid.Grid {
	return &cacheGrid{
		backend: backend,
		caches:  newLRU[*cache](size),
	}
}

func (g *cacheGrid) Cache(name string) (grid.Cache, error) {
	c, err := g.caches.Get(name, func(n string) (*cache, error) {
		upstream, err := g.backend.Cache(n)
		if err != nil {
			return nil, err
		}
		return newCache(upstream, g), nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (g *cacheGrid) invalidate(name string) {
	g.caches.Remove(name)
}

func (g *cacheGrid) CacheNames() ([]string, error) {
	return g.backend.CacheNames()
}

func (g *cacheGrid) CreateCache(name string, config grid.CacheConfig) (grid.Cache, error) {
	upstream, err := g.backend.CreateCache(name, config)
	if err != nil {
		return nil, err
	}
	c := newCache(upstream, g)
	g.caches.Put(c)
	return c, nil
}

func (g *cacheGrid) RemoveCache(name string) error {
	g.invalidate(name)
	return g.backend.RemoveCache(name)
}

func (g *cacheGrid) SubscribeConfig(buffer int) *grid.Subscription {
	return g.backend.SubscribeConfig(buffer)
}

func (g *cacheGrid) NodeName() string {
	return g.backend.NodeName()
}

func (g *cacheGrid) NodeAddress() string {
	return g.backend.NodeAddress()
}
