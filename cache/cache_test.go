// Copyright 2016-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package cache_test

import (
	"testing"

	"github.com/diffeo/go-gridrest/cache"
	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/grid/gridtest"
	"github.com/diffeo/go-gridrest/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// Suite runs the generic tests over a cached memory grid.
type Suite struct {
	gridtest.Suite
}

// SetupSuite does global setup for the test suite.
func (s *Suite) SetupSuite() {
	s.Suite.SetupSuite()
	s.Grid = cache.New(memory.NewWithClock(s.Clock))
}

// TestGrid runs the generic grid tests.
func TestGrid(t *testing.T) {
	suite.Run(t, &Suite{})
}

// TestNameIdentity checks that a cached handle follows a cache that
// is removed and recreated behind its back.
func TestNameIdentity(t *testing.T) {
	backend := memory.New()
	g := cache.New(backend)

	_, err := backend.CreateCache("c", grid.CacheConfig{})
	require.NoError(t, err)
	c, err := g.Cache("c")
	require.NoError(t, err)

	require.NoError(t, backend.RemoveCache("c"))
	_, err = backend.CreateCache("c", grid.CacheConfig{})
	require.NoError(t, err)

	err = c.Put("k", []byte("v"), grid.WriteOptions{MediaType: grid.TextPlainType})
	assert.NoError(t, err)

	upstream, err := backend.Cache("c")
	require.NoError(t, err)
	entry, err := upstream.Get("k")
	if assert.NoError(t, err) && assert.NotNil(t, entry) {
		assert.Equal(t, []byte("v"), entry.Value)
	}
}

// TestGone checks that a handle to a removed cache reports it.
func TestGone(t *testing.T) {
	backend := memory.New()
	g := cache.New(backend)

	c, err := g.CreateCache("c", grid.CacheConfig{})
	require.NoError(t, err)
	require.NoError(t, backend.RemoveCache("c"))

	_, err = c.Get("k")
	assert.Equal(t, grid.ErrNoSuchCache{Name: "c"}, err)

	_, err = g.Cache("c")
	assert.Equal(t, grid.ErrNoSuchCache{Name: "c"}, err)
}
