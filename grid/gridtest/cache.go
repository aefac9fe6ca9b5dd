// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package gridtest

import (
	"time"

	"github.com/diffeo/go-gridrest/grid"
)

var textOptions = grid.WriteOptions{MediaType: grid.TextPlainType}

// TestCacheLifecycle checks creating, listing, and removing caches.
func (s *Suite) TestCacheLifecycle() {
	name := s.cacheName()
	s.makeCache(grid.CacheConfig{Encoding: grid.TextPlainType})

	_, err := s.Grid.CreateCache(name, grid.CacheConfig{})
	s.IsType(grid.ErrCacheExists{}, err)

	names, err := s.Grid.CacheNames()
	if s.NoError(err) {
		s.Contains(names, name)
	}

	cache, err := s.Grid.Cache(name)
	if s.NoError(err) {
		s.Equal(name, cache.Name())
		config, err := cache.Config()
		if s.NoError(err) {
			s.True(config.Encoding.Is(grid.TextPlainType))
		}
	}

	s.NoError(s.Grid.RemoveCache(name))
	_, err = s.Grid.Cache(name)
	s.Equal(grid.ErrNoSuchCache{Name: name}, err)
	s.Equal(grid.ErrNoSuchCache{Name: name}, s.Grid.RemoveCache(name))
}

// TestConfigEvents checks that cache creation and removal are
// published to subscribers.
func (s *Suite) TestConfigEvents() {
	name := s.cacheName()
	_ = s.Grid.RemoveCache(name)

	sub := s.Grid.SubscribeConfig(8)
	defer sub.Close()

	_, err := s.Grid.CreateCache(name, grid.CacheConfig{})
	s.Require().NoError(err)
	s.NoError(s.Grid.RemoveCache(name))

	var kinds []grid.ConfigEventKind
	timeout := time.After(5 * time.Second)
	for len(kinds) < 2 {
		select {
		case ev := <-sub.Events():
			if ev.Name == name {
				kinds = append(kinds, ev.Kind)
			}
		case <-timeout:
			s.Fail("timed out waiting for events")
			return
		}
	}
	s.Equal([]grid.ConfigEventKind{grid.CacheCreated, grid.CacheRemoved}, kinds)
}

// TestPutGet checks the basic store and fetch path.
func (s *Suite) TestPutGet() {
	cache := s.makeCache(grid.CacheConfig{Encoding: grid.TextPlainType})

	entry, err := cache.Get("k")
	s.NoError(err)
	s.Nil(entry)

	s.NoError(cache.Put("k", []byte("hello"), textOptions))
	entry, err = cache.Get("k")
	if s.NoError(err) && s.NotNil(entry) {
		s.Equal("k", entry.Key)
		s.Equal([]byte("hello"), entry.Value)
		s.True(entry.MediaType.Is(grid.TextPlainType))
		s.Equal(s.Clock.Now().UTC(), entry.Created.UTC())
	}

	s.NoError(cache.Put("k", []byte("world"), textOptions))
	entry, err = cache.Get("k")
	if s.NoError(err) && s.NotNil(entry) {
		s.Equal([]byte("world"), entry.Value)
	}
}

// TestUnknownEncoding checks that a cache storing "unknown" values
// keeps each entry's own media type.
func (s *Suite) TestUnknownEncoding() {
	cache := s.makeCache(grid.CacheConfig{Encoding: grid.UnknownType})
	s.NoError(cache.Put("j", []byte(`{"a":1}`), grid.WriteOptions{MediaType: grid.JSONType}))
	s.NoError(cache.Put("t", []byte("x"), textOptions))

	entry, err := cache.Get("j")
	if s.NoError(err) && s.NotNil(entry) {
		s.True(entry.MediaType.Is(grid.JSONType))
	}
	entry, err = cache.Get("t")
	if s.NoError(err) && s.NotNil(entry) {
		s.True(entry.MediaType.Is(grid.TextPlainType))
	}
}

// TestConditionalWrites checks PutIfAbsent and Replace.
func (s *Suite) TestConditionalWrites() {
	cache := s.makeCache(grid.CacheConfig{Encoding: grid.TextPlainType})

	ok, err := cache.PutIfAbsent("k", []byte("one"), textOptions)
	s.NoError(err)
	s.True(ok)
	ok, err = cache.PutIfAbsent("k", []byte("two"), textOptions)
	s.NoError(err)
	s.False(ok)

	ok, err = cache.Replace("k", []byte("wrong"), []byte("three"), textOptions)
	s.NoError(err)
	s.False(ok)
	ok, err = cache.Replace("k", []byte("one"), []byte("three"), textOptions)
	s.NoError(err)
	s.True(ok)

	ok, err = cache.Replace("missing", []byte("one"), []byte("three"), textOptions)
	s.NoError(err)
	s.False(ok)

	entry, err := cache.Get("k")
	if s.NoError(err) && s.NotNil(entry) {
		s.Equal([]byte("three"), entry.Value)
	}
}

// TestRemoveClearSize checks bulk inspection and deletion.
func (s *Suite) TestRemoveClearSize() {
	cache := s.makeCache(grid.CacheConfig{Encoding: grid.TextPlainType})
	for _, k := range []string{"c", "a", "b"} {
		s.NoError(cache.Put(k, []byte(k), textOptions))
	}

	size, err := cache.Size()
	s.NoError(err)
	s.Equal(3, size)

	keys, err := cache.Keys()
	s.NoError(err)
	s.Equal([]string{"a", "b", "c"}, keys)

	removed, err := cache.Remove("b")
	s.NoError(err)
	s.True(removed)
	removed, err = cache.Remove("b")
	s.NoError(err)
	s.False(removed)

	s.NoError(cache.Clear())
	size, err = cache.Size()
	s.NoError(err)
	s.Equal(0, size)
}

// TestLifespan checks that entries expire after their lifespan.
func (s *Suite) TestLifespan() {
	cache := s.makeCache(grid.CacheConfig{Encoding: grid.TextPlainType})
	options := textOptions
	options.Lifespan = time.Minute
	s.NoError(cache.Put("k", []byte("v"), options))

	entry, err := cache.Get("k")
	if s.NoError(err) && s.NotNil(entry) {
		s.Equal(time.Minute, entry.Lifespan)
		expiry, mortal := entry.Expiry()
		s.True(mortal)
		s.Equal(s.Clock.Now().Add(time.Minute).UTC(), expiry.UTC())
	}

	s.Clock.Add(61 * time.Second)
	entry, err = cache.Get("k")
	s.NoError(err)
	s.Nil(entry)

	size, err := cache.Size()
	s.NoError(err)
	s.Equal(0, size)
}

// TestDefaultLifespan checks that a zero lifespan takes the cache
// default and a negative one makes the entry immortal.
func (s *Suite) TestDefaultLifespan() {
	cache := s.makeCache(grid.CacheConfig{
		Encoding: grid.TextPlainType,
		Lifespan: time.Minute,
	})
	s.NoError(cache.Put("default", []byte("v"), textOptions))
	immortal := textOptions
	immortal.Lifespan = -1
	s.NoError(cache.Put("immortal", []byte("v"), immortal))

	s.Clock.Add(2 * time.Minute)

	entry, err := cache.Get("default")
	s.NoError(err)
	s.Nil(entry)
	entry, err = cache.Get("immortal")
	s.NoError(err)
	s.NotNil(entry)
}

// TestMaxIdle checks that reads keep an idle-limited entry alive.
func (s *Suite) TestMaxIdle() {
	cache := s.makeCache(grid.CacheConfig{Encoding: grid.TextPlainType})
	options := textOptions
	options.MaxIdle = time.Minute
	s.NoError(cache.Put("k", []byte("v"), options))

	s.Clock.Add(40 * time.Second)
	entry, err := cache.Get("k")
	s.NoError(err)
	s.NotNil(entry)

	s.Clock.Add(40 * time.Second)
	entry, err = cache.Get("k")
	s.NoError(err)
	s.NotNil(entry)

	s.Clock.Add(61 * time.Second)
	entry, err = cache.Get("k")
	s.NoError(err)
	s.Nil(entry)
}

// TestStats checks hit, miss, and store counting.
func (s *Suite) TestStats() {
	cache := s.makeCache(grid.CacheConfig{Encoding: grid.TextPlainType})
	s.NoError(cache.Put("k", []byte("v"), textOptions))
	_, _ = cache.Get("k")
	_, _ = cache.Get("nope")

	stats, err := cache.Stats()
	if s.NoError(err) {
		s.Equal(int64(1), stats.Hits)
		s.Equal(int64(1), stats.Misses)
		s.Equal(int64(1), stats.Stores)
		s.Equal(1, stats.CurrentEntries)
	}

	s.NoError(cache.ResetStats())
	stats, err = cache.Stats()
	if s.NoError(err) {
		s.Equal(int64(0), stats.Hits)
		s.Equal(int64(0), stats.Stores)
	}
}
