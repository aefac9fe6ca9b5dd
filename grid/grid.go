// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package grid defines the abstract data-grid engine that the REST
// management layer drives.
//
// The engine owns named caches of keyed byte values, plus a handful
// of administrative services (backups, cross-site replication,
// counters, tasks, search, security).  The REST layer only ever
// reaches the engine through these interfaces; the memory and
// postgres packages provide implementations.
//
// In general, objects here have a small amount of immutable data (a
// Cache.Name() never changes, for instance) and the accessors of
// these return the value directly.  Accessors to mutable data return
// the value and an error.
package grid

import "time"

// Grid is the principal interface to a data-grid engine.
type Grid interface {
	// Cache retrieves a cache by name.  If no cache exists with
	// that name, returns ErrNoSuchCache.
	Cache(name string) (Cache, error)

	// CacheNames returns the names of all of the caches, in
	// sorted order.
	CacheNames() ([]string, error)

	// CreateCache creates a new, empty cache.  If a cache
	// already exists with that name, returns ErrCacheExists.
	CreateCache(name string, config CacheConfig) (Cache, error)

	// RemoveCache destroys a cache and all of its entries.  If
	// the cache does not exist, returns ErrNoSuchCache.
	RemoveCache(name string) error

	// SubscribeConfig registers for cache configuration change
	// events.  The caller must Close the returned subscription.
	SubscribeConfig(buffer int) *Subscription

	// NodeName returns the name of the local node.
	NodeName() string

	// NodeAddress returns the network address of the local node,
	// or an empty string if it is not known.
	NodeAddress() string
}

// CacheConfig describes the user-settable parameters of a cache.
type CacheConfig struct {
	// Encoding is the media type values are stored in.  If this
	// is UnknownType, every entry keeps whatever media type it
	// was written with.
	Encoding MediaType

	// Lifespan is the default lifespan of new entries.  Zero or
	// negative means entries are immortal.
	Lifespan time.Duration

	// MaxIdle is the default maximum idle time of new entries.
	// Zero or negative means entries never expire from idleness.
	MaxIdle time.Duration

	// Indexed indicates that the cache participates in search
	// indexing and can be reindexed.
	Indexed bool

	// Sites lists the remote sites this cache backs up to.
	Sites []string

	// Template is the name of the template this cache was
	// created from, if any.
	Template string
}

// Cache is a single named key-value store.  Keys are strings;
// values are opaque byte slices in the cache's storage encoding.
type Cache interface {
	// Name returns the name of this cache.
	Name() string

	// Config returns the current configuration of this cache.
	Config() (CacheConfig, error)

	// Get retrieves an entry.  If the key is absent or its entry
	// has expired, returns nil with no error.  A successful Get
	// counts as a use of the entry for max-idle purposes.
	Get(key string) (*Entry, error)

	// Put unconditionally stores a value.
	Put(key string, value []byte, options WriteOptions) error

	// PutIfAbsent stores a value only if the key is absent.
	// Returns true if the value was stored.
	PutIfAbsent(key string, value []byte, options WriteOptions) (bool, error)

	// Replace stores value only if the current value is exactly
	// expected.  Returns true if the value was stored.
	Replace(key string, expected, value []byte, options WriteOptions) (bool, error)

	// Remove deletes an entry.  Returns true if something was
	// actually removed.
	Remove(key string) (bool, error)

	// Clear removes every entry.
	Clear() error

	// Size returns the number of live entries.
	Size() (int, error)

	// Keys returns the keys of all live entries, in sorted
	// order.
	Keys() ([]string, error)

	// Stats returns usage statistics for this cache.
	Stats() (CacheStats, error)

	// ResetStats zeroes the usage statistics.
	ResetStats() error
}

// WriteOptions describes per-write metadata.
type WriteOptions struct {
	// MediaType is the media type of the value being written.
	// This is only recorded if the cache stores UnknownType.
	MediaType MediaType

	// Lifespan of the new entry.  Zero means the cache default;
	// negative means the entry is immortal.
	Lifespan time.Duration

	// MaxIdle of the new entry.  Zero means the cache default;
	// negative means the entry never expires from idleness.
	MaxIdle time.Duration
}

// Entry is a snapshot of a single cache entry and its metadata.
type Entry struct {
	Key       string
	Value     []byte
	MediaType MediaType
	Created   time.Time
	LastUsed  time.Time

	// Lifespan and MaxIdle are zero if the entry does not expire
	// in the corresponding way.
	Lifespan time.Duration
	MaxIdle  time.Duration
}

// Expiry returns the time at which the entry expires, and false if
// it never does.
func (e *Entry) Expiry() (time.Time, bool) {
	var (
		expiry time.Time
		mortal bool
	)
	if e.Lifespan > 0 {
		expiry = e.Created.Add(e.Lifespan)
		mortal = true
	}
	if e.MaxIdle > 0 {
		idle := e.LastUsed.Add(e.MaxIdle)
		if !mortal || idle.Before(expiry) {
			expiry = idle
		}
		mortal = true
	}
	return expiry, mortal
}

// Expired returns true if the entry has expired as of now.
func (e *Entry) Expired(now time.Time) bool {
	expiry, mortal := e.Expiry()
	return mortal && !now.Before(expiry)
}

// CacheStats holds simple usage counters for a cache.
type CacheStats struct {
	Hits             int64
	Misses           int64
	Stores           int64
	Removes          int64
	TimeSinceStart   time.Duration
	TimeSinceReset   time.Duration
	CurrentEntries   int
	RequiredMinNodes int
}

// ResolveLifetime applies the WriteOptions conventions to a requested
// duration: zero takes the default, negative means none.
func ResolveLifetime(requested, fallback time.Duration) time.Duration {
	switch {
	case requested == 0:
		if fallback > 0 {
			return fallback
		}
		return 0
	case requested < 0:
		return 0
	default:
		return requested
	}
}
