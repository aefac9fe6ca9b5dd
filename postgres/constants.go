// Copyright 2015-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import "time"

const (
	// SQL table names:
	cacheTable   = "cache"
	entryTable   = "entry"
	counterTable = "counter"

	// SQL column names:
	cacheID        = cacheTable + ".id"
	cacheName      = cacheTable + ".name"
	cacheEncoding  = cacheTable + ".encoding"
	cacheLifespan  = cacheTable + ".lifespan"
	cacheMaxIdle   = cacheTable + ".max_idle"
	cacheIndexed   = cacheTable + ".indexed"
	cacheSites     = cacheTable + ".sites"
	cacheTemplate  = cacheTable + ".template"
	cacheHits      = cacheTable + ".hits"
	cacheMisses    = cacheTable + ".misses"
	cacheStores    = cacheTable + ".stores"
	cacheRemoves   = cacheTable + ".removes"
	cacheStarted   = cacheTable + ".started"
	cacheReset     = cacheTable + ".reset"
	entryCache     = entryTable + ".cache_id"
	entryKey       = entryTable + ".key"
	entryValue     = entryTable + ".value"
	entryMediaType = entryTable + ".media_type"
	entryCreated   = entryTable + ".created"
	entryLastUsed  = entryTable + ".last_used"
	entryLifespan  = entryTable + ".lifespan"
	entryMaxIdle   = entryTable + ".max_idle"
	entryExpires   = entryTable + ".expires"
	counterName    = counterTable + ".name"
	counterType    = counterTable + ".type"
	counterInitial = counterTable + ".initial"
	counterBounded = counterTable + ".bounded"
	counterLower   = counterTable + ".lower_bound"
	counterUpper   = counterTable + ".upper_bound"
	counterValue   = counterTable + ".value"
)

// WHERE clause fragments:

func isCache(params *queryParams, id int) string {
	return cacheID + "=" + params.Param(id)
}

func cacheHasName(params *queryParams, name string) string {
	return cacheName + "=" + params.Param(name)
}

func entryInCache(params *queryParams, id int) string {
	return entryCache + "=" + params.Param(id)
}

func entryHasKey(params *queryParams, key string) string {
	return entryKey + "=" + params.Param(key)
}

// entryIsLive selects entries that have not expired as of now.
func entryIsLive(params *queryParams, now time.Time) string {
	return "(" + entryExpires + " IS NULL OR " + entryExpires + ">" + params.Param(now) + ")"
}

// entryIsExpired selects entries that have expired as of now.
func entryIsExpired(params *queryParams, now time.Time) string {
	return entryExpires + "<=" + params.Param(now)
}

func counterHasName(params *queryParams, name string) string {
	return counterName + "=" + params.Param(name)
}
