// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"encoding/base64"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/restdata"
)

func (api *restAPI) engine() (grid.Grid, error) {
	if api.services.Grid == nil {
		return nil, restdata.ErrNotImplemented{Text: "No grid engine"}
	}
	return api.services.Grid, nil
}

// listCaches returns the names of all caches.
func (api *restAPI) listCaches(req *Request) (*Response, error) {
	g, err := api.engine()
	if err != nil {
		return nil, err
	}
	names, err := g.CacheNames()
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return ok(names), nil
}

// createCache creates a cache from a configuration body, or from a
// named template.
func (api *restAPI) createCache(req *Request) (*Response, error) {
	g, err := api.engine()
	if err != nil {
		return nil, err
	}
	var repr restdata.CacheConfig
	if err := req.Decode(&repr); err != nil {
		return nil, err
	}
	if template := req.Query.Get("template"); template != "" {
		repr.Template = template
	}
	config, err := repr.ToConfig()
	if err != nil {
		return nil, err
	}
	if _, err := g.CreateCache(req.Var("cacheName"), config); err != nil {
		return nil, err
	}
	return noContent(), nil
}

// deleteCache removes a cache and everything in it.
func (api *restAPI) deleteCache(req *Request) (*Response, error) {
	g, err := api.engine()
	if err != nil {
		return nil, err
	}
	if err := g.RemoveCache(req.Var("cacheName")); err != nil {
		return nil, err
	}
	return noContent(), nil
}

// cacheExists answers HEAD of a cache.
func (api *restAPI) cacheExists(req *Request) (*Response, error) {
	if _, err := api.cache(req); err != nil {
		return nil, err
	}
	return noContent(), nil
}

func (api *restAPI) clearCache(req *Request) (*Response, error) {
	cache, err := api.cache(req)
	if err != nil {
		return nil, err
	}
	if err := cache.Clear(); err != nil {
		return nil, err
	}
	return noContent(), nil
}

func (api *restAPI) cacheSize(req *Request) (*Response, error) {
	cache, err := api.cache(req)
	if err != nil {
		return nil, err
	}
	size, err := cache.Size()
	if err != nil {
		return nil, err
	}
	return ok(size), nil
}

// limitKeys applies the "limit" query parameter; negative means no
// limit.
func limitKeys(req *Request, keys []string) ([]string, error) {
	limit, err := req.IntParam("limit", -1)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	if limit >= 0 && limit < len(keys) {
		keys = keys[:limit]
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

func (api *restAPI) cacheKeys(req *Request) (*Response, error) {
	cache, err := api.cache(req)
	if err != nil {
		return nil, err
	}
	keys, err := cache.Keys()
	if err != nil {
		return nil, err
	}
	keys, err = limitKeys(req, keys)
	if err != nil {
		return nil, err
	}
	return ok(keys), nil
}

// cacheEntries returns the live entries of a cache.  Values that are
// not valid UTF-8 are base64-encoded.
func (api *restAPI) cacheEntries(req *Request) (*Response, error) {
	cache, err := api.cache(req)
	if err != nil {
		return nil, err
	}
	keys, err := cache.Keys()
	if err != nil {
		return nil, err
	}
	keys, err = limitKeys(req, keys)
	if err != nil {
		return nil, err
	}
	entries := make([]restdata.CacheEntry, 0, len(keys))
	for _, key := range keys {
		entry, err := cache.Get(key)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			// expired since Keys()
			continue
		}
		e := restdata.CacheEntry{
			Key:        key,
			MediaType:  entry.MediaType.String(),
			TimeToLive: int64(entry.Lifespan / time.Second),
			MaxIdle:    int64(entry.MaxIdle / time.Second),
		}
		if utf8.Valid(entry.Value) {
			e.Value = string(entry.Value)
		} else {
			e.Value = base64.StdEncoding.EncodeToString(entry.Value)
			e.Base64 = true
		}
		entries = append(entries, e)
	}
	return ok(entries), nil
}

func (api *restAPI) cacheConfig(req *Request) (*Response, error) {
	cache, err := api.cache(req)
	if err != nil {
		return nil, err
	}
	config, err := cache.Config()
	if err != nil {
		return nil, err
	}
	repr := restdata.CacheConfig{}
	repr.FromConfig(config)
	return ok(repr), nil
}

func (api *restAPI) cacheStats(req *Request) (*Response, error) {
	cache, err := api.cache(req)
	if err != nil {
		return nil, err
	}
	stats, err := cache.Stats()
	if err != nil {
		return nil, err
	}
	repr := restdata.CacheStats{}
	repr.FromStats(stats)
	return ok(repr), nil
}

func (api *restAPI) resetStats(req *Request) (*Response, error) {
	cache, err := api.cache(req)
	if err != nil {
		return nil, err
	}
	if err := cache.ResetStats(); err != nil {
		return nil, err
	}
	return noContent(), nil
}

