// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

import (
	"bytes"
	"errors"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diffeo/go-gridrest/restdata"
)

// CacheNames lists the server's caches.
func (c *Client) CacheNames() (names []string, err error) {
	err = c.GetFrom("v3/caches", map[string]interface{}{}, &names)
	return
}

// CreateCache creates a cache.  If template is non-empty the cache
// is created from that template and config only adds to it.
func (c *Client) CreateCache(name string, config restdata.CacheConfig, template string) (*Cache, error) {
	_, err := c.PostTo("v3/caches/{cacheName}{?template}", map[string]interface{}{
		"cacheName": name,
		"template":  template,
	}, config, nil)
	if err != nil {
		return nil, err
	}
	return c.Cache(name), nil
}

// RemoveCache deletes a cache and all of its entries.
func (c *Client) RemoveCache(name string) error {
	_, err := c.DeleteAt("v3/caches/{cacheName}", map[string]interface{}{"cacheName": name})
	return err
}

// CacheExists checks whether a cache exists.
func (c *Client) CacheExists(name string) (bool, error) {
	status, err := c.HeadAt("v3/caches/{cacheName}", map[string]interface{}{"cacheName": name})
	if err != nil {
		return false, err
	}
	switch status {
	case http.StatusNoContent, http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, errors.New(http.StatusText(status))
}

// Cache returns a handle to a named cache.  It does not check that
// the cache exists.
func (c *Client) Cache(name string) *Cache {
	return &Cache{resource: c.resource, name: name}
}

// Cache is a handle to one remote cache.
type Cache struct {
	resource
	name string
}

// Name returns the name of the cache.
func (c *Cache) Name() string {
	return c.name
}

func (c *Cache) vars(more ...string) map[string]interface{} {
	vars := map[string]interface{}{"cacheName": c.name}
	for i := 0; i+1 < len(more); i += 2 {
		vars[more[i]] = more[i+1]
	}
	return vars
}

// Entry is one cache entry as the server presented it.
type Entry struct {
	Value       []byte
	ContentType string
	// ETag is the entity tag, without quotes.
	ETag         string
	LastModified time.Time
	// Lifespan and MaxIdle are zero if the entry does not expire
	// in the corresponding way.
	Lifespan time.Duration
	MaxIdle  time.Duration
}

// WriteOptions control how an entry is written.
type WriteOptions struct {
	// ContentType is the media type of the value.  If empty,
	// the cache's storage type is assumed.
	ContentType string

	// Lifespan and MaxIdle override the cache defaults.
	// Negative values make the entry immortal.
	Lifespan time.Duration
	MaxIdle  time.Duration

	// IfMatch, if set, makes the write conditional on the
	// current entity tag.
	IfMatch string
}

// ErrModified is returned from conditional operations whose
// precondition failed.
var ErrModified = errors.New("entry was modified")

func seconds(d time.Duration) string {
	if d < 0 {
		return "-1"
	}
	return strconv.FormatInt(int64(d/time.Second), 10)
}

func headerSeconds(h http.Header, name string) time.Duration {
	n, err := strconv.ParseInt(h.Get(name), 10, 64)
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func entryRequest(method, u string, value []byte, opts WriteOptions) (*http.Request, error) {
	var body *bytes.Reader
	if value != nil {
		body = bytes.NewReader(value)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, u, body)
	if err != nil {
		return nil, err
	}
	if opts.ContentType != "" {
		req.Header.Set("Content-Type", opts.ContentType)
	}
	if opts.Lifespan != 0 {
		req.Header.Set("timeToLiveSeconds", seconds(opts.Lifespan))
	}
	if opts.MaxIdle != 0 {
		req.Header.Set("maxIdleTimeSeconds", seconds(opts.MaxIdle))
	}
	if opts.IfMatch != "" {
		req.Header.Set("If-Match", `"`+opts.IfMatch+`"`)
	}
	return req, nil
}

// Get fetches an entry, asking for it in accept (empty for the
// storage type).  Returns nil with no error if there is no such
// entry.
func (c *Cache) Get(key, accept string) (*Entry, error) {
	u, err := c.Template("v3/caches/{cacheName}/entries/{cacheKey}", c.vars("cacheKey", key))
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := c.send(req)
	var notFound restdata.ErrNotFound
	if errors.As(err, &notFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	entry := &Entry{
		ContentType: resp.Header.Get("Content-Type"),
		ETag:        strings.Trim(resp.Header.Get("ETag"), `"`),
		Lifespan:    headerSeconds(resp.Header, "timeToLiveSeconds"),
		MaxIdle:     headerSeconds(resp.Header, "maxIdleTimeSeconds"),
	}
	if lm, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		entry.LastModified = lm
	}
	entry.Value, err = ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (c *Cache) write(method, key string, value []byte, opts WriteOptions) (string, error) {
	u, err := c.Template("v3/caches/{cacheName}/entries/{cacheKey}", c.vars("cacheKey", key))
	if err != nil {
		return "", err
	}
	req, err := entryRequest(method, u.String(), value, opts)
	if err != nil {
		return "", err
	}
	resp, err := c.send(req)
	if errors.As(err, new(restdata.ErrPreconditionFailed)) {
		return "", ErrModified
	}
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	return strings.Trim(resp.Header.Get("ETag"), `"`), nil
}

// Put creates or replaces an entry, and returns its new entity tag.
// With opts.IfMatch, a concurrent change returns ErrModified.
func (c *Cache) Put(key string, value []byte, opts WriteOptions) (string, error) {
	return c.write(http.MethodPut, key, value, opts)
}

// Create stores an entry only if there is none yet.  An existing
// entry produces a restdata.ErrConflict.
func (c *Cache) Create(key string, value []byte, opts WriteOptions) (string, error) {
	return c.write(http.MethodPost, key, value, opts)
}

// Remove deletes an entry.  Returns false if there was no entry.
func (c *Cache) Remove(key string) (bool, error) {
	_, err := c.DeleteAt("v3/caches/{cacheName}/entries/{cacheKey}", c.vars("cacheKey", key))
	if errors.As(err, new(restdata.ErrNotFound)) {
		return false, nil
	}
	return err == nil, err
}

// Keys lists the keys in the cache.  A negative limit means all of
// them.
func (c *Cache) Keys(limit int) (keys []string, err error) {
	vars := c.vars()
	if limit >= 0 {
		vars["limit"] = strconv.Itoa(limit)
	}
	err = c.GetFrom("v3/caches/{cacheName}/keys{?limit}", vars, &keys)
	return
}

// Entries lists the entries in the cache.
func (c *Cache) Entries() (entries []restdata.CacheEntry, err error) {
	err = c.GetFrom("v3/caches/{cacheName}/entries", c.vars(), &entries)
	return
}

// Size counts the entries in the cache.
func (c *Cache) Size() (size int, err error) {
	err = c.GetFrom("v3/caches/{cacheName}/_size", c.vars(), &size)
	return
}

// Clear removes every entry.
func (c *Cache) Clear() error {
	_, err := c.PostTo("v3/caches/{cacheName}/_clear", c.vars(), nil, nil)
	return err
}

// Config returns the cache configuration.
func (c *Cache) Config() (config restdata.CacheConfig, err error) {
	err = c.GetFrom("v3/caches/{cacheName}/config", c.vars(), &config)
	return
}

// Stats returns usage statistics.
func (c *Cache) Stats() (stats restdata.CacheStats, err error) {
	err = c.GetFrom("v3/caches/{cacheName}/_stats", c.vars(), &stats)
	return
}

// ResetStats zeroes the usage statistics.
func (c *Cache) ResetStats() error {
	_, err := c.PostTo("v3/caches/{cacheName}/_stats-reset", c.vars(), nil, nil)
	return err
}

// Search runs a query against the cache.
func (c *Cache) Search(search restdata.SearchRequest) (result restdata.SearchResult, err error) {
	_, err = c.PostTo("v3/caches/{cacheName}/_search", c.vars(), search, &result)
	return
}

// Reindex rebuilds the cache's search index.  If async is false, it
// returns once the rebuild is complete.
func (c *Cache) Reindex(async bool) error {
	mode := ""
	if async {
		mode = "async"
	}
	_, err := c.PostTo("v3/caches/{cacheName}/search/indexes/_reindex{?mode}", c.vars("mode", mode), nil, nil)
	return err
}
