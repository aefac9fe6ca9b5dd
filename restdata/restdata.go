// Copyright 2015-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restdata defines common data structures shared between the
// restserver and restclient packages.  Generally JSON encodings of
// these are passed across the wire as application/json; most of
// them can also be requested as application/yaml.
//
// API Usage
//
// Two API versions are served side by side.  Version 2 selects
// operations on a resource with an "action" query parameter:
//
//     POST /v2/caches/{cacheName}?action=clear
//
// Version 3 spells the same operation as a path segment prefixed
// with an underscore, and gives every collection its own path:
//
//     POST /v3/caches/{cacheName}/_clear
//
// Path variables are percent-encoded individually, so cache keys
// may contain "/" as "%2F".
//
// Cache Entries
//
// Entry bodies are not wrapped in any of these types.  A value is
// PUT or POSTed with its Content-Type and retrieved in whatever
// representation the Accept: header selects, if the server can
// convert to it.  Entry responses carry an ETag and Last-Modified
// and honor the usual conditional request headers.  Writes take
// the lifetime of the entry from the timeToLiveSeconds and
// maxIdleTimeSeconds headers; zero selects the cache default and a
// negative value makes the entry immortal.
//
// Long-Running Operations
//
// Backups and restores are created with a POST, which returns 202
// Accepted, or 409 Conflict if the name is in use.  The client then
// polls with GET or HEAD: 202 means still running, 404 means no such
// operation, and a completed backup returns 200 with its zip archive
// (restores return 201).  A failed operation returns 500.  DELETE
// returns 204 if the operation was removed, or 202 if it is still
// running and will be removed when it finishes.
//
// Errors
//
// Errors are returned as failing HTTP statuses with an encoding of
// ErrorResponse, or its message as text/plain if the client did not
// accept JSON.  Durations in these types are whole seconds.
package restdata

import (
	"errors"
	"math"
	"time"

	"github.com/diffeo/go-gridrest/grid"
)

// Version is the version of the REST API reported by the container
// resource.
const Version = "3.0"

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	// Message is the human-readable description of the error.
	// For server errors it is the innermost cause.
	Message string `json:"message"`

	// Cause gives more context, if there is any.
	Cause string `json:"cause"`

	// Stack holds the stack trace of a recovered panic.
	Stack string `json:"stack,omitempty"`
}

// CacheConfig is the representation of a cache configuration.
type CacheConfig struct {
	Encoding string   `json:"encoding,omitempty"`
	Lifespan int64    `json:"lifespan,omitempty"`
	MaxIdle  int64    `json:"max_idle,omitempty"`
	Indexed  bool     `json:"indexed,omitempty"`
	Sites    []string `json:"sites,omitempty"`
	Template string   `json:"template,omitempty"`
}

// FromConfig fills in c from an engine configuration.
func (c *CacheConfig) FromConfig(config grid.CacheConfig) {
	if !config.Encoding.IsZero() {
		c.Encoding = config.Encoding.String()
	}
	c.Lifespan = int64(config.Lifespan / time.Second)
	c.MaxIdle = int64(config.MaxIdle / time.Second)
	c.Indexed = config.Indexed
	c.Sites = config.Sites
	c.Template = config.Template
}

// ToConfig converts c to an engine configuration.
func (c CacheConfig) ToConfig() (grid.CacheConfig, error) {
	config := grid.CacheConfig{
		Lifespan: time.Duration(c.Lifespan) * time.Second,
		MaxIdle:  time.Duration(c.MaxIdle) * time.Second,
		Indexed:  c.Indexed,
		Sites:    c.Sites,
		Template: c.Template,
	}
	if c.Encoding != "" {
		encoding, err := grid.ParseMediaType(c.Encoding)
		if err != nil {
			return config, ErrBadRequest{Err: err}
		}
		config.Encoding = encoding
	}
	return config, nil
}

// CacheStats is the representation of cache usage statistics.
type CacheStats struct {
	Hits                         int64 `json:"hits"`
	Misses                       int64 `json:"misses"`
	Stores                       int64 `json:"stores"`
	Removes                      int64 `json:"removes"`
	TimeSinceStart               int64 `json:"time_since_start"`
	TimeSinceReset               int64 `json:"time_since_reset"`
	CurrentNumberOfEntries       int   `json:"current_number_of_entries"`
	RequiredMinimumNumberOfNodes int   `json:"required_minimum_number_of_nodes"`
}

// FromStats fills in s from engine statistics.
func (s *CacheStats) FromStats(stats grid.CacheStats) {
	s.Hits = stats.Hits
	s.Misses = stats.Misses
	s.Stores = stats.Stores
	s.Removes = stats.Removes
	s.TimeSinceStart = int64(stats.TimeSinceStart / time.Second)
	s.TimeSinceReset = int64(stats.TimeSinceReset / time.Second)
	s.CurrentNumberOfEntries = stats.CurrentEntries
	s.RequiredMinimumNumberOfNodes = stats.RequiredMinNodes
}

// CacheEntry is one entry in a cache's entry listing.  Values that
// are not valid UTF-8 are base64-encoded, and Base64 is set.
type CacheEntry struct {
	Key        string `json:"key"`
	Value      string `json:"value"`
	Base64     bool   `json:"base64,omitempty"`
	MediaType  string `json:"media_type"`
	TimeToLive int64  `json:"time_to_live,omitempty"`
	MaxIdle    int64  `json:"max_idle,omitempty"`
}

// BackupRequest is the optional body of a backup creation request.
type BackupRequest struct {
	// Directory is the server-side directory to write the
	// archive into.  If empty the server picks one.
	Directory string `json:"directory,omitempty"`

	// Resources selects what to back up; see grid.Resources.
	Resources map[string][]string `json:"resources,omitempty"`
}

// RestoreRequest is the JSON body of a restore request naming a
// server-side archive.  Restores of uploaded archives send the
// archive as the "backup" part of a multipart/form-data body, with
// the resources, if any, JSON-encoded in a "resources" part.
type RestoreRequest struct {
	Location  string              `json:"location"`
	Resources map[string][]string `json:"resources,omitempty"`
}

// Counter is the representation of a counter definition.  A strong
// counter with either bound set is bounded; a missing bound is the
// extreme int64 value.
type Counter struct {
	Type         string `json:"type"`
	InitialValue int64  `json:"initial_value"`
	LowerBound   *int64 `json:"lower_bound,omitempty"`
	UpperBound   *int64 `json:"upper_bound,omitempty"`
}

// FromConfig fills in c from an engine counter configuration.
func (c *Counter) FromConfig(config grid.CounterConfig) {
	text, _ := config.Type.MarshalText()
	c.Type = string(text)
	c.InitialValue = config.Initial
	c.LowerBound = nil
	c.UpperBound = nil
	if config.Bounded {
		lower, upper := config.Lower, config.Upper
		c.LowerBound = &lower
		c.UpperBound = &upper
	}
}

// ToConfig converts c to an engine counter configuration.
func (c Counter) ToConfig() (grid.CounterConfig, error) {
	config := grid.CounterConfig{Initial: c.InitialValue}
	if c.Type == "" {
		c.Type = "strong"
	}
	if err := config.Type.UnmarshalText([]byte(c.Type)); err != nil {
		return config, ErrBadRequest{Err: err}
	}
	if c.LowerBound == nil && c.UpperBound == nil {
		return config, nil
	}
	if config.Type != grid.StrongCounter {
		return config, ErrBadRequest{Err: errors.New("Only strong counters can be bounded")}
	}
	config.Bounded = true
	config.Lower = math.MinInt64
	config.Upper = math.MaxInt64
	if c.LowerBound != nil {
		config.Lower = *c.LowerBound
	}
	if c.UpperBound != nil {
		config.Upper = *c.UpperBound
	}
	if config.Lower > config.Initial || config.Initial > config.Upper {
		return config, ErrBadRequest{Err: errors.New("Initial value is out of bounds")}
	}
	return config, nil
}

// SearchRequest is the body of a POSTed search.  The same fields
// can be passed as query parameters to a GET.
type SearchRequest struct {
	Query            string `json:"query"`
	Offset           int    `json:"offset,omitempty"`
	MaxResults       int    `json:"max_results,omitempty"`
	HitCountAccuracy int    `json:"hit_count_accuracy,omitempty"`
}

// SearchResult is one page of search results.
type SearchResult struct {
	HitCount      int         `json:"hit_count"`
	HitCountExact bool        `json:"hit_count_exact"`
	Hits          []SearchHit `json:"hits"`
}

// SearchHit is a single search result.
type SearchHit struct {
	Hit map[string]interface{} `json:"hit"`
}

// FromResult fills in r from an engine query result.
func (r *SearchResult) FromResult(result grid.QueryResult) {
	r.HitCount = result.HitCount
	r.HitCountExact = result.HitCountExact
	r.Hits = make([]SearchHit, len(result.Hits))
	for i, hit := range result.Hits {
		r.Hits[i].Hit = hit
	}
}

// Task describes a task that can be executed.
type Task struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Parameters []string `json:"parameters"`
}

// Container describes the server's cache container.
type Container struct {
	Version     string   `json:"version"`
	NodeName    string   `json:"node_name"`
	NodeAddress string   `json:"node_address,omitempty"`
	CacheNames  []string `json:"cache_names"`
}

// Health is the representation of the container health check.
type Health struct {
	Status        string `json:"status"`
	NodeName      string `json:"node_name"`
	NumberOfNodes int    `json:"number_of_nodes"`
}

// Healthy is the Health.Status of a working server.
const Healthy = "HEALTHY"

// ACL describes the access rights of a principal.
type ACL struct {
	Subject     string   `json:"subject"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// ConfigEvent is the data of a server-sent configuration event.
type ConfigEvent struct {
	Kind   string      `json:"kind"`
	Name   string      `json:"name"`
	Config CacheConfig `json:"config"`
}

// FromEvent fills in e from an engine configuration event.
func (e *ConfigEvent) FromEvent(event grid.ConfigEvent) {
	e.Kind = string(event.Kind)
	e.Name = event.Name
	e.Config = CacheConfig{}
	e.Config.FromConfig(event.Config)
}
