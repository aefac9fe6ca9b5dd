// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package grid

import "context"

// Services bundles a grid with the administrative services that
// surround it.  Any service other than Grid may be nil, in which case
// the corresponding REST resources report that the feature is not
// available.
type Services struct {
	Grid     Grid
	Backups  BackupManager
	XSite    XSiteAdmin
	Counters CounterManager
	Tasks    TaskManager
	Query    QueryEngine
	Encoding EncodingRegistry
	Security Security
}

// XSiteSuccess is the result string of a successful cross-site
// operation.  Any other string describes a failure.
const XSiteSuccess = "SUCCESS"

// Cross-site site status strings.
const (
	SiteOnline  = "online"
	SiteOffline = "offline"
)

// XSiteAdmin manages cross-site replication of caches.  Operations
// report failure through their result string rather than through the
// error return; the error return is reserved for lookup problems such
// as an unknown cache.
type XSiteAdmin interface {
	// SiteStatus returns the status of every backup site of a
	// cache.
	SiteStatus(cache string) (map[string]string, error)

	// TakeSiteOffline stops replicating a cache to a site.
	TakeSiteOffline(cache, site string) (string, error)

	// BringSiteOnline resumes replicating a cache to a site.
	BringSiteOnline(cache, site string) (string, error)

	// PushState starts transferring a cache's state to a site.
	PushState(cache, site string) (string, error)

	// CancelPushState stops a state transfer.
	CancelPushState(cache, site string) (string, error)

	// PushStateStatus returns the state transfer status per site.
	PushStateStatus(cache string) (map[string]string, error)
}

// CounterType distinguishes counter implementations.
type CounterType int

const (
	// StrongCounter is a linearizable, optionally bounded counter.
	StrongCounter CounterType = iota

	// WeakCounter is an unbounded counter whose reads may be
	// stale; it does not support compare-and-set.
	WeakCounter
)

// CounterConfig describes a counter.
type CounterConfig struct {
	Type    CounterType
	Initial int64
	// Bounded strong counters keep their value within
	// [Lower, Upper].
	Bounded bool
	Lower   int64
	Upper   int64
}

// Counter is a single named counter.
type Counter interface {
	Name() string

	// Value returns the current value.
	Value() (int64, error)

	// Add adds delta (possibly negative) and returns the new
	// value.  A bounded counter returns ErrCounterBounds if the
	// result would cross a bound.
	Add(delta int64) (int64, error)

	// CompareAndSet sets the value to update if it is currently
	// expect.  Returns true if it did.
	CompareAndSet(expect, update int64) (bool, error)

	// Reset restores the initial value.
	Reset() error
}

// CounterManager defines and looks up counters.
type CounterManager interface {
	// DefineCounter creates a counter.  Returns false, and does
	// nothing, if a counter with this name already exists.
	DefineCounter(name string, config CounterConfig) (bool, error)

	// Counter retrieves a counter.  Returns ErrNoSuchCounter if
	// it does not exist.
	Counter(name string) (Counter, error)

	// CounterConfig returns the configuration of a counter.
	CounterConfig(name string) (CounterConfig, error)

	// CounterNames returns the names of all counters, sorted.
	CounterNames() ([]string, error)

	// RemoveCounter deletes a counter.
	RemoveCounter(name string) error
}

// TaskInfo describes a task that can be executed on the grid.
type TaskInfo struct {
	Name       string
	Type       string
	Parameters []string
}

// TaskManager runs named server-side tasks.
type TaskManager interface {
	// Tasks lists every available task.
	Tasks() ([]TaskInfo, error)

	// RunTask runs a task to completion.  Returns ErrNoSuchTask
	// for unknown names.
	RunTask(ctx context.Context, name string, params map[string]string) (interface{}, error)
}

// Query is a search request against one cache.
type Query struct {
	Text             string
	Offset           int
	MaxResults       int
	HitCountAccuracy int
}

// QueryResult holds one page of search results.
type QueryResult struct {
	HitCount      int
	HitCountExact bool
	Hits          []map[string]interface{}
}

// QueryEngine searches and indexes caches.
type QueryEngine interface {
	// Query runs a query against a cache.  Malformed queries
	// return ErrBadQuery.
	Query(cache string, query Query) (QueryResult, error)

	// Reindex rebuilds a cache's index asynchronously.  The
	// returned channel receives exactly one value when done.
	// Caches that are not indexed return ErrNotIndexed.
	Reindex(cache string) (<-chan error, error)

	// ClearIndex discards a cache's index.
	ClearIndex(cache string) error
}

// EncodingRegistry knows how to convert values between media types.
type EncodingRegistry interface {
	// IsConversionSupported returns true if values stored as
	// from can be presented as to.
	IsConversionSupported(from, to MediaType) bool

	// Transcode converts data from one media type to another.
	// It returns ErrUnsupportedConversion if there is no such
	// conversion.
	Transcode(data []byte, from, to MediaType) ([]byte, error)
}

// Security answers authorization questions and administers the
// principal-to-role mapping.
type Security interface {
	// Authorize returns ErrForbidden unless the principal holds
	// every permission in perm.
	Authorize(principal string, perm Permission) error

	// Permissions returns the union of permissions of all of a
	// principal's roles.
	Permissions(principal string) (Permission, error)

	// Roles returns a principal's roles, sorted.
	Roles(principal string) ([]string, error)

	// Grant adds roles to a principal.
	Grant(principal string, roles []string) error

	// Deny removes roles from a principal.
	Deny(principal string, roles []string) error
}

// Permission is a set of authorization permissions.
type Permission uint32

// Individual permissions.  PermissionNone requires nothing.
const (
	PermissionNone    Permission = 0
	PermissionRead    Permission = 1 << 0
	PermissionWrite   Permission = 1 << 1
	PermissionExec    Permission = 1 << 2
	PermissionCreate  Permission = 1 << 3
	PermissionMonitor Permission = 1 << 4
	PermissionBulk    Permission = 1 << 5
	PermissionAdmin   Permission = 1 << 6

	PermissionAll = PermissionRead | PermissionWrite | PermissionExec |
		PermissionCreate | PermissionMonitor | PermissionBulk |
		PermissionAdmin
)

// Implies returns true if p includes every permission in other.
func (p Permission) Implies(other Permission) bool {
	return p&other == other
}
