// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package grid

import (
	"errors"
	"fmt"
)

// ErrNoKey is returned when an operation needs a cache key but was
// given an empty one.
var ErrNoKey = errors.New("Missing key")

// ErrNoSuchCache is returned by Grid.Cache() and similar functions
// that want to look up a cache, but cannot find it.
type ErrNoSuchCache struct {
	Name string
}

func (err ErrNoSuchCache) Error() string {
	return fmt.Sprintf("No such cache %v", err.Name)
}

// ErrCacheExists is returned by Grid.CreateCache() if the name is
// already taken.
type ErrCacheExists struct {
	Name string
}

func (err ErrCacheExists) Error() string {
	return fmt.Sprintf("Cache %v already exists", err.Name)
}

// ErrOperationExists is returned when creating a backup or restore
// whose name is already in use.
type ErrOperationExists struct {
	Kind string
	Name string
}

func (err ErrOperationExists) Error() string {
	return fmt.Sprintf("A %v named %q already exists", err.Kind, err.Name)
}

// ErrNoSuchCounter is returned by CounterManager functions that look
// up a counter but cannot find it.
type ErrNoSuchCounter struct {
	Name string
}

func (err ErrNoSuchCounter) Error() string {
	return fmt.Sprintf("No such counter %v", err.Name)
}

// ErrCounterBounds is returned when a bounded counter update would
// cross one of its limits.  The counter holds the limit afterwards.
type ErrCounterBounds struct {
	Name  string
	Value int64
}

func (err ErrCounterBounds) Error() string {
	return fmt.Sprintf("Counter %v reached its bound at %v", err.Name, err.Value)
}

// ErrCounterUnsupported is returned for operations a counter type
// does not support, like compare-and-set on a weak counter.
type ErrCounterUnsupported struct {
	Name string
	Op   string
}

func (err ErrCounterUnsupported) Error() string {
	return fmt.Sprintf("Counter %v does not support %v", err.Name, err.Op)
}

// ErrNoSuchTask is returned by TaskManager.RunTask for unknown tasks.
type ErrNoSuchTask struct {
	Name string
}

func (err ErrNoSuchTask) Error() string {
	return fmt.Sprintf("No such task %v", err.Name)
}

// ErrNoSuchRole is returned by Security functions given a role name
// that is not defined.
type ErrNoSuchRole struct {
	Name string
}

func (err ErrNoSuchRole) Error() string {
	return fmt.Sprintf("No such role %v", err.Name)
}

// ErrForbidden is returned when a principal lacks a permission.  Its
// message intentionally carries no detail.
type ErrForbidden struct {
	Principal  string
	Permission Permission
}

func (err ErrForbidden) Error() string {
	return "Forbidden"
}

// ErrBadQuery is returned by QueryEngine.Query for query strings it
// cannot parse.
type ErrBadQuery struct {
	Query  string
	Reason string
}

func (err ErrBadQuery) Error() string {
	return fmt.Sprintf("Invalid query %q: %v", err.Query, err.Reason)
}

// ErrNotIndexed is returned for index operations on a cache that is
// not indexed.
type ErrNotIndexed struct {
	Cache string
}

func (err ErrNotIndexed) Error() string {
	return fmt.Sprintf("Cache %v is not indexed", err.Cache)
}

// ErrUnsupportedConversion is returned by EncodingRegistry.Transcode
// when there is no way to turn one media type into another.
type ErrUnsupportedConversion struct {
	From MediaType
	To   MediaType
}

func (err ErrUnsupportedConversion) Error() string {
	return fmt.Sprintf("Cannot convert from %v to %v", err.From, err.To)
}

// ErrBadMediaType is returned when a media type string cannot be
// parsed.
type ErrBadMediaType struct {
	Value string
	Err   error
}

func (err ErrBadMediaType) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("Invalid media type %q: %v", err.Value, err.Err)
	}
	return fmt.Sprintf("Invalid media type %q", err.Value)
}

func (err ErrBadMediaType) Unwrap() error {
	return err.Err
}

// CacheError wraps a failure inside the engine with the operation
// that was being attempted.
type CacheError struct {
	Op  string
	Err error
}

func (err CacheError) Error() string {
	return err.Op + ": " + err.Err.Error()
}

func (err CacheError) Unwrap() error {
	return err.Err
}

// RootCause follows the chain of wrapped errors and returns the
// innermost one.
func RootCause(err error) error {
	for err != nil {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
	return err
}
