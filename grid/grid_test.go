// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package grid

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2018, 3, 4, 5, 6, 7, 0, time.UTC)

func TestEntryExpiryImmortal(t *testing.T) {
	e := Entry{Created: epoch, LastUsed: epoch}
	_, mortal := e.Expiry()
	assert.False(t, mortal)
	assert.False(t, e.Expired(epoch.Add(1000*time.Hour)))
}

func TestEntryExpiryLifespan(t *testing.T) {
	e := Entry{Created: epoch, LastUsed: epoch, Lifespan: time.Minute}
	expiry, mortal := e.Expiry()
	assert.True(t, mortal)
	assert.Equal(t, epoch.Add(time.Minute), expiry)
	assert.False(t, e.Expired(epoch.Add(59*time.Second)))
	assert.True(t, e.Expired(epoch.Add(time.Minute)))
}

func TestEntryExpiryIdleFirst(t *testing.T) {
	e := Entry{
		Created:  epoch,
		LastUsed: epoch.Add(10 * time.Second),
		Lifespan: time.Hour,
		MaxIdle:  time.Minute,
	}
	expiry, mortal := e.Expiry()
	assert.True(t, mortal)
	assert.Equal(t, epoch.Add(70*time.Second), expiry)
}

func TestEntryExpiryLifespanFirst(t *testing.T) {
	e := Entry{
		Created:  epoch,
		LastUsed: epoch.Add(50 * time.Second),
		Lifespan: time.Minute,
		MaxIdle:  time.Minute,
	}
	expiry, _ := e.Expiry()
	assert.Equal(t, epoch.Add(time.Minute), expiry)
}

func TestResolveLifetime(t *testing.T) {
	assert.Equal(t, time.Minute, ResolveLifetime(0, time.Minute))
	assert.Equal(t, time.Duration(0), ResolveLifetime(0, 0))
	assert.Equal(t, time.Duration(0), ResolveLifetime(-1, time.Minute))
	assert.Equal(t, time.Second, ResolveLifetime(time.Second, time.Minute))
}

func TestRootCause(t *testing.T) {
	inner := errors.New("disk on fire")
	wrapped := CacheError{Op: "backup", Err: CacheError{Op: "write", Err: inner}}
	assert.Equal(t, inner, RootCause(wrapped))
	assert.Equal(t, inner, RootCause(inner))
	assert.Nil(t, RootCause(nil))
	assert.Equal(t, "backup: write: disk on fire", wrapped.Error())
}

func TestResourcesIncludes(t *testing.T) {
	var all Resources
	assert.True(t, all.Includes(ResourceCaches, "a"))

	some := Resources{ResourceCaches: {"a", "b"}, ResourceCounters: {AllResources}}
	assert.True(t, some.Includes(ResourceCaches, "a"))
	assert.False(t, some.Includes(ResourceCaches, "c"))
	assert.True(t, some.Includes(ResourceCounters, "anything"))
	assert.False(t, some.Includes(ResourceTemplates, "a"))
}

func TestPermissionImplies(t *testing.T) {
	rw := PermissionRead | PermissionWrite
	assert.True(t, rw.Implies(PermissionRead))
	assert.True(t, rw.Implies(PermissionNone))
	assert.False(t, rw.Implies(PermissionAdmin))
	assert.True(t, PermissionAll.Implies(PermissionAdmin|PermissionBulk))
}
