// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/memory"
)

const sampleConfig = `
node:
  name: grid1
  address: 10.0.0.1:11222
workers: "8"
backup_dir: /var/backups
caches:
  sessions:
    encoding: application/json
    lifespan: 1h
    max_idle: 90s
    sites: [NYC, LON]
  plain:
    indexed: true
roles:
  reader: [read, MONITOR]
users:
  alice: [admin]
  bob: [reader]
`

func loadSample(t *testing.T) Config {
	filename := filepath.Join(t.TempDir(), "gridrestd.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(sampleConfig), 0o644))
	raw, err := loadConfigYaml(filename)
	require.NoError(t, err)
	config, err := decodeConfig(raw)
	require.NoError(t, err)
	return config
}

func TestDecodeConfig(t *testing.T) {
	config := loadSample(t)
	assert.Equal(t, NodeConfig{Name: "grid1", Address: "10.0.0.1:11222"}, config.Node)
	assert.Equal(t, 8, config.Workers)
	assert.Equal(t, "/var/backups", config.BackupDir)
	assert.Equal(t, CacheConfig{
		Encoding: "application/json",
		Lifespan: time.Hour,
		MaxIdle:  90 * time.Second,
		Sites:    []string{"NYC", "LON"},
	}, config.Caches["sessions"])
	assert.True(t, config.Caches["plain"].Indexed)
	assert.True(t, config.secured())
}

func TestDecodeBadConfig(t *testing.T) {
	_, err := decodeConfig(map[string]interface{}{
		"caches": map[string]interface{}{
			"c": map[string]interface{}{"lifespan": "forever"},
		},
	})
	assert.Error(t, err)

	_, err = loadConfigYaml(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfigSecurity(t *testing.T) {
	config := loadSample(t)
	security, err := config.security()
	require.NoError(t, err)

	perm, err := security.Permissions("bob")
	if assert.NoError(t, err) {
		assert.Equal(t, grid.PermissionRead|grid.PermissionMonitor, perm)
	}
	assert.NoError(t, security.Authorize("alice", grid.PermissionAdmin))
	assert.Error(t, security.Authorize("bob", grid.PermissionWrite))

	config.Roles["broken"] = []string{"FLY"}
	_, err = config.security()
	assert.Error(t, err)

	delete(config.Roles, "broken")
	config.Users["carol"] = []string{"nobody"}
	_, err = config.security()
	assert.Error(t, err)
}

func TestCreateCaches(t *testing.T) {
	config := loadSample(t)
	g := memory.New()
	_, err := g.CreateCache("plain", grid.CacheConfig{})
	require.NoError(t, err)

	require.NoError(t, config.createCaches(g))
	names, err := g.CacheNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"plain", "sessions"}, names)

	cache, err := g.Cache("sessions")
	require.NoError(t, err)
	cc, err := cache.Config()
	if assert.NoError(t, err) {
		assert.Equal(t, "application/json", cc.Encoding.String())
		assert.Equal(t, time.Hour, cc.Lifespan)
		assert.Equal(t, []string{"NYC", "LON"}, cc.Sites)
	}

	// The existing cache is left alone
	cache, err = g.Cache("plain")
	require.NoError(t, err)
	cc, err = cache.Config()
	if assert.NoError(t, err) {
		assert.False(t, cc.Indexed)
	}

	config.Caches["bad"] = CacheConfig{Encoding: "not a type"}
	assert.Error(t, config.createCaches(g))
}

func TestBuiltinTasks(t *testing.T) {
	g := memory.New()
	for _, name := range []string{"a", "b"} {
		cache, err := g.CreateCache(name, grid.CacheConfig{})
		require.NoError(t, err)
		require.NoError(t, cache.Put("k", []byte("v"), grid.WriteOptions{}))
	}
	tasks := builtinTasks(g)
	ctx := context.Background()

	result, err := tasks.RunTask(ctx, "cache-sizes", nil)
	if assert.NoError(t, err) {
		assert.Equal(t, map[string]int{"a": 1, "b": 1}, result)
	}

	_, err = tasks.RunTask(ctx, "clear-caches", map[string]string{"cache": "a"})
	assert.NoError(t, err)
	result, err = tasks.RunTask(ctx, "cache-sizes", nil)
	if assert.NoError(t, err) {
		assert.Equal(t, map[string]int{"a": 0, "b": 1}, result)
	}

	_, err = tasks.RunTask(ctx, "clear-caches", nil)
	assert.NoError(t, err)
	result, err = tasks.RunTask(ctx, "cache-sizes", nil)
	if assert.NoError(t, err) {
		assert.Equal(t, map[string]int{"a": 0, "b": 0}, result)
	}

	_, err = tasks.RunTask(ctx, "clear-caches", map[string]string{"cache": "missing"})
	assert.Error(t, err)
}
