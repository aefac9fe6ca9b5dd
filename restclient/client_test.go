// Copyright 2015-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient_test

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffeo/go-gridrest/backup"
	"github.com/diffeo/go-gridrest/encoding"
	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/memory"
	"github.com/diffeo/go-gridrest/restclient"
	"github.com/diffeo/go-gridrest/restdata"
	"github.com/diffeo/go-gridrest/restserver"
)

// newClient sets up an object stack where the REST client code talks
// to the REST server code, which points at an in-memory engine.
func newClient(t *testing.T) *restclient.Client {
	g := memory.NewNode("node1", "", clock.New())
	counters := memory.NewCounterManager()
	registry := encoding.New()
	tasks := memory.NewTaskManager()
	tasks.Register(grid.TaskInfo{Name: "hello", Parameters: []string{"name"}},
		func(ctx context.Context, params map[string]string) (interface{}, error) {
			return "Hello " + params["name"], nil
		})
	services := &grid.Services{
		Grid:     g,
		Backups:  backup.New(g, counters, t.TempDir()),
		XSite:    memory.NewXSiteAdmin(g, false),
		Counters: counters,
		Tasks:    tasks,
		Query:    memory.NewQueryEngine(g, registry),
		Encoding: registry,
	}
	logger, _ := test.NewNullLogger()
	r := mux.NewRouter().SkipClean(true).UseEncodedPath()
	err := restserver.PopulateRouter(r.PathPrefix("/rest").Subrouter(), services, restserver.Options{
		Logger:  logger,
		TempDir: t.TempDir(),
	})
	require.NoError(t, err)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	c, err := restclient.New(server.URL + "/rest")
	require.NoError(t, err)
	return c
}

func TestEmptyURL(t *testing.T) {
	_, err := restclient.New("")
	assert.Error(t, err)
}

func TestContainer(t *testing.T) {
	c := newClient(t)
	health, err := c.Health()
	if assert.NoError(t, err) {
		assert.Equal(t, restdata.Healthy, health.Status)
		assert.Equal(t, "node1", health.NodeName)
	}

	_, err = c.CreateCache("a", restdata.CacheConfig{}, "")
	require.NoError(t, err)
	container, err := c.Container()
	if assert.NoError(t, err) {
		assert.Equal(t, restdata.Version, container.Version)
		assert.Equal(t, []string{"a"}, container.CacheNames)
	}

	tasks, err := c.Tasks()
	if assert.NoError(t, err) && assert.Len(t, tasks, 1) {
		assert.Equal(t, "hello", tasks[0].Name)
	}
	result, err := c.ExecTask("hello", map[string]string{"name": "there"})
	if assert.NoError(t, err) {
		assert.Equal(t, "Hello there", result)
	}
	_, err = c.ExecTask("missing", nil)
	assert.True(t, errors.As(err, new(restdata.ErrNotFound)), "%v", err)
}

func TestCaches(t *testing.T) {
	c := newClient(t)
	cache, err := c.CreateCache("c", restdata.CacheConfig{Encoding: "text/plain", Lifespan: 60}, "")
	require.NoError(t, err)
	assert.Equal(t, "c", cache.Name())

	_, err = c.CreateCache("c", restdata.CacheConfig{}, "")
	assert.True(t, errors.As(err, new(restdata.ErrConflict)), "%v", err)

	names, err := c.CacheNames()
	if assert.NoError(t, err) {
		assert.Equal(t, []string{"c"}, names)
	}
	exists, err := c.CacheExists("c")
	if assert.NoError(t, err) {
		assert.True(t, exists)
	}
	exists, err = c.CacheExists("nope")
	if assert.NoError(t, err) {
		assert.False(t, exists)
	}

	config, err := cache.Config()
	if assert.NoError(t, err) {
		assert.Equal(t, "text/plain", config.Encoding)
		assert.Equal(t, int64(60), config.Lifespan)
	}

	require.NoError(t, c.RemoveCache("c"))
	err = c.RemoveCache("c")
	assert.True(t, errors.As(err, new(restdata.ErrNotFound)), "%v", err)
}

func TestEntries(t *testing.T) {
	c := newClient(t)
	cache, err := c.CreateCache("c", restdata.CacheConfig{Encoding: "application/json"}, "")
	require.NoError(t, err)

	etag, err := cache.Put("a/b", []byte(`{"x":1}`), restclient.WriteOptions{
		ContentType: "application/json",
		Lifespan:    time.Hour,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, etag)

	entry, err := cache.Get("a/b", "")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, `{"x":1}`, string(entry.Value))
	assert.Equal(t, "application/json", entry.ContentType)
	assert.Equal(t, etag, entry.ETag)
	assert.Equal(t, time.Hour, entry.Lifespan)
	assert.Equal(t, time.Duration(0), entry.MaxIdle)
	assert.False(t, entry.LastModified.IsZero())

	entry, err = cache.Get("a/b", "application/yaml")
	if assert.NoError(t, err) && assert.NotNil(t, entry) {
		assert.Equal(t, "x: 1\n", string(entry.Value))
	}

	_, err = cache.Get("a/b", "image/png")
	assert.True(t, errors.As(err, new(restdata.ErrNotAcceptable)), "%v", err)

	entry, err = cache.Get("missing", "")
	assert.NoError(t, err)
	assert.Nil(t, entry)

	_, err = cache.Create("a/b", []byte(`2`), restclient.WriteOptions{})
	assert.True(t, errors.As(err, new(restdata.ErrConflict)), "%v", err)

	_, err = cache.Put("a/b", []byte(`3`), restclient.WriteOptions{IfMatch: "stale"})
	assert.Equal(t, restclient.ErrModified, err)
	etag2, err := cache.Put("a/b", []byte(`3`), restclient.WriteOptions{IfMatch: etag})
	assert.NoError(t, err)
	assert.NotEqual(t, etag, etag2)

	keys, err := cache.Keys(-1)
	if assert.NoError(t, err) {
		assert.Equal(t, []string{"a/b"}, keys)
	}
	size, err := cache.Size()
	if assert.NoError(t, err) {
		assert.Equal(t, 1, size)
	}
	entries, err := cache.Entries()
	if assert.NoError(t, err) && assert.Len(t, entries, 1) {
		assert.Equal(t, "3", entries[0].Value)
	}

	removed, err := cache.Remove("a/b")
	assert.NoError(t, err)
	assert.True(t, removed)
	removed, err = cache.Remove("a/b")
	assert.NoError(t, err)
	assert.False(t, removed)

	_, err = cache.Create("k", []byte(`true`), restclient.WriteOptions{})
	assert.NoError(t, err)
	require.NoError(t, cache.Clear())
	size, err = cache.Size()
	if assert.NoError(t, err) {
		assert.Equal(t, 0, size)
	}

	stats, err := cache.Stats()
	if assert.NoError(t, err) {
		assert.True(t, stats.Stores > 0)
	}
	require.NoError(t, cache.ResetStats())
	stats, err = cache.Stats()
	if assert.NoError(t, err) {
		assert.Equal(t, int64(0), stats.Stores)
	}
}

func TestSearch(t *testing.T) {
	c := newClient(t)
	cache, err := c.CreateCache("people", restdata.CacheConfig{Encoding: "application/json", Indexed: true}, "")
	require.NoError(t, err)
	for key, value := range map[string]string{
		"1": `{"_type":"Person","name":"Alice","age":31}`,
		"2": `{"_type":"Person","name":"Bob","age":25}`,
	} {
		_, err = cache.Put(key, []byte(value), restclient.WriteOptions{})
		require.NoError(t, err)
	}

	result, err := cache.Search(restdata.SearchRequest{Query: "FROM Person WHERE age > 30"})
	if assert.NoError(t, err) && assert.Len(t, result.Hits, 1) {
		assert.Equal(t, "Alice", result.Hits[0].Hit["name"])
	}
	_, err = cache.Search(restdata.SearchRequest{Query: "SELECT x"})
	assert.True(t, errors.As(err, new(restdata.ErrBadRequest)), "%v", err)

	assert.NoError(t, cache.Reindex(false))
	assert.NoError(t, cache.Reindex(true))
}

func TestCounters(t *testing.T) {
	c := newClient(t)
	upper := int64(10)
	created, err := c.DefineCounter("n", restdata.Counter{Type: "strong", InitialValue: 5, UpperBound: &upper})
	require.NoError(t, err)
	assert.True(t, created)
	created, err = c.DefineCounter("n", restdata.Counter{})
	require.NoError(t, err)
	assert.False(t, created)

	def, err := c.CounterConfig("n")
	if assert.NoError(t, err) && assert.NotNil(t, def.UpperBound) {
		assert.Equal(t, "strong", def.Type)
		assert.Equal(t, int64(10), *def.UpperBound)
	}

	value, err := c.IncrementCounter("n")
	if assert.NoError(t, err) {
		assert.Equal(t, int64(6), value)
	}
	value, err = c.DecrementCounter("n")
	if assert.NoError(t, err) {
		assert.Equal(t, int64(5), value)
	}
	value, err = c.AddCounter("n", -3)
	if assert.NoError(t, err) {
		assert.Equal(t, int64(2), value)
	}
	_, err = c.AddCounter("n", 100)
	assert.True(t, errors.As(err, new(restdata.ErrBadRequest)), "%v", err)
	value, err = c.CounterValue("n")
	if assert.NoError(t, err) {
		assert.Equal(t, int64(10), value)
	}

	swapped, err := c.CompareAndSetCounter("n", 10, 7)
	if assert.NoError(t, err) {
		assert.True(t, swapped)
	}
	swapped, err = c.CompareAndSetCounter("n", 10, 8)
	if assert.NoError(t, err) {
		assert.False(t, swapped)
	}

	require.NoError(t, c.ResetCounter("n"))
	value, err = c.CounterValue("n")
	if assert.NoError(t, err) {
		assert.Equal(t, int64(5), value)
	}

	names, err := c.CounterNames()
	if assert.NoError(t, err) {
		assert.Equal(t, []string{"n"}, names)
	}
	require.NoError(t, c.RemoveCounter("n"))
	_, err = c.CounterValue("n")
	assert.True(t, errors.As(err, new(restdata.ErrNotFound)), "%v", err)
}

func TestCrossSite(t *testing.T) {
	c := newClient(t)
	cache, err := c.CreateCache("c", restdata.CacheConfig{Sites: []string{"NYC"}}, "")
	require.NoError(t, err)

	require.NoError(t, cache.TakeSiteOffline("NYC"))
	status, err := cache.SiteStatus()
	if assert.NoError(t, err) {
		assert.Equal(t, map[string]string{"NYC": grid.SiteOffline}, status)
	}

	err = cache.TakeSiteOffline("NYC")
	var server restdata.ErrServer
	if assert.True(t, errors.As(err, &server), "%v", err) {
		assert.Equal(t, 500, server.HTTPStatus())
		assert.Equal(t, "Site NYC is already offline", server.Message)
	}

	require.NoError(t, cache.BringSiteOnline("NYC"))
	require.NoError(t, cache.PushState("NYC"))
	pushes, err := cache.PushStateStatus()
	if assert.NoError(t, err) {
		assert.Contains(t, pushes, "NYC")
	}
}

func TestBackupRestore(t *testing.T) {
	c := newClient(t)
	cache, err := c.CreateCache("c", restdata.CacheConfig{Encoding: "text/plain"}, "")
	require.NoError(t, err)
	_, err = cache.Put("k", []byte("v"), restclient.WriteOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, c.CreateBackup("b", restdata.BackupRequest{}))
	status, err := restclient.Await(ctx, func() (grid.OperationStatus, error) {
		return c.BackupStatus("b")
	})
	require.NoError(t, err)
	assert.Equal(t, grid.OperationComplete, status)

	names, err := c.BackupNames()
	if assert.NoError(t, err) {
		assert.Equal(t, []string{"b"}, names)
	}

	var archive bytes.Buffer
	require.NoError(t, c.DownloadBackup("b", &archive))
	assert.True(t, strings.HasPrefix(archive.String(), "PK"))

	deferred, err := c.RemoveBackup("b")
	assert.NoError(t, err)
	assert.False(t, deferred)
	status, err = c.BackupStatus("b")
	assert.NoError(t, err)
	assert.Equal(t, grid.OperationNotFound, status)

	// Restore into a fresh server
	other := newClient(t)
	require.NoError(t, other.RestoreUpload("r", &archive, map[string][]string{"caches": {"*"}}))
	status, err = restclient.Await(ctx, func() (grid.OperationStatus, error) {
		return other.RestoreStatus("r")
	})
	require.NoError(t, err)
	assert.Equal(t, grid.OperationComplete, status)

	entry, err := other.Cache("c").Get("k", "")
	if assert.NoError(t, err) && assert.NotNil(t, entry) {
		assert.Equal(t, "v", string(entry.Value))
	}

	names, err = other.RestoreNames()
	if assert.NoError(t, err) {
		assert.Equal(t, []string{"r"}, names)
	}
	deferred, err = other.RemoveRestore("r")
	assert.NoError(t, err)
	assert.False(t, deferred)

	err = other.Restore("bad", "", nil)
	assert.True(t, errors.As(err, new(restdata.ErrBadRequest)), "%v", err)
}

func TestBackupFailure(t *testing.T) {
	c := newClient(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	require.NoError(t, c.CreateBackup("b", restdata.BackupRequest{Directory: blocker}))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	status, err := restclient.Await(ctx, func() (grid.OperationStatus, error) {
		return c.BackupStatus("b")
	})
	require.NoError(t, err)
	assert.Equal(t, grid.OperationFailed, status)

	err = c.DownloadBackup("b", &bytes.Buffer{})
	var server restdata.ErrServer
	if assert.True(t, errors.As(err, &server), "%v", err) {
		assert.Equal(t, "backup 'b' failed", server.Message)
		assert.NotEmpty(t, server.Cause)
	}
}
