// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffeo/go-gridrest/backup"
	"github.com/diffeo/go-gridrest/encoding"
	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/memory"
	"github.com/diffeo/go-gridrest/restdata"
)

// testServer is a REST server over a complete in-memory engine.
type testServer struct {
	t        *testing.T
	clock    *clock.Mock
	grid     grid.Grid
	counters grid.CounterManager
	backups  *backup.Manager
	tasks    *memory.TaskManager
	query    *memory.QueryEngine
	security *memory.Security
	services *grid.Services
	logs     *test.Hook
	tempDir  string
	registry *prometheus.Registry
	api      *restAPI
	handler  http.Handler
}

type serverOption func(*testServer)

// withSecurity turns on authorization.
func withSecurity(s *testServer) {
	s.services.Security = s.security
}

// withHeldPushes makes cross-site state pushes stay in progress.
func withHeldPushes(s *testServer) {
	s.services.XSite = memory.NewXSiteAdmin(s.grid, true)
}

func newTestServer(t *testing.T, options ...serverOption) *testServer {
	s := &testServer{
		t:        t,
		clock:    clock.NewMock(),
		tasks:    memory.NewTaskManager(),
		security: memory.NewSecurity(),
		tempDir:  t.TempDir(),
		registry: prometheus.NewRegistry(),
	}
	// Start somewhere more interesting than the epoch
	s.clock.Add(48 * 365 * 24 * time.Hour)
	s.grid = memory.NewNode("node1", "10.0.0.1:11222", s.clock)
	s.counters = memory.NewCounterManager()
	s.backups = backup.New(s.grid, s.counters, t.TempDir())
	registry := encoding.New()
	s.query = memory.NewQueryEngine(s.grid, registry)
	s.services = &grid.Services{
		Grid:     s.grid,
		Backups:  s.backups,
		XSite:    memory.NewXSiteAdmin(s.grid, false),
		Counters: s.counters,
		Tasks:    s.tasks,
		Query:    s.query,
		Encoding: registry,
	}
	for _, option := range options {
		option(s)
	}

	var logger *logrus.Logger
	logger, s.logs = test.NewNullLogger()
	opts := Options{
		Logger:     logger,
		Workers:    4,
		Clock:      s.clock,
		Registerer: s.registry,
		TempDir:    s.tempDir,
	}
	var err error
	s.api, err = newRestAPI(s.services, opts)
	require.NoError(t, err)
	// The router proper gets its own metrics registry, since
	// s.api already registered the collectors
	opts.Registerer = nil
	s.handler, err = NewRouter(s.services, opts)
	require.NoError(t, err)
	return s
}

// request describes one test request.
type request struct {
	method string
	path   string
	body   string
	header map[string]string
	user   string
	ctx    context.Context
}

func (s *testServer) send(r request) *httptest.ResponseRecorder {
	var body io.Reader
	if r.body != "" {
		body = strings.NewReader(r.body)
	}
	req := httptest.NewRequest(r.method, r.path, body)
	for name, value := range r.header {
		req.Header.Set(name, value)
	}
	if r.user != "" {
		req.SetBasicAuth(r.user, "password")
	}
	if r.ctx != nil {
		req = req.WithContext(r.ctx)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *testServer) do(method, path string) *httptest.ResponseRecorder {
	return s.send(request{method: method, path: path})
}

// expect sends a request and checks its status.
func (s *testServer) expect(status int, r request) *httptest.ResponseRecorder {
	s.t.Helper()
	w := s.send(r)
	assert.Equal(s.t, status, w.Code, "%v %v: %v", r.method, r.path, w.Body.String())
	return w
}

// createCache creates a cache with a JSON configuration.
func (s *testServer) createCache(name, config string) {
	s.t.Helper()
	s.expect(http.StatusNoContent, request{
		method: http.MethodPost,
		path:   "/v3/caches/" + name,
		body:   config,
		header: map[string]string{"Content-Type": "application/json"},
	})
}

// put stores a cache entry.
func (s *testServer) put(cache, key, contentType, value string) *httptest.ResponseRecorder {
	s.t.Helper()
	return s.expect(http.StatusNoContent, request{
		method: http.MethodPut,
		path:   "/v3/caches/" + cache + "/entries/" + key,
		body:   value,
		header: map[string]string{"Content-Type": contentType},
	})
}

// decodeJSON decodes a JSON response body.
func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

// errorBody decodes a JSON error response.
func errorBody(t *testing.T, w *httptest.ResponseRecorder) restdata.ErrorResponse {
	t.Helper()
	assert.Equal(t, restdata.JSONMediaType, w.Header().Get("Content-Type"))
	var body restdata.ErrorResponse
	decodeJSON(t, w, &body)
	return body
}

// eventually polls cond until it is true, failing the test after a
// while.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %v", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRouteErrors(t *testing.T) {
	s := newTestServer(t)

	w := s.expect(http.StatusNotFound, request{method: http.MethodGet, path: "/v3/nothing"})
	assert.Equal(t, "Resource not found", errorBody(t, w).Message)

	w = s.expect(http.StatusMethodNotAllowed, request{method: http.MethodPatch, path: "/v3/caches"})
	assert.Equal(t, "GET, HEAD", w.Header().Get("Allow"))

	w = s.expect(http.StatusBadRequest, request{method: http.MethodGet, path: "/v2/caches/c"})
	assert.Equal(t, "Missing action parameter", errorBody(t, w).Message)

	w = s.expect(http.StatusBadRequest, request{method: http.MethodGet, path: "/v2/caches/c?action=bogus"})
	assert.Equal(t, `Unknown action "bogus"`, errorBody(t, w).Message)

	// v3 ignores the action parameter
	s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/caches?action=size"})

	s.expect(http.StatusBadRequest, request{
		method: http.MethodGet,
		path:   "/v3/caches",
		header: map[string]string{"Accept": "text/plain;q=7"},
	})
}

func TestErrorAsText(t *testing.T) {
	s := newTestServer(t)
	w := s.expect(http.StatusNotFound, request{
		method: http.MethodGet,
		path:   "/v3/caches/missing/_size",
		header: map[string]string{"Accept": "text/plain"},
	})
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	assert.Equal(t, grid.ErrNoSuchCache{Name: "missing"}.Error(), w.Body.String())

	// HEAD errors carry no body
	w = s.expect(http.StatusNotFound, request{method: http.MethodHead, path: "/v3/caches/missing"})
	assert.Empty(t, w.Body.String())
}

func TestCaches(t *testing.T) {
	s := newTestServer(t)

	w := s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/caches"})
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "[]", w.Body.String())

	s.createCache("c", `{"encoding":"text/plain","lifespan":300,"sites":["NYC"]}`)
	s.expect(http.StatusConflict, request{method: http.MethodPut, path: "/v3/caches/c"})
	s.expect(http.StatusNoContent, request{method: http.MethodHead, path: "/v3/caches/c"})
	s.expect(http.StatusBadRequest, request{
		method: http.MethodPost,
		path:   "/v3/caches/bad",
		body:   `{"encoding":"not a type"}`,
		header: map[string]string{"Content-Type": "application/json"},
	})

	w = s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/caches"})
	assert.Equal(t, `["c"]`, w.Body.String())

	w = s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/caches/c/config"})
	var config restdata.CacheConfig
	decodeJSON(t, w, &config)
	assert.Equal(t, restdata.CacheConfig{
		Encoding: "text/plain",
		Lifespan: 300,
		Sites:    []string{"NYC"},
	}, config)

	// The same thing as YAML
	w = s.expect(http.StatusOK, request{
		method: http.MethodGet,
		path:   "/v2/caches/c?action=config",
		header: map[string]string{"Accept": "application/yaml"},
	})
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "lifespan: 300")

	s.put("c", "b", "text/plain", "two")
	s.put("c", "a", "text/plain", "one")
	s.put("c", "c", "text/plain", "three")

	w = s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/caches/c/_size"})
	assert.Equal(t, "3", w.Body.String())
	w = s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v2/caches/c?action=size"})
	assert.Equal(t, "3", w.Body.String())

	w = s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/caches/c/keys"})
	assert.Equal(t, `["a","b","c"]`, w.Body.String())
	w = s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v2/caches/c?action=keys&limit=2"})
	assert.Equal(t, `["a","b"]`, w.Body.String())
	s.expect(http.StatusBadRequest, request{method: http.MethodGet, path: "/v3/caches/c/keys?limit=lots"})

	w = s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/caches/c/entries?limit=1"})
	var entries []restdata.CacheEntry
	decodeJSON(t, w, &entries)
	assert.Equal(t, []restdata.CacheEntry{{
		Key:        "a",
		Value:      "one",
		MediaType:  "text/plain",
		TimeToLive: 300,
	}}, entries)

	w = s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/caches/c/_stats"})
	var stats restdata.CacheStats
	decodeJSON(t, w, &stats)
	assert.Equal(t, int64(3), stats.Stores)
	assert.Equal(t, 3, stats.CurrentNumberOfEntries)

	s.expect(http.StatusNoContent, request{method: http.MethodPost, path: "/v3/caches/c/_stats-reset"})
	w = s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/caches/c/_stats"})
	decodeJSON(t, w, &stats)
	assert.Equal(t, int64(0), stats.Stores)

	s.expect(http.StatusNoContent, request{method: http.MethodPost, path: "/v2/caches/c?action=clear"})
	w = s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/caches/c/_size"})
	assert.Equal(t, "0", w.Body.String())

	s.expect(http.StatusNoContent, request{method: http.MethodDelete, path: "/v3/caches/c"})
	s.expect(http.StatusNotFound, request{method: http.MethodDelete, path: "/v3/caches/c"})
	s.expect(http.StatusNotFound, request{method: http.MethodHead, path: "/v3/caches/c"})
}

func TestCacheTemplate(t *testing.T) {
	s := newTestServer(t)
	s.expect(http.StatusNoContent, request{method: http.MethodPost, path: "/v3/caches/t?template=org.infinispan.DIST_SYNC"})
	w := s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/caches/t/config"})
	var config restdata.CacheConfig
	decodeJSON(t, w, &config)
	assert.Equal(t, "org.infinispan.DIST_SYNC", config.Template)
}

func TestBinaryEntries(t *testing.T) {
	s := newTestServer(t)
	s.createCache("bin", `{}`)
	s.put("bin", "k", "application/octet-stream", "\xff\xfe")
	w := s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/caches/bin/entries"})
	var entries []restdata.CacheEntry
	decodeJSON(t, w, &entries)
	if assert.Len(t, entries, 1) {
		assert.True(t, entries[0].Base64)
		assert.Equal(t, "//4=", entries[0].Value)
		assert.Equal(t, "application/octet-stream", entries[0].MediaType)
	}
}

func TestCounters(t *testing.T) {
	s := newTestServer(t)
	jsonBody := map[string]string{"Content-Type": "application/json"}

	s.expect(http.StatusNoContent, request{
		method: http.MethodPost,
		path:   "/v3/counters/n",
		body:   `{"type":"strong","initial_value":5}`,
		header: jsonBody,
	})
	s.expect(http.StatusNotModified, request{
		method: http.MethodPost,
		path:   "/v3/counters/n",
		body:   `{"type":"strong","initial_value":7}`,
		header: jsonBody,
	})
	s.expect(http.StatusBadRequest, request{
		method: http.MethodPost,
		path:   "/v3/counters/bad",
		body:   `{"type":"medium"}`,
		header: jsonBody,
	})

	value := func(path string) string {
		return s.expect(http.StatusOK, request{method: http.MethodPost, path: path}).Body.String()
	}
	assert.Equal(t, "6", value("/v3/counters/n/_increment"))
	assert.Equal(t, "10", value("/v3/counters/n/_add?delta=4"))
	assert.Equal(t, "9", value("/v2/counters/n?action=decrement"))
	assert.Equal(t, "false", value("/v3/counters/n/_compareAndSet?expect=1&update=2"))
	assert.Equal(t, "true", value("/v3/counters/n/_compareAndSet?expect=9&update=1"))

	w := s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/counters/n"})
	assert.Equal(t, "1", w.Body.String())
	w = s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/counters/n", header: map[string]string{"Accept": "text/plain"}})
	assert.Equal(t, "1", w.Body.String())
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))

	s.expect(http.StatusBadRequest, request{method: http.MethodPost, path: "/v3/counters/n/_add"})
	s.expect(http.StatusBadRequest, request{method: http.MethodPost, path: "/v3/counters/n/_add?delta=x"})
	s.expect(http.StatusBadRequest, request{method: http.MethodPost, path: "/v3/counters/n/_compareAndSet?expect=1"})

	s.expect(http.StatusNoContent, request{method: http.MethodPost, path: "/v3/counters/n/_reset"})
	w = s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/counters/n"})
	assert.Equal(t, "5", w.Body.String())

	w = s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/counters/n/config"})
	var repr restdata.Counter
	decodeJSON(t, w, &repr)
	assert.Equal(t, restdata.Counter{Type: "strong", InitialValue: 5}, repr)

	w = s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/counters"})
	assert.Equal(t, `["n"]`, w.Body.String())

	s.expect(http.StatusNoContent, request{method: http.MethodDelete, path: "/v3/counters/n"})
	s.expect(http.StatusNotFound, request{method: http.MethodGet, path: "/v3/counters/n"})
	s.expect(http.StatusNotFound, request{method: http.MethodPost, path: "/v3/counters/n/_increment"})
}

func TestBoundedCounter(t *testing.T) {
	s := newTestServer(t)
	s.expect(http.StatusNoContent, request{
		method: http.MethodPost,
		path:   "/v3/counters/b",
		body:   `{"type":"strong","initial_value":0,"lower_bound":0,"upper_bound":2}`,
		header: map[string]string{"Content-Type": "application/json"},
	})
	s.expect(http.StatusOK, request{method: http.MethodPost, path: "/v3/counters/b/_add?delta=2"})
	s.expect(http.StatusBadRequest, request{method: http.MethodPost, path: "/v3/counters/b/_increment"})
	w := s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/counters/b"})
	assert.Equal(t, "2", w.Body.String())
}

func TestCrossSite(t *testing.T) {
	s := newTestServer(t, withHeldPushes)
	s.createCache("c", `{"sites":["NYC","LON"]}`)

	w := s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/caches/c/x-site/backups"})
	var status map[string]string
	decodeJSON(t, w, &status)
	assert.Equal(t, map[string]string{"NYC": grid.SiteOnline, "LON": grid.SiteOnline}, status)

	s.expect(http.StatusNoContent, request{method: http.MethodPost, path: "/v3/caches/c/x-site/backups/NYC/_take-offline"})
	w = s.expect(http.StatusInternalServerError, request{method: http.MethodPost, path: "/v3/caches/c/x-site/backups/NYC/_take-offline"})
	assert.Equal(t, restdata.ErrorResponse{Message: "Site NYC is already offline"}, errorBody(t, w))

	w = s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v2/caches/c/x-site/backups"})
	decodeJSON(t, w, &status)
	assert.Equal(t, grid.SiteOffline, status["NYC"])

	s.expect(http.StatusNoContent, request{method: http.MethodPost, path: "/v2/caches/c/x-site/backups/NYC?action=bring-online"})

	w = s.expect(http.StatusInternalServerError, request{method: http.MethodPost, path: "/v3/caches/c/x-site/backups/SFO/_take-offline"})
	assert.Equal(t, "Incorrect site name: SFO", errorBody(t, w).Message)

	s.expect(http.StatusNoContent, request{method: http.MethodPost, path: "/v3/caches/c/x-site/backups/LON/_start-push-state"})
	s.expect(http.StatusInternalServerError, request{method: http.MethodPost, path: "/v3/caches/c/x-site/backups/LON/_start-push-state"})
	w = s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/caches/c/x-site/push-state-status"})
	decodeJSON(t, w, &status)
	assert.Equal(t, map[string]string{"LON": "SENDING"}, status)

	s.expect(http.StatusNoContent, request{method: http.MethodPost, path: "/v2/caches/c/x-site/backups/LON?action=cancel-push-state"})
	s.expect(http.StatusInternalServerError, request{method: http.MethodPost, path: "/v3/caches/c/x-site/backups/LON/_cancel-push-state"})

	s.expect(http.StatusNotFound, request{method: http.MethodGet, path: "/v3/caches/missing/x-site/backups"})
}

func TestTasks(t *testing.T) {
	s := newTestServer(t)
	s.tasks.Register(grid.TaskInfo{Name: "hello", Parameters: []string{"name"}},
		func(ctx context.Context, params map[string]string) (interface{}, error) {
			return "Hello " + params["name"], nil
		})
	s.tasks.Register(grid.TaskInfo{Name: "quiet"},
		func(ctx context.Context, params map[string]string) (interface{}, error) {
			return nil, nil
		})
	s.tasks.Register(grid.TaskInfo{Name: "broken"},
		func(ctx context.Context, params map[string]string) (interface{}, error) {
			return nil, errors.New("task failed")
		})

	w := s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/tasks"})
	var tasks []restdata.Task
	decodeJSON(t, w, &tasks)
	assert.Equal(t, []restdata.Task{
		{Name: "broken", Type: "go", Parameters: []string{}},
		{Name: "hello", Type: "go", Parameters: []string{"name"}},
		{Name: "quiet", Type: "go", Parameters: []string{}},
	}, tasks)

	w = s.expect(http.StatusOK, request{
		method: http.MethodPost,
		path:   "/v3/tasks/hello/_exec?param.name=world&other=x",
		header: map[string]string{"Accept": "text/plain"},
	})
	assert.Equal(t, "Hello world", w.Body.String())

	w = s.expect(http.StatusOK, request{method: http.MethodPost, path: "/v2/tasks/hello?action=exec&param.name=there"})
	assert.Equal(t, `"Hello there"`, w.Body.String())

	s.expect(http.StatusNoContent, request{method: http.MethodPost, path: "/v3/tasks/quiet/_exec"})
	s.expect(http.StatusNotFound, request{method: http.MethodPost, path: "/v3/tasks/missing/_exec"})

	w = s.expect(http.StatusInternalServerError, request{method: http.MethodPost, path: "/v3/tasks/broken/_exec"})
	assert.Equal(t, "task failed", errorBody(t, w).Message)
}

func TestContainer(t *testing.T) {
	s := newTestServer(t)
	s.createCache("c", `{}`)

	w := s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/container"})
	var container restdata.Container
	decodeJSON(t, w, &container)
	assert.Equal(t, restdata.Container{
		Version:     restdata.Version,
		NodeName:    "node1",
		NodeAddress: "10.0.0.1:11222",
		CacheNames:  []string{"c"},
	}, container)

	w = s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v2/container/health"})
	var health restdata.Health
	decodeJSON(t, w, &health)
	assert.Equal(t, restdata.Health{Status: restdata.Healthy, NodeName: "node1", NumberOfNodes: 1}, health)
}

func TestOpenAPI(t *testing.T) {
	s := newTestServer(t, withSecurity)
	w := s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/openapi"})
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var doc struct {
		Swagger string `json:"swagger"`
		Info    struct {
			Version string `json:"version"`
		} `json:"info"`
		Paths map[string]map[string]struct {
			OperationID string   `json:"operationId"`
			Deprecated  bool     `json:"deprecated"`
			Permission  string   `json:"x-permission"`
			Tags        []string `json:"tags"`
			Parameters  []struct {
				Name string `json:"name"`
				In   string `json:"in"`
			} `json:"parameters"`
		} `json:"paths"`
	}
	decodeJSON(t, w, &doc)
	assert.Equal(t, "2.0", doc.Swagger)
	assert.Equal(t, restdata.Version, doc.Info.Version)

	entry := doc.Paths["/v3/caches/{cacheName}/entries/{cacheKey}"]
	if assert.Contains(t, entry, "get") {
		get := entry["get"]
		assert.Equal(t, "getEntry", get.OperationID)
		assert.False(t, get.Deprecated)
		assert.Equal(t, "READ", get.Permission)
		assert.Equal(t, []string{"caches"}, get.Tags)
		if assert.True(t, len(get.Parameters) >= 2) {
			assert.Equal(t, "cacheName", get.Parameters[0].Name)
			assert.Equal(t, "path", get.Parameters[0].In)
			assert.Equal(t, "cacheKey", get.Parameters[1].Name)
		}
	}
	assert.Contains(t, entry, "head")
	assert.Contains(t, entry, "put")
	assert.Contains(t, entry, "delete")

	size := doc.Paths["/v2/caches/{cacheName}?action=size"]
	if assert.Contains(t, size, "get") {
		assert.Equal(t, "v2CacheSize", size["get"].OperationID)
		assert.True(t, size["get"].Deprecated)
	}
	assert.Empty(t, doc.Paths["/v3/container/health"]["get"].Permission)

	s.expect(http.StatusNotAcceptable, request{
		method: http.MethodGet,
		path:   "/v3/openapi",
		header: map[string]string{"Accept": "application/yaml"},
	})
	s.expect(http.StatusNotFound, request{method: http.MethodGet, path: "/v2/openapi"})
}

func TestSecurity(t *testing.T) {
	s := newTestServer(t, withSecurity)
	require.NoError(t, s.security.Grant("alice", []string{"admin"}))
	s.logs.Reset()

	// Health and the cache list need no permission
	s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/container/health"})
	s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/caches"})

	w := s.expect(http.StatusForbidden, request{method: http.MethodPost, path: "/v3/caches/c"})
	assert.Equal(t, restdata.ErrorResponse{Message: "Forbidden"}, errorBody(t, w))
	s.expect(http.StatusForbidden, request{method: http.MethodPost, path: "/v3/caches/c", user: "bob"})
	s.expect(http.StatusNoContent, request{method: http.MethodPost, path: "/v3/caches/c", user: "alice"})

	w = s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/security/user/acl", user: "alice"})
	var acl restdata.ACL
	decodeJSON(t, w, &acl)
	assert.Equal(t, "alice", acl.Subject)
	assert.Equal(t, []string{"admin"}, acl.Roles)
	assert.Equal(t, []string{"ALL"}, acl.Permissions)

	s.expect(http.StatusForbidden, request{method: http.MethodPut, path: "/v3/security/roles/bob/_grant?role=deployer", user: "bob"})
	s.expect(http.StatusNoContent, request{method: http.MethodPut, path: "/v3/security/roles/bob/_grant?role=deployer&role=monitor", user: "alice"})
	s.expect(http.StatusBadRequest, request{method: http.MethodPut, path: "/v3/security/roles/bob/_grant?role=emperor", user: "alice"})
	s.expect(http.StatusBadRequest, request{method: http.MethodPut, path: "/v3/security/roles/bob/_grant", user: "alice"})

	w = s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/security/roles/bob", user: "alice"})
	assert.Equal(t, `["deployer","monitor"]`, w.Body.String())

	s.expect(http.StatusNoContent, request{method: http.MethodPost, path: "/v3/caches/d", user: "bob"})
	s.expect(http.StatusNoContent, request{method: http.MethodPut, path: "/v2/security/roles/bob?action=deny&role=deployer", user: "alice"})
	s.expect(http.StatusForbidden, request{method: http.MethodPost, path: "/v3/caches/e", user: "bob"})

	// Every cache creation and role change was audited, even
	// when it was refused
	var audited []logrus.Fields
	for _, entry := range s.logs.AllEntries() {
		if entry.Message == "audit" {
			audited = append(audited, entry.Data)
		}
	}
	if assert.Len(t, audited, 10) {
		assert.Equal(t, AnonymousPrincipal, audited[0]["subject"])
		assert.Equal(t, http.StatusForbidden, audited[0]["status"])
		assert.Equal(t, "alice", audited[2]["subject"])
		assert.Equal(t, "cache", audited[2]["context"])
		assert.Equal(t, "c", audited[2]["cacheName"])
		assert.Equal(t, http.StatusNoContent, audited[2]["status"])
		assert.Equal(t, "security", audited[4]["context"])
		assert.Equal(t, "bob", audited[4]["principal"])
		assert.Equal(t, http.StatusBadRequest, audited[5]["status"])
	}
}

func TestNoSecurityService(t *testing.T) {
	s := newTestServer(t)
	s.expect(http.StatusNotImplemented, request{method: http.MethodGet, path: "/v3/security/user/acl"})
	s.expect(http.StatusNoContent, request{method: http.MethodPost, path: "/v3/caches/c"})
}

func TestMissingServices(t *testing.T) {
	handler, err := NewRouter(&grid.Services{}, Options{})
	require.NoError(t, err)
	for _, path := range []string{
		"/v3/caches",
		"/v3/counters",
		"/v3/tasks",
		"/v3/container/backups",
	} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotImplemented, w.Code, path)
	}
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.api.serve(w, httptest.NewRequest(http.MethodGet, "/v3/caches", nil), "/v3/caches", "")
	w = httptest.NewRecorder()
	s.api.serve(w, httptest.NewRequest(http.MethodGet, "/v3/nope", nil), "/v3/nope", "")

	assert.Equal(t, 1.0, testutil.ToFloat64(s.api.metrics.requests.WithLabelValues("listCaches", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.api.metrics.requests.WithLabelValues("unmatched", "404")))
	eventually(t, "idle executor", func() bool {
		return testutil.ToFloat64(s.api.metrics.inFlight) == 0
	})
}

// TestMountedPrefix checks that the API works under a subrouter
// prefix.
func TestMountedPrefix(t *testing.T) {
	s := newTestServer(t)
	r := mux.NewRouter().SkipClean(true).UseEncodedPath()
	require.NoError(t, PopulateRouter(r.PathPrefix("/rest").Subrouter(), s.services, Options{Clock: s.clock}))
	s.handler = r

	s.expect(http.StatusNoContent, request{method: http.MethodPost, path: "/rest/v3/caches/c"})
	w := s.expect(http.StatusOK, request{method: http.MethodGet, path: "/rest/v3/caches"})
	assert.Equal(t, `["c"]`, w.Body.String())
	s.expect(http.StatusNotFound, request{method: http.MethodGet, path: "/v3/caches"})
}
