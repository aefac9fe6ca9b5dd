// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package memory

import (
	"context"
	"testing"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/grid/gridtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// Suite is the per-engine generic test suite.
type Suite struct {
	gridtest.Suite
}

// SetupSuite does global setup for the test suite.
func (s *Suite) SetupSuite() {
	s.Suite.SetupSuite()
	s.Grid = NewWithClock(s.Clock)
	s.Counters = NewCounterManager()
}

// TestGrid runs the generic grid tests.
func TestGrid(t *testing.T) {
	suite.Run(t, &Suite{})
}

func TestTasks(t *testing.T) {
	tasks := NewTaskManager()
	tasks.Register(grid.TaskInfo{Name: "hello", Parameters: []string{"name"}},
		func(ctx context.Context, params map[string]string) (interface{}, error) {
			return "Hello " + params["name"], nil
		})
	tasks.Register(grid.TaskInfo{Name: "apple", Type: "script"},
		func(ctx context.Context, params map[string]string) (interface{}, error) {
			return nil, nil
		})

	list, err := tasks.Tasks()
	require.NoError(t, err)
	if assert.Len(t, list, 2) {
		assert.Equal(t, "apple", list[0].Name)
		assert.Equal(t, "script", list[0].Type)
		assert.Equal(t, "hello", list[1].Name)
		assert.Equal(t, "go", list[1].Type)
	}

	result, err := tasks.RunTask(context.Background(), "hello", map[string]string{"name": "world"})
	assert.NoError(t, err)
	assert.Equal(t, "Hello world", result)

	_, err = tasks.RunTask(context.Background(), "missing", nil)
	assert.Equal(t, grid.ErrNoSuchTask{Name: "missing"}, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tasks.RunTask(ctx, "hello", nil)
	assert.Equal(t, context.Canceled, err)
}

func TestSecurity(t *testing.T) {
	sec := NewSecurity()

	assert.IsType(t, grid.ErrForbidden{}, sec.Authorize("alice", grid.PermissionRead))
	assert.NoError(t, sec.Authorize("alice", grid.PermissionNone))

	assert.NoError(t, sec.Grant("alice", []string{"observer"}))
	assert.NoError(t, sec.Authorize("alice", grid.PermissionRead))
	assert.IsType(t, grid.ErrForbidden{}, sec.Authorize("alice", grid.PermissionWrite))

	assert.Equal(t, grid.ErrNoSuchRole{Name: "wizard"}, sec.Grant("alice", []string{"wizard"}))

	sec.DefineRole("writer", grid.PermissionWrite)
	assert.NoError(t, sec.Grant("alice", []string{"writer"}))
	perm, err := sec.Permissions("alice")
	assert.NoError(t, err)
	assert.True(t, perm.Implies(grid.PermissionRead|grid.PermissionWrite))

	roles, err := sec.Roles("alice")
	assert.NoError(t, err)
	assert.Equal(t, []string{"observer", "writer"}, roles)

	assert.NoError(t, sec.Deny("alice", []string{"observer", "writer", "missing"}))
	roles, err = sec.Roles("alice")
	assert.NoError(t, err)
	assert.Empty(t, roles)
}

func TestXSite(t *testing.T) {
	g := New()
	_, err := g.CreateCache("c", grid.CacheConfig{Sites: []string{"NYC", "LON"}})
	require.NoError(t, err)
	x := NewXSiteAdmin(g, true)

	status, err := x.SiteStatus("c")
	assert.NoError(t, err)
	assert.Equal(t, map[string]string{"NYC": grid.SiteOnline, "LON": grid.SiteOnline}, status)

	result, err := x.TakeSiteOffline("c", "NYC")
	assert.NoError(t, err)
	assert.Equal(t, grid.XSiteSuccess, result)
	result, err = x.TakeSiteOffline("c", "NYC")
	assert.NoError(t, err)
	assert.NotEqual(t, grid.XSiteSuccess, result)

	result, err = x.PushState("c", "NYC")
	assert.NoError(t, err)
	assert.NotEqual(t, grid.XSiteSuccess, result)

	result, err = x.BringSiteOnline("c", "NYC")
	assert.NoError(t, err)
	assert.Equal(t, grid.XSiteSuccess, result)

	result, err = x.PushState("c", "LON")
	assert.NoError(t, err)
	assert.Equal(t, grid.XSiteSuccess, result)
	pushes, err := x.PushStateStatus("c")
	assert.NoError(t, err)
	assert.Equal(t, map[string]string{"LON": "SENDING"}, pushes)

	result, err = x.CancelPushState("c", "LON")
	assert.NoError(t, err)
	assert.Equal(t, grid.XSiteSuccess, result)
	result, err = x.CancelPushState("c", "LON")
	assert.NoError(t, err)
	assert.NotEqual(t, grid.XSiteSuccess, result)

	result, err = x.TakeSiteOffline("c", "SFO")
	assert.NoError(t, err)
	assert.Equal(t, "Incorrect site name: SFO", result)

	_, err = x.SiteStatus("missing")
	assert.Equal(t, grid.ErrNoSuchCache{Name: "missing"}, err)
}

func TestQuery(t *testing.T) {
	g := New()
	cache, err := g.CreateCache("people", grid.CacheConfig{Encoding: grid.JSONType, Indexed: true})
	require.NoError(t, err)
	for key, value := range map[string]string{
		"1": `{"_type":"Person","name":"Alice","age":31}`,
		"2": `{"_type":"Person","name":"Bob","age":25}`,
		"3": `{"_type":"Person","name":"Carol","age":47}`,
		"4": `{"_type":"Pet","name":"Rex","age":3}`,
	} {
		require.NoError(t, cache.Put(key, []byte(value), grid.WriteOptions{}))
	}
	q := NewQueryEngine(g, nil)

	result, err := q.Query("people", grid.Query{Text: "FROM Person"})
	if assert.NoError(t, err) {
		assert.Equal(t, 3, result.HitCount)
		assert.True(t, result.HitCountExact)
	}

	result, err = q.Query("people", grid.Query{
		Text: "from Person where age >= 30 order by age desc",
	})
	if assert.NoError(t, err) && assert.Len(t, result.Hits, 2) {
		assert.Equal(t, "Carol", result.Hits[0]["name"])
		assert.Equal(t, "Alice", result.Hits[1]["name"])
	}

	result, err = q.Query("people", grid.Query{
		Text:       "FROM Person WHERE name != 'Bob' ORDER BY name",
		Offset:     1,
		MaxResults: 5,
	})
	if assert.NoError(t, err) && assert.Len(t, result.Hits, 1) {
		assert.Equal(t, 2, result.HitCount)
		assert.Equal(t, "Carol", result.Hits[0]["name"])
	}

	result, err = q.Query("people", grid.Query{Text: "FROM Person", HitCountAccuracy: 2})
	if assert.NoError(t, err) {
		assert.False(t, result.HitCountExact)
		assert.Len(t, result.Hits, 3)
	}

	for _, bad := range []string{"", "SELECT x", "FROM", "FROM Person WHERE", "FROM Person WHERE age ~ 3", "FROM Person WHERE name = 'x", "FROM Person ORDER age"} {
		_, err = q.Query("people", grid.Query{Text: bad})
		assert.IsType(t, grid.ErrBadQuery{}, err, "%q", bad)
	}

	_, err = q.Query("missing", grid.Query{Text: "FROM Person"})
	assert.Equal(t, grid.ErrNoSuchCache{Name: "missing"}, err)
}

func TestReindex(t *testing.T) {
	g := New()
	cache, err := g.CreateCache("indexed", grid.CacheConfig{Encoding: grid.JSONType, Indexed: true})
	require.NoError(t, err)
	_, err = g.CreateCache("plain", grid.CacheConfig{Encoding: grid.JSONType})
	require.NoError(t, err)
	require.NoError(t, cache.Put("a", []byte(`{"_type":"T"}`), grid.WriteOptions{}))
	q := NewQueryEngine(g, nil)

	done, err := q.Reindex("indexed")
	require.NoError(t, err)
	assert.NoError(t, <-done)
	size, present := q.IndexSize("indexed")
	assert.True(t, present)
	assert.Equal(t, 1, size)

	assert.NoError(t, q.ClearIndex("indexed"))
	_, present = q.IndexSize("indexed")
	assert.False(t, present)

	_, err = q.Reindex("plain")
	assert.Equal(t, grid.ErrNotIndexed{Cache: "plain"}, err)
	assert.Equal(t, grid.ErrNotIndexed{Cache: "plain"}, q.ClearIndex("plain"))
}
