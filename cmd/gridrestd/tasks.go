// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"context"
	"fmt"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/memory"
)

// builtinTasks returns the server-side tasks every daemon offers.
func builtinTasks(g grid.Grid) *memory.TaskManager {
	tasks := memory.NewTaskManager()
	tasks.Register(grid.TaskInfo{Name: "cache-sizes"},
		func(ctx context.Context, params map[string]string) (interface{}, error) {
			return cacheSizes(g)
		})
	tasks.Register(grid.TaskInfo{Name: "clear-caches", Parameters: []string{"cache"}},
		func(ctx context.Context, params map[string]string) (interface{}, error) {
			return nil, clearCaches(ctx, g, params["cache"])
		})
	return tasks
}

// cacheSizes counts the entries in every cache.
func cacheSizes(g grid.Grid) (map[string]int, error) {
	names, err := g.CacheNames()
	if err != nil {
		return nil, err
	}
	sizes := make(map[string]int, len(names))
	for _, name := range names {
		cache, err := g.Cache(name)
		if _, gone := err.(grid.ErrNoSuchCache); gone {
			continue
		}
		if err != nil {
			return nil, err
		}
		size, err := cache.Size()
		if err != nil {
			return nil, err
		}
		sizes[name] = size
	}
	return sizes, nil
}

// clearCaches empties the named cache, or every cache if name is
// empty.
func clearCaches(ctx context.Context, g grid.Grid, name string) error {
	names := []string{name}
	if name == "" {
		var err error
		names, err = g.CacheNames()
		if err != nil {
			return err
		}
	}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		cache, err := g.Cache(name)
		if err != nil {
			return err
		}
		if err := cache.Clear(); err != nil {
			return fmt.Errorf("clearing %v: %w", name, err)
		}
	}
	return nil
}
