// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/diffeo/go-gridrest/grid"
)

// TaskFunc is the body of a server-side task.
type TaskFunc func(ctx context.Context, params map[string]string) (interface{}, error)

// TaskManager is an in-process registry of named tasks.  It
// implements grid.TaskManager.
type TaskManager struct {
	lock  sync.RWMutex
	tasks map[string]registeredTask
}

type registeredTask struct {
	info grid.TaskInfo
	run  TaskFunc
}

// NewTaskManager creates an empty task registry.
func NewTaskManager() *TaskManager {
	return &TaskManager{tasks: make(map[string]registeredTask)}
}

// Register adds or replaces a task.  If info.Type is empty it is
// recorded as "go".
func (m *TaskManager) Register(info grid.TaskInfo, run TaskFunc) {
	if info.Type == "" {
		info.Type = "go"
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	m.tasks[info.Name] = registeredTask{info: info, run: run}
}

// Tasks lists every registered task, sorted by name.
func (m *TaskManager) Tasks() ([]grid.TaskInfo, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	result := make([]grid.TaskInfo, 0, len(m.tasks))
	for _, task := range m.tasks {
		result = append(result, task.info)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// RunTask runs a registered task in the calling goroutine.
func (m *TaskManager) RunTask(ctx context.Context, name string, params map[string]string) (interface{}, error) {
	m.lock.RLock()
	task, present := m.tasks[name]
	m.lock.RUnlock()
	if !present {
		return nil, grid.ErrNoSuchTask{Name: name}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return task.run(ctx, params)
}
