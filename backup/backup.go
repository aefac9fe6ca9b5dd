// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package backup implements grid.BackupManager for any grid engine.
// Backups are zip archives holding cache configurations, cache
// entries, and counters; restores load such an archive back into a
// grid.  Both run in their own goroutines, and their progress is
// tracked by name.
package backup

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/diffeo/go-gridrest/grid"
)

// Manager is a grid.BackupManager.
type Manager struct {
	// Gate, if non-nil, holds every operation in progress until
	// it is closed.  Set it before starting any operation.
	Gate <-chan struct{}

	grid     grid.Grid
	counters grid.CounterManager
	dir      string

	lock     sync.Mutex
	backups  operations
	restores operations
}

// operations tracks one kind of operation by name.
type operations struct {
	kind string
	// ownsFiles is set if forgetting an operation should delete
	// its result file.
	ownsFiles bool
	ops       map[string]*operation
}

type operation struct {
	status   grid.OperationStatus
	path     string
	err      error
	deferred bool
}

// New creates a backup manager for g.  counters may be nil, in
// which case archives carry no counters.  Backups created without a
// working directory are written under dir.
func New(g grid.Grid, counters grid.CounterManager, dir string) *Manager {
	return &Manager{
		grid:     g,
		counters: counters,
		dir:      dir,
		backups: operations{
			kind:      "backup",
			ownsFiles: true,
			ops:       make(map[string]*operation),
		},
		restores: operations{
			kind: "restore",
			ops:  make(map[string]*operation),
		},
	}
}

// start registers a new in-progress operation and runs work for it
// in a goroutine.
func (m *Manager) start(ops *operations, name string, work func() (string, error)) (<-chan error, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if _, present := ops.ops[name]; present {
		return nil, grid.ErrOperationExists{Kind: ops.kind, Name: name}
	}
	op := &operation{status: grid.OperationInProgress}
	ops.ops[name] = op

	done := make(chan error, 1)
	go func() {
		if m.Gate != nil {
			<-m.Gate
		}
		path, err := work()
		m.finish(ops, name, op, path, err)
		done <- err
		close(done)
	}()
	return done, nil
}

// finish records the outcome of an operation, carrying out a
// deferred removal if one was requested.
func (m *Manager) finish(ops *operations, name string, op *operation, path string, err error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	op.err = err
	op.path = path
	if err != nil {
		op.status = grid.OperationFailed
	} else {
		op.status = grid.OperationComplete
	}
	if op.deferred {
		ops.forget(name, op)
	}
}

// forget drops an operation and any file it owns.  The caller holds
// the manager lock.
func (ops *operations) forget(name string, op *operation) {
	delete(ops.ops, name)
	if ops.ownsFiles && op.path != "" {
		_ = os.Remove(op.path)
	}
}

func (m *Manager) status(ops *operations, name string) grid.OperationStatus {
	m.lock.Lock()
	defer m.lock.Unlock()
	op, present := ops.ops[name]
	if !present {
		return grid.OperationNotFound
	}
	return op.status
}

func (m *Manager) remove(ops *operations, name string) grid.OperationStatus {
	m.lock.Lock()
	defer m.lock.Unlock()
	op, present := ops.ops[name]
	if !present {
		return grid.OperationNotFound
	}
	if op.status == grid.OperationInProgress {
		op.deferred = true
		return grid.OperationInProgress
	}
	ops.forget(name, op)
	return op.status
}

func (m *Manager) names(ops *operations) []string {
	m.lock.Lock()
	defer m.lock.Unlock()
	names := make([]string, 0, len(ops.ops))
	for name := range ops.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateBackup starts writing name.zip into workingDir.
func (m *Manager) CreateBackup(name, workingDir string, resources grid.Resources) (<-chan error, error) {
	if workingDir == "" {
		workingDir = m.dir
	}
	if workingDir == "" {
		workingDir = os.TempDir()
	}
	path := filepath.Join(workingDir, name+".zip")
	return m.start(&m.backups, name, func() (string, error) {
		if err := os.MkdirAll(workingDir, 0o755); err != nil {
			return "", err
		}
		if err := m.writeArchive(path, resources); err != nil {
			_ = os.Remove(path)
			return "", err
		}
		return path, nil
	})
}

// RestoreBackup starts loading the archive at archivePath.
func (m *Manager) RestoreBackup(name, archivePath string, resources grid.Resources) (<-chan error, error) {
	return m.start(&m.restores, name, func() (string, error) {
		return "", m.readArchive(archivePath, resources)
	})
}

// BackupStatus returns the state of a backup.
func (m *Manager) BackupStatus(name string) grid.OperationStatus {
	return m.status(&m.backups, name)
}

// RestoreStatus returns the state of a restore.
func (m *Manager) RestoreStatus(name string) grid.OperationStatus {
	return m.status(&m.restores, name)
}

// BackupPath returns the archive of a completed backup.
func (m *Manager) BackupPath(name string) string {
	m.lock.Lock()
	defer m.lock.Unlock()
	op, present := m.backups.ops[name]
	if !present || op.status != grid.OperationComplete {
		return ""
	}
	return op.path
}

// Err returns the failure of a failed backup or restore of the given
// kind ("backup" or "restore"), or nil.
func (m *Manager) Err(kind, name string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	ops := &m.backups
	if kind == m.restores.kind {
		ops = &m.restores
	}
	if op, present := ops.ops[name]; present {
		return op.err
	}
	return nil
}

// RemoveBackup removes a backup and deletes its archive.
func (m *Manager) RemoveBackup(name string) grid.OperationStatus {
	return m.remove(&m.backups, name)
}

// RemoveRestore forgets a restore.
func (m *Manager) RemoveRestore(name string) grid.OperationStatus {
	return m.remove(&m.restores, name)
}

// BackupNames returns the names of all backups, sorted.
func (m *Manager) BackupNames() []string {
	return m.names(&m.backups)
}

// RestoreNames returns the names of all restores, sorted.
func (m *Manager) RestoreNames() []string {
	return m.names(&m.restores)
}
