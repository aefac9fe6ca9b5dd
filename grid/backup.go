// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package grid

// OperationStatus is the lifecycle state of a named long-running
// operation such as a backup or restore.
type OperationStatus int

const (
	// OperationNotFound means no operation with the name exists.
	OperationNotFound OperationStatus = iota

	// OperationInProgress means the operation has started and
	// not yet finished.
	OperationInProgress

	// OperationComplete means the operation finished
	// successfully.
	OperationComplete

	// OperationFailed means the operation finished
	// unsuccessfully.  It will not be retried.
	OperationFailed
)

// Resource type names used in Resources.
const (
	ResourceCaches    = "caches"
	ResourceTemplates = "templates"
	ResourceCounters  = "counters"
	ResourceTasks     = "tasks"
)

// AllResources names every resource of a given type.
const AllResources = "*"

// Resources selects what a backup or restore covers, as a map from
// resource type to names.  A nil or empty map selects everything.
// A name list of ["*"] selects every resource of that type.
type Resources map[string][]string

// Includes returns true if the named resource of the given type is
// selected.
func (r Resources) Includes(resourceType, name string) bool {
	if len(r) == 0 {
		return true
	}
	names, present := r[resourceType]
	if !present {
		return false
	}
	for _, n := range names {
		if n == AllResources || n == name {
			return true
		}
	}
	return false
}

// BackupManager creates and restores archives of grid state.  Both
// kinds of operation run asynchronously; their progress is observed
// by polling the status functions.
type BackupManager interface {
	// CreateBackup starts writing an archive named name into
	// workingDir (or a manager-specific default directory if
	// empty).  If a backup with this name already exists in any
	// state, returns ErrOperationExists and does nothing.  The
	// returned channel receives exactly one value, nil on
	// success, when the backup reaches a terminal state.
	CreateBackup(name, workingDir string, resources Resources) (<-chan error, error)

	// RestoreBackup starts loading the archive at archivePath.
	// If a restore with this name already exists, returns
	// ErrOperationExists.  The returned channel behaves as for
	// CreateBackup.
	RestoreBackup(name, archivePath string, resources Resources) (<-chan error, error)

	// BackupStatus returns the current state of a backup.
	BackupStatus(name string) OperationStatus

	// RestoreStatus returns the current state of a restore.
	RestoreStatus(name string) OperationStatus

	// BackupPath returns the archive location of a completed
	// backup, or an empty string if it is not complete.
	BackupPath(name string) string

	// RemoveBackup removes a backup and its archive.  It returns
	// the state the backup was in: OperationNotFound if there was
	// nothing to do, OperationInProgress if removal is deferred
	// until the backup finishes, or the terminal state of a
	// backup that was removed immediately.
	RemoveBackup(name string) OperationStatus

	// RemoveRestore forgets a restore, with the same return
	// conventions as RemoveBackup.
	RemoveRestore(name string) OperationStatus

	// BackupNames returns the names of all known backups.
	BackupNames() []string

	// RestoreNames returns the names of all known restores.
	RestoreNames() []string
}
