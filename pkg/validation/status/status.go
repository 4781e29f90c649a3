// Package status declares the errors reported by ref update validators.
//
// Each typed error matches its sentinel with errors.Is, e.g.:
//
//	if errors.Is(err, status.ErrLock) { ... }
package status

import (
	"fmt"
	"strings"

	"github.com/oneconcern/globalrefdb/pkg/errors"
	"github.com/oneconcern/globalrefdb/pkg/model"
)

var (
	// ErrLock indicates that a ref lock could not be acquired. The update may be retried.
	ErrLock = errors.New("lock failure")

	// ErrOutOfSync indicates that the local ref differs from the global ref database
	ErrOutOfSync = errors.New("local ref is out of sync with the global ref database")

	// ErrRegistryWrite indicates that the global ref database could not be updated after a local update
	ErrRegistryWrite = errors.New("could not update the global ref database")

	// ErrSplitBrain indicates a local update which the global ref database refused
	ErrSplitBrain = errors.New("split brain")

	// ErrSnapshot indicates that the current value of some refs could not be resolved
	ErrSnapshot = errors.New("could not resolve refs")
)

// LockError is returned when a ref lock cannot be acquired
type LockError struct {
	Project string
	RefName string
	Scope   string
	Err     error
}

func (e *LockError) Error() string {
	msg := fmt.Sprintf("unable to acquire %s lock on %s:%s", strings.ToLower(e.Scope), e.Project, e.RefName)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LockError) Unwrap() error       { return e.Err }
func (e *LockError) Is(target error) bool { return target == ErrLock }

// OutOfSyncError is raised when the local value of a ref is not the one recorded globally
type OutOfSyncError struct {
	Project string
	Local   model.Ref
}

func (e *OutOfSyncError) Error() string {
	return fmt.Sprintf("local ref %s of project %s is out of sync with the global ref database", e.Local, e.Project)
}

func (e *OutOfSyncError) Is(target error) bool { return target == ErrOutOfSync }

// RegistryWriteError is raised when recording a ref update in the global ref database fails
type RegistryWriteError struct {
	Project string
	RefName string
	NewID   model.ObjectID
	Err     error
}

func (e *RegistryWriteError) Error() string {
	msg := fmt.Sprintf("not able to persist %s=%s of project %s in the global ref database", e.RefName, e.NewID, e.Project)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RegistryWriteError) Unwrap() error       { return e.Err }
func (e *RegistryWriteError) Is(target error) bool { return target == ErrRegistryWrite }

// SplitBrainError is returned when a ref has been updated locally, but the global ref database refused the update.
//
// Local and global states are inconsistent and require manual remediation.
type SplitBrainError struct {
	Project string
	RefName string
	NewID   model.ObjectID
}

func (e *SplitBrainError) Error() string {
	return fmt.Sprintf(
		"not able to persist %s=%s of project %s in the global ref database: "+
			"the cluster is now in split brain since the update has been persisted locally",
		e.RefName, e.NewID, e.Project,
	)
}

func (e *SplitBrainError) Is(target error) bool { return target == ErrSplitBrain }

// SnapshotError is returned when the current value of some refs of a batch could not be resolved
type SnapshotError struct {
	Project  string
	RefNames []string
	Err      error
}

func (e *SnapshotError) Error() string {
	msgs := make([]string, 0, len(e.RefNames))
	for _, name := range e.RefNames {
		msgs = append(msgs, "failed to fetch ref "+name)
	}
	msg := strings.Join(msgs, ", ")
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SnapshotError) Unwrap() error       { return e.Err }
func (e *SnapshotError) Is(target error) bool { return target == ErrSnapshot }
