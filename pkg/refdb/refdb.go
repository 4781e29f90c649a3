// Package refdb defines the contract of the global ref database: the cluster-wide record of
// the value of every ref, shared by all nodes.
//
// Implementations are found in subpackages:
//   - memory: in-process, for single node deployments and tests
//   - bdgr: badger-backed, with TTL'd lock records
//   - instrumented: opentracing decorator for any implementation
package refdb

import (
	"context"

	"github.com/oneconcern/globalrefdb/pkg/model"
)

// GlobalRefDatabase is the authoritative record of refs across the cluster.
//
// All mutations are compare-and-put: a write only succeeds if the recorded value is the expected one.
// A missing record is equivalent to a zero value.
type GlobalRefDatabase interface {
	// IsUpToDate tells if the recorded value for the ref matches the given ref.
	// When no record exists, only a null ref is up to date.
	IsUpToDate(ctx context.Context, project string, ref model.Ref) (bool, error)

	// CompareAndPut records newID for the ref, provided the recorded value matches current
	CompareAndPut(ctx context.Context, project string, current model.Ref, newID model.ObjectID) (bool, error)

	// CompareAndPutValue records a value under a key, provided the recorded value equals expected
	CompareAndPutValue(ctx context.Context, project, refName string, expected, newValue Value) (bool, error)

	// LockRef acquires the cluster-wide lock for a ref, waiting at most until the context is done
	LockRef(ctx context.Context, project, refName string) (Lock, error)

	// Exists tells if a record exists for the ref
	Exists(ctx context.Context, project, refName string) (bool, error)

	// Remove deletes all records for a project
	Remove(ctx context.Context, project string) error

	// Get returns the recorded value for a key, and false when there is no such record
	Get(ctx context.Context, project, refName string) (Value, bool, error)
}

// Setter is implemented by backends which support unconditional writes
type Setter interface {
	Put(ctx context.Context, project, refName string, value Value) error
}

// Lock is a held lock. Release may be called several times.
type Lock interface {
	Release() error
}

// Key identifies a ref across projects
func Key(project, refName string) string {
	return project + ":" + refName
}
