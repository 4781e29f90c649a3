// Package memory implements an in-process global ref database.
//
// Records live in a map, and locks are per-key in-process locks: this is suitable for
// a single node deployment, and for tests.
package memory

import (
	"context"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/oneconcern/globalrefdb/internal/keylock"
	"github.com/oneconcern/globalrefdb/pkg/model"
	"github.com/oneconcern/globalrefdb/pkg/refdb"
	"github.com/oneconcern/globalrefdb/pkg/refdb/status"
)

var (
	_ refdb.GlobalRefDatabase = &RefDatabase{}
	_ refdb.Setter            = &RefDatabase{}
)

// RefDatabase is an in-memory global ref database
type RefDatabase struct {
	l *zap.Logger

	mx      sync.RWMutex
	records map[string]map[string]refdb.Value

	locks *keylock.Locks

	acquired *atomic.Int64
	released *atomic.Int64
}

// Option for the in-memory global ref database
type Option func(*RefDatabase)

// WithLogger sets a logger
func WithLogger(l *zap.Logger) Option {
	return func(r *RefDatabase) {
		if l != nil {
			r.l = l
		}
	}
}

// New in-memory global ref database
func New(opts ...Option) *RefDatabase {
	r := &RefDatabase{
		l:        zap.NewNop(),
		records:  make(map[string]map[string]refdb.Value),
		locks:    keylock.New(),
		acquired: atomic.NewInt64(0),
		released: atomic.NewInt64(0),
	}
	for _, apply := range opts {
		apply(r)
	}
	return r
}

func (r *RefDatabase) get(project, refName string) (refdb.Value, bool) {
	r.mx.RLock()
	defer r.mx.RUnlock()
	refs, ok := r.records[project]
	if !ok {
		return refdb.Value{}, false
	}
	v, ok := refs[refName]
	return v, ok
}

// set assumes the write lock is held
func (r *RefDatabase) set(project, refName string, value refdb.Value) {
	refs, ok := r.records[project]
	if !ok {
		refs = make(map[string]refdb.Value)
		r.records[project] = refs
	}
	refs[refName] = value
}

// IsUpToDate tells if the recorded value matches the ref. Without a record, only a null ref is up to date.
func (r *RefDatabase) IsUpToDate(_ context.Context, project string, ref model.Ref) (bool, error) {
	v, ok := r.get(project, ref.Name)
	if !ok {
		return ref.IsNull(), nil
	}
	return v.Equal(refdb.RefValue(ref)), nil
}

// CompareAndPut records a new object id for a ref, if the recorded value matches current
func (r *RefDatabase) CompareAndPut(ctx context.Context, project string, current model.Ref, newID model.ObjectID) (bool, error) {
	return r.CompareAndPutValue(ctx, project, current.Name, refdb.RefValue(current), refdb.ObjectIDValue(newID))
}

// CompareAndPutValue records a value, if the recorded value equals expected
func (r *RefDatabase) CompareAndPutValue(_ context.Context, project, refName string, expected, newValue refdb.Value) (bool, error) {
	r.mx.Lock()
	defer r.mx.Unlock()

	var (
		current refdb.Value
		found   bool
	)
	if refs, ok := r.records[project]; ok {
		current, found = refs[refName]
	}

	if !found && !expected.IsZero() || found && !current.Equal(expected) {
		r.l.Debug("compare and put rejected",
			zap.String("project", project),
			zap.String("ref", refName),
			zap.Stringer("expected", expected),
			zap.Stringer("current", current),
		)
		return false, nil
	}

	r.set(project, refName, newValue)
	return true, nil
}

// Put records a value unconditionally
func (r *RefDatabase) Put(_ context.Context, project, refName string, value refdb.Value) error {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.set(project, refName, value)
	return nil
}

// Exists tells if a record exists for a ref
func (r *RefDatabase) Exists(_ context.Context, project, refName string) (bool, error) {
	_, ok := r.get(project, refName)
	return ok, nil
}

// Get the recorded value for a ref
func (r *RefDatabase) Get(_ context.Context, project, refName string) (refdb.Value, bool, error) {
	v, ok := r.get(project, refName)
	return v, ok, nil
}

// Remove all records of a project
func (r *RefDatabase) Remove(_ context.Context, project string) error {
	r.mx.Lock()
	defer r.mx.Unlock()
	delete(r.records, project)
	return nil
}

// Len returns the number of records held for a project
func (r *RefDatabase) Len(project string) int {
	r.mx.RLock()
	defer r.mx.RUnlock()
	return len(r.records[project])
}

// LockRef acquires the lock for a ref, waiting until the context is done
func (r *RefDatabase) LockRef(ctx context.Context, project, refName string) (refdb.Lock, error) {
	l, err := r.locks.Lock(ctx, refdb.Key(project, refName))
	if err != nil {
		return nil, status.ErrLock.Wrap(err)
	}
	r.acquired.Inc()
	return &lock{Lock: l, onRelease: r.released.Inc}, nil
}

// IsLocked tells if the lock for a ref is currently held
func (r *RefDatabase) IsLocked(project, refName string) bool {
	l, ok := r.locks.TryLock(refdb.Key(project, refName))
	if !ok {
		return true
	}
	_ = l.Release()
	return false
}

// LockedKeys returns the number of refs currently locked or awaited
func (r *RefDatabase) LockedKeys() int {
	return r.locks.Len()
}

// LockStats returns the number of locks acquired and released so far
func (r *RefDatabase) LockStats() (acquired, released int64) {
	return r.acquired.Load(), r.released.Load()
}

type lock struct {
	*keylock.Lock
	once      sync.Once
	onRelease func() int64
}

func (l *lock) Release() error {
	l.once.Do(func() {
		_ = l.Lock.Release()
		l.onRelease()
	})
	return nil
}
