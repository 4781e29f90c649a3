package validation

import (
	"context"

	"go.uber.org/multierr"

	"github.com/oneconcern/globalrefdb/internal/keylock"
	"github.com/oneconcern/globalrefdb/pkg/refdb"
	"github.com/oneconcern/globalrefdb/pkg/refdb/status"
)

// LocalLocker serializes concurrent attempts on the same ref within this process
type LocalLocker struct {
	locks *keylock.Locks
}

// NewLocalLocker builds an in-process ref locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: keylock.New()}
}

func localKey(project, refName string) string {
	return refdb.Key(project, refName) + ":local"
}

// LockRef acquires the local lock on a ref, waiting until the context is done
func (k *LocalLocker) LockRef(ctx context.Context, project, refName string) (refdb.Lock, error) {
	l, err := k.locks.Lock(ctx, localKey(project, refName))
	if err != nil {
		return nil, status.ErrLock.Wrap(err)
	}
	return l, nil
}

// LockWrapper is a held lock on a ref. Acquisition and release are audited.
type LockWrapper struct {
	Project string
	RefName string
	Scope   Scope

	lock  refdb.Lock
	audit AuditLogger
}

func newLockWrapper(audit AuditLogger, project, refName string, lock refdb.Lock, scope Scope) *LockWrapper {
	audit.LogLockAcquisition(project, refName, scope)
	return &LockWrapper{
		Project: project,
		RefName: refName,
		Scope:   scope,
		lock:    lock,
		audit:   audit,
	}
}

// Release the lock
func (w *LockWrapper) Release() error {
	if err := w.lock.Release(); err != nil {
		return err
	}
	w.audit.LogLockRelease(w.Project, w.RefName, w.Scope)
	return nil
}

// lockSet holds the locks acquired during an attempt, at most once per key
type lockSet struct {
	keys  map[string]struct{}
	locks []*LockWrapper
}

func newLockSet() *lockSet {
	return &lockSet{keys: make(map[string]struct{})}
}

// acquire a lock unless a lock for the same key is already held
func (s *lockSet) acquire(key string, lockFunc func() (*LockWrapper, error)) error {
	if _, held := s.keys[key]; held {
		return nil
	}
	lock, err := lockFunc()
	if err != nil {
		return err
	}
	s.keys[key] = struct{}{}
	s.locks = append(s.locks, lock)
	return nil
}

// releaseAll releases locks in the reverse order of their acquisition
func (s *lockSet) releaseAll() error {
	var err error
	for i := len(s.locks) - 1; i >= 0; i-- {
		err = multierr.Append(err, s.locks[i].Release())
	}
	s.locks = nil
	s.keys = make(map[string]struct{})
	return err
}
