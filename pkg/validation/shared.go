// Package validation guards local ref updates against split brain.
//
// Updates are checked against the global ref database before being applied locally, then
// recorded in the global ref database. Updates found out of sync are rejected, and local
// updates which cannot be recorded are rolled back.
//
// SharedRefDatabase wraps the global ref database with timings, failure tracking and audit.
// RefUpdateValidator and BatchRefUpdateValidator implement the validation protocol for
// single and batched updates.
package validation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/oneconcern/globalrefdb/pkg/errors"
	"github.com/oneconcern/globalrefdb/pkg/metrics"
	"github.com/oneconcern/globalrefdb/pkg/model"
	"github.com/oneconcern/globalrefdb/pkg/refdb"
	refstatus "github.com/oneconcern/globalrefdb/pkg/refdb/status"
	"github.com/oneconcern/globalrefdb/pkg/validation/status"
)

// operations reported in metrics
const (
	opIsUpToDate    = "isUpToDate"
	opCompareAndPut = "compareAndPut"
	opLockRef       = "lockRef"
	opLockLocalRef  = "lockLocalRef"
	opExists        = "exists"
	opRemove        = "remove"
	opGet           = "get"
	opPut           = "put"
)

// SharedRefDatabase wraps a global ref database.
//
// Every operation is timed, and failures are counted and logged. Successful mutations and locks are audited.
// Without a global ref database, it behaves like refdb.Noop.
type SharedRefDatabase struct {
	db      refdb.GlobalRefDatabase
	noop    bool
	local   *LocalLocker
	audit   AuditLogger
	metrics *metrics.Metrics
	l       *zap.Logger
}

// NewSharedRefDatabase wraps a global ref database. A nil database is replaced by refdb.Noop.
func NewSharedRefDatabase(db refdb.GlobalRefDatabase, opts ...DatabaseOption) *SharedRefDatabase {
	s := defaultSharedRefDatabase()
	for _, apply := range opts {
		apply(s)
	}
	if db == nil {
		s.l.Warn("no global ref database configured: using a no-op implementation")
		db = refdb.Noop
	}
	s.db = db
	s.noop = refdb.IsNoop(db)
	return s
}

// IsNoop tells if there is no actual global ref database. Locking may be skipped in that case.
func (s *SharedRefDatabase) IsNoop() bool {
	return s.noop
}

// IsSetOperationSupported tells if Put is supported by the global ref database
func (s *SharedRefDatabase) IsSetOperationSupported() bool {
	_, ok := s.db.(refdb.Setter)
	return ok
}

func (s *SharedRefDatabase) done(start time.Time, operation string, err error, details func() string) {
	s.metrics.UsedAll(start, operation)(err)
	if err != nil {
		s.l.Warn("global ref database operation failed",
			zap.String("operation", operation),
			zap.String("details", details()),
			zap.Error(err),
		)
	}
}

// IsUpToDate tells if a local ref matches the global ref database
func (s *SharedRefDatabase) IsUpToDate(ctx context.Context, project string, ref model.Ref) (upToDate bool, err error) {
	defer func(start time.Time) {
		s.done(start, opIsUpToDate, err, func() string { return project + ":" + ref.String() + " is up-to-date" })
	}(time.Now())

	return s.db.IsUpToDate(ctx, project, ref)
}

// CompareAndPut records the new value of a ref, if the global ref database holds the current one
func (s *SharedRefDatabase) CompareAndPut(ctx context.Context, project string, current model.Ref, newID model.ObjectID) (succeeded bool, err error) {
	defer func(start time.Time) {
		s.done(start, opCompareAndPut, err, func() string {
			return "compare " + project + ":" + current.String() + " and put " + newID.String()
		})
	}(time.Now())

	succeeded, err = s.db.CompareAndPut(ctx, project, current, newID)
	if err == nil && succeeded {
		s.audit.LogRefUpdate(project, current.Name, refdb.RefValue(current), refdb.ObjectIDValue(newID))
	}
	return succeeded, err
}

// CompareAndPutValue records a value, if the global ref database holds the expected one
func (s *SharedRefDatabase) CompareAndPutValue(ctx context.Context, project, refName string, expected, newValue refdb.Value) (succeeded bool, err error) {
	defer func(start time.Time) {
		s.done(start, opCompareAndPut, err, func() string {
			return "compare " + project + ":" + refName + ":" + expected.String() + " and put " + newValue.String()
		})
	}(time.Now())

	succeeded, err = s.db.CompareAndPutValue(ctx, project, refName, expected, newValue)
	if err == nil && succeeded {
		s.audit.LogRefUpdate(project, refName, expected, newValue)
	}
	return succeeded, err
}

// Put records a value unconditionally. It is only supported by some global ref databases.
func (s *SharedRefDatabase) Put(ctx context.Context, project, refName string, value refdb.Value) (err error) {
	defer func(start time.Time) {
		s.done(start, opPut, err, func() string { return "put " + project + ":" + refName + " = " + value.String() })
	}(time.Now())

	setter, ok := s.db.(refdb.Setter)
	if !ok {
		return refstatus.ErrNotSupported.Wrap(errors.New("put"))
	}

	if err = setter.Put(ctx, project, refName, value); err != nil {
		return err
	}
	s.audit.LogRefPut(project, refName, value)
	return nil
}

// LockRef acquires the cluster-wide lock on a ref
func (s *SharedRefDatabase) LockRef(ctx context.Context, project, refName string) (lock *LockWrapper, err error) {
	defer func(start time.Time) {
		s.done(start, opLockRef, err, func() string { return "lock " + refdb.Key(project, refName) })
	}(time.Now())

	l, err := s.db.LockRef(ctx, project, refName)
	if err != nil {
		s.metrics.LockFailed(string(ScopeGlobal))
		return nil, &status.LockError{Project: project, RefName: refName, Scope: string(ScopeGlobal), Err: err}
	}
	return newLockWrapper(s.audit, project, refName, l, ScopeGlobal), nil
}

// LockLocalRef acquires the in-process lock on a ref
func (s *SharedRefDatabase) LockLocalRef(ctx context.Context, project, refName string) (lock *LockWrapper, err error) {
	defer func(start time.Time) {
		s.done(start, opLockLocalRef, err, func() string { return "local lock " + refdb.Key(project, refName) })
	}(time.Now())

	l, err := s.local.LockRef(ctx, project, refName)
	if err != nil {
		s.metrics.LockFailed(string(ScopeLocal))
		return nil, &status.LockError{Project: project, RefName: refName, Scope: string(ScopeLocal), Err: err}
	}
	return newLockWrapper(s.audit, project, refName, l, ScopeLocal), nil
}

// Exists tells if the global ref database holds a record for a ref
func (s *SharedRefDatabase) Exists(ctx context.Context, project, refName string) (exists bool, err error) {
	defer func(start time.Time) {
		s.done(start, opExists, err, func() string { return refdb.Key(project, refName) + " exists" })
	}(time.Now())

	return s.db.Exists(ctx, project, refName)
}

// Remove all records of a project
func (s *SharedRefDatabase) Remove(ctx context.Context, project string) (err error) {
	defer func(start time.Time) {
		s.done(start, opRemove, err, func() string { return "remove " + project })
	}(time.Now())

	if err = s.db.Remove(ctx, project); err != nil {
		return err
	}
	s.audit.LogProjectDelete(project)
	return nil
}

// Get the value recorded for a key
func (s *SharedRefDatabase) Get(ctx context.Context, project, refName string) (value refdb.Value, found bool, err error) {
	defer func(start time.Time) {
		s.done(start, opGet, err, func() string { return "get " + refdb.Key(project, refName) })
	}(time.Now())

	return s.db.Get(ctx, project, refName)
}
