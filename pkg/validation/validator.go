package validation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oneconcern/globalrefdb/pkg/enforcement"
	"github.com/oneconcern/globalrefdb/pkg/errors"
	"github.com/oneconcern/globalrefdb/pkg/model"
	"github.com/oneconcern/globalrefdb/pkg/refdb"
	"github.com/oneconcern/globalrefdb/pkg/validation/status"
)

// ApplyFunc applies a ref update to the local ref database
type ApplyFunc func(ctx context.Context) (model.Result, error)

// RollbackFunc restores a ref to its value before an update
type RollbackFunc func(ctx context.Context, oldID model.ObjectID) (model.Result, error)

// validator holds what is common to single and batch validators
type validator struct {
	db      *SharedRefDatabase
	project string
	local   model.RefDatabase

	enforcement        *enforcement.Enforcement
	projects           *enforcement.ProjectsFilter
	ignoredRefPrefixes []string
	lockTimeout        time.Duration

	l *zap.Logger
}

func newValidator(db *SharedRefDatabase, project string, local model.RefDatabase, opts []Option) validator {
	if db == nil {
		db = NewSharedRefDatabase(nil)
	}
	v := validator{
		db:                 db,
		project:            project,
		local:              local,
		enforcement:        enforcement.New(),
		projects:           enforcement.MustProjectsFilter(),
		ignoredRefPrefixes: append([]string(nil), DefaultIgnoredRefPrefixes...),
		lockTimeout:        DefaultLockTimeout,
	}
	for _, apply := range opts {
		apply(&v)
	}
	v.l = db.l.With(zap.String("project", project))
	return v
}

// IgnoredBy returns the ignored prefix matching a ref name, if any. Ignored refs are never checked.
func (v *validator) IgnoredBy(refName string) (string, bool) {
	for _, prefix := range v.ignoredRefPrefixes {
		if strings.HasPrefix(refName, prefix) {
			return prefix, true
		}
	}
	return "", false
}

func (v *validator) isRefIgnored(refName string) bool {
	_, ignored := v.IgnoredBy(refName)
	return ignored
}

// ProjectPolicy returns the policy applying to the project of this validator.
//
// Projects not matched by the projects filter are excluded.
func (v *validator) ProjectPolicy() enforcement.Policy {
	if !v.projects.Matches(v.project) {
		return enforcement.Exclude
	}
	return v.enforcement.Policy(v.project)
}

// isProjectValidated tells if the project is subject to validation at all
func (v *validator) isProjectValidated() bool {
	return v.ProjectPolicy() != enforcement.Exclude
}

// RefPolicy returns the policy applying to a ref of the project of this validator
func (v *validator) RefPolicy(refName string) enforcement.Policy {
	if v.isRefIgnored(refName) {
		return enforcement.Exclude
	}
	return v.enforcement.RefPolicy(v.project, refName)
}

// currentRef returns the local value of a ref, or a null ref
func (v *validator) currentRef(ctx context.Context, refName string) (model.Ref, error) {
	ref, err := v.local.ExactRef(ctx, refName)
	if err != nil {
		return model.NullRef(refName), err
	}
	if ref == nil {
		return model.NullRef(refName), nil
	}
	return *ref, nil
}

// lockRef acquires the local, then the global lock on a ref
func (v *validator) lockRef(ctx context.Context, locks *lockSet, refName string) error {
	if err := locks.acquire(localKey(v.project, refName), func() (*LockWrapper, error) {
		return v.db.LockLocalRef(ctx, v.project, refName)
	}); err != nil {
		return err
	}
	return locks.acquire(refdb.Key(v.project, refName), func() (*LockWrapper, error) {
		return v.db.LockRef(ctx, v.project, refName)
	})
}

func (v *validator) release(locks *lockSet) {
	if err := locks.releaseAll(); err != nil {
		v.l.Error("failed to release ref locks: "+
			"the locked refs won't be writable in the cluster unless the locks are removed from the global ref database",
			zap.Error(err),
		)
	}
}

// checkConsistency compares the freshest local value of a ref with the global ref database.
//
// It returns a snapshot with the freshest local value. An OutOfSyncError is only returned under a strict policy.
func (v *validator) checkConsistency(ctx context.Context, snap *Snapshot) (*Snapshot, error) {
	policy := v.RefPolicy(snap.Name())
	if policy == enforcement.Exclude {
		return snap, nil
	}

	latest, err := v.currentRef(ctx, snap.Name())
	if err != nil {
		return snap, err
	}
	fresh := snap.withRef(latest)

	upToDate, err := v.db.IsUpToDate(ctx, v.project, latest)
	if err != nil {
		return fresh, err
	}
	if upToDate {
		return fresh, nil
	}

	if latest.IsNull() {
		exists, err := v.db.Exists(ctx, v.project, latest.Name)
		if err != nil {
			return fresh, err
		}
		if !exists {
			return fresh, nil
		}
	}

	v.db.metrics.SplitBrainPrevented(v.project)
	outOfSync := &status.OutOfSyncError{Project: v.project, Local: latest}
	v.l.Warn("local ref is out of sync with the global ref database",
		zap.String("ref", latest.Name),
		zap.Stringer("policy", policy),
		zap.Error(outOfSync),
	)
	if policy == enforcement.Include {
		return fresh, outOfSync
	}
	return fresh, nil
}

// updateRegistry records the new value of a ref in the global ref database
func (v *validator) updateRegistry(ctx context.Context, snap *Snapshot) error {
	if v.RefPolicy(snap.Name()) == enforcement.Exclude {
		return nil
	}

	if !v.db.IsNoop() {
		local, err := v.currentRef(ctx, snap.Name())
		if err != nil {
			return &status.RegistryWriteError{Project: v.project, RefName: snap.Name(), NewID: snap.NewID(), Err: err}
		}
		if !local.ObjectID.Equal(snap.NewID()) {
			err := fmt.Errorf("local ref value is %s instead of the expected value %s", local.ObjectID, snap.NewID())
			v.l.Error("aborting the global ref database update", zap.String("ref", snap.Name()), zap.Error(err))
			return &status.RegistryWriteError{Project: v.project, RefName: snap.Name(), NewID: snap.NewID(), Err: err}
		}
	}

	succeeded, err := v.db.CompareAndPut(ctx, v.project, snap.Ref(), snap.NewID())
	if err != nil {
		return &status.RegistryWriteError{Project: v.project, RefName: snap.Name(), NewID: snap.NewID(), Err: err}
	}
	if !succeeded {
		v.db.metrics.SplitBrain(v.project)
		return &status.SplitBrainError{Project: v.project, RefName: snap.Name(), NewID: snap.NewID()}
	}
	return nil
}

// RefUpdateValidator checks single ref updates of a project against the global ref database
type RefUpdateValidator struct {
	validator
}

// NewRefUpdateValidator builds a validator for the updates of a project, applied to a local ref database
func NewRefUpdateValidator(db *SharedRefDatabase, project string, local model.RefDatabase, opts ...Option) *RefUpdateValidator {
	return &RefUpdateValidator{validator: newValidator(db, project, local, opts)}
}

// ExecuteRefUpdate applies a ref update locally, provided it is consistent with the global ref database,
// then records it globally.
//
// Refs which are ignored and projects which are not validated are updated without any check.
//
// The update is rejected with a LockFailure result when:
//   - the ref cannot be locked: the LockError is returned, and the update may be retried
//   - the local ref is out of sync under a strict policy
//   - the global ref database cannot record the update: the local update is rolled back
//
// A SplitBrainError is returned when the global ref database refused an update already applied locally.
func (v *RefUpdateValidator) ExecuteRefUpdate(ctx context.Context, update model.RefUpdate, apply ApplyFunc, rollback RollbackFunc) (model.Result, error) {
	if v.isRefIgnored(update.Name) || !v.isProjectValidated() {
		return apply(ctx)
	}
	return v.doExecuteRefUpdate(ctx, update, apply, rollback)
}

func (v *RefUpdateValidator) doExecuteRefUpdate(ctx context.Context, update model.RefUpdate, apply ApplyFunc, rollback RollbackFunc) (model.Result, error) {
	locks := newLockSet()
	defer v.release(locks)

	current, err := v.currentRef(ctx, update.Name)
	if err != nil {
		return model.IOFailure, err
	}
	snap, err := NewSnapshot(current, update.NewID)
	if err != nil {
		return model.RejectedOtherReason, err
	}

	snap, err = v.compareAndGetLatestLocalRef(ctx, snap, locks)
	if err != nil {
		var lockErr *status.LockError
		switch {
		case errors.As(err, &lockErr):
			v.l.Warn("unable to lock ref", zap.String("ref", update.Name), zap.Error(err))
			return model.LockFailure, err
		case errors.Is(err, status.ErrOutOfSync):
			return model.LockFailure, nil
		default:
			return model.LockFailure, err
		}
	}

	result, err := apply(ctx)
	if err != nil {
		return result, err
	}
	if !result.IsSuccessful() {
		return result, nil
	}

	if err := v.updateRegistry(ctx, snap); err != nil {
		if errors.Is(err, status.ErrSplitBrain) {
			v.l.Error("split brain detected", zap.String("ref", snap.Name()), zap.Error(err))
			return model.LockFailure, err
		}

		rolledBack, rerr := rollback(ctx, snap.OldID())
		if rerr != nil || !rolledBack.IsSuccessful() {
			v.db.metrics.RollbackFailed(v.project)
			v.l.Error("failed to roll back the local ref update",
				zap.String("ref", snap.Name()),
				zap.Stringer("oldID", snap.OldID()),
				zap.Stringer("result", rolledBack),
				zap.NamedError("rollbackError", rerr),
			)
		}
		v.l.Error("failed to update the global ref database, the local ref update has been rolled back",
			zap.String("ref", snap.Name()),
			zap.Error(err),
		)
		return model.LockFailure, nil
	}

	return result, nil
}

// compareAndGetLatestLocalRef locks the ref, then checks its freshest local value against the global ref database
func (v *RefUpdateValidator) compareAndGetLatestLocalRef(ctx context.Context, snap *Snapshot, locks *lockSet) (*Snapshot, error) {
	if v.RefPolicy(snap.Name()) == enforcement.Exclude {
		return snap, nil
	}

	if !v.db.IsNoop() {
		lctx, cancel := context.WithTimeout(ctx, v.lockTimeout)
		defer cancel()
		if err := v.lockRef(lctx, locks, snap.Name()); err != nil {
			return snap, err
		}
	}

	return v.checkConsistency(ctx, snap)
}
