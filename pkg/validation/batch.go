package validation

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/oneconcern/globalrefdb/pkg/enforcement"
	"github.com/oneconcern/globalrefdb/pkg/errors"
	"github.com/oneconcern/globalrefdb/pkg/model"
	"github.com/oneconcern/globalrefdb/pkg/validation/status"
)

// BatchApplyFunc applies a batch of commands to the local ref database, setting the result of each command
type BatchApplyFunc func(ctx context.Context, commands []*model.Command) error

// BatchRollbackFunc applies the commands reverting a batch
type BatchRollbackFunc func(ctx context.Context, commands []*model.Command) error

// BatchRefUpdateValidator checks batches of ref updates of a project against the global ref database.
//
// A batch is all or nothing: if any ref is out of sync, no command is applied.
type BatchRefUpdateValidator struct {
	validator
}

// NewBatchRefUpdateValidator builds a validator for the batch updates of a project, applied to a local ref database
func NewBatchRefUpdateValidator(db *SharedRefDatabase, project string, local model.RefDatabase, opts ...Option) *BatchRefUpdateValidator {
	return &BatchRefUpdateValidator{validator: newValidator(db, project, local, opts)}
}

// ExecuteBatchUpdate applies a batch of commands locally, provided they are consistent with the global ref database,
// then records them globally.
//
// When the batch is rejected, all commands are given a LockFailure result. Errors are only returned for
// projects under a strict policy, except split brain errors which are always returned.
func (v *BatchRefUpdateValidator) ExecuteBatchUpdate(ctx context.Context, commands []*model.Command, apply BatchApplyFunc, rollback BatchRollbackFunc) error {
	if !v.isProjectValidated() {
		return apply(ctx, commands)
	}

	err := v.doExecuteBatchUpdate(ctx, commands, apply, rollback)
	if err == nil {
		return nil
	}
	if errors.Is(err, status.ErrSplitBrain) {
		return err
	}

	v.l.Warn("failed to execute batch update", zap.Int("commands", len(commands)), zap.Error(err))
	if v.enforcement.Policy(v.project) == enforcement.Include {
		return err
	}
	return nil
}

func (v *BatchRefUpdateValidator) doExecuteBatchUpdate(ctx context.Context, commands []*model.Command, apply BatchApplyFunc, rollback BatchRollbackFunc) error {
	if len(commands) == 0 {
		return nil
	}

	snaps, err := v.snapshots(ctx, commands)
	if err != nil {
		return err
	}

	locks := newLockSet()
	defer v.release(locks)

	if err := v.lockAll(ctx, snaps, locks); err != nil {
		model.SetAllResults(commands, model.LockFailure)
		return err
	}

	latest := make([]*Snapshot, 0, len(snaps))
	for _, snap := range snaps {
		fresh, err := v.checkConsistency(ctx, snap)
		if err != nil {
			model.SetAllResults(commands, model.LockFailure)
			if errors.Is(err, status.ErrOutOfSync) {
				v.l.Warn("batch ref update rejected: local node is out of sync with the global ref database",
					zap.Int("commands", len(commands)),
					zap.Error(err),
				)
				return nil
			}
			return err
		}
		latest = append(latest, fresh)
	}

	if err := apply(ctx, commands); err != nil {
		return err
	}
	if !model.AllSuccessful(commands) {
		return nil
	}

	for _, snap := range latest {
		err := v.updateRegistry(ctx, snap)
		if err == nil {
			continue
		}
		if errors.Is(err, status.ErrSplitBrain) {
			v.l.Error("split brain detected", zap.String("ref", snap.Name()), zap.Error(err))
			model.SetAllResults(commands, model.LockFailure)
			return err
		}

		v.l.Warn("batch ref update failed because of a failure during the global ref database update",
			zap.String("ref", snap.Name()),
			zap.Error(err),
		)
		return v.rollback(ctx, latest, commands, rollback)
	}
	return nil
}

// snapshots resolves the current value of every ref in the batch.
//
// It fails if any ref cannot be resolved, or appears more than once in the batch.
func (v *BatchRefUpdateValidator) snapshots(ctx context.Context, commands []*model.Command) ([]*Snapshot, error) {
	snaps := make([]*Snapshot, 0, len(commands))
	seen := make(map[string]struct{}, len(commands))
	var (
		failed []string
		merr   error
	)
	for _, cmd := range commands {
		var snap *Snapshot
		if _, dup := seen[cmd.RefName]; dup {
			snap = failedSnapshot(cmd.RefName, fmt.Errorf("ref %s is updated more than once in the batch", cmd.RefName))
		} else {
			seen[cmd.RefName] = struct{}{}
			snap = v.commandSnapshot(ctx, cmd)
		}
		if snap.Failed() {
			failed = append(failed, cmd.RefName)
			merr = multierr.Append(merr, snap.Err())
		}
		snaps = append(snaps, snap)
	}
	if len(failed) > 0 {
		err := &status.SnapshotError{Project: v.project, RefNames: failed, Err: merr}
		v.l.Error("batch ref update aborted", zap.Error(err))
		return nil, err
	}
	return snaps, nil
}

func (v *BatchRefUpdateValidator) commandSnapshot(ctx context.Context, cmd *model.Command) *Snapshot {
	var (
		ref   model.Ref
		newID model.ObjectID
		err   error
	)
	switch cmd.Type {
	case model.Create:
		ref, newID = model.NullRef(cmd.RefName), cmd.NewID
	case model.Update, model.UpdateNonFastForward:
		ref, err = v.currentRef(ctx, cmd.RefName)
		newID = cmd.NewID
	case model.Delete:
		ref, err = v.currentRef(ctx, cmd.RefName)
		newID = model.ZeroID
	default:
		err = fmt.Errorf("unsupported command type %v", cmd.Type)
	}
	if err != nil {
		return failedSnapshot(cmd.RefName, err)
	}

	snap, err := NewSnapshot(ref, newID)
	if err != nil {
		return failedSnapshot(cmd.RefName, err)
	}
	return snap
}

// lockAll locks every distinct ref of the batch, unless excluded
func (v *BatchRefUpdateValidator) lockAll(ctx context.Context, snaps []*Snapshot, locks *lockSet) error {
	if v.db.IsNoop() {
		return nil
	}
	lctx, cancel := context.WithTimeout(ctx, v.lockTimeout)
	defer cancel()

	for _, snap := range snaps {
		if v.RefPolicy(snap.Name()) == enforcement.Exclude {
			continue
		}
		if err := v.lockRef(lctx, locks, snap.Name()); err != nil {
			v.l.Warn("unable to lock ref", zap.String("ref", snap.Name()), zap.Error(err))
			return err
		}
	}
	return nil
}

// rollback reverts the batch with inverse commands, and rejects all commands
func (v *BatchRefUpdateValidator) rollback(ctx context.Context, snaps []*Snapshot, commands []*model.Command, rollback BatchRollbackFunc) error {
	inverse := make([]*model.Command, 0, len(snaps))
	for _, snap := range snaps {
		inverse = append(inverse, model.NewCommand(snap.Name(), snap.NewID(), snap.OldID()))
	}

	v.l.Warn("batch ref update failed, rolling back and setting all commands to LOCK_FAILURE", zap.Int("commands", len(commands)))
	err := rollback(ctx, inverse)
	model.SetAllResults(commands, model.LockFailure)
	if err != nil {
		v.db.metrics.RollbackFailed(v.project)
		v.l.Error("failed to roll back the batch ref update", zap.Error(err))
		return err
	}
	return nil
}
