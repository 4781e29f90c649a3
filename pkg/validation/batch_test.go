package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneconcern/globalrefdb/internal/rand"
	"github.com/oneconcern/globalrefdb/pkg/enforcement"
	"github.com/oneconcern/globalrefdb/pkg/model"
	"github.com/oneconcern/globalrefdb/pkg/validation/status"
)

const devBranch = "refs/heads/dev"

type batchCalls struct {
	applied    int
	rolledBack [][]*model.Command
}

func (c *batchCalls) apply(local *localRefs) BatchApplyFunc {
	return func(ctx context.Context, commands []*model.Command) error {
		c.applied++
		return local.applyCommands(ctx, commands)
	}
}

func (c *batchCalls) rollback(local *localRefs, err error) BatchRollbackFunc {
	return func(ctx context.Context, commands []*model.Command) error {
		c.rolledBack = append(c.rolledBack, commands)
		if err != nil {
			return err
		}
		return local.applyCommands(ctx, commands)
	}
}

func assertAllResults(t testing.TB, commands []*model.Command, expected model.Result) {
	for _, cmd := range commands {
		assert.Equalf(t, expected, cmd.Result, "command %v", cmd)
	}
}

func TestBatchUpdate(t *testing.T) {
	f := newValidatorFixture(t)
	mainID, devID := rand.ObjectID(), rand.ObjectID()
	newMain, newDev := rand.ObjectID(), rand.ObjectID()
	f.local.set(mainBranch, mainID)
	f.local.set(devBranch, devID)
	f.registry.record(t, f.project, mainBranch, mainID)
	f.registry.record(t, f.project, devBranch, devID)

	commands := []*model.Command{
		model.NewCommand(mainBranch, mainID, newMain),
		model.NewCommand(devBranch, devID, newDev),
		model.NewCommand("refs/heads/feature", model.ZeroID, rand.ObjectID()),
	}
	v := NewBatchRefUpdateValidator(f.shared, f.project, f.local, strict(f.project))
	var calls batchCalls

	require.NoError(t, v.ExecuteBatchUpdate(context.Background(), commands, calls.apply(f.local), calls.rollback(f.local, nil)))

	assert.Equal(t, 1, calls.applied, "the batch is applied once")
	assert.Empty(t, calls.rolledBack)
	assertAllResults(t, commands, model.OK)

	for _, cmd := range commands {
		recorded, found := f.registry.recorded(t, f.project, cmd.RefName)
		require.True(t, found)
		assert.Equal(t, cmd.NewID, recorded)
	}
	acquired, released := f.registry.LockStats()
	assert.Equal(t, int64(3), acquired)
	assert.Equal(t, acquired, released)
}

func TestBatchDelete(t *testing.T) {
	f := newValidatorFixture(t)
	id := rand.ObjectID()
	f.local.set(devBranch, id)
	f.registry.record(t, f.project, devBranch, id)

	commands := []*model.Command{model.NewCommand(devBranch, id, model.ZeroID)}
	v := NewBatchRefUpdateValidator(f.shared, f.project, f.local, strict(f.project))
	var calls batchCalls

	require.NoError(t, v.ExecuteBatchUpdate(context.Background(), commands, calls.apply(f.local), calls.rollback(f.local, nil)))
	assertAllResults(t, commands, model.OK)

	recorded, found := f.registry.recorded(t, f.project, devBranch)
	require.True(t, found, "a deleted ref is recorded with the zero id")
	assert.True(t, recorded.IsZero())
}

func TestBatchAtomicity(t *testing.T) {
	for _, toPin := range []struct {
		name string
		opts func(project string) []Option
	}{
		{name: "strict project", opts: func(project string) []Option { return []Option{strict(project)} }},
		{name: "default policy", opts: func(string) []Option { return nil }},
	} {
		fixture := toPin
		t.Run(fixture.name, func(t *testing.T) {
			f := newValidatorFixture(t)
			mainID, devID := rand.ObjectID(), rand.ObjectID()
			f.local.set(mainBranch, mainID)
			f.local.set(devBranch, devID)
			f.registry.record(t, f.project, mainBranch, mainID)
			f.registry.record(t, f.project, devBranch, rand.ObjectID()) // dev is out of sync

			commands := []*model.Command{
				model.NewCommand(mainBranch, mainID, rand.ObjectID()),
				model.NewCommand(devBranch, devID, rand.ObjectID()),
			}
			v := NewBatchRefUpdateValidator(f.shared, f.project, f.local, fixture.opts(f.project)...)
			var calls batchCalls

			require.NoError(t, v.ExecuteBatchUpdate(context.Background(), commands, calls.apply(f.local), calls.rollback(f.local, nil)))

			assert.Zero(t, calls.applied, "no command is applied")
			assertAllResults(t, commands, model.LockFailure)
			assert.Zero(t, f.registry.writes.Load(), "no registry write")
			assert.Equal(t, mainID, f.local.get(mainBranch))
			assert.Equal(t, devID, f.local.get(devBranch))
		})
	}
}

func TestBatchEmpty(t *testing.T) {
	f := newValidatorFixture(t)
	v := NewBatchRefUpdateValidator(f.shared, f.project, f.local, strict(f.project))
	var calls batchCalls

	require.NoError(t, v.ExecuteBatchUpdate(context.Background(), nil, calls.apply(f.local), calls.rollback(f.local, nil)))
	assert.Zero(t, calls.applied)
	assert.Zero(t, f.registry.reads.Load()+f.registry.locks.Load())
}

func TestBatchBypass(t *testing.T) {
	f := newValidatorFixture(t)
	f.local.set(mainBranch, rand.ObjectID())
	commands := []*model.Command{model.NewCommand(mainBranch, rand.ObjectID(), rand.ObjectID())}
	v := NewBatchRefUpdateValidator(f.shared, f.project, f.local,
		Enforcement(enforcement.New(enforcement.StoreNoRefs(enforcement.All))),
	)
	var calls batchCalls

	require.NoError(t, v.ExecuteBatchUpdate(context.Background(), commands, calls.apply(f.local), calls.rollback(f.local, nil)))
	assert.Equal(t, 1, calls.applied)
	assertAllResults(t, commands, model.OK)
	assert.Zero(t, f.registry.reads.Load()+f.registry.writes.Load()+f.registry.locks.Load())
}

func TestBatchIgnoredRefs(t *testing.T) {
	f := newValidatorFixture(t)
	id := rand.ObjectID()
	f.local.set(mainBranch, id)
	f.registry.record(t, f.project, mainBranch, id)
	automerge := "refs/cache-automerge/ab/cdef"
	f.local.set(automerge, rand.ObjectID())

	commands := []*model.Command{
		model.NewCommand(mainBranch, id, rand.ObjectID()),
		model.NewCommand(automerge, f.local.get(automerge), rand.ObjectID()),
	}
	v := NewBatchRefUpdateValidator(f.shared, f.project, f.local, strict(f.project))
	var calls batchCalls

	require.NoError(t, v.ExecuteBatchUpdate(context.Background(), commands, calls.apply(f.local), calls.rollback(f.local, nil)))
	assertAllResults(t, commands, model.OK)

	_, found := f.registry.recorded(t, f.project, automerge)
	assert.False(t, found, "ignored refs are never recorded")
	assert.Equal(t, int64(1), f.registry.locks.Load(), "ignored refs are never locked")
	assert.Equal(t, int64(1), f.registry.writes.Load())
}

func TestBatchDuplicateRefs(t *testing.T) {
	f := newValidatorFixture(t)
	id := rand.ObjectID()
	f.local.set(mainBranch, id)
	f.registry.record(t, f.project, mainBranch, id)

	newID := rand.ObjectID()
	commands := []*model.Command{
		model.NewCommand(mainBranch, id, newID),
		model.NewCommand(devBranch, model.ZeroID, rand.ObjectID()),
		model.NewCommand(mainBranch, id, newID),
	}
	v := NewBatchRefUpdateValidator(f.shared, f.project, f.local, strict(f.project))
	var calls batchCalls

	err := v.ExecuteBatchUpdate(context.Background(), commands, calls.apply(f.local), calls.rollback(f.local, nil))
	require.Error(t, err)

	var snapErr *status.SnapshotError
	require.True(t, errors.As(err, &snapErr))
	assert.Equal(t, []string{mainBranch}, snapErr.RefNames)
	assert.Contains(t, err.Error(), "more than once")
	assert.False(t, errors.Is(err, status.ErrSplitBrain))

	assert.Zero(t, calls.applied)
	assert.Zero(t, f.registry.locks.Load())
	assert.Zero(t, f.registry.writes.Load())
	assert.Equal(t, id, f.local.get(mainBranch))
	assert.Zero(t, testutil.ToFloat64(f.metrics.SplitBrains.WithLabelValues(f.project)))
}

func TestBatchSnapshotFailure(t *testing.T) {
	f := newValidatorFixture(t)
	f.local.readErr = errors.New("disk failure")

	commands := []*model.Command{
		model.NewCommand(mainBranch, rand.ObjectID(), rand.ObjectID()),
		model.NewCommand(devBranch, rand.ObjectID(), model.ZeroID),
		model.NewCommand("refs/heads/new", model.ZeroID, rand.ObjectID()),
	}
	v := NewBatchRefUpdateValidator(f.shared, f.project, f.local, strict(f.project))
	var calls batchCalls

	err := v.ExecuteBatchUpdate(context.Background(), commands, calls.apply(f.local), calls.rollback(f.local, nil))
	require.Error(t, err)
	assert.Zero(t, calls.applied)

	var snapErr *status.SnapshotError
	require.True(t, errors.As(err, &snapErr))
	assert.Equal(t, []string{mainBranch, devBranch}, snapErr.RefNames, "creates do not read the local ref")
	assert.Contains(t, err.Error(), "failed to fetch ref "+mainBranch)
	assert.Contains(t, err.Error(), "disk failure")
}

func TestBatchUnknownCommand(t *testing.T) {
	f := newValidatorFixture(t)
	commands := []*model.Command{model.NewCommand(mainBranch, model.ZeroID, model.ZeroID)}
	require.Equal(t, model.Unknown, commands[0].Type)

	var calls batchCalls
	relaxed := NewBatchRefUpdateValidator(f.shared, f.project, f.local)
	require.NoError(t, relaxed.ExecuteBatchUpdate(context.Background(), commands, calls.apply(f.local), calls.rollback(f.local, nil)),
		"errors are only returned for strict projects",
	)
	assert.Zero(t, calls.applied)

	strictValidator := NewBatchRefUpdateValidator(f.shared, f.project, f.local, strict(f.project))
	err := strictValidator.ExecuteBatchUpdate(context.Background(), commands, calls.apply(f.local), calls.rollback(f.local, nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrSnapshot))
}

func TestBatchRegistryWriteFailure(t *testing.T) {
	for _, toPin := range []struct {
		name        string
		rollbackErr error
	}{
		{name: "rollback succeeds"},
		{name: "rollback fails", rollbackErr: errors.New("rollback failure")},
	} {
		fixture := toPin
		t.Run(fixture.name, func(t *testing.T) {
			f := newValidatorFixture(t)
			mainID, devID := rand.ObjectID(), rand.ObjectID()
			newMain, newDev := rand.ObjectID(), rand.ObjectID()
			f.local.set(mainBranch, mainID)
			f.local.set(devBranch, devID)
			f.registry.record(t, f.project, mainBranch, mainID)
			f.registry.record(t, f.project, devBranch, devID)
			f.registry.casErr = errors.New("transient failure")

			commands := []*model.Command{
				model.NewCommand(mainBranch, mainID, newMain),
				model.NewCommand(devBranch, devID, newDev),
			}
			v := NewBatchRefUpdateValidator(f.shared, f.project, f.local, strict(f.project))
			var calls batchCalls

			err := v.ExecuteBatchUpdate(context.Background(), commands, calls.apply(f.local), calls.rollback(f.local, fixture.rollbackErr))
			if fixture.rollbackErr != nil {
				require.Error(t, err)
				assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RollbackFailures.WithLabelValues(f.project)))
			} else {
				require.NoError(t, err)
				assert.Equal(t, mainID, f.local.get(mainBranch))
				assert.Equal(t, devID, f.local.get(devBranch))
			}

			assertAllResults(t, commands, model.LockFailure)
			require.Len(t, calls.rolledBack, 1, "rollback is invoked once")
			inverse := calls.rolledBack[0]
			require.Len(t, inverse, 2)
			assert.Equal(t, mainBranch, inverse[0].RefName)
			assert.Equal(t, newMain, inverse[0].OldID)
			assert.Equal(t, mainID, inverse[0].NewID)
			assert.Equal(t, devID, inverse[1].NewID)
		})
	}
}

func TestBatchSplitBrain(t *testing.T) {
	f := newValidatorFixture(t)
	id := rand.ObjectID()
	f.local.set(mainBranch, id)
	f.registry.record(t, f.project, mainBranch, id)
	f.registry.casRefused = true

	commands := []*model.Command{model.NewCommand(mainBranch, id, rand.ObjectID())}
	// split brains are returned regardless of the policy
	v := NewBatchRefUpdateValidator(f.shared, f.project, f.local)
	var calls batchCalls

	err := v.ExecuteBatchUpdate(context.Background(), commands, calls.apply(f.local), calls.rollback(f.local, nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrSplitBrain))
	assert.Empty(t, calls.rolledBack)
	assertAllResults(t, commands, model.LockFailure)
}

func TestBatchLockFailure(t *testing.T) {
	f := newValidatorFixture(t)
	mainID, devID := rand.ObjectID(), rand.ObjectID()
	f.local.set(mainBranch, mainID)
	f.local.set(devBranch, devID)

	held, err := f.registry.RefDatabase.LockRef(context.Background(), f.project, devBranch)
	require.NoError(t, err)
	defer func() { _ = held.Release() }()

	commands := []*model.Command{
		model.NewCommand(mainBranch, mainID, rand.ObjectID()),
		model.NewCommand(devBranch, devID, rand.ObjectID()),
	}
	v := NewBatchRefUpdateValidator(f.shared, f.project, f.local, strict(f.project), LockTimeout(20*time.Millisecond))
	var calls batchCalls

	err = v.ExecuteBatchUpdate(context.Background(), commands, calls.apply(f.local), calls.rollback(f.local, nil))
	require.Error(t, err)
	assert.True(t, ShouldRetry(err))
	assert.Zero(t, calls.applied)
	assertAllResults(t, commands, model.LockFailure)
	assert.False(t, f.registry.IsLocked(f.project, mainBranch), "acquired locks are released")
}

func TestBatchNoopRefDatabase(t *testing.T) {
	local := newLocalRefs()
	project := rand.ProjectName()
	commands := []*model.Command{model.NewCommand(mainBranch, model.ZeroID, rand.ObjectID())}
	v := NewBatchRefUpdateValidator(nil, project, local, strict(project))
	var calls batchCalls

	require.NoError(t, v.ExecuteBatchUpdate(context.Background(), commands, calls.apply(local), calls.rollback(local, nil)))
	assert.Equal(t, 1, calls.applied)
	assertAllResults(t, commands, model.OK)
}
