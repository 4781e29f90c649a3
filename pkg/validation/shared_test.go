package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oneconcern/globalrefdb/internal/rand"
	"github.com/oneconcern/globalrefdb/pkg/model"
	"github.com/oneconcern/globalrefdb/pkg/refdb"
	refstatus "github.com/oneconcern/globalrefdb/pkg/refdb/status"
	"github.com/oneconcern/globalrefdb/pkg/validation/status"
)

// getter is a global ref database without Put
type getter struct {
	refdb.GlobalRefDatabase
}

func TestSharedRefDatabaseNoop(t *testing.T) {
	ctx := context.Background()
	s := NewSharedRefDatabase(nil, Logger(zap.NewNop()))
	assert.True(t, s.IsNoop())
	assert.False(t, s.IsSetOperationSupported())

	upToDate, err := s.IsUpToDate(ctx, "p", model.NewRef(mainBranch, rand.ObjectID()))
	require.NoError(t, err)
	assert.True(t, upToDate)

	ok, err := s.CompareAndPut(ctx, "p", model.NullRef(mainBranch), rand.ObjectID())
	require.NoError(t, err)
	assert.True(t, ok)

	exists, err := s.Exists(ctx, "p", mainBranch)
	require.NoError(t, err)
	assert.False(t, exists)

	err = s.Put(ctx, "p", mainBranch, refdb.StringValue("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, refstatus.ErrNotSupported))
}

func TestSharedRefDatabasePut(t *testing.T) {
	ctx := context.Background()
	audit, logs := observedAudit()
	reg := newRegistry()
	s := NewSharedRefDatabase(reg, Logger(zap.NewNop()), Audit(audit))
	require.False(t, s.IsNoop())
	require.True(t, s.IsSetOperationSupported())

	require.NoError(t, s.Put(ctx, "p", "refs/meta/version", refdb.Int64Value(42)))
	v, found, err := s.Get(ctx, "p", "refs/meta/version")
	require.NoError(t, err)
	require.True(t, found)
	n, err := v.AsInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	require.Len(t, logs.FilterMessage("ref put").All(), 1)

	unsupported := NewSharedRefDatabase(getter{GlobalRefDatabase: reg}, Logger(zap.NewNop()))
	assert.False(t, unsupported.IsSetOperationSupported())
	err = unsupported.Put(ctx, "p", "refs/meta/version", refdb.Int64Value(43))
	assert.True(t, errors.Is(err, refstatus.ErrNotSupported))
}

func TestSharedRefDatabaseCompareAndPutValue(t *testing.T) {
	ctx := context.Background()
	audit, logs := observedAudit()
	s := NewSharedRefDatabase(newRegistry(), Logger(zap.NewNop()), Audit(audit))

	ok, err := s.CompareAndPutValue(ctx, "p", "refs/meta/owner", refdb.Value{}, refdb.StringValue("node-1"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.CompareAndPutValue(ctx, "p", "refs/meta/owner", refdb.StringValue("node-2"), refdb.StringValue("node-3"))
	require.NoError(t, err)
	assert.False(t, ok)

	updates := logs.FilterMessage("ref update").All()
	require.Len(t, updates, 1, "only successful updates are audited")
	assert.Equal(t, "node-1", updates[0].ContextMap()["newValue"])
}

func TestSharedRefDatabaseRemove(t *testing.T) {
	ctx := context.Background()
	audit, logs := observedAudit()
	reg := newRegistry()
	s := NewSharedRefDatabase(reg, Logger(zap.NewNop()), Audit(audit))
	project := rand.ProjectName()
	reg.record(t, project, mainBranch, rand.ObjectID())

	require.NoError(t, s.Remove(ctx, project))
	assert.Zero(t, reg.Len(project))

	deletes := logs.FilterMessage("project delete").All()
	require.Len(t, deletes, 1)
	assert.Equal(t, project, deletes[0].ContextMap()["project"])
}

func TestSharedRefDatabaseFailures(t *testing.T) {
	f := newValidatorFixture(t)
	f.registry.lockErr = refstatus.ErrLock.Wrap(errors.New("lock server unavailable"))

	_, err := f.shared.LockRef(context.Background(), f.project, mainBranch)
	require.Error(t, err)

	var lockErr *status.LockError
	require.True(t, errors.As(err, &lockErr))
	assert.Equal(t, f.project, lockErr.Project)
	assert.Equal(t, mainBranch, lockErr.RefName)
	assert.True(t, errors.Is(err, refstatus.ErrLock), "the cause is kept")

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.OperationFailures.WithLabelValues(opLockRef)))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.LockFailures.WithLabelValues(string(ScopeGlobal))))
}

func TestSharedRefDatabaseFailureCounting(t *testing.T) {
	ctx := context.Background()
	f := newValidatorFixture(t)

	unsupported := NewSharedRefDatabase(getter{GlobalRefDatabase: f.registry}, Logger(zap.NewNop()), Metrics(f.metrics))
	err := unsupported.Put(ctx, f.project, "refs/meta/version", refdb.Int64Value(1))
	require.True(t, errors.Is(err, refstatus.ErrNotSupported))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.OperationFailures.WithLabelValues(opPut)))

	lock, err := f.shared.LockLocalRef(ctx, f.project, mainBranch)
	require.NoError(t, err)
	defer func() { _ = lock.Release() }()

	tctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = f.shared.LockLocalRef(tctx, f.project, mainBranch)
	require.Error(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.OperationFailures.WithLabelValues(opLockLocalRef)))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.LockFailures.WithLabelValues(string(ScopeLocal))))
	assert.Equal(t, 2, testutil.CollectAndCount(f.metrics.OperationDuration, "globalrefdb_operation_duration_seconds"),
		"put and local locks are timed")
}

func TestLocalLocks(t *testing.T) {
	s := NewSharedRefDatabase(nil, Logger(zap.NewNop()))
	lock, err := s.LockLocalRef(context.Background(), "p", mainBranch)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = s.LockLocalRef(ctx, "p", mainBranch)
	require.Error(t, err)
	assert.True(t, ShouldRetry(err))

	other, err := s.LockLocalRef(context.Background(), "p", devBranch)
	require.NoError(t, err, "locks are per ref")
	require.NoError(t, other.Release())

	require.NoError(t, lock.Release())
	require.NoError(t, lock.Release(), "release is idempotent")

	again, err := s.LockLocalRef(context.Background(), "p", mainBranch)
	require.NoError(t, err)
	require.NoError(t, again.Release())
	assert.Zero(t, s.local.locks.Len(), "released local locks are dropped")
}

type recordingLock struct {
	name     string
	released *[]string
	err      error
}

func (l recordingLock) Release() error {
	*l.released = append(*l.released, l.name)
	return l.err
}

func TestLockSet(t *testing.T) {
	var released []string
	locks := newLockSet()
	acquire := func(name string, err error) func() (*LockWrapper, error) {
		return func() (*LockWrapper, error) {
			return newLockWrapper(DisabledAuditLogger{}, "p", name, recordingLock{name: name, released: &released, err: err}, ScopeLocal), nil
		}
	}

	require.NoError(t, locks.acquire("a", acquire("a", nil)))
	require.NoError(t, locks.acquire("b", acquire("b", errors.New("lost lock"))))
	require.NoError(t, locks.acquire("a", func() (*LockWrapper, error) {
		t.Fatal("a held lock is not acquired twice")
		return nil, nil
	}))
	require.NoError(t, locks.acquire("c", acquire("c", errors.New("lost lock"))))

	failing := errors.New("unavailable")
	err := locks.acquire("d", func() (*LockWrapper, error) { return nil, failing })
	assert.Equal(t, failing, err)

	err = locks.releaseAll()
	require.Error(t, err, "release errors are aggregated")
	assert.Equal(t, []string{"c", "b", "a"}, released, "locks are released in reverse order")

	require.NoError(t, locks.releaseAll(), "released locks are forgotten")
	assert.Len(t, released, 3)
}
