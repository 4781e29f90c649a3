package validation

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/oneconcern/globalrefdb/pkg/model"
	"github.com/oneconcern/globalrefdb/pkg/refdb"
	"github.com/oneconcern/globalrefdb/pkg/refdb/memory"
)

// localRefs is a fake local ref database
type localRefs struct {
	mx      sync.Mutex
	refs    map[string]model.ObjectID
	readErr error
}

func newLocalRefs() *localRefs {
	return &localRefs{refs: make(map[string]model.ObjectID)}
}

func (l *localRefs) ExactRef(_ context.Context, name string) (*model.Ref, error) {
	l.mx.Lock()
	defer l.mx.Unlock()
	if l.readErr != nil {
		return nil, l.readErr
	}
	id, ok := l.refs[name]
	if !ok {
		return nil, nil
	}
	ref := model.NewRef(name, id)
	return &ref, nil
}

func (l *localRefs) set(name string, id model.ObjectID) {
	l.mx.Lock()
	defer l.mx.Unlock()
	if id.IsZero() {
		delete(l.refs, name)
		return
	}
	l.refs[name] = id
}

func (l *localRefs) get(name string) model.ObjectID {
	l.mx.Lock()
	defer l.mx.Unlock()
	return l.refs[name]
}

// applyCommands applies a batch like a local ref database would
func (l *localRefs) applyCommands(_ context.Context, commands []*model.Command) error {
	for _, cmd := range commands {
		l.set(cmd.RefName, cmd.NewID)
		cmd.SetResult(model.OK)
	}
	return nil
}

// registry is the in-memory global ref database, counting calls and injecting faults
type registry struct {
	*memory.RefDatabase

	reads  atomic.Int64
	writes atomic.Int64
	locks  atomic.Int64

	casErr     error
	casRefused bool
	lockErr    error
}

func newRegistry() *registry {
	return &registry{RefDatabase: memory.New()}
}

func (r *registry) IsUpToDate(ctx context.Context, project string, ref model.Ref) (bool, error) {
	r.reads.Inc()
	return r.RefDatabase.IsUpToDate(ctx, project, ref)
}

func (r *registry) Exists(ctx context.Context, project, refName string) (bool, error) {
	r.reads.Inc()
	return r.RefDatabase.Exists(ctx, project, refName)
}

func (r *registry) CompareAndPut(ctx context.Context, project string, current model.Ref, newID model.ObjectID) (bool, error) {
	r.writes.Inc()
	if r.casErr != nil {
		return false, r.casErr
	}
	if r.casRefused {
		return false, nil
	}
	return r.RefDatabase.CompareAndPut(ctx, project, current, newID)
}

func (r *registry) LockRef(ctx context.Context, project, refName string) (refdb.Lock, error) {
	r.locks.Inc()
	if r.lockErr != nil {
		return nil, r.lockErr
	}
	return r.RefDatabase.LockRef(ctx, project, refName)
}

func (r *registry) record(t testing.TB, project, refName string, id model.ObjectID) {
	ok, err := r.RefDatabase.CompareAndPut(context.Background(), project, model.NullRef(refName), id)
	require.NoError(t, err)
	require.True(t, ok)
}

func (r *registry) recorded(t testing.TB, project, refName string) (model.ObjectID, bool) {
	v, found, err := r.RefDatabase.Get(context.Background(), project, refName)
	require.NoError(t, err)
	if !found {
		return model.ZeroID, false
	}
	id, err := v.AsObjectID()
	require.NoError(t, err)
	return id, true
}

// observedAudit captures audit events
func observedAudit() (AuditLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.InfoLevel)
	return NewAuditLogger(zap.New(core)), logs
}

// applyUpdate sets a ref locally and reports a fast forward
func applyUpdate(local *localRefs, update model.RefUpdate, calls *int) ApplyFunc {
	return func(context.Context) (model.Result, error) {
		*calls++
		local.set(update.Name, update.NewID)
		return model.FastForward, nil
	}
}

type rollbackCall struct {
	count int
	oldID model.ObjectID
}

// rollbackTo restores a ref locally and reports the given result
func rollbackTo(local *localRefs, refName string, result model.Result, call *rollbackCall) RollbackFunc {
	return func(_ context.Context, oldID model.ObjectID) (model.Result, error) {
		call.count++
		call.oldID = oldID
		local.set(refName, oldID)
		return result, nil
	}
}
