package instrumented

import (
	"context"
	"testing"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneconcern/globalrefdb/pkg/model"
	"github.com/oneconcern/globalrefdb/pkg/refdb"
	"github.com/oneconcern/globalrefdb/pkg/refdb/memory"
)

const testID = model.ObjectID("a94a8fe5ccb19ba61c4c0873d391e987982fbbd3")

func TestTracedOperations(t *testing.T) {
	tr := mocktracer.New()
	db := NewRefDatabase(tr, memory.New())

	root := tr.StartSpan("root")
	ctx := opentracing.ContextWithSpan(context.Background(), root)

	ok, err := db.CompareAndPut(ctx, "p", model.NullRef("refs/heads/main"), testID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.IsUpToDate(ctx, "p", model.NewRef("refs/heads/main", testID))
	require.NoError(t, err)
	assert.True(t, ok)

	lock, err := db.LockRef(ctx, "p", "refs/heads/main")
	require.NoError(t, err)
	require.NoError(t, lock.Release())

	setter, isSetter := db.(refdb.Setter)
	require.True(t, isSetter)
	require.NoError(t, setter.Put(ctx, "p", "counter", refdb.Int64Value(1)))

	_, found, err := db.Get(ctx, "p", "counter")
	require.NoError(t, err)
	assert.True(t, found)
	require.NoError(t, db.Remove(ctx, "p"))
	root.Finish()

	spans := tr.FinishedSpans()
	require.Len(t, spans, 7)
	names := make([]string, 0, len(spans))
	for _, span := range spans[:6] {
		names = append(names, span.OperationName)
		assert.Equal(t, root.Context().(mocktracer.MockSpanContext).SpanID, span.ParentID)
	}
	assert.Equal(t, []string{
		"compare and put p:refs/heads/main",
		"is up to date p:refs/heads/main",
		"lock p:refs/heads/main",
		"put p:counter",
		"get p:counter",
		"remove project p",
	}, names)
}

func TestNoSetter(t *testing.T) {
	db := NewRefDatabase(nil, refdb.Noop)
	_, isSetter := db.(refdb.Setter)
	assert.False(t, isSetter)

	ok, err := db.Exists(context.Background(), "p", "r")
	require.NoError(t, err)
	assert.False(t, ok)
}
