package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestError(t *testing.T) {
	e1 := New("cause1")
	e2 := New("cause2").Wrap(e1)
	e := New("dummy").Wrap(e2)
	e3 := e.Unwrap()
	assert.True(t, Is(e, e1))
	assert.True(t, Is(e, e2))
	assert.True(t, e3 == e2)
	assert.Equal(t, "dummy: cause2: cause1", e.Error())
}

func TestWrapKeepsSentinel(t *testing.T) {
	sentinel := New("sentinel")
	other := New("other")

	w1 := sentinel.Wrap(other)
	w2 := sentinel.Wrap(nil)

	assert.True(t, Is(w1, sentinel))
	assert.True(t, Is(w2, sentinel))
	assert.True(t, Is(w1, other))
	assert.False(t, Is(w2, other))
	assert.Nil(t, sentinel.Unwrap(), "wrapping must not mutate the sentinel")
	assert.Equal(t, "sentinel", sentinel.Error())
}

func TestWrapWithLog(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	l := zap.New(core)

	sentinel := New("lookup failed")
	err := sentinel.WrapWithLog(l, New("boom"), zap.String("ref", "refs/heads/main"))

	require.True(t, Is(err, sentinel))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "lookup failed", entry.Message)
	assert.Equal(t, "refs/heads/main", entry.ContextMap()["ref"])

	assert.NotPanics(t, func() { _ = sentinel.WrapWithLog(nil, nil) })
}

func TestAs(t *testing.T) {
	var target *Error
	err := New("outer").Wrap(New("inner"))
	require.True(t, As(err, &target))
	assert.Equal(t, "outer: inner", target.Error())
}
