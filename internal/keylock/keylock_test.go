package keylock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLock(t *testing.T) {
	locks := New()
	l, err := locks.Lock(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", l.Key())

	_, ok := locks.TryLock("a")
	assert.False(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locks.Lock(ctx, "a")
	require.Error(t, err)
	assert.Equal(t, 1, locks.Len(), "a timed out waiter is forgotten")

	other, ok := locks.TryLock("b")
	require.True(t, ok, "locks are per key")
	assert.Equal(t, 2, locks.Len())
	require.NoError(t, other.Release())

	require.NoError(t, l.Release())
	require.NoError(t, l.Release())
	assert.Zero(t, locks.Len(), "released keys are dropped")

	again, ok := locks.TryLock("a")
	require.True(t, ok)
	require.NoError(t, again.Release())
	assert.Zero(t, locks.Len())
}

func TestLockWaiters(t *testing.T) {
	const n = 8
	locks := New()

	var (
		wg      sync.WaitGroup
		mx      sync.Mutex
		holders int
		maxHeld int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := locks.Lock(context.Background(), "a")
			if !assert.NoError(t, err) {
				return
			}
			mx.Lock()
			holders++
			if holders > maxHeld {
				maxHeld = holders
			}
			mx.Unlock()

			time.Sleep(time.Millisecond)

			mx.Lock()
			holders--
			mx.Unlock()
			assert.NoError(t, l.Release())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxHeld, "a single holder at a time")
	assert.Zero(t, locks.Len())
}
