// Package keylock provides exclusive locks by key.
//
// A key only holds resources while its lock is held or awaited: the lock of a key is dropped once
// released with no other waiter.
package keylock

import (
	"context"
	"sync"

	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"
)

// Locks is a set of exclusive locks, by key
type Locks struct {
	mx    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// New set of locks
func New() *Locks {
	return &Locks{locks: make(map[string]*entry)}
}

func (k *Locks) ref(key string) *entry {
	k.mx.Lock()
	defer k.mx.Unlock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		k.locks[key] = e
	}
	e.refs++
	return e
}

func (k *Locks) unref(key string, e *entry) {
	k.mx.Lock()
	defer k.mx.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}

// Lock acquires the lock on a key, waiting until the context is done
func (k *Locks) Lock(ctx context.Context, key string) (*Lock, error) {
	e := k.ref(key)
	if err := e.sem.Acquire(ctx, 1); err != nil {
		k.unref(key, e)
		return nil, err
	}
	return k.held(key, e), nil
}

// TryLock acquires the lock on a key, unless it is already held
func (k *Locks) TryLock(key string) (*Lock, bool) {
	e := k.ref(key)
	if !e.sem.TryAcquire(1) {
		k.unref(key, e)
		return nil, false
	}
	return k.held(key, e), true
}

func (k *Locks) held(key string, e *entry) *Lock {
	return &Lock{owner: k, key: key, e: e, released: atomic.NewBool(false)}
}

// Len returns the number of keys currently locked or awaited
func (k *Locks) Len() int {
	k.mx.Lock()
	defer k.mx.Unlock()
	return len(k.locks)
}

// Lock is a held lock
type Lock struct {
	owner    *Locks
	key      string
	e        *entry
	released *atomic.Bool
}

// Key of this lock
func (l *Lock) Key() string { return l.key }

// Release the lock. Releasing twice is a no-op.
func (l *Lock) Release() error {
	if !l.released.CompareAndSwap(false, true) {
		return nil
	}
	l.e.sem.Release(1)
	l.owner.unref(l.key, l.e)
	return nil
}
