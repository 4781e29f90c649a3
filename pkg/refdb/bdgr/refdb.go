package bdgr

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/oneconcern/globalrefdb/pkg/model"
	"github.com/oneconcern/globalrefdb/pkg/refdb"
	"github.com/oneconcern/globalrefdb/pkg/refdb/status"
)

var (
	_ refdb.GlobalRefDatabase = &RefDatabase{}
	_ refdb.Setter            = &RefDatabase{}

	json = jsoniter.ConfigCompatibleWithStandardLibrary

	refPref  = []byte("ref:")
	lockPref = []byte("lock:")

	errLockHeld = errors.New("lock held")
	errLockLost = errors.New("lock lost")
)

const sep = '\x00'

type record struct {
	Value   refdb.Value `json:"value"`
	Updated time.Time   `json:"updated"`
}

type lockRecord struct {
	Owner    string    `json:"owner"`
	Acquired time.Time `json:"acquired"`
}

// RefDatabase is a global ref database backed by badger
type RefDatabase struct {
	cfg   Config
	db    *badger.DB
	l     *zap.Logger
	close sync.Once
}

// New opens a badger-backed global ref database
func New(cfg Config) (*RefDatabase, error) {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	l := cfg.Logger
	if l == nil {
		l = zap.NewNop()
	}
	db, err := Open(cfg)
	if err != nil {
		return nil, status.ErrSystem.Wrap(err)
	}
	l.Debug("global ref database opened", zap.Stringer("store", cfg))
	return &RefDatabase{cfg: cfg, db: db, l: l}, nil
}

// Close the underlying database
func (r *RefDatabase) Close() error {
	var err error
	r.close.Do(func() {
		err = r.db.Close()
	})
	return err
}

func projectKey(pref []byte, project string) []byte {
	k := make([]byte, 0, len(pref)+len(project)+1)
	k = append(k, pref...)
	k = append(k, project...)
	return append(k, sep)
}

func refKey(project, refName string) []byte {
	return append(projectKey(refPref, project), refName...)
}

func lockKey(project, refName string) []byte {
	return append(projectKey(lockPref, project), refName...)
}

func getRecord(txn *badger.Txn, key []byte) (record, bool, error) {
	var rec record
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return rec, false, errors.Wrapf(err, "decoding record %q", key)
	}
	return rec, true, nil
}

func putRecord(txn *badger.Txn, key []byte, value refdb.Value) error {
	data, err := json.Marshal(record{Value: value, Updated: time.Now().UTC()})
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

func (r *RefDatabase) get(project, refName string) (refdb.Value, bool, error) {
	var (
		rec   record
		found bool
	)
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		rec, found, err = getRecord(txn, refKey(project, refName))
		return err
	})
	if err != nil {
		return refdb.Value{}, false, status.ErrSystem.Wrap(errors.Wrapf(err, "get %s", refdb.Key(project, refName)))
	}
	return rec.Value, found, nil
}

// IsUpToDate tells if the recorded value matches the ref. Without a record, only a null ref is up to date.
func (r *RefDatabase) IsUpToDate(_ context.Context, project string, ref model.Ref) (bool, error) {
	v, found, err := r.get(project, ref.Name)
	if err != nil {
		return false, err
	}
	if !found {
		return ref.IsNull(), nil
	}
	return v.Equal(refdb.RefValue(ref)), nil
}

// CompareAndPut records a new object id for a ref, if the recorded value matches current
func (r *RefDatabase) CompareAndPut(ctx context.Context, project string, current model.Ref, newID model.ObjectID) (bool, error) {
	return r.CompareAndPutValue(ctx, project, current.Name, refdb.RefValue(current), refdb.ObjectIDValue(newID))
}

// CompareAndPutValue records a value, if the recorded value equals expected.
//
// A concurrent transaction committing first makes this one fail: this is reported as a failed comparison.
func (r *RefDatabase) CompareAndPutValue(_ context.Context, project, refName string, expected, newValue refdb.Value) (bool, error) {
	key := refKey(project, refName)
	swapped := false
	err := r.db.Update(func(txn *badger.Txn) error {
		rec, found, err := getRecord(txn, key)
		if err != nil {
			return err
		}
		if !found && !expected.IsZero() || found && !rec.Value.Equal(expected) {
			r.l.Debug("compare and put rejected",
				zap.String("project", project),
				zap.String("ref", refName),
				zap.Stringer("expected", expected),
				zap.Stringer("current", rec.Value),
			)
			return nil
		}
		if err := putRecord(txn, key, newValue); err != nil {
			return err
		}
		swapped = true
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, status.ErrSystem.Wrap(errors.Wrapf(err, "compare and put %s", refdb.Key(project, refName)))
	}
	return swapped, nil
}

// Put records a value unconditionally
func (r *RefDatabase) Put(_ context.Context, project, refName string, value refdb.Value) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return putRecord(txn, refKey(project, refName), value)
	})
	if err != nil {
		return status.ErrSystem.Wrap(errors.Wrapf(err, "put %s", refdb.Key(project, refName)))
	}
	return nil
}

// Exists tells if a record exists for a ref
func (r *RefDatabase) Exists(_ context.Context, project, refName string) (bool, error) {
	_, found, err := r.get(project, refName)
	return found, err
}

// Get the recorded value for a ref
func (r *RefDatabase) Get(_ context.Context, project, refName string) (refdb.Value, bool, error) {
	return r.get(project, refName)
}

// Remove all records of a project
func (r *RefDatabase) Remove(_ context.Context, project string) error {
	prefix := projectKey(refPref, project)
	var keys [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return status.ErrSystem.Wrap(errors.Wrapf(err, "listing refs of project %s", project))
	}

	wb := r.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return status.ErrSystem.Wrap(errors.Wrapf(err, "removing %q", k))
		}
	}
	if err := wb.Flush(); err != nil {
		return status.ErrSystem.Wrap(errors.Wrapf(err, "removing project %s", project))
	}
	r.l.Debug("project removed", zap.String("project", project), zap.Int("refs", len(keys)))
	return nil
}

// LockRef acquires the lock for a ref.
//
// A held lock is polled until it is released, it expires, or the context is done.
func (r *RefDatabase) LockRef(ctx context.Context, project, refName string) (refdb.Lock, error) {
	key := lockKey(project, refName)
	owner, err := ksuid.NewRandom()
	if err != nil {
		return nil, status.ErrLock.Wrap(err)
	}

	for {
		err := r.tryLock(key, owner.String())
		switch {
		case err == nil:
			return &lock{r: r, key: key, owner: owner.String(), released: atomic.NewBool(false)}, nil
		case errors.Is(err, errLockHeld), errors.Is(err, badger.ErrConflict):
		default:
			return nil, status.ErrLock.Wrap(errors.Wrapf(err, "lock %s", refdb.Key(project, refName)))
		}

		select {
		case <-ctx.Done():
			return nil, status.ErrLock.Wrap(errors.Wrapf(ctx.Err(), "lock %s is held", refdb.Key(project, refName)))
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

func (r *RefDatabase) tryLock(key []byte, owner string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return errLockHeld
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		data, err := json.Marshal(lockRecord{Owner: owner, Acquired: time.Now().UTC()})
		if err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry(key, data).WithTTL(r.cfg.LockTTL))
	})
}

func (r *RefDatabase) unlock(key []byte, owner string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errLockLost
		}
		if err != nil {
			return err
		}
		var rec lockRecord
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return err
		}
		if rec.Owner != owner {
			return errLockLost
		}
		return txn.Delete(key)
	})
}

// IsLocked tells if a lock record exists for a ref
func (r *RefDatabase) IsLocked(project, refName string) (bool, error) {
	locked := false
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(lockKey(project, refName))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		locked = err == nil
		return err
	})
	return locked, err
}

type lock struct {
	r        *RefDatabase
	key      []byte
	owner    string
	released *atomic.Bool
}

// Release the lock. Releasing a lock which has expired, or was taken over, is an error.
func (l *lock) Release() error {
	if !l.released.CompareAndSwap(false, true) {
		return nil
	}
	if err := l.r.unlock(l.key, l.owner); err != nil {
		return status.ErrLock.Wrap(errors.Wrapf(err, "release %q", bytes.TrimPrefix(l.key, lockPref)))
	}
	return nil
}
