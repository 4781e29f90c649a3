// Package bdgr implements a global ref database on top of a badger key-value store.
//
// Records are JSON documents keyed by project and ref name. Locks are records with a time-to-live,
// owned by a unique token: a lock left over by a crashed holder expires on its own.
package bdgr

import (
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	// DefaultLockTTL is the lifetime of a lock record
	DefaultLockTTL = 30 * time.Second

	// DefaultPollInterval is the delay between two attempts to acquire a held lock
	DefaultPollInterval = 20 * time.Millisecond
)

// Config for the badger database
type Config struct {
	// Path to the database directory. Required unless InMemory is set.
	Path string

	InMemory   bool
	SyncWrites bool

	// LockTTL is the lifetime of lock records
	LockTTL time.Duration

	// PollInterval is the delay between two attempts to acquire a held lock
	PollInterval time.Duration

	Logger *zap.Logger
}

// DefaultConfig for a persistent database
func DefaultConfig(path string) Config {
	return Config{
		Path:         path,
		SyncWrites:   true,
		LockTTL:      DefaultLockTTL,
		PollInterval: DefaultPollInterval,
	}
}

// InMemoryConfig for an ephemeral database
func InMemoryConfig() Config {
	return Config{
		InMemory:     true,
		LockTTL:      DefaultLockTTL,
		PollInterval: DefaultPollInterval,
	}
}

type badgerLogger struct {
	l *zap.SugaredLogger
}

func (b badgerLogger) Errorf(format string, args ...interface{})   { b.l.Errorf(format, args...) }
func (b badgerLogger) Warningf(format string, args ...interface{}) { b.l.Warnf(format, args...) }
func (b badgerLogger) Infof(format string, args ...interface{})    { b.l.Infof(format, args...) }
func (b badgerLogger) Debugf(format string, args ...interface{})   { b.l.Debugf(format, args...) }

// Open a badger database
func Open(cfg Config) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, errors.Wrapf(err, "create database directory %s", cfg.Path)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(badgerLogger{l: cfg.Logger.Named("badger").Sugar()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open badger database")
	}
	return db, nil
}

func (c Config) String() string {
	if c.InMemory {
		return "badger(in-memory)"
	}
	return fmt.Sprintf("badger(%s)", c.Path)
}
