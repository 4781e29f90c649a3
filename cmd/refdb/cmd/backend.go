package cmd

import (
	"io"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/oneconcern/globalrefdb/pkg/config"
	"github.com/oneconcern/globalrefdb/pkg/dlogger"
	"github.com/oneconcern/globalrefdb/pkg/metrics"
	"github.com/oneconcern/globalrefdb/pkg/refdb"
	"github.com/oneconcern/globalrefdb/pkg/refdb/bdgr"
	"github.com/oneconcern/globalrefdb/pkg/refdb/instrumented"
	"github.com/oneconcern/globalrefdb/pkg/refdb/memory"
	"github.com/oneconcern/globalrefdb/pkg/validation"
)

var (
	// registry collects the metrics of this process
	registry   = newRegistry()
	cliMetrics = metrics.MustNew(registry)
)

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func writeMetrics(w io.Writer) error {
	return metrics.WriteText(w, registry)
}

// openRefDatabase opens the configured global ref database, wrapped with timings, failure tracking and audit.
//
// The returned function closes the underlying database.
func openRefDatabase(c *config.Config) (*validation.SharedRefDatabase, func(), error) {
	logger, err := dlogger.GetLogger(c.Log.Level)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "create logger with level %q", c.Log.Level)
	}
	auditLogger, err := dlogger.GetAuditLogger(c.Log.Audit)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create audit logger")
	}

	db, closer, err := newBackend(c, logger)
	if err != nil {
		return nil, nil, err
	}

	shared := validation.NewSharedRefDatabase(db,
		validation.Logger(logger),
		validation.Audit(validation.NewAuditLogger(auditLogger)),
		validation.Metrics(cliMetrics),
	)
	return shared, func() {
		closer()
		_ = logger.Sync()
		_ = auditLogger.Sync()
	}, nil
}

func newBackend(c *config.Config, logger *zap.Logger) (refdb.GlobalRefDatabase, func(), error) {
	backend := c.RefDatabase.Backend
	if !c.RefDatabase.Enabled {
		return refdb.Noop, func() {}, nil
	}

	switch backend.Type {
	case config.BackendNoop:
		return refdb.Noop, func() {}, nil

	case config.BackendMemory:
		return instrumented.NewRefDatabase(opentracing.GlobalTracer(), memory.New(memory.WithLogger(logger))), func() {}, nil

	case config.BackendBadger:
		cfg := bdgr.DefaultConfig(backend.Path)
		cfg.InMemory = backend.InMemory
		cfg.SyncWrites = backend.SyncWrites
		cfg.Logger = logger
		if backend.LockTTL > 0 {
			cfg.LockTTL = backend.LockTTL
		}
		db, err := bdgr.New(cfg)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "open badger global ref database at %q", backend.Path)
		}
		return instrumented.NewRefDatabase(opentracing.GlobalTracer(), db), func() {
			if err := db.Close(); err != nil {
				logger.Warn("failed to close the global ref database", zap.Error(err))
			}
		}, nil

	default:
		return nil, nil, errors.Errorf("unknown backend type %q", backend.Type)
	}
}

// mustOpenRefDatabase opens the configured global ref database, or exits
func mustOpenRefDatabase() (*validation.SharedRefDatabase, func()) {
	db, closer, err := openRefDatabase(settings)
	if err != nil {
		wrapFatalln("open global ref database", err)
		return nil, func() {}
	}
	return db, closer
}
