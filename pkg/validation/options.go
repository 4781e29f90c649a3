package validation

import (
	"time"

	"go.uber.org/zap"

	"github.com/oneconcern/globalrefdb/pkg/dlogger"
	"github.com/oneconcern/globalrefdb/pkg/enforcement"
	"github.com/oneconcern/globalrefdb/pkg/metrics"
)

// DefaultLockTimeout bounds the time spent waiting for ref locks
const DefaultLockTimeout = 10 * time.Second

// DefaultIgnoredRefPrefixes are never checked against the global ref database
var DefaultIgnoredRefPrefixes = []string{"refs/cache-automerge"}

// DatabaseOption configures a SharedRefDatabase
type DatabaseOption func(*SharedRefDatabase)

// Logger sets a logger for this shared ref database
func Logger(logger *zap.Logger) DatabaseOption {
	return func(s *SharedRefDatabase) {
		if logger != nil {
			s.l = logger
		}
	}
}

// Audit sets the audit logger. Audit is disabled by default.
func Audit(audit AuditLogger) DatabaseOption {
	return func(s *SharedRefDatabase) {
		if audit != nil {
			s.audit = audit
		}
	}
}

// Metrics sets the collectors for operation timings and failures
func Metrics(m *metrics.Metrics) DatabaseOption {
	return func(s *SharedRefDatabase) {
		s.metrics = m
	}
}

// LocalRefLocker sets the in-process ref locker, e.g. to share it between several shared ref databases
func LocalRefLocker(locker *LocalLocker) DatabaseOption {
	return func(s *SharedRefDatabase) {
		if locker != nil {
			s.local = locker
		}
	}
}

func defaultSharedRefDatabase() *SharedRefDatabase {
	logger, _ := dlogger.GetLogger(dlogger.LogLevelInfo)
	return &SharedRefDatabase{
		l:     logger,
		audit: DisabledAuditLogger{},
		local: NewLocalLocker(),
	}
}

// Option configures a validator
type Option func(*validator)

// Enforcement sets the policy engine. The default applies the default policy to all projects.
func Enforcement(e *enforcement.Enforcement) Option {
	return func(v *validator) {
		if e != nil {
			v.enforcement = e
		}
	}
}

// Projects restricts validation to the projects matched by a filter. By default, all projects are validated.
func Projects(f *enforcement.ProjectsFilter) Option {
	return func(v *validator) {
		if f != nil {
			v.projects = f
		}
	}
}

// IgnoredRefPrefixes adds prefixes of ref names which are never checked
func IgnoredRefPrefixes(prefixes ...string) Option {
	return func(v *validator) {
		for _, p := range prefixes {
			if p != "" {
				v.ignoredRefPrefixes = append(v.ignoredRefPrefixes, p)
			}
		}
	}
}

// LockTimeout bounds the time spent waiting for ref locks
func LockTimeout(d time.Duration) Option {
	return func(v *validator) {
		if d > 0 {
			v.lockTimeout = d
		}
	}
}
