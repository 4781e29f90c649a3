package validation

import (
	"go.uber.org/zap"

	"github.com/oneconcern/globalrefdb/pkg/refdb"
)

// Scope of a lock
type Scope string

// Lock scopes
const (
	// ScopeLocal locks are held by this process only
	ScopeLocal Scope = "LOCAL"

	// ScopeGlobal locks are visible to all nodes of the cluster
	ScopeGlobal Scope = "GLOBAL"
)

// AuditLogger records mutations of the global ref database and lock events
type AuditLogger interface {
	LogRefUpdate(project, refName string, oldValue, newValue refdb.Value)
	LogRefPut(project, refName string, newValue refdb.Value)
	LogProjectDelete(project string)
	LogLockAcquisition(project, refName string, scope Scope)
	LogLockRelease(project, refName string, scope Scope)
}

// NewAuditLogger records audit events as structured log entries
func NewAuditLogger(l *zap.Logger) AuditLogger {
	if l == nil {
		return DisabledAuditLogger{}
	}
	return &zapAuditLogger{l: l}
}

type zapAuditLogger struct {
	l *zap.Logger
}

func (a *zapAuditLogger) LogRefUpdate(project, refName string, oldValue, newValue refdb.Value) {
	a.l.Info("ref update",
		zap.String("project", project),
		zap.String("ref", refName),
		zap.Stringer("oldValue", oldValue),
		zap.Stringer("newValue", newValue),
		zap.String("scope", string(ScopeGlobal)),
	)
}

func (a *zapAuditLogger) LogRefPut(project, refName string, newValue refdb.Value) {
	a.l.Info("ref put",
		zap.String("project", project),
		zap.String("ref", refName),
		zap.Stringer("newValue", newValue),
		zap.String("scope", string(ScopeGlobal)),
	)
}

func (a *zapAuditLogger) LogProjectDelete(project string) {
	a.l.Info("project delete",
		zap.String("project", project),
		zap.String("scope", string(ScopeGlobal)),
	)
}

func (a *zapAuditLogger) LogLockAcquisition(project, refName string, scope Scope) {
	a.l.Info("lock acquire",
		zap.String("project", project),
		zap.String("ref", refName),
		zap.String("scope", string(scope)),
	)
}

func (a *zapAuditLogger) LogLockRelease(project, refName string, scope Scope) {
	a.l.Info("lock release",
		zap.String("project", project),
		zap.String("ref", refName),
		zap.String("scope", string(scope)),
	)
}

// DisabledAuditLogger records nothing
type DisabledAuditLogger struct{}

func (DisabledAuditLogger) LogRefUpdate(string, string, refdb.Value, refdb.Value) {}
func (DisabledAuditLogger) LogRefPut(string, string, refdb.Value)                 {}
func (DisabledAuditLogger) LogProjectDelete(string)                               {}
func (DisabledAuditLogger) LogLockAcquisition(string, string, Scope)              {}
func (DisabledAuditLogger) LogLockRelease(string, string, Scope)                  {}
