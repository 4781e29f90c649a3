// Package metrics exposes prometheus collectors about the validation of ref updates.
//
// Collectors are registered once per registry: building Metrics twice against the same
// registry reuses the collectors already registered.
//
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/oneconcern/globalrefdb/pkg/errors"
)

// Namespace of all collectors
const Namespace = "globalrefdb"

// ErrRegister is returned when collectors cannot be registered
var ErrRegister = errors.New("could not register metrics")

// Metrics reported by the global ref database facade and the validators
type Metrics struct {
	// OperationDuration is the distribution of the duration of global ref database operations, in seconds
	OperationDuration *prometheus.HistogramVec

	// OperationFailures counts failed global ref database operations
	OperationFailures *prometheus.CounterVec

	// SplitBrainPreventions counts updates found out of sync before being applied locally
	SplitBrainPreventions *prometheus.CounterVec

	// SplitBrains counts updates applied locally which the global ref database refused
	SplitBrains *prometheus.CounterVec

	// RollbackFailures counts local updates which could not be rolled back
	RollbackFailures *prometheus.CounterVec

	// LockFailures counts locks which could not be acquired
	LockFailures *prometheus.CounterVec
}

// New builds and registers the collectors. A nil registerer leaves the collectors unregistered.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of global ref database operations",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"operation"}),
		OperationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operation_failures_total",
			Help:      "Failed global ref database operations",
		}, []string{"operation"}),
		SplitBrainPreventions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "split_brain_prevention_total",
			Help:      "Ref updates detected out of sync with the global ref database before local application",
		}, []string{"project"}),
		SplitBrains: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "split_brain_total",
			Help:      "Ref updates applied locally but refused by the global ref database",
		}, []string{"project"}),
		RollbackFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rollback_failures_total",
			Help:      "Local ref updates which could not be rolled back",
		}, []string{"project"}),
		LockFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "lock_failures_total",
			Help:      "Ref locks which could not be acquired",
		}, []string{"scope"}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	m.OperationDuration, err = register(reg, m.OperationDuration)
	if err != nil {
		return nil, err
	}
	for _, c := range []**prometheus.CounterVec{
		&m.OperationFailures,
		&m.SplitBrainPreventions,
		&m.SplitBrains,
		&m.RollbackFailures,
		&m.LockFailures,
	} {
		*c, err = register(reg, *c)
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew builds metrics or panics
func MustNew(reg prometheus.Registerer) *Metrics {
	m, err := New(reg)
	if err != nil {
		panic(err)
	}
	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, ErrRegister.Wrap(err)
	}
	return c, nil
}

// Used records the duration of an operation
//
// Example:
//
//	defer m.Used(time.Now(), "compareAndPut")
func (m *Metrics) Used(start time.Time, operation string) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// UsedAll records the duration of an operation and its failure, in one go
//
// Example:
//
//	defer func(start time.Time) {
//	  m.UsedAll(start, "lockRef")(err)
//	}(time.Now())
func (m *Metrics) UsedAll(start time.Time, operation string) func(error) {
	return func(err error) {
		m.Used(start, operation)
		if err != nil {
			m.Failed(operation)
		}
	}
}

// Failed records a failed operation
func (m *Metrics) Failed(operation string) {
	if m == nil {
		return
	}
	m.OperationFailures.WithLabelValues(operation).Inc()
}

// SplitBrainPrevented records an out of sync update, detected before local application
func (m *Metrics) SplitBrainPrevented(project string) {
	if m == nil {
		return
	}
	m.SplitBrainPreventions.WithLabelValues(project).Inc()
}

// SplitBrain records an update applied locally, which the global ref database refused
func (m *Metrics) SplitBrain(project string) {
	if m == nil {
		return
	}
	m.SplitBrains.WithLabelValues(project).Inc()
}

// RollbackFailed records a failed rollback of a local update
func (m *Metrics) RollbackFailed(project string) {
	if m == nil {
		return
	}
	m.RollbackFailures.WithLabelValues(project).Inc()
}

// LockFailed records a lock which could not be acquired
func (m *Metrics) LockFailed(scope string) {
	if m == nil {
		return
	}
	m.LockFailures.WithLabelValues(scope).Inc()
}

// WriteText dumps all the metrics of a registry in the prometheus text format
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
