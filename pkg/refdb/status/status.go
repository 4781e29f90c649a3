// Package status declares error constants returned by the various
// implementations of the GlobalRefDatabase interface.
//
// NOTE: such constants are located in a separate package to avoid
// creating undue cyclical dependencies between pkg/refdb and one
// of its implementations.
package status

import "github.com/oneconcern/globalrefdb/pkg/errors"

var (
	// Sentinel errors returned by implementations of interfaces defined by refdb

	// ErrSystem indicates that the global ref database could not be reached or failed to process a request
	ErrSystem = errors.New("global ref database system error")

	// ErrLock indicates that a global lock could not be acquired or released
	ErrLock = errors.New("global ref database lock error")

	// ErrNotSupported indicates that the backend does not support this operation
	ErrNotSupported = errors.New("operation not supported by the global ref database")

	// ErrValueKind indicates a typed read of a value holding another kind
	ErrValueKind = errors.New("unexpected value kind")

	// ErrInvalidValue indicates an undecodable value
	ErrInvalidValue = errors.New("invalid value")
)
