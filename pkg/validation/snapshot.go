package validation

import (
	"github.com/oneconcern/globalrefdb/pkg/errors"
	"github.com/oneconcern/globalrefdb/pkg/model"
)

// ErrEmptyRefName is returned when building a snapshot of a ref without a name
var ErrEmptyRefName = errors.New("ref name is required")

// Snapshot captures, for one attempt, the value of a ref before an update and its requested new value.
//
// A failed snapshot carries the error met while resolving the ref.
type Snapshot struct {
	ref   model.Ref
	newID model.ObjectID
	err   error
}

// NewSnapshot captures a ref and its requested new value
func NewSnapshot(ref model.Ref, newID model.ObjectID) (*Snapshot, error) {
	if ref.Name == "" {
		return nil, ErrEmptyRefName
	}
	return &Snapshot{ref: ref, newID: newID}, nil
}

func failedSnapshot(refName string, err error) *Snapshot {
	return &Snapshot{ref: model.NullRef(refName), err: err}
}

// Name of the ref
func (s *Snapshot) Name() string { return s.ref.Name }

// Ref before the update. Never nil: an absent ref is a null ref.
func (s *Snapshot) Ref() model.Ref { return s.ref }

// OldID is the object id of the ref before the update
func (s *Snapshot) OldID() model.ObjectID {
	if s.ref.ObjectID == "" {
		return model.ZeroID
	}
	return s.ref.ObjectID
}

// NewID is the requested object id
func (s *Snapshot) NewID() model.ObjectID {
	if s.newID == "" {
		return model.ZeroID
	}
	return s.newID
}

// Err is the error met while resolving the ref
func (s *Snapshot) Err() error { return s.err }

// Failed tells if the ref could not be resolved
func (s *Snapshot) Failed() bool { return s.err != nil }

// withRef returns a snapshot of the same update, with a fresher value of the ref
func (s *Snapshot) withRef(ref model.Ref) *Snapshot {
	return &Snapshot{ref: ref, newID: s.newID}
}
