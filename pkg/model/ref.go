package model

import (
	"context"
	"fmt"
)

// Ref is a named pointer to some content within a project.
//
// A direct ref carries an ObjectID. A symbolic ref carries the name of its target ref.
type Ref struct {
	Name     string   `json:"name" yaml:"name"`
	ObjectID ObjectID `json:"id,omitempty" yaml:"id,omitempty"`
	Symbolic bool     `json:"symbolic,omitempty" yaml:"symbolic,omitempty"`
	Target   string   `json:"target,omitempty" yaml:"target,omitempty"`
}

// NewRef builds a direct ref to an object
func NewRef(name string, id ObjectID) Ref {
	return Ref{
		Name:     name,
		ObjectID: id,
	}
}

// NewSymbolicRef builds a symbolic ref to another ref
func NewSymbolicRef(name, target string) Ref {
	return Ref{
		Name:     name,
		Symbolic: true,
		Target:   target,
	}
}

// NullRef is the ref standing for an absent reference.
func NullRef(name string) Ref {
	return NewRef(name, ZeroID)
}

// IsNull tells if this ref stands for an absent reference
func (r Ref) IsNull() bool {
	return !r.Symbolic && r.ObjectID.IsZero()
}

// Matches tells if two refs designate the same thing.
//
// Two refs match iff they are both symbolic with the same target, or both direct with the same object id.
// Names are not compared.
func (r Ref) Matches(other Ref) bool {
	if r.Symbolic != other.Symbolic {
		return false
	}
	if r.Symbolic {
		return r.Target == other.Target
	}
	return r.ObjectID.Equal(other.ObjectID)
}

func (r Ref) String() string {
	if r.Symbolic {
		return fmt.Sprintf("%s -> %s", r.Name, r.Target)
	}
	return fmt.Sprintf("%s=%s", r.Name, r.ObjectID)
}

// RefDatabase is the local reference store, as seen by the validators.
type RefDatabase interface {
	// ExactRef returns the current value of a ref, or nil when the ref does not exist
	ExactRef(ctx context.Context, name string) (*Ref, error)
}

// RefUpdate is a request to move a single ref to a new value
type RefUpdate struct {
	Name  string
	NewID ObjectID
}
