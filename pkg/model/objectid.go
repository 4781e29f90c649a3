package model

import (
	"encoding/hex"
	"strings"

	"github.com/oneconcern/globalrefdb/pkg/errors"
)

// ObjectIDLength is the length of the hex representation of an object id
const ObjectIDLength = 40

// ZeroID is the sentinel object id of a reference that does not exist
const ZeroID ObjectID = "0000000000000000000000000000000000000000"

// ErrInvalidObjectID is returned when parsing a malformed object id
var ErrInvalidObjectID = errors.New("invalid object id")

// ObjectID identifies some content in a project, as a lower case hex hash.
//
// The empty ObjectID is treated like ZeroID.
type ObjectID string

// ParseObjectID validates and normalizes an object id
func ParseObjectID(s string) (ObjectID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != ObjectIDLength {
		return ZeroID, ErrInvalidObjectID.Wrap(errors.New(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return ZeroID, ErrInvalidObjectID.Wrap(err)
	}
	return ObjectID(s), nil
}

// MustParseObjectID parses an object id or panics
func MustParseObjectID(s string) ObjectID {
	id, err := ParseObjectID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IsZero tells if this id stands for an absent reference
func (o ObjectID) IsZero() bool {
	return o == "" || o == ZeroID
}

// Equal compares two ids, treating the empty id as ZeroID
func (o ObjectID) Equal(other ObjectID) bool {
	return o.normalized() == other.normalized()
}

func (o ObjectID) String() string {
	return string(o.normalized())
}

// Abbrev returns a short form of the id, suitable for log messages
func (o ObjectID) Abbrev() string {
	s := o.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

func (o ObjectID) normalized() ObjectID {
	if o == "" {
		return ZeroID
	}
	return o
}
