package refdb

import (
	"fmt"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/oneconcern/globalrefdb/pkg/model"
	"github.com/oneconcern/globalrefdb/pkg/refdb/status"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Kind of a Value
type Kind uint8

// Value kinds
const (
	KindNone Kind = iota
	KindObjectID
	KindString
	KindInt64
)

func (k Kind) String() string {
	switch k {
	case KindObjectID:
		return "objectid"
	case KindString:
		return "string"
	case KindInt64:
		return "int64"
	default:
		return "none"
	}
}

func parseKind(s string) (Kind, bool) {
	for _, k := range []Kind{KindNone, KindObjectID, KindString, KindInt64} {
		if k.String() == s {
			return k, true
		}
	}
	return KindNone, false
}

// Value is what the global ref database stores under a key.
//
// It is one of: an object id, a string or a 64 bits integer. The zero Value stands for "no value".
type Value struct {
	kind Kind
	id   model.ObjectID
	str  string
	num  int64
}

// ObjectIDValue builds a value holding an object id
func ObjectIDValue(id model.ObjectID) Value {
	return Value{kind: KindObjectID, id: model.ObjectID(id.String())}
}

// StringValue builds a value holding a string
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// Int64Value builds a value holding an integer
func Int64Value(n int64) Value {
	return Value{kind: KindInt64, num: n}
}

// RefValue is the value recorded for a ref: its object id, or its target when symbolic
func RefValue(ref model.Ref) Value {
	if ref.Symbolic {
		return StringValue(ref.Target)
	}
	return ObjectIDValue(ref.ObjectID)
}

// Kind of this value
func (v Value) Kind() Kind {
	return v.kind
}

// IsZero tells if this value is absent, or a zero object id
func (v Value) IsZero() bool {
	return v.kind == KindNone || (v.kind == KindObjectID && v.id.IsZero())
}

// AsObjectID reads an object id
func (v Value) AsObjectID() (model.ObjectID, error) {
	if v.kind != KindObjectID {
		return model.ZeroID, v.kindError(KindObjectID)
	}
	return v.id, nil
}

// AsString reads a string
func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", v.kindError(KindString)
	}
	return v.str, nil
}

// AsInt64 reads an integer
func (v Value) AsInt64() (int64, error) {
	if v.kind != KindInt64 {
		return 0, v.kindError(KindInt64)
	}
	return v.num, nil
}

func (v Value) kindError(expected Kind) error {
	return status.ErrValueKind.Wrap(fmt.Errorf("expected %v, got %v", expected, v.kind))
}

// Equal compares two values. Zero values are all equal.
func (v Value) Equal(other Value) bool {
	if v.IsZero() || other.IsZero() {
		return v.IsZero() && other.IsZero()
	}
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindObjectID:
		return v.id.Equal(other.id)
	case KindString:
		return v.str == other.str
	default:
		return v.num == other.num
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindObjectID:
		return v.id.String()
	case KindString:
		return v.str
	case KindInt64:
		return strconv.FormatInt(v.num, 10)
	default:
		return "<none>"
	}
}

type jsonValue struct {
	Kind  string              `json:"kind"`
	Value jsoniter.RawMessage `json:"value,omitempty"`
}

// MarshalJSON encodes a value as {"kind": ..., "value": ...}
func (v Value) MarshalJSON() ([]byte, error) {
	var (
		raw []byte
		err error
	)
	switch v.kind {
	case KindObjectID:
		raw, err = json.Marshal(v.id.String())
	case KindString:
		raw, err = json.Marshal(v.str)
	case KindInt64:
		raw, err = json.Marshal(v.num)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(jsonValue{Kind: v.kind.String(), Value: raw})
}

// UnmarshalJSON decodes a value
func (v *Value) UnmarshalJSON(data []byte) error {
	var jv jsonValue
	if err := json.Unmarshal(data, &jv); err != nil {
		return status.ErrInvalidValue.Wrap(err)
	}
	kind, ok := parseKind(jv.Kind)
	if !ok {
		return status.ErrInvalidValue.Wrap(fmt.Errorf("unknown kind %q", jv.Kind))
	}

	var decoded Value
	switch kind {
	case KindObjectID:
		var s string
		if err := json.Unmarshal(jv.Value, &s); err != nil {
			return status.ErrInvalidValue.Wrap(err)
		}
		id, err := model.ParseObjectID(s)
		if err != nil {
			return status.ErrInvalidValue.Wrap(err)
		}
		decoded = ObjectIDValue(id)
	case KindString:
		var s string
		if err := json.Unmarshal(jv.Value, &s); err != nil {
			return status.ErrInvalidValue.Wrap(err)
		}
		decoded = StringValue(s)
	case KindInt64:
		var n int64
		if err := json.Unmarshal(jv.Value, &n); err != nil {
			return status.ErrInvalidValue.Wrap(err)
		}
		decoded = Int64Value(n)
	}
	*v = decoded
	return nil
}

// ParseValue reads a value from its textual form, given its kind
func ParseValue(kind Kind, s string) (Value, error) {
	switch kind {
	case KindObjectID:
		id, err := model.ParseObjectID(s)
		if err != nil {
			return Value{}, status.ErrInvalidValue.Wrap(err)
		}
		return ObjectIDValue(id), nil
	case KindString:
		return StringValue(s), nil
	case KindInt64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, status.ErrInvalidValue.Wrap(err)
		}
		return Int64Value(n), nil
	default:
		return Value{}, nil
	}
}

// ParseKind reads a kind name
func ParseKind(s string) (Kind, error) {
	k, ok := parseKind(s)
	if !ok {
		return KindNone, status.ErrInvalidValue.Wrap(fmt.Errorf("unknown kind %q", s))
	}
	return k, nil
}
