// Package hessian2 implements the Hessian-2 binary serialization format
// used for Dubbo request bodies and response payloads: a self
// referential typed format with multi-range opcode tables, back
// references, and per-message class/type interning.
package hessian2

import "time"

// Kind tags the variant a Value holds. Hessian-2's dynamic typing is
// translated into a Go sum type with an explicit tag rather than an
// empty interface{}, so every encoder/decoder switch is exhaustive and
// reviewable at compile time.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt32
	KindInt64
	KindFloat64
	KindString
	KindDate
	KindBinary
	KindList
	KindMap
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindBinary:
		return "binary"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is the typed value tree the codec's universe is built from:
// null, bool, int32, int64, float64, string, date, binary, list, map,
// and typed-object, per the data model.
type Value struct {
	Kind Kind

	boolVal    bool
	int32Val   int32
	int64Val   int64
	float64Val float64
	strVal     string
	dateVal    time.Time
	binaryVal  []byte

	// ListVal holds list elements in order; ListType is the optional
	// element-type tag carried through the list's type table entry.
	ListVal  []Value
	ListType string

	// MapVal is an ordered slice of entries, not a Go map: Hessian maps
	// don't require unique keys and field/key ordering is significant
	// on the wire for typed objects, so an ordered representation keeps
	// encode(decode(x)) == x honest for both.
	MapVal []MapEntry

	ObjectVal *Object
}

// MapEntry is one key/value pair of a Hessian map, in wire order.
type MapEntry struct {
	Key   Value
	Value Value
}

// Object is a user-constructed (class-path, ordered field map) pair:
// used both for RPC argument objects and as the enum placeholder shape
// (a single "name" field).
type Object struct {
	Class  string
	Fields []Field
}

// Field is one named slot of an Object, in declaration order — object
// field ordering is significant on the wire and must round-trip.
type Field struct {
	Name  string
	Value Value
}

// Get returns the value of the named field and whether it was present.
func (o *Object) Get(name string) (Value, bool) {
	for _, f := range o.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Set appends or overwrites the named field, preserving the existing
// position on overwrite so callers can build an object incrementally
// without perturbing field order.
func (o *Object) Set(name string, v Value) *Object {
	for i := range o.Fields {
		if o.Fields[i].Name == name {
			o.Fields[i].Value = v
			return o
		}
	}
	o.Fields = append(o.Fields, Field{Name: name, Value: v})
	return o
}

// NewObject starts a new typed object for the given class path, e.g.
// "com.example.User" or "java.math.BigDecimal".
func NewObject(class string) *Object {
	return &Object{Class: class}
}

// Null returns the null Value.
func Null() Value { return Value{Kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{Kind: KindBool, boolVal: b} }

// Int wraps a 32-bit signed integer.
func Int(v int32) Value { return Value{Kind: KindInt32, int32Val: v} }

// Long wraps a 64-bit signed integer.
func Long(v int64) Value { return Value{Kind: KindInt64, int64Val: v} }

// Double wraps a float64.
func Double(v float64) Value { return Value{Kind: KindFloat64, float64Val: v} }

// String wraps a UTF-8 string, whose Hessian-2 length is measured in
// Unicode code points, not bytes.
func String(s string) Value { return Value{Kind: KindString, strVal: s} }

// DateValue wraps a date as milliseconds-since-epoch precision time.
func DateValue(t time.Time) Value { return Value{Kind: KindDate, dateVal: t} }

// Binary wraps a byte slice. It is encoded as a string holding the same
// bytes; the decoder has no case for Hessian's binary opcodes, so binary
// data read off the wire fails to decode with an unrecognized-opcode
// error.
func Binary(b []byte) Value { return Value{Kind: KindBinary, binaryVal: b} }

// List wraps a slice of elements with an optional element-type tag
// (empty string means untyped).
func List(elemType string, vs ...Value) Value {
	return Value{Kind: KindList, ListVal: vs, ListType: elemType}
}

// MapOf builds a Value from an ordered slice of entries.
func MapOf(entries ...MapEntry) Value {
	return Value{Kind: KindMap, MapVal: entries}
}

// ObjectValue wraps a typed object.
func ObjectValue(o *Object) Value { return Value{Kind: KindObject, ObjectVal: o} }

// AsBool, AsInt32, ... are narrow accessors; callers that built the
// Value via the constructors above know the Kind they expect.
func (v Value) AsBool() bool       { return v.boolVal }
func (v Value) AsInt32() int32     { return v.int32Val }
func (v Value) AsInt64() int64     { return v.int64Val }
func (v Value) AsFloat64() float64 { return v.float64Val }
func (v Value) AsString() string   { return v.strVal }
func (v Value) AsDate() time.Time  { return v.dateVal }
func (v Value) AsBinary() []byte   { return v.binaryVal }
func (v Value) IsNull() bool       { return v.Kind == KindNull }
