package hessian2

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, v Value) Value {
	t.Helper()
	buf, err := Encode(v)
	require.NoError(t, err)
	got, err := Decode(buf)
	require.NoError(t, err)
	return got
}

func TestIntRoundTrip(t *testing.T) {
	cases := []int32{0, 1, -1, -16, 47, 48, -17, 0x7FF, -0x800, 0x800, -0x801,
		0x3FFFF, -0x40000, 0x40000, -0x40001, 2147483647, -2147483648}
	for _, v := range cases {
		got := roundTrip(t, Int(v))
		require.Equal(t, KindInt32, got.Kind)
		require.Equal(t, v, got.AsInt32())
	}
}

func TestLongRoundTrip(t *testing.T) {
	cases := []int64{0, 1, -1, -8, 15, 16, -9, 0x7FF, -0x800, 0x800,
		0x3FFFF, -0x40000, 0x40000, 2147483647, -2147483648,
		2147483648, -2147483649, 9223372036854775807, -9223372036854775808}
	for _, v := range cases {
		got := roundTrip(t, Long(v))
		require.Equal(t, KindInt64, got.Kind)
		require.Equal(t, v, got.AsInt64())
	}
}

func TestDoubleRoundTrip(t *testing.T) {
	cases := []float64{0.0, 1.0, -1.0, 2.0, 127.0, -128.0, 128.0, -129.0,
		32767.0, -32768.0, 32768.0, 3.14159, -0.001, 1e300}
	for _, v := range cases {
		got := roundTrip(t, Double(v))
		require.Equal(t, KindFloat64, got.Kind)
		require.InDelta(t, v, got.AsFloat64(), 1e-9)
	}
}

func TestDoubleCanonicalizesZero(t *testing.T) {
	got := roundTrip(t, Double(0.0))
	require.Equal(t, float64(0), got.AsFloat64())
	neg := roundTrip(t, Double(math.Copysign(0, -1)))
	require.Equal(t, float64(0), neg.AsFloat64())
}

func TestStringRoundTripCodePointLength(t *testing.T) {
	cases := []string{
		"",
		"hello",
		"héllo wörld",
		"日本語のテスト",
	}
	for _, s := range cases {
		buf, err := Encode(String(s))
		require.NoError(t, err)
		require.Equal(t, byte(len([]rune(s))), buf[0])

		got := roundTrip(t, String(s))
		require.Equal(t, KindString, got.Kind)
		require.Equal(t, s, got.AsString())
	}
}

func TestStringChunking(t *testing.T) {
	runes := make([]rune, 0x8000+100)
	for i := range runes {
		runes[i] = 'a' + rune(i%26)
	}
	s := string(runes)
	got := roundTrip(t, String(s))
	require.Equal(t, s, got.AsString())
}

func TestBoolAndNullRoundTrip(t *testing.T) {
	require.True(t, roundTrip(t, Bool(true)).AsBool())
	require.False(t, roundTrip(t, Bool(false)).AsBool())
	require.True(t, roundTrip(t, Null()).IsNull())
}

func TestDateRoundTrip(t *testing.T) {
	now := time.UnixMilli(1700000000123).UTC()
	got := roundTrip(t, DateValue(now))
	require.Equal(t, KindDate, got.Kind)
	require.True(t, now.Equal(got.AsDate()))
}

func TestListRoundTrip(t *testing.T) {
	v := List("", Int(1), Int(2), Int(3))
	got := roundTrip(t, v)
	require.Equal(t, KindList, got.Kind)
	require.Len(t, got.ListVal, 3)
	require.Equal(t, int32(2), got.ListVal[1].AsInt32())
}

func TestLongListUsesExplicitLength(t *testing.T) {
	elems := make([]Value, 20)
	for i := range elems {
		elems[i] = Int(int32(i))
	}
	v := List("", elems...)
	buf, err := Encode(v)
	require.NoError(t, err)
	require.Equal(t, bcListUntypedFixed, buf[0])

	got := roundTrip(t, v)
	require.Len(t, got.ListVal, 20)
	require.Equal(t, int32(19), got.ListVal[19].AsInt32())
}

func TestMapRoundTrip(t *testing.T) {
	v := MapOf(
		MapEntry{Key: String("path"), Value: String("com.example.Foo")},
		MapEntry{Key: String("version"), Value: String("1.0")},
	)
	got := roundTrip(t, v)
	require.Equal(t, KindMap, got.Kind)
	require.Len(t, got.MapVal, 2)
	require.Equal(t, "path", got.MapVal[0].Key.AsString())
	require.Equal(t, "com.example.Foo", got.MapVal[0].Value.AsString())
}

func TestObjectRoundTrip(t *testing.T) {
	o := NewObject("com.example.User").Set("name", String("alice")).Set("age", Int(30))
	got := roundTrip(t, ObjectValue(o))
	require.Equal(t, KindObject, got.Kind)
	require.Equal(t, "com.example.User", got.ObjectVal.Class)
	nameField, ok := got.ObjectVal.Get("name")
	require.True(t, ok)
	require.Equal(t, "alice", nameField.AsString())
	ageField, ok := got.ObjectVal.Get("age")
	require.True(t, ok)
	require.Equal(t, int32(30), ageField.AsInt32())
}

func TestObjectClassTableInterning(t *testing.T) {
	enc := NewEncoder()
	o1 := NewObject("com.example.Point").Set("x", Int(1)).Set("y", Int(2))
	o2 := NewObject("com.example.Point").Set("x", Int(3)).Set("y", Int(4))
	require.NoError(t, enc.EncodeValue(ObjectValue(o1)))
	require.NoError(t, enc.EncodeValue(ObjectValue(o2)))

	// the second instance is only a 0x60 class reference plus its field
	// values; the class definition is not emitted again.
	first, err := Encode(ObjectValue(o1))
	require.NoError(t, err)
	require.Equal(t, []byte{bcObjectFixedZero, bcIntZero + 3, bcIntZero + 4}, enc.Bytes()[len(first):])

	dec := NewDecoder(enc.Bytes())
	got1, err := dec.DecodeValue()
	require.NoError(t, err)
	got2, err := dec.DecodeValue()
	require.NoError(t, err)

	require.Equal(t, "com.example.Point", got1.ObjectVal.Class)
	require.Equal(t, "com.example.Point", got2.ObjectVal.Class)
	x2, _ := got2.ObjectVal.Get("x")
	require.Equal(t, int32(3), x2.AsInt32())
}

func TestObjectBackReference(t *testing.T) {
	// The encoder never emits an object back-reference of its own
	// (objects are only class-table interned, not instance-
	// deduplicated), but the decoder must still resolve an explicit
	// 0x51 reference correctly when present on the wire, per §4.1.8.
	enc := NewEncoder()
	o := NewObject("com.example.Node").Set("value", Int(1))
	require.NoError(t, enc.EncodeValue(ObjectValue(o)))
	buf := enc.Bytes()

	// append a manual 0x51 0x90 (ref to object index 0) and decode both
	buf = append(buf, bcRef, byte(bcIntZero+0))
	dec := NewDecoder(buf)
	first, err := dec.DecodeValue()
	require.NoError(t, err)
	second, err := dec.DecodeValue()
	require.NoError(t, err)
	require.Equal(t, first.ObjectVal.Class, second.ObjectVal.Class)
	v1, _ := first.ObjectVal.Get("value")
	v2, _ := second.ObjectVal.Get("value")
	require.Equal(t, v1.AsInt32(), v2.AsInt32())
}

func TestDecodeListRejectsNegativeLength(t *testing.T) {
	// bcListUntypedFixed (0x58) followed by a direct-int-encoded -5
	// (0x8B = bcIntZero + (-5)) must not reach make([]Value, 0, -5).
	buf := []byte{bcListUntypedFixed, byte(bcIntZero - 5)}
	_, err := Decode(buf)
	require.Error(t, err)
}

func TestDecodeClassDefRejectsNegativeFieldCount(t *testing.T) {
	// 'C' + a one-char string path "x" + a direct-int-encoded -5 field
	// count must not reach make([]string, 0, -5).
	buf := []byte{bcClassDef, 0x01, 'x', byte(bcIntZero - 5)}
	_, err := Decode(buf)
	require.Error(t, err)
}

func TestArgumentDescriptor(t *testing.T) {
	args := []Value{Bool(true), Int(1), Long(2), Double(3.0), String("s"),
		ObjectValue(NewObject("com.example.Foo")), List("", Int(1))}
	d, err := ArgumentDescriptor(args)
	require.NoError(t, err)
	require.Equal(t, "ZIJDLjava/lang/String;Lcom/example/Foo;[I", d)
}

func TestArgumentDescriptorRejectsEmptyList(t *testing.T) {
	_, err := ArgumentDescriptor([]Value{List("")})
	require.Error(t, err)
}
