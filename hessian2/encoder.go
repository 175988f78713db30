package hessian2

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/go-mesh/dubbo-client/internal/errs"
)

// encodeState is the per-message class/type interning state (§3's
// "Per-message codec state"): built fresh for every Encode call, never
// shared across messages.
type encodeState struct {
	w          *writer
	classTable []string
	typeTable  []string
}

// Encode serializes a single typed Value using a fresh encodeState. Use
// NewEncoder to share interning tables across several top-level values in
// one message (e.g. a request's positional arguments + attachments).
func Encode(v Value) ([]byte, error) {
	w := newWriter()
	st := &encodeState{w: w}
	if err := st.encodeValue(v); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// NewEncoder returns a fresh per-message encoder whose class/type tables
// persist across multiple EncodeValue calls, so that e.g. two object
// arguments of the same class share one class definition.
func NewEncoder() *MessageEncoder {
	return &MessageEncoder{st: &encodeState{w: newWriter()}}
}

// MessageEncoder accumulates bytes for one Dubbo body across several
// values (dubbo_version, path, version, method, descriptor, arguments,
// attachments — per §4.1.10), keeping one interning table for all of
// them, exactly as a single Hessian message requires.
type MessageEncoder struct {
	st *encodeState
}

func (e *MessageEncoder) EncodeValue(v Value) error { return e.st.encodeValue(v) }
func (e *MessageEncoder) Bytes() []byte             { return e.st.w.Bytes() }
func (e *MessageEncoder) Len() int                  { return e.st.w.Len() }

func (st *encodeState) encodeValue(v Value) error {
	switch v.Kind {
	case KindNull:
		st.w.WriteByte(bcNull)
	case KindBool:
		if v.boolVal {
			st.w.WriteByte(bcTrue)
		} else {
			st.w.WriteByte(bcFalse)
		}
	case KindInt32:
		st.encodeInt(v.int32Val)
	case KindInt64:
		st.encodeLong(v.int64Val)
	case KindFloat64:
		st.encodeDouble(v.float64Val)
	case KindString:
		st.encodeString(v.strVal)
	case KindDate:
		st.encodeDate(v)
	case KindBinary:
		// not required for RPC arguments; encoded as a plain string of
		// the same bytes. It decodes back as a KindString, and bytes that
		// are not valid UTF-8 are replaced by U+FFFD on the way out.
		st.encodeString(string(v.binaryVal))
	case KindList:
		return st.encodeList(v)
	case KindMap:
		return st.encodeMap(v)
	case KindObject:
		return st.encodeObject(v.ObjectVal)
	default:
		return errs.Wrap(errs.ErrHessianType, "encode: unknown kind %v", v.Kind)
	}
	return nil
}

// encodeInt implements §4.1.1's four-form magnitude table.
func (st *encodeState) encodeInt(v int32) {
	switch {
	case intDirectMin <= v && v <= intDirectMax:
		st.w.WriteByte(byte(bcIntZero + v))
	case intByteMin <= v && v <= intByteMax:
		st.w.WriteByte(byte(bcIntByteZero + (v >> 8)))
		st.w.WriteByte(byte(v))
	case intShortMin <= v && v <= intShortMax:
		st.w.WriteByte(byte(bcIntShortZero + (v >> 16)))
		st.w.WriteByte(byte(v >> 8))
		st.w.WriteByte(byte(v))
	default:
		st.w.WriteByte(bcInt)
		st.w.WriteUint32(uint32(v))
	}
}

// encodeLong implements §4.1.2's five-form magnitude table.
func (st *encodeState) encodeLong(v int64) {
	switch {
	case longDirectMin <= v && v <= longDirectMax:
		st.w.WriteByte(byte(bcLongZero + v))
	case longByteMin <= v && v <= longByteMax:
		st.w.WriteByte(byte(bcLongByteZero + (v >> 8)))
		st.w.WriteByte(byte(v))
	case longShortMin <= v && v <= longShortMax:
		st.w.WriteByte(byte(bcLongShortZero + (v >> 16)))
		st.w.WriteByte(byte(v >> 8))
		st.w.WriteByte(byte(v))
	case math.MinInt32 <= v && v <= math.MaxInt32:
		st.w.WriteByte(bcLongInt)
		st.w.WriteUint32(uint32(int32(v)))
	default:
		st.w.WriteByte(bcLong)
		st.w.WriteUint64(uint64(v))
	}
}

// encodeDouble implements §4.1.3's exact-representability ladder. NaN
// must encode to the canonical quiet-NaN bit pattern.
func (st *encodeState) encodeDouble(v float64) {
	if v == 0.0 {
		st.w.WriteByte(bcDoubleZero)
		return
	}
	if v == 1.0 {
		st.w.WriteByte(bcDoubleOne)
		return
	}
	if iv := int64(v); float64(iv) == v {
		if iv >= -0x80 && iv < 0x80 {
			st.w.WriteByte(bcDoubleByte)
			st.w.WriteByte(byte(iv))
			return
		}
		if iv >= -0x8000 && iv < 0x8000 {
			st.w.WriteByte(bcDoubleShort)
			st.w.WriteByte(byte(iv >> 8))
			st.w.WriteByte(byte(iv))
			return
		}
	}
	mills := int64(v * 1000)
	if float64(mills)*0.001 == v && mills >= math.MinInt32 && mills <= math.MaxInt32 {
		st.w.WriteByte(bcDoubleMill)
		st.w.WriteUint32(uint32(int32(mills)))
		return
	}
	bits := math.Float64bits(v)
	if math.IsNaN(v) {
		bits = 0x7FF8000000000000
	}
	st.w.WriteByte(bcDouble)
	st.w.WriteUint64(bits)
}

// encodeString implements §4.1.4: length in Unicode code points, chunked
// at 32K characters, with a three-tier final-chunk length prefix.
func (st *encodeState) encodeString(s string) {
	runes := []rune(s)
	for len(runes) > maxChunkChars {
		chunk := runes[:maxChunkChars]
		st.w.WriteByte(bcStringChunk)
		st.w.WriteUint16(uint16(len(chunk)))
		st.writeUTF8(chunk)
		runes = runes[maxChunkChars:]
	}
	n := len(runes)
	switch {
	case n <= stringDirectMax:
		st.w.WriteByte(byte(bcStringDirect + n))
	case n <= stringShortMax:
		st.w.WriteByte(byte(bcStringShort + (n >> 8)))
		st.w.WriteByte(byte(n))
	default:
		st.w.WriteByte(bcString)
		st.w.WriteUint16(uint16(n))
	}
	st.writeUTF8(runes)
}

func (st *encodeState) writeUTF8(runes []rune) {
	buf := make([]byte, 0, len(runes)*2)
	var tmp [utf8.UTFMax]byte
	for _, r := range runes {
		n := utf8.EncodeRune(tmp[:], r)
		buf = append(buf, tmp[:n]...)
	}
	st.w.WriteBytes(buf)
}

// encodeDate implements §4.1.5's 8-byte millisecond form. The 4-byte
// minute-precision form (0x4B) is decode-only per the original's
// encoder, which always emits milliseconds.
func (st *encodeState) encodeDate(v Value) {
	millis := v.dateVal.UnixMilli()
	st.w.WriteByte(bcDateMillis)
	st.w.WriteUint64(uint64(millis))
}

// encodeList implements §4.1.6. Untyped fixed-length lists use the
// compact 0x78+n form; typed lists intern their element-type tag in the
// shared type table.
func (st *encodeState) encodeList(v Value) error {
	n := len(v.ListVal)
	if v.ListType == "" {
		if n <= 7 {
			st.w.WriteByte(byte(bcListFixedUntypedZero + n))
		} else {
			st.w.WriteByte(bcListUntypedFixed)
			st.encodeLength(n)
		}
	} else {
		if n <= 7 {
			st.w.WriteByte(byte(bcListFixedTypedZero + n))
		} else {
			st.w.WriteByte(bcListTypedFixed)
		}
		st.encodeTypeRef(v.ListType)
		if n > 7 {
			st.encodeLength(n)
		}
	}
	for _, e := range v.ListVal {
		if err := st.encodeValue(e); err != nil {
			return err
		}
	}
	return nil
}

// encodeLength writes a plain int using the integer rules — §4.1.6's
// "explicit length" lists carry their length this way.
func (st *encodeState) encodeLength(n int) { st.encodeInt(int32(n)) }

// encodeTypeRef emits a list/map element-type tag: the first occurrence
// is a string appended to the shared type table, subsequent occurrences
// are the table index as an integer.
func (st *encodeState) encodeTypeRef(tag string) {
	for i, t := range st.typeTable {
		if t == tag {
			st.encodeInt(int32(i))
			return
		}
	}
	st.typeTable = append(st.typeTable, tag)
	st.encodeString(tag)
}

// encodeMap implements §4.1.7: 'H' (untyped) terminated by 'Z'. This
// implementation never emits 'M' since Value carries no map element
// type concept distinct from list — maps built via MapOf are always
// untyped, matching every map this library ever puts on the wire
// (attachments).
func (st *encodeState) encodeMap(v Value) error {
	st.w.WriteByte(bcMapUntyped)
	for _, e := range v.MapVal {
		if err := st.encodeValue(e.Key); err != nil {
			return err
		}
		if err := st.encodeValue(e.Value); err != nil {
			return err
		}
	}
	st.w.WriteByte(bcMapEnd)
	return nil
}

// encodeObject implements §4.1.8: emit the class definition the first
// time a class path is seen in this message, then the compact instance
// reference, then field values in declaration order.
func (st *encodeState) encodeObject(o *Object) error {
	idx := -1
	for i, c := range st.classTable {
		if c == o.Class {
			idx = i
			break
		}
	}
	if idx == -1 {
		st.w.WriteByte(bcClassDef)
		st.encodeString(o.Class)
		st.encodeInt(int32(len(o.Fields)))
		for _, f := range o.Fields {
			st.encodeString(f.Name)
		}
		idx = len(st.classTable)
		st.classTable = append(st.classTable, o.Class)
	}
	if idx <= objectFixedMax {
		st.w.WriteByte(byte(bcObjectFixedZero + idx))
	} else {
		st.w.WriteByte(bcObjectDef)
		st.encodeInt(int32(idx))
	}
	for _, f := range o.Fields {
		if err := st.encodeValue(f.Value); err != nil {
			return err
		}
	}
	return nil
}

// ArgumentDescriptor implements §4.1.9: the JVM-style type descriptor
// string emitted before a request's positional arguments.
func ArgumentDescriptor(args []Value) (string, error) {
	var b []byte
	for _, a := range args {
		d, err := descriptorOf(a)
		if err != nil {
			return "", err
		}
		b = append(b, d...)
	}
	return string(b), nil
}

func descriptorOf(v Value) (string, error) {
	switch v.Kind {
	case KindBool:
		return "Z", nil
	case KindInt32:
		return "I", nil
	case KindInt64:
		return "J", nil
	case KindFloat64:
		return "D", nil
	case KindString:
		return "Ljava/lang/String;", nil
	case KindObject:
		return "L" + javaPath(v.ObjectVal.Class) + ";", nil
	case KindList:
		if len(v.ListVal) == 0 {
			return "", errs.Wrap(errs.ErrHessianType, "encoding error: empty list has no element type")
		}
		elemDesc, err := descriptorOf(v.ListVal[0])
		if err != nil {
			return "", err
		}
		return "[" + elemDesc, nil
	case KindNull:
		return "", errs.Wrap(errs.ErrHessianType, "encoding error: cannot infer null's type")
	default:
		return "", errs.Wrap(errs.ErrHessianType, "encoding error: cannot describe kind %v", v.Kind)
	}
}

func javaPath(class string) string {
	return strings.ReplaceAll(class, ".", "/")
}
