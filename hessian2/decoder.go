package hessian2

import (
	"math"
	"strconv"
	"time"

	"github.com/go-mesh/dubbo-client/internal/errs"
)

// classDef is one entry of the per-message class table: a class path
// plus its ordered field names, recorded when a 'C' opcode is decoded.
type classDef struct {
	path   string
	fields []string
}

// decodeState is the per-message decoder state (§3): class-defs,
// type-table, and object-table for back-reference resolution. Built
// fresh for every Decode call.
type decodeState struct {
	r          *reader
	classDefs  []classDef
	typeTable  []string
	objectRefs []*Value
}

// Decode parses a single top-level Hessian value from buf using a fresh
// decodeState.
func Decode(buf []byte) (Value, error) {
	st := &decodeState{r: newReader(buf)}
	return st.decodeValue()
}

// NewDecoder returns a decoder that keeps its interning tables across
// several DecodeValue calls, mirroring NewEncoder — used to decode a
// Dubbo request body's class-defined objects consistently.
func NewDecoder(buf []byte) *MessageDecoder {
	return &MessageDecoder{st: &decodeState{r: newReader(buf)}}
}

type MessageDecoder struct{ st *decodeState }

func (d *MessageDecoder) DecodeValue() (Value, error) { return d.st.decodeValue() }
func (d *MessageDecoder) ReadString() (string, error)  { return d.st.readStringValue() }
func (d *MessageDecoder) Remaining() int                { return d.st.r.Len() }

func (st *decodeState) decodeValue() (Value, error) {
	b, err := st.r.Peek()
	if err != nil {
		return Value{}, errs.Wrap(errs.ErrHessianType, "decode: %v", err)
	}
	switch {
	case b == bcNull:
		st.r.ReadByte()
		return Null(), nil
	case b == bcTrue || b == bcFalse:
		return st.decodeBool()
	case isIntOpcode(b):
		return st.decodeInt()
	case isLongOpcode(b):
		return st.decodeLong()
	case isDoubleOpcode(b):
		return st.decodeDouble()
	case isStringOpcode(b):
		return st.decodeString()
	case b == bcDateMillis || b == bcDateMinutes:
		return st.decodeDate()
	case isListOpcode(b):
		return st.decodeList()
	case b == bcMapUntyped || b == bcMapTyped:
		return st.decodeMap()
	case b == bcClassDef:
		return st.decodeClassAndObject()
	case isObjectOpcode(b):
		return st.decodeObjectRef()
	case b == bcRef:
		return st.decodeBackRef()
	default:
		return Value{}, errs.Wrap(errs.ErrHessianType, "decode: unrecognized opcode 0x%02x", b)
	}
}

func isIntOpcode(b byte) bool {
	return (b >= 0x80 && b <= 0xD7) || b == bcInt
}

func isLongOpcode(b byte) bool {
	return (b >= 0xD8 && b <= 0xFF) || (b >= 0x38 && b <= 0x3F) || b == bcLongInt || b == bcLong
}

func isDoubleOpcode(b byte) bool {
	return b >= bcDoubleZero && b <= bcDoubleMill || b == bcDouble
}

func isStringOpcode(b byte) bool {
	return (b >= 0x00 && b <= 0x1F) || (b >= 0x30 && b <= 0x33) || b == bcStringChunk || b == bcString
}

func isListOpcode(b byte) bool {
	return (b >= bcListFixedTypedZero && b <= bcListFixedTypedZero+7) ||
		(b >= bcListFixedUntypedZero && b <= bcListFixedUntypedZero+7) ||
		b == bcListTypedVar || b == bcListTypedFixed || b == bcListUntypedVar || b == bcListUntypedFixed
}

func isObjectOpcode(b byte) bool {
	return (b >= bcObjectFixedZero && b <= bcObjectFixedZero+objectFixedMax) || b == bcObjectDef
}

func (st *decodeState) decodeBool() (Value, error) {
	b, err := st.r.ReadByte()
	if err != nil {
		return Value{}, err
	}
	switch b {
	case bcTrue:
		return Bool(true), nil
	case bcFalse:
		return Bool(false), nil
	default:
		return Value{}, errs.Wrap(errs.ErrHessianType, "illegal boolean opcode 0x%02x", b)
	}
}

// decodeInt implements §4.1.1's read side.
func (st *decodeState) decodeInt() (Value, error) {
	v, err := st.readRawInt()
	if err != nil {
		return Value{}, err
	}
	return Int(v), nil
}

func (st *decodeState) readRawInt() (int32, error) {
	b, err := st.r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch {
	case b >= 0x80 && b <= 0xBF:
		return int32(b) - bcIntZero, nil
	case b >= 0xC0 && b <= 0xCF:
		b1, err := st.r.ReadByte()
		if err != nil {
			return 0, err
		}
		return (int32(b) - bcIntByteZero) << 8 | int32(b1), nil
	case b >= 0xD0 && b <= 0xD7:
		b1, err := st.r.ReadByte()
		if err != nil {
			return 0, err
		}
		b2, err := st.r.ReadByte()
		if err != nil {
			return 0, err
		}
		return (int32(b) - bcIntShortZero) << 16 | int32(b1)<<8 | int32(b2), nil
	case b == bcInt:
		u, err := st.r.ReadUint32()
		if err != nil {
			return 0, err
		}
		return int32(u), nil
	default:
		return 0, errs.Wrap(errs.ErrHessianType, "0x%02x is not an int", b)
	}
}

// decodeLong implements §4.1.2's read side.
func (st *decodeState) decodeLong() (Value, error) {
	b, err := st.r.ReadByte()
	if err != nil {
		return Value{}, err
	}
	var result int64
	switch {
	case b >= 0xD8 && b <= 0xEF:
		result = int64(b) - bcLongZero
	case b >= 0xF0 && b <= 0xFF:
		b1, err := st.r.ReadByte()
		if err != nil {
			return Value{}, err
		}
		result = (int64(b) - bcLongByteZero) << 8 | int64(b1)
	case b >= 0x38 && b <= 0x3F:
		b1, err := st.r.ReadByte()
		if err != nil {
			return Value{}, err
		}
		b2, err := st.r.ReadByte()
		if err != nil {
			return Value{}, err
		}
		result = (int64(b) - bcLongShortZero) << 16 | int64(b1)<<8 | int64(b2)
	case b == bcLongInt:
		u, err := st.r.ReadUint32()
		if err != nil {
			return Value{}, err
		}
		result = int64(int32(u))
	case b == bcLong:
		u, err := st.r.ReadUint64()
		if err != nil {
			return Value{}, err
		}
		result = int64(u)
	default:
		return Value{}, errs.Wrap(errs.ErrHessianType, "0x%02x is not a long", b)
	}
	return Long(result), nil
}

// decodeDouble implements §4.1.3's read side.
func (st *decodeState) decodeDouble() (Value, error) {
	b, err := st.r.ReadByte()
	if err != nil {
		return Value{}, err
	}
	switch b {
	case bcDoubleZero:
		return Double(0.0), nil
	case bcDoubleOne:
		return Double(1.0), nil
	case bcDoubleByte:
		v, err := st.r.ReadByte()
		if err != nil {
			return Value{}, err
		}
		return Double(float64(int8(v))), nil
	case bcDoubleShort:
		u, err := st.r.ReadUint16()
		if err != nil {
			return Value{}, err
		}
		return Double(float64(int16(u))), nil
	case bcDoubleMill:
		u, err := st.r.ReadUint32()
		if err != nil {
			return Value{}, err
		}
		return Double(float64(int32(u)) * 0.001), nil
	case bcDouble:
		u, err := st.r.ReadUint64()
		if err != nil {
			return Value{}, err
		}
		return Double(math.Float64frombits(u)), nil
	default:
		return Value{}, errs.Wrap(errs.ErrHessianType, "0x%02x is not a double", b)
	}
}

// decodeString implements §4.1.4's read side, including chunk
// reassembly for strings over 32K characters.
func (st *decodeState) decodeString() (Value, error) {
	s, err := st.readStringValue()
	if err != nil {
		return Value{}, err
	}
	return String(s), nil
}

func (st *decodeState) readStringValue() (string, error) {
	var runes []rune
	for {
		b, err := st.r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == bcStringChunk {
			n, err := st.r.ReadUint16()
			if err != nil {
				return "", err
			}
			chunk, err := st.readUTF8(int(n))
			if err != nil {
				return "", err
			}
			runes = append(runes, chunk...)
			continue
		}
		var length int
		switch {
		case b == bcString:
			n, err := st.r.ReadUint16()
			if err != nil {
				return "", err
			}
			length = int(n)
		case b >= 0x00 && b <= 0x1F:
			length = int(b)
		case b >= 0x30 && b <= 0x33:
			b1, err := st.r.ReadByte()
			if err != nil {
				return "", err
			}
			length = int(b-bcStringShort)<<8 | int(b1)
		default:
			return "", errs.Wrap(errs.ErrHessianType, "0x%02x is not a string", b)
		}
		chunk, err := st.readUTF8(length)
		if err != nil {
			return "", err
		}
		runes = append(runes, chunk...)
		return string(runes), nil
	}
}

// readUTF8 reads n Unicode code points encoded as 1-3 byte UTF-8
// sequences (BMP coverage only, per §4.1.4).
func (st *decodeState) readUTF8(n int) ([]rune, error) {
	out := make([]rune, 0, n)
	for i := 0; i < n; i++ {
		b0, err := st.r.ReadByte()
		if err != nil {
			return nil, err
		}
		switch {
		case b0 < 0x80:
			out = append(out, rune(b0))
		case b0&0xE0 == 0xC0:
			b1, err := st.r.ReadByte()
			if err != nil {
				return nil, err
			}
			out = append(out, rune(b0&0x1F)<<6|rune(b1&0x3F))
		case b0&0xF0 == 0xE0:
			b1, err := st.r.ReadByte()
			if err != nil {
				return nil, err
			}
			b2, err := st.r.ReadByte()
			if err != nil {
				return nil, err
			}
			out = append(out, rune(b0&0x0F)<<12|rune(b1&0x3F)<<6|rune(b2&0x3F))
		default:
			return nil, errs.Wrap(errs.ErrHessianType, "can't parse utf-8 byte 0x%02x", b0)
		}
	}
	return out, nil
}

// decodeDate implements §4.1.5's read side.
func (st *decodeState) decodeDate() (Value, error) {
	b, err := st.r.ReadByte()
	if err != nil {
		return Value{}, err
	}
	var millis int64
	switch b {
	case bcDateMillis:
		u, err := st.r.ReadUint64()
		if err != nil {
			return Value{}, err
		}
		millis = int64(u)
	case bcDateMinutes:
		u, err := st.r.ReadUint32()
		if err != nil {
			return Value{}, err
		}
		millis = int64(int32(u)) * 60000
	default:
		return Value{}, errs.Wrap(errs.ErrHessianType, "0x%02x is not a date", b)
	}
	return DateValue(time.UnixMilli(millis).UTC()), nil
}

// decodeType reads a list/map element-type tag: a string the first time
// it occurs (appended to the shared type table) or a table index
// thereafter.
func (st *decodeState) decodeType() (string, error) {
	b, err := st.r.Peek()
	if err != nil {
		return "", err
	}
	if isIntOpcode(b) {
		idx, err := st.readRawInt()
		if err != nil {
			return "", err
		}
		if int(idx) < 0 || int(idx) >= len(st.typeTable) {
			return "", errs.Wrap(errs.ErrHessianType, "type table index %d out of range", idx)
		}
		return st.typeTable[idx], nil
	}
	s, err := st.readStringValue()
	if err != nil {
		return "", err
	}
	st.typeTable = append(st.typeTable, s)
	return s, nil
}

// decodeList implements §4.1.6's read side. The preallocated placeholder
// is appended to the object table before decoding children so a cyclic
// back-reference resolves to the enclosing list itself.
func (st *decodeState) decodeList() (Value, error) {
	placeholder := &Value{Kind: KindList}
	st.objectRefs = append(st.objectRefs, placeholder)

	b, err := st.r.ReadByte()
	if err != nil {
		return Value{}, err
	}
	var (
		elemType string
		length   = -1
	)
	switch {
	case b >= bcListFixedTypedZero && b <= bcListFixedTypedZero+7:
		elemType, err = st.decodeType()
		if err != nil {
			return Value{}, err
		}
		length = int(b - bcListFixedTypedZero)
	case b >= bcListFixedUntypedZero && b <= bcListFixedUntypedZero+7:
		length = int(b - bcListFixedUntypedZero)
	case b == bcListTypedFixed:
		elemType, err = st.decodeType()
		if err != nil {
			return Value{}, err
		}
		n, err := st.readRawInt()
		if err != nil {
			return Value{}, err
		}
		if n < 0 {
			return Value{}, errs.Wrap(errs.ErrHessianType, "negative list length %d", n)
		}
		length = int(n)
	case b == bcListUntypedFixed:
		n, err := st.readRawInt()
		if err != nil {
			return Value{}, err
		}
		if n < 0 {
			return Value{}, errs.Wrap(errs.ErrHessianType, "negative list length %d", n)
		}
		length = int(n)
	case b == bcListTypedVar:
		elemType, err = st.decodeType()
		if err != nil {
			return Value{}, err
		}
		length = -1
	case b == bcListUntypedVar:
		length = -1
	default:
		return Value{}, errs.Wrap(errs.ErrHessianType, "0x%02x is not a list", b)
	}

	var elems []Value
	if length >= 0 {
		elems = make([]Value, 0, length)
		for i := 0; i < length; i++ {
			v, err := st.decodeValue()
			if err != nil {
				return Value{}, err
			}
			elems = append(elems, v)
		}
	} else {
		// a variable-length list ends at a 'Z' terminator, which is
		// consumed, or at the end of the buffer.
		for st.r.Len() > 0 {
			pb, err := st.r.Peek()
			if err != nil {
				break
			}
			if pb == bcMapEnd {
				st.r.ReadByte()
				break
			}
			v, err := st.decodeValue()
			if err != nil {
				return Value{}, err
			}
			elems = append(elems, v)
		}
	}
	result := Value{Kind: KindList, ListVal: elems, ListType: elemType}
	*placeholder = result
	return result, nil
}

// decodeMap implements §4.1.7's read side: 'H'/'M' followed by key/value
// pairs terminated by 'Z'.
func (st *decodeState) decodeMap() (Value, error) {
	placeholder := &Value{Kind: KindMap}
	st.objectRefs = append(st.objectRefs, placeholder)

	b, err := st.r.ReadByte()
	if err != nil {
		return Value{}, err
	}
	if b == bcMapTyped {
		if _, err := st.decodeType(); err != nil {
			return Value{}, err
		}
	} else if b != bcMapUntyped {
		return Value{}, errs.Wrap(errs.ErrHessianType, "0x%02x is not a map", b)
	}

	var entries []MapEntry
	for {
		pb, err := st.r.Peek()
		if err != nil {
			return Value{}, err
		}
		if pb == bcMapEnd {
			st.r.ReadByte()
			break
		}
		k, err := st.decodeValue()
		if err != nil {
			return Value{}, err
		}
		v, err := st.decodeValue()
		if err != nil {
			return Value{}, err
		}
		entries = append(entries, MapEntry{Key: k, Value: v})
	}
	result := Value{Kind: KindMap, MapVal: entries}
	*placeholder = result
	return result, nil
}

// decodeClassAndObject implements the 'C' branch of §4.1.8: a class
// definition followed immediately by its first instance.
func (st *decodeState) decodeClassAndObject() (Value, error) {
	st.r.ReadByte() // consume 'C'
	path, err := st.readStringValue()
	if err != nil {
		return Value{}, err
	}
	n, err := st.readRawInt()
	if err != nil {
		return Value{}, err
	}
	if n < 0 {
		return Value{}, errs.Wrap(errs.ErrHessianType, "negative class field count %d", n)
	}
	fields := make([]string, 0, n)
	for i := int32(0); i < n; i++ {
		name, err := st.readStringValue()
		if err != nil {
			return Value{}, err
		}
		fields = append(fields, name)
	}
	st.classDefs = append(st.classDefs, classDef{path: path, fields: fields})
	return st.decodeObjectRef()
}

// decodeObjectRef implements the instance-reference branch of §4.1.8:
// 0x60+index for small indices, 'O'+index otherwise, followed by field
// values in declaration order. BigDecimal/BigInteger are special-cased
// on decode per §4.1.8.
func (st *decodeState) decodeObjectRef() (Value, error) {
	placeholder := &Value{Kind: KindObject}
	st.objectRefs = append(st.objectRefs, placeholder)

	b, err := st.r.ReadByte()
	if err != nil {
		return Value{}, err
	}
	var idx int
	if b >= bcObjectFixedZero && b <= bcObjectFixedZero+objectFixedMax {
		idx = int(b - bcObjectFixedZero)
	} else if b == bcObjectDef {
		n, err := st.readRawInt()
		if err != nil {
			return Value{}, err
		}
		idx = int(n)
	} else {
		return Value{}, errs.Wrap(errs.ErrHessianType, "0x%02x is not an object reference", b)
	}
	if idx < 0 || idx >= len(st.classDefs) {
		return Value{}, errs.Wrap(errs.ErrHessianType, "class table index %d out of range", idx)
	}
	def := st.classDefs[idx]

	obj := NewObject(def.path)
	*placeholder = ObjectValue(obj)
	for _, name := range def.fields {
		v, err := st.decodeValue()
		if err != nil {
			return Value{}, err
		}
		obj.Set(name, v)
	}

	if def.path == classBigDecimal || def.path == classBigInteger {
		valField, _ := obj.Get("value")
		numeric, err := bigFieldToNumeric(valField)
		if err != nil {
			return Value{}, err
		}
		*placeholder = numeric
		return numeric, nil
	}

	result := ObjectValue(obj)
	*placeholder = result
	return result, nil
}

// bigFieldToNumeric converts the decoded "value" field of a BigDecimal/
// BigInteger instance into a plain numeric Value, per §4.1.8.
func bigFieldToNumeric(v Value) (Value, error) {
	switch v.Kind {
	case KindString:
		f, err := strconv.ParseFloat(v.strVal, 64)
		if err != nil {
			return Value{}, errs.Wrap(errs.ErrHessianType, "invalid BigDecimal/BigInteger value %q", v.strVal)
		}
		return Double(f), nil
	case KindFloat64, KindInt32, KindInt64:
		return v, nil
	default:
		return Value{}, errs.Wrap(errs.ErrHessianType, "unexpected BigDecimal/BigInteger value kind %v", v.Kind)
	}
}

// decodeBackRef implements the 0x51 back-reference opcode: resolves to a
// previously decoded aggregate by its position in the object table.
// Every aggregate is pre-registered before its children are decoded
// (see decodeList/decodeMap/decodeObjectRef), so a cyclic reference
// resolves to the correct enclosing container.
func (st *decodeState) decodeBackRef() (Value, error) {
	st.r.ReadByte() // consume 0x51
	idx, err := st.readRawInt()
	if err != nil {
		return Value{}, err
	}
	if int(idx) < 0 || int(idx) >= len(st.objectRefs) {
		return Value{}, errs.Wrap(errs.ErrHessianType, "object table index %d out of range", idx)
	}
	return *st.objectRefs[idx], nil
}
