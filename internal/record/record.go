package record

import (
	"encoding/binary"
	"math"
)

// SchemaDataType is the declared type of a column. The low values double as
// on-disk type codes for fixed-width values.
type SchemaDataType uint8

const (
	OneByteNull   SchemaDataType = 0x00
	TwoByteNull   SchemaDataType = 0x01
	FourByteNull  SchemaDataType = 0x02
	EightByteNull SchemaDataType = 0x03
	TinyInt       SchemaDataType = 0x04
	SmallInt      SchemaDataType = 0x05
	Int           SchemaDataType = 0x06
	BigInt        SchemaDataType = 0x07
	Real          SchemaDataType = 0x08
	Double        SchemaDataType = 0x09
	DateTime      SchemaDataType = 0x0A
	Date          SchemaDataType = 0x0B
	Text          SchemaDataType = 0x0C

	InvalidType SchemaDataType = 0xFF
)

// TypeCode tags a single stored value. For fixed-width types the code equals
// the schema type; for TEXT the code is Text plus the byte length.
type TypeCode uint8

// Value is a decoded column value. A nil Value is SQL NULL.
type Value interface{}

// ColumnAttribute is the nullability/key constraint of a column.
type ColumnAttribute int

const (
	CouldNull ColumnAttribute = iota
	NotNull
	PrimaryKey
)

// dataTypeSize maps the fixed type codes 0x00..0x0B to their stored widths.
var dataTypeSize = [...]uint16{1, 2, 4, 8, 1, 2, 4, 8, 4, 8, 8, 8}

// TypeCodeSize returns the number of value bytes a type code occupies.
func TypeCodeSize(code TypeCode) uint16 {
	if code >= TypeCode(Text) {
		return uint16(code) - uint16(Text)
	}
	return dataTypeSize[code]
}

// TypeSize returns the fixed width of a schema type. TEXT has no fixed width
// and reports zero.
func TypeSize(t SchemaDataType) uint16 {
	if t >= Text {
		return 0
	}
	return dataTypeSize[t]
}

// IsNullCode reports whether a type code is one of the NULL codes.
func IsNullCode(code TypeCode) bool {
	return code <= TypeCode(EightByteNull)
}

// NullCodeFor compresses a NULL to the narrowest null code matching the
// schema width. TEXT nulls are stored as a zero-length text run.
func NullCodeFor(t SchemaDataType) TypeCode {
	if t >= Text {
		return TypeCode(Text)
	}
	switch dataTypeSize[t] {
	case 1:
		return TypeCode(OneByteNull)
	case 2:
		return TypeCode(TwoByteNull)
	case 4:
		return TypeCode(FourByteNull)
	default:
		return TypeCode(EightByteNull)
	}
}

// TypeCodeFor derives the per-value type code for a value of the given
// schema type.
func TypeCodeFor(t SchemaDataType, v Value) TypeCode {
	if t >= Text {
		if v == nil {
			return TypeCode(Text)
		}
		return TypeCode(uint8(Text) + uint8(len(v.(string))))
	}
	if v == nil {
		return NullCodeFor(t)
	}
	return TypeCode(t)
}

// ValueToBytes encodes a value for storage. Multi-byte values are written
// big-endian; TEXT bytes are stored reversed.
func ValueToBytes(code TypeCode, v Value) []byte {
	size := TypeCodeSize(code)
	out := make([]byte, size)

	if v == nil || IsNullCode(code) {
		return out
	}

	if code >= TypeCode(Text) {
		s := v.(string)
		for i := 0; i < len(s); i++ {
			out[len(s)-1-i] = s[i]
		}
		return out
	}

	switch SchemaDataType(code) {
	case TinyInt:
		out[0] = byte(v.(int8))
	case SmallInt:
		binary.BigEndian.PutUint16(out, uint16(v.(int16)))
	case Int:
		binary.BigEndian.PutUint32(out, uint32(v.(int32)))
	case BigInt:
		binary.BigEndian.PutUint64(out, uint64(v.(int64)))
	case Real:
		binary.BigEndian.PutUint32(out, math.Float32bits(v.(float32)))
	case Double:
		binary.BigEndian.PutUint64(out, math.Float64bits(v.(float64)))
	case DateTime, Date:
		binary.BigEndian.PutUint64(out, v.(uint64))
	}

	return out
}

// BytesToValue decodes stored value bytes. NULL codes decode to nil.
func BytesToValue(code TypeCode, b []byte) Value {
	if IsNullCode(code) {
		return nil
	}

	if code >= TypeCode(Text) {
		n := int(TypeCodeSize(code))
		out := make([]byte, n)
		for i := 0; i < n; i++ {
			out[n-1-i] = b[i]
		}
		return string(out)
	}

	switch SchemaDataType(code) {
	case TinyInt:
		return int8(b[0])
	case SmallInt:
		return int16(binary.BigEndian.Uint16(b))
	case Int:
		return int32(binary.BigEndian.Uint32(b))
	case BigInt:
		return int64(binary.BigEndian.Uint64(b))
	case Real:
		return math.Float32frombits(binary.BigEndian.Uint32(b))
	case Double:
		return math.Float64frombits(binary.BigEndian.Uint64(b))
	case DateTime, Date:
		return binary.BigEndian.Uint64(b)
	}

	return nil
}

// TypeValue pairs a stored type code with its decoded value.
type TypeValue struct {
	Code  TypeCode
	Value Value
}
