package record

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	dateTimeLayout = "2006-01-02_15:04:05"
	dateLayout     = "2006-01-02"
)

// TypeFromString resolves a SQL type keyword. Unknown names map to
// InvalidType.
func TypeFromString(s string) SchemaDataType {
	switch strings.ToUpper(s) {
	case "TINYINT":
		return TinyInt
	case "SMALLINT":
		return SmallInt
	case "INT":
		return Int
	case "BIGINT":
		return BigInt
	case "REAL":
		return Real
	case "DOUBLE":
		return Double
	case "DATETIME":
		return DateTime
	case "DATE":
		return Date
	case "TEXT":
		return Text
	}
	return InvalidType
}

// TypeToString renders a schema type the way CREATE TABLE spells it.
func TypeToString(t SchemaDataType) string {
	switch t {
	case OneByteNull, TwoByteNull, FourByteNull, EightByteNull:
		return "NULL"
	case TinyInt:
		return "TINYINT"
	case SmallInt:
		return "SMALLINT"
	case Int:
		return "INT"
	case BigInt:
		return "BIGINT"
	case Real:
		return "REAL"
	case Double:
		return "DOUBLE"
	case DateTime:
		return "DATETIME"
	case Date:
		return "DATE"
	case Text:
		return "TEXT"
	}
	return ""
}

// StringToValue converts literal text to the native value for a type code.
func StringToValue(s string, code TypeCode) (Value, error) {
	if IsNullCode(code) {
		return nil, nil
	}

	if code >= TypeCode(Text) {
		return s, nil
	}

	switch SchemaDataType(code) {
	case TinyInt:
		n, err := strconv.ParseInt(s, 10, 8)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid TINYINT %q", s)
		}
		return int8(n), nil
	case SmallInt:
		n, err := strconv.ParseInt(s, 10, 16)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid SMALLINT %q", s)
		}
		return int16(n), nil
	case Int:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid INT %q", s)
		}
		return int32(n), nil
	case BigInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid BIGINT %q", s)
		}
		return n, nil
	case Real:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid REAL %q", s)
		}
		return float32(f), nil
	case Double:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid DOUBLE %q", s)
		}
		return f, nil
	case DateTime:
		t, err := time.ParseInLocation(dateTimeLayout, s, time.Local)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid DATETIME %q", s)
		}
		return uint64(t.Unix()), nil
	case Date:
		t, err := time.ParseInLocation(dateLayout, s, time.Local)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid DATE %q", s)
		}
		return uint64(t.Unix()), nil
	}

	return nil, errors.Errorf("unsupported type code 0x%02x", uint8(code))
}

// ValueToString renders a value for display.
func ValueToString(code TypeCode, v Value) string {
	if v == nil || IsNullCode(code) {
		return "NULL"
	}

	if code >= TypeCode(Text) {
		return v.(string)
	}

	switch SchemaDataType(code) {
	case TinyInt:
		return strconv.FormatInt(int64(v.(int8)), 10)
	case SmallInt:
		return strconv.FormatInt(int64(v.(int16)), 10)
	case Int:
		return strconv.FormatInt(int64(v.(int32)), 10)
	case BigInt:
		return strconv.FormatInt(v.(int64), 10)
	case Real:
		return strconv.FormatFloat(float64(v.(float32)), 'g', -1, 32)
	case Double:
		return strconv.FormatFloat(v.(float64), 'g', -1, 64)
	case DateTime:
		return time.Unix(int64(v.(uint64)), 0).Format(dateTimeLayout)
	case Date:
		return time.Unix(int64(v.(uint64)), 0).Format(dateLayout)
	}

	return ""
}

// AttributeFromStrings rebuilds a column attribute from catalog row text.
func AttributeFromStrings(isNullable, columnKey string) ColumnAttribute {
	if columnKey == "PRI" {
		return PrimaryKey
	}
	if isNullable == "YES" {
		return CouldNull
	}
	return NotNull
}

// NullableString is the catalog is_nullable text for an attribute.
func NullableString(attr ColumnAttribute) string {
	if attr == CouldNull {
		return "YES"
	}
	return "NO"
}

// KeyString is the catalog column_key text for an attribute.
func KeyString(attr ColumnAttribute) string {
	if attr == PrimaryKey {
		return "PRI"
	}
	return ""
}
