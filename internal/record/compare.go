package record

import "strings"

// Operator is a comparison operator from a WHERE clause.
type Operator int

const (
	Equal Operator = iota
	Unequal
	Larger
	Smaller
	NotLarger
	NotSmaller
	InvalidOp
)

// OperatorFromString maps SQL operator text to an Operator.
func OperatorFromString(s string) Operator {
	switch s {
	case "=":
		return Equal
	case "<>", "!=":
		return Unequal
	case ">":
		return Larger
	case "<":
		return Smaller
	case "<=":
		return NotLarger
	case ">=":
		return NotSmaller
	}
	return InvalidOp
}

func (op Operator) String() string {
	switch op {
	case Equal:
		return "="
	case Unequal:
		return "<>"
	case Larger:
		return ">"
	case Smaller:
		return "<"
	case NotLarger:
		return "<="
	case NotSmaller:
		return ">="
	}
	return "?"
}

// Compare evaluates lhs op rhs. A NULL type code on either side yields false
// for every operator, so NULLs never satisfy a condition.
func Compare(lhs, rhs Value, lcode, rcode TypeCode, op Operator) bool {
	if IsNullCode(lcode) || IsNullCode(rcode) || lhs == nil || rhs == nil {
		return false
	}

	if lcode >= TypeCode(Text) && rcode >= TypeCode(Text) {
		return ordered(strings.Compare(lhs.(string), rhs.(string)), op)
	}

	switch SchemaDataType(lcode) {
	case TinyInt, SmallInt, Int, BigInt:
		l, r := asInt64(lhs), asInt64(rhs)
		return ordered(compareInt64(l, r), op)
	case Real, Double:
		l, r := asFloat64(lhs), asFloat64(rhs)
		switch {
		case l < r:
			return ordered(-1, op)
		case l > r:
			return ordered(1, op)
		default:
			return ordered(0, op)
		}
	case DateTime, Date:
		// stored as seconds since the epoch; instants compare numerically
		l, r := lhs.(uint64), rhs.(uint64)
		switch {
		case l < r:
			return ordered(-1, op)
		case l > r:
			return ordered(1, op)
		default:
			return ordered(0, op)
		}
	}

	return false
}

func ordered(cmp int, op Operator) bool {
	switch op {
	case Equal:
		return cmp == 0
	case Unequal:
		return cmp != 0
	case Larger:
		return cmp > 0
	case Smaller:
		return cmp < 0
	case NotLarger:
		return cmp <= 0
	case NotSmaller:
		return cmp >= 0
	}
	return false
}

func compareInt64(l, r int64) int {
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	}
	return 0
}

func asInt64(v Value) int64 {
	switch n := v.(type) {
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	}
	return 0
}

func asFloat64(v Value) float64 {
	switch n := v.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
