package predicate

import (
	"strconv"
)

// Operand is a numeric value a column is compared against.
// Comparisons between two Int64Operands are exact, any other combination is compared as float64.
type Operand interface {
	IsGreaterThan(val Operand) bool
	IsLessThan(val Operand) bool
	IsGreaterThanOrEqualTo(val Operand) bool
	IsLessThanOrEqualTo(val Operand) bool
	EqualTo(val Operand) bool
	Float64() float64
	SQLValue() interface{}
	String() string
}

type Float64Operand float64

func (f Float64Operand) IsGreaterThan(val Operand) bool {
	return float64(f) > val.Float64()
}

func (f Float64Operand) IsLessThan(val Operand) bool {
	return float64(f) < val.Float64()
}

func (f Float64Operand) IsGreaterThanOrEqualTo(val Operand) bool {
	return float64(f) >= val.Float64()
}

func (f Float64Operand) IsLessThanOrEqualTo(val Operand) bool {
	return float64(f) <= val.Float64()
}

func (f Float64Operand) EqualTo(val Operand) bool {
	return float64(f) == val.Float64()
}

func (f Float64Operand) Float64() float64 {
	return float64(f)
}

func (f Float64Operand) SQLValue() interface{} {
	return float64(f)
}

func (f Float64Operand) String() string {
	return strconv.FormatFloat(float64(f), 'g', -1, 64)
}

type Int64Operand int64

func (i Int64Operand) IsGreaterThan(val Operand) bool {
	other, ok := val.(Int64Operand)
	if ok {
		return int64(i) > int64(other)
	}
	return float64(i) > val.Float64()
}

func (i Int64Operand) IsLessThan(val Operand) bool {
	other, ok := val.(Int64Operand)
	if ok {
		return int64(i) < int64(other)
	}
	return float64(i) < val.Float64()
}

func (i Int64Operand) IsGreaterThanOrEqualTo(val Operand) bool {
	other, ok := val.(Int64Operand)
	if ok {
		return int64(i) >= int64(other)
	}
	return float64(i) >= val.Float64()
}

func (i Int64Operand) IsLessThanOrEqualTo(val Operand) bool {
	other, ok := val.(Int64Operand)
	if ok {
		return int64(i) <= int64(other)
	}
	return float64(i) <= val.Float64()
}

func (i Int64Operand) EqualTo(val Operand) bool {
	other, ok := val.(Int64Operand)
	if ok {
		return int64(i) == int64(other)
	}
	return float64(i) == val.Float64()
}

func (i Int64Operand) Float64() float64 {
	return float64(i)
}

func (i Int64Operand) SQLValue() interface{} {
	return int64(i)
}

func (i Int64Operand) String() string {
	return strconv.FormatInt(int64(i), 10)
}

// OperandFromValue converts a row value to an Operand. ok is false for nulls and non-numeric values.
func OperandFromValue(value interface{}) (op Operand, ok bool) {
	switch val := value.(type) {
	case int32:
		return Int64Operand(val), true
	case int64:
		return Int64Operand(val), true
	case int:
		return Int64Operand(val), true
	case float32:
		return Float64Operand(val), true
	case float64:
		return Float64Operand(val), true
	default:
		return nil, false
	}
}

// ParseOperand parses a numeric literal. Literals without a decimal point or exponent are integers.
func ParseOperand(literal string) (Operand, bool) {
	i, err := strconv.ParseInt(literal, 10, 64)
	if err == nil {
		return Int64Operand(i), true
	}

	f, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		return nil, false
	}

	return Float64Operand(f), true
}
