// Package types defines the runtime values and declared type tags of CFPL.
// It implements the CFPL value model: int, float, bool, char, string and null.
package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind represents the runtime kind of a CFPL value.
type Kind int

const (
	KindNull   Kind = iota
	KindInt         // int32
	KindFloat       // float64
	KindBool        // bool
	KindChar        // rune
	KindString      // string
)

// String returns the kind name used in diagnostics.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindInt:
		return "INT"
	case KindFloat:
		return "FLOAT"
	case KindBool:
		return "BOOL"
	case KindChar:
		return "CHAR"
	case KindString:
		return "STRING"
	default:
		return "UNKNOWN"
	}
}

// Value represents a CFPL runtime value. It uses a tagged union approach.
type Value struct {
	kind      Kind
	intVal    int32
	floatVal  float64
	boolVal   bool
	charVal   rune
	stringVal string
}

// Null is the singleton null value.
var Null = Value{kind: KindNull}

// NewInt creates an integer value (32-bit).
func NewInt(v int32) Value {
	return Value{kind: KindInt, intVal: v}
}

// NewFloat creates a float value (64-bit).
func NewFloat(v float64) Value {
	return Value{kind: KindFloat, floatVal: v}
}

// NewBool creates a boolean value.
func NewBool(v bool) Value {
	return Value{kind: KindBool, boolVal: v}
}

// NewChar creates a character value.
func NewChar(v rune) Value {
	return Value{kind: KindChar, charVal: v}
}

// NewString creates a string value.
func NewString(v string) Value {
	return Value{kind: KindString, stringVal: v}
}

// Kind returns the value's kind.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNumber reports whether the value is an int or a float.
func (v Value) IsNumber() bool {
	return v.kind == KindInt || v.kind == KindFloat
}

// AsInt returns the integer value. Panics if not an int.
func (v Value) AsInt() int32 {
	if v.kind != KindInt {
		panic(fmt.Sprintf("AsInt called on %s value", v.kind))
	}
	return v.intVal
}

// AsFloat returns the float value. Panics if not a float.
func (v Value) AsFloat() float64 {
	if v.kind != KindFloat {
		panic(fmt.Sprintf("AsFloat called on %s value", v.kind))
	}
	return v.floatVal
}

// AsBool returns the boolean value. Panics if not a bool.
func (v Value) AsBool() bool {
	if v.kind != KindBool {
		panic(fmt.Sprintf("AsBool called on %s value", v.kind))
	}
	return v.boolVal
}

// AsChar returns the character value. Panics if not a char.
func (v Value) AsChar() rune {
	if v.kind != KindChar {
		panic(fmt.Sprintf("AsChar called on %s value", v.kind))
	}
	return v.charVal
}

// AsString returns the string value. Panics if not a string.
func (v Value) AsString() string {
	if v.kind != KindString {
		panic(fmt.Sprintf("AsString called on %s value", v.kind))
	}
	return v.stringVal
}

// AsNumber returns the numeric value as float64. Works for int and float kinds.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.intVal), true
	case KindFloat:
		return v.floatVal, true
	default:
		return 0, false
	}
}

// Promote returns the float equivalent of an int value. Other kinds are
// returned unchanged.
func (v Value) Promote() Value {
	if v.kind == KindInt {
		return NewFloat(float64(v.intVal))
	}
	return v
}

// Equal tests structural equality. Ints and floats compare by numeric value
// after widening; null equals only null.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		if v.IsNumber() && other.IsNumber() {
			a, _ := v.AsNumber()
			b, _ := other.AsNumber()
			return a == b
		}
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindInt:
		return v.intVal == other.intVal
	case KindFloat:
		return v.floatVal == other.floatVal
	case KindBool:
		return v.boolVal == other.boolVal
	case KindChar:
		return v.charVal == other.charVal
	case KindString:
		return v.stringVal == other.stringVal
	}
	return false
}

// String returns the printed form of the value, as written by OUTPUT and
// used by the & operator.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindInt:
		return strconv.FormatInt(int64(v.intVal), 10)
	case KindFloat:
		return FormatFloat(v.floatVal)
	case KindBool:
		if v.boolVal {
			return "TRUE"
		}
		return "FALSE"
	case KindChar:
		return string(v.charVal)
	case KindString:
		return v.stringVal
	}
	return "<unknown>"
}

// FormatFloat renders a float the way CFPL prints it: integral values keep
// a ".0" suffix and magnitudes outside [1e-3, 1e7) use "1.5E10" notation.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}

	abs := math.Abs(f)
	if abs >= 1e-3 && abs < 1e7 {
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}

	// strconv gives "1.5E+10"; CFPL prints "1.5E10".
	s := strconv.FormatFloat(f, 'E', -1, 64)
	mant, exp, _ := strings.Cut(s, "E")
	if !strings.Contains(mant, ".") {
		mant += ".0"
	}
	exp = strings.TrimPrefix(exp, "+")
	neg := strings.HasPrefix(exp, "-")
	exp = strings.TrimLeft(strings.TrimPrefix(exp, "-"), "0")
	if exp == "" {
		exp = "0"
	}
	if neg {
		exp = "-" + exp
	}
	return mant + "E" + exp
}
