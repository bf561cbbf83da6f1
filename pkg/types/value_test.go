package types

import (
	"math"
	"strings"
	"testing"
)

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{10, "10.0"},
		{2.5, "2.5"},
		{-0.125, "-0.125"},
		{0, "0.0"},
		{math.Copysign(0, -1), "-0.0"},
		{0.001, "0.001"},
		{0.0001, "1.0E-4"},
		{1234567, "1234567.0"},
		{1e7, "1.0E7"},
		{1.5e10, "1.5E10"},
		{-2.5e-5, "-2.5E-5"},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
		{math.NaN(), "NaN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatFloat(tt.in); got != tt.want {
				t.Errorf("FormatFloat(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Null, "null"},
		{NewInt(-42), "-42"},
		{NewFloat(3), "3.0"},
		{NewBool(true), "TRUE"},
		{NewBool(false), "FALSE"},
		{NewChar('z'), "z"},
		{NewString("a b"), "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.v.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValueEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"null equals null", Null, Null, true},
		{"int and float widen", NewInt(2), NewFloat(2), true},
		{"int and float differ", NewInt(2), NewFloat(2.5), false},
		{"char and string differ", NewChar('a'), NewString("a"), false},
		{"null and int", Null, NewInt(0), false},
		{"strings", NewString("x"), NewString("x"), true},
		{"bools", NewBool(true), NewBool(false), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeclTypeCoerce(t *testing.T) {
	tests := []struct {
		name   string
		typ    DeclType
		in     Value
		want   Value
		wantOK bool
	}{
		{"int to float", DeclFloat, NewInt(3), NewFloat(3), true},
		{"float stays float", DeclFloat, NewFloat(1.5), NewFloat(1.5), true},
		{"float to int rejected", DeclInt, NewFloat(1.5), NewFloat(1.5), false},
		{"char", DeclChar, NewChar('c'), NewChar('c'), true},
		{"string to char rejected", DeclChar, NewString("c"), NewString("c"), false},
		{"bool", DeclBool, NewBool(true), NewBool(true), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.typ.Coerce(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got.Kind() != tt.want.Kind() || !got.Equal(tt.want) {
				t.Errorf("got %v (%s), want %v (%s)", got, got.Kind(), tt.want, tt.want.Kind())
			}
		})
	}
}

func TestDeclTypeDefault(t *testing.T) {
	if v := DeclFloat.Default(); v.Kind() != KindFloat || v.String() != "0.0" {
		t.Errorf("FLOAT default = %v", v)
	}
	if v := DeclBool.Default(); v.Kind() != KindBool || v.AsBool() {
		t.Errorf("BOOL default = %v", v)
	}
	if v := DeclChar.Default(); v.Kind() != KindChar || v.AsChar() != 0 {
		t.Errorf("CHAR default = %v", v)
	}
	if v := DeclInt.Default(); v.Kind() != KindInt || v.AsInt() != 0 {
		t.Errorf("INT default = %v", v)
	}
}

func TestErrorDiagnostic(t *testing.T) {
	src := "VAR c AS CHAR\nSTART\n\tc = 5\nSTOP\n"
	err := NewParseError(Pos{Line: 3, Column: 2}, "IDENT", "c", "Expected 'CHAR' type.").WithSource(src)

	want := strings.Join([]string{
		"Expected 'CHAR' type.",
		"[line: 3, column: 2] on IDENT 'c'.",
		"\tc = 5",
		"\t^",
	}, "\n")
	if got := err.Error(); got != want {
		t.Errorf("got\n%s\nwant\n%s", got, want)
	}
	if err.Label() != "[Parser-Error]" {
		t.Errorf("label = %q", err.Label())
	}
}

func TestErrorWithoutSource(t *testing.T) {
	err := NewRuntimeError(Pos{Line: 9, Column: 1}, "SLASH", "/", "Division by zero.")
	if got, want := err.Error(), "Division by zero.\n[line: 9, column: 1] on SLASH '/'."; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSourceLine(t *testing.T) {
	src := "one\r\ntwo\nthree"
	tests := []struct {
		line int
		want string
	}{
		{0, ""},
		{1, "one"},
		{2, "two"},
		{3, "three"},
		{4, ""},
	}
	for _, tt := range tests {
		if got := SourceLine(src, tt.line); got != tt.want {
			t.Errorf("SourceLine(%d) = %q, want %q", tt.line, got, tt.want)
		}
	}
}
