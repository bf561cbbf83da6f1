package types

// DeclType is the static type a variable is bound to by its VAR declaration.
type DeclType int

const (
	DeclNone DeclType = iota
	DeclInt
	DeclFloat
	DeclBool
	DeclChar
)

// String returns the CFPL keyword for the declared type.
func (t DeclType) String() string {
	switch t {
	case DeclInt:
		return "INT"
	case DeclFloat:
		return "FLOAT"
	case DeclBool:
		return "BOOL"
	case DeclChar:
		return "CHAR"
	default:
		return "NONE"
	}
}

// Default returns the value a variable of this type holds when declared
// without an initialiser. Unknown types default to null.
func (t DeclType) Default() Value {
	switch t {
	case DeclInt:
		return NewInt(0)
	case DeclFloat:
		return NewFloat(0)
	case DeclBool:
		return NewBool(false)
	case DeclChar:
		return NewChar(0)
	default:
		return Null
	}
}

// Accepts reports whether a value of kind k may be stored under t without
// promotion.
func (t DeclType) Accepts(k Kind) bool {
	switch t {
	case DeclInt:
		return k == KindInt
	case DeclFloat:
		return k == KindFloat
	case DeclBool:
		return k == KindBool
	case DeclChar:
		return k == KindChar
	default:
		return false
	}
}

// Coerce applies int to float promotion for FLOAT targets and reports
// whether the result is storable under t.
func (t DeclType) Coerce(v Value) (Value, bool) {
	if t == DeclFloat {
		v = v.Promote()
	}
	return v, t.Accepts(v.Kind())
}
