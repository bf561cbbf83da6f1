// Package runtime implements the CFPL tree-walking evaluator.
package runtime

import (
	"sort"

	"github.com/lemonberrylabs/cfpl/pkg/types"
)

// binding is a stored variable together with the type it was declared with.
type binding struct {
	typ   types.DeclType
	value types.Value
}

// VariableScope is the program's variable store. CFPL has a single global
// scope: blocks do not introduce new bindings, so there is no parent chain.
type VariableScope struct {
	vars map[string]binding
}

// NewScope creates an empty store.
func NewScope() *VariableScope {
	return &VariableScope{
		vars: make(map[string]binding),
	}
}

// Define binds name to value under the declared type. Redefinition
// overwrites the previous binding.
func (s *VariableScope) Define(name string, typ types.DeclType, value types.Value) {
	s.vars[name] = binding{typ: typ, value: value}
}

// Get retrieves a variable value.
func (s *VariableScope) Get(name string) (types.Value, bool) {
	b, ok := s.vars[name]
	if !ok {
		return types.Null, false
	}
	return b.value, true
}

// Set replaces the value of an existing variable. Undefined names are
// ignored; callers resolve the declared type first.
func (s *VariableScope) Set(name string, value types.Value) {
	if b, ok := s.vars[name]; ok {
		b.value = value
		s.vars[name] = b
	}
}

// Type returns the declared type of a variable.
func (s *VariableScope) Type(name string) (types.DeclType, bool) {
	b, ok := s.vars[name]
	return b.typ, ok
}

// Names returns the defined variable names in sorted order.
func (s *VariableScope) Names() []string {
	names := make([]string, 0, len(s.vars))
	for name := range s.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
