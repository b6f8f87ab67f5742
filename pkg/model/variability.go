// Package model defines the artifacts the engine reasons about: the
// variability model, the build model, code-model source files with their
// conditional elements, change flags and dead-block results.
//
// All models are immutable once built. Components other than the store
// only ever hold read-only views.
package model

import (
	"fmt"
	"sort"

	"github.com/l3aro/go-undead/pkg/logic"
)

// VariableType is the domain of a variability-model variable.
type VariableType string

// Supported variable types. A tristate variable X is encoded with two
// boolean variables, X and X_MODULE.
const (
	TypeBool     VariableType = "bool"
	TypeTristate VariableType = "tristate"
)

// ModuleSuffix names the companion variable of a tristate variable.
const ModuleSuffix = "_MODULE"

// Variable is a configuration option of the product line.
type Variable struct {
	Name        string
	Type        VariableType
	Description string
	Location    string
}

// VariabilityModel is the set of configuration variables and the
// constraints between them.
type VariabilityModel struct {
	variables   []Variable
	constraints []logic.Formula
}

// NewVariabilityModel builds a model. Variables are kept sorted by name.
func NewVariabilityModel(vars []Variable, constraints []logic.Formula) (*VariabilityModel, error) {
	seen := make(map[string]struct{}, len(vars))
	vs := make([]Variable, 0, len(vars))
	for _, v := range vars {
		if !logic.IsIdentifier(v.Name) {
			return nil, fmt.Errorf("invalid variable name %q", v.Name)
		}
		if _, dup := seen[v.Name]; dup {
			return nil, fmt.Errorf("duplicate variable %q", v.Name)
		}
		seen[v.Name] = struct{}{}
		switch v.Type {
		case "":
			v.Type = TypeBool
		case TypeBool, TypeTristate:
		default:
			return nil, fmt.Errorf("variable %q: unsupported type %q", v.Name, v.Type)
		}
		vs = append(vs, v)
	}
	sort.Slice(vs, func(i, j int) bool { return vs[i].Name < vs[j].Name })

	cs := make([]logic.Formula, 0, len(constraints))
	for i, c := range constraints {
		if c == nil {
			return nil, fmt.Errorf("constraint %d is nil", i)
		}
		cs = append(cs, c)
	}
	return &VariabilityModel{variables: vs, constraints: cs}, nil
}

// Variables returns a copy of the variables, sorted by name.
func (m *VariabilityModel) Variables() []Variable {
	return append([]Variable(nil), m.variables...)
}

// Variable looks up a variable by name.
func (m *VariabilityModel) Variable(name string) (Variable, bool) {
	i := sort.Search(len(m.variables), func(i int) bool { return m.variables[i].Name >= name })
	if i < len(m.variables) && m.variables[i].Name == name {
		return m.variables[i], true
	}
	return Variable{}, false
}

// Constraints returns a copy of the constraints in declaration order.
func (m *VariabilityModel) Constraints() []logic.Formula {
	return append([]logic.Formula(nil), m.constraints...)
}

// Formula builds the global model formula: the conjunction of all
// constraints, !(X && X_MODULE) for every tristate variable X and
// !X_MODULE for every bool variable X, which can never be built as a module.
func (m *VariabilityModel) Formula() logic.Formula {
	parts := append([]logic.Formula(nil), m.constraints...)
	for _, v := range m.variables {
		module := logic.NewVar(v.Name + ModuleSuffix)
		switch v.Type {
		case TypeTristate:
			parts = append(parts, logic.NewNot(logic.NewAnd(logic.NewVar(v.Name), module)))
		case TypeBool:
			parts = append(parts, logic.NewNot(module))
		}
	}
	return logic.NewAnd(parts...)
}

// SemanticallyEqual compares variable names, types and constraints.
// Descriptions and source locations are ignored.
func (m *VariabilityModel) SemanticallyEqual(other *VariabilityModel) bool {
	if m == nil || other == nil {
		return m == other
	}
	if len(m.variables) != len(other.variables) || len(m.constraints) != len(other.constraints) {
		return false
	}
	for i := range m.variables {
		a, b := m.variables[i], other.variables[i]
		if a.Name != b.Name || a.Type != b.Type {
			return false
		}
	}
	for i := range m.constraints {
		if !logic.Equal(m.constraints[i], other.constraints[i]) {
			return false
		}
	}
	return true
}

// Equal is SemanticallyEqual plus identical descriptions and locations.
func (m *VariabilityModel) Equal(other *VariabilityModel) bool {
	if !m.SemanticallyEqual(other) {
		return false
	}
	if m == nil {
		return true
	}
	for i := range m.variables {
		if m.variables[i] != other.variables[i] {
			return false
		}
	}
	return true
}
