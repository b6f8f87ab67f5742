// Package logic provides the boolean formula representation used for
// presence conditions, build conditions and variability constraints.
//
// Formulas are immutable trees. Their canonical textual form (String) is
// stable across parse/print round trips and serves as identity for caching
// and equality checks.
package logic

import (
	"sort"
	"strings"
)

// Operator precedence used when rendering formulas.
const (
	precOr = iota + 1
	precAnd
	precNot
	precAtom
)

// Formula is a node of a boolean expression tree.
type Formula interface {
	// String returns the canonical textual form of the formula.
	String() string

	precedence() int
	write(sb *strings.Builder)
}

// Var is a boolean variable reference.
type Var struct {
	Name string
}

// Not is a negation.
type Not struct {
	Operand Formula
}

// And is a binary conjunction.
type And struct {
	Left  Formula
	Right Formula
}

// Or is a binary disjunction.
type Or struct {
	Left  Formula
	Right Formula
}

// Const is a boolean constant.
type Const bool

// The two boolean constants.
const (
	True  Const = true
	False Const = false
)

// NewVar returns a variable reference.
func NewVar(name string) Formula {
	return Var{Name: name}
}

// NewNot returns the negation of f.
func NewNot(f Formula) Formula {
	return Not{Operand: f}
}

// NewAnd folds the given formulas into a left-associative conjunction.
// An empty argument list yields True.
func NewAnd(fs ...Formula) Formula {
	if len(fs) == 0 {
		return True
	}
	result := fs[0]
	for _, f := range fs[1:] {
		result = And{Left: result, Right: f}
	}
	return result
}

// NewOr folds the given formulas into a left-associative disjunction.
// An empty argument list yields False.
func NewOr(fs ...Formula) Formula {
	if len(fs) == 0 {
		return False
	}
	result := fs[0]
	for _, f := range fs[1:] {
		result = Or{Left: result, Right: f}
	}
	return result
}

func (v Var) String() string { return v.Name }
func (v Var) precedence() int { return precAtom }
func (v Var) write(sb *strings.Builder) { sb.WriteString(v.Name) }

func (n Not) String() string { return render(n) }
func (n Not) precedence() int { return precNot }
func (n Not) write(sb *strings.Builder) {
	sb.WriteByte('!')
	writeOperand(sb, n.Operand, precNot)
}

func (a And) String() string { return render(a) }
func (a And) precedence() int { return precAnd }
func (a And) write(sb *strings.Builder) {
	writeOperand(sb, a.Left, precAnd)
	sb.WriteString(" && ")
	writeOperand(sb, a.Right, precAnd)
}

func (o Or) String() string { return render(o) }
func (o Or) precedence() int { return precOr }
func (o Or) write(sb *strings.Builder) {
	writeOperand(sb, o.Left, precOr)
	sb.WriteString(" || ")
	writeOperand(sb, o.Right, precOr)
}

func (c Const) String() string {
	if c {
		return "true"
	}
	return "false"
}
func (c Const) precedence() int { return precAtom }
func (c Const) write(sb *strings.Builder) { sb.WriteString(c.String()) }

func render(f Formula) string {
	var sb strings.Builder
	f.write(&sb)
	return sb.String()
}

// writeOperand parenthesizes operands binding weaker than their parent.
func writeOperand(sb *strings.Builder, f Formula, parent int) {
	if f.precedence() < parent {
		sb.WriteByte('(')
		f.write(sb)
		sb.WriteByte(')')
		return
	}
	f.write(sb)
}

// Equal reports whether two formulas have the same canonical form.
// A nil formula only equals another nil formula.
func Equal(a, b Formula) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.String() == b.String()
}

// Walk visits f in pre-order. Returning false from fn stops descent into
// the children of the current node.
func Walk(f Formula, fn func(Formula) bool) {
	if f == nil || !fn(f) {
		return
	}
	switch n := f.(type) {
	case Not:
		Walk(n.Operand, fn)
	case And:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case Or:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	}
}

// Variables returns the sorted, distinct variable names occurring in f.
func Variables(f Formula) []string {
	seen := make(map[string]struct{})
	Walk(f, func(n Formula) bool {
		if v, ok := n.(Var); ok {
			seen[v.Name] = struct{}{}
		}
		return true
	})
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AnyVariable reports whether pred holds for some variable of f.
func AnyVariable(f Formula, pred func(name string) bool) bool {
	found := false
	Walk(f, func(n Formula) bool {
		if found {
			return false
		}
		if v, ok := n.(Var); ok && pred(v.Name) {
			found = true
		}
		return !found
	})
	return found
}

// Simplify folds constants and removes double negations.
func Simplify(f Formula) Formula {
	switch n := f.(type) {
	case Not:
		inner := Simplify(n.Operand)
		switch in := inner.(type) {
		case Const:
			return !in
		case Not:
			return in.Operand
		}
		return Not{Operand: inner}
	case And:
		l, r := Simplify(n.Left), Simplify(n.Right)
		if c, ok := l.(Const); ok {
			if !c {
				return False
			}
			return r
		}
		if c, ok := r.(Const); ok {
			if !c {
				return False
			}
			return l
		}
		return And{Left: l, Right: r}
	case Or:
		l, r := Simplify(n.Left), Simplify(n.Right)
		if c, ok := l.(Const); ok {
			if c {
				return True
			}
			return r
		}
		if c, ok := r.(Const); ok {
			if c {
				return True
			}
			return l
		}
		return Or{Left: l, Right: r}
	default:
		return f
	}
}
