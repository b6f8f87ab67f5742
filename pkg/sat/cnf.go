// Package sat converts presence conditions to conjunctive normal form and
// decides their satisfiability against the variability model.
//
// Converter and SolverFactory are interfaces so that other normal-form
// converters and solvers can be plugged in. The default implementations
// are backed by github.com/go-air/gini.
package sat

import (
	"errors"
	"strings"
)

var (
	// ErrConversion is returned when a formula cannot be brought into CNF.
	ErrConversion = errors.New("cnf conversion failed")
	// ErrSolver is returned when the solver cannot decide a query.
	ErrSolver = errors.New("sat solver failed")
)

// AuxPrefix starts the names of auxiliary variables introduced during
// conversion. It is not a valid identifier character, so auxiliary names
// never collide with model variables. Auxiliary variables are local to the
// CNF that introduced them.
const AuxPrefix = "$t"

// Literal is a possibly negated variable.
type Literal struct {
	Name    string
	Negated bool
}

// IsAux reports whether the literal refers to an auxiliary variable.
func (l Literal) IsAux() bool {
	return strings.HasPrefix(l.Name, AuxPrefix)
}

func (l Literal) String() string {
	if l.Negated {
		return "!" + l.Name
	}
	return l.Name
}

// CNF is a conjunction of clauses, each a disjunction of literals.
// A CNF without clauses is true; an empty clause is false.
type CNF struct {
	Clauses [][]Literal
}

// HasEmptyClause reports whether the CNF is trivially unsatisfiable.
func (c CNF) HasEmptyClause() bool {
	for _, cl := range c.Clauses {
		if len(cl) == 0 {
			return true
		}
	}
	return false
}

// Append adds all clauses of other.
func (c *CNF) Append(other CNF) {
	c.Clauses = append(c.Clauses, other.Clauses...)
}

// String renders one clause per line.
func (c CNF) String() string {
	var sb strings.Builder
	for i, cl := range c.Clauses {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteByte('(')
		for j, l := range cl {
			if j > 0 {
				sb.WriteString(" || ")
			}
			sb.WriteString(l.String())
		}
		sb.WriteByte(')')
	}
	return sb.String()
}
