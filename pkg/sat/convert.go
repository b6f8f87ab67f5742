package sat

import (
	"fmt"

	circuit "github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"

	"github.com/l3aro/go-undead/pkg/logic"
)

// Converter brings a formula into conjunctive normal form.
type Converter interface {
	Convert(f logic.Formula) (CNF, error)
}

// CircuitConverter builds a gini circuit for the formula and emits its
// Tseitin encoding. The result is equisatisfiable with the input and grows
// linearly with the formula size.
type CircuitConverter struct{}

// NewCircuitConverter returns the default converter.
func NewCircuitConverter() *CircuitConverter {
	return &CircuitConverter{}
}

// clauseCollector implements gini's inter.Adder.
type clauseCollector struct {
	clauses [][]z.Lit
	current []z.Lit
}

func (c *clauseCollector) Add(m z.Lit) {
	if m == z.LitNull {
		c.clauses = append(c.clauses, c.current)
		c.current = nil
		return
	}
	c.current = append(c.current, m)
}

// Convert implements Converter.
func (cc *CircuitConverter) Convert(f logic.Formula) (CNF, error) {
	if f == nil {
		return CNF{}, fmt.Errorf("%w: nil formula", ErrConversion)
	}
	f = logic.Simplify(f)
	if c, ok := f.(logic.Const); ok {
		return constCNF(bool(c)), nil
	}

	c := circuit.NewC()
	inputs := make(map[string]z.Lit)
	names := make(map[z.Var]string)

	var build func(f logic.Formula) (z.Lit, error)
	build = func(f logic.Formula) (z.Lit, error) {
		switch n := f.(type) {
		case logic.Var:
			if m, ok := inputs[n.Name]; ok {
				return m, nil
			}
			m := c.Lit()
			inputs[n.Name] = m
			names[m.Var()] = n.Name
			return m, nil
		case logic.Not:
			m, err := build(n.Operand)
			if err != nil {
				return z.LitNull, err
			}
			return m.Not(), nil
		case logic.And:
			l, err := build(n.Left)
			if err != nil {
				return z.LitNull, err
			}
			r, err := build(n.Right)
			if err != nil {
				return z.LitNull, err
			}
			return c.And(l, r), nil
		case logic.Or:
			l, err := build(n.Left)
			if err != nil {
				return z.LitNull, err
			}
			r, err := build(n.Right)
			if err != nil {
				return z.LitNull, err
			}
			return c.Or(l, r), nil
		default:
			return z.LitNull, fmt.Errorf("%w: unsupported node %T", ErrConversion, f)
		}
	}

	root, err := build(f)
	if err != nil {
		return CNF{}, err
	}

	collector := &clauseCollector{}
	c.ToCnf(collector)
	// The circuit may fold gates to its constant literal; pin it to true.
	collector.Add(c.T)
	collector.Add(z.LitNull)
	collector.Add(root)
	collector.Add(z.LitNull)

	out := CNF{Clauses: make([][]Literal, 0, len(collector.clauses))}
	for _, cl := range collector.clauses {
		lits := make([]Literal, len(cl))
		for i, m := range cl {
			name, ok := names[m.Var()]
			if !ok {
				name = fmt.Sprintf("%s%d", AuxPrefix, m.Var())
			}
			lits[i] = Literal{Name: name, Negated: !m.IsPos()}
		}
		out.Clauses = append(out.Clauses, lits)
	}
	return out, nil
}

func constCNF(value bool) CNF {
	if value {
		return CNF{}
	}
	return CNF{Clauses: [][]Literal{{}}}
}

// DefaultMaxClauses bounds the output of DistributiveConverter.
const DefaultMaxClauses = 4096

// DistributiveConverter converts by pushing negations to the leaves and
// distributing disjunctions over conjunctions. The result is equivalent to
// the input and introduces no auxiliary variables, but can grow
// exponentially; conversion fails once MaxClauses is exceeded.
type DistributiveConverter struct {
	MaxClauses int
}

// Convert implements Converter.
func (dc *DistributiveConverter) Convert(f logic.Formula) (CNF, error) {
	if f == nil {
		return CNF{}, fmt.Errorf("%w: nil formula", ErrConversion)
	}
	limit := dc.MaxClauses
	if limit <= 0 {
		limit = DefaultMaxClauses
	}
	f = logic.Simplify(f)
	if c, ok := f.(logic.Const); ok {
		return constCNF(bool(c)), nil
	}
	clauses, err := distribute(f, false, limit)
	if err != nil {
		return CNF{}, err
	}
	return CNF{Clauses: clauses}, nil
}

// distribute returns the clauses of f (or of !f when negated).
func distribute(f logic.Formula, negated bool, limit int) ([][]Literal, error) {
	switch n := f.(type) {
	case logic.Var:
		return [][]Literal{{{Name: n.Name, Negated: negated}}}, nil
	case logic.Const:
		if bool(n) != negated {
			return nil, nil
		}
		return [][]Literal{{}}, nil
	case logic.Not:
		return distribute(n.Operand, !negated, limit)
	case logic.And, logic.Or:
		var l, r logic.Formula
		conj := false
		if a, ok := n.(logic.And); ok {
			l, r, conj = a.Left, a.Right, true
		} else {
			o := n.(logic.Or)
			l, r = o.Left, o.Right
		}
		if negated {
			conj = !conj
		}
		left, err := distribute(l, negated, limit)
		if err != nil {
			return nil, err
		}
		right, err := distribute(r, negated, limit)
		if err != nil {
			return nil, err
		}
		if conj {
			out := append(append([][]Literal(nil), left...), right...)
			if len(out) > limit {
				return nil, fmt.Errorf("%w: more than %d clauses", ErrConversion, limit)
			}
			return out, nil
		}
		if len(left)*len(right) > limit {
			return nil, fmt.Errorf("%w: more than %d clauses", ErrConversion, limit)
		}
		out := make([][]Literal, 0, len(left)*len(right))
		for _, a := range left {
			for _, b := range right {
				cl := make([]Literal, 0, len(a)+len(b))
				cl = append(cl, a...)
				cl = append(cl, b...)
				out = append(out, cl)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported node %T", ErrConversion, f)
	}
}
