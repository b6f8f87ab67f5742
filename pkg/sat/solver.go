package sat

import (
	"fmt"
	"time"

	"github.com/go-air/gini"
	"github.com/go-air/gini/z"
)

// Solver decides satisfiability of a CNF in conjunction with the
// variability-model CNF it was created for. A Solver is not safe for
// concurrent use.
type Solver interface {
	IsSatisfiable(cnf CNF) (bool, error)
}

// SolverFactory creates independent solvers, one per concurrent user.
type SolverFactory interface {
	NewSolver() (Solver, error)
}

// GiniFactory creates gini-backed solvers preloaded with the model CNF.
type GiniFactory struct {
	model   CNF
	timeout time.Duration
}

// NewGiniFactory returns a factory for solvers constrained by model.
// A positive timeout bounds every single query.
func NewGiniFactory(model CNF, timeout time.Duration) *GiniFactory {
	return &GiniFactory{model: model, timeout: timeout}
}

// NewSolver implements SolverFactory.
func (f *GiniFactory) NewSolver() (Solver, error) {
	s := &GiniSolver{
		g:       gini.New(),
		vars:    make(map[string]z.Var),
		timeout: f.timeout,
	}
	if f.model.HasEmptyClause() {
		s.modelUnsat = true
		return s, nil
	}
	aux := make(map[string]z.Var)
	for _, cl := range f.model.Clauses {
		for _, l := range cl {
			s.g.Add(s.lit(l, aux))
		}
		s.g.Add(z.LitNull)
	}
	return s, nil
}

// GiniSolver answers queries incrementally. The model clauses are loaded
// once; each query's clauses are guarded by a fresh activation literal that
// is assumed for the query and permanently disabled afterwards.
type GiniSolver struct {
	g          *gini.Gini
	vars       map[string]z.Var
	maxVar     z.Var
	timeout    time.Duration
	modelUnsat bool
	queries    int
}

func (s *GiniSolver) fresh() z.Var {
	s.maxVar++
	return s.maxVar
}

// lit maps a literal to a solver literal. Model variables are shared across
// queries; auxiliary variables are scoped to the given map.
func (s *GiniSolver) lit(l Literal, aux map[string]z.Var) z.Lit {
	scope := s.vars
	if l.IsAux() {
		scope = aux
	}
	v, ok := scope[l.Name]
	if !ok {
		v = s.fresh()
		scope[l.Name] = v
	}
	if l.Negated {
		return v.Neg()
	}
	return v.Pos()
}

// Queries returns the number of queries passed to the underlying solver.
func (s *GiniSolver) Queries() int {
	return s.queries
}

// IsSatisfiable implements Solver.
func (s *GiniSolver) IsSatisfiable(cnf CNF) (bool, error) {
	if s.modelUnsat || cnf.HasEmptyClause() {
		return false, nil
	}
	s.queries++

	act := s.fresh().Pos()
	aux := make(map[string]z.Var)
	for _, cl := range cnf.Clauses {
		for _, l := range cl {
			s.g.Add(s.lit(l, aux))
		}
		s.g.Add(act.Not())
		s.g.Add(z.LitNull)
	}

	s.g.Assume(act)
	var res int
	if s.timeout > 0 {
		res = s.g.Try(s.timeout)
	} else {
		res = s.g.Solve()
	}

	// Retire the query's clauses.
	s.g.Add(act.Not())
	s.g.Add(z.LitNull)

	switch res {
	case 1:
		return true, nil
	case -1:
		return false, nil
	default:
		return false, fmt.Errorf("%w: no result within %s", ErrSolver, s.timeout)
	}
}
