package solver

import (
	"fmt"
	"math"
)

// Sense is the relation of a linear constraint.
type Sense int

const (
	LessEq Sense = iota
	GreaterEq
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEq:
		return "<="
	case GreaterEq:
		return ">="
	default:
		return "=="
	}
}

// Inf is the bound used for unbounded variables.
var Inf = math.Inf(1)

// Term is a coefficient applied to a variable index.
type Term struct {
	Var  int
	Coef float64
}

// T is shorthand for Term{v, c}.
func T(v int, c float64) Term { return Term{Var: v, Coef: c} }

// Variable is a bounded decision variable with a linear cost.
type Variable struct {
	Name    string
	Lower   float64
	Upper   float64
	Cost    float64
	Integer bool
}

// Constraint is sum(terms) <sense> RHS.
type Constraint struct {
	Name  string
	Sense Sense
	RHS   float64
	Terms []Term
}

// Problem is a minimisation LP or MILP. A fresh Problem is built for every
// solve; it carries no solver state.
type Problem struct {
	Name   string
	Vars   []Variable
	Cons   []Constraint
	Offset float64
}

// NewProblem returns an empty problem.
func NewProblem(name string) *Problem {
	return &Problem{Name: name}
}

// AddVar appends a continuous variable and returns its index.
func (p *Problem) AddVar(name string, lower, upper, cost float64) int {
	p.Vars = append(p.Vars, Variable{Name: name, Lower: lower, Upper: upper, Cost: cost})
	return len(p.Vars) - 1
}

// AddBinary appends a 0/1 variable.
func (p *Problem) AddBinary(name string, cost float64) int {
	p.Vars = append(p.Vars, Variable{Name: name, Lower: 0, Upper: 1, Cost: cost, Integer: true})
	return len(p.Vars) - 1
}

// AddCost adds c to the objective coefficient of v.
func (p *Problem) AddCost(v int, c float64) { p.Vars[v].Cost += c }

// AddConstraint appends a linear constraint.
func (p *Problem) AddConstraint(name string, sense Sense, rhs float64, terms ...Term) {
	p.Cons = append(p.Cons, Constraint{Name: name, Sense: sense, RHS: rhs, Terms: terms})
}

// HasIntegers reports whether branch and bound is required.
func (p *Problem) HasIntegers() bool {
	for _, v := range p.Vars {
		if v.Integer {
			return true
		}
	}
	return false
}

// Validate rejects malformed models before they reach a backend.
func (p *Problem) Validate() error {
	for i, v := range p.Vars {
		if math.IsNaN(v.Lower) || math.IsNaN(v.Upper) || math.IsNaN(v.Cost) || math.IsInf(v.Cost, 0) {
			return fmt.Errorf("%s: variable %s has NaN or infinite data", p.Name, v.Name)
		}
		if v.Lower > v.Upper {
			return fmt.Errorf("%s: variable %d (%s) has lower %g > upper %g", p.Name, i, v.Name, v.Lower, v.Upper)
		}
	}
	for _, c := range p.Cons {
		if math.IsNaN(c.RHS) || math.IsInf(c.RHS, 0) {
			return fmt.Errorf("%s: constraint %s has invalid rhs %g", p.Name, c.Name, c.RHS)
		}
		for _, t := range c.Terms {
			if t.Var < 0 || t.Var >= len(p.Vars) {
				return fmt.Errorf("%s: constraint %s references variable %d", p.Name, c.Name, t.Var)
			}
			if math.IsNaN(t.Coef) || math.IsInf(t.Coef, 0) {
				return fmt.Errorf("%s: constraint %s has invalid coefficient", p.Name, c.Name)
			}
		}
	}
	return nil
}

// Evaluate returns the objective value of x.
func (p *Problem) Evaluate(x []float64) float64 {
	obj := p.Offset
	for i, v := range p.Vars {
		obj += v.Cost * x[i]
	}
	return obj
}

// Activity returns the left-hand side of constraint c at x.
func (c Constraint) Activity(x []float64) float64 {
	var s float64
	for _, t := range c.Terms {
		s += t.Coef * x[t.Var]
	}
	return s
}

// MaxViolation returns the largest bound, constraint or integrality
// violation of x, relative to max(1, |rhs|) for constraints.
func (p *Problem) MaxViolation(x []float64) float64 {
	return p.violation(x, true)
}

func (p *Problem) violation(x []float64, integral bool) float64 {
	var worst float64
	for i, v := range p.Vars {
		worst = math.Max(worst, v.Lower-x[i])
		worst = math.Max(worst, x[i]-v.Upper)
		if integral && v.Integer {
			worst = math.Max(worst, math.Abs(x[i]-math.Round(x[i])))
		}
	}
	for _, c := range p.Cons {
		diff := c.Activity(x) - c.RHS
		var viol float64
		switch c.Sense {
		case LessEq:
			viol = diff
		case GreaterEq:
			viol = -diff
		default:
			viol = math.Abs(diff)
		}
		worst = math.Max(worst, viol/math.Max(1, math.Abs(c.RHS)))
	}
	return worst
}

// withBounds returns a copy whose variable j has the given bounds. The
// constraint slice is shared since branching never alters it.
func (p *Problem) withBounds(j int, lower, upper float64) *Problem {
	q := *p
	q.Vars = append([]Variable(nil), p.Vars...)
	q.Vars[j].Lower = lower
	q.Vars[j].Upper = upper
	return &q
}
