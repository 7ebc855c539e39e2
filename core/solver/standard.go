package solver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// varMode tells how a model variable maps onto nonnegative columns.
type varMode int

const (
	modeFixed   varMode = iota // x = base, no column
	modeShift                  // x = base + y, base is the lower bound
	modeReflect                // x = base - y, base is the upper bound
	modeFree                   // x = y+ - y-
)

const fixTol = 1e-12

type entry struct {
	col int
	v   float64
}

// stdForm is min c'y s.t. Ay = b, y >= 0 together with the map back to
// the model variables.
type stdForm struct {
	c        []float64
	A        *mat.Dense
	b        []float64
	mode     []varMode
	base     []float64
	col      []int
	neg      []int
	colScale []float64
}

func (f *stdForm) rows() int { return len(f.b) }

// toStandard converts p. Variables that appear in no constraint are set to
// their cost-minimising bound, fixed variables are substituted, and rows
// left without coefficients are checked and dropped, so the resulting
// matrix has no zero rows or columns.
func toStandard(p *Problem) (*stdForm, error) {
	n0 := len(p.Vars)
	agg := make([]map[int]float64, len(p.Cons))
	occurs := make([]bool, n0)
	for i, c := range p.Cons {
		m := make(map[int]float64, len(c.Terms))
		for _, t := range c.Terms {
			m[t.Var] += t.Coef
		}
		for j, v := range m {
			if v != 0 {
				occurs[j] = true
			}
		}
		agg[i] = m
	}

	f := &stdForm{
		mode: make([]varMode, n0),
		base: make([]float64, n0),
		col:  make([]int, n0),
		neg:  make([]int, n0),
	}
	ncols := 0
	var bounded []int
	for j, v := range p.Vars {
		f.col[j], f.neg[j] = -1, -1
		lowFin := !math.IsInf(v.Lower, -1)
		upFin := !math.IsInf(v.Upper, 1)
		switch {
		case v.Lower > v.Upper:
			return nil, fmt.Errorf("%w: %s bounds crossed", ErrInfeasible, v.Name)
		case lowFin && upFin && v.Upper-v.Lower <= fixTol*math.Max(1, math.Abs(v.Lower)):
			f.mode[j], f.base[j] = modeFixed, v.Lower
		case !occurs[j]:
			val, err := resolveFree(v, lowFin, upFin)
			if err != nil {
				return nil, err
			}
			f.mode[j], f.base[j] = modeFixed, val
		case lowFin:
			f.mode[j], f.base[j], f.col[j] = modeShift, v.Lower, ncols
			ncols++
			if upFin {
				bounded = append(bounded, j)
			}
		case upFin:
			f.mode[j], f.base[j], f.col[j] = modeReflect, v.Upper, ncols
			ncols++
		default:
			f.mode[j], f.col[j], f.neg[j] = modeFree, ncols, ncols+1
			ncols += 2
		}
	}

	var (
		rowEntries [][]entry
		rhs        []float64
		slackSign  []float64
	)
	for i, c := range p.Cons {
		r := c.RHS
		for _, t := range c.Terms {
			switch f.mode[t.Var] {
			case modeFixed, modeShift, modeReflect:
				r -= t.Coef * f.base[t.Var]
			}
		}
		var row []entry
		for j := 0; j < n0; j++ {
			a, ok := agg[i][j]
			if !ok || a == 0 {
				continue
			}
			switch f.mode[j] {
			case modeShift:
				row = append(row, entry{f.col[j], a})
			case modeReflect:
				row = append(row, entry{f.col[j], -a})
			case modeFree:
				row = append(row, entry{f.col[j], a}, entry{f.neg[j], -a})
			}
		}
		if len(row) == 0 {
			if !emptyRowHolds(c.Sense, r) {
				return nil, fmt.Errorf("%w: constraint %s cannot hold", ErrInfeasible, c.Name)
			}
			continue
		}
		sign := 0.0
		switch c.Sense {
		case LessEq:
			sign = 1
		case GreaterEq:
			sign = -1
		}
		rowEntries = append(rowEntries, row)
		rhs = append(rhs, r)
		slackSign = append(slackSign, sign)
	}
	for _, j := range bounded {
		v := p.Vars[j]
		rowEntries = append(rowEntries, []entry{{f.col[j], 1}})
		rhs = append(rhs, v.Upper-v.Lower)
		slackSign = append(slackSign, 1)
	}

	m := len(rowEntries)
	f.b = rhs
	f.c = make([]float64, 0, ncols+m)
	for j, v := range p.Vars {
		switch f.mode[j] {
		case modeShift:
			f.c = append(f.c, v.Cost)
		case modeReflect:
			f.c = append(f.c, -v.Cost)
		case modeFree:
			f.c = append(f.c, v.Cost, -v.Cost)
		}
	}
	if m == 0 {
		return f, nil
	}
	n := ncols
	for _, s := range slackSign {
		if s != 0 {
			n++
		}
	}
	if m > n {
		return nil, fmt.Errorf("%w: %d rows exceed %d columns", ErrNumerical, m, n)
	}
	f.A = mat.NewDense(m, n, nil)
	slack := ncols
	for i, row := range rowEntries {
		for _, e := range row {
			f.A.Set(i, e.col, f.A.At(i, e.col)+e.v)
		}
		if slackSign[i] != 0 {
			f.A.Set(i, slack, slackSign[i])
			f.c = append(f.c, 0)
			slack++
		}
	}
	return f, nil
}

// resolveFree picks the optimal value of a variable no constraint touches.
func resolveFree(v Variable, lowFin, upFin bool) (float64, error) {
	switch {
	case v.Cost > 0:
		if !lowFin {
			return 0, fmt.Errorf("%w: %s decreases without bound", ErrUnbounded, v.Name)
		}
		return v.Lower, nil
	case v.Cost < 0:
		if !upFin {
			return 0, fmt.Errorf("%w: %s increases without bound", ErrUnbounded, v.Name)
		}
		return v.Upper, nil
	default:
		return math.Max(v.Lower, math.Min(v.Upper, 0)), nil
	}
}

func emptyRowHolds(s Sense, rhs float64) bool {
	const tol = 1e-9
	switch s {
	case LessEq:
		return rhs >= -tol
	case GreaterEq:
		return rhs <= tol
	default:
		return math.Abs(rhs) <= tol
	}
}

// equilibrate scales rows then columns to unit max-norm.
func (f *stdForm) equilibrate() {
	m, n := f.A.Dims()
	for i := 0; i < m; i++ {
		row := f.A.RawRowView(i)
		if r := floats.Norm(row, math.Inf(1)); r > 0 {
			floats.Scale(1/r, row)
			f.b[i] /= r
		}
	}
	f.colScale = make([]float64, n)
	col := make([]float64, m)
	for j := 0; j < n; j++ {
		mat.Col(col, j, f.A)
		s := floats.Norm(col, math.Inf(1))
		if s == 0 {
			f.colScale[j] = 1
			continue
		}
		floats.Scale(1/s, col)
		f.A.SetCol(j, col)
		f.colScale[j] = 1 / s
		f.c[j] /= s
	}
}

// point maps a standard-form solution back onto the model variables.
func (f *stdForm) point(y []float64) []float64 {
	if f.colScale != nil {
		floats.Mul(y, f.colScale)
	}
	x := make([]float64, len(f.mode))
	for j, md := range f.mode {
		switch md {
		case modeFixed:
			x[j] = f.base[j]
		case modeShift:
			x[j] = f.base[j] + y[f.col[j]]
		case modeReflect:
			x[j] = f.base[j] - y[f.col[j]]
		case modeFree:
			x[j] = y[f.col[j]] - y[f.neg[j]]
		}
	}
	return x
}

// artificial returns the system with rows sign-adjusted to b >= 0 and one
// identity column per row appended at a penalty cost. The identity columns
// are a feasible starting basis.
func (f *stdForm) artificial() (c []float64, A *mat.Dense, b []float64, basis []int, penalty float64) {
	m, n := f.A.Dims()
	A = mat.NewDense(m, n+m, nil)
	A.Slice(0, m, 0, n).(*mat.Dense).Copy(f.A)
	b = append([]float64(nil), f.b...)
	basis = make([]int, m)
	for i := 0; i < m; i++ {
		if b[i] < 0 {
			b[i] = -b[i]
			floats.Scale(-1, A.RawRowView(i)[:n])
		}
		A.Set(i, n+i, 1)
		basis[i] = n + i
	}
	penalty = 1e3 * math.Max(1, floats.Norm(f.c, math.Inf(1)))
	c = make([]float64, n+m)
	copy(c, f.c)
	for i := n; i < n+m; i++ {
		c[i] = penalty
	}
	return c, A, b, basis, penalty
}
