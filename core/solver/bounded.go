package solver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Column states of the bounded simplex.
const (
	atLower int8 = iota
	atUpper
	atZero
	inBasis
)

const (
	// refactorEvery bounds the product form updates applied to the basis
	// inverse before it is rebuilt.
	refactorEvery = 100
	// degenerateRun is the number of consecutive zero steps after which
	// pricing switches to Bland's rule until progress resumes.
	degenerateRun = 50
	pivotTol      = 1e-9
)

type rowEntry struct {
	row int
	v   float64
}

// boundedLP is min c'x s.t. Ax = b, lo <= x <= up in computational form.
// Columns are laid out as n structural columns, then one logical column
// per row, then one artificial column per row. Rows are scaled to unit
// max-norm, which leaves x unchanged.
type boundedLP struct {
	m, n  int
	cols  [][]rowEntry
	lsign []float64
	asign []float64
	lo    []float64
	up    []float64
	b     []float64
	cost  []float64

	x     []float64
	state []int8
	head  []int
	binv  *mat.Dense
	y     []float64
	alpha []float64

	updates int
	iters   int
	limit   int
	feasTol float64
}

// solveBounded runs a two phase bounded-variable primal simplex on p
// without converting bounds into rows. ctx is checked before every
// iteration, so an expired deadline stops the solve in the caller's
// goroutine.
func solveBounded(ctx context.Context, p *Problem, tol, feasTol float64) ([]float64, error) {
	lp, fixed, err := newBoundedLP(p, feasTol)
	if err != nil {
		return nil, err
	}
	if lp.m > 0 {
		phase1 := make([]float64, len(lp.x))
		for i := 0; i < lp.m; i++ {
			phase1[lp.artificial(i)] = 1
		}
		if err := lp.optimize(ctx, phase1, math.Max(tol, 1e-11)); err != nil {
			return nil, err
		}
		for i := 0; i < lp.m; i++ {
			a := lp.artificial(i)
			if lp.x[a] > feasTol*math.Max(1, math.Abs(lp.b[i])) {
				return nil, fmt.Errorf("%w: row %d (%s) short by %.3g", ErrInfeasible, i, p.Cons[i].Name, lp.x[a])
			}
			lp.up[a] = 0
			if lp.state[a] != inBasis {
				lp.x[a], lp.state[a] = 0, atLower
			}
		}
	}
	cmax := floats.Norm(lp.cost, math.Inf(1))
	if err := lp.optimize(ctx, lp.cost, tol*math.Max(1, cmax)); err != nil {
		return nil, err
	}
	x := make([]float64, lp.n)
	for j := range x {
		if v, ok := fixed[j]; ok {
			x[j] = v
			continue
		}
		x[j] = math.Max(p.Vars[j].Lower, math.Min(p.Vars[j].Upper, lp.x[j]))
	}
	return x, nil
}

// newBoundedLP builds the computational form and an initial basis of
// logical and artificial columns. Variables no constraint touches are
// returned in fixed with their cost-minimising value.
func newBoundedLP(p *Problem, feasTol float64) (*boundedLP, map[int]float64, error) {
	n, m := len(p.Vars), len(p.Cons)
	lp := &boundedLP{
		m:       m,
		n:       n,
		cols:    make([][]rowEntry, n),
		lsign:   make([]float64, m),
		asign:   make([]float64, m),
		b:       make([]float64, m),
		feasTol: feasTol,
	}
	total := n + 2*m
	lp.lo = make([]float64, total)
	lp.up = make([]float64, total)
	lp.cost = make([]float64, total)
	lp.x = make([]float64, total)
	lp.state = make([]int8, total)
	lp.head = make([]int, m)
	lp.y = make([]float64, m)
	lp.alpha = make([]float64, m)
	lp.limit = 50*(m+n) + 1000

	rows := make([]map[int]float64, m)
	for i, c := range p.Cons {
		agg := make(map[int]float64, len(c.Terms))
		for _, t := range c.Terms {
			agg[t.Var] += t.Coef
		}
		scale := 0.0
		for _, v := range agg {
			scale = math.Max(scale, math.Abs(v))
		}
		if scale == 0 {
			if !emptyRowHolds(c.Sense, c.RHS) {
				return nil, nil, fmt.Errorf("%w: empty row %s cannot hold", ErrInfeasible, c.Name)
			}
			scale = 1
		}
		for j, v := range agg {
			if v != 0 {
				agg[j] = v / scale
			}
		}
		rows[i] = agg
		lp.b[i] = c.RHS / scale
	}
	// Column order within a row is irrelevant; iterating rows in order keeps
	// each column's entries sorted by row.
	for i, agg := range rows {
		for j, v := range agg {
			if v != 0 {
				lp.cols[j] = append(lp.cols[j], rowEntry{row: i, v: v})
			}
		}
	}

	fixed := make(map[int]float64)
	for j, v := range p.Vars {
		lowFin, upFin := !math.IsInf(v.Lower, -1), !math.IsInf(v.Upper, 1)
		if len(lp.cols[j]) == 0 {
			val, err := resolveFree(v, lowFin, upFin)
			if err != nil {
				return nil, nil, err
			}
			fixed[j] = val
			lp.lo[j], lp.up[j], lp.x[j] = val, val, val
			continue
		}
		lp.lo[j], lp.up[j], lp.cost[j] = v.Lower, v.Upper, v.Cost
		switch {
		case lowFin && upFin:
			if math.Abs(v.Upper) < math.Abs(v.Lower) {
				lp.x[j], lp.state[j] = v.Upper, atUpper
			} else {
				lp.x[j], lp.state[j] = v.Lower, atLower
			}
		case lowFin:
			lp.x[j], lp.state[j] = v.Lower, atLower
		case upFin:
			lp.x[j], lp.state[j] = v.Upper, atUpper
		default:
			lp.x[j], lp.state[j] = 0, atZero
		}
	}
	if m == 0 {
		return lp, fixed, nil
	}

	resid := append([]float64(nil), lp.b...)
	for j := 0; j < n; j++ {
		if xj := lp.x[j]; xj != 0 {
			for _, e := range lp.cols[j] {
				resid[e.row] -= e.v * xj
			}
		}
	}
	lp.binv = mat.NewDense(m, m, nil)
	for i, c := range p.Cons {
		l, a := lp.logical(i), lp.artificial(i)
		lp.lsign[i] = 1
		lp.up[l] = math.Inf(1)
		switch c.Sense {
		case GreaterEq:
			lp.lsign[i] = -1
		case Equal:
			lp.up[l] = 0
		}
		lp.up[a] = math.Inf(1)
		lp.asign[i] = 1
		if resid[i] < 0 {
			lp.asign[i] = -1
		}
		r := resid[i] * lp.lsign[i]
		if c.Sense != Equal && r >= 0 {
			lp.head[i] = l
			lp.x[l], lp.state[l] = r, inBasis
			lp.state[a] = atLower
			lp.binv.Set(i, i, lp.lsign[i])
			continue
		}
		lp.head[i] = a
		lp.x[a], lp.state[a] = math.Abs(resid[i]), inBasis
		lp.state[l] = atLower
		lp.binv.Set(i, i, lp.asign[i])
	}
	return lp, fixed, nil
}

func (lp *boundedLP) logical(i int) int    { return lp.n + i }
func (lp *boundedLP) artificial(i int) int { return lp.n + lp.m + i }

// dot returns y'a_j.
func (lp *boundedLP) dot(j int, y []float64) float64 {
	switch {
	case j < lp.n:
		var s float64
		for _, e := range lp.cols[j] {
			s += e.v * y[e.row]
		}
		return s
	case j < lp.n+lp.m:
		return lp.lsign[j-lp.n] * y[j-lp.n]
	default:
		i := j - lp.n - lp.m
		return lp.asign[i] * y[i]
	}
}

// ftran sets alpha to B^-1 a_j.
func (lp *boundedLP) ftran(j int) {
	for k := range lp.alpha {
		row := lp.binv.RawRowView(k)
		switch {
		case j < lp.n:
			var s float64
			for _, e := range lp.cols[j] {
				s += row[e.row] * e.v
			}
			lp.alpha[k] = s
		case j < lp.n+lp.m:
			lp.alpha[k] = row[j-lp.n] * lp.lsign[j-lp.n]
		default:
			i := j - lp.n - lp.m
			lp.alpha[k] = row[i] * lp.asign[i]
		}
	}
}

// duals sets y' = c_B' B^-1.
func (lp *boundedLP) duals(cost []float64) {
	for k := range lp.y {
		lp.y[k] = 0
	}
	for i, j := range lp.head {
		if c := cost[j]; c != 0 {
			floats.AddScaled(lp.y, c, lp.binv.RawRowView(i))
		}
	}
}

// price picks the entering column and its direction, or -1 at optimality.
// Dantzig's rule is used unless bland is set.
func (lp *boundedLP) price(cost []float64, dTol float64, bland bool) (int, float64) {
	q, dir, best := -1, 0.0, 0.0
	for j, st := range lp.state {
		if st == inBasis || lp.lo[j] == lp.up[j] {
			continue
		}
		d := cost[j] - lp.dot(j, lp.y)
		var gain, dj float64
		switch st {
		case atLower:
			if d < -dTol {
				gain, dj = -d, 1
			}
		case atUpper:
			if d > dTol {
				gain, dj = d, -1
			}
		case atZero:
			if math.Abs(d) > dTol {
				gain, dj = math.Abs(d), -math.Copysign(1, d)
			}
		}
		if gain == 0 {
			continue
		}
		if bland {
			return j, dj
		}
		if gain > best {
			q, dir, best = j, dj, gain
		}
	}
	return q, dir
}

// ratio runs a two pass Harris ratio test for column q moving in dir. It
// returns the leaving row, or -1 when q reaches its opposite bound first.
func (lp *boundedLP) ratio(q int, dir float64, bland bool) (int, float64, error) {
	flip := math.Inf(1)
	if !math.IsInf(lp.lo[q], -1) && !math.IsInf(lp.up[q], 1) {
		flip = lp.up[q] - lp.lo[q]
	}
	relaxed := math.Inf(1)
	for i, a := range lp.alpha {
		if t, ok := lp.step(i, -dir*a, lp.feasTol); ok {
			relaxed = math.Min(relaxed, t)
		}
	}
	if math.IsInf(relaxed, 1) && math.IsInf(flip, 1) {
		return -1, 0, fmt.Errorf("%w: column %d improves without limit", ErrUnbounded, q)
	}
	if flip <= relaxed {
		return -1, flip, nil
	}
	leave, theta, best := -1, 0.0, 0.0
	for i, a := range lp.alpha {
		r := -dir * a
		t, ok := lp.step(i, r, 0)
		if !ok || t > relaxed {
			continue
		}
		switch {
		case bland:
			if leave < 0 || lp.head[i] < lp.head[leave] {
				leave, theta = i, t
			}
		case math.Abs(r) > best:
			leave, theta, best = i, t, math.Abs(r)
		}
	}
	if leave < 0 {
		return -1, 0, fmt.Errorf("%w: ratio test found no pivot", ErrNumerical)
	}
	return leave, math.Max(theta, 0), nil
}

// step is the move at which basic row i, changing at rate r, reaches a
// bound widened by slack.
func (lp *boundedLP) step(i int, r, slack float64) (float64, bool) {
	j := lp.head[i]
	switch {
	case r < -pivotTol && !math.IsInf(lp.lo[j], -1):
		return (lp.x[j] - lp.lo[j] + slack) / -r, true
	case r > pivotTol && !math.IsInf(lp.up[j], 1):
		return (lp.up[j] - lp.x[j] + slack) / r, true
	}
	return 0, false
}

// optimize iterates until no column prices out under cost.
func (lp *boundedLP) optimize(ctx context.Context, cost []float64, dTol float64) error {
	degenerate := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lp.iters >= lp.limit {
			return fmt.Errorf("%w: iteration limit %d reached", ErrNumerical, lp.limit)
		}
		if lp.m == 0 {
			return lp.bounds(cost)
		}
		lp.duals(cost)
		bland := degenerate > degenerateRun
		q, dir := lp.price(cost, dTol, bland)
		if q < 0 {
			return nil
		}
		lp.iters++
		lp.ftran(q)
		leave, theta, err := lp.ratio(q, dir, bland)
		if err != nil {
			return err
		}
		lp.x[q] += dir * theta
		for i, a := range lp.alpha {
			if a != 0 {
				lp.x[lp.head[i]] -= dir * theta * a
			}
		}
		if leave < 0 {
			if dir > 0 {
				lp.x[q], lp.state[q] = lp.up[q], atUpper
			} else {
				lp.x[q], lp.state[q] = lp.lo[q], atLower
			}
		} else if err := lp.pivot(leave, q, dir); err != nil {
			return err
		}
		if theta <= 1e-12 {
			degenerate++
		} else {
			degenerate = 0
		}
	}
}

// bounds solves a problem without rows: every column sits at its cheaper
// bound.
func (lp *boundedLP) bounds(cost []float64) error {
	for j := range lp.state {
		v := Variable{Lower: lp.lo[j], Upper: lp.up[j], Cost: cost[j]}
		val, err := resolveFree(v, !math.IsInf(v.Lower, -1), !math.IsInf(v.Upper, 1))
		if err != nil {
			return err
		}
		lp.x[j] = val
	}
	return nil
}

// pivot replaces the basic column of row r by q and updates B^-1 in
// product form.
func (lp *boundedLP) pivot(r, q int, dir float64) error {
	out := lp.head[r]
	if -dir*lp.alpha[r] < 0 {
		lp.x[out], lp.state[out] = lp.lo[out], atLower
	} else {
		lp.x[out], lp.state[out] = lp.up[out], atUpper
	}
	lp.head[r] = q
	lp.state[q] = inBasis

	pr := lp.binv.RawRowView(r)
	floats.Scale(1/lp.alpha[r], pr)
	for i, a := range lp.alpha {
		if i != r && a != 0 {
			floats.AddScaled(lp.binv.RawRowView(i), -a, pr)
		}
	}
	lp.updates++
	if lp.updates >= refactorEvery {
		return lp.refactor()
	}
	return nil
}

// refactor rebuilds B^-1 from the basis columns and recomputes the basic
// values from the nonbasic ones.
func (lp *boundedLP) refactor() error {
	B := mat.NewDense(lp.m, lp.m, nil)
	for k, j := range lp.head {
		switch {
		case j < lp.n:
			for _, e := range lp.cols[j] {
				B.Set(e.row, k, e.v)
			}
		case j < lp.n+lp.m:
			B.Set(j-lp.n, k, lp.lsign[j-lp.n])
		default:
			i := j - lp.n - lp.m
			B.Set(i, k, lp.asign[i])
		}
	}
	err := lp.binv.Inverse(B)
	var cond mat.Condition
	if err != nil && (!errors.As(err, &cond) || math.IsInf(float64(cond), 1)) {
		return fmt.Errorf("%w: basis refactorization: %v", ErrNumerical, err)
	}
	lp.updates = 0

	rhs := append([]float64(nil), lp.b...)
	for j, st := range lp.state {
		if st == inBasis || lp.x[j] == 0 {
			continue
		}
		xj := lp.x[j]
		switch {
		case j < lp.n:
			for _, e := range lp.cols[j] {
				rhs[e.row] -= e.v * xj
			}
		case j < lp.n+lp.m:
			rhs[j-lp.n] -= lp.lsign[j-lp.n] * xj
		default:
			i := j - lp.n - lp.m
			rhs[i] -= lp.asign[i] * xj
		}
	}
	for k, j := range lp.head {
		lp.x[j] = floats.Dot(lp.binv.RawRowView(k), rhs)
	}
	return nil
}
