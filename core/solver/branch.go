package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
)

const intTol = 1e-6

// branchAndBound explores the relaxation tree depth first, branching on the
// most fractional integer variable. When the node or time budget runs out
// the incumbent, if any, is returned as OptimalInaccurate.
func (s *SimplexBackend) branchAndBound(ctx context.Context, p *Problem) (Solution, error) {
	var (
		best    []float64
		bestObj = math.Inf(1)
		inexact bool
		nodes   int
		stopped error
		stack   = []*Problem{p}
	)
	for len(stack) > 0 {
		if ctx.Err() != nil {
			stopped = fmt.Errorf("%w after %d nodes", ErrTimeLimit, nodes)
			break
		}
		if nodes >= s.cfg.MaxNodes {
			stopped = fmt.Errorf("branch and bound: node limit %d reached", s.cfg.MaxNodes)
			break
		}
		q := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes++

		sol, err := s.relaxation(ctx, q)
		if errors.Is(err, ErrTimeLimit) {
			stopped = err
			break
		}
		if errors.Is(err, ErrInfeasible) {
			continue
		}
		if err != nil {
			if nodes == 1 || best == nil {
				return Solution{Status: statusOf(err), Nodes: nodes}, err
			}
			// A numerical failure below the root only loses that subtree.
			inexact = true
			continue
		}
		if sol.Objective >= bestObj-1e-9*math.Max(1, math.Abs(bestObj)) {
			continue
		}
		j := mostFractional(q, sol.X)
		if j < 0 {
			best, bestObj = sol.X, sol.Objective
			inexact = inexact || sol.Status == StatusOptimalInaccurate
			continue
		}
		v := sol.X[j]
		down := q.withBounds(j, q.Vars[j].Lower, math.Floor(v))
		up := q.withBounds(j, math.Ceil(v), q.Vars[j].Upper)
		// The branch nearer the relaxed value is explored first.
		if v-math.Floor(v) < 0.5 {
			stack = append(stack, up, down)
		} else {
			stack = append(stack, down, up)
		}
	}

	if best == nil {
		switch {
		case errors.Is(stopped, ErrTimeLimit):
			return Solution{Status: StatusTimeLimit, Nodes: nodes}, stopped
		case stopped != nil:
			return Solution{Status: StatusNodeLimit, Nodes: nodes}, stopped
		default:
			return Solution{Status: StatusInfeasible, Nodes: nodes}, fmt.Errorf("%w: no integer point", ErrInfeasible)
		}
	}
	x := append([]float64(nil), best...)
	for i, v := range p.Vars {
		if v.Integer {
			x[i] = math.Round(x[i])
		}
	}
	status := StatusOptimal
	if inexact || stopped != nil {
		status = StatusOptimalInaccurate
	}
	return Solution{Status: status, X: x, Objective: p.Evaluate(x), Nodes: nodes}, nil
}

// mostFractional returns the integer variable farthest from integrality or
// -1 when x is integral within intTol.
func mostFractional(p *Problem, x []float64) int {
	idx, worst := -1, intTol
	for i, v := range p.Vars {
		if !v.Integer {
			continue
		}
		if f := math.Abs(x[i] - math.Round(x[i])); f > worst {
			idx, worst = i, f
		}
	}
	return idx
}
