package solver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kilianp07/hess/core/factory"
)

func solve(t *testing.T, cfg SimplexConfig, p *Problem) (Solution, error) {
	t.Helper()
	return NewSimplexBackend(cfg).Solve(context.Background(), p)
}

func denseConfig() SimplexConfig {
	c := PrimaryConfig()
	c.Method = MethodDense
	return c
}

func boxLP() *Problem {
	p := NewProblem("box")
	x := p.AddVar("x", 0, 3, -2)
	y := p.AddVar("y", 0, 2, -1)
	p.AddConstraint("cap", LessEq, 4, T(x, 1), T(y, 1))
	return p
}

func TestSimplex_BoundedLP(t *testing.T) {
	sol, err := solve(t, PrimaryConfig(), boxLP())
	require.NoError(t, err)
	assert.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, 3, sol.X[0], 1e-7)
	assert.InDelta(t, 1, sol.X[1], 1e-7)
	assert.InDelta(t, -7, sol.Objective, 1e-7)
	assert.Equal(t, "simplex", sol.Backend)
}

func TestSimplex_FreeVariableAndEquality(t *testing.T) {
	p := NewProblem("free")
	x := p.AddVar("x", -Inf, Inf, 0)
	y := p.AddVar("y", 0, Inf, 1)
	p.AddConstraint("fix", Equal, -2.5, T(x, 1))
	p.AddConstraint("above", GreaterEq, 0, T(y, 1), T(x, -1))

	sol, err := solve(t, PrimaryConfig(), p)
	require.NoError(t, err)
	assert.InDelta(t, -2.5, sol.X[x], 1e-7)
	assert.InDelta(t, 0, sol.X[y], 1e-7)
}

func TestSimplex_UpperBoundedOnly(t *testing.T) {
	p := NewProblem("reflect")
	x := p.AddVar("x", -Inf, 5, -1)
	y := p.AddVar("y", 0, 10, 0)
	p.AddConstraint("sum", Equal, 7, T(x, 1), T(y, 1))

	sol, err := solve(t, PrimaryConfig(), p)
	require.NoError(t, err)
	assert.InDelta(t, 5, sol.X[x], 1e-7)
	assert.InDelta(t, 2, sol.X[y], 1e-7)
}

func TestSimplex_UnconstrainedVariablesResolvedFromCost(t *testing.T) {
	p := NewProblem("loose")
	a := p.AddVar("a", -1, 4, 2)
	b := p.AddVar("b", -1, 4, -2)
	c := p.AddVar("c", -1, 4, 0)
	p.Offset = 1

	sol, err := solve(t, PrimaryConfig(), p)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 4, 0}, []float64{sol.X[a], sol.X[b], sol.X[c]})
	assert.InDelta(t, 1-2-8, sol.Objective, 1e-12)
}

func TestSimplex_Infeasible(t *testing.T) {
	p := NewProblem("infeasible")
	x := p.AddVar("x", 0, 1, 1)
	z := p.AddVar("z", 0, 0.5, 0)
	p.AddConstraint("need", GreaterEq, 2, T(x, 1), T(z, 1))

	sol, err := solve(t, PrimaryConfig(), p)
	assert.ErrorIs(t, err, ErrInfeasible)
	assert.Equal(t, StatusInfeasible, sol.Status)
	assert.False(t, sol.Status.Usable())
}

func TestSimplex_EmptyRowInfeasible(t *testing.T) {
	p := NewProblem("fixed")
	x := p.AddVar("x", 1, 1, 0)
	p.AddConstraint("need", GreaterEq, 2, T(x, 1))

	sol, err := solve(t, PrimaryConfig(), p)
	assert.ErrorIs(t, err, ErrInfeasible)
	assert.Equal(t, StatusInfeasible, sol.Status)
}

func TestSimplex_Unbounded(t *testing.T) {
	p := NewProblem("unbounded")
	x := p.AddVar("x", 0, Inf, -1)
	y := p.AddVar("y", 0, Inf, 0)
	p.AddConstraint("gap", LessEq, 1, T(x, 1), T(y, -1))

	sol, err := solve(t, PrimaryConfig(), p)
	assert.ErrorIs(t, err, ErrUnbounded)
	assert.Equal(t, StatusUnbounded, sol.Status)

	q := NewProblem("loose")
	q.AddVar("x", 0, Inf, -1)
	_, err = solve(t, PrimaryConfig(), q)
	assert.ErrorIs(t, err, ErrUnbounded)
}

func TestSimplex_ScaledMatchesUnscaled(t *testing.T) {
	build := func() *Problem {
		p := NewProblem("scaled")
		x := p.AddVar("x", 0, 3000, -2)
		y := p.AddVar("y", 0, 2, -1)
		p.AddConstraint("mix", LessEq, 4, T(x, 0.001), T(y, 1))
		return p
	}
	plain, err := solve(t, PrimaryConfig(), build())
	require.NoError(t, err)
	scaled, err := solve(t, RelaxedConfig(), build())
	require.NoError(t, err)
	assert.InDelta(t, 3000, scaled.X[0], 1e-3)
	assert.InDelta(t, 1, scaled.X[1], 1e-4)
	assert.InDelta(t, plain.Objective, scaled.Objective, 1e-3)
}

func TestSimplex_InvalidProblem(t *testing.T) {
	p := NewProblem("bad")
	p.AddVar("x", 0, 1, 1)
	p.AddConstraint("ref", LessEq, 1, T(3, 1))
	sol, err := solve(t, PrimaryConfig(), p)
	assert.Error(t, err)
	assert.Equal(t, StatusError, sol.Status)
}

func knapsack() *Problem {
	p := NewProblem("knapsack")
	a := p.AddBinary("a", -4)
	b := p.AddBinary("b", -5)
	c := p.AddBinary("c", -3)
	p.AddConstraint("weight", LessEq, 6, T(a, 3), T(b, 4), T(c, 2))
	return p
}

func TestBranchAndBound_Knapsack(t *testing.T) {
	sol, err := solve(t, PrimaryConfig(), knapsack())
	require.NoError(t, err)
	assert.Equal(t, StatusOptimal, sol.Status)
	assert.Equal(t, []float64{0, 1, 1}, sol.X)
	assert.InDelta(t, -8, sol.Objective, 1e-9)
	assert.Greater(t, sol.Nodes, 1)
}

func TestBranchAndBound_NodeLimitWithoutIncumbent(t *testing.T) {
	cfg := PrimaryConfig()
	cfg.MaxNodes = 1
	sol, err := solve(t, cfg, knapsack())
	assert.Error(t, err)
	assert.Equal(t, StatusNodeLimit, sol.Status)
}

func TestBranchAndBound_Infeasible(t *testing.T) {
	p := NewProblem("parity")
	u := p.AddBinary("u", 1)
	p.AddConstraint("half", Equal, 0.5, T(u, 1))
	sol, err := solve(t, PrimaryConfig(), p)
	assert.ErrorIs(t, err, ErrInfeasible)
	assert.Equal(t, StatusInfeasible, sol.Status)
}

func stubSimplex(t *testing.T, f func(c []float64, A mat.Matrix, b []float64, tol float64, basis []int) (float64, []float64, error)) {
	t.Helper()
	orig := simplexSolve
	simplexSolve = f
	t.Cleanup(func() { simplexSolve = orig })
}

func TestSimplex_ResidualCheckRejectsBadPoint(t *testing.T) {
	stubSimplex(t, func(c []float64, _ mat.Matrix, _ []float64, _ float64, _ []int) (float64, []float64, error) {
		return 0, make([]float64, len(c)), nil
	})
	p := NewProblem("residual")
	x := p.AddVar("x", 0, 10, 1)
	p.AddConstraint("need", GreaterEq, 2, T(x, 1))
	sol, err := solve(t, denseConfig(), p)
	assert.ErrorIs(t, err, ErrNumerical)
	assert.Equal(t, StatusNumerical, sol.Status)
}

func TestSimplex_ResidualWithinInaccurateBand(t *testing.T) {
	stubSimplex(t, func(c []float64, _ mat.Matrix, _ []float64, _ float64, _ []int) (float64, []float64, error) {
		y := make([]float64, len(c))
		y[0] = 2 - 1e-5
		return 0, y, nil
	})
	p := NewProblem("inaccurate")
	x := p.AddVar("x", 0, Inf, 1)
	z := p.AddVar("z", 0, Inf, 1)
	p.AddConstraint("need", GreaterEq, 2, T(x, 1), T(z, 1))
	sol, err := solve(t, denseConfig(), p)
	require.NoError(t, err)
	assert.Equal(t, StatusOptimalInaccurate, sol.Status)
}

func TestSimplex_TimeLimit(t *testing.T) {
	stubSimplex(t, func(c []float64, _ mat.Matrix, _ []float64, _ float64, _ []int) (float64, []float64, error) {
		time.Sleep(200 * time.Millisecond)
		return 0, make([]float64, len(c)), nil
	})
	cfg := denseConfig()
	cfg.TimeLimitMS = 10
	sol, err := solve(t, cfg, boxLP())
	assert.ErrorIs(t, err, ErrTimeLimit)
	assert.Equal(t, StatusTimeLimit, sol.Status)
}

func TestSimplex_PanicRecovered(t *testing.T) {
	stubSimplex(t, func([]float64, mat.Matrix, []float64, float64, []int) (float64, []float64, error) {
		panic("boom")
	})
	sol, err := solve(t, denseConfig(), boxLP())
	assert.ErrorIs(t, err, ErrNumerical)
	assert.Equal(t, StatusNumerical, sol.Status)
}

func TestSimplex_SingularRetriedFromArtificialBasis(t *testing.T) {
	orig := simplexSolve
	calls := 0
	stubSimplex(t, func(c []float64, A mat.Matrix, b []float64, tol float64, basis []int) (float64, []float64, error) {
		calls++
		if basis == nil {
			return 0, nil, errors.New("lp: A is singular")
		}
		return orig(c, A, b, tol, basis)
	})
	sol, err := solve(t, denseConfig(), boxLP())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.InDelta(t, -7, sol.Objective, 1e-6)
}

func TestNewBackends(t *testing.T) {
	bs, err := NewBackends(nil)
	require.NoError(t, err)
	require.Len(t, bs, 2)
	assert.Equal(t, "simplex", bs[0].Name())
	assert.Equal(t, "simplex-relaxed", bs[1].Name())
	assert.Equal(t, MethodBounded, bs[0].(*SimplexBackend).Config().Method)
	assert.Equal(t, MethodDense, bs[1].(*SimplexBackend).Config().Method)

	bs, err = NewBackends([]factory.ModuleConfig{
		{Type: "simplex_relaxed", Conf: map[string]any{"tolerance": "1e-7", "time_limit_ms": 250}},
	})
	require.NoError(t, err)
	cfg := bs[0].(*SimplexBackend).Config()
	assert.Equal(t, 1e-7, cfg.Tolerance)
	assert.Equal(t, 250, cfg.TimeLimitMS)
	assert.True(t, cfg.Scale)

	_, err = NewBackends([]factory.ModuleConfig{{Type: "cplex"}})
	assert.Error(t, err)

	_, err = NewBackends([]factory.ModuleConfig{{Type: "simplex", Conf: map[string]any{"method": "interior"}}})
	assert.Error(t, err)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusOptimal, statusOf(nil))
	assert.Equal(t, StatusInfeasible, statusOf(mapLPError(lp.ErrInfeasible)))
	assert.Equal(t, StatusNumerical, statusOf(mapLPError(errors.New("lp: A is singular"))))
	assert.Equal(t, StatusError, statusOf(context.Canceled))
	assert.Equal(t, "optimal_inaccurate", StatusOptimalInaccurate.String())
}
