package solver

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// storageLP is a single store over steps with a price spread, shaped like
// the dispatch models: charge, discharge and energy per step chained by
// equality rows.
func storageLP(steps int) *Problem {
	p := NewProblem("storage")
	prev := -1
	for t := 0; t < steps; t++ {
		price := 10.0
		if t >= steps/2 {
			price = 90
		}
		ch := p.AddVar(fmt.Sprintf("ch[%d]", t), 0, 2, price+1)
		dis := p.AddVar(fmt.Sprintf("dis[%d]", t), 0, 2, -price+1)
		e := p.AddVar(fmt.Sprintf("e[%d]", t), 1, 9, 0)
		terms := []Term{T(e, 1), T(ch, -0.95), T(dis, 1/0.95)}
		rhs := 5.0
		if prev >= 0 {
			terms = append(terms, T(prev, -1))
			rhs = 0
		}
		p.AddConstraint(fmt.Sprintf("soc[%d]", t), Equal, rhs, terms...)
		prev = e
	}
	return p
}

func TestBounded_MatchesDense(t *testing.T) {
	for name, build := range map[string]func() *Problem{
		"box":     boxLP,
		"storage": func() *Problem { return storageLP(8) },
	} {
		t.Run(name, func(t *testing.T) {
			want, err := solve(t, denseConfig(), build())
			require.NoError(t, err)
			got, err := solve(t, PrimaryConfig(), build())
			require.NoError(t, err)
			assert.Equal(t, StatusOptimal, got.Status)
			assert.InDelta(t, want.Objective, got.Objective, 1e-6)
			assert.LessOrEqual(t, build().MaxViolation(got.X), 1e-6)
		})
	}
}

func TestBounded_ManyPivotsRefactorize(t *testing.T) {
	const n = 300
	p := NewProblem("chain")
	for i := 0; i < n; i++ {
		p.AddVar(fmt.Sprintf("x%d", i), 0, 1, -1)
	}
	for i := 0; i+1 < n; i++ {
		p.AddConstraint(fmt.Sprintf("pair%d", i), LessEq, 1, T(i, 1), T(i+1, 1))
	}
	sol, err := solve(t, PrimaryConfig(), p)
	require.NoError(t, err)
	assert.InDelta(t, -n/2, sol.Objective, 1e-6)
	assert.LessOrEqual(t, p.MaxViolation(sol.X), 1e-6)
}

func TestBounded_ExpiredDeadline(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	sol, err := NewSimplexBackend(PrimaryConfig()).Solve(ctx, storageLP(4))
	assert.ErrorIs(t, err, ErrTimeLimit)
	assert.Equal(t, StatusTimeLimit, sol.Status)
}

func TestBounded_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sol, err := NewSimplexBackend(PrimaryConfig()).Solve(ctx, storageLP(4))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusError, sol.Status)
}

func TestSimplex_DenseSlotsCapStaleSolves(t *testing.T) {
	require.Eventually(t, func() bool { return len(denseSlots) == 0 }, 2*time.Second, 10*time.Millisecond)

	release := make(chan struct{})
	var entered atomic.Int32
	stubSimplex(t, func(c []float64, _ mat.Matrix, _ []float64, _ float64, _ []int) (float64, []float64, error) {
		entered.Add(1)
		<-release
		return 0, make([]float64, len(c)), nil
	})
	cfg := denseConfig()
	cfg.TimeLimitMS = 20
	for i := 0; i < cap(denseSlots)+2; i++ {
		sol, err := solve(t, cfg, boxLP())
		assert.ErrorIs(t, err, ErrTimeLimit)
		assert.Equal(t, StatusTimeLimit, sol.Status)
	}
	assert.Eventually(t, func() bool { return entered.Load() == int32(cap(denseSlots)) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, cap(denseSlots), len(denseSlots))

	close(release)
	assert.Eventually(t, func() bool { return len(denseSlots) == 0 }, 2*time.Second, 10*time.Millisecond)
}
