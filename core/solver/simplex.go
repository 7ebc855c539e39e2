package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// Backend solves a Problem. Implementations must not keep state between
// calls.
type Backend interface {
	Name() string
	Solve(ctx context.Context, p *Problem) (Solution, error)
}

type lpFunc func(c []float64, A mat.Matrix, b []float64, tol float64, initialBasic []int) (float64, []float64, error)

// simplexSolve is replaced in tests to inject backend failures.
var simplexSolve lpFunc = lp.Simplex

// denseSlots caps the dense solves running at once, including those whose
// caller already timed out: lp.Simplex cannot be interrupted, so a timed
// out solve keeps its slot until it returns.
var denseSlots = make(chan struct{}, 4)

// Solution methods of a SimplexBackend.
const (
	// MethodBounded is the bounded-variable revised simplex. Bounds stay
	// implicit and the deadline is checked between iterations.
	MethodBounded = "bounded"
	// MethodDense is gonum's lp.Simplex on the dense standard form.
	MethodDense = "dense"
)

// SimplexConfig parameterises a SimplexBackend.
type SimplexConfig struct {
	Name          string  `json:"name"`
	Method        string  `json:"method"`
	Tolerance     float64 `json:"tolerance"`
	FeasTol       float64 `json:"feasibility_tolerance"`
	InaccurateTol float64 `json:"inaccurate_tolerance"`
	TimeLimitMS   int     `json:"time_limit_ms"`
	MaxNodes      int     `json:"max_nodes"`
	Scale         bool    `json:"scale"`
}

// SetDefaults fills zero fields with the primary backend settings.
func (c *SimplexConfig) SetDefaults() {
	if c.Name == "" {
		c.Name = "simplex"
	}
	if c.Method == "" {
		c.Method = MethodBounded
	}
	if c.Tolerance <= 0 {
		c.Tolerance = 1e-9
	}
	if c.FeasTol <= 0 {
		c.FeasTol = 1e-6
	}
	if c.InaccurateTol < c.FeasTol {
		c.InaccurateTol = 1e-4
		if c.InaccurateTol < c.FeasTol {
			c.InaccurateTol = c.FeasTol
		}
	}
	if c.TimeLimitMS <= 0 {
		c.TimeLimitMS = 10000
	}
	if c.MaxNodes <= 0 {
		c.MaxNodes = 500
	}
}

// PrimaryConfig is the tight-tolerance backend tried first.
func PrimaryConfig() SimplexConfig {
	c := SimplexConfig{Name: "simplex"}
	c.SetDefaults()
	return c
}

// RelaxedConfig is the scaled, looser backend used as fallback. It runs
// the dense method so a failure of the primary is retried by a different
// algorithm.
func RelaxedConfig() SimplexConfig {
	c := SimplexConfig{
		Name:          "simplex-relaxed",
		Method:        MethodDense,
		Tolerance:     1e-6,
		FeasTol:       1e-4,
		InaccurateTol: 1e-3,
		TimeLimitMS:   5000,
		MaxNodes:      200,
		Scale:         true,
	}
	c.SetDefaults()
	return c
}

// SimplexBackend solves LPs with a simplex method and MILPs with a
// depth-first branch and bound on top of it.
type SimplexBackend struct {
	cfg SimplexConfig
}

// NewSimplexBackend returns a backend with defaults applied to cfg.
func NewSimplexBackend(cfg SimplexConfig) *SimplexBackend {
	cfg.SetDefaults()
	return &SimplexBackend{cfg: cfg}
}

func (s *SimplexBackend) Name() string { return s.cfg.Name }

// Config returns the effective configuration.
func (s *SimplexBackend) Config() SimplexConfig { return s.cfg }

// Solve runs the problem under the configured time limit.
func (s *SimplexBackend) Solve(ctx context.Context, p *Problem) (Solution, error) {
	start := time.Now()
	if err := p.Validate(); err != nil {
		return Solution{Status: StatusError, Backend: s.cfg.Name}, err
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.TimeLimitMS)*time.Millisecond)
	defer cancel()

	var (
		sol Solution
		err error
	)
	if p.HasIntegers() {
		sol, err = s.branchAndBound(ctx, p)
	} else {
		sol, err = s.relaxation(ctx, p)
	}
	sol.Backend = s.cfg.Name
	sol.Duration = time.Since(start)
	return sol, err
}

// relaxation solves p ignoring integrality and grades the returned point.
func (s *SimplexBackend) relaxation(ctx context.Context, p *Problem) (Solution, error) {
	var (
		x   []float64
		err error
	)
	if s.cfg.Method == MethodDense {
		x, err = s.dense(ctx, p)
	} else {
		x, err = s.bounded(ctx, p)
	}
	if err != nil {
		return Solution{Status: statusOf(err)}, err
	}
	viol := p.violation(x, false)
	switch {
	case viol <= s.cfg.FeasTol:
		return Solution{Status: StatusOptimal, X: x, Objective: p.Evaluate(x)}, nil
	case viol <= s.cfg.InaccurateTol:
		return Solution{Status: StatusOptimalInaccurate, X: x, Objective: p.Evaluate(x)}, nil
	default:
		return Solution{Status: StatusNumerical}, fmt.Errorf("%w: residual %.3g above %.3g", ErrNumerical, viol, s.cfg.InaccurateTol)
	}
}

// bounded solves p in the calling goroutine.
func (s *SimplexBackend) bounded(ctx context.Context, p *Problem) (x []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			x, err = nil, fmt.Errorf("%w: panic: %v", ErrNumerical, r)
		}
	}()
	x, err = solveBounded(ctx, p, s.cfg.Tolerance, s.cfg.FeasTol)
	return x, s.interrupted(err)
}

// dense solves p through the standard form and lp.Simplex.
func (s *SimplexBackend) dense(ctx context.Context, p *Problem) ([]float64, error) {
	f, err := toStandard(p)
	if err != nil {
		return nil, err
	}
	var y []float64
	if f.rows() > 0 {
		if s.cfg.Scale {
			f.equilibrate()
		}
		y, err = s.run(ctx, f)
		if err != nil {
			return nil, err
		}
	}
	return f.point(y), nil
}

// interrupted turns an expired deadline into ErrTimeLimit.
func (s *SimplexBackend) interrupted(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %dms", ErrTimeLimit, s.cfg.TimeLimitMS)
	}
	return err
}

type lpResult struct {
	x   []float64
	err error
}

// run calls the simplex routine in its own goroutine so the deadline can
// be honoured. The routine itself cannot be interrupted; a timed out
// goroutine finishes in the background holding a slot of denseSlots, and
// its result is discarded.
func (s *SimplexBackend) run(ctx context.Context, f *stdForm) ([]float64, error) {
	select {
	case denseSlots <- struct{}{}:
	case <-ctx.Done():
		return nil, s.interrupted(ctx.Err())
	}
	done := make(chan lpResult, 1)
	call := simplexSolve
	go func() {
		defer func() { <-denseSlots }()
		defer func() {
			if r := recover(); r != nil {
				done <- lpResult{err: fmt.Errorf("%w: panic: %v", ErrNumerical, r)}
			}
		}()
		x, err := s.solveStandard(call, f)
		done <- lpResult{x: x, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, s.interrupted(ctx.Err())
	case r := <-done:
		return r.x, r.err
	}
}

// solveStandard lets gonum find its own starting basis first. Its phase I
// can report degenerate or rank deficient problems as infeasible or
// singular, so those failures are retried from an artificial basis with a
// penalty objective before being trusted.
func (s *SimplexBackend) solveStandard(call lpFunc, f *stdForm) ([]float64, error) {
	_, x, err := call(f.c, f.A, f.b, s.cfg.Tolerance, nil)
	if err == nil || errors.Is(err, lp.ErrUnbounded) {
		return x, mapLPError(err)
	}
	c, A, b, basis, penalty := f.artificial()
	tol := math.Max(s.cfg.Tolerance, 1e-13*penalty)
	_, xa, errA := call(c, A, b, tol, basis)
	if errA != nil {
		return nil, mapLPError(err)
	}
	_, n := f.A.Dims()
	for i, v := range xa[n:] {
		if v > s.cfg.FeasTol*math.Max(1, b[i]) {
			return nil, fmt.Errorf("%w: artificial row %d at %.3g", ErrInfeasible, i, v)
		}
	}
	return xa[:n], nil
}

func mapLPError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, lp.ErrInfeasible):
		return fmt.Errorf("%w: %v", ErrInfeasible, err)
	case errors.Is(err, lp.ErrUnbounded):
		return fmt.Errorf("%w: %v", ErrUnbounded, err)
	default:
		return fmt.Errorf("%w: %v", ErrNumerical, err)
	}
}
