package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/hess/core/logger"
	"github.com/kilianp07/hess/core/metrics"
)

// Fallback tries each backend in order and returns the first usable
// solution. It never panics and never returns an error: callers inspect the
// status and substitute their own safe defaults.
type Fallback struct {
	backends []Backend
	log      logger.Logger
	rec      metrics.SolveRecorder
	runID    string
}

// Option customises a Fallback.
type Option func(*Fallback)

// WithRecorder records every attempt.
func WithRecorder(r metrics.SolveRecorder) Option {
	return func(f *Fallback) {
		if r != nil {
			f.rec = r
		}
	}
}

// WithRunID tags recorded attempts.
func WithRunID(id string) Option {
	return func(f *Fallback) { f.runID = id }
}

// NewFallback returns a Fallback over backends. A nil or empty list uses
// DefaultBackends.
func NewFallback(backends []Backend, log logger.Logger, opts ...Option) *Fallback {
	if len(backends) == 0 {
		backends = DefaultBackends()
	}
	f := &Fallback{backends: backends, log: log, rec: metrics.NopSink{}}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Backends returns the configured backend order.
func (f *Fallback) Backends() []Backend { return f.backends }

// Solve runs p through the backends. The boolean reports whether the
// returned solution is usable.
func (f *Fallback) Solve(ctx context.Context, p *Problem) (Solution, bool) {
	if err := p.Validate(); err != nil {
		f.log.Errorf("solver: %v", err)
		return Solution{Status: StatusError}, false
	}
	last := Solution{Status: StatusUnknown}
	for i, b := range f.backends {
		sol, err := f.attempt(ctx, b, p)
		f.record(p, i+1, sol)
		if err == nil && sol.Status.Usable() {
			if i > 0 {
				f.log.Infof("solver: %s solved by fallback backend %s (%s)", p.Name, b.Name(), sol.Status)
			}
			return sol, true
		}
		f.log.Warnf("solver: %s backend %s failed with status %s: %v", p.Name, b.Name(), sol.Status, err)
		last = sol
		if ctx.Err() != nil {
			break
		}
	}
	f.log.Errorf("solver: %s unsolved after %d backends, last status %s", p.Name, len(f.backends), last.Status)
	return Solution{Status: last.Status, Backend: last.Backend, Duration: last.Duration}, false
}

func (f *Fallback) attempt(ctx context.Context, b Backend, p *Problem) (sol Solution, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			sol = Solution{Status: StatusError, Backend: b.Name(), Duration: time.Since(start)}
			err = fmt.Errorf("backend %s panicked: %v", b.Name(), r)
		}
	}()
	sol, err = b.Solve(ctx, p)
	if sol.Backend == "" {
		sol.Backend = b.Name()
	}
	if err != nil && sol.Status.Usable() {
		sol.Status = statusOf(err)
	}
	if err == nil && sol.Status == StatusUnknown {
		err = fmt.Errorf("backend %s returned no status", b.Name())
	}
	return sol, err
}

func (f *Fallback) record(p *Problem, attempt int, sol Solution) {
	ev := metrics.SolveEvent{
		RunID:     f.runID,
		Problem:   p.Name,
		Backend:   sol.Backend,
		Attempt:   attempt,
		Status:    sol.Status.String(),
		Objective: sol.Objective,
		Duration:  sol.Duration,
		Time:      time.Now(),
	}
	if err := f.rec.RecordSolve(ev); err != nil {
		f.log.Debugf("solver: record attempt: %v", err)
	}
}
