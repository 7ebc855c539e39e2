package solver

import (
	"errors"
	"time"
)

var (
	// ErrInfeasible is returned when no point satisfies the constraints.
	ErrInfeasible = errors.New("problem infeasible")
	// ErrUnbounded is returned when the objective decreases without bound.
	ErrUnbounded = errors.New("problem unbounded")
	// ErrTimeLimit is returned when a backend exceeds its time budget.
	ErrTimeLimit = errors.New("solver time limit reached")
	// ErrNumerical is returned when the backend fails for numerical reasons
	// or returns a point outside the accepted tolerances.
	ErrNumerical = errors.New("solver numerical failure")
)

// Status is the outcome class of a solve.
type Status int

const (
	StatusUnknown Status = iota
	StatusOptimal
	StatusOptimalInaccurate
	StatusInfeasible
	StatusUnbounded
	StatusTimeLimit
	StatusNodeLimit
	StatusNumerical
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusOptimalInaccurate:
		return "optimal_inaccurate"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	case StatusTimeLimit:
		return "time_limit"
	case StatusNodeLimit:
		return "node_limit"
	case StatusNumerical:
		return "numerical"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Usable reports whether the plan attached to the status may be applied.
func (s Status) Usable() bool {
	return s == StatusOptimal || s == StatusOptimalInaccurate
}

// statusOf maps a backend error onto a status.
func statusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOptimal
	case errors.Is(err, ErrInfeasible):
		return StatusInfeasible
	case errors.Is(err, ErrUnbounded):
		return StatusUnbounded
	case errors.Is(err, ErrTimeLimit):
		return StatusTimeLimit
	case errors.Is(err, ErrNumerical):
		return StatusNumerical
	default:
		return StatusError
	}
}

// Solution is the result of a solve. X is indexed like Problem.Vars and is
// only meaningful when Status is usable.
type Solution struct {
	Status    Status
	X         []float64
	Objective float64
	Backend   string
	Nodes     int
	Duration  time.Duration
}

// Value returns X[v] or 0 when no point is available.
func (s Solution) Value(v int) float64 {
	if v < 0 || v >= len(s.X) {
		return 0
	}
	return s.X[v]
}
