// Package scenario holds the net-load forecast error scenarios consumed by
// the stochastic upper layer.
package scenario

import (
	"errors"
	"fmt"
	"math"
)

// ErrProbabilities is returned when scenario weights are negative or do
// not sum to one.
var ErrProbabilities = errors.New("scenario probabilities must be non-negative and sum to 1")

const probTol = 1e-6

// Scenario is one sampled net-load forecast error trajectory in MW with its
// probability weight.
type Scenario struct {
	Name        string
	Probability float64
	Error       []float64
}

// Set is a discrete scenario distribution over one upper horizon.
type Set struct {
	Scenarios []Scenario
}

// Len returns the number of scenarios.
func (s Set) Len() int { return len(s.Scenarios) }

// Validate checks that every trajectory covers horizon steps and that the
// probabilities form a distribution.
func (s Set) Validate(horizon int) error {
	if len(s.Scenarios) == 0 {
		return errors.New("scenario set is empty")
	}
	var total float64
	for i, sc := range s.Scenarios {
		if len(sc.Error) < horizon {
			return fmt.Errorf("scenario %d has %d steps, horizon is %d", i, len(sc.Error), horizon)
		}
		if sc.Probability < 0 || math.IsNaN(sc.Probability) {
			return fmt.Errorf("scenario %d: %w", i, ErrProbabilities)
		}
		for _, v := range sc.Error {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("scenario %d has a non-finite error", i)
			}
		}
		total += sc.Probability
	}
	if math.Abs(total-1) > probTol {
		return fmt.Errorf("sum %.9f: %w", total, ErrProbabilities)
	}
	return nil
}

// Normalize rescales the probabilities to sum to one.
func (s *Set) Normalize() error {
	var total float64
	for _, sc := range s.Scenarios {
		if sc.Probability < 0 {
			return ErrProbabilities
		}
		total += sc.Probability
	}
	if total <= 0 {
		return ErrProbabilities
	}
	for i := range s.Scenarios {
		s.Scenarios[i].Probability /= total
	}
	return nil
}

// Expected returns the probability-weighted mean error per step.
func (s Set) Expected(horizon int) []float64 {
	out := make([]float64, horizon)
	for _, sc := range s.Scenarios {
		for t := 0; t < horizon && t < len(sc.Error); t++ {
			out[t] += sc.Probability * sc.Error[t]
		}
	}
	return out
}
