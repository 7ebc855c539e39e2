// Package solver builds and solves the linear and mixed integer programs of
// the dispatch layers.
//
// Problems are described with bounded variables and linear constraints,
// converted to gonum's standard form and solved by the simplex method.
// Integer variables are handled by branch and bound. A Fallback runs an
// ordered list of backends and reports a status instead of an error so
// that callers can always fall back to a safe plan.
package solver
