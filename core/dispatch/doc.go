// Package dispatch implements the two optimizer layers of the controller.
//
// Upper solves the economic program of the long-duration Energy group and
// the grid exchange over a slow horizon, optionally as a two-stage
// stochastic program over forecast error scenarios. Lower allocates the
// mid and high frequency bands to the Smoothing and Power groups over a
// fast horizon. Both layers return zero plans instead of errors when no
// solver backend converges.
package dispatch
