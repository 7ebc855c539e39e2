package events

import "time"

// LayerState is the shared state machine of the optimizer layers:
// Idle -> Solving -> Optimal | Failed -> Idle.
type LayerState int

const (
	StateIdle LayerState = iota
	StateSolving
	StateOptimal
	StateFailed
)

func (s LayerState) String() string {
	switch s {
	case StateSolving:
		return "solving"
	case StateOptimal:
		return "optimal"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Layer names used in events and metrics.
const (
	LayerUpper     = "upper"
	LayerSmoothing = "smoothing"
	LayerPower     = "power"
)

// LayerEvent is published on every layer state transition.
type LayerEvent struct {
	RunID  string
	Step   int
	Layer  string
	State  LayerState
	Status string
	Time   time.Time
}
