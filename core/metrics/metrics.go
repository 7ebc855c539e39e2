package metrics

import "time"

// DispatchEvent is the command applied to one asset during a control step.
type DispatchEvent struct {
	RunID   string
	Step    int
	AssetID string
	Role    string
	PowerW  float64
	SOC     float64
	Time    time.Time
}

// MetricsSink records dispatch commands for observability purposes.
type MetricsSink interface {
	RecordDispatch(events []DispatchEvent) error
}

// SolveEvent describes one backend attempt on one optimization problem.
type SolveEvent struct {
	RunID     string
	Problem   string
	Backend   string
	Attempt   int
	Status    string
	Objective float64
	Duration  time.Duration
	Time      time.Time
}

// SolveRecorder records solver attempts.
type SolveRecorder interface {
	RecordSolve(ev SolveEvent) error
}

// StepEvent summarises a control step of the dispatch loop.
type StepEvent struct {
	RunID           string
	Step            int
	NetLoadW        float64
	ImbalanceW      float64
	GridW           float64
	LowW            float64
	MidW            float64
	HighW           float64
	UpperStatus     string
	SmoothingStatus string
	PowerStatus     string
	Time            time.Time
}

// StepRecorder records control step summaries.
type StepRecorder interface {
	RecordStep(ev StepEvent) error
}

// LayerEvent is a state transition of an optimizer layer.
type LayerEvent struct {
	RunID  string
	Step   int
	Layer  string
	State  string
	Status string
	Time   time.Time
}

// LayerRecorder records optimizer layer transitions.
type LayerRecorder interface {
	RecordLayer(ev LayerEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordDispatch([]DispatchEvent) error { return nil }
func (NopSink) RecordSolve(SolveEvent) error         { return nil }
func (NopSink) RecordStep(StepEvent) error           { return nil }
func (NopSink) RecordLayer(LayerEvent) error         { return nil }
