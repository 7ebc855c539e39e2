package metrics

// MultiSink fans out events to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDispatch forwards the events to all sinks, returning the first error encountered.
func (m *MultiSink) RecordDispatch(evs []DispatchEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordDispatch(evs); err != nil {
			return err
		}
	}
	return nil
}

// RecordSolve forwards solver attempts to sinks able to record them.
func (m *MultiSink) RecordSolve(ev SolveEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(SolveRecorder); ok {
			if err := rec.RecordSolve(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordStep forwards step summaries to sinks able to record them.
func (m *MultiSink) RecordStep(ev StepEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(StepRecorder); ok {
			if err := rec.RecordStep(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordLayer forwards layer transitions to sinks able to record them.
func (m *MultiSink) RecordLayer(ev LayerEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(LayerRecorder); ok {
			if err := rec.RecordLayer(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
