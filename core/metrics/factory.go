package metrics

import (
	"errors"
	"fmt"
	"io"

	"github.com/kilianp07/hess/core/factory"
)

var sinkRegistry = factory.NewRegistry[MetricsSink]()

// RegisterMetricsSink adds a metrics sink factory identified by name.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinkRegistry.Register(name, f)
}

// NewMetricsSink creates a MetricsSink from the provided configuration. No
// configuration yields a NopSink and several yield a MultiSink.
func NewMetricsSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	if len(cfgs) == 0 {
		return NopSink{}, nil
	}
	sinks := make([]MetricsSink, len(cfgs))
	for i, c := range cfgs {
		s, err := sinkRegistry.Create(c)
		if err != nil {
			CloseSink(NewMultiSink(sinks[:i]...))
			return nil, fmt.Errorf("metrics sink %d: %w", i, err)
		}
		sinks[i] = s
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return NewMultiSink(sinks...), nil
}

// CloseSink releases the resources of s and of every sink a MultiSink
// wraps. Sinks without a Close method are left alone.
func CloseSink(s MetricsSink) error {
	switch c := s.(type) {
	case *MultiSink:
		var errs []error
		for _, inner := range c.Sinks {
			errs = append(errs, CloseSink(inner))
		}
		return errors.Join(errs...)
	case io.Closer:
		return c.Close()
	case interface{ Close() }:
		c.Close()
	}
	return nil
}
