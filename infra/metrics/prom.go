package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/hess/core/metrics"
)

// PromSink exposes the dispatch loop state as Prometheus metrics.
type PromSink struct {
	power    *prometheus.GaugeVec
	soc      *prometheus.GaugeVec
	solves   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	flows    *prometheus.GaugeVec
	steps    prometheus.Counter
	layers   *prometheus.CounterVec
}

// NewPromSink registers the metrics on the default Prometheus registerer.
// The HTTP endpoint is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		power: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hess_asset_power_watts",
			Help: "Last power command per asset, positive for discharge",
		}, []string{"asset_id", "role"}),
		soc: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hess_asset_soc_ratio",
			Help: "State of charge per asset after the last command",
		}, []string{"asset_id", "role"}),
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hess_solver_attempts_total",
			Help: "Solver attempts by problem, backend and status",
		}, []string{"problem", "backend", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hess_solver_duration_seconds",
			Help:    "Wall time of solver attempts",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"problem", "backend"}),
		flows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hess_step_power_watts",
			Help: "Power flows of the last control step",
		}, []string{"flow"}),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hess_steps_total",
			Help: "Number of control steps executed",
		}),
		layers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hess_layer_transitions_total",
			Help: "Optimizer layer state transitions",
		}, []string{"layer", "state"}),
	}
	var err error
	if s.power, err = register(reg, s.power); err != nil {
		return nil, err
	}
	if s.soc, err = register(reg, s.soc); err != nil {
		return nil, err
	}
	if s.solves, err = register(reg, s.solves); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.flows, err = register(reg, s.flows); err != nil {
		return nil, err
	}
	if s.steps, err = register(reg, s.steps); err != nil {
		return nil, err
	}
	if s.layers, err = register(reg, s.layers); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the already registered collector when the same metric was
// registered before, so that several sinks can share a registerer.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordDispatch sets the per-asset power and SOC gauges.
func (s *PromSink) RecordDispatch(evs []coremetrics.DispatchEvent) error {
	for _, e := range evs {
		s.power.WithLabelValues(e.AssetID, e.Role).Set(e.PowerW)
		s.soc.WithLabelValues(e.AssetID, e.Role).Set(e.SOC)
	}
	return nil
}

// RecordSolve counts the attempt and observes its duration.
func (s *PromSink) RecordSolve(ev coremetrics.SolveEvent) error {
	s.solves.WithLabelValues(ev.Problem, ev.Backend, ev.Status).Inc()
	s.duration.WithLabelValues(ev.Problem, ev.Backend).Observe(ev.Duration.Seconds())
	return nil
}

// RecordStep updates the power flow gauges of the step.
func (s *PromSink) RecordStep(ev coremetrics.StepEvent) error {
	s.steps.Inc()
	s.flows.WithLabelValues("net_load").Set(ev.NetLoadW)
	s.flows.WithLabelValues("imbalance").Set(ev.ImbalanceW)
	s.flows.WithLabelValues("grid").Set(ev.GridW)
	s.flows.WithLabelValues("low").Set(ev.LowW)
	s.flows.WithLabelValues("mid").Set(ev.MidW)
	s.flows.WithLabelValues("high").Set(ev.HighW)
	return nil
}

// RecordLayer counts layer state transitions.
func (s *PromSink) RecordLayer(ev coremetrics.LayerEvent) error {
	s.layers.WithLabelValues(ev.Layer, ev.State).Inc()
	return nil
}
