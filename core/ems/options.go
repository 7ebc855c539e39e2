package ems

import (
	"time"

	"github.com/kilianp07/hess/core/logger"
	"github.com/kilianp07/hess/core/metrics"
	"github.com/kilianp07/hess/core/mqtt"
	"github.com/kilianp07/hess/core/solver"
	"github.com/kilianp07/hess/internal/eventbus"
)

// Option customises a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics records dispatch commands, solver attempts and step summaries.
func WithMetrics(m metrics.MetricsSink) Option {
	return func(c *Controller) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithBus publishes layer transitions and applied commands.
func WithBus(b eventbus.EventBus) Option {
	return func(c *Controller) { c.bus = b }
}

// WithPublisher sends every applied command to the asset controllers. A
// positive ackTimeout waits for each acknowledgment.
func WithPublisher(p mqtt.Client, ackTimeout time.Duration) Option {
	return func(c *Controller) {
		c.publisher = p
		c.ackTimeout = ackTimeout
	}
}

// WithBackends sets the ordered solver backends.
func WithBackends(b []solver.Backend) Option {
	return func(c *Controller) { c.backends = b }
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(c *Controller) {
		if id != "" {
			c.runID = id
		}
	}
}

// WithDecomposer replaces the configured wavelet decomposer.
func WithDecomposer(d SignalDecomposer) Option {
	return func(c *Controller) {
		if d != nil {
			c.dec = d
		}
	}
}
