// Package metrics defines the observability sinks of the dispatch loop.
// Sinks record per-asset dispatch commands, solver attempts and control step
// summaries. Optional capabilities are expressed as separate recorder
// interfaces and forwarded by MultiSink through type assertions. The factory
// helpers return a MultiSink automatically when multiple sinks are
// configured.
package metrics
