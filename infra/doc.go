// Package infra holds the adapters behind the core interfaces: the zerolog
// logger, the Prometheus and InfluxDB metrics sinks and the MQTT command
// publisher. Nothing in core imports these packages.
package infra
