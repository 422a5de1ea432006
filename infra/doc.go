// Package infra contains technical adapters: the zerolog logger, the Paho
// MQTT publisher and the Prometheus and InfluxDB metrics sinks. These
// packages should depend only on the interfaces defined in the core
// packages.
package infra
