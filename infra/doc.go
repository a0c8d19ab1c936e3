// Package infra holds the adapters behind the core interfaces: loggers,
// metrics sinks, the MQTT set-point publisher and error monitoring.
package infra
