// Package metrics defines the sinks that receive per-actor dispatch records
// and per-run summaries. Sinks are built from configuration through a
// registry; several configured sinks are combined into a MultiSink.
package metrics
