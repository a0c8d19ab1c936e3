package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsTotal       prometheus.Counter
	circuitsGauge   prometheus.Gauge
	warningsTotal   *prometheus.CounterVec
	unservedGauge   prometheus.Gauge
	dispatchLatency prometheus.Histogram
	mqttSuccess     prometheus.Counter
	mqttFailure     prometheus.Counter
)

type collectors struct {
	runs     prometheus.Counter
	circuits prometheus.Gauge
	warnings *prometheus.CounterVec
	unserved prometheus.Gauge
	latency  prometheus.Histogram
	success  prometheus.Counter
	failure  prometheus.Counter
}

func newCollectors() collectors {
	return collectors{
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_runs_total",
			Help: "Number of completed dispatch runs",
		}),
		circuits: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_circuits",
			Help: "Number of circuits in the last dispatch run",
		}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_warnings_total",
			Help: "Orchestrator warnings by kind",
		}, []string{"kind"}),
		unserved: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_unserved_actors",
			Help: "Actors whose required demand was not met in the last run",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_duration_seconds",
			Help:    "Time spent computing one dispatch",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		success: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_publish_success_total",
			Help: "Number of set-points published",
		}),
		failure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_publish_failure_total",
			Help: "Number of set-points that failed to publish",
		}),
	}
}

func (c collectors) install() {
	runsTotal, circuitsGauge, warningsTotal, unservedGauge = c.runs, c.circuits, c.warnings, c.unserved
	dispatchLatency, mqttSuccess, mqttFailure = c.latency, c.success, c.failure
}

func init() {
	newCollectors().install()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(runsTotal, circuitsGauge, warningsTotal, unservedGauge, dispatchLatency, mqttSuccess, mqttFailure)
}

// ResetMetrics reinitializes the collectors for testing purposes and
// registers them on reg if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	newCollectors().install()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
