package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/mgdispatch/core/metrics"
)

// PromSink exposes the latest dispatch outcome as Prometheus gauges.
type PromSink struct {
	power    *prometheus.GaugeVec
	records  *prometheus.CounterVec
	supplied prometheus.Gauge
	consumed prometheus.Gauge
}

// NewPromSink registers the sink collectors on the default registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers collectors on reg, reusing collectors that
// are already registered. A nil reg defaults to the global registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	power, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "actor_power",
		Help: "Power assigned to an actor by the last dispatch run (positive supplies)",
	}, []string{"label", "kind"}))
	if err != nil {
		return nil, err
	}
	records, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "actor_dispatch_records_total",
		Help: "Number of dispatch records per actor",
	}, []string{"label"}))
	if err != nil {
		return nil, err
	}
	supplied, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_supplied_power",
		Help: "Total power supplied in the last dispatch run",
	}))
	if err != nil {
		return nil, err
	}
	consumed, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_consumed_power",
		Help: "Total power consumed in the last dispatch run",
	}))
	if err != nil {
		return nil, err
	}
	return &PromSink{power: power, records: records, supplied: supplied, consumed: consumed}, nil
}

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

// RecordDispatch sets the power gauge of each actor.
func (s *PromSink) RecordDispatch(recs []coremetrics.DispatchRecord) error {
	for _, r := range recs {
		s.power.WithLabelValues(r.Label, string(r.Kind)).Set(r.Power)
		s.records.WithLabelValues(r.Label).Inc()
	}
	return nil
}

// RecordSummary sets the run level gauges.
func (s *PromSink) RecordSummary(rec coremetrics.SummaryRecord) error {
	s.supplied.Set(rec.Supplied)
	s.consumed.Set(rec.Consumed)
	return nil
}
