package metrics

import (
	"errors"
	"time"

	"github.com/kilianp07/mgdispatch/core/model"
)

// DispatchRecord is the outcome of one run for a single actor.
type DispatchRecord struct {
	RunID     string
	Timestamp time.Time
	Label     string
	Kind      model.Kind
	Power     float64
}

// SummaryRecord aggregates one dispatch run.
type SummaryRecord struct {
	RunID     string
	Timestamp time.Time
	Supplied  float64
	Consumed  float64
	Circuits  int
	Warnings  int
	Unserved  int
	Duration  time.Duration
}

// MetricsSink records dispatch results for observability purposes.
type MetricsSink interface {
	RecordDispatch(recs []DispatchRecord) error
}

// SummaryRecorder is implemented by sinks able to record run summaries.
type SummaryRecorder interface {
	RecordSummary(rec SummaryRecord) error
}

// Records converts a state vector into dispatch records. kind may be nil.
func Records(runID string, ts time.Time, states model.StateVector, kind func(string) model.Kind) []DispatchRecord {
	out := make([]DispatchRecord, len(states))
	for i, s := range states {
		out[i] = DispatchRecord{RunID: runID, Timestamp: ts, Label: s.Label, Power: s.Power}
		if kind != nil {
			out[i].Kind = kind(s.Label)
		}
	}
	return out
}

// NopSink implements MetricsSink and SummaryRecorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordDispatch([]DispatchRecord) error { return nil }
func (NopSink) RecordSummary(SummaryRecord) error     { return nil }

// MultiSink fans records out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDispatch forwards to every sink and joins their errors.
func (m *MultiSink) RecordDispatch(recs []DispatchRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordDispatch(recs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordSummary forwards to the sinks that implement SummaryRecorder.
func (m *MultiSink) RecordSummary(rec SummaryRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(SummaryRecorder); ok {
			if err := r.RecordSummary(rec); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
