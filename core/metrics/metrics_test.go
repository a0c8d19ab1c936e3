package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/mgdispatch/core/factory"
	"github.com/kilianp07/mgdispatch/core/model"
)

type recordSink struct {
	dispatch, summary int
	err               error
}

func (r *recordSink) RecordDispatch([]DispatchRecord) error {
	r.dispatch++
	return r.err
}

func (r *recordSink) RecordSummary(SummaryRecord) error {
	r.summary++
	return r.err
}

type dispatchOnly struct{ n int }

func (d *dispatchOnly) RecordDispatch([]DispatchRecord) error {
	d.n++
	return nil
}

func TestMultiSinkForwards(t *testing.T) {
	s1, s2, s3 := &recordSink{}, &recordSink{}, &dispatchOnly{}
	m := NewMultiSink(s1, s2, s3)
	require.NoError(t, m.RecordDispatch(nil))
	require.NoError(t, m.RecordSummary(SummaryRecord{}))
	assert.Equal(t, 1, s1.dispatch)
	assert.Equal(t, 1, s2.summary)
	assert.Equal(t, 1, s3.n)
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok := &recordSink{}
	m := NewMultiSink(&recordSink{err: boom}, ok)
	err := m.RecordDispatch(nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, ok.dispatch)
}

func TestRecords(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	states := model.StateVector{{Label: "G", Power: 60}, {Label: "L", Power: -60}}
	kinds := map[string]model.Kind{"G": model.KindGenerator, "L": model.KindLoad}
	recs := Records("run-1", ts, states, func(l string) model.Kind { return kinds[l] })
	require.Len(t, recs, 2)
	assert.Equal(t, DispatchRecord{RunID: "run-1", Timestamp: ts, Label: "L", Kind: model.KindLoad, Power: -60}, recs[1])

	recs = Records("run-2", ts, states, nil)
	assert.Empty(t, recs[0].Kind)
}

func TestNewMetricsSink(t *testing.T) {
	s, err := NewMetricsSink(nil)
	require.NoError(t, err)
	assert.IsType(t, NopSink{}, s)

	require.NoError(t, RegisterMetricsSink("test-record", func(map[string]any) (MetricsSink, error) {
		return &recordSink{}, nil
	}))
	s, err = NewMetricsSink([]factory.ModuleConfig{{Type: "test-record"}})
	require.NoError(t, err)
	assert.IsType(t, &recordSink{}, s)

	s, err = NewMetricsSink([]factory.ModuleConfig{{Type: "test-record"}, {Type: "test-record"}})
	require.NoError(t, err)
	multi, ok := s.(*MultiSink)
	require.True(t, ok)
	assert.Len(t, multi.Sinks, 2)
	assert.Contains(t, SinkTypes(), "test-record")

	_, err = NewMetricsSink([]factory.ModuleConfig{{Type: "test-record"}, {Type: "missing"}})
	assert.ErrorIs(t, err, factory.ErrUnknownType)
}
