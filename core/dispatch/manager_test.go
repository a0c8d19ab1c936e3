package dispatch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/mgdispatch/core/dispatch/logging"
	"github.com/kilianp07/mgdispatch/core/events"
	"github.com/kilianp07/mgdispatch/core/metrics"
	"github.com/kilianp07/mgdispatch/core/model"
	"github.com/kilianp07/mgdispatch/core/monitoring"
	infmqtt "github.com/kilianp07/mgdispatch/infra/mqtt"
	"github.com/kilianp07/mgdispatch/internal/eventbus"
)

type recordSink struct {
	mu        sync.Mutex
	records   []metrics.DispatchRecord
	summaries []metrics.SummaryRecord
	err       error
}

func (s *recordSink) RecordDispatch(recs []metrics.DispatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, recs...)
	return s.err
}

func (s *recordSink) RecordSummary(rec metrics.SummaryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append(s.summaries, rec)
	return nil
}

type memStore struct {
	mu   sync.Mutex
	recs []logging.LogRecord
}

func (m *memStore) Append(_ context.Context, rec logging.LogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memStore) Query(context.Context, logging.LogQuery) ([]logging.LogRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]logging.LogRecord(nil), m.recs...), nil
}

func (m *memStore) Close() error { return nil }

func newTestManager(t *testing.T, cfg Config, opts ...Option) *Manager {
	t.Helper()
	d, err := NewDispatcher(cfg, &recordLogger{})
	require.NoError(t, err)
	ids := 0
	m := NewManager(d, &recordLogger{}, opts...)
	m.newID = func() string {
		ids++
		return "run-" + string(rune('0'+ids))
	}
	return m
}

func TestManagerStep(t *testing.T) {
	pub := infmqtt.NewMockPublisher()
	sink := &recordSink{}
	store := &memStore{}
	bus := eventbus.New[events.Event](eventbus.WithBuffer(16))
	sub := bus.Subscribe()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	m := newTestManager(t, Config{},
		WithPublisher(pub), WithMetricsSink(sink), WithLogStore(store), WithEventBus(bus))
	topo := scenarioD()
	topo.Timestamp = ts

	step, err := m.Step(context.Background(), topo)
	require.NoError(t, err)
	assert.Equal(t, "run-1", step.RunID)
	assert.Equal(t, ts, step.Timestamp)
	assert.Empty(t, step.PublishErrors)

	assert.Equal(t, map[string]float64{"G": 80, "Bat": -30, "L": -50}, pub.Powers())
	require.Len(t, sink.records, 3)
	assert.Equal(t, model.KindBattery, sink.records[1].Kind)
	require.Len(t, sink.summaries, 1)
	assert.Equal(t, 80.0, sink.summaries[0].Supplied)
	assert.Equal(t, 1, sink.summaries[0].Warnings)

	require.Len(t, store.recs, 1)
	assert.Equal(t, "run-1", store.recs[0].RunID)
	assert.Equal(t, 0.001, store.recs[0].Tolerance)
	assert.Equal(t, []logging.WarningEntry{{Kind: "repeated_actors", Circuit: 1, Actors: []string{"Bat", "L"}}}, store.recs[0].Warnings)

	var got []events.Event
	for len(sub) > 0 {
		got = append(got, <-sub)
	}
	require.Len(t, got, 5)
	for _, ev := range got[:3] {
		assert.IsType(t, events.SetpointEvent{}, ev)
	}
	assert.IsType(t, events.WarningEvent{}, got[3])
	run, ok := got[4].(events.RunEvent)
	require.True(t, ok)
	assert.Equal(t, "run-1", run.Run())
	assert.Equal(t, 2, run.Circuits)
}

func TestManagerStepPublishFailuresAreCollected(t *testing.T) {
	pub := infmqtt.NewMockPublisher()
	pub.FailIDs["S"] = true
	boom := errors.New("sink down")
	sink := &recordSink{err: boom}

	m := newTestManager(t, Config{}, WithPublisher(pub), WithMetricsSink(sink))
	step, err := m.Step(context.Background(), scenarioA())
	require.NoError(t, err)
	require.Len(t, step.PublishErrors, 2)
	assert.ErrorIs(t, step.PublishErrors[0], boom)
	assert.Equal(t, map[string]float64{"D": -60}, pub.Powers())
}

type captureMonitor struct {
	monitoring.NopMonitor
	mu   sync.Mutex
	tags []map[string]string
}

func (c *captureMonitor) CaptureException(_ error, tags map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags = append(c.tags, tags)
}

func TestManagerReportsFailuresToMonitor(t *testing.T) {
	mon := &captureMonitor{}
	monitoring.Init(mon)
	defer monitoring.Init(nil)

	pub := infmqtt.NewMockPublisher()
	pub.FailIDs["D"] = true
	m := newTestManager(t, Config{}, WithPublisher(pub))
	step, err := m.Step(context.Background(), scenarioA())
	require.NoError(t, err)

	bad := scenarioA()
	bad.Actors[0].Label = ""
	_, err = m.Step(context.Background(), bad)
	require.Error(t, err)

	require.Len(t, mon.tags, 2)
	assert.Equal(t, "propagate", mon.tags[0]["stage"])
	assert.Equal(t, step.RunID, mon.tags[0]["run_id"])
	assert.Equal(t, "dispatch", mon.tags[1]["stage"])
}

func TestManagerPublishZero(t *testing.T) {
	pub := infmqtt.NewMockPublisher()
	m := newTestManager(t, Config{PublishZero: true}, WithPublisher(pub))
	_, err := m.Step(context.Background(), scenarioC())
	require.NoError(t, err)
	assert.Len(t, pub.Setpoints, 4)

	pub = infmqtt.NewMockPublisher()
	m = newTestManager(t, Config{}, WithPublisher(pub))
	_, err = m.Step(context.Background(), scenarioC())
	require.NoError(t, err)
	assert.Len(t, pub.Setpoints, 2)
}

func TestManagerStepInvalidTopology(t *testing.T) {
	sink := &recordSink{}
	store := &memStore{}
	m := newTestManager(t, Config{}, WithMetricsSink(sink), WithLogStore(store))
	topo := scenarioA()
	topo.Matrix = nil
	_, err := m.Step(context.Background(), topo)
	assert.ErrorIs(t, err, model.ErrMatrixShape)
	assert.Empty(t, sink.records)
	assert.Empty(t, store.recs)
}

func TestManagerUsesClockWithoutTimestamp(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	m := newTestManager(t, Config{}, WithClock(func() time.Time { return now }))
	step, err := m.Step(context.Background(), scenarioA())
	require.NoError(t, err)
	assert.Equal(t, now, step.Timestamp)
}

func TestManagerRun(t *testing.T) {
	store, err := logging.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	m := newTestManager(t, Config{})
	m.SetLogStore(store)
	defer func() { assert.NoError(t, m.Close()) }()

	in := make(chan model.Topology, 3)
	bad := scenarioA()
	bad.Matrix = nil
	in <- scenarioA()
	in <- bad
	in <- scenarioC()
	close(in)

	var steps []StepResult
	require.NoError(t, m.Run(context.Background(), in, func(s StepResult) { steps = append(steps, s) }))
	require.Len(t, steps, 2)

	recs, err := store.Query(context.Background(), logging.LogQuery{ActorLabel: "D1"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, steps[1].RunID, recs[0].RunID)
}

func TestManagerRunStopsOnCancel(t *testing.T) {
	m := newTestManager(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Run(ctx, make(chan model.Topology), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
