package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/mgdispatch/core/dispatch/logging"
	"github.com/kilianp07/mgdispatch/core/events"
	"github.com/kilianp07/mgdispatch/core/logger"
	"github.com/kilianp07/mgdispatch/core/metrics"
	"github.com/kilianp07/mgdispatch/core/model"
	"github.com/kilianp07/mgdispatch/core/monitoring"
	"github.com/kilianp07/mgdispatch/core/mqtt"
	"github.com/kilianp07/mgdispatch/internal/eventbus"
)

// StepResult is the outcome of one Manager step.
type StepResult struct {
	RunID     string
	Timestamp time.Time
	Result    Result
	Duration  time.Duration
	// PublishErrors collects set-point and sink failures. They never abort a step.
	PublishErrors []error
}

// Manager runs one dispatch per timestep and fans the result out to the
// configured collaborators. It holds no dispatch state between steps.
type Manager struct {
	dispatcher *Dispatcher
	logger     logger.Logger

	mu        sync.Mutex
	publisher mqtt.Publisher
	metrics   metrics.MetricsSink
	store     logging.LogStore
	bus       *eventbus.Bus[events.Event]
	now       func() time.Time
	newID     func() string
}

// Option configures a Manager.
type Option func(*Manager)

// WithPublisher sends set-points through p.
func WithPublisher(p mqtt.Publisher) Option { return func(m *Manager) { m.publisher = p } }

// WithMetricsSink records dispatch records on s.
func WithMetricsSink(s metrics.MetricsSink) Option { return func(m *Manager) { m.metrics = s } }

// WithLogStore appends one record per step to s.
func WithLogStore(s logging.LogStore) Option { return func(m *Manager) { m.store = s } }

// WithEventBus publishes step events on b.
func WithEventBus(b *eventbus.Bus[events.Event]) Option { return func(m *Manager) { m.bus = b } }

// WithClock overrides the timestamp source used for topologies without one.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// NewManager creates a Manager around d.
func NewManager(d *Dispatcher, log logger.Logger, opts ...Option) *Manager {
	m := &Manager{
		dispatcher: d,
		logger:     log,
		metrics:    metrics.NopSink{},
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetLogStore replaces the store used to persist dispatch logs.
func (m *Manager) SetLogStore(store logging.LogStore) {
	m.mu.Lock()
	m.store = store
	m.mu.Unlock()
}

// Step dispatches topo and propagates the result. Invalid topologies are
// returned as errors before anything is recorded.
func (m *Manager) Step(ctx context.Context, topo model.Topology) (StepResult, error) {
	start := time.Now()
	res, err := m.dispatcher.Dispatch(topo)
	if err != nil {
		m.logger.Errorf("dispatch failed: %v", err)
		monitoring.CaptureException(err, map[string]string{"stage": "dispatch"})
		return StepResult{}, err
	}
	ts := topo.Timestamp
	if ts.IsZero() {
		ts = m.now()
	}
	step := StepResult{RunID: m.newID(), Timestamp: ts, Result: res}

	m.mu.Lock()
	sink, store, bus, pub := m.metrics, m.store, m.bus, m.publisher
	m.mu.Unlock()

	if err := sink.RecordDispatch(metrics.Records(step.RunID, ts, res.States, topo.Kind)); err != nil {
		m.logger.Errorf("record dispatch: %v", err)
		step.PublishErrors = append(step.PublishErrors, err)
	}

	if store != nil {
		if err := store.Append(ctx, m.logRecord(step, m.dispatcher.Tolerance(topo))); err != nil {
			m.logger.Errorf("append dispatch log: %v", err)
			step.PublishErrors = append(step.PublishErrors, err)
		}
	}

	if pub != nil {
		step.PublishErrors = append(step.PublishErrors, m.publishSetpoints(ctx, pub, bus, step)...)
	}

	step.Duration = time.Since(start)
	if rec, ok := sink.(metrics.SummaryRecorder); ok {
		summary := metrics.SummaryRecord{
			RunID:     step.RunID,
			Timestamp: ts,
			Supplied:  res.States.Supplied(),
			Consumed:  res.States.Consumed(),
			Circuits:  len(res.Circuits),
			Warnings:  len(res.Warnings),
			Unserved:  len(res.Unserved),
			Duration:  step.Duration,
		}
		if err := rec.RecordSummary(summary); err != nil {
			m.logger.Errorf("record summary: %v", err)
			step.PublishErrors = append(step.PublishErrors, err)
		}
	}

	if bus != nil {
		for _, w := range res.Warnings {
			bus.Publish(events.WarningEvent{RunID: step.RunID, Kind: string(w.Kind), Circuit: w.Circuit, Actors: w.Actors})
		}
		bus.Publish(events.RunEvent{
			RunID:     step.RunID,
			Timestamp: ts,
			States:    res.States,
			Unserved:  res.Unserved,
			Circuits:  len(res.Circuits),
			Duration:  step.Duration,
		})
	}
	if len(step.PublishErrors) > 0 {
		monitoring.CaptureException(errors.Join(step.PublishErrors...), map[string]string{
			"stage":  "propagate",
			"run_id": step.RunID,
		})
	}
	m.logger.Infof("run %s: %d actors, %d circuits, %d warnings, %d unserved",
		step.RunID, len(res.States), len(res.Circuits), len(res.Warnings), len(res.Unserved))
	return step, nil
}

func (m *Manager) publishSetpoints(ctx context.Context, pub mqtt.Publisher, bus *eventbus.Bus[events.Event], step StepResult) []error {
	var errs []error
	publishZero := m.dispatcher.Config().PublishZero
	for _, st := range step.Result.States {
		if st.Power == 0 && !publishZero {
			continue
		}
		if err := ctx.Err(); err != nil {
			return append(errs, err)
		}
		sp := mqtt.Setpoint{RunID: step.RunID, Label: st.Label, Power: st.Power, Timestamp: step.Timestamp}
		err := pub.PublishSetpoint(ctx, sp)
		if err != nil {
			mqttFailure.Inc()
			m.logger.Errorf("publish set-point %s: %v", st.Label, err)
			errs = append(errs, err)
		} else {
			mqttSuccess.Inc()
		}
		if bus != nil {
			bus.Publish(events.SetpointEvent{RunID: step.RunID, Label: st.Label, Power: st.Power, Err: err})
		}
	}
	return errs
}

func (m *Manager) logRecord(step StepResult, tol float64) logging.LogRecord {
	warnings := make([]logging.WarningEntry, len(step.Result.Warnings))
	for i, w := range step.Result.Warnings {
		warnings[i] = logging.WarningEntry{Kind: string(w.Kind), Circuit: w.Circuit, Actors: w.Actors}
	}
	return logging.LogRecord{
		RunID:     step.RunID,
		Timestamp: step.Timestamp,
		Tolerance: tol,
		States:    step.Result.States,
		Warnings:  warnings,
		Unserved:  step.Result.Unserved,
		Circuits:  len(step.Result.Circuits),
	}
}

// Run steps every topology received on in until the channel is closed or ctx
// is canceled. Step failures are logged and do not stop the loop. handle, if
// not nil, receives each successful step.
func (m *Manager) Run(ctx context.Context, in <-chan model.Topology, handle func(StepResult)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case topo, ok := <-in:
			if !ok {
				return nil
			}
			step, err := m.Step(ctx, topo)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				continue
			}
			if handle != nil {
				handle(step)
			}
		}
	}
}

// Close releases resources held by the manager.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bus != nil {
		m.bus.Close()
	}
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}
