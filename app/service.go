package app

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/mgdispatch/config"
	"github.com/kilianp07/mgdispatch/core/dispatch"
	"github.com/kilianp07/mgdispatch/core/dispatch/logging"
	"github.com/kilianp07/mgdispatch/core/events"
	coremetrics "github.com/kilianp07/mgdispatch/core/metrics"
	"github.com/kilianp07/mgdispatch/core/model"
	"github.com/kilianp07/mgdispatch/core/monitoring"
	"github.com/kilianp07/mgdispatch/infra/logger"
	"github.com/kilianp07/mgdispatch/infra/metrics"
	inframon "github.com/kilianp07/mgdispatch/infra/monitoring"
	"github.com/kilianp07/mgdispatch/infra/mqtt"
	"github.com/kilianp07/mgdispatch/internal/eventbus"
)

// Service wires the dispatch manager to its sinks, store and publisher.
type Service struct {
	Manager   *dispatch.Manager
	Bus       *eventbus.Bus[events.Event]
	publisher *mqtt.PahoPublisher
	sink      coremetrics.MetricsSink
	log       logger.Logger
	promAddr  string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logger.SetDefaults(cfg.Log.Options())
	logg := logger.New("service")

	mon, err := inframon.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, err
	}
	monitoring.Init(mon)

	d, err := dispatch.NewDispatcher(cfg.Dispatch, logger.New("dispatcher"))
	if err != nil {
		return nil, fmt.Errorf("dispatcher: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	store, err := logging.NewLogStore(cfg.Logging.Module())
	if err != nil {
		return nil, fmt.Errorf("log store: %w", err)
	}

	bus := eventbus.New[events.Event](eventbus.WithBuffer(64))
	opts := []dispatch.Option{
		dispatch.WithMetricsSink(sink),
		dispatch.WithLogStore(store),
		dispatch.WithEventBus(bus),
	}
	svc := &Service{Bus: bus, sink: sink, log: logg, promAddr: cfg.Metrics.PrometheusAddr}
	if cfg.MQTT.Enabled() {
		pub, err := mqtt.NewPahoPublisher(cfg.MQTT)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		svc.publisher = pub
		opts = append(opts, dispatch.WithPublisher(pub))
	}
	svc.Manager = dispatch.NewManager(d, logger.New("manager"), opts...)
	return svc, nil
}

// Run serves metrics when configured and steps every topology received on in
// until the channel is closed or ctx is canceled.
func (s *Service) Run(ctx context.Context, in <-chan model.Topology, handle func(dispatch.StepResult)) error {
	if s.promAddr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	warnings := s.Bus.Subscribe()
	done := make(chan struct{})
	go func() {
		defer monitoring.Recover()
		defer close(done)
		for ev := range warnings {
			if w, ok := ev.(events.WarningEvent); ok {
				s.log.Debugw("dispatch warning", map[string]any{
					"run_id":  w.RunID,
					"kind":    w.Kind,
					"circuit": w.Circuit,
					"actors":  w.Actors,
				})
			}
		}
	}()
	err := s.Manager.Run(ctx, in, handle)
	s.Bus.Unsubscribe(warnings)
	<-done
	return err
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	err := s.Manager.Close()
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	monitoring.Flush(2 * time.Second)
	return err
}
