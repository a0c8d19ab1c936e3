package test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/mgdispatch/app"
	"github.com/kilianp07/mgdispatch/config"
	"github.com/kilianp07/mgdispatch/core/factory"
	"github.com/kilianp07/mgdispatch/core/model"
	"github.com/kilianp07/mgdispatch/qa/scenarios"
	"github.com/kilianp07/mgdispatch/test/util"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestPrometheusExposesDispatchMetrics(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.PrometheusAddr = freeAddr(t)
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "prometheus"}}
	svc, err := app.New(cfg)
	require.NoError(t, err)
	defer svc.Close()

	sc, err := scenarios.Load("../qa/scenarios/scenario_d.yaml")
	require.NoError(t, err)
	topos, err := sc.Topologies()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	in := make(chan model.Topology, len(topos))
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx, in, nil) }()
	for _, topo := range topos {
		in <- topo
	}

	url := fmt.Sprintf("http://%s/metrics", cfg.Metrics.PrometheusAddr)
	require.NoError(t, util.WaitForMetric(ctx, url, `dispatch_warnings_total{kind="repeated_actors"}`))
	require.NoError(t, util.WaitForMetric(ctx, url, `actor_power{kind="battery",label="Bat"}`))
	require.NoError(t, util.WaitForMetric(ctx, url, "dispatch_runs_total"))

	close(in)
	require.NoError(t, <-done)
}
