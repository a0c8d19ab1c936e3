package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/mgdispatch/core/dispatch"
	"github.com/kilianp07/mgdispatch/core/factory"
	infralogger "github.com/kilianp07/mgdispatch/infra/logger"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `dispatch:
  tolerance: 0.01
  conflict_policy: discard_overlap
  publish_zero: true
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "dispatch"
  topic_prefix: "site-a"
  qos: 1
metrics:
  prometheus_addr: ":9100"
  sinks:
    - type: nop
    - type: influx
      conf:
        url: "http://localhost:8086"
        bucket: grid
logging:
  backend: sqlite
  path: /tmp/dispatch.db
log:
  backend: logrus
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"tolerance", cfg.Dispatch.Tolerance, 0.01},
		{"policy", cfg.Dispatch.ConflictPolicy, dispatch.PolicyDiscardOverlap},
		{"publish_zero", cfg.Dispatch.PublishZero, true},
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"topic_prefix", cfg.MQTT.TopicPrefix, "site-a"},
		{"qos", cfg.MQTT.QoS, byte(1)},
		{"prom addr", cfg.Metrics.PrometheusAddr, ":9100"},
		{"sinks", len(cfg.Metrics.Sinks), 2},
		{"influx bucket", cfg.Metrics.Sinks[1].Conf["bucket"], "grid"},
		{"store", cfg.Logging.Module().Type, "sqlite"},
		{"logger", cfg.Log.Options().Backend, infralogger.BackendLogrus},
		{"level", cfg.Log.Level, "debug"},
	}
	for _, c := range checks {
		assert.Equal(t, c.want, c.got, c.name)
	}
}

func TestLoadJSONDefaults(t *testing.T) {
	path := writeFile(t, "config.json", `{"mqtt":{"broker":""}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dispatch.DefaultTolerance, cfg.Dispatch.Tolerance)
	assert.Equal(t, dispatch.PolicyDiscardCircuit, cfg.Dispatch.ConflictPolicy)
	assert.Equal(t, factory.ModuleConfig{}, cfg.Logging.Module())
	assert.Equal(t, "zerolog", cfg.Log.Backend)
	assert.False(t, cfg.MQTT.Enabled())
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeFile(t, "config.yaml", "dispatch:\n  tolerance: 0.01\n")
	t.Setenv("K_DISPATCH__TOLERANCE", "0.5")
	t.Setenv("K_MQTT__TOPIC_PREFIX", "site-b")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Dispatch.Tolerance)
	assert.Equal(t, "site-b", cfg.MQTT.TopicPrefix)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(writeFile(t, "config.toml", ""))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "config.yaml", "dispatch:\n  conflict_policy: newest\n"))
	assert.ErrorIs(t, err, dispatch.ErrInvalidConfig)

	_, err = Load(writeFile(t, "config.yaml", "logging:\n  backend: mongo\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "config.yaml", "log:\n  backend: slog\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "config.yaml", "sentry:\n  traces_sample_rate: 2\n"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadSentry(t *testing.T) {
	path := writeFile(t, "config.yaml", "sentry:\n  dsn: https://key@sentry.example.com/1\n  environment: staging\n  traces_sample_rate: 0.25\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://key@sentry.example.com/1", cfg.Sentry.DSN)
	assert.Equal(t, "staging", cfg.Sentry.Environment)
	assert.Equal(t, 0.25, cfg.Sentry.TracesSampleRate)
}

func TestLoggingModuleRotation(t *testing.T) {
	c := LoggingConfig{Backend: "jsonl_rotating", Path: "x.jsonl"}
	c.SetDefaults()
	m := c.Module()
	assert.Equal(t, "jsonl_rotating", m.Type)
	assert.Equal(t, 10, m.Conf["max_size_mb"])
}
