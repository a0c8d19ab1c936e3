// Package config loads the application configuration from a YAML or JSON
// file, with K_ prefixed environment overrides (K_DISPATCH__TOLERANCE=0.01).
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/mgdispatch/core/dispatch"
	"github.com/kilianp07/mgdispatch/core/metrics"
	"github.com/kilianp07/mgdispatch/infra/monitoring"
	"github.com/kilianp07/mgdispatch/infra/mqtt"
)

type Config struct {
	Dispatch dispatch.Config         `json:"dispatch"`
	MQTT     mqtt.Config             `json:"mqtt"`
	Metrics  metrics.Config          `json:"metrics"`
	Logging  LoggingConfig           `json:"logging"`
	Log      LogConfig               `json:"log"`
	Sentry   monitoring.SentryConfig `json:"sentry"`
}

// Load reads path and applies environment overrides, defaults and validation.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	var parser koanf.Parser
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if err := k.Load(env.Provider("K_", ".", envKey), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps K_MQTT__TOPIC_PREFIX to mqtt.topic_prefix.
func envKey(s string) string {
	s = strings.TrimPrefix(strings.ToLower(s), "k_")
	return strings.ReplaceAll(s, "__", ".")
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

func (c *Config) SetDefaults() {
	c.Dispatch.SetDefaults()
	c.Logging.SetDefaults()
	c.Log.SetDefaults()
}

func (c Config) Validate() error {
	if err := c.Dispatch.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return c.Sentry.Validate()
}
