package config

import (
	"fmt"

	"github.com/kilianp07/mgdispatch/core/factory"
	infralogger "github.com/kilianp07/mgdispatch/infra/logger"
)

// LoggingConfig defines settings for dispatch log storage and rotation.
type LoggingConfig struct {
	// Backend selects the log store: "none", "jsonl", "jsonl_rotating" or "sqlite".
	Backend string `json:"backend"`
	// Path is the file location of the log store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

func (c *LoggingConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "none"
	}
	if c.Path == "" {
		c.Path = "dispatch.jsonl"
	}
	if c.Backend == "jsonl_rotating" && c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
}

func (c LoggingConfig) Validate() error {
	switch c.Backend {
	case "none", "jsonl", "jsonl_rotating", "sqlite":
	default:
		return fmt.Errorf("unknown log store backend %q", c.Backend)
	}
	if c.Backend != "none" && c.Path == "" {
		return fmt.Errorf("logging.path is required")
	}
	return nil
}

// Module converts the settings into a log store module config. The "none"
// backend yields an empty type.
func (c LoggingConfig) Module() factory.ModuleConfig {
	if c.Backend == "none" {
		return factory.ModuleConfig{}
	}
	return factory.ModuleConfig{Type: c.Backend, Conf: map[string]any{
		"path":         c.Path,
		"max_size_mb":  c.MaxSizeMB,
		"max_backups":  c.MaxBackups,
		"max_age_days": c.MaxAgeDays,
	}}
}

// LogConfig selects the application logger.
type LogConfig struct {
	Backend string `json:"backend"`
	Level   string `json:"level"`
	Console bool   `json:"console"`
}

func (c *LogConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = string(infralogger.BackendZerolog)
	}
}

func (c LogConfig) Validate() error {
	switch infralogger.Backend(c.Backend) {
	case infralogger.BackendZerolog, infralogger.BackendLogrus:
		return nil
	}
	return fmt.Errorf("unknown logger backend %q", c.Backend)
}

// Options converts the settings into logger options.
func (c LogConfig) Options() infralogger.Options {
	return infralogger.Options{Backend: infralogger.Backend(c.Backend), Level: c.Level, Console: c.Console}
}
