package logger

import (
	"os"
	"strings"

	corelogger "github.com/kilianp07/mgdispatch/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// Backend selects the logging library.
type Backend string

const (
	BackendZerolog Backend = "zerolog"
	BackendLogrus  Backend = "logrus"
)

// Options configures a logger. Empty fields fall back to the environment:
// APP_ENV=dev selects human readable console output and LOG_LEVEL sets the
// minimum level.
type Options struct {
	Backend Backend
	Level   string
	Console bool
}

func (o Options) withEnv() Options {
	if o.Backend == "" {
		o.Backend = BackendZerolog
	}
	if o.Level == "" {
		o.Level = strings.ToLower(os.Getenv("LOG_LEVEL"))
	}
	if o.Level == "" {
		o.Level = "info"
	}
	if strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		o.Console = true
	}
	return o
}

// NopLogger implements Logger with no-op methods.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Warnw(string, map[string]any)  {}
func (NopLogger) Errorf(string, ...any)         {}

var defaults Options

// SetDefaults changes the options used by New. It is meant to be called once
// at startup, before any component logger is created.
func SetDefaults(o Options) { defaults = o }

// New returns a Logger for the given component using the process defaults.
func New(component string) Logger {
	return NewWithOptions(component, defaults)
}

// NewWithOptions returns a Logger for the given component.
func NewWithOptions(component string, o Options) Logger {
	o = o.withEnv()
	if o.Backend == BackendLogrus {
		return NewLogrusLogger(component, o)
	}
	return NewZerologLogger(component, o)
}
