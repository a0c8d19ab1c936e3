package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LogrusLogger implements Logger using sirupsen/logrus.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger writes JSON entries to stdout, or text when o.Console is set.
func NewLogrusLogger(component string, o Options) *LogrusLogger {
	return newLogrus(os.Stdout, component, o)
}

func newLogrus(out io.Writer, component string, o Options) *LogrusLogger {
	l := logrus.New()
	l.SetOutput(out)
	if o.Console {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	lvl, err := logrus.ParseLevel(o.Level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return &LogrusLogger{entry: l.WithField("component", component)}
}

func (l *LogrusLogger) Debugf(format string, args ...any) {
	l.entry.Debugf(format, args...)
}

func (l *LogrusLogger) Debugw(msg string, fields map[string]any) {
	l.entry.WithFields(fields).Debug(msg)
}

func (l *LogrusLogger) Infof(format string, args ...any) {
	l.entry.Infof(format, args...)
}

func (l *LogrusLogger) Warnf(format string, args ...any) {
	l.entry.Warnf(format, args...)
}

func (l *LogrusLogger) Warnw(msg string, fields map[string]any) {
	l.entry.WithFields(fields).Warn(msg)
}

func (l *LogrusLogger) Errorf(format string, args ...any) {
	l.entry.Errorf(format, args...)
}
