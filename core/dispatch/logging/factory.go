package logging

import (
	"context"

	"github.com/kilianp07/mgdispatch/core/factory"
)

var storeRegistry = factory.NewRegistry[LogStore]()

func init() {
	storeRegistry.MustRegister("jsonl", func(conf map[string]any) (LogStore, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewJSONLStore(c.Path)
	})
	storeRegistry.MustRegister("jsonl_rotating", func(conf map[string]any) (LogStore, error) {
		var c struct {
			Path       string `json:"path"`
			MaxSizeMB  int    `json:"max_size_mb"`
			MaxBackups int    `json:"max_backups"`
			MaxAgeDays int    `json:"max_age_days"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	})
	storeRegistry.MustRegister("sqlite", func(conf map[string]any) (LogStore, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSQLiteStore(c.Path)
	})
	storeRegistry.MustRegister("nop", func(map[string]any) (LogStore, error) {
		return NopStore{}, nil
	})
}

// NewLogStore builds the store named by cfg.Type. An empty type yields a NopStore.
func NewLogStore(cfg factory.ModuleConfig) (LogStore, error) {
	if cfg.Type == "" {
		return NopStore{}, nil
	}
	return storeRegistry.Create(cfg)
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(context.Context, LogRecord) error              { return nil }
func (NopStore) Query(context.Context, LogQuery) ([]LogRecord, error) { return nil, nil }
func (NopStore) Close() error                                         { return nil }
