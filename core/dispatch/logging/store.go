// Package logging persists one record per dispatch run and queries them back.
package logging

import (
	"context"
	"slices"
	"time"

	"github.com/kilianp07/mgdispatch/core/model"
)

// WarningEntry mirrors a dispatch warning.
type WarningEntry struct {
	Kind    string   `json:"kind"`
	Circuit int      `json:"circuit"`
	Actors  []string `json:"actors"`
}

// LogRecord captures one dispatch run.
type LogRecord struct {
	RunID     string            `json:"run_id"`
	Timestamp time.Time         `json:"timestamp"`
	Tolerance float64           `json:"tolerance"`
	States    model.StateVector `json:"states"`
	Warnings  []WarningEntry    `json:"warnings,omitempty"`
	Unserved  []string          `json:"unserved,omitempty"`
	Circuits  int               `json:"circuits"`
}

// Involves reports whether the run dispatched, warned about, or failed to
// serve the actor.
func (r LogRecord) Involves(label string) bool {
	if p, ok := r.States.Get(label); ok && p != 0 {
		return true
	}
	if slices.Contains(r.Unserved, label) {
		return true
	}
	for _, w := range r.Warnings {
		if slices.Contains(w.Actors, label) {
			return true
		}
	}
	return false
}

// LogQuery defines filters for retrieving records. Zero fields match all.
type LogQuery struct {
	Start      time.Time
	End        time.Time
	RunID      string
	ActorLabel string
	// Limit caps the number of returned records when positive.
	Limit int
}

// Match applies the query filters except Limit.
func (q LogQuery) Match(r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.RunID != "" && r.RunID != q.RunID {
		return false
	}
	if q.ActorLabel != "" && !r.Involves(q.ActorLabel) {
		return false
	}
	return true
}

func (q LogQuery) full(n int) bool { return q.Limit > 0 && n >= q.Limit }

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}
