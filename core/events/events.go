package events

import (
	"time"

	"github.com/kilianp07/mgdispatch/core/model"
)

// Event is any value published on the dispatch bus.
type Event interface {
	// Run returns the identifier of the dispatch run the event belongs to.
	Run() string
}

// RunEvent is published once per dispatch run.
type RunEvent struct {
	RunID     string
	Timestamp time.Time
	States    model.StateVector
	Unserved  []string
	Circuits  int
	Duration  time.Duration
}

func (e RunEvent) Run() string { return e.RunID }

// WarningEvent carries one orchestrator warning.
type WarningEvent struct {
	RunID   string
	Kind    string
	Circuit int
	Actors  []string
}

func (e WarningEvent) Run() string { return e.RunID }

// SetpointEvent reports the outcome of publishing one actor set-point.
type SetpointEvent struct {
	RunID string
	Label string
	Power float64
	Err   error
}

func (e SetpointEvent) Run() string { return e.RunID }
