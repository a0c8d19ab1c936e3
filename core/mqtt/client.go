// Package mqtt defines how dispatch set-points leave the process.
package mqtt

import (
	"context"
	"errors"
	"time"
)

// ErrPublishTimeout is returned when the broker does not confirm a publish in time.
var ErrPublishTimeout = errors.New("timeout waiting for publish confirmation")

// Setpoint is the power an actor must deliver (positive) or absorb (negative).
type Setpoint struct {
	RunID     string
	Label     string
	Power     float64
	Timestamp time.Time
}

// Publisher sends set-points to actors.
type Publisher interface {
	PublishSetpoint(ctx context.Context, sp Setpoint) error
}
