package dispatch

import (
	"errors"
	"fmt"
	"math"
)

// DefaultTolerance is used when neither the topology nor the config sets one.
const DefaultTolerance = 1e-3

// ConflictPolicy decides what happens to a circuit proposal that assigns an
// actor already dispatched by a larger circuit.
type ConflictPolicy string

const (
	// PolicyDiscardCircuit drops the whole proposal.
	PolicyDiscardCircuit ConflictPolicy = "discard_circuit"
	// PolicyDiscardOverlap drops only the overlapping actors.
	PolicyDiscardOverlap ConflictPolicy = "discard_overlap"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid dispatch config")

// Config defines dispatch-related settings.
type Config struct {
	Tolerance      float64        `json:"tolerance"`
	ConflictPolicy ConflictPolicy `json:"conflict_policy"`
	// PublishZero also sends set-points for actors left at zero.
	PublishZero bool `json:"publish_zero"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Tolerance == 0 {
		c.Tolerance = DefaultTolerance
	}
	if c.ConflictPolicy == "" {
		c.ConflictPolicy = PolicyDiscardCircuit
	}
}

func (c Config) Validate() error {
	if c.Tolerance <= 0 || math.IsNaN(c.Tolerance) || math.IsInf(c.Tolerance, 0) {
		return fmt.Errorf("%w: tolerance must be positive, got %v", ErrInvalidConfig, c.Tolerance)
	}
	switch c.ConflictPolicy {
	case PolicyDiscardCircuit, PolicyDiscardOverlap:
	default:
		return fmt.Errorf("%w: unknown conflict policy %q", ErrInvalidConfig, c.ConflictPolicy)
	}
	return nil
}
