package mqtt

import (
	"context"
	"fmt"
	"sync"

	coremqtt "github.com/kilianp07/mgdispatch/core/mqtt"
)

// Publisher mirrors the core mqtt.Publisher interface.
type Publisher = coremqtt.Publisher

// MockPublisher records set-points in memory.
type MockPublisher struct {
	mu        sync.Mutex
	Setpoints []coremqtt.Setpoint
	FailIDs   map[string]bool
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{FailIDs: make(map[string]bool)}
}

// PublishSetpoint records sp or fails for labels listed in FailIDs.
func (m *MockPublisher) PublishSetpoint(ctx context.Context, sp coremqtt.Setpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[sp.Label] {
		return fmt.Errorf("publish %s: mock failure", sp.Label)
	}
	m.Setpoints = append(m.Setpoints, sp)
	return nil
}

// Powers returns the last published power per label.
func (m *MockPublisher) Powers() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]float64, len(m.Setpoints))
	for _, sp := range m.Setpoints {
		out[sp.Label] = sp.Power
	}
	return out
}
