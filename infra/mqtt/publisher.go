package mqtt

import (
	"fmt"
	"sync"
	"time"

	coremqtt "github.com/kilianp07/hess/core/mqtt"
)

// Client mirrors the core mqtt.Client interface.
type Client = coremqtt.Client

// MockPublisher records commands in memory. It backs dry runs and tests.
type MockPublisher struct {
	Messages   map[string]float64
	FailIDs    map[string]bool
	AckResults map[string]bool
	mu         sync.Mutex
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		Messages:   make(map[string]float64),
		FailIDs:    make(map[string]bool),
		AckResults: make(map[string]bool),
	}
}

// SendCommand records the setpoint or returns an error if configured to fail.
func (m *MockPublisher) SendCommand(assetID string, powerW float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[assetID] {
		return "", fmt.Errorf("publish failed")
	}
	m.Messages[assetID] = powerW
	commandID := fmt.Sprintf("cmd-%s", assetID)
	m.AckResults[commandID] = true
	return commandID, nil
}

// Sent returns a copy of the last setpoint per asset.
func (m *MockPublisher) Sent() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]float64, len(m.Messages))
	for k, v := range m.Messages {
		out[k] = v
	}
	return out
}

// WaitForAck simulates an immediate acknowledgment based on the stored result.
func (m *MockPublisher) WaitForAck(commandID string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	ok, exists := m.AckResults[commandID]
	m.mu.Unlock()
	if !exists {
		return false, fmt.Errorf("command %s: %w", commandID, coremqtt.ErrUnknownCommand)
	}
	return ok, nil
}
