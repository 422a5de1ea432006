package mqtt

import (
	"fmt"
	"sync"
	"time"

	"github.com/jakewins/price-signals/core/model"
	coremqtt "github.com/jakewins/price-signals/core/mqtt"
)

// Client mirrors the core mqtt.Client interface.
type Client = coremqtt.Client

// MockPublisher is a simple publisher used in tests.
type MockPublisher struct {
	Schedules  map[string][]model.Amps
	FailIDs    map[string]bool
	AckResults map[string]bool
	mu         sync.Mutex
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		Schedules:  make(map[string][]model.Amps),
		FailIDs:    make(map[string]bool),
		AckResults: make(map[string]bool),
	}
}

// SendSchedule records the schedule or returns an error if configured to fail.
func (m *MockPublisher) SendSchedule(deviceID string, draws []model.Amps) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[deviceID] {
		return "", fmt.Errorf("publish failed")
	}
	m.Schedules[deviceID] = append([]model.Amps(nil), draws...)
	commandID := fmt.Sprintf("cmd-%s", deviceID)
	m.AckResults[commandID] = true
	return commandID, nil
}

// WaitForAck simulates an immediate acknowledgment based on the stored result.
func (m *MockPublisher) WaitForAck(commandID string, timeout time.Duration) (bool, error) {
	m.mu.Lock()
	ok, exists := m.AckResults[commandID]
	m.mu.Unlock()
	if !exists {
		return false, fmt.Errorf("unknown command")
	}
	return ok, nil
}
