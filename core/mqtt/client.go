package mqtt

import (
	"time"

	"github.com/jakewins/price-signals/core/model"
)

// Client represents an MQTT client capable of pushing finished charge
// schedules to devices and waiting for their acknowledgments.
type Client interface {
	// SendSchedule publishes the per-step draw plan for one device and
	// returns the command identifier used to track the acknowledgment.
	SendSchedule(deviceID string, draws []model.Amps) (commandID string, err error)

	// WaitForAck waits for an acknowledgment for the provided command
	// identifier or until the timeout expires.
	WaitForAck(commandID string, timeout time.Duration) (bool, error)
}
