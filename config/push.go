package config

import "time"

// PushConfig controls pushing final schedules to devices over MQTT after a
// run. The broker connection itself is configured in the mqtt section.
type PushConfig struct {
	Enabled           bool `json:"enabled"`
	AckTimeoutSeconds int  `json:"ack_timeout_seconds"`
}

// SetDefaults applies fallback values for optional fields.
func (c *PushConfig) SetDefaults() {
	if c.AckTimeoutSeconds <= 0 {
		c.AckTimeoutSeconds = 5
	}
}

// AckTimeout is how long the service waits for each device to acknowledge
// its schedule.
func (c PushConfig) AckTimeout() time.Duration {
	return time.Duration(c.AckTimeoutSeconds) * time.Second
}
