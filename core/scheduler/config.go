package scheduler

import (
	"fmt"
	"time"
)

// SchedulerConfig defines how often duties are advanced.
type SchedulerConfig struct {
	Enabled     bool `json:"enabled" yaml:"enabled"`
	TickSeconds int  `json:"tick_seconds" yaml:"tick_seconds"`
}

// SetDefaults fills unset fields.
func (c *SchedulerConfig) SetDefaults() {
	if c.TickSeconds <= 0 {
		c.TickSeconds = 30
	}
}

// Validate checks the configuration.
func (c SchedulerConfig) Validate() error {
	if c.TickSeconds < 0 {
		return fmt.Errorf("tick_seconds must not be negative")
	}
	return nil
}

// Interval returns the tick period.
func (c SchedulerConfig) Interval() time.Duration {
	return time.Duration(c.TickSeconds) * time.Second
}
