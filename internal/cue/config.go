// Package cue decides when the coach speaks. The Scheduler is a
// synchronous state machine: callers pass the current time and receive
// a Decision to carry out against the speech sink.
package cue

import (
	"fmt"
	"time"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
)

// Cooldowns are the minimum gaps before a cue of the same urgency may be
// re-affirmed. Urgent bands repeat sooner.
type Cooldowns struct {
	Critical time.Duration `yaml:"critical"`
	Plain    time.Duration `yaml:"plain"`
	Slight   time.Duration `yaml:"slight"`
}

// DefaultCooldowns returns 20s / 45s / 90s.
func DefaultCooldowns() Cooldowns {
	return Cooldowns{
		Critical: 20 * time.Second,
		Plain:    45 * time.Second,
		Slight:   90 * time.Second,
	}
}

// For returns the cooldown for a band's urgency.
func (c Cooldowns) For(u domain.Urgency) time.Duration {
	switch u {
	case domain.UrgencyHigh:
		return c.Critical
	case domain.UrgencyMedium:
		return c.Plain
	default:
		return c.Slight
	}
}

// Validate requires positive cooldowns that do not grow with urgency.
func (c Cooldowns) Validate() error {
	if c.Critical <= 0 || c.Plain <= 0 || c.Slight <= 0 {
		return fmt.Errorf("cooldowns must be positive (critical=%s plain=%s slight=%s)", c.Critical, c.Plain, c.Slight)
	}
	if c.Critical > c.Plain || c.Plain > c.Slight {
		return fmt.Errorf("cooldowns must shrink with urgency (critical=%s plain=%s slight=%s)", c.Critical, c.Plain, c.Slight)
	}
	return nil
}

// DefaultWatchdog is how long Speaking may last without a completion
// before the scheduler gives up waiting.
const DefaultWatchdog = 30 * time.Second
