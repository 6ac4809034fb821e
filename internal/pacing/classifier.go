package pacing

import (
	"fmt"
	"time"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
)

// Thresholds are the inclusive upper bounds of each band, measured on
// |deviation|. Anything above Moderate is critical.
type Thresholds struct {
	OnTime   time.Duration `yaml:"on_time"`
	Slight   time.Duration `yaml:"slight"`
	Moderate time.Duration `yaml:"moderate"`
}

// DefaultThresholds returns 15s / 60s / 180s.
func DefaultThresholds() Thresholds {
	return Thresholds{
		OnTime:   15 * time.Second,
		Slight:   60 * time.Second,
		Moderate: 180 * time.Second,
	}
}

// Validate checks the thresholds are positive and strictly increasing.
func (t Thresholds) Validate() error {
	if t.OnTime <= 0 {
		return fmt.Errorf("on_time threshold must be positive, got %s", t.OnTime)
	}
	if t.Slight <= t.OnTime {
		return fmt.Errorf("slight threshold %s must exceed on_time %s", t.Slight, t.OnTime)
	}
	if t.Moderate <= t.Slight {
		return fmt.Errorf("moderate threshold %s must exceed slight %s", t.Moderate, t.Slight)
	}
	return nil
}

// Classify compares the projected arrival with the rendezvous. Positive
// deviation means running late. Without an estimate the band is unknown
// and the deviation zero.
func Classify(state domain.PacingState, target domain.Target, th Thresholds) (time.Duration, domain.Band) {
	if !state.HasEstimate {
		return 0, domain.BandUnknown
	}
	dev := state.ProjectedArrival.Sub(target.Rendezvous)
	return dev, BandFor(dev, th)
}

// BandFor maps a deviation to its band. Boundaries are inclusive on the
// less severe side.
func BandFor(dev time.Duration, th Thresholds) domain.Band {
	abs := dev
	if abs < 0 {
		abs = -abs
	}

	var step int
	switch {
	case abs <= th.OnTime:
		return domain.BandOnTime
	case abs <= th.Slight:
		step = 1
	case abs <= th.Moderate:
		step = 2
	default:
		step = 3
	}
	if dev < 0 {
		return domain.BandOnTime - domain.Band(step)
	}
	return domain.BandOnTime + domain.Band(step)
}
