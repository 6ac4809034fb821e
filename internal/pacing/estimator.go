// Package pacing turns raw progress samples into a smoothed pace, a
// projected arrival time and a deviation band.
package pacing

import (
	"math"
	"time"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
)

// maxProjection caps how far ahead an arrival is projected. Anything
// beyond it is hopeless either way and would overflow time.Duration.
const maxProjection = 7 * 24 * time.Hour

// Option configures the estimator.
type Option func(*Estimator)

// WithHalfLife sets the EWMA half-life. Shorter reacts faster, longer
// smooths more sensor noise.
func WithHalfLife(d time.Duration) Option {
	return func(e *Estimator) {
		if d > 0 {
			e.halfLife = d
		}
	}
}

// WithMinResolution sets the minimum spacing between accepted samples.
func WithMinResolution(d time.Duration) Option {
	return func(e *Estimator) {
		if d > 0 {
			e.minResolution = d
		}
	}
}

// WithMinPace sets the speed (m/s) below which the user counts as
// stationary and no arrival can be projected.
func WithMinPace(v float64) Option {
	return func(e *Estimator) {
		if v > 0 {
			e.minPace = v
		}
	}
}

// Estimator smooths instantaneous speed with a time-aware exponentially
// weighted moving average. It is not safe for concurrent use; the coach
// loop owns it.
type Estimator struct {
	target        domain.Target
	halfLife      time.Duration
	minResolution time.Duration
	minPace       float64

	hasLast       bool
	lastAt        time.Time
	lastRemaining float64

	hasPace bool
	pace    float64
}

// NewEstimator creates an estimator for the given target.
func NewEstimator(target domain.Target, opts ...Option) *Estimator {
	e := &Estimator{
		target:        target,
		halfLife:      20 * time.Second,
		minResolution: time.Second,
		minPace:       0.05,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Update folds a sample into the smoothing state and returns the new
// pacing state. Deviation and Band are left for Classify. A rejected
// sample returns a *domain.SampleRejectedError and leaves state untouched.
func (e *Estimator) Update(s domain.Sample) (domain.PacingState, error) {
	if s.At.IsZero() {
		return domain.PacingState{}, &domain.SampleRejectedError{At: s.At, Reason: domain.ErrSampleMalformed, Detail: "missing timestamp"}
	}
	if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) || s.Value < 0 {
		return domain.PacingState{}, &domain.SampleRejectedError{At: s.At, Reason: domain.ErrSampleMalformed, Detail: "distance must be a finite non-negative number"}
	}
	if e.hasLast && s.At.Before(e.lastAt.Add(e.minResolution)) {
		return domain.PacingState{}, &domain.SampleRejectedError{
			At:     s.At,
			Reason: domain.ErrSampleOutOfOrder,
			Detail: "previous accepted at " + e.lastAt.Format(time.TimeOnly),
		}
	}

	remaining := e.target.RemainingFrom(s)

	if e.hasLast {
		dt := s.At.Sub(e.lastAt).Seconds()
		inst := e.clamp((e.lastRemaining - remaining) / dt)
		if !e.hasPace {
			e.pace = inst
			e.hasPace = true
		} else {
			alpha := 1 - math.Exp2(-dt/e.halfLife.Seconds())
			e.pace += alpha * (inst - e.pace)
		}
	}

	e.hasLast = true
	e.lastAt = s.At
	e.lastRemaining = remaining

	return e.state(s.At, remaining), nil
}

// clamp applies the target corridor to an instantaneous speed.
func (e *Estimator) clamp(v float64) float64 {
	c := e.target.Corridor
	if c == nil {
		return v
	}
	if v < 0 {
		v = 0
	}
	if c.MaxSpeed > 0 && v > c.MaxSpeed {
		v = c.MaxSpeed
	}
	return v
}

func (e *Estimator) state(at time.Time, remaining float64) domain.PacingState {
	ps := domain.PacingState{
		At:        at,
		Remaining: remaining,
		Pace:      e.pace,
		Band:      domain.BandUnknown,
	}
	if left := e.target.Rendezvous.Sub(at).Seconds(); left > 0 {
		ps.RequiredPace = remaining / left
	}

	switch {
	case remaining <= 0:
		ps.Remaining = 0
		ps.HasEstimate = true
		ps.ProjectedArrival = at
	case e.hasPace && e.pace > e.stationaryBelow():
		ps.HasEstimate = true
		eta := maxProjection
		if secs := remaining / e.pace; secs < maxProjection.Seconds() {
			eta = time.Duration(secs * float64(time.Second))
		}
		ps.ProjectedArrival = at.Add(eta)
	}
	return ps
}

// stationaryBelow is the smoothed speed under which no arrival is
// projected: the larger of the configured minimum pace and the corridor
// floor.
func (e *Estimator) stationaryBelow() float64 {
	if c := e.target.Corridor; c != nil && c.MinSpeed > e.minPace {
		return c.MinSpeed
	}
	return e.minPace
}

// Pace returns the current smoothed speed and whether one exists yet.
func (e *Estimator) Pace() (float64, bool) {
	return e.pace, e.hasPace
}
