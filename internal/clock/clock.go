// Package clock lets the coach run on wall time or on an accelerated
// simulation clock.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current time and converts clock durations to the
// wall-time durations timers should actually wait.
type Clock interface {
	Now() time.Time
	Real(d time.Duration) time.Duration
}

// Wall is the system clock.
type Wall struct{}

func (Wall) Now() time.Time                     { return time.Now() }
func (Wall) Real(d time.Duration) time.Duration { return d }

// Scaled runs factor times faster than wall time, starting at start.
type Scaled struct {
	start  time.Time
	origin time.Time
	factor float64
}

// NewScaled returns a clock reading start now and advancing factor
// seconds per wall second. A factor of 0 or less means 1.
func NewScaled(start time.Time, factor float64) *Scaled {
	if factor <= 0 {
		factor = 1
	}
	return &Scaled{start: start, origin: time.Now(), factor: factor}
}

func (s *Scaled) Now() time.Time {
	return s.start.Add(time.Duration(float64(time.Since(s.origin)) * s.factor))
}

func (s *Scaled) Real(d time.Duration) time.Duration {
	return time.Duration(float64(d) / s.factor)
}

// Factor returns the speed-up.
func (s *Scaled) Factor() float64 { return s.factor }

// Manual only moves when told to. Real durations are tiny so loops
// driven by it spin quickly in tests.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual returns a manual clock reading now.
func NewManual(now time.Time) *Manual { return &Manual{now: now} }

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Real(time.Duration) time.Duration { return time.Millisecond }

// Advance moves the clock forward.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}
