// Package domain defines the core types and interfaces for the pacing coach.
// All other packages depend on domain; domain depends on nothing.
package domain

import "time"

// ProgressKind says which scalar a Sample carries.
type ProgressKind int

const (
	// ProgressRemaining means Sample.Value is the distance still to cover.
	ProgressRemaining ProgressKind = iota
	// ProgressElapsed means Sample.Value is the distance covered so far.
	ProgressElapsed
)

// String returns a human-readable progress kind.
func (k ProgressKind) String() string {
	if k == ProgressElapsed {
		return "elapsed"
	}
	return "remaining"
}

// Sample is one timestamped progress reading, in meters.
type Sample struct {
	At    time.Time
	Kind  ProgressKind
	Value float64
}

// Corridor bounds plausible speeds in m/s. Zero fields are unbounded.
type Corridor struct {
	MinSpeed float64
	MaxSpeed float64
}

// Target is the rendezvous a session is paced against. Immutable once the
// session starts.
type Target struct {
	Rendezvous time.Time
	Distance   float64 // total route length in meters
	Corridor   *Corridor
}

// RemainingFrom converts a sample into meters still to cover.
func (t Target) RemainingFrom(s Sample) float64 {
	if s.Kind == ProgressElapsed {
		r := t.Distance - s.Value
		if r < 0 {
			return 0
		}
		return r
	}
	return s.Value
}

// PacingState is the estimator/classifier output for the latest accepted
// sample. Only the most recent value is ever kept.
type PacingState struct {
	At               time.Time
	Remaining        float64 // meters
	Pace             float64 // smoothed speed, m/s
	HasEstimate      bool    // false until a usable pace exists
	ProjectedArrival time.Time
	RequiredPace     float64 // m/s needed to arrive exactly on time
	Deviation        time.Duration
	Band             Band
}

// Arrived reports whether the route is complete.
func (p PacingState) Arrived() bool {
	return p.HasEstimate && p.Remaining <= 0
}

// Band is the discrete severity of a schedule deviation. Values are
// ordered from most ahead to most behind so comparisons are exact.
type Band int

const (
	BandUnknown Band = iota
	BandCriticallyAhead
	BandAhead
	BandSlightlyAhead
	BandOnTime
	BandSlightlyBehind
	BandBehind
	BandCriticallyBehind
)

// String returns the snake_case band name.
func (b Band) String() string {
	switch b {
	case BandCriticallyAhead:
		return "critically_ahead"
	case BandAhead:
		return "ahead"
	case BandSlightlyAhead:
		return "slightly_ahead"
	case BandOnTime:
		return "on_time"
	case BandSlightlyBehind:
		return "slightly_behind"
	case BandBehind:
		return "behind"
	case BandCriticallyBehind:
		return "critically_behind"
	default:
		return "unknown"
	}
}

// Urgency is how strongly a band asks for a correction.
type Urgency int

const (
	UrgencyNone Urgency = iota // on_time or unknown
	UrgencyLow                 // slightly_*
	UrgencyMedium              // ahead / behind
	UrgencyHigh                // critically_*
)

// String returns a human-readable urgency.
func (u Urgency) String() string {
	switch u {
	case UrgencyLow:
		return "low"
	case UrgencyMedium:
		return "medium"
	case UrgencyHigh:
		return "high"
	default:
		return "none"
	}
}

// Urgency returns the band's distance from on_time.
func (b Band) Urgency() Urgency {
	if b == BandUnknown {
		return UrgencyNone
	}
	d := int(b) - int(BandOnTime)
	if d < 0 {
		d = -d
	}
	return Urgency(d)
}

// Direction is -1 when ahead, +1 when behind, 0 for on_time and unknown.
func (b Band) Direction() int {
	switch {
	case b == BandUnknown || b == BandOnTime:
		return 0
	case b < BandOnTime:
		return -1
	default:
		return 1
	}
}

// Known reports whether the band came from a real estimate.
func (b Band) Known() bool { return b != BandUnknown }

// MoreUrgentThan reports whether b asks for a stronger correction than o.
func (b Band) MoreUrgentThan(o Band) bool {
	return b.Urgency() > o.Urgency()
}
