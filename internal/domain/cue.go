package domain

import "time"

// CueEvent is one spoken feedback utterance. It is an inert value: the
// sink receives a copy, never a reference into scheduler state.
type CueEvent struct {
	ID          string
	Text        string
	Urgency     Urgency
	Band        Band
	Deviation   time.Duration
	GeneratedAt time.Time
}

// CueState is the scheduler's state machine position.
type CueState int

const (
	CueIdle CueState = iota
	CueSpeaking
	CueCooldown
)

// String returns a human-readable cue state.
func (s CueState) String() string {
	switch s {
	case CueIdle:
		return "idle"
	case CueSpeaking:
		return "speaking"
	case CueCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// SchedulerState is a read-only view of the cue scheduler.
type SchedulerState struct {
	State         CueState
	LastCueAt     time.Time
	LastBand      Band // most recent band evaluated
	CuedBand      Band // band of the last cue spoken
	SynthesisBusy bool
	CooldownUntil time.Time
}
