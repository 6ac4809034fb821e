package domain

import "time"

// Session is a point-in-time snapshot of a coaching session. Stores keep
// copies, so readers never observe the loop's live state.
type Session struct {
	ID        string
	PlanName  string
	Target    Target
	Pacing    PacingState
	Scheduler SchedulerState
	LastCue   *CueEvent
	Accepted  int
	Rejected  int
	Status    SessionStatus
	StartedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Target.Corridor != nil {
		corr := *s.Target.Corridor
		c.Target.Corridor = &corr
	}
	if s.LastCue != nil {
		cue := *s.LastCue
		c.LastCue = &cue
	}
	return &c
}

// SessionStatus tracks the lifecycle of a coaching session.
type SessionStatus int

const (
	SessionCountdown SessionStatus = iota // waiting for departure
	SessionActive
	SessionArrived
	SessionAbandoned
)

// String returns a human-readable session status.
func (s SessionStatus) String() string {
	switch s {
	case SessionCountdown:
		return "countdown"
	case SessionActive:
		return "active"
	case SessionArrived:
		return "arrived"
	case SessionAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Live reports whether the session is still being coached.
func (s SessionStatus) Live() bool {
	return s == SessionCountdown || s == SessionActive
}
