package domain

import "time"

// Plan describes a trip: when to be there, how long the trip takes and
// how far it is. A Plan yields the session Target.
type Plan struct {
	Name         string
	Description  string
	Rendezvous   time.Time
	TripDuration time.Duration
	Distance     float64       // meters
	AlertWindow  time.Duration // how early the departure countdown starts
	Corridor     *Corridor
}

// DepartureTime is when the user has to leave to make the rendezvous.
func (p Plan) DepartureTime() time.Time {
	return p.Rendezvous.Add(-p.TripDuration)
}

// Target returns the pacing target for this plan.
func (p Plan) Target() Target {
	return Target{Rendezvous: p.Rendezvous, Distance: p.Distance, Corridor: p.Corridor}
}

// PlanSummary is a lightweight view of a plan for listing.
type PlanSummary struct {
	Name        string
	Description string
	Distance    float64
	Trip        time.Duration
}

// VoiceConfig is passed through unchanged to the synthesis backend.
// Multipliers of 0 mean "backend default".
type VoiceConfig struct {
	Name     string
	Language string
	Rate     float64
	Pitch    float64
	Volume   float64
}
