// Package plan provides trip plans: built-in presets and plans defined in
// the session config.
package plan

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
	"github.com/hammamikhairi/rendezvouscoach/internal/logger"
)

var _ domain.PlanSource = (*MemorySource)(nil)

// preset is a plan whose rendezvous is relative to when it is fetched.
type preset struct {
	description string
	lead        time.Duration // rendezvous = now + lead
	trip        time.Duration
	distance    float64
	alert       time.Duration
	maxSpeed    float64
}

var presets = map[string]preset{
	"commute": {
		description: "Walk to the office, 2 km, meeting in 45 minutes",
		lead:        45 * time.Minute,
		trip:        25 * time.Minute,
		distance:    2000,
		alert:       15 * time.Minute,
		maxSpeed:    3,
	},
	"station": {
		description: "Catch the train, 1.1 km, departs in 20 minutes",
		lead:        20 * time.Minute,
		trip:        12 * time.Minute,
		distance:    1100,
		alert:       5 * time.Minute,
		maxSpeed:    4,
	},
	"tempo-5k": {
		description: "5 km run at 5:00/km, start in one minute",
		lead:        26 * time.Minute,
		trip:        25 * time.Minute,
		distance:    5000,
		alert:       time.Minute,
		maxSpeed:    7,
	},
}

// MemorySource holds plans in memory. Safe for concurrent use.
type MemorySource struct {
	now func() time.Time
	log *logger.Logger

	mu     sync.RWMutex
	custom map[string]domain.Plan
}

// NewMemorySource creates a source with the built-in presets. now anchors
// preset rendezvous times.
func NewMemorySource(now func() time.Time, log *logger.Logger) *MemorySource {
	return &MemorySource{now: now, log: log, custom: make(map[string]domain.Plan)}
}

// Add registers or replaces a fixed plan. Custom plans shadow presets.
func (s *MemorySource) Add(p domain.Plan) error {
	if err := Validate(p); err != nil {
		return err
	}
	s.mu.Lock()
	s.custom[strings.ToLower(p.Name)] = p
	s.mu.Unlock()
	s.log.Debug("plan added: %s (rendezvous %s)", p.Name, p.Rendezvous.Format(time.Kitchen))
	return nil
}

// List returns every plan, sorted by name.
func (s *MemorySource) List(ctx context.Context) ([]domain.PlanSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []domain.PlanSummary
	for key, p := range s.custom {
		seen[key] = true
		out = append(out, domain.PlanSummary{Name: p.Name, Description: p.Description, Distance: p.Distance, Trip: p.TripDuration})
	}
	for name, p := range presets {
		if !seen[name] {
			out = append(out, domain.PlanSummary{Name: name, Description: p.description, Distance: p.distance, Trip: p.trip})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get returns a plan by name, case-insensitively.
func (s *MemorySource) Get(ctx context.Context, name string) (*domain.Plan, error) {
	key := strings.ToLower(strings.TrimSpace(name))

	s.mu.RLock()
	p, ok := s.custom[key]
	s.mu.RUnlock()
	if ok {
		return clonePlan(p), nil
	}

	pre, ok := presets[key]
	if !ok {
		s.log.Debug("plan not found: %s", name)
		return nil, fmt.Errorf("plan %q: %w", name, domain.ErrNotFound)
	}
	now := s.now()
	return &domain.Plan{
		Name:         key,
		Description:  pre.description,
		Rendezvous:   now.Add(pre.lead).Truncate(time.Second),
		TripDuration: pre.trip,
		Distance:     pre.distance,
		AlertWindow:  pre.alert,
		Corridor:     &domain.Corridor{MaxSpeed: pre.maxSpeed},
	}, nil
}

// Validate checks a plan can be coached.
func Validate(p domain.Plan) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("plan name is empty: %w", domain.ErrConfigInvalid)
	case p.Rendezvous.IsZero():
		return fmt.Errorf("plan %s: rendezvous not set: %w", p.Name, domain.ErrConfigInvalid)
	case p.Distance <= 0:
		return fmt.Errorf("plan %s: distance must be positive: %w", p.Name, domain.ErrConfigInvalid)
	case p.TripDuration < 0 || p.AlertWindow < 0:
		return fmt.Errorf("plan %s: durations must not be negative: %w", p.Name, domain.ErrConfigInvalid)
	case p.Corridor != nil && p.Corridor.MaxSpeed > 0 && p.Corridor.MinSpeed > p.Corridor.MaxSpeed:
		return fmt.Errorf("plan %s: corridor min above max: %w", p.Name, domain.ErrConfigInvalid)
	}
	return nil
}

func clonePlan(p domain.Plan) *domain.Plan {
	if p.Corridor != nil {
		c := *p.Corridor
		p.Corridor = &c
	}
	return &p
}
