package cue

import (
	"time"

	"github.com/google/uuid"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
	"github.com/hammamikhairi/rendezvouscoach/internal/lexicon"
	"github.com/hammamikhairi/rendezvouscoach/internal/logger"
)

// Decision is what the caller must do after a scheduler call. Cancel is
// always carried out before Speak.
type Decision struct {
	Speak  *domain.CueEvent
	Cancel bool
}

// None reports whether the decision asks for nothing.
func (d Decision) None() bool { return d.Speak == nil && !d.Cancel }

// Option configures the scheduler.
type Option func(*Scheduler)

// WithCooldowns overrides the per-urgency cooldowns.
func WithCooldowns(c Cooldowns) Option {
	return func(s *Scheduler) {
		s.cooldowns = c
	}
}

// WithWatchdog sets the Speaking ceiling.
func WithWatchdog(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.watchdog = d
		}
	}
}

// WithIDFunc replaces the cue ID generator. Tests use it for stable IDs.
func WithIDFunc(fn func() string) Option {
	return func(s *Scheduler) {
		s.newID = fn
	}
}

// Scheduler runs the Idle / Speaking / Cooldown machine. It is not safe
// for concurrent use; the coach loop owns it.
type Scheduler struct {
	lex       lexicon.Lexicon
	log       *logger.Logger
	cooldowns Cooldowns
	watchdog  time.Duration
	newID     func() string

	state         domain.CueState
	ended         bool
	inFlight      *domain.CueEvent
	speakingSince time.Time
	lastCueAt     time.Time
	cooldownUntil time.Time
	cuedBand      domain.Band
	lastBand      domain.Band
	lastDev       time.Duration

	// abandoned is the cue the watchdog gave up on. The sink may still
	// hold it, so the next cue cancels it first.
	abandoned string

	// After an improvement during cooldown, bands no worse than cuedBand
	// stay quiet until settledUntil.
	settledUntil time.Time
}

// NewScheduler creates an idle scheduler rendering text with lex.
func NewScheduler(lex lexicon.Lexicon, log *logger.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		lex:       lex,
		log:       log,
		cooldowns: DefaultCooldowns(),
		watchdog:  DefaultWatchdog,
		newID:     uuid.NewString,
		state:     domain.CueIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate feeds a freshly classified pacing state.
func (s *Scheduler) Evaluate(now time.Time, ps domain.PacingState) Decision {
	if s.ended {
		return Decision{}
	}
	s.lastBand = ps.Band
	s.lastDev = ps.Deviation
	s.advance(now)

	band := ps.Band
	switch s.state {
	case domain.CueSpeaking:
		// The only interrupt path.
		if band.MoreUrgentThan(s.cuedBand) {
			s.log.Info("escalating %s -> %s, interrupting", s.cuedBand, band)
			return s.speak(now, band, ps.Deviation, true)
		}
		return Decision{}

	case domain.CueCooldown:
		if !band.Known() {
			return Decision{}
		}
		if band == domain.BandOnTime {
			s.log.Debug("back on time during cooldown, dropping re-affirmation")
			s.state = domain.CueIdle
			return Decision{}
		}
		if band.Direction() == s.cuedBand.Direction() && s.cuedBand.MoreUrgentThan(band) {
			s.log.Debug("improved %s -> %s during cooldown, dropping re-affirmation", s.cuedBand, band)
			s.state = domain.CueIdle
			s.settledUntil = now.Add(s.cooldowns.For(band.Urgency()))
			return Decision{}
		}
		if band.Direction() != s.cuedBand.Direction() {
			// Crossed on_time between samples.
			s.log.Debug("pace flipped %s -> %s during cooldown", s.cuedBand, band)
			s.state = domain.CueIdle
			return s.speak(now, band, ps.Deviation, false)
		}
		if band.MoreUrgentThan(s.cuedBand) {
			s.log.Info("worsened %s -> %s during cooldown", s.cuedBand, band)
			return s.speak(now, band, ps.Deviation, false)
		}
		return Decision{}

	default:
		if cueworthy(band) && !s.settled(now, band) {
			return s.speak(now, band, ps.Deviation, false)
		}
		return Decision{}
	}
}

// Tick advances timers without a new sample. When a cooldown expires and
// the last known band is still off-time, the cue is re-affirmed.
func (s *Scheduler) Tick(now time.Time) Decision {
	if s.ended {
		return Decision{}
	}
	s.advance(now)
	if s.state == domain.CueIdle && cueworthy(s.lastBand) && !s.settled(now, s.lastBand) {
		return s.speak(now, s.lastBand, s.lastDev, false)
	}
	return Decision{}
}

// OnSpeechDone reports the completion of the cue with the given ID. A
// failure is logged and treated as completion. Stale IDs are ignored and
// the call reports false.
func (s *Scheduler) OnSpeechDone(now time.Time, id string, err error) bool {
	if id != "" && id == s.abandoned {
		s.abandoned = ""
		return false
	}
	if s.state != domain.CueSpeaking || s.inFlight == nil || s.inFlight.ID != id {
		return false
	}
	if err != nil {
		s.log.Warn("cue %s failed, cooling down anyway: %v", id, err)
	}
	s.enterCooldown(now)
	return true
}

// End forces Idle and cancels speech in flight. Further calls are no-ops.
func (s *Scheduler) End() Decision {
	d := Decision{Cancel: s.state == domain.CueSpeaking || s.abandoned != ""}
	s.state = domain.CueIdle
	s.inFlight = nil
	s.abandoned = ""
	s.ended = true
	return d
}

// InFlight returns the cue currently being spoken, if any.
func (s *Scheduler) InFlight() (domain.CueEvent, bool) {
	if s.inFlight == nil {
		return domain.CueEvent{}, false
	}
	return *s.inFlight, true
}

// State returns a read-only view of the machine.
func (s *Scheduler) State() domain.SchedulerState {
	return domain.SchedulerState{
		State:         s.state,
		LastCueAt:     s.lastCueAt,
		LastBand:      s.lastBand,
		CuedBand:      s.cuedBand,
		SynthesisBusy: s.state == domain.CueSpeaking,
		CooldownUntil: s.cooldownUntil,
	}
}

// advance applies the watchdog and cooldown expiry.
func (s *Scheduler) advance(now time.Time) {
	if s.state == domain.CueSpeaking && !now.Before(s.speakingSince.Add(s.watchdog)) {
		s.log.Warn("no completion for cue %s after %s, assuming done", s.inFlight.ID, s.watchdog)
		s.abandoned = s.inFlight.ID
		s.enterCooldown(now)
	}
	if s.state == domain.CueCooldown && !now.Before(s.cooldownUntil) {
		s.log.Debug("cooldown over")
		s.state = domain.CueIdle
	}
}

func (s *Scheduler) enterCooldown(now time.Time) {
	s.state = domain.CueCooldown
	s.inFlight = nil
	s.cooldownUntil = now.Add(s.cooldowns.For(s.cuedBand.Urgency()))
}

// settled reports whether band is covered by an improvement the walker
// already made.
func (s *Scheduler) settled(now time.Time, band domain.Band) bool {
	return now.Before(s.settledUntil) &&
		band.Direction() == s.cuedBand.Direction() &&
		!band.MoreUrgentThan(s.cuedBand)
}

func (s *Scheduler) speak(now time.Time, band domain.Band, dev time.Duration, cancel bool) Decision {
	if s.abandoned != "" {
		s.log.Debug("withdrawing unfinished cue %s", s.abandoned)
		cancel = true
		s.abandoned = ""
	}
	s.settledUntil = time.Time{}
	ev := &domain.CueEvent{
		ID:          s.newID(),
		Text:        s.lex.Cue(band, dev),
		Urgency:     band.Urgency(),
		Band:        band,
		Deviation:   dev,
		GeneratedAt: now,
	}
	s.state = domain.CueSpeaking
	s.inFlight = ev
	s.speakingSince = now
	s.lastCueAt = now
	s.cuedBand = band

	out := *ev
	return Decision{Speak: &out, Cancel: cancel}
}

func cueworthy(b domain.Band) bool {
	return b.Known() && b != domain.BandOnTime
}
