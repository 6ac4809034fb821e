// Package coach runs a pacing session: it owns the estimator and the cue
// scheduler, reads progress samples and user commands, and drives the
// speech sink.
package coach

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hammamikhairi/rendezvouscoach/internal/clock"
	"github.com/hammamikhairi/rendezvouscoach/internal/cue"
	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
	"github.com/hammamikhairi/rendezvouscoach/internal/lexicon"
	"github.com/hammamikhairi/rendezvouscoach/internal/logger"
	"github.com/hammamikhairi/rendezvouscoach/internal/metrics"
	"github.com/hammamikhairi/rendezvouscoach/internal/pacing"
)

// Option configures the coach.
type Option func(*Coach)

// WithTickInterval sets how often cooldowns and the watchdog are checked
// when no sample arrives.
func WithTickInterval(d time.Duration) Option {
	return func(c *Coach) {
		if d > 0 {
			c.tickInterval = d
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(clk clock.Clock) Option {
	return func(c *Coach) {
		c.clock = clk
	}
}

// WithThresholds overrides the deviation bands.
func WithThresholds(th pacing.Thresholds) Option {
	return func(c *Coach) {
		c.thresholds = th
	}
}

// WithEstimatorOptions passes options through to the pace estimator.
func WithEstimatorOptions(opts ...pacing.Option) Option {
	return func(c *Coach) {
		c.estOpts = append(c.estOpts, opts...)
	}
}

// WithSchedulerOptions passes options through to the cue scheduler.
func WithSchedulerOptions(opts ...cue.Option) Option {
	return func(c *Coach) {
		c.schedOpts = append(c.schedOpts, opts...)
	}
}

// WithStore publishes a snapshot after every change.
func WithStore(store domain.SessionStore) Option {
	return func(c *Coach) {
		c.store = store
	}
}

// WithNotifier sets where command replies go.
func WithNotifier(n domain.Notifier) Option {
	return func(c *Coach) {
		c.notifier = n
	}
}

// WithMetrics records samples and cues.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coach) {
		c.metrics = m
	}
}

// WithCueObserver is called with every cue the scheduler emits, muted or
// not. The terminal uses it to print transcripts.
func WithCueObserver(fn func(domain.CueEvent)) Option {
	return func(c *Coach) {
		c.observe = fn
	}
}

// WithSession names the session and the plan it came from.
func WithSession(id, planName string) Option {
	return func(c *Coach) {
		if id != "" {
			c.session.ID = id
		}
		c.session.PlanName = planName
	}
}

// muter is implemented by notifiers that also speak.
type muter interface{ SetMuted(bool) }

// pendingCue is the cue the sink is currently working on.
type pendingCue struct {
	id    string
	since time.Time
	done  <-chan error
}

// Coach is one pacing session. Run owns all mutable state; Submit and
// Snapshot are safe to call from other goroutines.
type Coach struct {
	target       domain.Target
	sink         domain.SpeechSink
	lex          lexicon.Lexicon
	log          *logger.Logger
	clock        clock.Clock
	tickInterval time.Duration
	thresholds   pacing.Thresholds
	estOpts      []pacing.Option
	schedOpts    []cue.Option
	store        domain.SessionStore
	notifier     domain.Notifier
	metrics      *metrics.Metrics
	observe      func(domain.CueEvent)

	commands chan domain.Command

	// Owned by Run.
	est     *pacing.Estimator
	sched   *cue.Scheduler
	pending *pendingCue
	muted   bool

	mu      sync.Mutex
	session domain.Session
}

// New creates a coach for one target.
func New(target domain.Target, sink domain.SpeechSink, lex lexicon.Lexicon, log *logger.Logger, opts ...Option) *Coach {
	c := &Coach{
		target:       target,
		sink:         sink,
		lex:          lex,
		log:          log,
		clock:        clock.Wall{},
		tickInterval: time.Second,
		thresholds:   pacing.DefaultThresholds(),
		notifier:     discard{},
		commands:     make(chan domain.Command, 16),
		session: domain.Session{
			ID:     uuid.NewString(),
			Target: target,
			Status: domain.SessionActive,
			Pacing: domain.PacingState{Remaining: target.Distance},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.est = pacing.NewEstimator(target, c.estOpts...)
	c.sched = cue.NewScheduler(lex, log, c.schedOpts...)
	return c
}

// ID returns the session ID.
func (c *Coach) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ID
}

// Submit queues a user command without blocking. It reports false when
// the queue is full.
func (c *Coach) Submit(cmd domain.Command) bool {
	select {
	case c.commands <- cmd:
		return true
	default:
		c.log.Warn("command queue full, dropping %s", cmd.Type)
		return false
	}
}

// Snapshot returns a copy of the current session.
func (c *Coach) Snapshot() *domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

// Run coaches until arrival, a quit command, the end of the sample
// stream, or ctx being done. Only a source that cannot start is an error;
// a cancelled ctx returns ctx.Err().
func (c *Coach) Run(ctx context.Context, src domain.SampleSource) error {
	samples, err := src.Samples(ctx)
	if err != nil {
		return fmt.Errorf("starting sample source: %w", err)
	}

	now := c.clock.Now()
	c.update(func(s *domain.Session) {
		s.Status = domain.SessionActive
		s.StartedAt = now
		s.Scheduler = c.sched.State()
	})
	c.publish(ctx)
	c.log.Info("session %s started (rendezvous %s, %.0f m)", c.ID(), c.target.Rendezvous.Format(time.TimeOnly), c.target.Distance)

	ticker := time.NewTicker(c.clock.Real(c.tickInterval))
	defer ticker.Stop()

	for {
		var speechDone <-chan error
		if c.pending != nil {
			speechDone = c.pending.done
		}

		select {
		case <-ctx.Done():
			c.end(context.Background(), domain.SessionAbandoned)
			return ctx.Err()

		case s, ok := <-samples:
			if !ok {
				c.log.Info("sample stream closed")
				c.end(ctx, domain.SessionAbandoned)
				return nil
			}
			if c.handleSample(ctx, s) {
				return nil
			}

		case <-ticker.C:
			c.handleTick(ctx)

		case err := <-speechDone:
			c.handleSpeechDone(ctx, err)

		case cmd := <-c.commands:
			if c.handleCommand(ctx, cmd) {
				return nil
			}
		}
	}
}

// handleSample folds one sample in. It reports true when the walker has
// arrived and the session is over.
func (c *Coach) handleSample(ctx context.Context, s domain.Sample) bool {
	st, err := c.est.Update(s)
	if err != nil {
		var rej *domain.SampleRejectedError
		reason := "malformed"
		if errors.As(err, &rej) && errors.Is(rej.Reason, domain.ErrSampleOutOfOrder) {
			reason = "out_of_order"
		}
		c.log.Warn("%v", err)
		c.metrics.SampleRejected(reason)
		c.update(func(ss *domain.Session) { ss.Rejected++ })
		return false
	}

	st.Deviation, st.Band = pacing.Classify(st, c.target, c.thresholds)
	c.metrics.SampleAccepted(st)
	c.log.Debug("sample %.0f m left, pace %.2f m/s, %s (%s)", st.Remaining, st.Pace, st.Band, st.Deviation.Round(time.Second))

	c.update(func(ss *domain.Session) {
		ss.Pacing = st
		ss.Accepted++
	})

	if st.Arrived() {
		c.arrive(ctx, st)
		return true
	}

	c.execute(ctx, c.sched.Evaluate(c.clock.Now(), st))
	c.publish(ctx)
	return false
}

func (c *Coach) handleTick(ctx context.Context) {
	d := c.sched.Tick(c.clock.Now())
	c.execute(ctx, d)
	c.publish(ctx)
}

func (c *Coach) handleSpeechDone(ctx context.Context, err error) {
	p := c.pending
	c.pending = nil
	now := c.clock.Now()
	if p == nil {
		return
	}
	c.metrics.CueDone(now.Sub(p.since).Seconds(), err != nil && !errors.Is(err, domain.ErrSpeechCancelled))
	if !c.sched.OnSpeechDone(now, p.id, err) {
		c.log.Debug("late completion for cue %s ignored", p.id)
	}
	c.publish(ctx)
}

// handleCommand reports true when the user quit.
func (c *Coach) handleCommand(ctx context.Context, cmd domain.Command) bool {
	c.log.Debug("command: %s %q", cmd.Type, cmd.Payload)

	switch cmd.Type {
	case domain.CommandProgress:
		return c.handleSample(ctx, domain.Sample{At: c.clock.Now(), Kind: cmd.Kind, Value: cmd.Meters})

	case domain.CommandStatus:
		c.say(ctx, c.lex.Status(c.Snapshot().Pacing))

	case domain.CommandRepeat:
		last := c.Snapshot().LastCue
		if last == nil {
			c.say(ctx, c.lex.NothingToRepeat())
		} else {
			c.say(ctx, last.Text)
		}

	case domain.CommandMute:
		c.say(ctx, c.lex.Muted())
		c.setMuted(true)

	case domain.CommandUnmute:
		c.setMuted(false)
		c.say(ctx, c.lex.Unmuted())

	case domain.CommandHelp:
		c.say(ctx, c.lex.Help())

	case domain.CommandQuit:
		c.end(ctx, domain.SessionAbandoned)
		c.say(ctx, c.lex.Bye())
		return true

	default:
		if cmd.Payload != "" {
			c.say(ctx, c.lex.NotUnderstood(cmd.Payload))
		}
	}
	return false
}

// execute carries out a scheduler decision: cancel first, then speak.
func (c *Coach) execute(ctx context.Context, d cue.Decision) {
	if d.Cancel {
		c.log.Debug("cancelling cue in flight")
		c.sink.Cancel()
		c.pending = nil
		c.metrics.CueCancelled()
	}
	if d.Speak == nil {
		return
	}

	ev := *d.Speak
	c.update(func(s *domain.Session) { s.LastCue = &ev })
	c.metrics.CueSpoken(ev.Band)
	if c.observe != nil {
		c.observe(ev)
	}

	if c.muted {
		c.log.Debug("muted, not speaking %q", ev.Text)
		c.sched.OnSpeechDone(c.clock.Now(), ev.ID, nil)
		return
	}

	c.log.Info("cue [%s] %s", ev.Band, ev.Text)
	c.pending = &pendingCue{id: ev.ID, since: c.clock.Now(), done: c.sink.Speak(ctx, ev.Text, ev.Urgency)}
}

// arrive ends the session and speaks the arrival line once.
func (c *Coach) arrive(ctx context.Context, st domain.PacingState) {
	c.end(ctx, domain.SessionArrived)
	c.log.Info("arrived, %s against the rendezvous", st.Deviation.Round(time.Second))

	ev := domain.CueEvent{
		ID:          uuid.NewString(),
		Text:        c.lex.Arrived(st.Band, st.Deviation),
		Band:        st.Band,
		Deviation:   st.Deviation,
		GeneratedAt: c.clock.Now(),
	}
	c.update(func(s *domain.Session) { s.LastCue = &ev })
	c.publish(ctx)
	if c.observe != nil {
		c.observe(ev)
	}
	if c.muted {
		return
	}

	// Let the line play out before Run returns and the caller tears the
	// speech pipeline down.
	wait := time.NewTimer(c.clock.Real(cue.DefaultWatchdog))
	defer wait.Stop()
	select {
	case <-c.sink.Speak(ctx, ev.Text, domain.UrgencyNone):
	case <-wait.C:
		c.log.Warn("arrival line did not finish, moving on")
	case <-ctx.Done():
	}
}

// end stops the scheduler, cancelling any cue in flight.
func (c *Coach) end(ctx context.Context, status domain.SessionStatus) {
	c.execute(ctx, c.sched.End())
	c.pending = nil
	c.update(func(s *domain.Session) { s.Status = status })
	c.publish(ctx)
	c.log.Info("session %s %s", c.ID(), status)
}

func (c *Coach) setMuted(muted bool) {
	c.muted = muted
	if m, ok := c.notifier.(muter); ok {
		m.SetMuted(muted)
	}
}

// say delivers a command reply.
func (c *Coach) say(ctx context.Context, msg string) {
	if err := c.notifier.Notify(ctx, msg); err != nil {
		c.log.Error("notify: %v", err)
	}
}

// update mutates the session under the lock.
func (c *Coach) update(fn func(*domain.Session)) {
	c.mu.Lock()
	fn(&c.session)
	c.session.Scheduler = c.sched.State()
	c.session.UpdatedAt = c.clock.Now()
	c.mu.Unlock()
}

// publish refreshes the scheduler view of the session and saves a
// snapshot to the store.
func (c *Coach) publish(ctx context.Context) {
	c.update(func(*domain.Session) {})
	if c.store == nil {
		return
	}
	snap := c.Snapshot()
	if err := c.store.Save(ctx, snap); err != nil {
		c.log.Error("saving session %s: %v", snap.ID, err)
	}
}

// discard is the notifier used when none is configured.
type discard struct{}

func (discard) Notify(context.Context, string) error       { return nil }
func (discard) NotifyUrgent(context.Context, string) error { return nil }
