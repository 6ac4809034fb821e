package coach

import (
	"context"
	"time"

	"github.com/hammamikhairi/rendezvouscoach/internal/clock"
	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
	"github.com/hammamikhairi/rendezvouscoach/internal/lexicon"
	"github.com/hammamikhairi/rendezvouscoach/internal/logger"
)

// CountdownOption configures the countdown.
type CountdownOption func(*Countdown)

// WithAlertWindow sets how long before departure announcements start.
func WithAlertWindow(d time.Duration) CountdownOption {
	return func(c *Countdown) {
		c.window = d
	}
}

// WithAnnounceInterval sets the time between announcements inside the
// alert window.
func WithAnnounceInterval(d time.Duration) CountdownOption {
	return func(c *Countdown) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithCountdownClock replaces the wall clock.
func WithCountdownClock(clk clock.Clock) CountdownOption {
	return func(c *Countdown) {
		c.clock = clk
	}
}

// Countdown announces the time left before departure. It stays quiet
// until the alert window opens, then speaks every interval, and finally
// says it is time to leave.
type Countdown struct {
	departure time.Time
	lex       lexicon.Lexicon
	notifier  domain.Notifier
	log       *logger.Logger
	clock     clock.Clock
	window    time.Duration
	interval  time.Duration
	poll      time.Duration
}

// NewCountdown creates a countdown to departure.
func NewCountdown(departure time.Time, lex lexicon.Lexicon, notifier domain.Notifier, log *logger.Logger, opts ...CountdownOption) *Countdown {
	c := &Countdown{
		departure: departure,
		lex:       lex,
		notifier:  notifier,
		log:       log,
		clock:     clock.Wall{},
		window:    10 * time.Minute,
		interval:  time.Minute,
		poll:      time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run blocks until departure or ctx is done. A departure already in the
// past returns at once after the "time to leave" line.
func (c *Countdown) Run(ctx context.Context) error {
	c.log.Info("countdown started (departure %s, window=%s, every %s)",
		c.departure.Format(time.TimeOnly), c.window, c.interval)

	var last time.Time
	for {
		now := c.clock.Now()
		left := c.departure.Sub(now)

		if left <= 0 {
			c.announce(ctx, c.lex.RemainingTime(0), true)
			return nil
		}

		if left <= c.window && (last.IsZero() || now.Sub(last) >= c.interval) {
			c.announce(ctx, c.lex.RemainingTime(left.Round(time.Second)), false)
			last = now
		} else {
			c.log.Debug("countdown: %s to departure", left.Round(time.Second))
		}

		wait := c.poll
		if left < wait {
			wait = left
		}
		t := time.NewTimer(c.clock.Real(wait))
		select {
		case <-ctx.Done():
			t.Stop()
			c.log.Info("countdown stopped")
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (c *Countdown) announce(ctx context.Context, msg string, urgent bool) {
	notify := c.notifier.Notify
	if urgent {
		notify = c.notifier.NotifyUrgent
	}
	if err := notify(ctx, msg); err != nil {
		c.log.Error("countdown: notify: %v", err)
	}
}
