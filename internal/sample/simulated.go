package sample

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/hammamikhairi/rendezvouscoach/internal/clock"
	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
)

// SimOption configures a Simulated source.
type SimOption func(*Simulated)

// WithSpeed sets the walker's mean speed in m/s.
func WithSpeed(v float64) SimOption {
	return func(s *Simulated) { s.speed = func(time.Duration) float64 { return v } }
}

// WithSpeedProfile makes speed a function of time since the start, for
// walkers that tire or sprint.
func WithSpeedProfile(fn func(elapsed time.Duration) float64) SimOption {
	return func(s *Simulated) { s.speed = fn }
}

// WithNoise sets the standard deviation, in meters, of the reported
// remaining distance. GPS-like jitter.
func WithNoise(sigma float64) SimOption {
	return func(s *Simulated) { s.noise = sigma }
}

// WithInterval sets the clock time between samples.
func WithInterval(d time.Duration) SimOption {
	return func(s *Simulated) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithJitter randomizes each interval by up to ±j.
func WithJitter(j time.Duration) SimOption {
	return func(s *Simulated) { s.jitter = j }
}

// WithSeed makes the noise reproducible.
func WithSeed(seed int64) SimOption {
	return func(s *Simulated) { s.rng = rand.New(rand.NewSource(seed)) }
}

var _ domain.SampleSource = (*Simulated)(nil)

// Simulated walks a route of the given length and reports the remaining
// distance at irregular intervals until it arrives.
type Simulated struct {
	once
	distance float64
	clock    clock.Clock
	speed    func(time.Duration) float64
	noise    float64
	interval time.Duration
	jitter   time.Duration
	rng      *rand.Rand
}

// NewSimulated creates a walker covering distance meters.
func NewSimulated(distance float64, clk clock.Clock, opts ...SimOption) *Simulated {
	s := &Simulated{
		distance: distance,
		clock:    clk,
		speed:    func(time.Duration) float64 { return 1.4 },
		interval: 5 * time.Second,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Samples implements domain.SampleSource.
func (s *Simulated) Samples(ctx context.Context) (<-chan domain.Sample, error) {
	if err := s.claim("simulated source"); err != nil {
		return nil, err
	}
	out := make(chan domain.Sample)
	go s.walk(ctx, out)
	return out, nil
}

func (s *Simulated) walk(ctx context.Context, out chan<- domain.Sample) {
	defer close(out)

	start := s.clock.Now()
	last := start
	remaining := s.distance

	for {
		now := s.clock.Now()
		dt := now.Sub(last).Seconds()
		remaining -= math.Max(0, s.speed(now.Sub(start))) * dt
		if remaining < 0 {
			remaining = 0
		}
		last = now

		reported := remaining
		if remaining > 0 && s.noise > 0 {
			reported = math.Max(0, remaining+s.rng.NormFloat64()*s.noise)
		}

		select {
		case out <- domain.Sample{At: now, Kind: domain.ProgressRemaining, Value: reported}:
		case <-ctx.Done():
			return
		}
		if remaining == 0 {
			return
		}

		wait := s.interval
		if s.jitter > 0 {
			wait += time.Duration(s.rng.Int63n(int64(2*s.jitter))) - s.jitter
		}
		if wait < time.Second {
			wait = time.Second
		}

		t := time.NewTimer(s.clock.Real(wait))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}
}
