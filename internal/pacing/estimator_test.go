package pacing

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
)

var t0 = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

func remainingAt(at time.Time, meters float64) domain.Sample {
	return domain.Sample{At: at, Kind: domain.ProgressRemaining, Value: meters}
}

func TestFirstSampleHasNoEstimate(t *testing.T) {
	e := NewEstimator(domain.Target{Rendezvous: t0.Add(10 * time.Minute), Distance: 2000})

	ps, err := e.Update(remainingAt(t0, 2000))
	require.NoError(t, err)
	assert.False(t, ps.HasEstimate)
	assert.Equal(t, domain.BandUnknown, ps.Band)
	assert.InDelta(t, 2000.0/600.0, ps.RequiredPace, 1e-9)
}

func TestConstantSpeedProjectsArrival(t *testing.T) {
	// Rendezvous in 600s, 2000m left, moving at a pace that needs 720s.
	rv := t0.Add(600 * time.Second)
	speed := 2000.0 / 720.0
	e := NewEstimator(domain.Target{Rendezvous: rv, Distance: 2600})

	var ps domain.PacingState
	for i := 12; i >= 0; i-- {
		at := t0.Add(-time.Duration(i) * 5 * time.Second)
		var err error
		ps, err = e.Update(remainingAt(at, 2000+speed*float64(i)*5))
		require.NoError(t, err)
	}

	require.True(t, ps.HasEstimate)
	assert.InDelta(t, speed, ps.Pace, 1e-9)
	assert.InDelta(t, 720.0, ps.ProjectedArrival.Sub(t0).Seconds(), 1e-3)
}

func TestRejectsOutOfOrderAndDuplicates(t *testing.T) {
	e := NewEstimator(domain.Target{Rendezvous: t0.Add(time.Hour), Distance: 5000})

	_, err := e.Update(remainingAt(t0, 5000))
	require.NoError(t, err)
	_, err = e.Update(remainingAt(t0.Add(10*time.Second), 4970))
	require.NoError(t, err)

	tests := []struct {
		name string
		at   time.Time
	}{
		{"duplicate", t0.Add(10 * time.Second)},
		{"earlier", t0.Add(5 * time.Second)},
		{"below resolution", t0.Add(10*time.Second + 500*time.Millisecond)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Update(remainingAt(tt.at, 4960))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrSampleOutOfOrder))

			var rej *domain.SampleRejectedError
			require.True(t, errors.As(err, &rej))
			assert.Equal(t, tt.at, rej.At)
		})
	}

	// Prior state survives: the next valid sample continues the stream.
	ps, err := e.Update(remainingAt(t0.Add(20*time.Second), 4940))
	require.NoError(t, err)
	assert.InDelta(t, 3.0, ps.Pace, 1e-9)
}

func TestRejectsMalformed(t *testing.T) {
	e := NewEstimator(domain.Target{Rendezvous: t0.Add(time.Hour), Distance: 5000})

	for _, v := range []float64{math.NaN(), math.Inf(1), -3} {
		_, err := e.Update(remainingAt(t0, v))
		assert.ErrorIs(t, err, domain.ErrSampleMalformed, "value %v", v)
	}
	_, err := e.Update(domain.Sample{Value: 10})
	assert.ErrorIs(t, err, domain.ErrSampleMalformed)
}

func TestIncreasingTimestampsNeverError(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	e := NewEstimator(domain.Target{Rendezvous: t0.Add(time.Hour), Distance: 10000})

	at := t0
	remaining := 10000.0
	for i := 0; i < 500; i++ {
		at = at.Add(time.Second + time.Duration(rng.Int63n(int64(30*time.Second))))
		remaining -= rng.Float64()*40 - 5 // noisy, occasionally backwards
		if remaining < 0 {
			remaining = 0
		}
		_, err := e.Update(remainingAt(at, remaining))
		require.NoError(t, err, "sample %d", i)
	}
}

func TestStationaryHasNoEstimate(t *testing.T) {
	e := NewEstimator(domain.Target{Rendezvous: t0.Add(time.Hour), Distance: 1000})

	for i := 0; i < 5; i++ {
		ps, err := e.Update(remainingAt(t0.Add(time.Duration(i)*10*time.Second), 1000))
		require.NoError(t, err)
		assert.False(t, ps.HasEstimate)
	}
}

func TestHalfLifeWeighting(t *testing.T) {
	e := NewEstimator(domain.Target{Rendezvous: t0.Add(time.Hour), Distance: 5000}, WithHalfLife(20*time.Second))

	_, _ = e.Update(remainingAt(t0, 5000))
	ps, err := e.Update(remainingAt(t0.Add(20*time.Second), 4960)) // 2 m/s
	require.NoError(t, err)
	assert.InDelta(t, 2.0, ps.Pace, 1e-9)

	// One half-life at 4 m/s moves the average halfway.
	ps, err = e.Update(remainingAt(t0.Add(40*time.Second), 4880))
	require.NoError(t, err)
	assert.InDelta(t, 3.0, ps.Pace, 1e-9)
}

func TestCorridorClampsJumps(t *testing.T) {
	target := domain.Target{
		Rendezvous: t0.Add(time.Hour),
		Distance:   5000,
		Corridor:   &domain.Corridor{MaxSpeed: 5},
	}
	e := NewEstimator(target)

	_, _ = e.Update(remainingAt(t0, 5000))
	ps, err := e.Update(remainingAt(t0.Add(time.Second), 4500)) // GPS jump
	require.NoError(t, err)
	assert.Equal(t, 5.0, ps.Pace)

	e = NewEstimator(target)
	_, _ = e.Update(remainingAt(t0, 5000))
	ps, err = e.Update(remainingAt(t0.Add(time.Second), 5010)) // drift backwards
	require.NoError(t, err)
	assert.Equal(t, 0.0, ps.Pace)
}

func TestElapsedProgressAndArrival(t *testing.T) {
	e := NewEstimator(domain.Target{Rendezvous: t0.Add(10 * time.Minute), Distance: 1200})

	ps, err := e.Update(domain.Sample{At: t0, Kind: domain.ProgressElapsed, Value: 200})
	require.NoError(t, err)
	assert.Equal(t, 1000.0, ps.Remaining)

	ps, err = e.Update(domain.Sample{At: t0.Add(time.Minute), Kind: domain.ProgressElapsed, Value: 1300})
	require.NoError(t, err)
	assert.True(t, ps.Arrived())
	assert.Equal(t, t0.Add(time.Minute), ps.ProjectedArrival)
}

func TestCorridorMinSpeedCountsAsStationary(t *testing.T) {
	target := domain.Target{
		Rendezvous: t0.Add(time.Hour),
		Distance:   5000,
		Corridor:   &domain.Corridor{MinSpeed: 0.5, MaxSpeed: 5},
	}

	tests := []struct {
		name     string
		moved    float64 // meters in 10s
		estimate bool
	}{
		{"shuffling", 3, false},
		{"at the floor", 5, false},
		{"walking", 12, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEstimator(target)
			_, _ = e.Update(remainingAt(t0, 5000))
			ps, err := e.Update(remainingAt(t0.Add(10*time.Second), 5000-tt.moved))
			require.NoError(t, err)
			assert.Equal(t, tt.estimate, ps.HasEstimate)
		})
	}

	// Without a corridor the default floor applies.
	e := NewEstimator(domain.Target{Rendezvous: t0.Add(time.Hour), Distance: 5000})
	_, _ = e.Update(remainingAt(t0, 5000))
	ps, err := e.Update(remainingAt(t0.Add(10*time.Second), 4997))
	require.NoError(t, err)
	assert.True(t, ps.HasEstimate)
}

func TestAbsurdRemainingProjectionIsCapped(t *testing.T) {
	target := domain.Target{Rendezvous: t0.Add(10 * time.Minute), Distance: 1000}
	e := NewEstimator(target)

	_, _ = e.Update(remainingAt(t0, 1e15))
	at := t0.Add(10 * time.Second)
	ps, err := e.Update(remainingAt(at, 1e15-10))
	require.NoError(t, err)
	require.True(t, ps.HasEstimate)
	assert.Equal(t, at.Add(maxProjection), ps.ProjectedArrival)

	_, band := Classify(ps, target, DefaultThresholds())
	assert.Equal(t, domain.BandCriticallyBehind, band)
}
