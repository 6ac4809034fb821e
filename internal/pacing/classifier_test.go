package pacing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
)

func TestBandEdges(t *testing.T) {
	th := DefaultThresholds()
	s := time.Second

	tests := []struct {
		dev  time.Duration
		want domain.Band
	}{
		{0, domain.BandOnTime},
		{15 * s, domain.BandOnTime},
		{-15 * s, domain.BandOnTime},
		{15*s + time.Nanosecond, domain.BandSlightlyBehind},
		{-15*s - time.Nanosecond, domain.BandSlightlyAhead},
		{60 * s, domain.BandSlightlyBehind},
		{61 * s, domain.BandBehind},
		{-60 * s, domain.BandSlightlyAhead},
		{-61 * s, domain.BandAhead},
		{180 * s, domain.BandBehind},
		{181 * s, domain.BandCriticallyBehind},
		{-180 * s, domain.BandAhead},
		{-181 * s, domain.BandCriticallyAhead},
		{2 * time.Hour, domain.BandCriticallyBehind},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BandFor(tt.dev, th), "deviation %s", tt.dev)
	}
}

func TestUrgencyMonotonicInDeviation(t *testing.T) {
	th := DefaultThresholds()
	for _, sign := range []time.Duration{1, -1} {
		prev := domain.UrgencyNone
		for d := time.Duration(0); d <= 400*time.Second; d += 250 * time.Millisecond {
			u := BandFor(sign*d, th).Urgency()
			require.GreaterOrEqual(t, u, prev, "urgency dropped at %s", sign*d)
			prev = u
		}
	}
}

func TestClassifyUsesProjectedArrival(t *testing.T) {
	rv := t0.Add(600 * time.Second)
	target := domain.Target{Rendezvous: rv, Distance: 2000}

	dev, band := Classify(domain.PacingState{HasEstimate: true, ProjectedArrival: t0.Add(720 * time.Second)}, target, DefaultThresholds())
	assert.Equal(t, 120*time.Second, dev)
	assert.Equal(t, domain.BandBehind, band)

	dev, band = Classify(domain.PacingState{}, target, DefaultThresholds())
	assert.Zero(t, dev)
	assert.Equal(t, domain.BandUnknown, band)
}

func TestCustomThresholds(t *testing.T) {
	th := Thresholds{OnTime: 5 * time.Second, Slight: 10 * time.Second, Moderate: 20 * time.Second}
	require.NoError(t, th.Validate())

	assert.Equal(t, domain.BandSlightlyBehind, BandFor(6*time.Second, th))
	assert.Equal(t, domain.BandCriticallyAhead, BandFor(-21*time.Second, th))
}

func TestThresholdsValidate(t *testing.T) {
	bad := []Thresholds{
		{},
		{OnTime: 10 * time.Second, Slight: 10 * time.Second, Moderate: 30 * time.Second},
		{OnTime: 10 * time.Second, Slight: 20 * time.Second, Moderate: 15 * time.Second},
	}
	for _, th := range bad {
		assert.Error(t, th.Validate(), "%+v", th)
	}
	assert.NoError(t, DefaultThresholds().Validate())
}

func TestBandOrdering(t *testing.T) {
	assert.True(t, domain.BandCriticallyBehind.MoreUrgentThan(domain.BandBehind))
	assert.True(t, domain.BandAhead.MoreUrgentThan(domain.BandSlightlyBehind))
	assert.False(t, domain.BandBehind.MoreUrgentThan(domain.BandAhead))
	assert.False(t, domain.BandUnknown.MoreUrgentThan(domain.BandOnTime))
	assert.Equal(t, 1, domain.BandSlightlyBehind.Direction())
	assert.Equal(t, -1, domain.BandCriticallyAhead.Direction())
	assert.Equal(t, 0, domain.BandOnTime.Direction())
}
