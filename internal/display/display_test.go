package display

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
)

var t0 = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

func TestFormatters(t *testing.T) {
	assert.Equal(t, "0s", fmtDuration(-time.Second))
	assert.Equal(t, "45s", fmtDuration(45*time.Second))
	assert.Equal(t, "2m05s", fmtDuration(125*time.Second))
	assert.Equal(t, "1h05m", fmtDuration(65*time.Minute))

	assert.Equal(t, "+1m20s", fmtDeviation(80*time.Second))
	assert.Equal(t, "-35s", fmtDeviation(-35*time.Second))

	assert.Equal(t, "850 m", fmtDistance(850))
	assert.Equal(t, "1.20 km", fmtDistance(1200))

	assert.Equal(t, "5:00/km", fmtPace(1000.0/300))
	assert.Equal(t, "--:--/km", fmtPace(0))
	assert.Equal(t, "--:--/km", fmtPace(0.1))
}

func TestRenderBar(t *testing.T) {
	s := &domain.Session{
		PlanName: "commute",
		Status:   domain.SessionActive,
		Pacing: domain.PacingState{
			Remaining:   1200,
			Pace:        1.4,
			HasEstimate: true,
			Deviation:   95 * time.Second,
			Band:        domain.BandBehind,
		},
		Scheduler: domain.SchedulerState{State: domain.CueSpeaking},
	}
	bar := renderBar(s, t0, 120)
	for _, want := range []string{"commute", "1.20 km", "11:54/km", "+1m35s behind", "speaking"} {
		assert.True(t, strings.Contains(bar, want), "bar %q should contain %q", bar, want)
	}

	s.Pacing.HasEstimate = false
	assert.Contains(t, renderBar(s, t0, 120), "estimating pace")
}

func TestRenderBarCountdown(t *testing.T) {
	s := &domain.Session{
		Status: domain.SessionCountdown,
		Target: domain.Target{Rendezvous: t0.Add(12*time.Minute + 30*time.Second)},
	}
	assert.Contains(t, renderBar(s, t0, 80), "rendezvous in 12m30s")
	assert.Equal(t, "rendezvous in 12m30s", titleFor(s, t0))
}

func TestRenderBanner(t *testing.T) {
	assert.Empty(t, renderBanner(10), "too narrow")
	out := renderBanner(200)
	assert.Equal(t, 5, strings.Count(out, "\n"))
}
