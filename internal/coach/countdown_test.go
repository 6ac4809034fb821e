package coach

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hammamikhairi/rendezvouscoach/internal/clock"
	"github.com/hammamikhairi/rendezvouscoach/internal/lexicon"
	"github.com/hammamikhairi/rendezvouscoach/internal/logger"
)

func TestCountdownAnnouncesInsideWindow(t *testing.T) {
	clk := clock.NewManual(t0)
	n := &mockNotifier{}
	cd := NewCountdown(t0.Add(2*time.Minute), lexicon.English{}, n, logger.New(logger.LevelOff, nil),
		WithCountdownClock(clk),
		WithAlertWindow(time.Minute),
		WithAnnounceInterval(30*time.Second),
	)

	done := make(chan error, 1)
	go func() { done <- cd.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, n.all(), "nothing before the alert window")

	clk.Set(t0.Add(time.Minute))
	eventually(t, func() bool { return len(n.all()) == 1 }, "window opened")
	assert.Equal(t, "Leave in 1 minute.", n.all()[0])

	clk.Set(t0.Add(75 * time.Second))
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, n.all(), 1, "interval not elapsed")

	clk.Set(t0.Add(90 * time.Second))
	eventually(t, func() bool { return len(n.all()) == 2 }, "second announcement")
	assert.Equal(t, "Leave in 30 seconds.", n.all()[1])

	clk.Set(t0.Add(2 * time.Minute))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("countdown did not return at departure")
	}
	assert.Equal(t, []string{"Time to leave!"}, n.urgentAll())
}

func TestCountdownPastDeparture(t *testing.T) {
	n := &mockNotifier{}
	cd := NewCountdown(t0, lexicon.Italian{}, n, logger.New(logger.LevelOff, nil),
		WithCountdownClock(clock.NewManual(t0.Add(time.Minute))))

	require.NoError(t, cd.Run(context.Background()))
	assert.Equal(t, []string{"Ora di partire!"}, n.urgentAll())
	assert.Empty(t, n.all())
}

func TestCountdownCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cd := NewCountdown(t0.Add(time.Hour), lexicon.English{}, &mockNotifier{}, logger.New(logger.LevelOff, nil),
		WithCountdownClock(clock.NewManual(t0)))

	cancel()
	assert.ErrorIs(t, cd.Run(ctx), context.Canceled)
}
