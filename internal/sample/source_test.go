package sample

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hammamikhairi/rendezvouscoach/internal/clock"
	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
)

var t0 = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

func collect(t *testing.T, ch <-chan domain.Sample) []domain.Sample {
	t.Helper()
	var out []domain.Sample
	timeout := time.After(5 * time.Second)
	for {
		select {
		case s, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, s)
		case <-timeout:
			t.Fatal("stream never closed")
		}
	}
}

func TestSourcesAreNotRestartable(t *testing.T) {
	ctx := context.Background()
	sources := map[string]domain.SampleSource{
		"push":      NewPush(1),
		"slice":     FromSlice(),
		"simulated": NewSimulated(10, clock.NewManual(t0)),
		"merged":    Merge(FromSlice()),
	}
	for name, src := range sources {
		_, err := src.Samples(ctx)
		require.NoError(t, err, name)
		_, err = src.Samples(ctx)
		assert.ErrorIs(t, err, domain.ErrSourceConsumed, name)
	}
}

func TestPush(t *testing.T) {
	p := NewPush(2)
	ch, err := p.Samples(context.Background())
	require.NoError(t, err)

	require.NoError(t, p.Push(domain.Sample{At: t0, Value: 100}))
	require.NoError(t, p.Push(domain.Sample{At: t0.Add(time.Second), Value: 90}))
	p.Close()
	p.Close()

	got := collect(t, ch)
	require.Len(t, got, 2)
	assert.Equal(t, 90.0, got[1].Value)
	assert.ErrorIs(t, p.Push(domain.Sample{}), domain.ErrSessionEnded)
}

func TestPushNeverBlocks(t *testing.T) {
	p := NewPush(1)
	require.NoError(t, p.Push(domain.Sample{Value: 1}))
	assert.Error(t, p.Push(domain.Sample{Value: 2}))
}

func TestMergeClosesWhenAllInputsClose(t *testing.T) {
	a := FromSlice(domain.Sample{Value: 1}, domain.Sample{Value: 2})
	b := FromSlice(domain.Sample{Value: 3})

	ch, err := Merge(a, b).Samples(context.Background())
	require.NoError(t, err)
	assert.Len(t, collect(t, ch), 3)
}

func TestMergeFailsOnConsumedInput(t *testing.T) {
	a := FromSlice()
	_, _ = a.Samples(context.Background())

	_, err := Merge(FromSlice(), a).Samples(context.Background())
	assert.ErrorIs(t, err, domain.ErrSourceConsumed)
}

func TestSimulatedArrives(t *testing.T) {
	clk := clock.NewScaled(t0, 1000)
	sim := NewSimulated(50, clk, WithSpeed(5), WithInterval(2*time.Second), WithSeed(1))

	ch, err := sim.Samples(context.Background())
	require.NoError(t, err)
	got := collect(t, ch)

	require.GreaterOrEqual(t, len(got), 3)
	assert.InDelta(t, 50.0, got[0].Value, 1)
	assert.Equal(t, 0.0, got[len(got)-1].Value)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i].At.After(got[i-1].At))
		assert.LessOrEqual(t, got[i].Value, got[i-1].Value)
	}
}

func TestSimulatedStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sim := NewSimulated(1e6, clock.NewScaled(t0, 100), WithSpeed(1))
	ch, err := sim.Samples(ctx)
	require.NoError(t, err)

	<-ch
	cancel()
	collect(t, ch)
}
