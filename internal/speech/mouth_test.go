package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
	"github.com/hammamikhairi/rendezvouscoach/internal/logger"
)

// fakeTTS returns the text itself as audio unless SynthesizeFunc is set.
type fakeTTS struct {
	SynthesizeFunc func(ctx context.Context, text string) ([]byte, error)

	mu    sync.Mutex
	calls []string
}

func (f *fakeTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if f.SynthesizeFunc != nil {
		return f.SynthesizeFunc(ctx, text)
	}
	return []byte(text), nil
}

func (f *fakeTTS) Profile() string { return "fake" }

func (f *fakeTTS) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakePlayer blocks in Play until the test releases the clip or Stop is
// called, and records the peak number of concurrent Play calls.
type fakePlayer struct {
	release chan struct{}
	started chan string

	mu      sync.Mutex
	playing int
	peak    int
	stop    chan struct{}
	played  []string
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{release: make(chan struct{}, 16), started: make(chan string, 16)}
}

func (p *fakePlayer) Play(wav []byte) error {
	stop := make(chan struct{})
	p.mu.Lock()
	p.playing++
	if p.playing > p.peak {
		p.peak = p.playing
	}
	p.stop = stop
	p.mu.Unlock()

	p.started <- string(wav)
	defer func() {
		p.mu.Lock()
		p.playing--
		p.stop = nil
		p.mu.Unlock()
	}()

	select {
	case <-p.release:
		p.mu.Lock()
		p.played = append(p.played, string(wav))
		p.mu.Unlock()
		return nil
	case <-stop:
		return domain.ErrSpeechCancelled
	}
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
}

func (p *fakePlayer) Played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...)
}

func startMouth(t *testing.T, tts Synthesizer, player AudioPlayer) *Mouth {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	m := NewMouth(tts, player, logger.New(logger.LevelOff, nil))
	m.Start(ctx)
	return m
}

func waitErr(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err, ok := <-ch:
		require.True(t, ok, "channel closed without a value")
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("no completion")
		return nil
	}
}

func waitStarted(t *testing.T, p *fakePlayer) string {
	t.Helper()
	select {
	case s := <-p.started:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("playback never started")
		return ""
	}
}

func TestSpeakCompletes(t *testing.T) {
	player := newFakePlayer()
	m := startMouth(t, &fakeTTS{}, player)

	done := m.Speak(context.Background(), "You're about two minutes behind.", domain.UrgencyMedium)
	assert.Equal(t, "You're about two minutes behind.", waitStarted(t, player))
	player.release <- struct{}{}

	require.NoError(t, waitErr(t, done))
	_, open := <-done
	assert.False(t, open, "done must be closed after its single value")
	assert.Equal(t, "You're about two minutes behind.", m.LastSpoken())
}

func TestCancelDuringPlayback(t *testing.T) {
	player := newFakePlayer()
	m := startMouth(t, &fakeTTS{}, player)

	done := m.Speak(context.Background(), "behind", domain.UrgencyMedium)
	waitStarted(t, player)
	m.Cancel()

	assert.ErrorIs(t, waitErr(t, done), domain.ErrSpeechCancelled)
	assert.Empty(t, m.LastSpoken())
}

func TestCancelQueuedCueOnly(t *testing.T) {
	player := newFakePlayer()
	m := startMouth(t, &fakeTTS{}, player)

	m.Say("Coaching commute.", PriorityNormal)
	waitStarted(t, player)

	done := m.Speak(context.Background(), "behind", domain.UrgencyMedium)
	m.Cancel()
	assert.ErrorIs(t, waitErr(t, done), domain.ErrSpeechCancelled)

	// The app line keeps playing.
	player.release <- struct{}{}
	require.Eventually(t, func() bool { return !m.Busy() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"Coaching commute."}, player.Played())
}

func TestSynthesisFailureReported(t *testing.T) {
	tts := &fakeTTS{SynthesizeFunc: func(context.Context, string) ([]byte, error) {
		return nil, errors.New("quota exceeded")
	}}
	m := startMouth(t, tts, newFakePlayer())

	err := waitErr(t, m.Speak(context.Background(), "behind", domain.UrgencyMedium))
	assert.ErrorIs(t, err, domain.ErrSynthesisFailed)
	var se *domain.SynthesisError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "tts", se.Provider)
}

func TestCuesOutrankAppLinesAndNeverOverlap(t *testing.T) {
	player := newFakePlayer()
	m := startMouth(t, &fakeTTS{}, player)

	m.Say("first", PriorityNormal)
	waitStarted(t, player)

	m.Say("chatter", PriorityNormal)
	cue := m.Speak(context.Background(), "cue", domain.UrgencyHigh)

	player.release <- struct{}{}
	assert.Equal(t, "cue", waitStarted(t, player))
	player.release <- struct{}{}
	require.NoError(t, waitErr(t, cue))
	assert.Equal(t, "chatter", waitStarted(t, player))
	player.release <- struct{}{}

	require.Eventually(t, func() bool { return !m.Busy() }, time.Second, 5*time.Millisecond)
	player.mu.Lock()
	defer player.mu.Unlock()
	assert.Equal(t, 1, player.peak)
}

func TestLowPriorityFlushed(t *testing.T) {
	player := newFakePlayer()
	m := startMouth(t, &fakeTTS{}, player)

	m.Say("busy", PriorityNormal)
	waitStarted(t, player)
	m.Say("Leave in 5 minutes.", PriorityLow)
	m.Say("Leave in 4 minutes.", PriorityLow)
	assert.Equal(t, 2, m.QueueLen())

	m.Say("status", PriorityNormal)
	assert.Equal(t, 1, m.QueueLen())
}

func TestSpeakWithDoneContext(t *testing.T) {
	m := startMouth(t, &fakeTTS{}, newFakePlayer())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, waitErr(t, m.Speak(ctx, "late", domain.UrgencyLow)), context.Canceled)
}

func TestShutdownFailsQueuedCues(t *testing.T) {
	player := newFakePlayer()
	ctx, cancel := context.WithCancel(context.Background())
	m := NewMouth(&fakeTTS{}, player, logger.New(logger.LevelOff, nil))
	m.Start(ctx)

	m.Say("hold", PriorityCritical)
	waitStarted(t, player)
	queued := m.Speak(context.Background(), "queued", domain.UrgencyLow)

	cancel()
	player.Stop()
	assert.ErrorIs(t, waitErr(t, queued), domain.ErrSessionEnded)
}

func TestRepeatedTextHitsCache(t *testing.T) {
	tts := &fakeTTS{}
	player := newFakePlayer()
	m := startMouth(t, tts, player)

	for i := 0; i < 3; i++ {
		done := m.Speak(context.Background(), "same cue", domain.UrgencyMedium)
		waitStarted(t, player)
		player.release <- struct{}{}
		require.NoError(t, waitErr(t, done))
	}
	assert.Len(t, tts.Calls(), 1)
	hits, misses := m.Cache().Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}

func TestSplitChunks(t *testing.T) {
	m := &Mouth{chunkSize: 20}
	got := m.splitChunks("One two three. Four five six! Seven?")
	assert.Equal(t, []string{"One two three.", "Four five six!", "Seven?"}, got)

	m.chunkSize = 0
	assert.Len(t, m.splitChunks("One. Two."), 1)
}
