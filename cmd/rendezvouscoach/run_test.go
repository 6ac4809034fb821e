package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hammamikhairi/rendezvouscoach/internal/coach"
	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
	"github.com/hammamikhairi/rendezvouscoach/internal/lexicon"
	"github.com/hammamikhairi/rendezvouscoach/internal/logger"
	"github.com/hammamikhairi/rendezvouscoach/internal/speech"
)

type echoTTS struct{}

func (echoTTS) Synthesize(_ context.Context, text string) ([]byte, error) { return []byte(text), nil }
func (echoTTS) Profile() string                                             { return "echo" }

// holdPlayer plays until Stop is called.
type holdPlayer struct {
	started chan struct{}
	mu      sync.Mutex
	stop    chan struct{}
	stops   int
}

func (p *holdPlayer) Play([]byte) error {
	stop := make(chan struct{})
	p.mu.Lock()
	p.stop = stop
	p.mu.Unlock()
	p.started <- struct{}{}
	<-stop
	return nil
}

func (p *holdPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
}

func (p *holdPlayer) stopped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops
}

func TestMuteLetsTheCurrentCueFinish(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	player := &holdPlayer{started: make(chan struct{}, 4)}
	mouth := speech.NewMouth(echoTTS{}, player, log, speech.WithCacheDir(t.TempDir()), speech.WithDiskWrite(false))
	mouth.Start(ctx)

	target := domain.Target{Rendezvous: time.Now().Add(10 * time.Minute), Distance: 1000}
	app := &liveApp{
		lex:   lexicon.English{},
		coach: coach.New(target, mouth, lexicon.English{}, log),
		mouth: mouth,
		log:   log,
		quit:  cancel,
	}
	app.walking.Store(true)

	done := mouth.Speak(ctx, "You're about two minutes behind.", domain.UrgencyMedium)
	select {
	case <-player.started:
	case <-time.After(2 * time.Second):
		t.Fatal("cue did not start playing")
	}

	app.dispatch(ctx, domain.Command{Type: domain.CommandMute})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, player.stopped())
	select {
	case err := <-done:
		t.Fatalf("cue finished early: %v", err)
	default:
	}

	app.dispatch(ctx, domain.Command{Type: domain.CommandQuit})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("quit should cut the cue")
	}
	assert.Equal(t, 1, player.stopped())
}

func TestBuildEarFailsWhenTempDirCannotBeCreated(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	model := filepath.Join(dir, "model.bin")
	require.NoError(t, os.WriteFile(model, []byte("x"), 0o644))
	// A plain file where the directory should go.
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".coach-stt"), nil, 0o644))

	o := &options{voice: true, whisperModel: model, recordSecs: 2}
	ear, err := o.buildEar(context.Background(), nil, nil, logger.New(logger.LevelOff, nil))
	assert.Error(t, err)
	assert.Nil(t, ear)
}
