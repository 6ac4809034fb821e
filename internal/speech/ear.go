package speech

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	audiotranscriber "github.com/sklyt/whisper/pkg"

	"github.com/hammamikhairi/rendezvouscoach/internal/logger"
)

// Default wake phrases, matched case-insensitively anywhere in a
// transcription. Includes common whisper mishearings.
var defaultWakeWords = []string{
	"hey coach",
	"hey, coach",
	"hey coach,",
	"a coach",
	"ok coach",
	"okay coach",
}

// Whisper sometimes annotates background sounds: "(wind blowing)".
var envAnnotation = regexp.MustCompile(`[\(\[][a-zA-Z_][a-zA-Z_\s]*[\)\]]`)

// Whole transcriptions whisper invents from silence.
var hallucinations = map[string]bool{
	"...": true, "you": true, "thank you.": true, "thanks for watching!": true,
	"thank you for watching.": true, "bye.": true, "the end.": true,
}

// EarOption configures the Ear.
type EarOption func(*Ear)

// WithRecordDuration sets the length of each clip while listening for a
// command.
func WithRecordDuration(d time.Duration) EarOption {
	return func(e *Ear) { e.recordDuration = d }
}

// WithDormantDuration sets the length of each wake-phrase probe.
func WithDormantDuration(d time.Duration) EarOption {
	return func(e *Ear) { e.dormantDuration = d }
}

// WithListenTimeout bounds how long a command may take after the wake
// phrase.
func WithListenTimeout(d time.Duration) EarOption {
	return func(e *Ear) { e.listenTimeout = d }
}

// WithTempDir sets where clips are written for whisper.
func WithTempDir(dir string) EarOption {
	return func(e *Ear) { e.tempDir = dir }
}

// WithWakeWords overrides the wake phrases.
func WithWakeWords(words ...string) EarOption {
	return func(e *Ear) { e.wakeWords = words }
}

// WithBusy tells the Ear when the coach is talking so it does not
// transcribe its own voice.
func WithBusy(busy func() bool) EarOption {
	return func(e *Ear) { e.busy = busy }
}

// WithOnWake registers a hook run when a bare wake phrase is heard and
// the Ear starts listening for the command.
func WithOnWake(fn func()) EarOption {
	return func(e *Ear) { e.onWake = fn }
}

// Ear turns "hey coach, 800 meters left" into text on C() using a local
// whisper model. It probes short clips until it hears a wake phrase,
// then records until the user stops talking.
type Ear struct {
	whisperBin string
	modelPath  string
	tempDir    string
	log        *logger.Logger
	busy       func() bool
	onWake     func()

	wakeWords       []string
	recordDuration  time.Duration
	dormantDuration time.Duration
	listenTimeout   time.Duration

	textCh chan string
}

// NewEar creates a voice command listener. A missing whisper binary is
// logged, not fatal: the coach still works from the keyboard.
func NewEar(whisperBin, modelPath string, log *logger.Logger, opts ...EarOption) *Ear {
	e := &Ear{
		whisperBin:      whisperBin,
		modelPath:       modelPath,
		tempDir:         ".coach-stt",
		log:             log,
		busy:            func() bool { return false },
		onWake:          func() {},
		wakeWords:       defaultWakeWords,
		recordDuration:  time.Second,
		dormantDuration: 3 * time.Second,
		listenTimeout:   10 * time.Second,
		textCh:          make(chan string, 4),
	}
	for _, opt := range opts {
		opt(e)
	}
	if _, err := exec.LookPath(e.whisperBin); err != nil {
		log.Error("whisper binary %q not found: %v", e.whisperBin, err)
	}
	return e
}

// C delivers transcribed commands with the wake phrase removed.
func (e *Ear) C() <-chan string { return e.textCh }

// Run listens until ctx ends. Call it in a goroutine.
func (e *Ear) Run(ctx context.Context) {
	e.log.Info("listening for %v", e.wakeWords)
	for ctx.Err() == nil {
		if e.busy() {
			sleep(ctx, 200*time.Millisecond)
			continue
		}

		heard := cleanTranscription(e.record(ctx, e.dormantDuration))
		if heard == "" || e.busy() {
			continue
		}
		rest, woke := e.stripWakeWord(heard)
		if !woke {
			continue
		}

		e.log.Info("wake phrase in %q", heard)
		if rest != "" {
			e.emit(ctx, rest)
			continue
		}
		e.onWake()
		if cmd := e.listen(ctx); cmd != "" {
			e.emit(ctx, cmd)
		}
	}
	e.log.Info("ear stopped")
}

// listen records short clips until two silent ones follow speech, four
// silent ones pass without any, or the timeout hits.
func (e *Ear) listen(ctx context.Context) string {
	deadline := time.Now().Add(e.listenTimeout)
	var parts []string
	silent := 0
	for ctx.Err() == nil && time.Now().Before(deadline) {
		chunk := cleanTranscription(e.record(ctx, e.recordDuration))
		if chunk == "" {
			silent++
			if (len(parts) > 0 && silent >= 2) || silent >= 4 {
				break
			}
			continue
		}
		silent = 0
		if rest, woke := e.stripWakeWord(chunk); woke {
			chunk = rest
		}
		if chunk != "" {
			parts = append(parts, chunk)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func (e *Ear) emit(ctx context.Context, text string) {
	e.log.Info("heard command %q", text)
	select {
	case e.textCh <- text:
	case <-ctx.Done():
	}
}

// stripWakeWord reports whether text contains a wake phrase and returns
// whatever follows it.
func (e *Ear) stripWakeWord(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, w := range e.wakeWords {
		idx := strings.Index(lower, strings.ToLower(w))
		if idx < 0 {
			continue
		}
		rest := strings.Trim(text[idx+len(w):], " ,.!?\t\r\n")
		return rest, true
	}
	return "", false
}

// record captures one clip and returns its transcription.
func (e *Ear) record(ctx context.Context, d time.Duration) string {
	var (
		wg     sync.WaitGroup
		result string
	)
	wg.Add(1)
	t, err := audiotranscriber.NewTranscriber(e.whisperBin, e.modelPath, e.tempDir, "wav", func(text string) {
		result = text
		wg.Done()
	}, e.log.GetLevel() >= logger.LevelVerbose)
	if err != nil {
		e.log.Error("transcriber init: %v", err)
		sleep(ctx, 2*time.Second)
		return ""
	}
	if err := t.Start(); err != nil {
		e.log.Error("recording start: %v", err)
		sleep(ctx, 2*time.Second)
		return ""
	}

	sleep(ctx, d)
	t.Stop()
	wg.Wait()
	if ctx.Err() != nil {
		return ""
	}
	return result
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// cleanTranscription flattens whitespace, removes whisper annotations
// and timestamps, and drops known silence hallucinations.
func cleanTranscription(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if strings.HasPrefix(s, "[") {
		if i := strings.Index(s, "]"); i > 0 && i < 40 && strings.Contains(s[:i], "-->") {
			s = strings.TrimSpace(s[i+1:])
		}
	}
	s = envAnnotation.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	if hallucinations[strings.ToLower(s)] {
		return ""
	}
	return s
}
