package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
	"github.com/hammamikhairi/rendezvouscoach/internal/logger"
)

var _ domain.SpeechSink = (*Mouth)(nil)

// MouthOption configures the Mouth.
type MouthOption func(*Mouth)

// WithChunkSize sets the approximate max characters per synthesis call.
// Longer text is split at sentence boundaries and synthesized in
// parallel.
func WithChunkSize(n int) MouthOption {
	return func(m *Mouth) {
		m.chunkSize = n
	}
}

// WithCacheDir enables the on-disk audio cache.
func WithCacheDir(dir string) MouthOption {
	return func(m *Mouth) {
		m.cacheDir = dir
	}
}

// WithDiskWrite controls whether new audio is persisted to the cache dir.
func WithDiskWrite(enabled bool) MouthOption {
	return func(m *Mouth) {
		m.diskWrite = enabled
	}
}

// Mouth serializes everything the coach says through one pipeline:
// queue, synthesize, play. Only one clip plays at a time. Pacing cues
// enter through Speak and report completion; app lines enter through Say
// and are fire-and-forget.
type Mouth struct {
	tts    Synthesizer
	player AudioPlayer
	log    *logger.Logger
	cache  *AudioCache

	chunkSize int
	cacheDir  string
	diskWrite bool

	mu          sync.Mutex
	queue       []*request
	notify      chan struct{}
	current     *request
	interrupted bool
	seq         uint64
	lastCue     uint64
	lastSpoken  string
}

// NewMouth creates a speech dispatcher. Call Start before speaking.
func NewMouth(tts Synthesizer, player AudioPlayer, log *logger.Logger, opts ...MouthOption) *Mouth {
	m := &Mouth{
		tts:       tts,
		player:    player,
		log:       log,
		notify:    make(chan struct{}, 1),
		chunkSize: 200,
		diskWrite: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.cache = NewAudioCache(tts.Profile(), m.cacheDir, m.diskWrite, log)
	return m
}

// Speak implements domain.SpeechSink. It queues a cue and returns at
// once.
func (m *Mouth) Speak(ctx context.Context, text string, urgency domain.Urgency) <-chan error {
	r := &request{
		text:     text,
		priority: PriorityFor(urgency),
		queuedAt: time.Now(),
		done:     make(chan error, 1),
	}
	done := r.done
	if err := ctx.Err(); err != nil {
		r.finish(err)
		return done
	}

	m.mu.Lock()
	m.seq++
	r.id = m.seq
	m.lastCue = r.id
	m.enqueueLocked(r)
	m.mu.Unlock()

	m.log.Debug("cue %d queued (%s): %s", r.id, urgency, truncate(text, 60))
	m.signal()
	return done
}

// Cancel implements domain.SpeechSink. It withdraws the most recent cue
// if still queued, or stops it mid-playback.
func (m *Mouth) Cancel() {
	m.mu.Lock()
	id := m.lastCue
	for i, r := range m.queue {
		if r.id == id && r.done != nil {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			m.mu.Unlock()
			m.log.Debug("cue %d cancelled before playback", id)
			r.finish(domain.ErrSpeechCancelled)
			return
		}
	}
	playing := m.current != nil && m.current.id == id && m.current.done != nil
	if playing {
		m.interrupted = true
	}
	m.mu.Unlock()

	if playing {
		m.log.Debug("cue %d cancelled during playback", id)
		m.player.Stop()
	}
}

// Say queues an app line at the given priority. Queuing anything at
// PriorityNormal or above drops stale low-priority lines.
func (m *Mouth) Say(text string, priority Priority) {
	m.mu.Lock()
	m.enqueueLocked(&request{text: text, priority: priority, queuedAt: time.Now()})
	m.mu.Unlock()
	m.signal()
}

// Interrupt clears the queue and stops playback. Queued cues complete
// with domain.ErrSpeechCancelled.
func (m *Mouth) Interrupt() {
	m.mu.Lock()
	dropped := m.queue
	m.queue = nil
	m.interrupted = m.current != nil
	m.mu.Unlock()

	for _, r := range dropped {
		r.finish(domain.ErrSpeechCancelled)
	}
	m.player.Stop()
}

// IsSpeaking reports whether a clip is being synthesized or played.
func (m *Mouth) IsSpeaking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

// QueueLen returns the number of utterances waiting.
func (m *Mouth) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Busy reports whether anything is playing or waiting. The Ear uses it
// to avoid transcribing the coach's own voice.
func (m *Mouth) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil || len(m.queue) > 0
}

// LastSpoken returns the most recent text that finished playing.
func (m *Mouth) LastSpoken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSpoken
}

// Cache exposes the audio cache for stats.
func (m *Mouth) Cache() *AudioCache { return m.cache }

// Start launches the processing goroutine. When ctx ends, anything still
// queued completes with domain.ErrSessionEnded.
func (m *Mouth) Start(ctx context.Context) {
	go m.processLoop(ctx)
	m.log.Info("mouth started")
}

func (m *Mouth) enqueueLocked(r *request) {
	if r.priority >= PriorityNormal {
		kept := m.queue[:0]
		for _, q := range m.queue {
			if q.priority > PriorityLow {
				kept = append(kept, q)
			}
		}
		m.queue = kept
	}
	m.queue = append(m.queue, r)
}

func (m *Mouth) signal() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *Mouth) processLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			left := m.queue
			m.queue = nil
			m.mu.Unlock()
			for _, r := range left {
				r.finish(domain.ErrSessionEnded)
			}
			m.log.Info("mouth stopped")
			return
		case <-m.notify:
			m.drain(ctx)
		}
	}
}

// drain plays queued items, highest priority first, oldest first within
// a priority.
func (m *Mouth) drain(ctx context.Context) {
	for ctx.Err() == nil {
		r, ok := m.next()
		if !ok {
			return
		}

		err := m.process(ctx, r)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrSpeechCancelled):
			m.log.Debug("utterance %d interrupted", r.id)
		default:
			m.log.Error("utterance %d failed: %v", r.id, err)
		}

		m.mu.Lock()
		m.current = nil
		if err == nil {
			m.lastSpoken = r.text
		}
		m.mu.Unlock()
		r.finish(err)
	}
}

func (m *Mouth) next() (*request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil, false
	}
	best := 0
	for i, r := range m.queue {
		if r.priority > m.queue[best].priority {
			best = i
		}
	}
	r := m.queue[best]
	m.queue = append(m.queue[:best], m.queue[best+1:]...)
	m.current = r
	m.interrupted = false
	return r, true
}

func (m *Mouth) wasInterrupted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interrupted
}

// process synthesizes every chunk in parallel, then plays them in order.
func (m *Mouth) process(ctx context.Context, r *request) error {
	m.log.Debug("speaking %d (priority=%d, waited=%s): %s",
		r.id, r.priority, time.Since(r.queuedAt).Round(time.Millisecond), truncate(r.text, 60))

	chunks := m.splitChunks(r.text)
	audio := make([][]byte, len(chunks))
	errs := make([]error, len(chunks))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			audio[i], errs[i] = m.synthesize(ctx, text)
		}(i, chunk)
	}
	wg.Wait()

	var firstErr error
	played := 0
	for i, clip := range audio {
		if errs[i] != nil {
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		if m.wasInterrupted() {
			return domain.ErrSpeechCancelled
		}
		if err := m.player.Play(clip); err != nil {
			if errors.Is(err, domain.ErrSpeechCancelled) {
				return err
			}
			return &domain.SynthesisError{Provider: "player", Err: err}
		}
		played++
	}
	if played == 0 && firstErr != nil {
		return firstErr
	}
	return nil
}

func (m *Mouth) synthesize(ctx context.Context, text string) ([]byte, error) {
	if clip, ok := m.cache.Get(text); ok {
		return clip, nil
	}
	clip, err := m.tts.Synthesize(ctx, text)
	if err != nil {
		var se *domain.SynthesisError
		if !errors.As(err, &se) {
			err = &domain.SynthesisError{Provider: "tts", Err: err}
		}
		return nil, err
	}
	m.cache.Put(text, clip)
	return clip, nil
}

// Prefetch synthesizes texts in the background so they play instantly
// later. Already cached texts are skipped.
func (m *Mouth) Prefetch(ctx context.Context, texts ...string) {
	for _, text := range texts {
		for _, chunk := range m.splitChunks(text) {
			if chunk == "" || m.cache.Has(chunk) {
				continue
			}
			go func(t string) {
				if _, err := m.synthesize(ctx, t); err != nil {
					m.log.Debug("prefetch failed for %q: %v", truncate(t, 40), err)
				}
			}(chunk)
		}
	}
}

// splitChunks breaks text at sentence boundaries into pieces of about
// chunkSize characters.
func (m *Mouth) splitChunks(text string) []string {
	if m.chunkSize <= 0 || len(text) <= m.chunkSize {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	for _, s := range splitSentences(text) {
		if cur.Len() > 0 && cur.Len()+len(s) > m.chunkSize {
			chunks = append(chunks, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
		cur.WriteString(s)
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}

// splitSentences splits after . ! or ? keeping trailing spaces attached.
func splitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		cur.WriteRune(runes[i])
		if r := runes[i]; r == '.' || r == '!' || r == '?' {
			for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				i++
				cur.WriteRune(runes[i])
			}
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
