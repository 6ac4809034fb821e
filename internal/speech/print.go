package speech

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
	"github.com/hammamikhairi/rendezvouscoach/internal/logger"
)

var _ domain.SpeechSink = (*PrintSink)(nil)

// PrintOption configures a PrintSink.
type PrintOption func(*PrintSink)

// WithWordsPerSecond sets the simulated speaking rate.
func WithWordsPerSecond(w float64) PrintOption {
	return func(p *PrintSink) {
		if w > 0 {
			p.wordsPerSecond = w
		}
	}
}

// WithTimeScale divides every simulated utterance length by factor, for
// sessions running on an accelerated clock.
func WithTimeScale(factor float64) PrintOption {
	return func(p *PrintSink) {
		if factor > 0 {
			p.scale = factor
		}
	}
}

// PrintSink stands in for audio when speech is disabled or no device is
// present. It prints each cue and reports completion after the time the
// line would take to say.
type PrintSink struct {
	print          func(string)
	log            *logger.Logger
	wordsPerSecond float64
	scale          float64

	mu     sync.Mutex
	cancel chan struct{}
}

// NewPrintSink creates a sink writing through print.
func NewPrintSink(print func(string), log *logger.Logger, opts ...PrintOption) *PrintSink {
	p := &PrintSink{
		print:          print,
		log:            log,
		wordsPerSecond: 2.5,
		scale:          1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Speak implements domain.SpeechSink.
func (p *PrintSink) Speak(ctx context.Context, text string, urgency domain.Urgency) <-chan error {
	done := make(chan error, 1)
	cancel := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	p.print(text)
	d := p.duration(text)
	p.log.Debug("print sink: %q (%s, ~%s)", truncate(text, 40), urgency, d)

	go func() {
		defer close(done)
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			done <- nil
		case <-cancel:
			done <- domain.ErrSpeechCancelled
		case <-ctx.Done():
			done <- ctx.Err()
		}
	}()
	return done
}

// Cancel implements domain.SpeechSink.
func (p *PrintSink) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		close(p.cancel)
		p.cancel = nil
	}
}

func (p *PrintSink) duration(text string) time.Duration {
	words := float64(len(strings.Fields(text)))
	d := time.Duration(words / p.wordsPerSecond / p.scale * float64(time.Second))
	if min := time.Duration(float64(500*time.Millisecond) / p.scale); d < min {
		d = min
	}
	return d
}
