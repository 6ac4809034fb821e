// Package sample provides progress sample sources: a simulated walker, a
// push source fed by the keyboard, voice and network, and a fan-in that
// merges them into one stream.
package sample

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
)

// once guards the single permitted call to Samples.
type once struct{ used atomic.Bool }

func (o *once) claim(name string) error {
	if !o.used.CompareAndSwap(false, true) {
		return fmt.Errorf("%s: %w", name, domain.ErrSourceConsumed)
	}
	return nil
}

// ── Push ─────────────────────────────────────────────────────────

var _ domain.SampleSource = (*Push)(nil)

// Push is a source fed from outside: typed distances, voice commands or
// the websocket ingest. It is safe for concurrent Push calls.
type Push struct {
	once
	ch     chan domain.Sample
	mu     sync.Mutex
	closed bool
}

// NewPush creates a push source buffering up to size samples.
func NewPush(size int) *Push {
	if size <= 0 {
		size = 16
	}
	return &Push{ch: make(chan domain.Sample, size)}
}

// Push offers a sample without blocking. It fails when the buffer is full
// or the source is closed; the caller drops the sample.
func (p *Push) Push(s domain.Sample) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return domain.ErrSessionEnded
	}
	select {
	case p.ch <- s:
		return nil
	default:
		return fmt.Errorf("push source full (%d buffered)", cap(p.ch))
	}
}

// Close ends the stream.
func (p *Push) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
}

// Samples implements domain.SampleSource. The stream also ends when ctx
// is done.
func (p *Push) Samples(ctx context.Context) (<-chan domain.Sample, error) {
	if err := p.claim("push source"); err != nil {
		return nil, err
	}
	out := make(chan domain.Sample)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-p.ch:
				if !ok {
					return
				}
				select {
				case out <- s:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// ── Slice ────────────────────────────────────────────────────────

var _ domain.SampleSource = (*Slice)(nil)

// Slice replays a fixed list of samples as fast as they are read.
type Slice struct {
	once
	samples []domain.Sample
}

// FromSlice creates a finite source.
func FromSlice(samples ...domain.Sample) *Slice {
	return &Slice{samples: samples}
}

// Samples implements domain.SampleSource.
func (s *Slice) Samples(ctx context.Context) (<-chan domain.Sample, error) {
	if err := s.claim("slice source"); err != nil {
		return nil, err
	}
	out := make(chan domain.Sample)
	go func() {
		defer close(out)
		for _, smp := range s.samples {
			select {
			case out <- smp:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// ── Merge ────────────────────────────────────────────────────────

var _ domain.SampleSource = (*Merged)(nil)

// Merged fans several sources into one stream, closed when all inputs
// are.
type Merged struct {
	once
	sources []domain.SampleSource
}

// Merge combines sources.
func Merge(sources ...domain.SampleSource) *Merged {
	return &Merged{sources: sources}
}

// Samples implements domain.SampleSource. If any input cannot start,
// the ones already started are stopped and the error is returned.
func (m *Merged) Samples(ctx context.Context) (<-chan domain.Sample, error) {
	if err := m.claim("merged source"); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	inputs := make([]<-chan domain.Sample, 0, len(m.sources))
	for _, src := range m.sources {
		ch, err := src.Samples(ctx)
		if err != nil {
			cancel()
			return nil, err
		}
		inputs = append(inputs, ch)
	}

	out := make(chan domain.Sample)
	var wg sync.WaitGroup
	for _, in := range inputs {
		wg.Add(1)
		go func(in <-chan domain.Sample) {
			defer wg.Done()
			for s := range in {
				select {
				case out <- s:
				case <-ctx.Done():
					return
				}
			}
		}(in)
	}
	go func() {
		wg.Wait()
		cancel()
		close(out)
	}()
	return out, nil
}
