package speech

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
	"github.com/hammamikhairi/rendezvouscoach/internal/logger"
)

// AudioPlayer plays one clip at a time. Play blocks until the clip ends
// or Stop is called, in which case it returns domain.ErrSpeechCancelled.
type AudioPlayer interface {
	Play(wav []byte) error
	Stop()
}

var _ AudioPlayer = (*Player)(nil)

// Player plays 16-bit PCM WAV through the system audio device via oto.
type Player struct {
	ctx *oto.Context
	log *logger.Logger

	mu      sync.Mutex
	active  *oto.Player
	stopped bool
}

// NewPlayer opens the audio device. It fails when no device is available,
// in which case callers fall back to a PrintSink.
func NewPlayer(log *logger.Logger) (*Player, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("opening audio device: %w", err)
	}
	<-ready

	log.Debug("audio device ready (rate=%d, channels=%d)", SampleRate, ChannelCount)
	return &Player{ctx: ctx, log: log}, nil
}

// Play implements AudioPlayer.
func (p *Player) Play(wav []byte) error {
	pcm, err := parseWAV(wav)
	if err != nil {
		return err
	}

	player := p.ctx.NewPlayer(bytes.NewReader(pcm))
	p.mu.Lock()
	p.active = player
	p.stopped = false
	p.mu.Unlock()

	player.Play()
	for player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}

	p.mu.Lock()
	p.active = nil
	stopped := p.stopped
	p.mu.Unlock()

	if err := player.Close(); err != nil {
		return err
	}
	if stopped {
		return domain.ErrSpeechCancelled
	}
	return nil
}

// Stop interrupts the clip being played, if any.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != nil {
		p.stopped = true
		p.active.Pause()
		p.log.Debug("playback interrupted")
	}
}

// parseWAV validates a RIFF/WAVE clip against the device format and
// returns its raw PCM.
func parseWAV(wav []byte) ([]byte, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, errors.New("not a RIFF/WAVE clip")
	}

	var sawFormat bool
	for pos := 12; pos+8 <= len(wav); {
		id := string(wav[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))
		body := pos + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(wav) {
				return nil, errors.New("short fmt chunk")
			}
			channels := binary.LittleEndian.Uint16(wav[body+2:])
			rate := binary.LittleEndian.Uint32(wav[body+4:])
			bits := binary.LittleEndian.Uint16(wav[body+14:])
			if channels != ChannelCount || rate != SampleRate || bits != BitDepth {
				return nil, fmt.Errorf("unsupported format %dch %dHz %dbit", channels, rate, bits)
			}
			sawFormat = true
		case "data":
			if !sawFormat {
				return nil, errors.New("data chunk before fmt chunk")
			}
			end := body + size
			if end > len(wav) {
				end = len(wav)
			}
			return wav[body:end], nil
		}

		pos = body + size + size%2
	}
	return nil, errors.New("no data chunk")
}
