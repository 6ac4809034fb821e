package speech

import (
	"time"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
)

// Audio format requested from Azure and expected by the player.
const DefaultAudioFormat = "riff-24khz-16bit-mono-pcm"

// Playback parameters matching DefaultAudioFormat.
const (
	SampleRate   = 24000
	ChannelCount = 1
	BitDepth     = 16
)

// Env var names for Azure Speech credentials.
const (
	EnvAzureSpeechKey    = "AZURE_SPEECH_KEY"
	EnvAzureSpeechRegion = "AZURE_SPEECH_REGION"
)

// Priority orders queued utterances. Higher speaks first.
type Priority int

const (
	PriorityLow      Priority = iota // countdown chatter
	PriorityNormal                   // replies to commands
	PriorityHigh                     // pacing cues
	PriorityCritical                 // critical pacing cues
)

// PriorityFor maps a cue urgency onto the queue. Every cue outranks app
// lines so a correction never waits behind chatter.
func PriorityFor(u domain.Urgency) Priority {
	if u >= domain.UrgencyHigh {
		return PriorityCritical
	}
	return PriorityHigh
}

// request is one queued utterance. Cues carry a done channel and an ID;
// app lines queued with Say carry neither.
type request struct {
	id       uint64
	text     string
	priority Priority
	queuedAt time.Time
	done     chan error
}

// finish delivers the outcome to a cue's caller exactly once.
func (r *request) finish(err error) {
	if r.done == nil {
		return
	}
	r.done <- err
	close(r.done)
	r.done = nil
}
