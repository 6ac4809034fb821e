package domain

import "context"

// SampleSource produces progress samples. The channel is closed when the
// source is exhausted or ctx is done. Sources are not restartable: a second
// call returns ErrSourceConsumed.
type SampleSource interface {
	Samples(ctx context.Context) (<-chan Sample, error)
}

// SpeechSink speaks one utterance at a time. Speak must not block: it
// returns a channel that receives exactly one value (nil when playback
// finished, ErrSpeechCancelled after Cancel, or a synthesis error) and is
// then closed. Cancel interrupts the utterance started by the last Speak.
type SpeechSink interface {
	Speak(ctx context.Context, text string, urgency Urgency) <-chan error
	Cancel()
}

// PlanSource provides trip plans. Implementations can be in-memory presets
// or file-based.
type PlanSource interface {
	List(ctx context.Context) ([]PlanSummary, error)
	Get(ctx context.Context, name string) (*Plan, error)
}

// SessionStore keeps the latest snapshot of each session. It holds no
// history.
type SessionStore interface {
	Save(ctx context.Context, session *Session) error
	Load(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	ListActive(ctx context.Context) ([]*Session, error)
}

// CommandParser converts raw user input (typed or transcribed) into commands.
type CommandParser interface {
	Parse(ctx context.Context, input string) (*Command, error)
}

// Notifier delivers non-cue messages to the user. Implementations can
// write to the terminal or also speak.
type Notifier interface {
	Notify(ctx context.Context, message string) error
	NotifyUrgent(ctx context.Context, message string) error
}
