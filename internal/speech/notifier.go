package speech

import (
	"context"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
)

var _ domain.Notifier = (*SpeakingNotifier)(nil)

// Sayer queues fire-and-forget app lines. *Mouth implements it.
type Sayer interface {
	Say(text string, priority Priority)
}

// SpeakingNotifier prints through an inner notifier and also speaks the
// message, unless muted.
type SpeakingNotifier struct {
	text  domain.Notifier
	mouth Sayer
	muted atomic.Bool
}

// NewSpeakingNotifier creates a notifier that both prints and speaks.
func NewSpeakingNotifier(text domain.Notifier, mouth Sayer) *SpeakingNotifier {
	return &SpeakingNotifier{text: text, mouth: mouth}
}

// SetMuted stops or resumes speaking. Messages are still printed.
func (n *SpeakingNotifier) SetMuted(muted bool) { n.muted.Store(muted) }

// Notify prints the message and queues it at normal priority.
func (n *SpeakingNotifier) Notify(ctx context.Context, message string) error {
	return n.deliver(ctx, message, PriorityNormal, n.text.Notify)
}

// NotifyUrgent prints the message and queues it at high priority.
func (n *SpeakingNotifier) NotifyUrgent(ctx context.Context, message string) error {
	return n.deliver(ctx, message, PriorityHigh, n.text.NotifyUrgent)
}

// Chatter speaks a low-priority line that any later message may drop.
func (n *SpeakingNotifier) Chatter(ctx context.Context, message string) error {
	return n.deliver(ctx, message, PriorityLow, n.text.Notify)
}

func (n *SpeakingNotifier) deliver(ctx context.Context, message string, p Priority, print func(context.Context, string) error) error {
	if err := print(ctx, message); err != nil {
		return err
	}
	if !n.muted.Load() {
		if line := cleanForSpeech(message); line != "" {
			n.mouth.Say(line, p)
		}
	}
	return nil
}

var (
	bracketPrefix = regexp.MustCompile(`^\[[A-Za-z ]+\]\s*`)
	ansiCodes     = regexp.MustCompile(`\x1b\[[0-9;]*m`)
)

// cleanForSpeech strips terminal formatting that should not be read out.
func cleanForSpeech(msg string) string {
	msg = ansiCodes.ReplaceAllString(msg, "")
	msg = bracketPrefix.ReplaceAllString(msg, "")
	return strings.TrimSpace(msg)
}
