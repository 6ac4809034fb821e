package gpt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
	"github.com/hammamikhairi/rendezvouscoach/internal/logger"
)

// promptClassify turns a free-form utterance into one coach command.
const promptClassify = `You turn what a walker says to their pacing coach into one command.
The walker is on the way to a meeting point and reports progress in any words.

Commands:
- "progress": a position report. Set exactly one of "remaining_m" (meters still to go)
  or "elapsed_m" (meters covered). Convert units and fractions using the route length
  you are given, e.g. "halfway there" on a 2000 m route is remaining_m 1000, "just
  arrived" is remaining_m 0.
- "status": they ask how they are doing or whether they will make it.
- "repeat": they want the last advice again.
- "mute" / "unmute": they want the coach to stop or resume talking.
- "help": they ask what they can say.
- "quit": they want to stop coaching.
- "unknown": anything else.

Reply with a JSON object and nothing else:
{"command": "<name>", "remaining_m": <number or null>, "elapsed_m": <number or null>}`

type classifyResponse struct {
	Command   string   `json:"command"`
	Remaining *float64 `json:"remaining_m"`
	Elapsed   *float64 `json:"elapsed_m"`
}

// Chatter sends a chat and returns the JSON reply. *Client implements it.
type Chatter interface {
	ChatJSON(ctx context.Context, messages []Message) (string, error)
}

// Classifier maps utterances the keyword parser could not handle to
// commands.
type Classifier struct {
	chat Chatter
	log  *logger.Logger
}

// NewClassifier creates a classifier over a chat client.
func NewClassifier(chat Chatter, log *logger.Logger) *Classifier {
	return &Classifier{chat: chat, log: log}
}

// Classify returns the command for input. sess, when not nil, gives the
// model the route length and last known position. A reply that cannot be
// used yields CommandUnknown, not an error; errors are transport failures.
func (c *Classifier) Classify(ctx context.Context, input string, sess *domain.Session) (*domain.Command, error) {
	msgs := []Message{{Role: RoleSystem, Content: promptClassify}}
	if block := routeContext(sess); block != "" {
		msgs = append(msgs,
			Message{Role: RoleUser, Content: block},
			Message{Role: RoleAssistant, Content: `{"command": "unknown", "remaining_m": null, "elapsed_m": null}`},
		)
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: input})

	raw, err := c.chat.ChatJSON(ctx, msgs)
	if err != nil {
		return nil, err
	}

	unknown := &domain.Command{Type: domain.CommandUnknown, Payload: input}

	var resp classifyResponse
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &resp); err != nil {
		c.log.Warn("unparseable classification %q: %v", truncate(raw, 80), err)
		return unknown, nil
	}

	cmd := &domain.Command{Type: commandFromString(resp.Command), Payload: input}
	if cmd.Type == domain.CommandProgress {
		switch {
		case resp.Remaining != nil && resp.Elapsed == nil && *resp.Remaining >= 0:
			cmd.Kind, cmd.Meters = domain.ProgressRemaining, *resp.Remaining
		case resp.Elapsed != nil && resp.Remaining == nil && *resp.Elapsed >= 0:
			cmd.Kind, cmd.Meters = domain.ProgressElapsed, *resp.Elapsed
		default:
			c.log.Warn("progress without a usable distance: %q", truncate(raw, 80))
			return unknown, nil
		}
	}

	c.log.Debug("classified %q -> %s %.0f", input, cmd.Type, cmd.Meters)
	return cmd, nil
}

func routeContext(sess *domain.Session) string {
	if sess == nil || sess.Target.Distance <= 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Route length: %.0f m.", sess.Target.Distance)
	if sess.Accepted > 0 {
		fmt.Fprintf(&b, " Last known remaining distance: %.0f m.", sess.Pacing.Remaining)
	}
	return b.String()
}

func commandFromString(s string) domain.CommandType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "progress":
		return domain.CommandProgress
	case "status":
		return domain.CommandStatus
	case "repeat":
		return domain.CommandRepeat
	case "mute":
		return domain.CommandMute
	case "unmute":
		return domain.CommandUnmute
	case "help":
		return domain.CommandHelp
	case "quit":
		return domain.CommandQuit
	default:
		return domain.CommandUnknown
	}
}

// stripCodeFence removes ```json ... ``` wrappers models like to add.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}
