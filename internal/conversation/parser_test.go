package conversation

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
	"github.com/hammamikhairi/rendezvouscoach/internal/logger"
)

func TestKeywordParser(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	parser := NewKeywordParser(log)
	ctx := context.Background()

	tests := []struct {
		input    string
		wantType domain.CommandType
	}{
		// Status
		{"status", domain.CommandStatus},
		{"how am I doing?", domain.CommandStatus},
		{"How's it going", domain.CommandStatus},
		{"am i late?", domain.CommandStatus},

		// Repeat
		{"repeat", domain.CommandRepeat},
		{"again", domain.CommandRepeat},
		{"what?", domain.CommandRepeat},
		{"Say that again.", domain.CommandRepeat},

		// Mute
		{"mute", domain.CommandMute},
		{"shhh", domain.CommandMute},
		{"unmute", domain.CommandUnmute},
		{"sound on", domain.CommandUnmute},

		// Help
		{"help", domain.CommandHelp},
		{"?", domain.CommandHelp},

		// Quit
		{"quit", domain.CommandQuit},
		{"q", domain.CommandQuit},
		{"give up", domain.CommandQuit},

		// Unknown
		{"", domain.CommandUnknown},
		{"take me to the moon", domain.CommandUnknown},
		{"meters", domain.CommandUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd, err := parser.Parse(ctx, tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cmd.Type != tt.wantType {
				t.Errorf("Parse(%q) = %s, want %s", tt.input, cmd.Type, tt.wantType)
			}
		})
	}
}

func TestParseDistances(t *testing.T) {
	parser := NewKeywordParser(logger.New(logger.LevelOff, nil))
	ctx := context.Background()

	tests := []struct {
		input      string
		wantMeters float64
		wantKind   domain.ProgressKind
	}{
		{"1500", 1500, domain.ProgressRemaining},
		{"800 m", 800, domain.ProgressRemaining},
		{"800 meters left", 800, domain.ProgressRemaining},
		{"1.2km", 1200, domain.ProgressRemaining},
		{"1,5 km to go", 1500, domain.ProgressRemaining},
		{"2 kilometers remaining.", 2000, domain.ProgressRemaining},
		{"1 mile left", 1609.344, domain.ProgressRemaining},
		{"walked 300 m", 300, domain.ProgressElapsed},
		{"1 km done", 1000, domain.ProgressElapsed},
		{"500 metri mancanti", 500, domain.ProgressRemaining},
		{"arrived", 0, domain.ProgressRemaining},
		{"I'm here!", 0, domain.ProgressRemaining},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd, err := parser.Parse(ctx, tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cmd.Type != domain.CommandProgress {
				t.Fatalf("Parse(%q) = %s, want progress", tt.input, cmd.Type)
			}
			if math.Abs(cmd.Meters-tt.wantMeters) > 1e-6 {
				t.Errorf("Parse(%q) meters = %v, want %v", tt.input, cmd.Meters, tt.wantMeters)
			}
			if cmd.Kind != tt.wantKind {
				t.Errorf("Parse(%q) kind = %s, want %s", tt.input, cmd.Kind, tt.wantKind)
			}
			if cmd.Payload == "" {
				t.Error("payload should carry the original input")
			}
		})
	}
}

func TestCLINotifier(t *testing.T) {
	var out []string
	n := NewCLINotifier(logger.New(logger.LevelOff, nil), func(format string, a ...interface{}) {
		out = append(out, strings.TrimSpace(fmt.Sprintf(format, a...)))
	})

	_ = n.Notify(context.Background(), "Leave in 5 minutes.")
	_ = n.NotifyUrgent(context.Background(), "Time to leave!")
	n.Cue(domain.CueEvent{Text: "Speed up now!", Urgency: domain.UrgencyHigh, GeneratedAt: time.Date(2026, 1, 1, 8, 5, 0, 0, time.UTC)})

	if len(out) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(out))
	}
	if !strings.Contains(out[0], "Leave in 5 minutes.") || !strings.Contains(out[1], red) {
		t.Errorf("unexpected notifications: %q", out[:2])
	}
	if !strings.Contains(out[2], "08:05:00") || !strings.Contains(out[2], "Speed up now!") {
		t.Errorf("unexpected cue line: %q", out[2])
	}
}
