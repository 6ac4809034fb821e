package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hammamikhairi/rendezvouscoach/internal/logger"
)

func TestCleanTranscription(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  800 meters\nleft ", "800 meters left"},
		{"[BLANK_AUDIO]", ""},
		{"(wind blowing) hey coach status", "hey coach status"},
		{"[00:00:00.000 --> 00:00:02.000]  how am I doing", "how am I doing"},
		{"Thank you.", ""},
		{"you", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanTranscription(tt.in), "%q", tt.in)
	}
}

func TestStripWakeWord(t *testing.T) {
	e := &Ear{wakeWords: defaultWakeWords, log: logger.New(logger.LevelOff, nil)}

	tests := []struct {
		in   string
		rest string
		woke bool
	}{
		{"Hey coach, 1.2 kilometers left.", "1.2 kilometers left", true},
		{"hey coach", "", true},
		{"um okay coach status", "status", true},
		{"what time is it", "", false},
	}
	for _, tt := range tests {
		rest, woke := e.stripWakeWord(tt.in)
		assert.Equal(t, tt.woke, woke, "%q", tt.in)
		assert.Equal(t, tt.rest, rest, "%q", tt.in)
	}
}
