// Package conversation turns typed or transcribed input into coach commands
// and prints notifications for the user.
package conversation

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
	"github.com/hammamikhairi/rendezvouscoach/internal/logger"
)

// Compile-time interface check.
var _ domain.CommandParser = (*KeywordParser)(nil)

// KeywordParser matches user input to commands using keywords and simple
// patterns. Distances ("800", "1.2 km", "800 meters left", "walked 300 m")
// become progress commands.
type KeywordParser struct {
	log      *logger.Logger
	patterns []patternRule
}

type patternRule struct {
	regex *regexp.Regexp
	cmd   domain.CommandType
}

// distanceRe captures a number, an optional unit and the words around it.
var distanceRe = regexp.MustCompile(`(?i)^(?:(walked|covered|done|did|ran|elapsed)\s+)?(\d+(?:[.,]\d+)?)\s*(km|kms|kilometers?|kilometres?|chilometri|m|meters?|metres?|metri|mi|miles?)?(?:\s+(left|to go|remaining|more|done|covered|walked|in|mancanti))?\.?$`)

// arrivedRe is shorthand for zero meters left.
var arrivedRe = regexp.MustCompile(`(?i)^(arrived|i'?m here|here|made it|there|zero|sono arrivato)[.!]?$`)

// NewKeywordParser creates a keyword-based command parser.
func NewKeywordParser(log *logger.Logger) *KeywordParser {
	p := &KeywordParser{log: log}
	p.patterns = []patternRule{
		{regexp.MustCompile(`(?i)^(status|s|where|pace|progress|how am i doing|how'?s it going|how is it going|am i late|am i on time)\??$`), domain.CommandStatus},
		{regexp.MustCompile(`(?i)^(repeat|again|r|what|come again|say that again|what did you say)\??$`), domain.CommandRepeat},
		{regexp.MustCompile(`(?i)^(unmute|sound on|talk|speak|voice on)$`), domain.CommandUnmute},
		{regexp.MustCompile(`(?i)^(mute|quiet|silence|sound off|voice off|shh+|hush)$`), domain.CommandMute},
		{regexp.MustCompile(`(?i)^(help|h|\?|commands)$`), domain.CommandHelp},
		{regexp.MustCompile(`(?i)^(quit|exit|stop|q|abandon|give up)$`), domain.CommandQuit},
	}
	return p
}

// Parse converts user input into a command. Unmatched input yields
// CommandUnknown with the input as payload; Parse itself never fails.
func (p *KeywordParser) Parse(ctx context.Context, input string) (*domain.Command, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return &domain.Command{Type: domain.CommandUnknown}, nil
	}

	p.log.Debug("parsing input: %q", trimmed)

	// Voice transcripts end in punctuation more often than not.
	bare := strings.TrimRight(trimmed, ".!")

	for _, rule := range p.patterns {
		if rule.regex.MatchString(bare) {
			p.log.Debug("matched command: %s", rule.cmd)
			return &domain.Command{Type: rule.cmd, Payload: trimmed}, nil
		}
	}

	if arrivedRe.MatchString(trimmed) {
		return &domain.Command{Type: domain.CommandProgress, Kind: domain.ProgressRemaining, Payload: trimmed}, nil
	}

	if cmd, ok := parseDistance(bare); ok {
		cmd.Payload = trimmed
		p.log.Debug("matched distance: %.0f m %s", cmd.Meters, cmd.Kind)
		return cmd, nil
	}

	p.log.Debug("no match, returning unknown command")
	return &domain.Command{Type: domain.CommandUnknown, Payload: trimmed}, nil
}

// parseDistance reads "800", "1.2km", "800 meters left" or "walked 300 m".
func parseDistance(s string) (*domain.Command, bool) {
	m := distanceRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return nil, false
	}
	v, err := strconv.ParseFloat(strings.Replace(m[2], ",", ".", 1), 64)
	if err != nil {
		return nil, false
	}

	switch unit := strings.ToLower(m[3]); {
	case strings.HasPrefix(unit, "k") || unit == "chilometri":
		v *= 1000
	case unit == "mi" || strings.HasPrefix(unit, "mile"):
		v *= 1609.344
	}

	kind := domain.ProgressRemaining
	switch strings.ToLower(m[4]) {
	case "done", "covered", "walked", "in":
		kind = domain.ProgressElapsed
	}
	if m[1] != "" {
		kind = domain.ProgressElapsed
	}

	return &domain.Command{Type: domain.CommandProgress, Meters: v, Kind: kind}, true
}
