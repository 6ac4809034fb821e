// Package lexicon holds every line the coach speaks. Each language is one
// implementation of Lexicon; the core picks one at startup and never
// inspects the text it gets back.
package lexicon

import (
	"fmt"
	"strings"
	"time"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
)

// Lexicon renders pacing events into sentences for one language.
type Lexicon interface {
	// Language is the BCP-47 tag passed to the synthesis backend.
	Language() string
	// Voice is the default synthesis voice for the language.
	Voice() string

	// Cue renders a pacing correction for a non-on_time band.
	Cue(band domain.Band, deviation time.Duration) string
	// RemainingTime announces the time left before departure. Zero means
	// it is time to leave.
	RemainingTime(d time.Duration) string
	// Status summarises the latest pacing state on request.
	Status(state domain.PacingState) string
	// Arrived is spoken once when the route is complete.
	Arrived(band domain.Band, deviation time.Duration) string

	Welcome(plan string, rendezvous time.Time) string
	Bye() string
	Help() string
	NothingToRepeat() string
	Muted() string
	Unmuted() string
	NotUnderstood(input string) string

	// Phrasebook lists the common lines worth synthesizing ahead of time.
	Phrasebook() []string
}

// ForLanguage returns the lexicon for a language tag such as "en", "en-GB"
// or "it-IT".
func ForLanguage(tag string) (Lexicon, error) {
	base := strings.ToLower(tag)
	if i := strings.IndexAny(base, "-_"); i >= 0 {
		base = base[:i]
	}
	switch base {
	case "", "en":
		return English{}, nil
	case "it":
		return Italian{}, nil
	default:
		return nil, fmt.Errorf("lexicon %q: %w", tag, domain.ErrNotFound)
	}
}

// Languages lists the supported language tags.
func Languages() []string {
	return []string{"en", "it"}
}

// ── Duration components ──────────────────────────────────────────

// ClampSeconds drops the sub-second part of d.
func ClampSeconds(d time.Duration) time.Duration {
	return d.Truncate(time.Second)
}

// Hours is the whole-hours component of d.
func Hours(d time.Duration) int64 {
	return int64(d / time.Hour)
}

// Minutes is the minutes component of d, 0-59.
func Minutes(d time.Duration) int64 {
	return int64(d%time.Hour) / int64(time.Minute)
}

// Seconds is the seconds component of d, 0-59.
func Seconds(d time.Duration) int64 {
	return int64(d%time.Minute) / int64(time.Second)
}

// component renders one non-zero part, or "" when n is zero.
func component(n int64, singular, plural string) string {
	switch {
	case n == 1:
		return fmt.Sprintf("%d %s", n, singular)
	case n > 1:
		return fmt.Sprintf("%d %s", n, plural)
	default:
		return ""
	}
}

// joinParts joins non-empty parts as "a", "a and b" or "a, b and c".
func joinParts(conj string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return ""
	case 1:
		return kept[0]
	default:
		return strings.Join(kept[:len(kept)-1], ", ") + " " + conj + " " + kept[len(kept)-1]
	}
}

func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// approx rounds a deviation to something worth saying out loud: tens of
// seconds under a minute, whole minutes under an hour, then hours and
// minutes.
func approx(d time.Duration) time.Duration {
	d = abs(d)
	switch {
	case d < 55*time.Second:
		r := d.Round(10 * time.Second)
		if r < 10*time.Second {
			r = 10 * time.Second
		}
		return r
	case d < time.Hour:
		return d.Round(time.Minute)
	default:
		return d.Round(5 * time.Minute)
	}
}

// sampleDeviations feeds Phrasebook: typical roundings per band.
var sampleDeviations = map[domain.Urgency][]time.Duration{
	domain.UrgencyLow:    {20 * time.Second, 30 * time.Second, 40 * time.Second, 50 * time.Second, time.Minute},
	domain.UrgencyMedium: {2 * time.Minute, 3 * time.Minute},
	domain.UrgencyHigh:   {4 * time.Minute, 5 * time.Minute},
}

func phrasebook(l Lexicon) []string {
	var out []string
	for b := domain.BandCriticallyAhead; b <= domain.BandCriticallyBehind; b++ {
		if b == domain.BandOnTime {
			continue
		}
		for _, d := range sampleDeviations[b.Urgency()] {
			out = append(out, l.Cue(b, d))
		}
	}
	return append(out, l.RemainingTime(0), l.Bye(), l.Muted(), l.Unmuted(), l.NothingToRepeat())
}
