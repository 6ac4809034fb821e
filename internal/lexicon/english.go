package lexicon

import (
	"fmt"
	"math"
	"time"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
)

var _ Lexicon = English{}

// English is the default lexicon. Lines stay short; the synthesis engine
// handles inflection.
type English struct{}

func (English) Language() string { return "en-US" }
func (English) Voice() string    { return "en-US-AvaNeural" }

var smallNumbers = []string{
	"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten",
	"eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen", "seventeen", "eighteen", "nineteen",
}

var tens = []string{"", "", "twenty", "thirty", "forty", "fifty"}

// spell writes 0-59 as words, larger numbers as digits.
func spell(n int64) string {
	switch {
	case n < 0 || n >= 60:
		return fmt.Sprintf("%d", n)
	case n < 20:
		return smallNumbers[n]
	case n%10 == 0:
		return tens[n/10]
	default:
		return tens[n/10] + "-" + smallNumbers[n%10]
	}
}

// amount renders an approximate deviation, e.g. "about two minutes".
func (English) amount(d time.Duration) string {
	d = approx(d)
	switch {
	case d < time.Minute:
		return "about " + spell(Seconds(d)) + " seconds"
	case d == time.Minute:
		return "about a minute"
	case d < time.Hour:
		return "about " + spell(Minutes(d)) + " minutes"
	case Minutes(d) == 0 && Hours(d) == 1:
		return "about an hour"
	case Minutes(d) == 0:
		return "about " + spell(Hours(d)) + " hours"
	default:
		return "over " + englishHours(Hours(d))
	}
}

func englishHours(h int64) string {
	if h == 1 {
		return "an hour"
	}
	return spell(h) + " hours"
}

func (e English) Cue(band domain.Band, dev time.Duration) string {
	amt := e.amount(dev)
	switch band {
	case domain.BandSlightlyBehind:
		return fmt.Sprintf("You're %s behind. Pick it up a little.", amt)
	case domain.BandBehind:
		return fmt.Sprintf("You're %s behind, pick up the pace.", amt)
	case domain.BandCriticallyBehind:
		return fmt.Sprintf("You're %s behind. Speed up now!", amt)
	case domain.BandSlightlyAhead:
		return fmt.Sprintf("You're %s ahead. Ease off a little.", amt)
	case domain.BandAhead:
		return fmt.Sprintf("You're %s ahead, slow down.", amt)
	case domain.BandCriticallyAhead:
		return fmt.Sprintf("You're %s early. Slow right down.", amt)
	case domain.BandOnTime:
		return "Right on pace. Hold it."
	default:
		return ""
	}
}

func (English) RemainingTime(d time.Duration) string {
	d = ClampSeconds(d)
	if d <= 0 {
		return "Time to leave!"
	}
	return "Leave in " + joinParts("and",
		component(Hours(d), "hour", "hours"),
		component(Minutes(d), "minute", "minutes"),
		component(Seconds(d), "second", "seconds"),
	) + "."
}

// distance renders meters the way people say them: tens of meters below
// a kilometer, one decimal above.
func distance(m float64) (value string, km bool) {
	if m < 1000 {
		return fmt.Sprintf("%d", int64(math.Round(m/10)*10)), false
	}
	return fmt.Sprintf("%.1f", m/1000), true
}

func (English) distance(m float64) string {
	v, km := distance(m)
	if km {
		return v + " kilometers"
	}
	return v + " meters"
}

func (e English) Status(s domain.PacingState) string {
	togo := e.distance(s.Remaining) + " to go."
	if !s.HasEstimate {
		return togo + " Not enough data for a pace yet."
	}
	switch s.Band.Direction() {
	case 1:
		return fmt.Sprintf("%s You're %s behind.", togo, e.amount(s.Deviation))
	case -1:
		return fmt.Sprintf("%s You're %s ahead.", togo, e.amount(s.Deviation))
	default:
		return togo + " You're right on time."
	}
}

func (e English) Arrived(band domain.Band, dev time.Duration) string {
	switch band.Direction() {
	case 1:
		return fmt.Sprintf("You made it, %s late.", e.amount(dev))
	case -1:
		return fmt.Sprintf("You made it, %s early.", e.amount(dev))
	default:
		return "You made it, right on time."
	}
}

func (English) Welcome(plan string, rendezvous time.Time) string {
	return fmt.Sprintf("Coaching %s. Rendezvous at %s.", plan, rendezvous.Format("15:04"))
}

func (English) Bye() string             { return "Bye." }
func (English) NothingToRepeat() string { return "I haven't said anything yet." }
func (English) Muted() string           { return "Muted. I'll keep tracking." }
func (English) Unmuted() string         { return "Unmuted." }

func (English) Help() string {
	return "Say a distance like 800 meters, or status, repeat, mute, unmute, quit."
}

func (English) NotUnderstood(input string) string {
	return fmt.Sprintf("Didn't catch %q. Say help for options.", input)
}

func (e English) Phrasebook() []string { return phrasebook(e) }
