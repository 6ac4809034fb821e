package lexicon

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
)

func hms(h, m, s int) time.Duration {
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
}

func TestItalianRemainingTime(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "Ora di partire!"},
		{hms(0, 0, 1), "Manca 1 secondo"},
		{hms(0, 0, 10), "Mancano 10 secondi"},
		{hms(0, 1, 0), "Manca 1 minuto"},
		{hms(0, 12, 0), "Mancano 12 minuti"},
		{hms(1, 0, 0), "Manca 1 ora"},
		{hms(2, 0, 0), "Mancano 2 ore"},
		{hms(1, 12, 0), "Mancano 1 ora e 12 minuti"},
		{hms(0, 5, 30), "Mancano 5 minuti e 30 secondi"},
		{hms(1, 20, 30), "Mancano 1 ora, 20 minuti e 30 secondi"},
		{500 * time.Millisecond, "Ora di partire!"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Italian{}.RemainingTime(tt.in), "%s", tt.in)
	}
}

func TestEnglishRemainingTime(t *testing.T) {
	assert.Equal(t, "Time to leave!", English{}.RemainingTime(0))
	assert.Equal(t, "Leave in 1 minute.", English{}.RemainingTime(time.Minute))
	assert.Equal(t, "Leave in 1 hour, 20 minutes and 30 seconds.", English{}.RemainingTime(hms(1, 20, 30)))
	assert.Equal(t, "Leave in 2 hours and 5 seconds.", English{}.RemainingTime(hms(2, 0, 5)))
}

func TestComponents(t *testing.T) {
	assert.Equal(t, int64(5), Seconds(5*time.Second))
	assert.Equal(t, int64(12), Seconds(hms(0, 1, 12)))
	assert.Equal(t, int64(0), Minutes(5*time.Second))
	assert.Equal(t, int64(2), Minutes(hms(0, 2, 35)))
	assert.Equal(t, int64(0), Hours(hms(0, 59, 59)))
	assert.Equal(t, int64(1), Hours(hms(1, 59, 59)))
	assert.Zero(t, ClampSeconds(12*time.Millisecond+43*time.Nanosecond))
}

func TestEnglishCue(t *testing.T) {
	e := English{}
	assert.Equal(t, "You're about two minutes behind, pick up the pace.", e.Cue(domain.BandBehind, 2*time.Minute+10*time.Second))
	assert.Equal(t, "You're about thirty seconds ahead. Ease off a little.", e.Cue(domain.BandSlightlyAhead, -28*time.Second))
	assert.Equal(t, "You're about a minute behind. Pick it up a little.", e.Cue(domain.BandSlightlyBehind, 58*time.Second))
	assert.Equal(t, "You're about four minutes behind. Speed up now!", e.Cue(domain.BandCriticallyBehind, 4*time.Minute))
	assert.Empty(t, e.Cue(domain.BandUnknown, 0))
}

func TestCueTextDiffersPerBand(t *testing.T) {
	for _, l := range []Lexicon{English{}, Italian{}} {
		seen := map[string]domain.Band{}
		for b := domain.BandCriticallyAhead; b <= domain.BandCriticallyBehind; b++ {
			text := l.Cue(b, 2*time.Minute)
			require.NotEmpty(t, text)
			_, dup := seen[text]
			assert.False(t, dup, "%s: %q reused", l.Language(), text)
			seen[text] = b
		}
	}
}

func TestStatusAndArrived(t *testing.T) {
	e := English{}
	assert.Equal(t, "1.2 kilometers to go. Not enough data for a pace yet.", e.Status(domain.PacingState{Remaining: 1234}))
	assert.Equal(t, "800 meters to go. You're about forty seconds ahead.", e.Status(domain.PacingState{
		Remaining: 803, HasEstimate: true, Deviation: -41 * time.Second, Band: domain.BandSlightlyAhead,
	}))
	assert.Equal(t, "You made it, right on time.", e.Arrived(domain.BandOnTime, 3*time.Second))
	assert.Equal(t, "Arrivato, con circa 2 minuti di ritardo.", Italian{}.Arrived(domain.BandBehind, 2*time.Minute))
}

func TestForLanguage(t *testing.T) {
	tests := []struct {
		tag  string
		want string
	}{
		{"", "en-US"},
		{"en", "en-US"},
		{"en-GB", "en-US"},
		{"IT", "it-IT"},
		{"it_IT", "it-IT"},
	}
	for _, tt := range tests {
		l, err := ForLanguage(tt.tag)
		require.NoError(t, err, tt.tag)
		assert.Equal(t, tt.want, l.Language())
	}

	_, err := ForLanguage("fr")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestPhrasebookCoversCues(t *testing.T) {
	pb := English{}.Phrasebook()
	assert.Contains(t, pb, "You're about two minutes behind, pick up the pace.")
	assert.Contains(t, pb, "Time to leave!")
	for _, line := range pb {
		assert.NotEmpty(t, line)
	}
}
