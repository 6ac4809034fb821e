package lexicon

import (
	"fmt"
	"time"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
)

var _ Lexicon = Italian{}

// Italian speaks numbers as digits; the Italian voices read them well.
type Italian struct{}

func (Italian) Language() string { return "it-IT" }
func (Italian) Voice() string    { return "it-IT-ElsaNeural" }

func (Italian) amount(d time.Duration) string {
	d = approx(d)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("circa %d secondi", Seconds(d))
	case d == time.Minute:
		return "circa un minuto"
	case d < time.Hour:
		return fmt.Sprintf("circa %d minuti", Minutes(d))
	case Hours(d) == 1 && Minutes(d) == 0:
		return "circa un'ora"
	case Hours(d) == 1:
		return "più di un'ora"
	case Minutes(d) == 0:
		return fmt.Sprintf("circa %d ore", Hours(d))
	default:
		return fmt.Sprintf("più di %d ore", Hours(d))
	}
}

func (i Italian) Cue(band domain.Band, dev time.Duration) string {
	amt := i.amount(dev)
	switch band {
	case domain.BandSlightlyBehind:
		return fmt.Sprintf("Sei indietro di %s. Accelera un po'.", amt)
	case domain.BandBehind:
		return fmt.Sprintf("Sei indietro di %s, aumenta il passo.", amt)
	case domain.BandCriticallyBehind:
		return fmt.Sprintf("Sei indietro di %s. Accelera subito!", amt)
	case domain.BandSlightlyAhead:
		return fmt.Sprintf("Sei avanti di %s. Rallenta un po'.", amt)
	case domain.BandAhead:
		return fmt.Sprintf("Sei avanti di %s, rallenta.", amt)
	case domain.BandCriticallyAhead:
		return fmt.Sprintf("Sei in anticipo di %s. Rallenta decisamente.", amt)
	case domain.BandOnTime:
		return "Passo perfetto. Continua così."
	default:
		return ""
	}
}

// RemainingTime uses the singular "Manca" only when the whole message
// counts exactly one unit.
func (Italian) RemainingTime(d time.Duration) string {
	d = ClampSeconds(d)
	if d <= 0 {
		return "Ora di partire!"
	}
	h, m, s := Hours(d), Minutes(d), Seconds(d)
	prefix := "Mancano"
	if h+m+s == 1 {
		prefix = "Manca"
	}
	return prefix + " " + joinParts("e",
		component(h, "ora", "ore"),
		component(m, "minuto", "minuti"),
		component(s, "secondo", "secondi"),
	)
}

func (Italian) distance(m float64) string {
	v, km := distance(m)
	if km {
		return v + " chilometri"
	}
	return v + " metri"
}

func (i Italian) Status(s domain.PacingState) string {
	togo := "Mancano " + i.distance(s.Remaining) + "."
	if !s.HasEstimate {
		return togo + " Non ho ancora abbastanza dati sul passo."
	}
	switch s.Band.Direction() {
	case 1:
		return fmt.Sprintf("%s Sei indietro di %s.", togo, i.amount(s.Deviation))
	case -1:
		return fmt.Sprintf("%s Sei avanti di %s.", togo, i.amount(s.Deviation))
	default:
		return togo + " Sei perfettamente in orario."
	}
}

func (i Italian) Arrived(band domain.Band, dev time.Duration) string {
	switch band.Direction() {
	case 1:
		return fmt.Sprintf("Arrivato, con %s di ritardo.", i.amount(dev))
	case -1:
		return fmt.Sprintf("Arrivato, con %s di anticipo.", i.amount(dev))
	default:
		return "Arrivato, perfettamente in orario."
	}
}

func (Italian) Welcome(plan string, rendezvous time.Time) string {
	return fmt.Sprintf("Si parte: %s. Appuntamento alle %s.", plan, rendezvous.Format("15:04"))
}

func (Italian) Bye() string             { return "Ciao." }
func (Italian) NothingToRepeat() string { return "Non ho ancora detto niente." }
func (Italian) Muted() string           { return "Audio disattivato. Continuo a seguirti." }
func (Italian) Unmuted() string         { return "Audio attivato." }

func (Italian) Help() string {
	return "Dimmi una distanza come 800 metri, oppure status, repeat, mute, unmute, quit."
}

func (Italian) NotUnderstood(input string) string {
	return fmt.Sprintf("Non ho capito %q. Dì help per le opzioni.", input)
}

func (i Italian) Phrasebook() []string { return phrasebook(i) }
