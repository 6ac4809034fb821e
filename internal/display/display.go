// Package display provides the terminal UI using Bubble Tea.
//
// The [UI] type keeps a pacing status bar and an input prompt at the
// bottom of the terminal. All application output is printed above the
// rendered area via Program.Println / Printf, so concurrent writes never
// garble the display.
package display

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
)

// ── Styles ───────────────────────────────────────────────────────

var (
	barBg = lipgloss.NewStyle().
		Background(lipgloss.Color("#27272a")).
		Foreground(lipgloss.Color("#a1a1aa"))

	onTimeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bbf7d0"))

	slightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bae6fd"))

	offStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fde68a"))

	criticalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fca5a5")).
			Bold(true)

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a")).
			Italic(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a1a1aa"))

	sepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#52525b"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	// BannerStyle is the muted slate of the startup banner.
	BannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	chatStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bae6fd"))

	primaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4d4d8"))

	secondaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a"))

	urgentOutputStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#fca5a5"))

	userInputEchoStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#a1a1aa"))
)

const prompt = "coach> "

// ── UI ───────────────────────────────────────────────────────────

// UI manages the terminal through Bubble Tea.
//
// Call [NewUI] then [UI.Run] (blocking). Other goroutines may safely
// call [UI.Println], [UI.Printf], and read from [UI.InputChan] at any
// time after [UI.WaitReady] returns.
type UI struct {
	program *tea.Program
	inputCh chan string
	readyCh chan struct{}
	quitCh  chan struct{}
	store   domain.SessionStore
	now     func() time.Time
	done    atomic.Bool
}

// NewUI creates the display. now drives the countdown shown before
// departure; pass the session clock's Now.
func NewUI(store domain.SessionStore, now func() time.Time) *UI {
	if now == nil {
		now = time.Now
	}
	return &UI{
		store:   store,
		now:     now,
		inputCh: make(chan string, 16),
		readyCh: make(chan struct{}),
		quitCh:  make(chan struct{}),
	}
}

// Println prints a line above the prompt. Thread-safe. Falls back to
// fmt.Println before the program starts or after it ends.
func (u *UI) Println(a ...interface{}) {
	if u.program != nil && !u.done.Load() {
		u.program.Println(a...)
	} else {
		fmt.Println(a...)
	}
}

// Printf prints formatted text above the prompt on its own line.
// Thread-safe.
func (u *UI) Printf(format string, a ...interface{}) {
	if u.program != nil && !u.done.Load() {
		u.program.Printf(format, a...)
	} else {
		fmt.Printf(format+"\n", a...)
	}
}

// PrintLine prints a plain line. It satisfies speech.NewPrintSink.
func (u *UI) PrintLine(text string) { u.PrintChat(text) }

// InputChan returns completed user-input lines.
func (u *UI) InputChan() <-chan string { return u.inputCh }

// ── Styled print helpers ─────────────────────────────────────────

// PrintChat prints a coach line.
func (u *UI) PrintChat(text string) {
	u.Println(chatStyle.Render("  " + text))
}

// PrintInfo prints a primary line, such as the session header.
func (u *UI) PrintInfo(text string) {
	u.Println(primaryStyle.Render("  " + text))
}

// PrintHint prints a secondary/dimmed line.
func (u *UI) PrintHint(text string) {
	u.Println(secondaryStyle.Render("  " + text))
}

// PrintUrgent prints an urgent/error line.
func (u *UI) PrintUrgent(text string) {
	u.Println(urgentOutputStyle.Render("  " + text))
}

// PrintVoice prints a voice-recognised input line.
func (u *UI) PrintVoice(text string) {
	u.Println(secondaryStyle.Render("[voice] ") + primaryStyle.Render(text))
}

// PrintUserInput echoes the user's typed command into the scrollback.
func (u *UI) PrintUserInput(text string) {
	u.Println(promptStyle.Render("coach") + secondaryStyle.Render("> ") + userInputEchoStyle.Render(text))
}

// WaitReady blocks until the Bubble Tea event loop is running.
func (u *UI) WaitReady() { <-u.readyCh }

// Quit tells Bubble Tea to exit.
func (u *UI) Quit() {
	if u.program != nil {
		u.program.Quit()
	}
}

// QuitChan is closed when Run returns.
func (u *UI) QuitChan() <-chan struct{} { return u.quitCh }

// Run starts the Bubble Tea event loop. Blocks until quit.
func (u *UI) Run() error {
	ti := textinput.New()
	// A plain-text prompt keeps the textinput width math correct; styled
	// prompts add invisible ANSI bytes.
	ti.Prompt = prompt
	ti.PromptStyle = promptStyle
	ti.TextStyle = userInputEchoStyle
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#94a3b8"))
	ti.Placeholder = "800 m left, status, mute, help"
	ti.Focus()
	ti.CharLimit = 200
	ti.Width = 60 // updated on first WindowSizeMsg

	m := model{
		store:   u.store,
		now:     u.now,
		input:   ti,
		inputCh: u.inputCh,
		readyCh: u.readyCh,
		echoFn: func(v string) {
			u.PrintUserInput(v)
		},
	}

	u.program = tea.NewProgram(m)
	_, err := u.program.Run()
	u.done.Store(true)
	close(u.quitCh)
	return err
}

// ── Bubble Tea model ─────────────────────────────────────────────

type model struct {
	store    domain.SessionStore
	now      func() time.Time
	input    textinput.Model
	inputCh  chan<- string
	readyCh  chan struct{}
	echoFn   func(string)
	sessions []*domain.Session
	width    int
}

type tickMsg time.Time

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		tickCmd(),
		signalReady(m.readyCh),
	)
}

func signalReady(ch chan struct{}) tea.Cmd {
	return func() tea.Msg {
		close(ch)
		return nil
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEnter:
			v := m.input.Value()
			m.input.Reset()
			if strings.TrimSpace(v) != "" {
				m.inputCh <- v
				// Echo from a Cmd so Update never blocks on Println.
				echoFn := m.echoFn
				return m, func() tea.Msg {
					echoFn(v)
					return nil
				}
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		if msg.Width > len(prompt) {
			m.input.Width = msg.Width - len(prompt)
		}
		return m, nil

	case tickMsg:
		if sessions, err := m.store.ListActive(context.Background()); err == nil {
			m.sessions = sessions
		}
		title := "Rendezvous Coach"
		if len(m.sessions) > 0 {
			title += " | " + titleFor(m.sessions[0], m.now())
		}
		return m, tea.Batch(tickCmd(), tea.SetWindowTitle(title))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	var b strings.Builder
	for _, s := range m.sessions {
		b.WriteString(renderBar(s, m.now(), m.width))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(m.input.View())
	return b.String()
}

// renderBar draws one session: distance left, pace, deviation and band.
func renderBar(s *domain.Session, now time.Time, width int) string {
	var parts []string
	if s.PlanName != "" {
		parts = append(parts, labelStyle.Render(s.PlanName))
	}

	if s.Status == domain.SessionCountdown {
		parts = append(parts, pendingStyle.Render("rendezvous in "+fmtDuration(s.Target.Rendezvous.Sub(now))))
	} else {
		ps := s.Pacing
		parts = append(parts, labelStyle.Render("left: ")+primaryStyle.Render(fmtDistance(ps.Remaining)))
		if ps.HasEstimate {
			parts = append(parts,
				labelStyle.Render("pace: ")+primaryStyle.Render(fmtPace(ps.Pace)),
				bandStyle(ps.Band).Render(fmtDeviation(ps.Deviation)+" "+strings.ReplaceAll(ps.Band.String(), "_", " ")),
			)
		} else {
			parts = append(parts, pendingStyle.Render("estimating pace"))
		}
		if s.Scheduler.State == domain.CueSpeaking {
			parts = append(parts, secondaryStyle.Render("speaking"))
		}
	}

	content := " " + strings.Join(parts, sepStyle.Render("  │  ")) + " "
	if width <= 0 {
		width = 80
	}
	return barBg.Width(width).Render(content)
}

func titleFor(s *domain.Session, now time.Time) string {
	if s.Status == domain.SessionCountdown {
		return "rendezvous in " + fmtDuration(s.Target.Rendezvous.Sub(now))
	}
	if !s.Pacing.HasEstimate {
		return fmtDistance(s.Pacing.Remaining) + " left"
	}
	return fmtDistance(s.Pacing.Remaining) + " left, " + fmtDeviation(s.Pacing.Deviation)
}

func bandStyle(b domain.Band) lipgloss.Style {
	switch b.Urgency() {
	case domain.UrgencyHigh:
		return criticalStyle
	case domain.UrgencyMedium:
		return offStyle
	case domain.UrgencyLow:
		return slightStyle
	default:
		return onTimeStyle
	}
}

// ── Helpers ──────────────────────────────────────────────────────

func fmtDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// fmtDeviation is signed: "+1m20s" late, "-35s" early.
func fmtDeviation(d time.Duration) string {
	if d < 0 {
		return "-" + fmtDuration(-d)
	}
	return "+" + fmtDuration(d)
}

func fmtDistance(m float64) string {
	if m >= 1000 {
		return fmt.Sprintf("%.2f km", m/1000)
	}
	return fmt.Sprintf("%.0f m", m)
}

// fmtPace renders speed as minutes per kilometer, the way runners read it.
func fmtPace(mps float64) string {
	if mps <= 0 || math.IsNaN(mps) {
		return "--:--/km"
	}
	secPerKm := int(math.Round(1000 / mps))
	if secPerKm >= 100*60 {
		return "--:--/km"
	}
	return fmt.Sprintf("%d:%02d/km", secPerKm/60, secPerKm%60)
}
