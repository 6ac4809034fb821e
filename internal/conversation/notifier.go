package conversation

import (
	"context"
	"fmt"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
	"github.com/hammamikhairi/rendezvouscoach/internal/logger"
)

// Compile-time interface check.
var _ domain.Notifier = (*CLINotifier)(nil)

// ANSI escape codes for terminal formatting.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)

// PrintFunc is a function used to print formatted output.
// Matches the signature of both fmt.Printf and display.UI.Printf.
type PrintFunc func(format string, a ...interface{})

// CLINotifier writes notifications and cue transcripts to the terminal
// with ANSI formatting.
type CLINotifier struct {
	log     *logger.Logger
	printFn PrintFunc
}

// NewCLINotifier creates a terminal notifier.
// If printFn is nil, fmt.Printf is used.
func NewCLINotifier(log *logger.Logger, printFn PrintFunc) *CLINotifier {
	if printFn == nil {
		printFn = func(format string, a ...interface{}) {
			fmt.Printf(format+"\n", a...)
		}
	}
	return &CLINotifier{log: log, printFn: printFn}
}

// Notify prints a normal notification.
func (n *CLINotifier) Notify(ctx context.Context, message string) error {
	n.log.Debug("notify: %s", message)
	n.printFn("%s%s[coach]%s %s", cyan, bold, reset, message)
	return nil
}

// NotifyUrgent prints an urgent notification in bold red.
func (n *CLINotifier) NotifyUrgent(ctx context.Context, message string) error {
	n.log.Debug("notify-urgent: %s", message)
	n.printFn("%s%s[coach] %s%s", red, bold, message, reset)
	return nil
}

// Cue prints the transcript of a spoken cue, colored by urgency.
func (n *CLINotifier) Cue(cue domain.CueEvent) {
	color := green
	switch cue.Urgency {
	case domain.UrgencyLow:
		color = cyan
	case domain.UrgencyMedium:
		color = yellow
	case domain.UrgencyHigh:
		color = red + bold
	}
	n.printFn("%s[%s]%s %s%s%s", dim, cue.GeneratedAt.Format("15:04:05"), reset, color, cue.Text, reset)
}
