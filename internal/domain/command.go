package domain

// CommandType classifies what the user wants to do.
type CommandType int

const (
	CommandUnknown  CommandType = iota
	CommandProgress             // a distance reading; Command.Meters is set
	CommandStatus               // speak the current pacing status
	CommandRepeat               // replay the last cue
	CommandMute                 // keep tracking, stop speaking cues
	CommandUnmute
	CommandHelp
	CommandQuit
)

// String returns a human-readable command type.
func (c CommandType) String() string {
	switch c {
	case CommandProgress:
		return "progress"
	case CommandStatus:
		return "status"
	case CommandRepeat:
		return "repeat"
	case CommandMute:
		return "mute"
	case CommandUnmute:
		return "unmute"
	case CommandHelp:
		return "help"
	case CommandQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Command represents a parsed user action.
type Command struct {
	Type    CommandType
	Meters  float64      // for CommandProgress
	Kind    ProgressKind // for CommandProgress
	Payload string       // original input
}
