// Rendezvous Coach: spoken pacing feedback on the way to a meeting.
//
// Usage:
//
//	rendezvouscoach run [--config file] [--plan name]
//	rendezvouscoach simulate [--plan name] [--speed m/s] [--factor x]
//	rendezvouscoach plans
package main

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hammamikhairi/rendezvouscoach/internal/config"
	"github.com/hammamikhairi/rendezvouscoach/internal/lexicon"
	"github.com/hammamikhairi/rendezvouscoach/internal/logger"
	"github.com/hammamikhairi/rendezvouscoach/internal/plan"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	configPath   string
	language     string
	verbose      bool
	quiet        bool
	logFile      string
	noSpeech     bool
	noAI         bool
	diskCache    bool
	cacheDir     string
	voice        bool
	whisperBin   string
	whisperModel string
	recordSecs   int
	listen       string
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:   "rendezvouscoach",
		Short: "Spoken pacing feedback on the way to a rendezvous",
		Long: `Rendezvous Coach tracks your progress towards a meeting point and tells
you, out loud and only when it matters, whether you are ahead of or behind
the pace you need to arrive on time.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&o.configPath, "config", "c", "", "path to a YAML session file")
	pf.StringVar(&o.language, "language", "", "cue language (en-US, it-IT); overrides the config")
	pf.BoolVar(&o.verbose, "verbose", false, "enable verbose/debug logging")
	pf.BoolVar(&o.quiet, "quiet", false, "disable all logging")
	pf.StringVar(&o.logFile, "log-file", "", "file to write logs to (use \"stderr\" to log to console)")
	pf.BoolVar(&o.noSpeech, "no-speech", false, "disable text-to-speech even if Azure keys are set")
	pf.BoolVar(&o.noAI, "no-ai", false, "disable the AI fallback for free-form input even if GPT keys are set")
	pf.BoolVar(&o.diskCache, "disk-cache", true, "persist TTS audio cache to disk (reads from disk even when false)")
	pf.StringVar(&o.cacheDir, "cache-dir", ".coach-cache", "directory for persistent TTS audio cache")
	pf.BoolVar(&o.voice, "voice", false, "enable voice commands via local Whisper STT")
	pf.StringVar(&o.whisperBin, "whisper-bin", "whisper-cli", "path to the whisper-cpp CLI binary")
	pf.StringVar(&o.whisperModel, "whisper-model", "bin/ggml-small.bin", "path to the Whisper GGML model file")
	pf.IntVar(&o.recordSecs, "record-secs", 2, "seconds per voice recording chunk")
	pf.StringVar(&o.listen, "listen", "", "address for the progress ingest server; overrides the config")

	cmd.AddCommand(runCmd(o))
	cmd.AddCommand(simulateCmd(o))
	cmd.AddCommand(plansCmd(o))
	cmd.AddCommand(configCmd())

	return cmd
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loadConfig reads the session file and applies flag overrides.
func (o *options) loadConfig(now time.Time) (*config.Config, error) {
	cfg, err := config.Load(o.configPath, now)
	if err != nil {
		return nil, err
	}
	if o.language != "" {
		cfg.Speech.Language = o.language
	}
	if o.listen != "" {
		cfg.Ingest.Listen = o.listen
	}
	if o.noSpeech {
		cfg.Speech.Enabled = false
	}
	return cfg, nil
}

// setupLogging opens the log file so the terminal stays clean. The
// returned func closes it.
func (o *options) setupLogging(cfg *config.Config) (*logger.Logger, func()) {
	level, _ := logger.ParseLevel(cfg.Log.Level)
	if o.verbose {
		level = logger.LevelVerbose
	}
	if o.quiet {
		level = logger.LevelOff
	}

	path := cfg.Log.File
	if o.logFile != "" {
		path = o.logFile
	}

	closer := func() {}
	var logOut io.Writer = os.Stderr
	if path != "" && path != "stderr" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", path, err)
		} else {
			logOut = f
			closer = func() { f.Close() }
		}
	}

	// Third-party libs such as the whisper transcriber log through the
	// standard library.
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	return logger.New(level, logOut), closer
}

// planSource builds the preset catalogue plus the file's plans.
func planSource(cfg *config.Config, now func() time.Time, log *logger.Logger) (*plan.MemorySource, error) {
	src := plan.NewMemorySource(now, log.Named("plans"))
	for _, p := range cfg.CustomPlans() {
		if err := src.Add(p); err != nil {
			return nil, err
		}
	}
	return src, nil
}

func lexiconFor(cfg *config.Config) (lexicon.Lexicon, error) {
	lex, err := lexicon.ForLanguage(cfg.Speech.Language)
	if err != nil {
		return nil, fmt.Errorf("unsupported language %q (supported: %v): %w", cfg.Speech.Language, lexicon.Languages(), err)
	}
	return lex, nil
}
