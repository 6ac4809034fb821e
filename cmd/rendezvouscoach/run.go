package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/hammamikhairi/rendezvouscoach/internal/coach"
	"github.com/hammamikhairi/rendezvouscoach/internal/config"
	"github.com/hammamikhairi/rendezvouscoach/internal/conversation"
	"github.com/hammamikhairi/rendezvouscoach/internal/cue"
	"github.com/hammamikhairi/rendezvouscoach/internal/display"
	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
	"github.com/hammamikhairi/rendezvouscoach/internal/gpt"
	"github.com/hammamikhairi/rendezvouscoach/internal/ingest"
	"github.com/hammamikhairi/rendezvouscoach/internal/lexicon"
	"github.com/hammamikhairi/rendezvouscoach/internal/logger"
	"github.com/hammamikhairi/rendezvouscoach/internal/metrics"
	"github.com/hammamikhairi/rendezvouscoach/internal/sample"
	"github.com/hammamikhairi/rendezvouscoach/internal/speech"
	"github.com/hammamikhairi/rendezvouscoach/internal/storage"
)

func runCmd(o *options) *cobra.Command {
	var planName string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Coach a live trip",
		Long: `Counts down to the departure time of the plan, then coaches the walk.
Report progress by typing distances ("800 m left", "1.2 km done"), by voice
("hey coach, 500 meters to go") or through the ingest server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runLive(planName)
		},
	}
	cmd.Flags().StringVarP(&planName, "plan", "p", "", "plan to coach (default from the config)")
	return cmd
}

func (o *options) runLive(planName string) error {
	cfg, err := o.loadConfig(time.Now())
	if err != nil {
		return err
	}
	log, closeLog := o.setupLogging(cfg)
	defer closeLog()

	lex, err := lexiconFor(cfg)
	if err != nil {
		return err
	}
	plans, err := planSource(cfg, time.Now, log)
	if err != nil {
		return err
	}
	if planName == "" {
		planName = cfg.Plan
	}

	ctx, cancel := signalContext()
	defer cancel()

	p, err := plans.Get(ctx, planName)
	if err != nil {
		return fmt.Errorf("plan %q: %w", planName, err)
	}

	// Wire dependencies.
	store := storage.NewMemoryStore(log.Named("store"))
	m := metrics.New()
	ui := display.NewUI(store, time.Now)
	text := conversation.NewCLINotifier(log, ui.Printf)

	// With TTS available, cues go to the Mouth and every notification is
	// also spoken. Otherwise cues are printed at speaking pace.
	var notifier domain.Notifier = text
	var sink domain.SpeechSink
	var observer func(domain.CueEvent)
	mouth := o.buildMouth(ctx, cfg, lex, log)
	if mouth != nil {
		sink = mouth
		notifier = speech.NewSpeakingNotifier(text, mouth)
		observer = text.Cue
	} else {
		sink = speech.NewPrintSink(ui.PrintLine, log.Named("print"))
	}

	ear, err := o.buildEar(ctx, mouth, ui, log)
	if err != nil {
		return err
	}

	push := sample.NewPush(64)
	c := coach.New(p.Target(), sink, lex, log.Named("coach"),
		coach.WithTickInterval(cfg.Tick),
		coach.WithThresholds(cfg.Thresholds),
		coach.WithEstimatorOptions(cfg.EstimatorOptions()...),
		coach.WithSchedulerOptions(
			cue.WithCooldowns(cfg.Cooldowns),
			cue.WithWatchdog(cfg.Speech.Watchdog),
		),
		coach.WithStore(store),
		coach.WithNotifier(notifier),
		coach.WithMetrics(m),
		coach.WithSession("", p.Name),
		coach.WithCueObserver(observer),
	)

	if cfg.Ingest.Listen != "" {
		srv := ingest.New(push, store, log.Named("ingest"),
			ingest.WithMetrics(m),
			ingest.WithSessionID(c.ID()),
		)
		go func() {
			if err := srv.Run(ctx, cfg.Ingest.Listen); err != nil {
				log.Error("ingest server: %v", err)
			}
		}()
		log.Info("ingest server on %s", cfg.Ingest.Listen)
	}

	app := &liveApp{
		cfg:      cfg,
		plan:     p,
		lex:      lex,
		coach:    c,
		source:   push,
		store:    store,
		parser:   conversation.NewKeywordParser(log.Named("parser")),
		ai:       o.buildClassifier(log),
		notifier: notifier,
		mouth:    mouth,
		ear:      ear,
		ui:       ui,
		log:      log,
		quit:     cancel,
	}

	fmt.Println(display.RenderBanner())
	fmt.Println(display.BannerStyle.Render(fmt.Sprintf("  Plan %q: be there at %s, %.1f km.",
		p.Name, p.Rendezvous.Format("15:04"), p.Distance/1000)))
	if ear != nil {
		fmt.Println(display.BannerStyle.Render("  Voice mode ON: say \"Hey Coach\" to give a command, or type it."))
	}
	fmt.Println(display.BannerStyle.Render("  Type 'help' for commands, 'quit' to exit."))
	fmt.Println()

	go func() {
		ui.WaitReady()
		app.run(ctx)
		ui.Quit()
	}()

	// Bubble Tea owns the terminal and blocks until quit.
	if err := ui.Run(); err != nil {
		log.Error("display: %v", err)
	}
	cancel()
	return nil
}

// buildMouth returns nil when speech is disabled or unavailable.
func (o *options) buildMouth(ctx context.Context, cfg *config.Config, lex lexicon.Lexicon, log *logger.Logger) *speech.Mouth {
	if !cfg.Speech.Enabled {
		return nil
	}
	key := os.Getenv(speech.EnvAzureSpeechKey)
	region := os.Getenv(speech.EnvAzureSpeechRegion)
	if key == "" || region == "" {
		log.Info("TTS disabled: set %s and %s env vars to enable", speech.EnvAzureSpeechKey, speech.EnvAzureSpeechRegion)
		return nil
	}

	voice := cfg.Voice(lex)
	tts := speech.NewAzureClient(key, region, log.Named("azure"), speech.WithVoice(voice))
	player, err := speech.NewPlayer(log.Named("player"))
	if err != nil {
		log.Error("audio player init failed, speech disabled: %v", err)
		return nil
	}

	mouth := speech.NewMouth(tts, player, log.Named("mouth"),
		speech.WithCacheDir(o.cacheDir),
		speech.WithDiskWrite(o.diskCache),
	)
	mouth.Start(ctx)
	mouth.Prefetch(ctx, lex.Phrasebook()...)
	log.Info("TTS enabled (voice=%s, region=%s)", voice.Name, region)
	return mouth
}

// buildClassifier returns nil unless GPT credentials are set.
func (o *options) buildClassifier(log *logger.Logger) *gpt.Classifier {
	if o.noAI {
		return nil
	}
	key := os.Getenv(gpt.EnvChatKey)
	endpoint := os.Getenv(gpt.EnvChatEndpoint)
	if key == "" || endpoint == "" {
		log.Info("AI fallback disabled: set %s and %s env vars to enable", gpt.EnvChatKey, gpt.EnvChatEndpoint)
		return nil
	}
	log.Info("AI fallback enabled")
	return gpt.NewClassifier(gpt.NewClient(endpoint, key, log.Named("gpt")), log.Named("classify"))
}

// buildEar returns nil unless voice commands were requested.
func (o *options) buildEar(ctx context.Context, mouth *speech.Mouth, ui *display.UI, log *logger.Logger) (*speech.Ear, error) {
	if !o.voice {
		return nil, nil
	}
	if _, err := os.Stat(o.whisperModel); err != nil {
		return nil, fmt.Errorf("whisper model not found at %s", o.whisperModel)
	}
	const tempDir = ".coach-stt"
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		log.Error("creating STT temp dir %s: %v", tempDir, err)
		return nil, fmt.Errorf("creating STT temp dir: %w", err)
	}

	opts := []speech.EarOption{
		speech.WithRecordDuration(time.Duration(o.recordSecs) * time.Second),
		speech.WithTempDir(tempDir),
		speech.WithOnWake(func() { ui.PrintHint("listening...") }),
	}
	if mouth != nil {
		opts = append(opts, speech.WithBusy(mouth.Busy))
	}
	ear := speech.NewEar(o.whisperBin, o.whisperModel, log.Named("ear"), opts...)
	go ear.Run(ctx)
	log.Info("voice input enabled (bin=%s, model=%s, chunk=%ds)", o.whisperBin, o.whisperModel, o.recordSecs)
	return ear, nil
}

// liveApp drives one live session: the departure countdown, then the
// coach, with user input routed to whichever phase is running.
type liveApp struct {
	cfg      *config.Config
	plan     *domain.Plan
	lex      lexicon.Lexicon
	coach    *coach.Coach
	source   *sample.Push
	store    *storage.MemoryStore
	parser   *conversation.KeywordParser
	ai       *gpt.Classifier // nil when the AI fallback is disabled
	notifier domain.Notifier
	mouth    *speech.Mouth // nil when TTS is disabled
	ear      *speech.Ear   // nil when voice input is disabled
	ui       *display.UI
	log      *logger.Logger
	quit     context.CancelFunc

	walking atomic.Bool
	leave   atomic.Pointer[context.CancelFunc]
}

func (a *liveApp) run(ctx context.Context) {
	a.notify(ctx, a.lex.Welcome(a.plan.Name, a.plan.Rendezvous))
	go a.readInput(ctx)

	if err := a.countdown(ctx); err != nil {
		return
	}

	a.walking.Store(true)
	if err := a.coach.Run(ctx, a.source); err != nil && ctx.Err() == nil {
		a.log.Error("coach: %v", err)
		a.ui.PrintUrgent(err.Error())
	}
	a.source.Close()
}

// countdown waits for departure unless the user starts walking early.
// It only fails when ctx is done.
func (a *liveApp) countdown(ctx context.Context) error {
	departure := a.plan.DepartureTime()
	if !time.Now().Before(departure) {
		return nil
	}

	sess := a.coach.Snapshot()
	sess.Status = domain.SessionCountdown
	sess.StartedAt = time.Now()
	if err := a.store.Save(ctx, sess); err != nil {
		a.log.Error("saving countdown: %v", err)
	}

	window := a.plan.AlertWindow
	if window == 0 {
		window = a.cfg.Departure.AlertWindow
	}
	cd := coach.NewCountdown(departure, a.lex, a.notifier, a.log.Named("countdown"),
		coach.WithAlertWindow(window),
		coach.WithAnnounceInterval(a.cfg.Departure.AnnounceEvery),
	)

	cdCtx, leave := context.WithCancel(ctx)
	defer leave()
	a.leave.Store(&leave)

	err := cd.Run(cdCtx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		a.log.Info("leaving before the countdown ended")
	}
	return nil
}

// readInput forwards keyboard and voice commands until ctx is done.
func (a *liveApp) readInput(ctx context.Context) {
	// A nil channel blocks forever, leaving only the keyboard case.
	var voiceCh <-chan string
	if a.ear != nil {
		voiceCh = a.ear.C()
	}
	uiCh := a.ui.InputChan()

	for {
		var input string
		var ok bool

		select {
		case <-ctx.Done():
			return
		case input, ok = <-uiCh:
			if !ok {
				return
			}
		case input = <-voiceCh:
			a.ui.PrintVoice(input)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		cmd, err := a.parser.Parse(ctx, input)
		if err != nil {
			a.log.Error("parsing input: %v", err)
			continue
		}
		if cmd.Type == domain.CommandUnknown {
			cmd = a.classify(ctx, cmd)
		}
		a.log.Debug("command: %s (payload=%q)", cmd.Type, cmd.Payload)
		a.dispatch(ctx, *cmd)
	}
}

// classify asks the AI fallback about input the keyword parser did not
// understand. It returns cmd unchanged when the fallback is off or fails.
func (a *liveApp) classify(ctx context.Context, cmd *domain.Command) *domain.Command {
	if a.ai == nil {
		return cmd
	}
	a.ui.PrintHint("thinking...")
	got, err := a.ai.Classify(ctx, cmd.Payload, a.coach.Snapshot())
	if err != nil {
		a.log.Error("AI classify failed: %v", err)
		return cmd
	}
	return got
}

func (a *liveApp) dispatch(ctx context.Context, cmd domain.Command) {
	// Quit ends the session and may cut the current line. Mute lets it
	// finish and silences what comes after.
	if a.mouth != nil && cmd.Type == domain.CommandQuit {
		a.mouth.Interrupt()
	}

	if a.walking.Load() {
		if !a.coach.Submit(cmd) {
			a.ui.PrintHint("busy, try again")
		}
		return
	}

	// Still counting down.
	switch cmd.Type {
	case domain.CommandQuit:
		a.notify(ctx, a.lex.Bye())
		a.quit()
	case domain.CommandProgress:
		// Progress means the user already left.
		if leave := a.leave.Load(); leave != nil {
			(*leave)()
		}
		a.coach.Submit(cmd)
	case domain.CommandStatus:
		left := time.Until(a.plan.DepartureTime()).Round(time.Second)
		a.notify(ctx, a.lex.RemainingTime(left))
	case domain.CommandHelp:
		a.notify(ctx, a.lex.Help())
	case domain.CommandUnknown:
		a.notify(ctx, a.lex.NotUnderstood(cmd.Payload))
	default:
		// Mute, unmute and repeat apply once the walk starts.
		a.coach.Submit(cmd)
	}
}

func (a *liveApp) notify(ctx context.Context, msg string) {
	if err := a.notifier.Notify(ctx, msg); err != nil {
		a.log.Error("notify: %v", err)
	}
}
