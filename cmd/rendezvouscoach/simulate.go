package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hammamikhairi/rendezvouscoach/internal/clock"
	"github.com/hammamikhairi/rendezvouscoach/internal/coach"
	"github.com/hammamikhairi/rendezvouscoach/internal/conversation"
	"github.com/hammamikhairi/rendezvouscoach/internal/cue"
	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
	"github.com/hammamikhairi/rendezvouscoach/internal/ingest"
	"github.com/hammamikhairi/rendezvouscoach/internal/metrics"
	"github.com/hammamikhairi/rendezvouscoach/internal/sample"
	"github.com/hammamikhairi/rendezvouscoach/internal/speech"
	"github.com/hammamikhairi/rendezvouscoach/internal/storage"
)

type simFlags struct {
	plan     string
	speed    float64
	fade     float64
	noise    float64
	factor   float64
	interval time.Duration
	seed     int64
}

func simulateCmd(o *options) *cobra.Command {
	f := &simFlags{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Coach a synthetic walker on an accelerated clock",
		Long: `Walks the plan's route with a simulated walker, starting at the departure
time, and prints every cue with its simulated timestamp. With --factor 30 a
25 minute trip takes under a minute.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runSimulation(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.plan, "plan", "p", "", "plan to walk (default from the config)")
	fl.Float64Var(&f.speed, "speed", 0, "walker speed in m/s (default: exactly the required pace)")
	fl.Float64Var(&f.fade, "fade", 0, "fraction of speed lost by the end of the trip, e.g. 0.3")
	fl.Float64Var(&f.noise, "noise", 5, "standard deviation of reported distances, in meters")
	fl.Float64Var(&f.factor, "factor", 20, "how much faster than real time the clock runs")
	fl.DurationVar(&f.interval, "interval", 5*time.Second, "simulated time between samples")
	fl.Int64Var(&f.seed, "seed", 0, "noise seed (0 picks one from the time)")
	return cmd
}

func (o *options) runSimulation(cmd *cobra.Command, f *simFlags) error {
	if f.factor <= 0 {
		return errors.New("--factor must be positive")
	}
	if f.fade < 0 || f.fade >= 1 {
		return errors.New("--fade must be in [0, 1)")
	}

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
	if f.plan == "" {
		f.plan = cfg.Plan
	}

	ctx, cancel := signalContext()
	defer cancel()

	p, err := plans.Get(ctx, f.plan)
	if err != nil {
		return fmt.Errorf("plan %q: %w", f.plan, err)
	}

	// The walk starts at the departure time, whatever the wall clock says.
	clk := clock.NewScaled(p.DepartureTime(), f.factor)

	speed := f.speed
	if speed <= 0 {
		speed = 1.4
		if p.TripDuration > 0 {
			speed = p.Distance / p.TripDuration.Seconds()
		}
	}
	simOpts := []sample.SimOption{
		sample.WithNoise(f.noise),
		sample.WithInterval(f.interval),
		sample.WithJitter(f.interval / 4),
	}
	if f.seed != 0 {
		simOpts = append(simOpts, sample.WithSeed(f.seed))
	}
	if f.fade > 0 {
		trip := time.Duration(p.Distance / speed * float64(time.Second))
		simOpts = append(simOpts, sample.WithSpeedProfile(func(elapsed time.Duration) float64 {
			frac := float64(elapsed) / float64(trip)
			if frac > 1 {
				frac = 1
			}
			return speed * (1 - f.fade*frac)
		}))
	} else {
		simOpts = append(simOpts, sample.WithSpeed(speed))
	}
	var src domain.SampleSource = sample.NewSimulated(p.Distance, clk, simOpts...)

	out := cmd.OutOrStdout()
	text := conversation.NewCLINotifier(log, func(format string, a ...interface{}) {
		fmt.Fprintf(out, format+"\n", a...)
	})
	store := storage.NewMemoryStore(log.Named("store"))
	m := metrics.New()

	// Cues are shown by the observer with their simulated timestamps; the
	// silent sink only keeps speaking time realistic.
	sink := speech.NewPrintSink(func(string) {}, log.Named("print"), speech.WithTimeScale(f.factor))

	c := coach.New(p.Target(), sink, lex, log.Named("coach"),
		coach.WithClock(clk),
		coach.WithTickInterval(cfg.Tick),
		coach.WithThresholds(cfg.Thresholds),
		coach.WithEstimatorOptions(cfg.EstimatorOptions()...),
		coach.WithSchedulerOptions(
			cue.WithCooldowns(cfg.Cooldowns),
			cue.WithWatchdog(cfg.Speech.Watchdog),
		),
		coach.WithStore(store),
		coach.WithNotifier(text),
		coach.WithMetrics(m),
		coach.WithSession("", p.Name),
		coach.WithCueObserver(text.Cue),
	)

	if cfg.Ingest.Listen != "" {
		push := sample.NewPush(64)
		defer push.Close()
		src = sample.Merge(src, push)

		srv := ingest.New(push, store, log.Named("ingest"),
			ingest.WithMetrics(m),
			ingest.WithClock(clk),
			ingest.WithSessionID(c.ID()),
		)
		go func() {
			if err := srv.Run(ctx, cfg.Ingest.Listen); err != nil {
				log.Error("ingest server: %v", err)
			}
		}()
	}

	fmt.Fprintf(out, "Simulating %q: %.0f m at %.2f m/s, rendezvous %s, clock x%g\n",
		p.Name, p.Distance, speed, p.Rendezvous.Format("15:04:05"), f.factor)

	if err := c.Run(ctx, src); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	final := c.Snapshot()
	fmt.Fprintf(out, "Session %s: %s, %s against the rendezvous, %d samples (%d rejected)\n",
		final.ID[:8], final.Status, final.Pacing.Deviation.Round(time.Second), final.Accepted, final.Rejected)
	return nil
}
