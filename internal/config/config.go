// Package config loads the session configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hammamikhairi/rendezvouscoach/internal/cue"
	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
	"github.com/hammamikhairi/rendezvouscoach/internal/lexicon"
	"github.com/hammamikhairi/rendezvouscoach/internal/logger"
	"github.com/hammamikhairi/rendezvouscoach/internal/pacing"
	"github.com/hammamikhairi/rendezvouscoach/internal/plan"
)

// CustomPlanName is the plan built from the target section.
const CustomPlanName = "custom"

// Config is the complete session configuration.
type Config struct {
	// Plan names the plan to coach: a preset, an entry of Plans, or
	// "custom" for the target section. Empty picks "custom" when a target
	// is set and "commute" otherwise.
	Plan       string            `yaml:"plan"`
	Target     TargetConfig      `yaml:"target"`
	Departure  DepartureConfig   `yaml:"departure"`
	Plans      []PlanConfig      `yaml:"plans"`
	Thresholds pacing.Thresholds `yaml:"thresholds"`
	Cooldowns  cue.Cooldowns     `yaml:"cooldowns"`
	Estimator  EstimatorConfig   `yaml:"estimator"`
	Speech     SpeechConfig      `yaml:"speech"`
	Tick       time.Duration     `yaml:"tick"`
	Ingest     IngestConfig      `yaml:"ingest"`
	Log        LogConfig         `yaml:"log"`

	plans []domain.Plan
}

// TargetConfig describes a one-off rendezvous.
type TargetConfig struct {
	// Rendezvous is RFC3339 or HH:MM (today, or tomorrow if already past).
	Rendezvous string  `yaml:"rendezvous"`
	Distance   float64 `yaml:"distance_m"`
	MinSpeed   float64 `yaml:"min_speed"`
	MaxSpeed   float64 `yaml:"max_speed"`
}

// DepartureConfig drives the countdown before the walk.
type DepartureConfig struct {
	Trip          time.Duration `yaml:"trip"`
	AlertWindow   time.Duration `yaml:"alert_window"`
	AnnounceEvery time.Duration `yaml:"announce_every"`
}

// PlanConfig is a named plan kept in the config file.
type PlanConfig struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Rendezvous  string        `yaml:"rendezvous"`
	Trip        time.Duration `yaml:"trip"`
	Distance    float64       `yaml:"distance_m"`
	AlertWindow time.Duration `yaml:"alert_window"`
	MaxSpeed    float64       `yaml:"max_speed"`
}

// EstimatorConfig tunes the pace estimator.
type EstimatorConfig struct {
	HalfLife      time.Duration `yaml:"half_life"`
	MinResolution time.Duration `yaml:"min_resolution"`
	MinPace       float64       `yaml:"min_pace"`
}

// SpeechConfig selects the lexicon and voice. Rate, Pitch and Volume are
// passed to the synthesis backend untouched; 0 means its default.
type SpeechConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Language string        `yaml:"language"`
	Voice    string        `yaml:"voice"`
	Rate     float64       `yaml:"rate"`
	Pitch    float64       `yaml:"pitch"`
	Volume   float64       `yaml:"volume"`
	Watchdog time.Duration `yaml:"watchdog"`
}

// IngestConfig configures the network sample endpoint. An empty Listen
// disables it.
type IngestConfig struct {
	Listen string `yaml:"listen"`
}

// LogConfig configures the log file.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Departure: DepartureConfig{
			AlertWindow:   10 * time.Minute,
			AnnounceEvery: time.Minute,
		},
		Thresholds: pacing.DefaultThresholds(),
		Cooldowns:  cue.DefaultCooldowns(),
		Estimator: EstimatorConfig{
			HalfLife:      20 * time.Second,
			MinResolution: time.Second,
			MinPace:       0.05,
		},
		Speech: SpeechConfig{
			Enabled:  true,
			Language: "en-US",
			Watchdog: cue.DefaultWatchdog,
		},
		Tick: time.Second,
		Log: LogConfig{
			Level: "normal",
			File:  ".coach-logs/coach.log",
		},
	}
}

// Load reads a YAML file over the defaults, resolves rendezvous times
// against now and validates the result. An empty path yields the
// defaults. Every failure wraps domain.ErrConfigInvalid except a missing
// or unreadable file.
func Load(path string, now time.Time) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config file %s: %v: %w", path, err, domain.ErrConfigInvalid)
		}
	}
	if err := cfg.Resolve(now); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve validates the config and turns its plans into domain plans.
func (c *Config) Resolve(now time.Time) error {
	if err := c.Validate(); err != nil {
		return err
	}

	c.plans = c.plans[:0]
	if c.Target.Rendezvous != "" {
		at, err := ParseRendezvous(c.Target.Rendezvous, now)
		if err != nil {
			return invalid("target.rendezvous", err)
		}
		p := domain.Plan{
			Name:         CustomPlanName,
			Description:  "Rendezvous from the config file",
			Rendezvous:   at,
			TripDuration: c.Departure.Trip,
			Distance:     c.Target.Distance,
			AlertWindow:  c.Departure.AlertWindow,
		}
		if c.Target.MinSpeed > 0 || c.Target.MaxSpeed > 0 {
			p.Corridor = &domain.Corridor{MinSpeed: c.Target.MinSpeed, MaxSpeed: c.Target.MaxSpeed}
		}
		if err := plan.Validate(p); err != nil {
			return invalid("target", err)
		}
		c.plans = append(c.plans, p)
	}

	for i, pc := range c.Plans {
		at, err := ParseRendezvous(pc.Rendezvous, now)
		if err != nil {
			return invalid(fmt.Sprintf("plans[%d].rendezvous", i), err)
		}
		p := domain.Plan{
			Name:         pc.Name,
			Description:  pc.Description,
			Rendezvous:   at,
			TripDuration: pc.Trip,
			Distance:     pc.Distance,
			AlertWindow:  pc.AlertWindow,
		}
		if pc.MaxSpeed > 0 {
			p.Corridor = &domain.Corridor{MaxSpeed: pc.MaxSpeed}
		}
		if err := plan.Validate(p); err != nil {
			return invalid(fmt.Sprintf("plans[%d]", i), err)
		}
		c.plans = append(c.plans, p)
	}

	if c.Plan == "" {
		c.Plan = "commute"
		if c.Target.Rendezvous != "" {
			c.Plan = CustomPlanName
		}
	}
	return nil
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		return invalid("thresholds", err)
	}
	if err := c.Cooldowns.Validate(); err != nil {
		return invalid("cooldowns", err)
	}
	if c.Estimator.HalfLife <= 0 {
		return invalid("estimator.half_life", errors.New("must be positive"))
	}
	if c.Estimator.MinResolution <= 0 {
		return invalid("estimator.min_resolution", errors.New("must be positive"))
	}
	if c.Estimator.MinPace < 0 {
		return invalid("estimator.min_pace", errors.New("must not be negative"))
	}
	if c.Speech.Watchdog <= 0 {
		return invalid("speech.watchdog", errors.New("must be positive"))
	}
	if _, err := lexicon.ForLanguage(c.Speech.Language); err != nil {
		return invalid("speech.language", fmt.Errorf("supported: %s", strings.Join(lexicon.Languages(), ", ")))
	}
	if c.Tick <= 0 {
		return invalid("tick", errors.New("must be positive"))
	}
	if c.Departure.AlertWindow < 0 || c.Departure.Trip < 0 {
		return invalid("departure", errors.New("durations must not be negative"))
	}
	if c.Departure.AnnounceEvery <= 0 {
		return invalid("departure.announce_every", errors.New("must be positive"))
	}
	if c.Target.Rendezvous != "" && c.Target.Distance <= 0 {
		return invalid("target.distance_m", errors.New("must be positive"))
	}
	if _, ok := logger.ParseLevel(c.Log.Level); !ok {
		return invalid("log.level", fmt.Errorf("unknown level %q", c.Log.Level))
	}
	return nil
}

// CustomPlans returns the plans defined by the file, resolved by Resolve.
func (c *Config) CustomPlans() []domain.Plan {
	return append([]domain.Plan(nil), c.plans...)
}

// Voice returns the synthesis voice, defaulting to the lexicon's.
func (c *Config) Voice(lex lexicon.Lexicon) domain.VoiceConfig {
	name := c.Speech.Voice
	if name == "" {
		name = lex.Voice()
	}
	return domain.VoiceConfig{
		Name:     name,
		Language: lex.Language(),
		Rate:     c.Speech.Rate,
		Pitch:    c.Speech.Pitch,
		Volume:   c.Speech.Volume,
	}
}

// EstimatorOptions converts the estimator section.
func (c *Config) EstimatorOptions() []pacing.Option {
	return []pacing.Option{
		pacing.WithHalfLife(c.Estimator.HalfLife),
		pacing.WithMinResolution(c.Estimator.MinResolution),
		pacing.WithMinPace(c.Estimator.MinPace),
	}
}

// ParseRendezvous accepts RFC3339 or HH:MM. A clock time refers to today
// in now's location, or tomorrow when it has already passed.
func ParseRendezvous(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	hm, err := time.Parse("15:04", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC3339 nor HH:MM", s)
	}
	t := time.Date(now.Year(), now.Month(), now.Day(), hm.Hour(), hm.Minute(), 0, 0, now.Location())
	if !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}

func invalid(field string, err error) error {
	return fmt.Errorf("%s: %v: %w", field, err, domain.ErrConfigInvalid)
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
