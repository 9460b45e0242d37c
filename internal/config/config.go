package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/sysid/internal/sysid"
	"github.com/san-kum/sysid/internal/units"
)

const (
	DefaultRampRate    = 1.0
	DefaultStepVoltage = 7.0
	DefaultTimeout     = 10.0
	DefaultPeriod      = 0.02
	DefaultSettle      = 1.0
)

var (
	ErrInvalidPeriod = errors.New("config: period must be positive")
	ErrNoTests       = errors.New("config: no tests selected")
)

type Config struct {
	Mechanism  string             `yaml:"mechanism"`
	Motor      string             `yaml:"motor"`
	Model      string             `yaml:"model"`
	Integrator string             `yaml:"integrator"`
	Params     map[string]float64 `yaml:"params,omitempty"`
	Start      float64            `yaml:"start"` // initial position, rotations
	Period     float64            `yaml:"period"`
	Settle     float64            `yaml:"settle"`
	Seed       int64              `yaml:"seed"`
	Noise      float64            `yaml:"noise"`
	Realtime   bool               `yaml:"realtime"`
	Routine    RoutineConfig      `yaml:"routine"`
	Tests      []string           `yaml:"tests"`
	Output     OutputConfig       `yaml:"output"`
}

// RoutineConfig holds the excitation settings. Times are in seconds.
type RoutineConfig struct {
	RampRate    float64 `yaml:"ramp_rate"`
	StepVoltage float64 `yaml:"step_voltage"`
	Timeout     float64 `yaml:"timeout"`
}

type OutputConfig struct {
	SQLite bool `yaml:"sqlite"`
	CSV    bool `yaml:"csv"`
}

func DefaultConfig() *Config {
	return &Config{
		Mechanism:  "elevator",
		Motor:      "motor",
		Model:      "elevator",
		Integrator: "rk4",
		Period:     DefaultPeriod,
		Settle:     DefaultSettle,
		Routine: RoutineConfig{
			RampRate:    DefaultRampRate,
			StepVoltage: DefaultStepVoltage,
			Timeout:     DefaultTimeout,
		},
		Tests: []string{
			sysid.QuasistaticForward.String(),
			sysid.QuasistaticReverse.String(),
			sysid.DynamicForward.String(),
			sysid.DynamicReverse.String(),
		},
		Output: OutputConfig{SQLite: true, CSV: true},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Period <= 0 {
		return ErrInvalidPeriod
	}
	if _, err := c.Phases(); err != nil {
		return err
	}
	return nil
}

// Phases parses the selected tests in order. "none" is not a test.
func (c *Config) Phases() ([]sysid.Phase, error) {
	if len(c.Tests) == 0 {
		return nil, ErrNoTests
	}
	phases := make([]sysid.Phase, 0, len(c.Tests))
	for _, name := range c.Tests {
		p, err := sysid.ParsePhase(name)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if p == sysid.None {
			return nil, fmt.Errorf("config: %q is not a test", name)
		}
		phases = append(phases, p)
	}
	return phases, nil
}

func (c *Config) RoutineOptions() []sysid.ConfigOption {
	return []sysid.ConfigOption{
		sysid.WithRampRate(units.VoltsPerSecond(c.Routine.RampRate)),
		sysid.WithStepVoltage(units.Volts(c.Routine.StepVoltage)),
		sysid.WithTimeout(seconds(c.Routine.Timeout)),
	}
}

func (c *Config) PeriodDuration() time.Duration { return seconds(c.Period) }
func (c *Config) SettleDuration() time.Duration { return seconds(c.Settle) }

func (c *Config) Clone() *Config {
	out := *c
	if c.Params != nil {
		out.Params = make(map[string]float64, len(c.Params))
		for k, v := range c.Params {
			out.Params[k] = v
		}
	}
	out.Tests = append([]string(nil), c.Tests...)
	return &out
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
