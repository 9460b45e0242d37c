// Package automation runs batches of characterization runs described in YAML.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/sysid/internal/config"
	"github.com/san-kum/sysid/internal/experiment"
)

var ErrEmptyScenario = errors.New("automation: scenario has no steps")

// Scenario is an ordered list of runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
	Sweeps      []Sweep        `yaml:"sweeps"`
}

// ScenarioStep starts from a preset, or the defaults, and overlays Config.
type ScenarioStep struct {
	Name   string    `yaml:"name"`
	Model  string    `yaml:"model"`
	Preset string    `yaml:"preset"`
	Config yaml.Node `yaml:"config"`
}

// Sweep repeats a step once per value of one plant parameter.
type Sweep struct {
	Step   ScenarioStep `yaml:"step"`
	Param  string       `yaml:"param"`
	Values []float64    `yaml:"values"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("automation: parse %s: %w", path, err)
	}
	return &scenario, nil
}

// Resolve builds the run configuration of a step.
func (s *ScenarioStep) Resolve() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if s.Preset != "" {
		cfg = config.GetPreset(s.Model, s.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %s/%s", s.Model, s.Preset)
		}
	} else if s.Model != "" {
		cfg.Model = s.Model
		cfg.Mechanism = s.Model
	}

	if !s.Config.IsZero() {
		if err := s.Config.Decode(cfg); err != nil {
			return nil, fmt.Errorf("step %s: %w", s.Name, err)
		}
	}
	if s.Name != "" {
		cfg.Mechanism = s.Name
	}
	return cfg, cfg.Validate()
}

// Expand returns one configuration per step followed by one per sweep value.
func (s *Scenario) Expand() ([]*config.Config, error) {
	var out []*config.Config
	for i := range s.Steps {
		cfg, err := s.Steps[i].Resolve()
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		out = append(out, cfg)
	}

	for i, sw := range s.Sweeps {
		base, err := sw.Step.Resolve()
		if err != nil {
			return nil, fmt.Errorf("sweep %d: %w", i+1, err)
		}
		for _, v := range sw.Values {
			cfg := base.Clone()
			if cfg.Params == nil {
				cfg.Params = make(map[string]float64)
			}
			cfg.Params[sw.Param] = v
			cfg.Mechanism = fmt.Sprintf("%s-%s-%g", base.Mechanism, sw.Param, v)
			out = append(out, cfg)
		}
	}

	if len(out) == 0 {
		return nil, ErrEmptyScenario
	}
	return out, nil
}

type StepResult struct {
	Config *config.Config
	Result *experiment.Result
}

// Runner executes expanded scenario runs one after another.
type Runner struct {
	Registry *experiment.Registry
	Logger   *slog.Logger
	// Options supplies extra experiment options for a run, such as output logs.
	Options func(cfg *config.Config) ([]experiment.Option, error)
	// Abort is called when a run's experiment cannot be built, after Options
	// has supplied its outputs.
	Abort func(cfg *config.Config, err error)
	// Done is called after each run.
	Done func(cfg *config.Config, exp *experiment.Experiment, res *experiment.Result) error
}

func (r *Runner) Run(ctx context.Context, scenario *Scenario) ([]StepResult, error) {
	configs, err := scenario.Expand()
	if err != nil {
		return nil, err
	}

	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := r.Registry
	if reg == nil {
		reg = experiment.NewRegistry()
	}

	results := make([]StepResult, 0, len(configs))
	for i, cfg := range configs {
		logger.Info("running step", "scenario", scenario.Name, "step", i+1, "of", len(configs), "mechanism", cfg.Mechanism)

		opts := []experiment.Option{experiment.WithLogger(logger)}
		if r.Options != nil {
			extra, err := r.Options(cfg)
			if err != nil {
				return results, fmt.Errorf("step %d: %w", i+1, err)
			}
			opts = append(opts, extra...)
		}

		exp, err := experiment.New(cfg, reg, opts...)
		if err != nil {
			if r.Abort != nil {
				r.Abort(cfg, err)
			}
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}

		res, runErr := exp.Run(ctx)
		if res != nil && r.Done != nil {
			if err := r.Done(cfg, exp, res); err != nil {
				return results, fmt.Errorf("step %d: %w", i+1, err)
			}
		}
		if runErr != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, runErr)
		}
		results = append(results, StepResult{Config: cfg, Result: res})
	}
	return results, nil
}
