package config

import (
	"sort"

	"github.com/san-kum/sysid/internal/sysid"
)

var allTests = []string{
	sysid.QuasistaticForward.String(),
	sysid.QuasistaticReverse.String(),
	sysid.DynamicForward.String(),
	sysid.DynamicReverse.String(),
}

var Presets = map[string]map[string]*Config{
	"motor": {
		"standard": {
			Mechanism: "flywheel", Motor: "motor", Model: "motor", Integrator: "rk4",
			Period: 0.02, Settle: 1.0, Tests: allTests,
			Routine: RoutineConfig{RampRate: 1.0, StepVoltage: 7.0, Timeout: 10.0},
		},
		"aggressive": {
			Mechanism: "flywheel", Motor: "motor", Model: "motor", Integrator: "rk4",
			Period: 0.005, Settle: 2.0, Tests: allTests,
			Routine: RoutineConfig{RampRate: 2.0, StepVoltage: 10.0, Timeout: 5.0},
		},
	},
	"elevator": {
		"standard": {
			Mechanism: "elevator", Motor: "motor", Model: "elevator", Integrator: "rk4",
			Period: 0.02, Settle: 1.0, Tests: allTests,
			Routine: RoutineConfig{RampRate: 1.0, StepVoltage: 7.0, Timeout: 10.0},
		},
		"short-travel": {
			Mechanism: "elevator", Motor: "motor", Model: "elevator", Integrator: "rk4",
			Period: 0.02, Settle: 0.5, Tests: allTests,
			Params:  map[string]float64{"max_height": 8},
			Routine: RoutineConfig{RampRate: 0.5, StepVoltage: 4.0, Timeout: 3.0},
		},
	},
	"arm": {
		"standard": {
			Mechanism: "arm", Motor: "motor", Model: "arm", Integrator: "rk4",
			Start: -0.25, Period: 0.02, Settle: 1.0, Tests: allTests,
			Routine: RoutineConfig{RampRate: 0.5, StepVoltage: 3.0, Timeout: 4.0},
		},
		"quasistatic-only": {
			Mechanism: "arm", Motor: "motor", Model: "arm", Integrator: "euler",
			Start: -0.25, Period: 0.01, Settle: 1.0,
			Tests:   []string{sysid.QuasistaticForward.String(), sysid.QuasistaticReverse.String()},
			Routine: RoutineConfig{RampRate: 0.25, StepVoltage: 3.0, Timeout: 6.0},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	out := cfg.Clone()
	out.Output = OutputConfig{SQLite: true, CSV: true}
	return out
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
