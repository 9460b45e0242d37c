package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/sysid/internal/dynamo"
	"github.com/san-kum/sysid/internal/integrators"
	"github.com/san-kum/sysid/internal/physics"
)

type Registry struct {
	integrators map[string]func() dynamo.Integrator
}

func NewRegistry() *Registry {
	r := &Registry{
		integrators: make(map[string]func() dynamo.Integrator),
	}

	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }

	return r
}

// GetModel returns a fresh plant model with params applied.
func (r *Registry) GetModel(name string, params map[string]float64) (dynamo.System, error) {
	sys, err := physics.New(name)
	if err != nil {
		return nil, err
	}
	if len(params) == 0 {
		return sys, nil
	}

	c, ok := sys.(dynamo.Configurable)
	if !ok {
		return nil, fmt.Errorf("model %s has no parameters", name)
	}
	for k, v := range params {
		if err := c.SetParam(k, v); err != nil {
			return nil, fmt.Errorf("model %s: %w", name, err)
		}
	}
	return sys, nil
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListModels() []string { return physics.Models() }

func (r *Registry) ListIntegrators() []string {
	names := make([]string, 0, len(r.integrators))
	for name := range r.integrators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
