// Package plant runs a simulated mechanism in lockstep with the control loop.
//
// A [Plant] holds the latest commanded voltage between ticks and integrates
// its [dynamo.System] forward when stepped. Its Drive and Log methods match
// the callbacks a sysid.Mechanism expects, so a simulated plant can stand in
// for hardware.
package plant

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/san-kum/sysid/internal/dynamo"
	"github.com/san-kum/sysid/internal/integrators"
	"github.com/san-kum/sysid/internal/sysid"
	"github.com/san-kum/sysid/internal/units"
)

const (
	DefaultMaxVoltage = 12.0
	DefaultSubstep    = time.Millisecond
)

type Plant struct {
	sys     dynamo.System
	integ   dynamo.Integrator
	x       dynamo.State
	t       float64
	applied float64

	motor      string
	maxVoltage float64
	substep    time.Duration
	noise      float64
	rng        *rand.Rand
}

type Option func(*Plant)

// WithMotorName sets the motor name used in log keys. Defaults to "motor".
func WithMotorName(name string) Option {
	return func(p *Plant) { p.motor = name }
}

// WithMaxVoltage saturates the applied voltage to ±v.
func WithMaxVoltage(v float64) Option {
	return func(p *Plant) { p.maxVoltage = v }
}

// WithSubstep sets the integration step used inside each Step call.
// Non-positive values keep DefaultSubstep.
func WithSubstep(d time.Duration) Option {
	return func(p *Plant) {
		if d > 0 {
			p.substep = d
		}
	}
}

// WithNoise adds zero-mean Gaussian noise of the given standard deviation to
// measured position and velocity.
func WithNoise(stddev float64, seed int64) Option {
	return func(p *Plant) {
		p.noise = stddev
		p.rng = rand.New(rand.NewSource(seed))
	}
}

func New(sys dynamo.System, integ dynamo.Integrator, x0 dynamo.State, opts ...Option) (*Plant, error) {
	if len(x0) != sys.StateDim() {
		return nil, fmt.Errorf("plant: initial state has %d values, system needs %d: %w",
			len(x0), sys.StateDim(), dynamo.ErrDimensionMismatch)
	}

	p := &Plant{
		sys:        sys,
		integ:      integ,
		x:          x0.Clone(),
		motor:      "motor",
		maxVoltage: DefaultMaxVoltage,
		substep:    DefaultSubstep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Drive sets the voltage applied from now until the next Drive call.
func (p *Plant) Drive(v units.Voltage) {
	p.applied = math.Max(-p.maxVoltage, math.Min(p.maxVoltage, v.Volts()))
}

// Log records one frame for the plant's motor.
func (p *Plant) Log(l *sysid.RoutineLog) {
	pos, vel := p.Measure()
	l.Motor(p.motor).
		Voltage(units.Volts(p.applied)).
		Position(pos).
		Velocity(vel)
}

// Measure returns sensed position and velocity.
func (p *Plant) Measure() (pos, vel float64) {
	pos, vel = p.x[0], p.x[1]
	if p.rng != nil && p.noise > 0 {
		pos += p.rng.NormFloat64() * p.noise
		vel += p.rng.NormFloat64() * p.noise
	}
	return pos, vel
}

// Step advances the simulation by d at the currently applied voltage.
func (p *Plant) Step(d time.Duration) error {
	u := dynamo.Control{p.applied}
	remaining := d
	for remaining > 0 {
		h := min(p.substep, remaining)
		dt := h.Seconds()

		x, err := integrators.Advance(p.integ, p.sys, p.x, u, p.t, dt)
		if err != nil {
			return fmt.Errorf("plant: %w", err)
		}

		p.x = x
		p.t += dt
		remaining -= h
	}
	return nil
}

// State returns a copy of the true state.
func (p *Plant) State() dynamo.State { return p.x.Clone() }

// Applied returns the voltage currently applied.
func (p *Plant) Applied() units.Voltage { return units.Volts(p.applied) }

func (p *Plant) Time() float64 { return p.t }
