package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/sysid/internal/dynamo"
)

const (
	DefaultKS = 0.2
	DefaultKV = 2.0
	DefaultKA = 0.4
	DefaultKG = 0.8

	// Below this speed (rotations/s) static friction can hold the mechanism.
	stictionSpeed = 1e-4
)

// Motor is a permanent-magnet DC motor and load under the feedforward model
//
//	V = kS·sgn(v) + kV·v + kA·a
//
// with position in rotations and velocity in rotations per second.
// State is [position, velocity]; control is [volts].
type Motor struct {
	KS float64
	KV float64
	KA float64
}

func NewMotor() *Motor {
	return &Motor{KS: DefaultKS, KV: DefaultKV, KA: DefaultKA}
}

func (m *Motor) StateDim() int   { return 2 }
func (m *Motor) ControlDim() int { return 1 }

func (m *Motor) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[1], accel(m.KS, m.KV, m.KA, x[1], volts(u))}
}

func (m *Motor) GetParams() map[string]float64 {
	return map[string]float64{"ks": m.KS, "kv": m.KV, "ka": m.KA}
}

func (m *Motor) SetParam(name string, value float64) error {
	switch name {
	case "ks":
		m.KS = value
	case "kv":
		m.KV = value
	case "ka":
		m.KA = value
	default:
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParam, name)
	}
	return nil
}

// accel solves the feedforward model for acceleration given the net drive
// voltage left after gravity compensation.
func accel(ks, kv, ka, vel, drive float64) float64 {
	if math.Abs(vel) < stictionSpeed && math.Abs(drive) <= ks {
		return -vel * kv / ka
	}
	friction := ks * sign(vel)
	if math.Abs(vel) < stictionSpeed {
		friction = ks * sign(drive)
	}
	return (drive - friction - kv*vel) / ka
}

func volts(u dynamo.Control) float64 {
	if len(u) == 0 {
		return 0
	}
	return u[0]
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
