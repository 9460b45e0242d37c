package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/sysid/internal/dynamo"
)

// Arm is a single-jointed arm. Position is measured in rotations from
// horizontal, so the gravity load is KG·cos(2π·position).
type Arm struct {
	Motor
	KG float64
}

func NewArm() *Arm {
	return &Arm{Motor: *NewMotor(), KG: DefaultKG}
}

func (a *Arm) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	gravity := a.KG * math.Cos(2*math.Pi*x[0])
	return dynamo.State{x[1], accel(a.KS, a.KV, a.KA, x[1], volts(u)-gravity)}
}

func (a *Arm) GetParams() map[string]float64 {
	p := a.Motor.GetParams()
	p["kg"] = a.KG
	return p
}

func (a *Arm) SetParam(name string, value float64) error {
	if name == "kg" {
		a.KG = value
		return nil
	}
	if err := a.Motor.SetParam(name, value); err != nil {
		return fmt.Errorf("arm: %w", err)
	}
	return nil
}
