package physics

import (
	"fmt"

	"github.com/san-kum/sysid/internal/dynamo"
)

// Elevator is a Motor lifting a constant load. KG is the voltage needed to
// hold the carriage against gravity. Travel is limited to [MinHeight,
// MaxHeight] rotations of the output drum.
type Elevator struct {
	Motor
	KG        float64
	MinHeight float64
	MaxHeight float64
}

func NewElevator() *Elevator {
	return &Elevator{
		Motor:     *NewMotor(),
		KG:        DefaultKG,
		MinHeight: 0,
		MaxHeight: 40,
	}
}

func (e *Elevator) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[1], accel(e.KS, e.KV, e.KA, x[1], volts(u)-e.KG)}
}

// Clamp stops the carriage at the ends of travel.
func (e *Elevator) Clamp(x dynamo.State) dynamo.State {
	switch {
	case x[0] < e.MinHeight:
		return dynamo.State{e.MinHeight, 0}
	case x[0] > e.MaxHeight:
		return dynamo.State{e.MaxHeight, 0}
	}
	return x
}

func (e *Elevator) GetParams() map[string]float64 {
	p := e.Motor.GetParams()
	p["kg"] = e.KG
	p["min_height"] = e.MinHeight
	p["max_height"] = e.MaxHeight
	return p
}

func (e *Elevator) SetParam(name string, value float64) error {
	switch name {
	case "kg":
		e.KG = value
	case "min_height":
		e.MinHeight = value
	case "max_height":
		e.MaxHeight = value
	default:
		if err := e.Motor.SetParam(name, value); err != nil {
			return fmt.Errorf("elevator: %w", err)
		}
	}
	return nil
}
