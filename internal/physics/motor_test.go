package physics

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/sysid/internal/dynamo"
)

func TestMotorSteadyState(t *testing.T) {
	m := NewMotor()
	// At steady state V = kS + kV·v.
	v := (6.0 - m.KS) / m.KV
	dx := m.Derive(dynamo.State{0, v}, dynamo.Control{6.0}, 0)

	if math.Abs(dx[1]) > 1e-9 {
		t.Errorf("expected zero acceleration at steady state, got %f", dx[1])
	}
	if dx[0] != v {
		t.Errorf("position derivative should be velocity, got %f", dx[0])
	}
}

func TestMotorStiction(t *testing.T) {
	m := NewMotor()
	dx := m.Derive(dynamo.State{0, 0}, dynamo.Control{m.KS / 2}, 0)
	if dx[1] != 0 {
		t.Errorf("voltage below kS should not move a resting motor, got %f", dx[1])
	}

	dx = m.Derive(dynamo.State{0, 0}, dynamo.Control{-1.0}, 0)
	if dx[1] >= 0 {
		t.Errorf("negative voltage past kS should accelerate backwards, got %f", dx[1])
	}
}

func TestElevatorHoldsAtKG(t *testing.T) {
	e := NewElevator()
	dx := e.Derive(dynamo.State{1, 0}, dynamo.Control{e.KG}, 0)
	if dx[1] != 0 {
		t.Errorf("kG should hold the carriage, got acceleration %f", dx[1])
	}

	dx = e.Derive(dynamo.State{1, 0}, dynamo.Control{0}, 0)
	if dx[1] >= 0 {
		t.Errorf("carriage should fall without drive, got %f", dx[1])
	}
}

func TestElevatorClamp(t *testing.T) {
	e := NewElevator()
	tests := []struct {
		in       dynamo.State
		expected dynamo.State
	}{
		{dynamo.State{-1, -3}, dynamo.State{0, 0}},
		{dynamo.State{50, 2}, dynamo.State{40, 0}},
		{dynamo.State{10, 2}, dynamo.State{10, 2}},
	}

	for _, tt := range tests {
		got := e.Clamp(tt.in)
		if got[0] != tt.expected[0] || got[1] != tt.expected[1] {
			t.Errorf("Clamp(%v) = %v, want %v", tt.in, got, tt.expected)
		}
	}
}

func TestArmGravityDependsOnAngle(t *testing.T) {
	a := NewArm()
	horizontal := a.Derive(dynamo.State{0, 0}, dynamo.Control{0}, 0)
	vertical := a.Derive(dynamo.State{0.25, 0}, dynamo.Control{0}, 0)

	if horizontal[1] >= 0 {
		t.Errorf("horizontal arm should fall, got %f", horizontal[1])
	}
	if vertical[1] != 0 {
		t.Errorf("vertical arm should balance, got %f", vertical[1])
	}
}

func TestSetParam(t *testing.T) {
	e := NewElevator()
	if err := e.SetParam("kv", 3.5); err != nil {
		t.Fatalf("set kv: %v", err)
	}
	if err := e.SetParam("kg", 1.1); err != nil {
		t.Fatalf("set kg: %v", err)
	}
	if e.KV != 3.5 || e.KG != 1.1 {
		t.Errorf("params not applied: %+v", e.GetParams())
	}

	err := e.SetParam("mass", 1)
	if !errors.Is(err, dynamo.ErrUnknownParam) {
		t.Errorf("expected ErrUnknownParam, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	for _, name := range Models() {
		sys, err := New(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if sys.StateDim() != 2 || sys.ControlDim() != 1 {
			t.Errorf("%s: unexpected dims %d/%d", name, sys.StateDim(), sys.ControlDim())
		}
		if _, ok := sys.(dynamo.Configurable); !ok {
			t.Errorf("%s should be configurable", name)
		}
	}

	if _, err := New("pendulum"); err == nil {
		t.Error("expected error for unknown model")
	}
}
