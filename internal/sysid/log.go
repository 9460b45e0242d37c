package sysid

import (
	"log/slog"

	"github.com/san-kum/sysid/internal/clock"
	"github.com/san-kum/sysid/internal/datalog"
	"github.com/san-kum/sysid/internal/units"
)

const (
	UnitVolts     = "V"
	UnitRotations = "rotations"
	UnitRPS       = "rotations/s"
	UnitAmps      = "A"
)

// StateKey returns the log key test state is recorded under.
func StateKey(mechanism string) string {
	return "sysid-test-state-" + mechanism
}

// MotorKey returns the log key of a motor quantity, e.g. "voltage-left-drive".
func MotorKey(quantity, motor, mechanism string) string {
	return quantity + "-" + motor + "-" + mechanism
}

// RoutineLog timestamps and appends test state and motor frames to a shared
// log. Append failures are logged and otherwise ignored.
type RoutineLog struct {
	name   string
	log    datalog.Log
	clk    clock.Clock
	logger *slog.Logger
}

func NewRoutineLog(name string, log datalog.Log, clk clock.Clock, logger *slog.Logger) *RoutineLog {
	if log == nil {
		log = datalog.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RoutineLog{name: name, log: log, clk: clk, logger: logger}
}

func (l *RoutineLog) Name() string { return l.name }

// RecordState appends p under StateKey.
func (l *RoutineLog) RecordState(p Phase) {
	l.append(datalog.String(StateKey(l.name), p.String(), l.clk.Now()))
}

// Motor returns a frame builder for the named motor.
func (l *RoutineLog) Motor(motor string) *MotorLog {
	return &MotorLog{routine: l, motor: motor}
}

// RecordFrame records voltage, position and velocity of one motor in the
// default units.
func (l *RoutineLog) RecordFrame(motor string, voltage units.Voltage, position, velocity float64) {
	l.Motor(motor).Voltage(voltage).Position(position).Velocity(velocity)
}

func (l *RoutineLog) append(e datalog.Entry) {
	if err := l.log.Append(e); err != nil {
		l.logger.Warn("log append failed", "key", e.Key, "err", err)
	}
}

// MotorLog records the quantities of a single motor. Each call appends one
// entry stamped with the current time.
type MotorLog struct {
	routine *RoutineLog
	motor   string
}

// Value records an arbitrary named quantity.
func (m *MotorLog) Value(quantity string, v float64, unit string) *MotorLog {
	r := m.routine
	r.append(datalog.Double(MotorKey(quantity, m.motor, r.name), v, unit, r.clk.Now()))
	return m
}

func (m *MotorLog) Voltage(v units.Voltage) *MotorLog {
	return m.Value("voltage", v.Volts(), UnitVolts)
}

// Position records position in rotations.
func (m *MotorLog) Position(rotations float64) *MotorLog {
	return m.Value("position", rotations, UnitRotations)
}

// Velocity records velocity in rotations per second.
func (m *MotorLog) Velocity(rps float64) *MotorLog {
	return m.Value("velocity", rps, UnitRPS)
}

func (m *MotorLog) Current(amps float64) *MotorLog {
	return m.Value("current", amps, UnitAmps)
}
