// Package units provides the small set of typed physical quantities used by
// characterization routines.
//
//   - [Voltage]: an electrical potential in volts
//   - [VoltageRate]: a voltage ramp rate in volts per second
//   - [MutableVoltage]: a reusable voltage cell overwritten in place
//
// Durations use [time.Duration].
package units

import (
	"fmt"
	"time"
)

type Voltage float64

const (
	Volt      Voltage = 1
	Millivolt Voltage = 1e-3
)

func Volts(v float64) Voltage { return Voltage(v) }

func (v Voltage) Volts() float64 { return float64(v) }

func (v Voltage) String() string { return fmt.Sprintf("%.4g V", float64(v)) }

// VoltageRate is a rate of change of voltage.
type VoltageRate float64

const VoltPerSecond VoltageRate = 1

func VoltsPerSecond(r float64) VoltageRate { return VoltageRate(r) }

// Per builds a rate from a voltage change over a period.
func Per(v Voltage, d time.Duration) VoltageRate {
	return VoltageRate(float64(v) / d.Seconds())
}

func (r VoltageRate) VoltsPerSecond() float64 { return float64(r) }

// Over returns the voltage accumulated at this rate over d.
func (r VoltageRate) Over(d time.Duration) Voltage {
	return Voltage(float64(r) * d.Seconds())
}

func (r VoltageRate) String() string { return fmt.Sprintf("%.4g V/s", float64(r)) }

// MutableVoltage is a voltage cell that is overwritten rather than
// reallocated. It is not safe for concurrent use.
type MutableVoltage struct {
	v Voltage
}

// Replace stores v and returns the new value.
func (m *MutableVoltage) Replace(v Voltage) Voltage {
	m.v = v
	return m.v
}

func (m *MutableVoltage) Get() Voltage { return m.v }
