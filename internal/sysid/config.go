package sysid

import (
	"time"

	"github.com/san-kum/sysid/internal/units"
)

const (
	DefaultRampRate    = units.VoltPerSecond
	DefaultStepVoltage = 7 * units.Volt
	DefaultTimeout     = 10 * time.Second
)

// Config holds the hardware-independent parameters of a routine. Unset fields
// take their defaults at construction; the values are read-only afterwards.
type Config struct {
	rampRate    units.VoltageRate
	stepVoltage units.Voltage
	timeout     time.Duration
	recordState func(Phase)
}

type ConfigOption func(*Config)

// WithRampRate sets the quasistatic ramp rate.
func WithRampRate(r units.VoltageRate) ConfigOption {
	return func(c *Config) { c.rampRate = r }
}

// WithStepVoltage sets the dynamic step voltage.
func WithStepVoltage(v units.Voltage) ConfigOption {
	return func(c *Config) { c.stepVoltage = v }
}

// WithTimeout sets the safety timeout of every test command.
func WithTimeout(d time.Duration) ConfigOption {
	return func(c *Config) { c.timeout = d }
}

// WithRecordState routes test state to fn instead of the routine log.
func WithRecordState(fn func(Phase)) ConfigOption {
	return func(c *Config) { c.recordState = fn }
}

// NewConfig applies opts over the defaults. Values are not validated.
func NewConfig(opts ...ConfigOption) Config {
	c := Config{
		rampRate:    DefaultRampRate,
		stepVoltage: DefaultStepVoltage,
		timeout:     DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c Config) RampRate() units.VoltageRate { return c.rampRate }
func (c Config) StepVoltage() units.Voltage  { return c.stepVoltage }
func (c Config) Timeout() time.Duration      { return c.timeout }

// RecordState returns the external state recorder, or nil.
func (c Config) RecordState() func(Phase) { return c.recordState }
