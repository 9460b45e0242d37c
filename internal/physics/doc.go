// Package physics provides simulated mechanisms for characterization runs.
//
// Each model implements the [dynamo.System] interface with state
// [position, velocity] in rotations and control [volts]:
//
//   - [Motor]: DC motor with static, viscous and inertial terms
//   - [Elevator]: motor with constant gravity load and travel limits
//   - [Arm]: motor with angle-dependent gravity load
//
// All models implement [dynamo.Configurable] so feedforward gains can be
// set from configuration files.
package physics
