// Package dynamo provides the plant primitives used to simulate mechanisms
// under test.
//
// The package defines the fundamental interfaces and types for numerical
// simulation of ordinary differential equations (ODEs):
//
//   - [State]: vector representing system state
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: numerical stepper interface
//   - [Configurable]: runtime parameter access for models
//
// # Example
//
//	motor := physics.NewMotor()
//	rk4 := integrators.NewRK4()
//	x = rk4.Step(motor, x, dynamo.Control{volts}, t, dt)
package dynamo
