// Package sysid builds system-identification test commands for a single
// mechanism.
//
// A [Routine] produces two kinds of test, each in either [Direction]:
//
//   - quasistatic: a voltage ramp growing at the configured rate
//   - dynamic: a constant step voltage
//
// Every scheduler tick a running test calls, in order, the mechanism's drive
// callback, its log callback, and the state recorder with the test's [Phase].
// On any exit (completion, timeout, or interruption) the drive is set to 0 V
// and [None] is recorded exactly once.
//
// Analysis tools slice the log by the state markers: the span between a
// non-none phase and the following "none" is one test window, and the motor
// frames recorded inside it belong to that test. Frames and markers are not
// guaranteed to share a log timestamp.
//
// # Example
//
//	arm := command.NewSubsystem("arm")
//	mech, _ := sysid.NewMechanism(motor.SetVoltage, func(l *sysid.RoutineLog) {
//		l.Motor("arm-motor").Voltage(motor.Voltage()).Position(enc.Rotations()).Velocity(enc.Rate())
//	}, arm, "")
//	routine := sysid.New(sysid.NewConfig(), mech, runLog, clk)
//	sched.Schedule(routine.Quasistatic(sysid.Forward))
//
// A single subsystem may host several mechanisms, but each mechanism needs
// its own Routine because log keys are derived from the mechanism name.
package sysid
