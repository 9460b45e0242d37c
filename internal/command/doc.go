// Package command provides a cooperative, tick-driven command scheduler.
//
// A [Command] is a unit of work with a lifecycle of Initialize, repeated
// Execute, and a single End. Commands declare the [Subsystem]s they require;
// the [Scheduler] guarantees that at most one running command holds a given
// subsystem, interrupting the previous holder when a new command claims it.
//
// Composition helpers build larger commands from smaller ones:
//
//   - [RunOnce], [Run]: commands from plain functions
//   - [Sequence]: run commands one after another
//   - [Finally]: attach an action that runs on every exit path
//   - [Named], [WithTimeout]: rename, bound by time
//
// # Usage
//
//	clk := clock.NewManual()
//	sched := command.NewScheduler()
//	cmd := command.WithTimeout(command.Run(step, arm), clk, 5*time.Second)
//	sched.Schedule(cmd)
//	for sched.Len() > 0 {
//		clk.Advance(20 * time.Millisecond)
//		sched.Run()
//	}
//
// # Thread Safety
//
// Scheduler and commands are NOT thread-safe. All calls must come from the
// goroutine that owns the control loop.
package command
