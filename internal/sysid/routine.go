package sysid

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/sysid/internal/clock"
	"github.com/san-kum/sysid/internal/command"
	"github.com/san-kum/sysid/internal/datalog"
	"github.com/san-kum/sysid/internal/units"
)

// Routine produces test commands for one mechanism. The commands share the
// routine's output cell, so only one of them may run at a time; the shared
// subsystem requirement lets the scheduler enforce that.
type Routine struct {
	cfg         Config
	mech        Mechanism
	clk         clock.Clock
	log         *RoutineLog
	output      units.MutableVoltage
	recordState func(Phase)
	logger      *slog.Logger
}

type Option func(*Routine)

func WithLogger(l *slog.Logger) Option {
	return func(r *Routine) { r.logger = l }
}

// New creates a routine. State goes to cfg's recorder when set, otherwise to
// log under StateKey(mech.Name()). A nil log discards everything.
func New(cfg Config, mech Mechanism, log datalog.Log, clk clock.Clock, opts ...Option) *Routine {
	r := &Routine{
		cfg:    cfg,
		mech:   mech,
		clk:    clk,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.log = NewRoutineLog(mech.Name(), log, clk, r.logger)
	r.recordState = cfg.RecordState()
	if r.recordState == nil {
		r.recordState = r.log.RecordState
	}
	return r
}

func (r *Routine) Config() Config       { return r.cfg }
func (r *Routine) Mechanism() Mechanism { return r.mech }

// Log returns the log handed to the mechanism's log callback.
func (r *Routine) Log() *RoutineLog { return r.log }

// Output returns the most recently commanded test voltage.
func (r *Routine) Output() units.Voltage { return r.output.Get() }

// CommandName returns the name of the test command for phase p.
func (r *Routine) CommandName(p Phase) string {
	return "sysid-" + p.String() + "-" + r.mech.Name()
}

// Quasistatic returns a command that ramps the drive voltage at the configured
// rate, starting from zero when the command is scheduled.
func (r *Routine) Quasistatic(d Direction) command.Command {
	phase := QuasistaticPhase(d)
	sign := outputSign(d)
	timer := clock.NewTimer(r.clk)
	sub := r.mech.Subsystem()

	body := command.Sequence(
		command.RunOnce(timer.Restart, sub),
		command.Run(func() {
			v := units.Volts(sign * timer.Elapsed().Seconds() * r.cfg.RampRate().VoltsPerSecond())
			r.mech.drive(r.output.Replace(v))
			r.mech.log(r.log)
			r.record(phase)
		}, sub),
	)
	return r.wrap(body, phase, timer.Stop)
}

// Dynamic returns a command that holds the configured step voltage.
func (r *Routine) Dynamic(d Direction) command.Command {
	phase := DynamicPhase(d)
	sign := outputSign(d)
	sub := r.mech.Subsystem()

	body := command.Sequence(
		command.RunOnce(func() {
			r.output.Replace(units.Volts(r.cfg.StepVoltage().Volts() * sign))
		}, sub),
		command.Run(func() {
			r.mech.drive(r.output.Get())
			r.mech.log(r.log)
			r.record(phase)
		}, sub),
	)
	return r.wrap(body, phase, func() {})
}

// Test returns the test command for phase p. None is not a test.
func (r *Routine) Test(p Phase) (command.Command, error) {
	switch p {
	case QuasistaticForward:
		return r.Quasistatic(Forward), nil
	case QuasistaticReverse:
		return r.Quasistatic(Reverse), nil
	case DynamicForward:
		return r.Dynamic(Forward), nil
	case DynamicReverse:
		return r.Dynamic(Reverse), nil
	}
	return nil, fmt.Errorf("sysid: %v is not a test", p)
}

// Suite runs the tests for phases in order, waiting settle between them with
// the mechanism idle.
func (r *Routine) Suite(settle time.Duration, phases ...Phase) (command.Command, error) {
	steps := make([]command.Command, 0, 2*len(phases))
	for i, p := range phases {
		t, err := r.Test(p)
		if err != nil {
			return nil, err
		}
		if i > 0 && settle > 0 {
			steps = append(steps, command.Wait(r.clk, settle, r.mech.Subsystem()))
		}
		steps = append(steps, t)
	}
	return command.Named(command.Sequence(steps...), "sysid-suite-"+r.mech.Name()), nil
}

// All runs the four tests back to back: quasistatic forward and reverse, then
// dynamic forward and reverse, waiting settle between tests.
func (r *Routine) All(settle time.Duration) command.Command {
	suite, _ := r.Suite(settle, QuasistaticForward, QuasistaticReverse, DynamicForward, DynamicReverse)
	return command.Named(suite, "sysid-all-"+r.mech.Name())
}

// wrap attaches the exit action and the safety timeout. The exit action runs
// once on every exit path: drive 0 V, record None, then stop.
func (r *Routine) wrap(body command.Command, phase Phase, stop func()) command.Command {
	exit := func(interrupted bool) {
		defer stop()
		defer r.record(None)
		r.mech.drive(0)
		r.logger.Debug("test ended", "test", r.CommandName(phase), "interrupted", interrupted)
	}

	named := command.Named(command.Finally(body, exit), r.CommandName(phase))
	return command.WithTimeout(named, r.clk, r.cfg.Timeout())
}

// record delivers p to the state recorder. A panicking recorder is logged and
// swallowed so it cannot skip the exit action.
func (r *Routine) record(p Phase) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("state recorder panicked", "phase", p.String(), "panic", rec)
		}
	}()
	r.recordState(p)
}
