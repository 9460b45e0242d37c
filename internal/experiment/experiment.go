// Package experiment wires a simulated plant, a sysid routine and a scheduler
// loop together from a run configuration.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/sysid/internal/clock"
	"github.com/san-kum/sysid/internal/command"
	"github.com/san-kum/sysid/internal/config"
	"github.com/san-kum/sysid/internal/datalog"
	"github.com/san-kum/sysid/internal/dynamo"
	"github.com/san-kum/sysid/internal/plant"
	"github.com/san-kum/sysid/internal/sysid"
	"github.com/san-kum/sysid/internal/units"
)

// Progress is a snapshot taken after each scheduler tick.
type Progress struct {
	Time     time.Duration
	Phase    sysid.Phase
	Voltage  units.Voltage
	Position float64
	Velocity float64
}

type Result struct {
	Entries     []datalog.Entry
	Ticks       int
	Elapsed     time.Duration
	Interrupted bool
}

type Experiment struct {
	cfg    *config.Config
	logger *slog.Logger
	extra  []datalog.Log
	onTick func(Progress)

	clk     clock.Clock
	sim     *clock.Manual
	plant   *plant.Plant
	routine *sysid.Routine
	sched   *command.Scheduler
	memory  *datalog.Memory
	tracker *phaseTracker
	suite   command.Command

	ticks       int
	interrupted bool
	stepErr     error
}

type Option func(*Experiment)

func WithLogger(l *slog.Logger) Option {
	return func(e *Experiment) { e.logger = l }
}

// WithLog adds a log that receives every entry alongside the in-memory copy.
func WithLog(l datalog.Log) Option {
	return func(e *Experiment) { e.extra = append(e.extra, l) }
}

// WithProgress registers fn to be called after every tick.
func WithProgress(fn func(Progress)) Option {
	return func(e *Experiment) { e.onTick = fn }
}

func New(cfg *config.Config, reg *Registry, opts ...Option) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Experiment{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}

	sys, err := reg.GetModel(cfg.Model, cfg.Params)
	if err != nil {
		return nil, err
	}
	integ, err := reg.GetIntegrator(cfg.Integrator)
	if err != nil {
		return nil, err
	}

	plantOpts := []plant.Option{plant.WithMotorName(cfg.Motor)}
	if cfg.Noise > 0 {
		plantOpts = append(plantOpts, plant.WithNoise(cfg.Noise, cfg.Seed))
	}
	x0 := make(dynamo.State, sys.StateDim())
	x0[0] = cfg.Start
	e.plant, err = plant.New(sys, integ, x0, plantOpts...)
	if err != nil {
		return nil, err
	}

	if cfg.Realtime {
		e.clk = clock.NewWall()
	} else {
		e.sim = clock.NewManual()
		e.clk = e.sim
	}

	sub := command.NewSubsystem(cfg.Mechanism)
	mech, err := sysid.NewMechanism(e.plant.Drive, e.plant.Log, sub, cfg.Mechanism)
	if err != nil {
		return nil, err
	}

	e.memory = datalog.NewMemory()
	logs := append([]datalog.Log{e.memory}, e.extra...)
	e.tracker = &phaseTracker{Log: datalog.Tee(logs...), key: sysid.StateKey(mech.Name())}

	e.routine = sysid.New(sysid.NewConfig(cfg.RoutineOptions()...), mech, e.tracker, e.clk,
		sysid.WithLogger(e.logger))

	phases, err := cfg.Phases()
	if err != nil {
		return nil, err
	}
	e.suite, err = e.routine.Suite(cfg.SettleDuration(), phases...)
	if err != nil {
		return nil, err
	}

	e.sched = command.NewScheduler(command.WithLogger(e.logger))
	e.sched.AddObserver(command.ObserverFunc(e.observe))
	return e, nil
}

func (e *Experiment) Routine() *sysid.Routine { return e.routine }
func (e *Experiment) Plant() *plant.Plant     { return e.plant }

// Run executes the selected tests until they finish or ctx ends. When ctx
// ends the running test is interrupted, so the plant is left at 0 V.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	loop := &command.Loop{
		Scheduler:  e.sched,
		Period:     e.cfg.PeriodDuration(),
		Sim:        e.sim,
		BeforeTick: e.beforeTick,
		AfterTick:  e.afterTick,
	}

	start := e.clk.Now()
	e.sched.Schedule(e.suite)
	err := loop.Run(ctx)

	res := &Result{
		Entries:     e.memory.Entries(),
		Ticks:       e.ticks,
		Elapsed:     e.clk.Now() - start,
		Interrupted: e.interrupted,
	}
	if e.stepErr != nil {
		return res, e.stepErr
	}
	return res, err
}

// Metadata describes this run for the run store.
func (e *Experiment) Metadata() datalog.RunMetadata {
	rc := e.routine.Config()
	return datalog.RunMetadata{
		Mechanism:   e.cfg.Mechanism,
		Plant:       e.cfg.Model,
		RampRate:    rc.RampRate().VoltsPerSecond(),
		StepVoltage: rc.StepVoltage().Volts(),
		Timeout:     rc.Timeout().Seconds(),
		Period:      e.cfg.Period,
		Tests:       append([]string(nil), e.cfg.Tests...),
	}
}

func (e *Experiment) beforeTick() {
	if err := e.plant.Step(e.cfg.PeriodDuration()); err != nil {
		e.logger.Error("plant diverged", "error", err)
		e.stepErr = fmt.Errorf("experiment: %w", err)
		e.sched.CancelAll()
	}
}

func (e *Experiment) afterTick() {
	e.ticks++
	if e.onTick == nil {
		return
	}
	pos, vel := e.plant.Measure()
	e.onTick(Progress{
		Time:     e.clk.Now(),
		Phase:    e.tracker.phase,
		Voltage:  e.plant.Applied(),
		Position: pos,
		Velocity: vel,
	})
}

func (e *Experiment) observe(ev command.Event) {
	switch ev.Kind {
	case command.EventInitialize:
		e.logger.Info("suite started", "command", ev.Command.Name())
	case command.EventFinish:
		e.logger.Info("suite finished", "command", ev.Command.Name())
	case command.EventInterrupt:
		e.interrupted = true
		e.logger.Warn("suite interrupted", "command", ev.Command.Name())
	}
}

// phaseTracker remembers the last state marker written for one mechanism.
type phaseTracker struct {
	datalog.Log
	key   string
	phase sysid.Phase
}

func (t *phaseTracker) Append(e datalog.Entry) error {
	if e.Key == t.key {
		if p, err := sysid.ParsePhase(e.Str); err == nil {
			t.phase = p
		}
	}
	return t.Log.Append(e)
}
