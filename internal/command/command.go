package command

import "slices"

type Command interface {
	// Initialize runs once when the command is scheduled.
	Initialize()
	// Execute runs once per scheduler tick while the command is scheduled.
	Execute()
	// End runs exactly once when the command leaves the scheduler.
	// interrupted is false only when IsFinished reported completion.
	End(interrupted bool)
	IsFinished() bool
	Requirements() []Subsystem
	Name() string
}

// Subsystem is a unit of hardware that at most one command may drive at a time.
type Subsystem interface {
	Name() string
}

type SubsystemBase struct {
	name string
}

func NewSubsystem(name string) *SubsystemBase {
	return &SubsystemBase{name: name}
}

func (s *SubsystemBase) Name() string { return s.name }

// Functional is a command assembled from optional callbacks.
type Functional struct {
	name         string
	onInit       func()
	onExecute    func()
	onEnd        func(interrupted bool)
	isFinished   func() bool
	requirements []Subsystem
}

// NewFunctional builds a command from callbacks. Nil callbacks are no-ops; a
// nil isFinished never finishes.
func NewFunctional(onInit, onExecute func(), onEnd func(bool), isFinished func() bool, reqs ...Subsystem) *Functional {
	return &Functional{
		name:         "Functional",
		onInit:       onInit,
		onExecute:    onExecute,
		onEnd:        onEnd,
		isFinished:   isFinished,
		requirements: reqs,
	}
}

// RunOnce returns a command that calls action on initialization and finishes
// on its first tick.
func RunOnce(action func(), reqs ...Subsystem) *Functional {
	c := NewFunctional(action, nil, nil, func() bool { return true }, reqs...)
	c.name = "RunOnce"
	return c
}

// Run returns a command that calls action every tick and never finishes on
// its own.
func Run(action func(), reqs ...Subsystem) *Functional {
	c := NewFunctional(nil, action, nil, nil, reqs...)
	c.name = "Run"
	return c
}

func (f *Functional) Initialize() {
	if f.onInit != nil {
		f.onInit()
	}
}

func (f *Functional) Execute() {
	if f.onExecute != nil {
		f.onExecute()
	}
}

func (f *Functional) End(interrupted bool) {
	if f.onEnd != nil {
		f.onEnd(interrupted)
	}
}

func (f *Functional) IsFinished() bool {
	if f.isFinished == nil {
		return false
	}
	return f.isFinished()
}

func (f *Functional) Requirements() []Subsystem { return f.requirements }
func (f *Functional) Name() string              { return f.name }

func unionRequirements(cmds ...Command) []Subsystem {
	var reqs []Subsystem
	for _, c := range cmds {
		for _, r := range c.Requirements() {
			if !slices.Contains(reqs, r) {
				reqs = append(reqs, r)
			}
		}
	}
	return reqs
}
