package command

import (
	"fmt"
	"log/slog"
	"slices"
)

// EventKind identifies a point in a command's lifecycle.
type EventKind int

const (
	EventInitialize EventKind = iota
	EventExecute
	EventFinish
	EventInterrupt
)

func (k EventKind) String() string {
	switch k {
	case EventInitialize:
		return "initialize"
	case EventExecute:
		return "execute"
	case EventFinish:
		return "finish"
	case EventInterrupt:
		return "interrupt"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

type Event struct {
	Kind    EventKind
	Command Command
}

// Observer is notified of command lifecycle events.
type Observer interface {
	OnCommandEvent(ev Event)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(ev Event)

func (f ObserverFunc) OnCommandEvent(ev Event) { f(ev) }

// Scheduler runs commands cooperatively, one Execute per command per Run.
type Scheduler struct {
	scheduled    []Command
	requirements map[Subsystem]Command
	observers    []Observer
	logger       *slog.Logger

	inRun      bool
	toSchedule []Command
	toCancel   []Command
}

type SchedulerOption func(*Scheduler)

func WithLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		scheduled:    make([]Command, 0),
		requirements: make(map[Subsystem]Command),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Schedule initializes the commands and adds them to the run list. Running
// commands that share a requirement are interrupted first. Scheduling an
// already scheduled command has no effect. Calls made from inside Run are
// deferred until the current pass completes.
func (s *Scheduler) Schedule(cmds ...Command) {
	for _, cmd := range cmds {
		if cmd == nil {
			s.logger.Warn("ignoring nil command")
			continue
		}
		if s.inRun {
			s.toSchedule = append(s.toSchedule, cmd)
			continue
		}
		s.schedule(cmd)
	}
}

func (s *Scheduler) schedule(cmd Command) {
	if s.IsScheduled(cmd) {
		return
	}

	for _, req := range cmd.Requirements() {
		if holder, ok := s.requirements[req]; ok && holder != cmd {
			s.logger.Debug("requirement conflict",
				"subsystem", req.Name(), "interrupted", holder.Name(), "by", cmd.Name())
			s.cancel(holder)
		}
	}

	cmd.Initialize()
	s.scheduled = append(s.scheduled, cmd)
	for _, req := range cmd.Requirements() {
		s.requirements[req] = cmd
	}
	s.notify(EventInitialize, cmd)
}

// Run executes one tick: every scheduled command is executed once, and those
// that report completion are ended.
func (s *Scheduler) Run() {
	s.inRun = true
	for _, cmd := range slices.Clone(s.scheduled) {
		if !s.IsScheduled(cmd) {
			continue
		}
		s.tick(cmd)
	}
	s.inRun = false

	for _, cmd := range s.toCancel {
		s.cancel(cmd)
	}
	for _, cmd := range s.toSchedule {
		s.schedule(cmd)
	}
	s.toCancel = s.toCancel[:0]
	s.toSchedule = s.toSchedule[:0]
}

// tick executes a single command. A panic ends the command as interrupted
// before it propagates.
func (s *Scheduler) tick(cmd Command) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("command panicked", "command", cmd.Name(), "panic", r)
			s.inRun = false
			s.cancel(cmd)
			panic(r)
		}
	}()

	cmd.Execute()
	s.notify(EventExecute, cmd)

	if cmd.IsFinished() {
		s.remove(cmd)
		cmd.End(false)
		s.notify(EventFinish, cmd)
	}
}

// Cancel interrupts the commands if they are scheduled.
func (s *Scheduler) Cancel(cmds ...Command) {
	for _, cmd := range cmds {
		if s.inRun {
			s.toCancel = append(s.toCancel, cmd)
			continue
		}
		s.cancel(cmd)
	}
}

// CancelAll interrupts every scheduled command.
func (s *Scheduler) CancelAll() {
	s.Cancel(slices.Clone(s.scheduled)...)
}

func (s *Scheduler) cancel(cmd Command) {
	if !s.IsScheduled(cmd) {
		return
	}
	s.remove(cmd)
	cmd.End(true)
	s.notify(EventInterrupt, cmd)
}

func (s *Scheduler) remove(cmd Command) {
	s.scheduled = slices.DeleteFunc(s.scheduled, func(c Command) bool { return c == cmd })
	for _, req := range cmd.Requirements() {
		if s.requirements[req] == cmd {
			delete(s.requirements, req)
		}
	}
}

func (s *Scheduler) IsScheduled(cmd Command) bool {
	return slices.Contains(s.scheduled, cmd)
}

// Requiring returns the command currently holding sub, or nil.
func (s *Scheduler) Requiring(sub Subsystem) Command {
	return s.requirements[sub]
}

// Len returns the number of scheduled commands.
func (s *Scheduler) Len() int { return len(s.scheduled) }

func (s *Scheduler) notify(kind EventKind, cmd Command) {
	if len(s.observers) == 0 {
		return
	}
	ev := Event{Kind: kind, Command: cmd}
	for _, o := range s.observers {
		o.OnCommandEvent(ev)
	}
}
