package command

import (
	"time"

	"github.com/san-kum/sysid/internal/clock"
)

// SequentialGroup runs its commands one after another. The next command is
// initialized on the same tick the previous one finishes.
type SequentialGroup struct {
	cmds  []Command
	index int
	reqs  []Subsystem
}

func Sequence(cmds ...Command) *SequentialGroup {
	return &SequentialGroup{
		cmds:  cmds,
		index: -1,
		reqs:  unionRequirements(cmds...),
	}
}

func (g *SequentialGroup) Initialize() {
	g.index = 0
	if len(g.cmds) > 0 {
		g.cmds[0].Initialize()
	}
}

func (g *SequentialGroup) Execute() {
	if g.index < 0 || g.index >= len(g.cmds) {
		return
	}

	cur := g.cmds[g.index]
	cur.Execute()
	if cur.IsFinished() {
		cur.End(false)
		g.index++
		if g.index < len(g.cmds) {
			g.cmds[g.index].Initialize()
		}
	}
}

func (g *SequentialGroup) End(interrupted bool) {
	if interrupted && g.index >= 0 && g.index < len(g.cmds) {
		g.cmds[g.index].End(true)
	}
	g.index = -1
}

func (g *SequentialGroup) IsFinished() bool { return g.index == len(g.cmds) }

func (g *SequentialGroup) Requirements() []Subsystem { return g.reqs }
func (g *SequentialGroup) Name() string              { return "SequentialGroup" }

// FinallyCommand runs an action after its inner command ends, whatever the
// cause.
type FinallyCommand struct {
	Command
	onEnd func(interrupted bool)
}

func Finally(cmd Command, onEnd func(interrupted bool)) *FinallyCommand {
	return &FinallyCommand{Command: cmd, onEnd: onEnd}
}

// End runs onEnd even when the inner End panics.
func (f *FinallyCommand) End(interrupted bool) {
	defer f.onEnd(interrupted)
	f.Command.End(interrupted)
}

type NamedCommand struct {
	Command
	name string
}

func Named(cmd Command, name string) *NamedCommand {
	return &NamedCommand{Command: cmd, name: name}
}

func (n *NamedCommand) Name() string { return n.name }

// TimeoutCommand finishes its inner command once a deadline passes. The inner
// command is not executed on the tick the deadline is detected and is ended
// as interrupted.
type TimeoutCommand struct {
	Command
	timer    *clock.Timer
	timeout  time.Duration
	timedOut bool
}

func WithTimeout(cmd Command, clk clock.Clock, timeout time.Duration) *TimeoutCommand {
	return &TimeoutCommand{
		Command: cmd,
		timer:   clock.NewTimer(clk),
		timeout: timeout,
	}
}

func (t *TimeoutCommand) Initialize() {
	t.timedOut = false
	t.timer.Restart()
	t.Command.Initialize()
}

func (t *TimeoutCommand) Execute() {
	if t.expired() {
		return
	}
	t.Command.Execute()
}

func (t *TimeoutCommand) IsFinished() bool {
	return t.expired() || t.Command.IsFinished()
}

func (t *TimeoutCommand) End(interrupted bool) {
	t.timer.Stop()
	t.Command.End(interrupted || t.timedOut)
}

// TimedOut reports whether the last run ended because of the deadline.
func (t *TimeoutCommand) TimedOut() bool { return t.timedOut }

func (t *TimeoutCommand) expired() bool {
	if !t.timedOut && t.timer.HasElapsed(t.timeout) {
		t.timedOut = true
	}
	return t.timedOut
}

// Wait returns a command that does nothing until d has passed.
func Wait(clk clock.Clock, d time.Duration, reqs ...Subsystem) Command {
	timer := clock.NewTimer(clk)
	c := NewFunctional(timer.Restart, nil, func(bool) { timer.Stop() },
		func() bool { return timer.HasElapsed(d) }, reqs...)
	c.name = "Wait"
	return c
}
