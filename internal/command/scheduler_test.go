package command

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/sysid/internal/clock"
)

// trace records lifecycle calls in order.
type trace struct {
	calls []string
}

func (tr *trace) add(s string) { tr.calls = append(tr.calls, s) }

func tracedCommand(tr *trace, name string, finishAfter int, reqs ...Subsystem) *Functional {
	executed := 0
	c := NewFunctional(
		func() { tr.add(name + ":init") },
		func() { executed++; tr.add(name + ":exec") },
		func(interrupted bool) {
			if interrupted {
				tr.add(name + ":interrupted")
			} else {
				tr.add(name + ":end")
			}
		},
		func() bool { return finishAfter > 0 && executed >= finishAfter },
		reqs...,
	)
	return c
}

var _ = Describe("Scheduler", func() {
	var (
		sched *Scheduler
		tr    *trace
		arm   *SubsystemBase
	)

	BeforeEach(func() {
		sched = NewScheduler()
		tr = &trace{}
		arm = NewSubsystem("Arm")
	})

	It("should initialize on schedule and execute once per run", func() {
		cmd := tracedCommand(tr, "a", 2)
		sched.Schedule(cmd)
		Expect(tr.calls).To(Equal([]string{"a:init"}))

		sched.Run()
		Expect(sched.IsScheduled(cmd)).To(BeTrue())
		sched.Run()

		Expect(tr.calls).To(Equal([]string{"a:init", "a:exec", "a:exec", "a:end"}))
		Expect(sched.Len()).To(Equal(0))
	})

	It("should ignore a second schedule of the same command", func() {
		cmd := tracedCommand(tr, "a", 0)
		sched.Schedule(cmd)
		sched.Schedule(cmd)
		Expect(tr.calls).To(Equal([]string{"a:init"}))
		Expect(sched.Len()).To(Equal(1))
	})

	It("should interrupt the holder of a shared requirement", func() {
		first := tracedCommand(tr, "first", 0, arm)
		second := tracedCommand(tr, "second", 0, arm)

		sched.Schedule(first)
		sched.Run()
		sched.Schedule(second)

		Expect(tr.calls).To(Equal([]string{
			"first:init", "first:exec", "first:interrupted", "second:init",
		}))
		Expect(sched.Requiring(arm)).To(BeIdenticalTo(second))
		Expect(sched.IsScheduled(first)).To(BeFalse())
	})

	It("should end cancelled commands as interrupted exactly once", func() {
		cmd := tracedCommand(tr, "a", 0, arm)
		sched.Schedule(cmd)
		sched.Cancel(cmd)
		sched.Cancel(cmd)

		Expect(tr.calls).To(Equal([]string{"a:init", "a:interrupted"}))
		Expect(sched.Requiring(arm)).To(BeNil())
	})

	It("should defer schedule and cancel requests made during a run", func() {
		other := tracedCommand(tr, "other", 0)
		var self Command
		self = NewFunctional(nil, func() {
			sched.Schedule(other)
			sched.Cancel(self)
		}, func(bool) { tr.add("self:end") }, nil)

		sched.Schedule(self)
		sched.Run()

		Expect(tr.calls).To(Equal([]string{"self:end", "other:init"}))
		Expect(sched.IsScheduled(other)).To(BeTrue())
	})

	It("should interrupt a panicking command before propagating", func() {
		cmd := NewFunctional(nil,
			func() { panic("boom") },
			func(interrupted bool) {
				if interrupted {
					tr.add("cleanup")
				}
			}, nil)

		sched.Schedule(cmd)
		Expect(func() { sched.Run() }).To(PanicWith("boom"))
		Expect(tr.calls).To(Equal([]string{"cleanup"}))
		Expect(sched.Len()).To(Equal(0))
	})

	It("should report lifecycle events to observers", func() {
		var kinds []EventKind
		sched.AddObserver(ObserverFunc(func(ev Event) { kinds = append(kinds, ev.Kind) }))

		sched.Schedule(tracedCommand(tr, "a", 1))
		sched.Run()
		sched.Schedule(tracedCommand(tr, "b", 0))
		sched.CancelAll()

		Expect(kinds).To(Equal([]EventKind{
			EventInitialize, EventExecute, EventFinish, EventInitialize, EventInterrupt,
		}))
	})
})

var _ = Describe("Composition", func() {
	var (
		sched *Scheduler
		tr    *trace
		clk   *clock.Manual
	)

	BeforeEach(func() {
		sched = NewScheduler()
		tr = &trace{}
		clk = clock.NewManual()
	})

	It("should run a sequence in order", func() {
		seq := Sequence(
			RunOnce(func() { tr.add("once") }),
			tracedCommand(tr, "b", 1),
		)
		sched.Schedule(seq)
		for i := 0; i < 3 && sched.Len() > 0; i++ {
			sched.Run()
		}

		Expect(tr.calls).To(Equal([]string{"once", "b:init", "b:exec", "b:end"}))
		Expect(sched.Len()).To(Equal(0))
	})

	It("should merge requirements of a sequence", func() {
		a, b := NewSubsystem("A"), NewSubsystem("B")
		seq := Sequence(Run(func() {}, a), Run(func() {}, a, b))
		Expect(seq.Requirements()).To(ConsistOf(a, b))
	})

	It("should run the finally action on completion and interruption", func() {
		var ends []bool
		done := Finally(tracedCommand(tr, "a", 1), func(i bool) { ends = append(ends, i) })
		sched.Schedule(done)
		sched.Run()

		stopped := Finally(tracedCommand(tr, "b", 0), func(i bool) { ends = append(ends, i) })
		sched.Schedule(stopped)
		sched.Run()
		sched.Cancel(stopped)

		Expect(ends).To(Equal([]bool{false, true}))
	})

	It("should run the finally action even if the inner end panics", func() {
		ran := false
		cmd := Finally(NewFunctional(nil, nil, func(bool) { panic("end") }, nil), func(bool) { ran = true })
		Expect(func() { cmd.End(true) }).To(Panic())
		Expect(ran).To(BeTrue())
	})

	It("should rename a command", func() {
		Expect(Named(Run(func() {}), "spin").Name()).To(Equal("spin"))
	})

	It("should end a command as interrupted when the timeout passes", func() {
		inner := tracedCommand(tr, "a", 0)
		cmd := WithTimeout(inner, clk, 100*time.Millisecond)
		sched.Schedule(cmd)

		for i := 0; i < 10 && sched.Len() > 0; i++ {
			clk.Advance(40 * time.Millisecond)
			sched.Run()
		}

		Expect(tr.calls).To(Equal([]string{"a:init", "a:exec", "a:exec", "a:interrupted"}))
		Expect(cmd.TimedOut()).To(BeTrue())
	})

	It("should end normally when the inner command finishes first", func() {
		cmd := WithTimeout(tracedCommand(tr, "a", 1), clk, time.Second)
		sched.Schedule(cmd)
		clk.Advance(20 * time.Millisecond)
		sched.Run()

		Expect(tr.calls).To(Equal([]string{"a:init", "a:exec", "a:end"}))
		Expect(cmd.TimedOut()).To(BeFalse())
	})
})

var _ = Describe("Loop", func() {
	It("should tick a simulated clock until the scheduler is idle", func() {
		clk := clock.NewManual()
		sched := NewScheduler()
		ticks, after := 0, 0
		sched.Schedule(WithTimeout(Run(func() {}), clk, time.Second))

		loop := &Loop{
			Scheduler:  sched,
			Period:     20 * time.Millisecond,
			Sim:        clk,
			BeforeTick: func() { ticks++ },
			AfterTick:  func() { after++ },
		}
		Expect(loop.Run(context.Background())).To(Succeed())
		Expect(ticks).To(Equal(50))
		Expect(after).To(Equal(50))
		Expect(clk.Now()).To(Equal(time.Second))
	})

	It("should interrupt everything when the context ends", func() {
		clk := clock.NewManual()
		sched := NewScheduler()
		interrupted := false
		sched.Schedule(NewFunctional(nil, nil, func(i bool) { interrupted = i }, nil))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		loop := &Loop{Scheduler: sched, Period: time.Millisecond, Sim: clk}

		Expect(loop.Run(ctx)).To(MatchError(context.Canceled))
		Expect(interrupted).To(BeTrue())
		Expect(sched.Len()).To(Equal(0))
	})
})
