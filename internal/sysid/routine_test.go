package sysid

import (
	"errors"
	"io"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/san-kum/sysid/internal/clock"
	"github.com/san-kum/sysid/internal/command"
	"github.com/san-kum/sysid/internal/datalog"
	"github.com/san-kum/sysid/internal/units"
)

const period = 20 * time.Millisecond

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// bench instruments every callback of a mechanism and records call order.
type bench struct {
	clk        *clock.Manual
	calls      []string
	drives     []units.Voltage
	driveTimes []time.Duration
	phases     []Phase
	phaseTimes []time.Duration
}

func (b *bench) drive(v units.Voltage) {
	b.calls = append(b.calls, "drive")
	b.drives = append(b.drives, v)
	b.driveTimes = append(b.driveTimes, b.clk.Now())
}

func (b *bench) log(*RoutineLog) { b.calls = append(b.calls, "log") }

func (b *bench) record(p Phase) {
	b.calls = append(b.calls, "state")
	b.phases = append(b.phases, p)
	b.phaseTimes = append(b.phaseTimes, b.clk.Now())
}

func (b *bench) count(p Phase) int {
	n := 0
	for _, q := range b.phases {
		if q == p {
			n++
		}
	}
	return n
}

func (b *bench) lastDrive() units.Voltage { return b.drives[len(b.drives)-1] }
func (b *bench) lastPhase() Phase         { return b.phases[len(b.phases)-1] }

// tick advances the clock one period and runs the scheduler, n times or until
// the scheduler is idle.
func tick(clk *clock.Manual, sched *command.Scheduler, n int) {
	for i := 0; i < n && sched.Len() > 0; i++ {
		clk.Advance(period)
		sched.Run()
	}
}

var _ = Describe("Routine", func() {
	var (
		clk      *clock.Manual
		sched    *command.Scheduler
		elevator *command.SubsystemBase
		b        *bench
	)

	newRoutine := func(opts ...ConfigOption) *Routine {
		mech, err := NewMechanism(b.drive, b.log, elevator, "")
		Expect(err).NotTo(HaveOccurred())
		opts = append(opts, WithRecordState(b.record))
		return New(NewConfig(opts...), mech, nil, clk, WithLogger(quietLogger))
	}

	BeforeEach(func() {
		clk = clock.NewManual()
		sched = command.NewScheduler(command.WithLogger(quietLogger))
		elevator = command.NewSubsystem("Elevator")
		b = &bench{clk: clk}
	})

	Context("quasistatic", func() {
		It("should ramp at the configured rate and stop at the timeout", func() {
			r := newRoutine(WithRampRate(units.VoltsPerSecond(2)), WithTimeout(3*time.Second))
			sched.Schedule(r.Quasistatic(Forward))
			tick(clk, sched, 1000)

			Expect(sched.Len()).To(Equal(0))
			Expect(clk.Now()).To(Equal(3 * time.Second))

			active := b.drives[:len(b.drives)-1]
			Expect(active).NotTo(BeEmpty())
			for i, v := range active {
				expected := 2 * b.driveTimes[i].Seconds()
				Expect(v.Volts()).To(BeNumerically("~", expected, 1e-9))
				Expect(b.driveTimes[i]).To(BeNumerically("<", 3*time.Second))
			}

			at := -1
			for i, t := range b.driveTimes {
				if t == 1500*time.Millisecond {
					at = i
				}
			}
			Expect(at).NotTo(Equal(-1))
			Expect(b.drives[at].Volts()).To(BeNumerically("~", 3.0, 1e-9))

			Expect(b.lastDrive()).To(Equal(units.Voltage(0)))
			Expect(b.lastPhase()).To(Equal(None))
			Expect(b.count(None)).To(Equal(1))
			Expect(b.phaseTimes[len(b.phaseTimes)-1]).To(Equal(3 * time.Second))
		})

		It("should ramp negatively in reverse", func() {
			r := newRoutine()
			sched.Schedule(r.Quasistatic(Reverse))
			tick(clk, sched, 50)

			for i, v := range b.drives {
				Expect(v.Volts()).To(BeNumerically("~", -b.driveTimes[i].Seconds(), 1e-9))
			}
			Expect(b.phases).To(HaveEach(QuasistaticReverse))
		})

		It("should restart the ramp from zero when rescheduled", func() {
			r := newRoutine(WithTimeout(200 * time.Millisecond))
			cmd := r.Quasistatic(Forward)

			sched.Schedule(cmd)
			tick(clk, sched, 100)
			first := len(b.drives)

			start := clk.Now()
			sched.Schedule(cmd)
			tick(clk, sched, 100)

			restarted := b.drives[first]
			elapsed := b.driveTimes[first] - start
			Expect(restarted.Volts()).To(BeNumerically("~", elapsed.Seconds(), 1e-9))
			Expect(b.count(None)).To(Equal(2))
		})
	})

	Context("dynamic", func() {
		It("should hold the step voltage and zero the drive on interruption", func() {
			r := newRoutine(WithStepVoltage(units.Volts(5)))
			cmd := r.Dynamic(Reverse)
			sched.Schedule(cmd)
			tick(clk, sched, 25)

			Expect(b.drives).To(HaveEach(units.Volts(-5)))
			Expect(b.phases).To(HaveEach(DynamicReverse))

			sched.Cancel(cmd)

			Expect(b.lastDrive()).To(Equal(units.Voltage(0)))
			Expect(b.lastPhase()).To(Equal(None))
			Expect(b.count(None)).To(Equal(1))

			tick(clk, sched, 10)
			Expect(b.lastPhase()).To(Equal(None))
		})

		It("should use the default step voltage", func() {
			r := newRoutine()
			sched.Schedule(r.Dynamic(Forward))
			tick(clk, sched, 5)
			Expect(b.drives).To(HaveEach(units.Volts(7)))
			Expect(r.Output()).To(Equal(units.Volts(7)))
		})

		It("should time out", func() {
			r := newRoutine(WithTimeout(time.Second))
			sched.Schedule(r.Dynamic(Forward))
			tick(clk, sched, 1000)

			Expect(clk.Now()).To(Equal(time.Second))
			Expect(b.lastDrive()).To(Equal(units.Voltage(0)))
			Expect(b.count(None)).To(Equal(1))
		})
	})

	It("should drive, log, then record state on every tick", func() {
		r := newRoutine(WithTimeout(200 * time.Millisecond))
		sched.Schedule(r.Quasistatic(Forward))
		tick(clk, sched, 100)

		exit := b.calls[len(b.calls)-2:]
		Expect(exit).To(Equal([]string{"drive", "state"}))

		active := b.calls[:len(b.calls)-2]
		Expect(len(active) % 3).To(Equal(0))
		for i := 0; i < len(active); i += 3 {
			Expect(active[i : i+3]).To(Equal([]string{"drive", "log", "state"}))
		}
	})

	It("should produce identical ramps from independent routines", func() {
		run := func() []units.Voltage {
			clk = clock.NewManual()
			sched = command.NewScheduler(command.WithLogger(quietLogger))
			b = &bench{clk: clk}
			r := newRoutine(WithRampRate(units.VoltsPerSecond(1.5)), WithTimeout(time.Second))
			sched.Schedule(r.Quasistatic(Forward))
			tick(clk, sched, 100)
			return b.drives
		}

		Expect(run()).To(Equal(run()))
	})

	It("should interrupt a running test when another claims the mechanism", func() {
		r := newRoutine()
		sched.Schedule(r.Quasistatic(Forward))
		tick(clk, sched, 5)

		sched.Schedule(r.Dynamic(Forward))
		Expect(b.lastDrive()).To(Equal(units.Voltage(0)))
		Expect(b.lastPhase()).To(Equal(None))

		tick(clk, sched, 3)
		Expect(b.lastPhase()).To(Equal(DynamicForward))
		Expect(b.lastDrive()).To(Equal(units.Volts(7)))
	})

	It("should zero the drive when the drive callback panics mid-test", func() {
		failed := false
		mech, err := NewMechanism(func(v units.Voltage) {
			b.drive(v)
			if v != 0 && !failed {
				failed = true
				panic("motor controller fault")
			}
		}, b.log, elevator, "")
		Expect(err).NotTo(HaveOccurred())
		r := New(NewConfig(WithRecordState(b.record)), mech, nil, clk, WithLogger(quietLogger))

		sched.Schedule(r.Dynamic(Forward))
		clk.Advance(period)
		sched.Run()
		clk.Advance(period)
		Expect(func() { sched.Run() }).To(PanicWith("motor controller fault"))

		Expect(b.lastDrive()).To(Equal(units.Voltage(0)))
		Expect(b.phases).To(Equal([]Phase{None}))
		Expect(sched.Len()).To(Equal(0))
	})

	It("should survive a panicking state recorder", func() {
		mech, err := NewMechanism(b.drive, nil, elevator, "")
		Expect(err).NotTo(HaveOccurred())
		r := New(NewConfig(
			WithTimeout(100*time.Millisecond),
			WithRecordState(func(Phase) { panic("recorder down") }),
		), mech, nil, clk, WithLogger(quietLogger))

		sched.Schedule(r.Quasistatic(Forward))
		Expect(func() { tick(clk, sched, 100) }).NotTo(Panic())
		Expect(b.lastDrive()).To(Equal(units.Voltage(0)))
	})

	It("should panic on an unmapped direction", func() {
		r := newRoutine()
		Expect(func() { r.Quasistatic(Direction(7)) }).To(Panic())
		Expect(func() { r.Dynamic(Direction(-1)) }).To(Panic())
	})

	It("should name commands after the phase and mechanism", func() {
		r := newRoutine()
		Expect(r.Quasistatic(Forward).Name()).To(Equal("sysid-quasistatic-forward-Elevator"))
		Expect(r.Dynamic(Reverse).Name()).To(Equal("sysid-dynamic-reverse-Elevator"))
		Expect(r.Quasistatic(Forward).Requirements()).To(ConsistOf(elevator))
	})

	It("should run all four tests in order", func() {
		r := newRoutine(WithTimeout(100 * time.Millisecond))
		sched.Schedule(r.All(40 * time.Millisecond))
		tick(clk, sched, 1000)

		Expect(sched.Len()).To(Equal(0))
		var order []Phase
		for _, p := range b.phases {
			if len(order) == 0 || order[len(order)-1] != p {
				order = append(order, p)
			}
		}
		Expect(order).To(Equal([]Phase{
			QuasistaticForward, None,
			QuasistaticReverse, None,
			DynamicForward, None,
			DynamicReverse, None,
		}))
		Expect(b.count(None)).To(Equal(4))
		Expect(r.All(0).Name()).To(Equal("sysid-all-Elevator"))
	})

	It("should run a selected suite in the given order", func() {
		r := newRoutine(WithTimeout(60 * time.Millisecond))
		suite, err := r.Suite(0, DynamicReverse, QuasistaticForward)
		Expect(err).NotTo(HaveOccurred())
		sched.Schedule(suite)
		tick(clk, sched, 1000)

		Expect(b.phases[0]).To(Equal(DynamicReverse))
		Expect(b.lastPhase()).To(Equal(None))
		Expect(b.count(None)).To(Equal(2))
		Expect(b.count(QuasistaticForward)).To(BeNumerically(">", 0))
	})

	It("should reject None as a test", func() {
		r := newRoutine()
		_, err := r.Test(None)
		Expect(err).To(HaveOccurred())
		_, err = r.Suite(0, QuasistaticForward, None)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Default state recording", func() {
	var (
		mockCtrl *gomock.Controller
		mockLog  *MockLog
		clk      *clock.Manual
		sched    *command.Scheduler
		entries  []datalog.Entry
		drives   []units.Voltage
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		mockLog = NewMockLog(mockCtrl)
		clk = clock.NewManual()
		sched = command.NewScheduler(command.WithLogger(quietLogger))
		entries = nil
		drives = nil
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	newRoutine := func() *Routine {
		mech, err := NewMechanism(
			func(v units.Voltage) { drives = append(drives, v) },
			func(l *RoutineLog) { l.RecordFrame("motor", units.Volts(1), 0.5, 2) },
			command.NewSubsystem("Elevator"), "")
		Expect(err).NotTo(HaveOccurred())
		return New(NewConfig(WithTimeout(100*time.Millisecond)), mech, mockLog, clk, WithLogger(quietLogger))
	}

	It("should append state and frames under the mechanism keys", func() {
		mockLog.EXPECT().Append(gomock.Any()).
			DoAndReturn(func(e datalog.Entry) error {
				entries = append(entries, e)
				return nil
			}).AnyTimes()

		sched.Schedule(newRoutine().Quasistatic(Forward))
		tick(clk, sched, 100)

		var states []string
		keys := map[string]bool{}
		for _, e := range entries {
			keys[e.Key] = true
			if e.Key == "sysid-test-state-Elevator" {
				states = append(states, e.Str)
			}
		}

		Expect(keys).To(HaveKey("voltage-motor-Elevator"))
		Expect(keys).To(HaveKey("position-motor-Elevator"))
		Expect(keys).To(HaveKey("velocity-motor-Elevator"))
		Expect(states).NotTo(BeEmpty())
		Expect(states[:len(states)-1]).To(HaveEach("quasistatic-forward"))
		Expect(states[len(states)-1]).To(Equal("none"))
	})

	It("should zero the drive even when the log rejects every entry", func() {
		mockLog.EXPECT().Append(gomock.Any()).Return(errors.New("disk full")).MinTimes(1)

		sched.Schedule(newRoutine().Dynamic(Forward))
		tick(clk, sched, 100)

		Expect(sched.Len()).To(Equal(0))
		Expect(drives[len(drives)-1]).To(Equal(units.Voltage(0)))
	})

	It("should not touch the log for state when an external recorder is set", func() {
		var phases []Phase
		mech, err := NewMechanism(func(units.Voltage) {}, nil, command.NewSubsystem("Elevator"), "")
		Expect(err).NotTo(HaveOccurred())
		r := New(NewConfig(
			WithTimeout(100*time.Millisecond),
			WithRecordState(func(p Phase) { phases = append(phases, p) }),
		), mech, mockLog, clk, WithLogger(quietLogger))

		mockLog.EXPECT().Append(gomock.Any()).Times(0)

		sched.Schedule(r.Dynamic(Forward))
		tick(clk, sched, 100)
		Expect(phases[len(phases)-1]).To(Equal(None))
	})
})
