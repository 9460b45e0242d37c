package command

import (
	"context"
	"time"

	"github.com/san-kum/sysid/internal/clock"
)

// Loop ticks a Scheduler at a fixed period until no commands remain or the
// context ends. Ending the context interrupts every scheduled command before
// Run returns.
type Loop struct {
	Scheduler *Scheduler
	Period    time.Duration
	// Sim, when set, is advanced by Period before each tick and the loop does
	// not wait on the wall clock.
	Sim *clock.Manual
	// BeforeTick runs ahead of each scheduler pass, AfterTick after it.
	BeforeTick func()
	AfterTick  func()
}

func (l *Loop) Run(ctx context.Context) error {
	if l.Sim != nil {
		return l.runSimulated(ctx)
	}

	ticker := time.NewTicker(l.Period)
	defer ticker.Stop()

	for l.Scheduler.Len() > 0 {
		select {
		case <-ctx.Done():
			l.Scheduler.CancelAll()
			return ctx.Err()
		case <-ticker.C:
		}
		l.step()
	}
	return nil
}

func (l *Loop) runSimulated(ctx context.Context) error {
	for l.Scheduler.Len() > 0 {
		select {
		case <-ctx.Done():
			l.Scheduler.CancelAll()
			return ctx.Err()
		default:
		}

		l.Sim.Advance(l.Period)
		l.step()
	}
	return nil
}

func (l *Loop) step() {
	if l.BeforeTick != nil {
		l.BeforeTick()
	}
	l.Scheduler.Run()
	if l.AfterTick != nil {
		l.AfterTick()
	}
}
