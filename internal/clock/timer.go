package clock

import "time"

// Timer accumulates elapsed time while running. The zero value is not usable;
// create one with NewTimer.
type Timer struct {
	clk         Clock
	startTime   time.Duration
	accumulated time.Duration
	running     bool
}

func NewTimer(clk Clock) *Timer {
	return &Timer{clk: clk}
}

// Elapsed returns the accumulated running time.
func (t *Timer) Elapsed() time.Duration {
	if t.running {
		return t.accumulated + (t.clk.Now() - t.startTime)
	}
	return t.accumulated
}

// Reset clears the accumulated time. A running timer keeps running from zero.
func (t *Timer) Reset() {
	t.accumulated = 0
	t.startTime = t.clk.Now()
}

// Start begins accumulating. Starting a running timer has no effect.
func (t *Timer) Start() {
	if t.running {
		return
	}
	t.startTime = t.clk.Now()
	t.running = true
}

// Restart resets and starts the timer.
func (t *Timer) Restart() {
	t.Reset()
	t.Start()
}

// Stop freezes the accumulated time.
func (t *Timer) Stop() {
	t.accumulated = t.Elapsed()
	t.running = false
}

func (t *Timer) IsRunning() bool { return t.running }

// HasElapsed reports whether at least d has accumulated.
func (t *Timer) HasElapsed(d time.Duration) bool {
	return t.Elapsed() >= d
}
