// Package clock provides time sources for tick-driven control loops.
//
// A [Clock] reports monotonic time since an arbitrary epoch. [Wall] follows
// the host's monotonic clock; [Manual] only moves when advanced, which makes
// tick sequences reproducible in simulation and tests. [Timer] measures
// elapsed time against any Clock.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Duration
}

// Wall is a Clock backed by the process monotonic clock.
type Wall struct {
	epoch time.Time
}

func NewWall() *Wall {
	return &Wall{epoch: time.Now()}
}

func (w *Wall) Now() time.Duration { return time.Since(w.epoch) }

// Manual is a Clock advanced explicitly by its owner.
type Manual struct {
	mu  sync.Mutex
	now time.Duration
}

func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d and returns the new time.
func (m *Manual) Advance(d time.Duration) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += d
	return m.now
}

// Set jumps the clock to t. Moving backwards is allowed.
func (m *Manual) Set(t time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}
