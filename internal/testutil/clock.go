package testutil

import (
	"sync"
	"time"
)

// Epoch is the fixed starting instant used by deterministic test clocks.
var Epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// DeterministicClock is a wall clock that advances by a fixed step on every
// call to Now, starting at a known instant.
//
// Unlike the system clock, two runs of the same scenario observe identical
// timestamps, which keeps ledgers and golden files byte-for-byte stable.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	ticks int64
}

// NewDeterministicClock creates a clock starting at Epoch that advances one
// second per call.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(Epoch, time.Second)
}

// NewDeterministicClockAt creates a clock starting at start advancing step per call.
// A zero step yields a frozen clock.
func NewDeterministicClockAt(start time.Time, step time.Duration) *DeterministicClock {
	return &DeterministicClock{start: start.UTC(), step: step}
}

// Now returns the current instant and advances the clock.
//
// The first call returns the start instant.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.start.Add(time.Duration(c.ticks) * c.step)
	c.ticks++
	return now
}

// Ticks returns how many times Now has been called.
func (c *DeterministicClock) Ticks() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// Reset rewinds the clock to its start instant.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
