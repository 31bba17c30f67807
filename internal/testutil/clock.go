package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a thread-safe stepping clock for tests.
//
// Every call to Now returns the base time advanced by one more step, so the
// started/finished timestamps of a suite are reproducible across runs.
type DeterministicClock struct {
	mu   sync.Mutex
	base time.Time
	step time.Duration
	seq  int64
}

// DefaultBase is the instant returned by the first call to Now on a clock
// created with NewDeterministicClock.
var DefaultBase = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// NewDeterministicClock creates a clock starting at DefaultBase that advances
// one second per call.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{base: DefaultBase, step: time.Second}
}

// Now returns the current instant and advances the clock by one step.
//
// The first call returns the base time.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.base.Add(time.Duration(c.seq) * c.step)
	c.seq++
	return t
}

// Calls returns how many times Now has been called.
func (c *DeterministicClock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock so the next call to Now returns the base time again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
