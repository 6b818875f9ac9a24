package testutil

import (
	"sync"
	"time"
)

// DefaultEpoch is the first time a SnapshotClock hands out.
var DefaultEpoch = time.Date(2021, 5, 7, 9, 59, 15, 0, time.UTC)

// DefaultStep is the distance between consecutive SnapshotClock times.
const DefaultStep = time.Hour

// SnapshotClock hands out strictly increasing generation times for test
// snapshots, so fixtures never collide on a timestamp.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SnapshotClock struct {
	mu    sync.Mutex
	epoch time.Time
	step  time.Duration
	n     int64
}

// NewSnapshotClock creates a clock starting at epoch and advancing by step.
// A zero epoch or a non-positive step falls back to the defaults.
//
// The first call to Next() returns epoch.
func NewSnapshotClock(epoch time.Time, step time.Duration) *SnapshotClock {
	if epoch.IsZero() {
		epoch = DefaultEpoch
	}
	if step <= 0 {
		step = DefaultStep
	}
	return &SnapshotClock{epoch: epoch.UTC(), step: step}
}

// Next returns the next time.
func (c *SnapshotClock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.at(c.n)
	c.n++
	return t
}

// Current returns the time last handed out, or the zero time before the
// first call to Next.
func (c *SnapshotClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == 0 {
		return time.Time{}
	}
	return c.at(c.n - 1)
}

// Between returns the instant halfway between the i-th and the next time.
// Useful to ask for a state strictly between two snapshots.
func (c *SnapshotClock) Between(i int) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at(int64(i)).Add(c.step / 2)
}

// Reset rewinds the clock. After Reset(), Next() returns the epoch again.
func (c *SnapshotClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}

func (c *SnapshotClock) at(n int64) time.Time {
	return c.epoch.Add(time.Duration(n) * c.step)
}
