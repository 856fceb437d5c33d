package exchanges

import (
	"sync/atomic"
	"time"
)

// Clock supplies nonces and timestamps for one adapter instance. The time
// difference (local minus server) is subtracted from every reading.
type Clock struct {
	now  func() time.Time
	diff atomic.Int64
	last atomic.Int64
}

// NewClock returns a clock backed by now, or time.Now when nil.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Now returns the uncorrected local time.
func (c *Clock) Now() time.Time {
	return c.now()
}

// Milliseconds returns the corrected epoch milliseconds.
func (c *Clock) Milliseconds() int64 {
	return c.now().UnixMilli() - c.diff.Load()
}

// Seconds returns the corrected epoch seconds.
func (c *Clock) Seconds() int64 {
	return c.Milliseconds() / 1000
}

// Nonce returns corrected milliseconds, strictly increasing across calls.
func (c *Clock) Nonce() int64 {
	n := c.Milliseconds()
	for {
		last := c.last.Load()
		next := n
		if next <= last {
			next = last + 1
		}
		if c.last.CompareAndSwap(last, next) {
			return next
		}
	}
}

// SetTimeDifference stores the local-minus-server skew.
func (c *Clock) SetTimeDifference(d time.Duration) {
	c.diff.Store(d.Milliseconds())
}

// TimeDifference returns the stored skew.
func (c *Clock) TimeDifference() time.Duration {
	return time.Duration(c.diff.Load()) * time.Millisecond
}

// Skew computes the local-minus-server difference for a server timestamp.
func (c *Clock) Skew(server time.Time) time.Duration {
	return c.now().Sub(server).Truncate(time.Millisecond)
}
