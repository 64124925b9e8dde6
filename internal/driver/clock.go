package driver

import "sync/atomic"

// Clock stamps journal records with a logical sequence number.
type Clock interface {
	Next() int64
	Current() int64
}

// AtomicClock is a monotonic logical clock. Every finished compilation
// takes the next value, so journal order matches completion order.
//
// Thread-safety: AtomicClock is safe for concurrent use.
type AtomicClock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *AtomicClock {
	return &AtomicClock{}
}

// NewClockAt creates a clock that continues after start, e.g. the last
// sequence number found in an existing journal.
func NewClockAt(start int64) *AtomicClock {
	c := &AtomicClock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *AtomicClock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last sequence number handed out.
func (c *AtomicClock) Current() int64 {
	return c.seq.Load()
}
