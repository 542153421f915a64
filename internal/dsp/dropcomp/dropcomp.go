// Package dropcomp keeps the number of samples handed to a ring buffer
// aligned to a block size even when the front end drops samples (a USB
// overrun, a scheduling hiccup). Rather than forwarding a ragged count that
// would desynchronize downstream framing, it discards just enough extra
// samples to land back on a block boundary, and remembers how much it still
// owes across calls.
package dropcomp

import (
	"context"

	"github.com/mmarinov/tsdrgo/internal/ringbuffer"
)

// Compensator tracks how many pending samples must still be discarded to
// keep writes aligned to a block size.
type Compensator struct {
	difference int64
}

// New returns a compensator with nothing pending.
func New() *Compensator {
	return &Compensator{}
}

// calcCompensation returns how many more samples must be dropped so that
// `dropped` samples become a multiple of block.
func calcCompensation(block int, dropped int64) int64 {
	if block <= 0 {
		return 0
	}
	frames := dropped / int64(block)
	return ((frames+1)*int64(block) - dropped) % int64(block)
}

// WillDropAll reports whether the next Add of n samples would be entirely
// absorbed by the pending difference (i.e. nothing would reach rb).
func (c *Compensator) WillDropAll(n int, block int) bool {
	return int64(n) <= c.difference
}

// Add forwards data to rb after discarding c.difference leading samples (or
// all of it, if data is shorter than the amount still owed). block is used
// only to re-align the pending difference if the ring buffer add fails.
func (c *Compensator) Add(ctx context.Context, rb *ringbuffer.Buffer, data []float32, block int) ringbuffer.Status {
	size := int64(len(data))

	if size <= c.difference {
		c.difference -= size
		return ringbuffer.StatusOK
	}

	toForward := data[c.difference:]
	status := rb.Add(toForward)
	if status == ringbuffer.StatusOK {
		c.difference = 0
		return status
	}

	c.difference -= size % int64(block)
	if c.difference < 0 {
		c.difference = calcCompensation(block, -c.difference)
	}
	return status
}

// Shift adjusts the pending difference by a frame/line synchronization
// offset, re-aligning it to block afterwards. A positive syncOffset means
// the detected sync point moved later in the stream; negative means earlier.
func (c *Compensator) Shift(block int, syncOffset int64) {
	if syncOffset >= 0 {
		c.difference -= syncOffset % int64(block)
	} else {
		c.difference -= int64(block) + syncOffset%int64(block)
	}
	if c.difference < 0 {
		c.difference = calcCompensation(block, -c.difference)
	}
}

// Pending returns the number of samples still owed for discarding, exposed
// for diagnostics and tests.
func (c *Compensator) Pending() int64 {
	return c.difference
}
