// Package extbuffer provides a resizable scratch buffer for DSP stages that
// need to reuse a backing slice across frames instead of reallocating every
// call. It grows to fit a requested size and only shrinks when the request
// drops to less than half the current capacity, avoiding allocation churn
// when frame size oscillates by a sample or two.
package extbuffer

import (
	"fmt"
	"io"
)

// Number is the set of element types a Buffer can hold.
type Number interface {
	~float32 | ~float64
}

// Buffer is a reusable slice with hysteresis reallocation, modeled on the
// original extbuffer_t container (one malloc/realloc, not one per call).
type Buffer[T Number] struct {
	data         []T
	validLen     int
	clearPending bool
	calls        int
	valid        bool
}

// New returns an empty, not-yet-prepared buffer. Call Prepare before use.
func New[T Number]() *Buffer[T] {
	return &Buffer[T]{clearPending: true}
}

// Prepare ensures the buffer holds at least size elements, reallocating only
// when growing past capacity or shrinking to less than half of it. The
// first Prepare after construction, or any call following ClearToZero,
// zeroes the whole slice.
func (b *Buffer[T]) Prepare(size int) {
	if size <= 0 {
		panic("extbuffer: size must be positive")
	}

	if cap(b.data) < size || cap(b.data) > size*2 {
		b.data = make([]T, size)
		b.valid = true
	} else {
		b.data = b.data[:size]
	}

	b.validLen = size
	if b.clearPending {
		for i := range b.data {
			b.data[i] = 0
		}
		b.clearPending = false
		b.calls = 0
	}
	b.calls++
}

// ClearToZero marks the buffer so the next Prepare call zeroes its content.
func (b *Buffer[T]) ClearToZero() {
	b.clearPending = true
}

// Slice returns the currently valid elements. The backing array is reused
// by the next Prepare call; callers that need to retain data must copy it.
func (b *Buffer[T]) Slice() []T {
	return b.data[:b.validLen]
}

// Len reports the number of currently valid elements.
func (b *Buffer[T]) Len() int {
	return b.validLen
}

// Calls reports how many Prepare calls have happened since the last
// ClearToZero, mirroring the original's diagnostic counter.
func (b *Buffer[T]) Calls() int {
	return b.calls
}

// Free drops the backing slice. The Buffer is unusable afterwards except
// through a fresh Prepare, which will reallocate.
func (b *Buffer[T]) Free() {
	b.data = nil
	b.validLen = 0
	b.valid = false
}

// DumpCSV writes the buffer as "xname, yname" rows, with the x column
// running from offset to offset+Len()-1, matching extbuffer_dumptofile's
// on-disk shape for the autocorrelation/diagnostic dumps.
func (b *Buffer[T]) DumpCSV(w io.Writer, offset int, xname, yname string) error {
	if !b.valid {
		return fmt.Errorf("extbuffer: dump of unprepared buffer")
	}
	if _, err := fmt.Fprintf(w, "%s, %s\n", xname, yname); err != nil {
		return err
	}
	for i, v := range b.Slice() {
		if _, err := fmt.Fprintf(w, "%d, %f\n", offset+i, v); err != nil {
			return err
		}
	}
	return nil
}
