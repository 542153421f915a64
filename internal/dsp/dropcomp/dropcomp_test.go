package dropcomp

import (
	"context"
	"testing"

	"github.com/mmarinov/tsdrgo/internal/ringbuffer"
)

func TestShiftNegativeOffsetRealignsToBlock(t *testing.T) {
	c := New()
	c.Shift(1920, -4321)
	if c.Pending() != 481 {
		t.Fatalf("Pending() = %d, want 481", c.Pending())
	}
}

func TestShiftPositiveOffset(t *testing.T) {
	c := New()
	c.Shift(1920, 4321)
	if c.Pending() < 0 || c.Pending() >= 1920 {
		t.Fatalf("Pending() = %d, want in [0, 1920)", c.Pending())
	}
}

func TestWillDropAll(t *testing.T) {
	c := New()
	c.Shift(100, -50) // leaves some positive pending difference
	if c.Pending() == 0 {
		t.Skip("pending happened to be zero")
	}
	if !c.WillDropAll(int(c.Pending()), 100) {
		t.Fatal("WillDropAll should be true when n equals pending difference")
	}
	if c.WillDropAll(int(c.Pending())+1000, 100) {
		t.Fatal("WillDropAll should be false once n exceeds the pending difference")
	}
}

func TestAddDropsPendingPrefix(t *testing.T) {
	c := New()
	c.Shift(4, -2) // produce a small positive pending difference
	pending := int(c.Pending())
	if pending == 0 {
		t.Skip("pending happened to be zero")
	}

	rb := ringbuffer.New(4)
	data := make([]float32, pending+10)
	for i := range data {
		data[i] = float32(i)
	}

	if s := c.Add(context.Background(), rb, data, 4); s != ringbuffer.StatusOK {
		t.Fatalf("Add = %v, want OK", s)
	}
	if c.Pending() != 0 {
		t.Fatalf("Pending() after Add = %d, want 0", c.Pending())
	}

	out := make([]float32, 10)
	if s := rb.RemoveNonBlocking(out); s != ringbuffer.StatusOK {
		t.Fatalf("RemoveNonBlocking = %v", s)
	}
	for i, v := range out {
		want := float32(pending + i)
		if v != want {
			t.Fatalf("out[%d] = %v, want %v", i, v, want)
		}
	}
}

func TestAddEntirelyAbsorbedByPending(t *testing.T) {
	c := New()
	c.Shift(10, -5) // pending difference of 5, larger than the next add
	pending := c.Pending()
	if pending < 3 {
		t.Fatalf("test setup expects pending >= 3, got %d", pending)
	}

	rb := ringbuffer.New(4)
	data := []float32{1, 2, 3}
	s := c.Add(context.Background(), rb, data, 10)
	if s != ringbuffer.StatusOK {
		t.Fatalf("Add = %v, want OK", s)
	}
	if c.Pending() != pending-int64(len(data)) {
		t.Fatalf("Pending() = %d, want %d", c.Pending(), pending-int64(len(data)))
	}
	if rb.Size() != 0 {
		t.Fatalf("rb.Size() = %d, want 0 (everything should have been dropped)", rb.Size())
	}
}
