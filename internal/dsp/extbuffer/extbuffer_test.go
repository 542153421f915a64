package extbuffer

import (
	"strings"
	"testing"
)

func TestPrepareZeroesOnFirstUse(t *testing.T) {
	b := New[float32]()
	b.Prepare(4)
	for i, v := range b.Slice() {
		if v != 0 {
			t.Fatalf("data[%d] = %v, want 0", i, v)
		}
	}
	if b.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", b.Len())
	}
}

func TestPrepareGrowsWithoutClearing(t *testing.T) {
	b := New[float32]()
	b.Prepare(4)
	s := b.Slice()
	for i := range s {
		s[i] = float32(i + 1)
	}

	b.Prepare(4) // same size: no reallocation, no clear
	s = b.Slice()
	for i, v := range s {
		want := float32(i + 1)
		if v != want {
			t.Fatalf("data[%d] = %v, want %v (should not have cleared)", i, v, want)
		}
	}
}

func TestPrepareShrinkHysteresis(t *testing.T) {
	b := New[float32]()
	b.Prepare(100)
	before := cap(b.Slice())

	b.Prepare(60) // 100 <= 60*2, stays within hysteresis band: no realloc
	if cap(b.Slice()) != before {
		t.Fatalf("cap changed from %d to %d within hysteresis band", before, cap(b.Slice()))
	}

	b.Prepare(10) // 100 > 10*2: must reallocate
	if cap(b.Slice()) == before {
		t.Fatalf("expected reallocation once size dropped below half capacity")
	}
}

func TestClearToZeroForcesClearOnNextPrepare(t *testing.T) {
	b := New[float64]()
	b.Prepare(3)
	s := b.Slice()
	s[0], s[1], s[2] = 1, 2, 3

	b.ClearToZero()
	b.Prepare(3)
	for i, v := range b.Slice() {
		if v != 0 {
			t.Fatalf("data[%d] = %v, want 0 after ClearToZero", i, v)
		}
	}
}

func TestDumpCSV(t *testing.T) {
	b := New[float32]()
	b.Prepare(3)
	s := b.Slice()
	s[0], s[1], s[2] = 1, 2, 3

	var sb strings.Builder
	if err := b.DumpCSV(&sb, 10, "x", "y"); err != nil {
		t.Fatalf("DumpCSV: %v", err)
	}
	want := "x, y\n10, 1.000000\n11, 2.000000\n12, 3.000000\n"
	if sb.String() != want {
		t.Fatalf("DumpCSV output = %q, want %q", sb.String(), want)
	}
}

func TestDumpCSVBeforePrepareFails(t *testing.T) {
	b := New[float32]()
	var sb strings.Builder
	if err := b.DumpCSV(&sb, 0, "x", "y"); err == nil {
		t.Fatal("expected error dumping an unprepared buffer")
	}
}
