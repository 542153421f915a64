package resample

import (
	"testing"

	"github.com/mmarinov/tsdrgo/internal/dsp/extbuffer"
)

func TestNearestNeighbourFourToTen(t *testing.T) {
	r := New()
	var out extbuffer.Buffer[float32]
	in := []float32{0, 1, 2, 3}

	got := r.Process(in, &out, 10, 4, true)
	if len(got) != 10 {
		t.Fatalf("len(got) = %d, want 10", len(got))
	}
	want := []float32{0, 0, 0, 1, 1, 2, 2, 2, 3, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d] = %v, want %v (full=%v)", i, got[i], want[i], got)
		}
	}
}

func TestLinearPreservesSampleCountForUnityRate(t *testing.T) {
	r := New()
	var out extbuffer.Buffer[float32]
	in := make([]float32, 100)
	for i := range in {
		in[i] = float32(i)
	}

	got := r.Process(in, &out, 1, 1, false)
	if len(got) != 100 {
		t.Fatalf("len(got) = %d, want 100", len(got))
	}
}

func TestResetClearsContribAndOffset(t *testing.T) {
	r := New()
	var out extbuffer.Buffer[float32]
	r.Process([]float32{1, 2, 3}, &out, 3, 2, false)
	if r.contrib == 0 && r.offset == 0 {
		t.Skip("state happened to be zero already; not a useful check")
	}
	r.Reset()
	if r.contrib != 0 || r.offset != 0 {
		t.Fatalf("Reset left contrib=%v offset=%v", r.contrib, r.offset)
	}
}

func TestModeSwitchResetsState(t *testing.T) {
	r := New()
	var out extbuffer.Buffer[float32]
	r.Process([]float32{1, 2, 3, 4, 5}, &out, 7, 3, false)
	r.Process([]float32{1, 2, 3, 4, 5}, &out, 7, 3, true)
	if r.contrib != 0 {
		t.Fatalf("switching to nearest-neighbour should reset contrib, got %v", r.contrib)
	}
}

func TestContinuityAcrossChunks(t *testing.T) {
	r := New()
	var out extbuffer.Buffer[float32]
	total := 0
	for i := 0; i < 20; i++ {
		chunk := make([]float32, 7)
		for j := range chunk {
			chunk[j] = float32(i*7 + j)
		}
		got := r.Process(chunk, &out, 11, 7, false)
		total += len(got)
	}
	// Over many chunks at an 11/7 rate, total output should track input
	// closely (within a couple of samples of rounding slop).
	expected := 20 * 7 * 11 / 7
	if diff := total - expected; diff < -5 || diff > 5 {
		t.Fatalf("total output samples = %d, want near %d", total, expected)
	}
}
