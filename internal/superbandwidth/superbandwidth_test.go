package superbandwidth

import (
	"testing"
	"time"
)

type fakeFrontEnd struct {
	shifts []int64
	rates  []uint32
}

func (f *fakeFrontEnd) ShiftFrequency(hz int64)            { f.shifts = append(f.shifts, hz) }
func (f *fakeFrontEnd) SetSynthesizedSampleRate(rate uint32) { f.rates = append(f.rates, rate) }

func TestStateMachineCompletesFourHopCycle(t *testing.T) {
	front := &fakeFrontEnd{}
	s := NewStitcher(front)

	if s.State() != StateStopped {
		t.Fatalf("initial state = %v, want stopped", s.State())
	}

	// The align/stitch work for a completed gather cycle runs on the
	// background goroutine Start launches; Run itself never blocks for it.
	s.Start()
	defer s.Stop()

	iq := []float32{1, 2, 3, 4, 5, 6} // 3 complex samples per call
	const sampleRate = 10

	var out []float32
	ready := false
	deadline := time.Now().Add(2 * time.Second)
	for !ready && time.Now().Before(deadline) {
		out, ready = s.Run(iq, sampleRate, false)
		if !ready {
			time.Sleep(time.Millisecond)
		}
	}

	if !ready {
		t.Fatal("stitching cycle never completed")
	}
	if out == nil {
		t.Fatal("expected a non-nil stitched output on completion")
	}
	if len(front.shifts) != hopsToMake-1 {
		t.Fatalf("ShiftFrequency called %d times, want %d (one per hop transition)", len(front.shifts), hopsToMake-1)
	}
	if len(front.rates) != 1 {
		t.Fatalf("SetSynthesizedSampleRate called %d times, want 1", len(front.rates))
	}
	if front.rates[0] != hopsToMake*sampleRate {
		t.Fatalf("synthesized sample rate = %d, want %d", front.rates[0], hopsToMake*sampleRate)
	}

	// The state machine restarts gathering immediately after publishing.
	if s.State() != StateStarting && s.State() != StateGathering {
		t.Fatalf("state after ready = %v, want starting/gathering", s.State())
	}
}

func TestRunNeverBlocksOnGatherCompletion(t *testing.T) {
	front := &fakeFrontEnd{}
	s := NewStitcher(front)
	s.Start()
	defer s.Stop()

	iq := []float32{1, 2, 3, 4, 5, 6}
	const sampleRate = 10
	const callBudget = 20 * time.Millisecond

	// Every Run call, including the one that completes a gather cycle and
	// hands the stitch work to the background goroutine, must return
	// promptly: the sample callback is the producer and may never block
	// on the stitcher's FFT work.
	for i := 0; i < 500; i++ {
		start := time.Now()
		s.Run(iq, sampleRate, false)
		if elapsed := time.Since(start); elapsed > callBudget {
			t.Fatalf("Run call %d took %v, want under %v (producer callback must not block on stitching)", i, elapsed, callBudget)
		}
	}
}

func TestDroppedSampleResetsGatherProgress(t *testing.T) {
	front := &fakeFrontEnd{}
	s := NewStitcher(front)

	s.Run([]float32{1, 2, 3, 4}, 100, false) // moves to Gathering, accumulates some
	_, ready := s.Run([]float32{1, 2}, 100, true)
	if ready {
		t.Fatal("a dropped batch should never complete a cycle")
	}
	if s.samplesGathered != 0 {
		t.Fatalf("samplesGathered = %d, want 0 after a dropped batch", s.samplesGathered)
	}
}

func TestStopResetsFrontEnd(t *testing.T) {
	front := &fakeFrontEnd{}
	s := NewStitcher(front)
	s.Run([]float32{1, 2}, 100, false)
	s.Stop()
	if s.State() != StateStopped {
		t.Fatalf("state after Stop = %v, want stopped", s.State())
	}
	if len(front.shifts) == 0 || front.shifts[len(front.shifts)-1] != 0 {
		t.Fatal("Stop should re-center the front end to offset 0")
	}
}
