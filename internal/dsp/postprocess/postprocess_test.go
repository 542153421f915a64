package postprocess

import (
	"testing"

	"github.com/mmarinov/tsdrgo/internal/notify"
	"github.com/mmarinov/tsdrgo/internal/syncdetect"
)

type captureSink struct {
	calls int
}

func (c *captureSink) ValueChanged(id notify.ValueID, a, b float64) { c.calls++ }
func (c *captureSink) PlotReady(id notify.PlotID, data []float64, length, offset int, sampleRate uint32) {
}

func TestProcessNormalizesIntoUnitRange(t *testing.T) {
	sink := &captureSink{}
	p := NewProcessor(sink, syncdetect.New())

	const w, h = 4, 4
	frame := make([]float32, w*h)
	for i := range frame {
		frame[i] = float32(i)
	}

	out := p.Process(frame, w, h, 0.5, 1.0, false, false)
	if len(out) != w*h {
		t.Fatalf("len(out) = %d, want %d", len(out), w*h)
	}
	for _, v := range out {
		if v < -0.01 || v > 1.01 {
			t.Fatalf("normalized value out of range: %v", v)
		}
	}
}

func TestProcessReportsGainPeriodically(t *testing.T) {
	sink := &captureSink{}
	p := NewProcessor(sink, syncdetect.New())

	const w, h = 2, 2
	frame := []float32{1, 2, 3, 4}

	for i := 0; i < autogainReportEveryFrames+2; i++ {
		p.Process(frame, w, h, 0.1, 1.0, false, false)
	}
	if sink.calls == 0 {
		t.Fatal("expected at least one gain report after several frames")
	}
}

func TestProcessHandlesResize(t *testing.T) {
	sink := &captureSink{}
	p := NewProcessor(sink, syncdetect.New())

	p.Process(make([]float32, 4), 2, 2, 0.2, 1.0, true, false)
	out := p.Process(make([]float32, 9), 3, 3, 0.2, 1.0, true, false)
	if len(out) != 9 {
		t.Fatalf("len(out) = %d, want 9 after resize", len(out))
	}
}

func TestAutogainRunSkipsSpecialPixels(t *testing.T) {
	var a autogain
	screen := []float32{0, 100, 300, 50} // 300 is a special-pixel sentinel (>250)
	send := make([]float32, len(screen))

	a.run(screen, send, 1.0, true) // norm=1 snaps lastMin/lastMax straight to this frame

	if a.lastMin != 0 || a.lastMax != 100 {
		t.Fatalf("min/max should ignore sentinel: got min=%v max=%v", a.lastMin, a.lastMax)
	}
	if send[2] != 300 {
		t.Fatalf("sentinel pixel should pass through unnormalized, got %v", send[2])
	}
	if send[1] != 1.0 {
		t.Fatalf("in-range pixel should normalize against sentinel-free span, got %v", send[1])
	}
}

func TestAutogainRunIncludesSpecialPixelsWhenDisabled(t *testing.T) {
	var a autogain
	screen := []float32{0, 100, 300, 50}
	send := make([]float32, len(screen))

	a.run(screen, send, 1.0, false)

	if a.lastMax != 300 {
		t.Fatalf("max should include sentinel when special pixels disabled, got %v", a.lastMax)
	}
	if send[2] != 1.0 {
		t.Fatalf("sentinel should normalize like any other pixel when disabled, got %v", send[2])
	}
}

func TestProcessPassesThroughSpecialPixelsEndToEnd(t *testing.T) {
	sink := &captureSink{}
	p := NewProcessor(sink, syncdetect.New())
	p.SetSpecialPixels(true)

	const w, h = 2, 2
	frame := []float32{0, 100, 300, 50}

	out := p.Process(frame, w, h, 0, 1.0, false, true)
	found := false
	for _, v := range out {
		if v == 300 {
			found = true
		}
	}
	if !found {
		t.Fatalf("sentinel pixel should survive end-to-end unnormalized (sync may reorder it), got %v", out)
	}
}

func TestProcessLowpassBeforeSyncToggleClearsState(t *testing.T) {
	sink := &captureSink{}
	p := NewProcessor(sink, syncdetect.New())

	frame := []float32{1, 2, 3, 4}
	p.Process(frame, 2, 2, 0.5, 1.0, false, false)
	out := p.Process(frame, 2, 2, 0.5, 1.0, true, false)
	if len(out) != 4 {
		t.Fatalf("len(out) = %d, want 4", len(out))
	}
}
