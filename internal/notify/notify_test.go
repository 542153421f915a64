package notify

import "testing"

type recordingSink struct {
	values []ValueID
	plots  []PlotID
}

func (r *recordingSink) ValueChanged(id ValueID, a, b float64) { r.values = append(r.values, id) }
func (r *recordingSink) PlotReady(id PlotID, data []float64, length, offset int, sampleRate uint32) {
	r.plots = append(r.plots, id)
}

func TestMultiFansOutToAllSinks(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	m := Multi{a, b}

	m.ValueChanged(ValueIDSNR, 1, 2)
	m.PlotReady(PlotIDFrame, nil, 0, 0, 0)

	for _, s := range []*recordingSink{a, b} {
		if len(s.values) != 1 || s.values[0] != ValueIDSNR {
			t.Fatalf("sink did not receive ValueChanged: %+v", s.values)
		}
		if len(s.plots) != 1 || s.plots[0] != PlotIDFrame {
			t.Fatalf("sink did not receive PlotReady: %+v", s.plots)
		}
	}
}

func TestLogSinkDoesNotPanic(t *testing.T) {
	s := NewLogSink(nil)
	s.ValueChanged(ValueIDAutogainMinMax, 0.1, 0.9)
	s.PlotReady(PlotIDLine, []float64{1, 2, 3}, 3, 0, 48000)
}
