// Package notify carries scalar and plot events out of the DSP stages
// without giving them a back-pointer into the host/orchestrator. The
// original C core called straight back into its owning tsdr_lib_t; Go
// components instead take a narrow notify.Sink at construction, the same
// way the teacher injects a context.Context or channel rather than holding
// a pointer to its caller.
package notify

import "log"

// ValueID identifies a scalar event reported through ValueChanged.
type ValueID int

const (
	ValueIDAutogainMinMax ValueID = iota
	ValueIDSNR
	ValueIDAutocorrFrameCount
	ValueIDReset
)

func (v ValueID) String() string {
	switch v {
	case ValueIDAutogainMinMax:
		return "autogain_minmax"
	case ValueIDSNR:
		return "snr"
	case ValueIDAutocorrFrameCount:
		return "autocorr_frame_count"
	case ValueIDReset:
		return "reset"
	default:
		return "unknown"
	}
}

// PlotID identifies which diagnostic plot PlotReady is reporting.
type PlotID int

const (
	PlotIDFrame PlotID = iota
	PlotIDLine
)

func (p PlotID) String() string {
	switch p {
	case PlotIDFrame:
		return "frame"
	case PlotIDLine:
		return "line"
	default:
		return "unknown"
	}
}

// Sink receives scalar and plot events from the post-processor, the
// frame-rate detector, and the super-bandwidth stitcher.
type Sink interface {
	ValueChanged(id ValueID, a, b float64)
	PlotReady(id PlotID, data []float64, length int, offset int, sampleRate uint32)
}

// LogSink is the default Sink: it logs everything through the standard
// library logger, the teacher's own choice of logging tool.
type LogSink struct {
	*log.Logger
}

// NewLogSink wraps the given logger, or the default one if nil.
func NewLogSink(l *log.Logger) *LogSink {
	if l == nil {
		l = log.Default()
	}
	return &LogSink{Logger: l}
}

func (s *LogSink) ValueChanged(id ValueID, a, b float64) {
	s.Printf("notify: %s changed a=%.4f b=%.4f", id, a, b)
}

func (s *LogSink) PlotReady(id PlotID, data []float64, length int, offset int, sampleRate uint32) {
	s.Printf("notify: plot %s ready length=%d offset=%d sampleRate=%d", id, length, offset, sampleRate)
}

// Multi fans events out to several sinks, e.g. a LogSink plus a UI sink.
type Multi []Sink

func (m Multi) ValueChanged(id ValueID, a, b float64) {
	for _, s := range m {
		s.ValueChanged(id, a, b)
	}
}

func (m Multi) PlotReady(id PlotID, data []float64, length int, offset int, sampleRate uint32) {
	for _, s := range m {
		s.PlotReady(id, data, length, offset, sampleRate)
	}
}
