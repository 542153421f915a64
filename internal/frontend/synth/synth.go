// Package synth provides a synthetic FrontEnd that generates a raster-like
// test pattern plus light noise, so the rest of the pipeline can be
// exercised and tested without real RF or audio hardware.
package synth

import (
	"context"
	"math"
	"math/rand"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/mmarinov/tsdrgo/internal/frontend"
)

// FrontEnd emits a synthetic I/Q stream whose envelope repeats at a fixed
// line rate, giving the frame-rate detector and post-
// processor something periodic to lock onto in tests and demos.
type FrontEnd struct {
	sampleRate  uint32
	centerFreq  uint32
	linesPerSec float64
	samplesLine int

	running atomic.Bool
	phase   uint64
	rng     *rand.Rand
}

// New returns a synthetic front end generating a 70 lines/sec pattern
// (inside the detector's [55,87]Hz search window); only the sample rate can
// be changed, not the pattern rate.
func New() frontend.FrontEnd {
	return &FrontEnd{
		sampleRate:  2_000_000,
		linesPerSec: 70,
		rng:         rand.New(rand.NewSource(1)),
	}
}

func (f *FrontEnd) Init(args string) error {
	parsed := frontend.ParseArgs(args)
	if rate, ok := parsed["rate"]; ok {
		if hz, err := strconv.ParseUint(rate, 10, 32); err == nil && hz > 0 {
			f.sampleRate = uint32(hz)
		}
	}
	f.samplesLine = int(float64(f.sampleRate) / f.linesPerSec)
	if f.samplesLine <= 0 {
		f.samplesLine = 1
	}
	return nil
}

func (f *FrontEnd) SetSampleRate(rate uint32) error {
	f.sampleRate = rate
	f.samplesLine = int(float64(f.sampleRate) / f.linesPerSec)
	if f.samplesLine <= 0 {
		f.samplesLine = 1
	}
	return nil
}

func (f *FrontEnd) SampleRate() uint32 { return f.sampleRate }

func (f *FrontEnd) SetCenterFreq(freq uint32) error {
	f.centerFreq = freq
	return nil
}

func (f *FrontEnd) SetGain(normalized float32) error { return nil }

// ReadAsync generates batches of synthetic I/Q on a ticking goroutine
// until ctx is canceled or Stop is called.
func (f *FrontEnd) ReadAsync(ctx context.Context, cb frontend.SampleCallback) error {
	f.running.Store(true)
	const batchSamples = 2048

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	iq := make([]float32, batchSamples*2)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !f.running.Load() {
				return nil
			}
			f.fill(iq)
			cb(iq, 0)
		}
	}
}

func (f *FrontEnd) fill(iq []float32) {
	if f.samplesLine <= 0 {
		f.samplesLine = 1
	}
	n := len(iq) / 2
	for i := 0; i < n; i++ {
		pos := atomic.AddUint64(&f.phase, 1) - 1
		within := int(pos) % f.samplesLine
		envelope := float32(within) / float32(f.samplesLine)
		noise := float32(f.rng.NormFloat64()) * 0.02

		iq[2*i] = envelope + noise
		iq[2*i+1] = float32(math.Sin(2*math.Pi*float64(within)/float64(f.samplesLine))) * 0.5
	}
}

func (f *FrontEnd) Stop() {
	f.running.Store(false)
}

func (f *FrontEnd) Close() error {
	f.Stop()
	return nil
}

func (f *FrontEnd) LastError() string { return "" }
