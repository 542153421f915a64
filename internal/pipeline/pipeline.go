// Package pipeline wires the ring buffer, resampler, drop compensator, and
// post-processor into one capture session (A→D→F), running the frame-rate
// detector and super-bandwidth stitcher alongside it, the way
// cmd/assistant/main.go wires capture, STT, LLM, and TTS around channels
// and a context.Context.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mmarinov/tsdrgo/internal/dsp/dropcomp"
	"github.com/mmarinov/tsdrgo/internal/dsp/extbuffer"
	"github.com/mmarinov/tsdrgo/internal/dsp/postprocess"
	"github.com/mmarinov/tsdrgo/internal/dsp/resample"
	"github.com/mmarinov/tsdrgo/internal/framerate"
	"github.com/mmarinov/tsdrgo/internal/frontend"
	"github.com/mmarinov/tsdrgo/internal/notify"
	"github.com/mmarinov/tsdrgo/internal/ringbuffer"
	"github.com/mmarinov/tsdrgo/internal/superbandwidth"
	"github.com/mmarinov/tsdrgo/internal/syncdetect"
)

// Config holds the per-session DSP parameters a Pipeline runs with.
type Config struct {
	Width, Height int

	// Up/Down express the resample ratio from the front end's native
	// sample rate onto the pixel clock (e.g. Up=147, Down=125).
	Up, Down         int
	NearestNeighbour bool

	MotionBlur        float32
	LowpassCoeff      float32
	LowpassBeforeSync bool
	AutogainAfter     bool
	SpecialPixels     bool

	SuperBandwidth bool
	RefreshRateHz  uint32
	CenterFreq     int64

	RingMaxCoeff int
	BatchSize    int
}

func (c Config) withDefaults() Config {
	if c.RingMaxCoeff <= 0 {
		c.RingMaxCoeff = 8
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 4096
	}
	if c.Up <= 0 {
		c.Up = 1
	}
	if c.Down <= 0 {
		c.Down = 1
	}
	if c.RefreshRateHz == 0 {
		c.RefreshRateHz = 60
	}
	return c
}

// Pipeline runs one capture session end to end: front end → ring buffer →
// resample → post-process, publishing finished frames on a channel while
// the frame-rate detector and super-bandwidth stitcher run alongside it.
type Pipeline struct {
	id    uuid.UUID
	front frontend.FrontEnd
	cfg   Config
	sink  notify.Sink

	rb        *ringbuffer.Buffer
	drop      *dropcomp.Compensator
	resampler *resample.Resampler
	resampleB *extbuffer.Buffer[float32]
	post      *postprocess.Processor
	frameDet  *framerate.Detector
	superb    *superbandwidth.Stitcher
	shifter   *freqShifter

	pending []float32
	frames  chan []float32

	alive  atomic.Bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Pipeline over front, which must already be initialized
// (Init called) but not yet reading.
func New(front frontend.FrontEnd, cfg Config, sink notify.Sink) *Pipeline {
	if sink == nil {
		sink = notify.NewLogSink(nil)
	}
	cfg = cfg.withDefaults()

	shifter := &freqShifter{front: front, centerFreq: cfg.CenterFreq}

	p := &Pipeline{
		id:        uuid.New(),
		front:     front,
		cfg:       cfg,
		sink:      sink,
		rb:        ringbuffer.New(cfg.RingMaxCoeff),
		drop:      dropcomp.New(),
		resampler: resample.New(),
		resampleB: extbuffer.New[float32](),
		post:      postprocess.NewProcessor(sink, syncdetect.New()),
		frameDet:  framerate.NewDetector(sink),
		shifter:   shifter,
		frames:    make(chan []float32, 4),
	}
	p.superb = superbandwidth.NewStitcher(shifter)
	p.superb.SetRefreshRate(cfg.RefreshRateHz)
	p.post.SetSuperresolution(cfg.SuperBandwidth)
	p.post.SetSpecialPixels(cfg.SpecialPixels)
	return p
}

// ID returns the UUID stamped on this capture session; included in log
// lines so that concurrent sessions (common in tests) don't interleave
// confusingly.
func (p *Pipeline) ID() uuid.UUID { return p.id }

// Frames returns the channel of post-processed, display-ready frames, each
// exactly Width*Height samples long.
func (p *Pipeline) Frames() <-chan []float32 { return p.frames }

// SynthesizedSampleRate reports the rate most recently published by the
// super-bandwidth stitcher (0 if super-bandwidth is disabled or no hop
// cycle has completed yet).
func (p *Pipeline) SynthesizedSampleRate() uint32 {
	return uint32(p.shifter.synthRate.Load())
}

// Start begins capturing from the front end and running frames through the
// pipeline until ctx is canceled or Stop is called.
func (p *Pipeline) Start(ctx context.Context) error {
	if !p.alive.CompareAndSwap(false, true) {
		return fmt.Errorf("pipeline: session %s already started", p.id)
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.frameDet.Start()
	p.superb.Start()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.front.ReadAsync(runCtx, p.onSamples); err != nil {
			log.Printf("[%s] front end stopped: %v", p.id, err)
		}
	}()

	p.wg.Add(1)
	go p.consume(runCtx)

	log.Printf("[%s] pipeline started (%dx%d)", p.id, p.cfg.Width, p.cfg.Height)
	return nil
}

// onSamples is the front end's sample callback. Envelope detection (the
// AM-style magnitude of the captured I/Q pair) happens here: it is the
// physical-receiver-facing step the core DSP package deliberately stays
// out of, but a runnable pipeline needs a concrete version of it, so it
// lives at the boundary between the front end and everything downstream.
// The frame-rate detector always sees every raw batch; the super-bandwidth
// stitcher, when enabled, gates what reaches the ring buffer until a full
// hop cycle completes.
func (p *Pipeline) onSamples(iq []float32, dropped uint64) {
	rate := p.front.SampleRate()
	drop := dropped > 0

	p.frameDet.Feed(envelope(iq), rate, drop)

	data := iq
	if p.cfg.SuperBandwidth {
		out, ready := p.superb.Run(iq, rate, drop)
		if !ready {
			return
		}
		data = out
	}

	if status := p.drop.Add(context.Background(), p.rb, envelope(data), p.cfg.BatchSize); status != ringbuffer.StatusOK {
		log.Printf("[%s] ring buffer %s, dropping batch", p.id, status)
	}
}

// envelope converts interleaved I/Q pairs into their real-valued magnitude,
// the single-channel signal the resampler and post-processor operate on.
func envelope(iq []float32) []float32 {
	n := len(iq) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		re, im := iq[2*i], iq[2*i+1]
		out[i] = float32(math.Sqrt(float64(re)*float64(re) + float64(im)*float64(im)))
	}
	return out
}

// consume drains the ring buffer, resamples onto the pixel grid, accumulates
// resampled output until a full frame is available, and post-processes it.
func (p *Pipeline) consume(ctx context.Context) {
	defer p.wg.Done()

	sizeToPoll := p.cfg.Width * p.cfg.Height
	raw := make([]float32, p.cfg.BatchSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		status := p.rb.RemoveBlocking(ctx, raw, 250*time.Millisecond)
		switch status {
		case ringbuffer.StatusError:
			return
		case ringbuffer.StatusOK:
			resampled := p.resampler.Process(raw, p.resampleB, p.cfg.Up, p.cfg.Down, p.cfg.NearestNeighbour)
			p.pending = append(p.pending, resampled...)

			for len(p.pending) >= sizeToPoll {
				frame := p.post.Process(p.pending[:sizeToPoll], p.cfg.Width, p.cfg.Height,
					p.cfg.MotionBlur, p.cfg.LowpassCoeff, p.cfg.LowpassBeforeSync, p.cfg.AutogainAfter)

				select {
				case p.frames <- append([]float32(nil), frame...):
				case <-ctx.Done():
					return
				default:
					// host isn't keeping up; drop this frame rather than
					// block capture.
				}

				p.pending = append(p.pending[:0], p.pending[sizeToPoll:]...)
			}
		default:
			// timeout/empty: loop back and check ctx again.
		}
	}
}

// Stop halts capture and every downstream goroutine, in the order the
// concurrency model specifies: front end stop, alive flags clear, ring
// buffers purge, goroutines join, ext-buffers release.
func (p *Pipeline) Stop() {
	if !p.alive.Swap(false) {
		return
	}

	p.front.Stop()
	if p.cancel != nil {
		p.cancel()
	}
	p.rb.Purge()
	p.frameDet.Stop()
	p.superb.Stop()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(p.frames)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Printf("[%s] shutdown timeout, forcing exit", p.id)
	}

	p.resampleB.Free()
	p.post.Close()
	p.rb.Free()
	log.Printf("[%s] pipeline stopped", p.id)
}

// freqShifter adapts a frontend.FrontEnd to superbandwidth.FrequencyShifter:
// hop offsets are applied relative to the session's configured center
// frequency, and the synthesized sample rate the stitcher publishes after
// each completed cycle is latched for SynthesizedSampleRate.
type freqShifter struct {
	front      frontend.FrontEnd
	centerFreq int64
	synthRate  atomic.Uint64
}

func (f *freqShifter) ShiftFrequency(hz int64) {
	target := f.centerFreq + hz
	if target < 0 {
		target = 0
	}
	if err := f.front.SetCenterFreq(uint32(target)); err != nil {
		log.Printf("super-bandwidth hop retune failed: %v", err)
	}
}

func (f *freqShifter) SetSynthesizedSampleRate(rate uint32) {
	f.synthRate.Store(uint64(rate))
}
