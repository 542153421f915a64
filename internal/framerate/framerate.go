// Package framerate estimates frame rate and line rate from a raw sample
// stream by FFT-based auto-correlation: the stream's own periodicity shows
// up as peaks in the autocorrelation spectrum at the frame and line period,
// which a host UI can plot and pick a peak from.
package framerate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mmarinov/tsdrgo/internal/dsp/extbuffer"
	"github.com/mmarinov/tsdrgo/internal/dsp/fft"
	"github.com/mmarinov/tsdrgo/internal/notify"
	"github.com/mmarinov/tsdrgo/internal/ringbuffer"
)

const (
	minFramerate    = 55.0
	maxFramerate    = 87.0
	minHeight       = 590.0
	maxHeight       = 1500.0
	framesToCapture = 3.1

	ringMaxCoeff = 8
	pollInterval = 10 * time.Millisecond
)

// Detector runs auto-correlation over a rolling window of samples on a
// background goroutine and reports frame/line spectra and the number of
// accumulated passes through a notify.Sink. Ported from frameratedetector.c.
type Detector struct {
	sink notify.Sink

	rb         *ringbuffer.Buffer
	sampleRate atomic.Uint64
	alive      atomic.Bool
	purge      atomic.Bool

	wg     sync.WaitGroup
	stopCh chan struct{}

	autocorr    []complex64
	frameAcc    *extbuffer.Buffer[float64]
	lineAcc     *extbuffer.Buffer[float64]
	autocorrMag []float32
}

// NewDetector constructs a Detector reporting through sink.
func NewDetector(sink notify.Sink) *Detector {
	if sink == nil {
		sink = notify.NewLogSink(nil)
	}
	return &Detector{
		sink:     sink,
		rb:       ringbuffer.New(ringMaxCoeff),
		frameAcc: extbuffer.New[float64](),
		lineAcc:  extbuffer.New[float64](),
	}
}

// Feed pushes samples into the detector's ring buffer at the given sample
// rate, or purges pending state if drop is set (mirrors
// frameratedetector_run's drop-and-purge path on a known-bad batch).
func (d *Detector) Feed(data []float32, sampleRate uint32, drop bool) {
	if drop {
		d.rb.Purge()
		return
	}
	d.sampleRate.Store(uint64(sampleRate))
	if d.rb.Add(data) != ringbuffer.StatusOK {
		d.rb.Purge()
	}
}

// FlushEstimation discards cached accumulators and ring-buffered samples,
// e.g. after a retune invalidates the running estimate.
func (d *Detector) FlushEstimation() {
	d.purge.Store(true)
	d.rb.Purge()
}

// Start launches the background estimation loop.
func (d *Detector) Start() {
	if d.alive.Swap(true) {
		return
	}
	d.FlushEstimation()
	d.stopCh = make(chan struct{})
	d.wg.Add(1)
	go d.loop()
}

// Stop halts the background loop and waits for it to exit.
func (d *Detector) Stop() {
	if !d.alive.Swap(false) {
		return
	}
	close(d.stopCh)
	d.wg.Wait()
}

func (d *Detector) loop() {
	defer d.wg.Done()

	var buf []float32

	for d.alive.Load() {
		sampleRate := float64(d.sampleRate.Load())
		desiredSize := int(framesToCapture * sampleRate / minFramerate)
		if desiredSize <= 0 {
			select {
			case <-time.After(pollInterval):
			case <-d.stopCh:
				return
			}
			continue
		}

		if cap(buf) < desiredSize {
			buf = make([]float32, desiredSize)
		} else {
			buf = buf[:desiredSize]
		}

		if d.purge.Swap(false) {
			d.frameAcc.ClearToZero()
			d.lineAcc.ClearToZero()
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			select {
			case <-d.stopCh:
				cancel()
			case <-ctx.Done():
			}
		}()
		status := d.rb.RemoveBlocking(ctx, buf, pollInterval)
		cancel()
		if !d.alive.Load() {
			return
		}
		if status == ringbuffer.StatusOK {
			d.runOnData(buf, sampleRate)
		}
	}
}

// runOnData performs one auto-correlation pass and publishes the frame and
// line windows of it. Ported from frameratedetector_runontodata.
func (d *Detector) runOnData(data []float32, sampleRate float64) {
	size := fft.RealSize(len(data))
	if size <= 0 {
		return
	}
	if cap(d.autocorr) < size {
		d.autocorr = make([]complex64, size)
	}
	d.autocorr = d.autocorr[:size]

	fft.Autocorrelation(d.autocorr, data[:size])

	if cap(d.autocorrMag) < size {
		d.autocorrMag = make([]float32, size)
	}
	d.autocorrMag = d.autocorrMag[:size]
	fft.Magnitudes(d.autocorrMag, d.autocorr)

	maxLength := int(sampleRate / minFramerate)
	minLength := int(sampleRate / maxFramerate)
	heightMaxLength := int(sampleRate / (minHeight * minFramerate))
	heightMinLength := int(sampleRate / (maxHeight * maxFramerate))

	frameLen := clampWindow(maxLength-minLength, size, minLength)
	lineLen := clampWindow(heightMaxLength-heightMinLength, size, heightMinLength)

	accumulate(d.frameAcc, d.autocorrMag, minLength, frameLen)
	accumulate(d.lineAcc, d.autocorrMag, heightMinLength, lineLen)

	d.sink.PlotReady(notify.PlotIDFrame, d.frameAcc.Slice(), frameLen, minLength, uint32(sampleRate))
	d.sink.PlotReady(notify.PlotIDLine, d.lineAcc.Slice(), lineLen, heightMinLength, uint32(sampleRate))
	d.sink.ValueChanged(notify.ValueIDAutocorrFrameCount, 0, float64(d.frameAcc.Calls()))
}

func clampWindow(length, size, start int) int {
	if length <= 0 {
		return 0
	}
	if start+length > size {
		length = size - start
	}
	if length < 0 {
		return 0
	}
	return length
}

// accumulate folds mag[startID:startID+length] into out's running mean,
// weighting by out's own call count the same way extbuffer_preparetohandle
// tracks "how many times has this window been written to." Ported from
// accummulate.
func accumulate(out *extbuffer.Buffer[float64], mag []float32, startID, length int) {
	if length <= 0 {
		return
	}
	out.Prepare(length)
	calls := out.Calls()
	dst := out.Slice()

	if calls <= 1 {
		for i := 0; i < length; i++ {
			dst[i] = float64(mag[startID+i])
		}
		return
	}

	callsF := float64(calls)
	prevF := callsF - 1
	for i := 0; i < length; i++ {
		now := float64(mag[startID+i])
		dst[i] = (dst[i]*prevF + now) / callsF
	}
}
