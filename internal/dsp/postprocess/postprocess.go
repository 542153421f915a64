// Package postprocess turns a raw reconstructed frame into a viewable
// image: frame/line synchronization, motion-blur accumulation, and
// auto-gain/contrast normalization, in either order depending on
// configuration, reporting gain telemetry to a notify.Sink periodically.
package postprocess

import (
	"math"

	"github.com/mmarinov/tsdrgo/internal/notify"
	"github.com/mmarinov/tsdrgo/internal/syncdetect"
)

// autogainReportEveryFrames matches AUTOGAIN_REPORT_EVERY_FRAMES.
const autogainReportEveryFrames = 5

// specialPixelThreshold matches the +-250 sentinel band dsp_autogain_run
// excludes from its min/max/mean statistics when special-pixel mode is on
// (PIXEL_SPECIAL_COLOURS_ENABLED in dsp.c); such pixels carry out-of-band
// markers rather than picture data and are passed through untouched.
const specialPixelThreshold = 250

func isSpecialPixel(v float32) bool {
	return v > specialPixelThreshold || v < -specialPixelThreshold
}

// autogain holds the exponentially-smoothed min/max and the last computed
// signal-to-noise ratio, mirroring dsp_autogain_t.
type autogain struct {
	lastMin, lastMax float32
	snr              float64
}

// run normalizes screen (sizeToPoll pixels) into send using exponential
// min/max smoothing with factor norm, and stores the population-based SNR
// for this frame in a.snr. When specialPixels is true, sentinel values outside
// [-250, 250] are excluded from the min/max/mean accumulation and passed
// through to send unchanged, rather than normalized. Ported from
// dsp_autogain_run.
func (a *autogain) run(screen, send []float32, norm float32, specialPixels bool) {
	min, max := screen[0], screen[0]
	if specialPixels {
		for _, v := range screen {
			if !isSpecialPixel(v) {
				min, max = v, v
				break
			}
		}
	}
	var sum float64
	for _, v := range screen {
		if specialPixels && isSpecialPixel(v) {
			continue
		}
		if v > max {
			max = v
		} else if v < min {
			min = v
		}
		sum += float64(v)
	}

	oneMinusNorm := 1.0 - norm
	a.lastMax = oneMinusNorm*a.lastMax + norm*max
	a.lastMin = oneMinusNorm*a.lastMin + norm*min
	span := a.lastMax - a.lastMin
	if span == 0 {
		span = 1
	}

	n := float64(len(screen))
	mean := sum / n
	var sum2, sum3 float64
	for i, v := range screen {
		if specialPixels && isSpecialPixel(v) {
			send[i] = v
		} else {
			send[i] = (v - a.lastMin) / span
		}
		diff := float64(v) - mean
		sum2 += diff * diff
		sum3 += diff
	}

	stdev := math.Sqrt((sum2 - sum3*sum3/n) / n)
	a.snr = mean / stdev
}

// timeLowPass applies an exponential moving average (motion blur) over
// screen into screen itself, reading input as the new sample. Ported from
// dsp_timelowpass_run.
func timeLowPass(lowpass float32, input, screen []float32) {
	antiLowpass := 1 - lowpass
	for i := range screen {
		screen[i] = screen[i]*lowpass + input[i]*antiLowpass
	}
}

// averageVH computes per-column and per-row sums, used by the sync
// detector to locate the blanking interval. Ported from dsp_average_v_h.
func averageVH(width, height int, send, widthCollapse, heightCollapse []float32) {
	for i := range widthCollapse {
		widthCollapse[i] = 0
	}
	for i := range heightCollapse {
		heightCollapse[i] = 0
	}
	for i, v := range send {
		widthCollapse[i%width] += v
		heightCollapse[i/width] += v
	}
}

// Processor holds the reusable buffers and state for one post-processing
// pipeline instance. Ported from dsp_postprocess_t / dsp_post_process.
type Processor struct {
	sink notify.Sink
	sync syncdetect.Detector

	screen          []float32
	send            []float32
	correctedSend   []float32
	widthCollapse   []float32
	heightCollapse  []float32

	bufSize        int
	width, height  int
	lowpassBeforeS bool
	superres       bool
	specialPixels  bool

	autogain autogain
	runs     int
}

// SetSuperresolution toggles whether the caller is running the
// super-bandwidth stitcher in parallel; when true, the sync detector is
// told not to supersample since a higher-resolution frame is already being
// assembled upstream.
func (p *Processor) SetSuperresolution(enabled bool) {
	p.superres = enabled
}

// SetSpecialPixels toggles whether auto-gain treats pixels outside
// [-250, 250] as out-of-band sentinels to exclude from its statistics and
// pass through unnormalized, mirroring PIXEL_SPECIAL_COLOURS_ENABLED.
func (p *Processor) SetSpecialPixels(enabled bool) {
	p.specialPixels = enabled
}

// NewProcessor constructs a Processor reporting through sink and delegating
// synchronization to sync.
func NewProcessor(sink notify.Sink, sync syncdetect.Detector) *Processor {
	if sink == nil {
		sink = notify.NewLogSink(nil)
	}
	return &Processor{sink: sink, sync: sync}
}

// Process runs one frame through sync detection, motion blur, and
// auto-gain, in the order selected by lpBeforeSync, returning the ready-
// to-display buffer (owned by Processor; valid until the next Process
// call). Ported from dsp_post_process.
func (p *Processor) Process(frame []float32, width, height int, motionBlur, lpCoeff float32, lpBeforeSync, autogainAfter bool) []float32 {
	sizeToPoll := width * height
	if sizeToPoll <= 0 {
		panic("postprocess: width*height must be positive")
	}

	if width != p.width || height != p.height {
		p.width, p.height = width, height
		if sizeToPoll > p.bufSize {
			p.bufSize = sizeToPoll
			p.screen = make([]float32, p.bufSize)
			p.send = make([]float32, p.bufSize)
			p.correctedSend = make([]float32, p.bufSize)
		}
		p.widthCollapse = make([]float32, width)
		p.heightCollapse = make([]float32, height)
	}

	if p.lowpassBeforeS != lpBeforeSync {
		p.lowpassBeforeS = lpBeforeSync
		for i := 0; i < sizeToPoll; i++ {
			p.screen[i] = 0
			p.send[i] = 0
			p.correctedSend[i] = 0
		}
	}

	input := frame
	if !autogainAfter {
		p.autogain.run(input[:sizeToPoll], p.send[:sizeToPoll], lpCoeff, p.specialPixels)
		input = p.send
	}

	var result []float32
	if lpBeforeSync {
		timeLowPass(motionBlur, input[:sizeToPoll], p.screen[:sizeToPoll])
		averageVH(width, height, p.screen[:sizeToPoll], p.widthCollapse, p.heightCollapse)

		syncResult, _ := p.sync.Run(p.screen[:sizeToPoll], p.correctedSend[:sizeToPoll], width, height, p.widthCollapse, p.heightCollapse, !p.superres, false)

		if autogainAfter {
			p.autogain.run(syncResult, p.send[:sizeToPoll], lpCoeff, p.specialPixels)
			result = p.send[:sizeToPoll]
		} else {
			result = syncResult
		}
	} else {
		averageVH(width, height, input[:sizeToPoll], p.widthCollapse, p.heightCollapse)

		supersampling := motionBlur == 0 && !p.superres
		syncResult, _ := p.sync.Run(input[:sizeToPoll], p.correctedSend[:sizeToPoll], width, height, p.widthCollapse, p.heightCollapse, supersampling, true)
		timeLowPass(motionBlur, syncResult, p.screen[:sizeToPoll])

		if autogainAfter {
			p.autogain.run(p.screen[:sizeToPoll], p.send[:sizeToPoll], lpCoeff, p.specialPixels)
			result = p.send[:sizeToPoll]
		} else {
			result = p.screen[:sizeToPoll]
		}
	}

	p.runs++
	if p.runs >= autogainReportEveryFrames {
		p.runs = 0
		p.sink.ValueChanged(notify.ValueIDAutogainMinMax, float64(p.autogain.lastMin), float64(p.autogain.lastMax))
	}

	return result
}

// Close releases the Processor's buffers.
func (p *Processor) Close() {
	p.screen = nil
	p.send = nil
	p.correctedSend = nil
	p.widthCollapse = nil
	p.heightCollapse = nil
}
