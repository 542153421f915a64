// Package resample implements the fractional-rate resampler that puts
// arriving I/Q samples onto the pixel-clock grid: one real-valued sample in
// becomes up/down real-valued samples out, with either nearest-neighbour or
// linear-area interpolation, and state (contrib/offset) carried across
// calls so chunk boundaries never introduce a click or a skipped sample.
package resample

import "github.com/mmarinov/tsdrgo/internal/dsp/extbuffer"

// Resampler holds the fractional state needed to resample a continuous
// stream across repeated Process calls.
type Resampler struct {
	contrib float64
	offset  float64

	nearestNeighbour bool
	initialized      bool
}

// New returns a resampler with freshly zeroed state.
func New() *Resampler {
	return &Resampler{}
}

// Reset zeroes contrib/offset. The original's nearest-neighbour/linear
// modes are not phase-compatible; Process calls Reset itself whenever its
// nearestNeighbour argument differs from the previous call's, and this is
// documented as an audible/visible glitch at the moment of the switch
// rather than hidden continuity.
func (r *Resampler) Reset() {
	r.contrib = 0
	r.offset = 0
}

// Process resamples in at a rate of up/down (e.g. up=147, down=125 maps
// in's native rate to an arbitrary pixel clock) using out as scratch
// output storage, returning the valid output slice. nearestNeighbour
// selects nearest-neighbour sampling instead of linear-area integration.
func (r *Resampler) Process(in []float32, out *extbuffer.Buffer[float32], up, down int, nearestNeighbour bool) []float32 {
	if r.initialized && r.nearestNeighbour != nearestNeighbour {
		r.Reset()
	}
	r.nearestNeighbour = nearestNeighbour
	r.initialized = true

	sampleTimeOverPixel := float64(up) / float64(down)
	pixelOverSampleTime := float64(down) / float64(up)

	size := len(in)
	outputSamples := int((float64(size) - r.offset) * sampleTimeOverPixel)
	if outputSamples < 0 {
		outputSamples = 0
	}

	out.Prepare(maxInt(outputSamples, 1))
	result := out.Slice()[:outputSamples]

	if nearestNeighbour {
		r.processNearestNeighbour(result, in, outputSamples, size)
	} else {
		r.processLinear(result, in, sampleTimeOverPixel)
	}

	r.offset += float64(outputSamples)*pixelOverSampleTime - float64(size)
	return result
}

func (r *Resampler) processNearestNeighbour(out []float32, in []float32, outputSamples, size int) {
	if outputSamples == 0 {
		return
	}
	for id := 0; id < outputSamples; id++ {
		out[id] = in[(uint64(size)*uint64(id))/uint64(outputSamples)]
	}
}

func (r *Resampler) processLinear(out []float32, in []float32, sampleTimeOverPixel float64) {
	offsetSample := -r.offset * sampleTimeOverPixel
	pid := 0
	oid := 0

	for id, val64 := range in {
		val := float64(val64)
		idcheck := float64(id)*sampleTimeOverPixel + offsetSample
		idcheck3 := idcheck + sampleTimeOverPixel
		idcheck2 := idcheck + sampleTimeOverPixel - 1.0

		if float64(pid) < idcheck && float64(pid) < idcheck2 {
			if oid < len(out) {
				out[oid] = float32(r.contrib + val*(1.0-idcheck+float64(pid)))
				oid++
			}
			r.contrib = 0
			pid++
		}

		for float64(pid) < idcheck2 {
			if oid < len(out) {
				out[oid] = float32(val)
				oid++
			}
			pid++
		}

		if float64(pid) < idcheck3 && float64(pid) > idcheck {
			r.contrib += (idcheck3 - float64(pid)) * val
		} else {
			r.contrib += sampleTimeOverPixel * val
		}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
