// Package superbandwidth stitches several narrowband captures, taken at
// hopped center frequencies, into one wideband spectrum via FFT: gather a
// fixed number of frames at each hop, cross-correlate each hop with the
// first one to find their best time alignment, concatenate their spectra, and inverse-
// FFT the result into a single higher-bandwidth reconstruction.
package superbandwidth

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/mmarinov/tsdrgo/internal/dsp/fft"
)

// State is one of the six stages of a stitching cycle.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateGathering
	StatePause
	StateDataReady
	StateOutputReady
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateGathering:
		return "gathering"
	case StatePause:
		return "pause"
	case StateDataReady:
		return "data_ready"
	case StateOutputReady:
		return "output_ready"
	default:
		return "unknown"
	}
}

const (
	hopsToMake       = 4
	samplesToRecord  = 10
	secsToPauseHops  = 0.5
)

// FrequencyShifter is the narrow interface the stitcher uses to retune the
// front end between hops and to publish the synthesized sample rate back
// to the host, replacing the original's direct shiftfreq/
// set_internal_samplerate calls into a shared tsdr_lib_t (Design Note b).
type FrequencyShifter interface {
	ShiftFrequency(hz int64)
	SetSynthesizedSampleRate(rate uint32)
}

// Stitcher runs the six-state gather/align/stitch cycle described above.
// Gathering and hop retuning are driven synchronously by repeated Run
// calls from the sample callback — hops must be retuned exactly between
// calls, which a free-running background loop cannot guarantee — but the
// align/concatenate/inverse-FFT work that follows a completed gather cycle
// (DataReady) runs on a dedicated goroutine woken through notifyCh, the
// same way super_thread waits on a condition variable in superbandwidth.c:
// the sample callback is the producer and must never block on this work.
type Stitcher struct {
	front       FrequencyShifter
	refreshRate uint32

	mu     sync.Mutex
	state  State
	result []float32

	sampleRate      uint32
	samplesInFrame  int
	samplesToGather int
	samplesToPause  int

	buffID          int
	samplesGathered int
	buffsBuffCount  int
	buffs           [][]complex64

	scratchA, scratchB []complex64

	alive    atomic.Bool
	notifyCh chan struct{}
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewStitcher constructs a Stitcher that retunes through front.
func NewStitcher(front FrequencyShifter) *Stitcher {
	return &Stitcher{
		front:       front,
		refreshRate: 60,
		state:       StateStopped,
		notifyCh:    make(chan struct{}, 1),
	}
}

// Start launches the background stitching goroutine. Safe to call
// unconditionally even when super-bandwidth mode ends up disabled for the
// session: the goroutine sits idle on notifyCh until a gather cycle
// completes.
func (s *Stitcher) Start() {
	if s.alive.Swap(true) {
		return
	}
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.loop()
}

// loop waits for a completed gather cycle and runs the expensive
// align/concatenate/inverse-FFT work off the sample-callback goroutine,
// mirroring super_thread's wait-then-process cycle.
func (s *Stitcher) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case <-s.notifyCh:
		}

		s.mu.Lock()
		ready := s.state == StateDataReady
		s.mu.Unlock()
		if !ready {
			continue
		}

		result := s.stitch()

		s.mu.Lock()
		if s.state == StateDataReady {
			s.result = result
			s.state = StateOutputReady
			s.front.SetSynthesizedSampleRate(uint32(hopsToMake) * s.sampleRate)
		}
		s.mu.Unlock()
	}
}

// SetRefreshRate overrides the assumed frame refresh rate (default 60Hz)
// used to compute how many samples make up one frame at the current
// sample rate.
func (s *Stitcher) SetRefreshRate(hz uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshRate = hz
}

// State reports the current stage, for diagnostics and tests.
func (s *Stitcher) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stop halts stitching, re-centers the front end, restores its native
// sample rate, and joins the background stitching goroutine. Safe to call
// when already stopped.
func (s *Stitcher) Stop() {
	s.mu.Lock()
	if s.state != StateStopped {
		s.state = StateStopped
		s.front.ShiftFrequency(0)
		s.front.SetSynthesizedSampleRate(s.sampleRate)
	}
	s.mu.Unlock()

	if !s.alive.Swap(false) {
		return
	}
	close(s.stopCh)
	s.wg.Wait()
}

// Run advances the state machine by one batch of interleaved I/Q samples
// (len(iq)/2 complex samples) captured at sampleRate. It returns the
// stitched wideband buffer and ready=true exactly once per completed
// gather/align/stitch cycle; the align/FFT/inverse-FFT work itself runs
// on the background goroutine started by Start, so Run never blocks
// waiting for it — a gather cycle finishing only hands the work off via
// notifyCh and returns. dropped, when true during gathering, restarts the
// current hop from zero samples; hops already completed are kept (a
// dropped-sample batch can't be trusted to align cleanly with its
// neighbours).
func (s *Stitcher) Run(iq []float32, sampleRate uint32, dropped bool) (out []float32, ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStopped {
		s.state = StateStarting
	}

	if s.state == StateStarting {
		s.buffID = 0
		s.samplesGathered = 0
		s.buffsBuffCount = 0

		if sampleRate != s.sampleRate {
			s.sampleRate = sampleRate
			if s.refreshRate == 0 {
				s.refreshRate = 60
			}
			s.samplesInFrame = int(sampleRate / s.refreshRate)
			if s.samplesInFrame <= 0 {
				s.samplesInFrame = 1
			}
			s.samplesToGather = samplesToRecord * s.samplesInFrame
			s.samplesToPause = int(secsToPauseHops * float64(sampleRate))

			s.buffs = make([][]complex64, hopsToMake)
			for i := range s.buffs {
				s.buffs[i] = make([]complex64, s.samplesToGather)
			}
		}

		s.state = StateGathering
	}

	if s.state == StatePause {
		s.samplesGathered += len(iq) / 2
		if s.samplesGathered > s.samplesToPause {
			s.samplesGathered = 0
			s.state = StateGathering
		}
	}

	if s.state == StateGathering {
		if dropped {
			s.samplesGathered = 0
			return nil, false
		}

		samplesNow := len(iq) / 2
		dst := s.buffs[s.buffID]

		if s.samplesGathered+samplesNow < s.samplesToGather {
			copyIQ(dst[s.samplesGathered:], iq)
			s.samplesGathered += samplesNow
		} else {
			samplesRemain := s.samplesToGather - s.samplesGathered
			copyIQ(dst[s.samplesGathered:], iq[:samplesRemain*2])
			s.samplesGathered += samplesRemain

			s.buffID++
			s.buffsBuffCount = s.samplesGathered
			s.samplesGathered = 0

			if s.buffID >= hopsToMake {
				s.state = StateDataReady
				select {
				case s.notifyCh <- struct{}{}:
				default:
					// worker hasn't drained the previous wake yet; it will
					// still find state == StateDataReady when it looks.
				}
			} else {
				hop := int64(s.buffID-hopsToMake/2) * int64(s.sampleRate)
				s.front.ShiftFrequency(hop)
				s.state = StatePause
			}
		}
	}

	if s.state == StateOutputReady {
		out = s.result
		s.result = nil
		ready = true
		s.state = StateStarting
		return out, ready
	}

	return nil, false
}

// copyIQ copies interleaved float32 I/Q pairs from src into the complex64
// destination, one pair per element.
func copyIQ(dst []complex64, src []float32) {
	n := len(src) / 2
	for i := 0; i < n && i < len(dst); i++ {
		dst[i] = complex(src[2*i], src[2*i+1])
	}
}

// stitch aligns every gathered hop against hop 0, concatenates their
// per-hop spectra, and inverse-transforms the result into one wideband
// buffer. Ported from superb_ondataready.
func (s *Stitcher) stitch() []float32 {
	frameCount := fft.RealSize(s.buffsBuffCount)
	if frameCount == 0 {
		return nil
	}

	for i := range s.buffs {
		if len(s.buffs[i]) > frameCount {
			s.buffs[i] = s.buffs[i][:frameCount]
		}
	}

	for i := 1; i < len(s.buffs); i++ {
		offset := s.bestFit(s.buffs[0], s.buffs[i])
		s.buffs[i] = rotate(s.buffs[i], offset)
		fft.Transform(s.buffs[i], false)
	}
	fft.Transform(s.buffs[0], false)

	total := make([]complex64, hopsToMake*frameCount)
	for i, buf := range s.buffs {
		copy(total[i*frameCount:(i+1)*frameCount], buf)
	}
	fft.Transform(total, true)

	out := make([]float32, 2*len(total))
	for i, c := range total {
		out[2*i] = real(c)
		out[2*i+1] = imag(c)
	}
	return out
}

// bestFit returns the index offset into b that best aligns it to a by
// cross-correlating their amplitude-difference envelopes. Ported from
// superb_bestfit.
func (s *Stitcher) bestFit(a, b []complex64) int {
	size := len(a)
	if s.samplesInFrame > 0 {
		size = (size / s.samplesInFrame) * s.samplesInFrame
	}
	size = fft.RealSize(size)
	if size == 0 {
		return 0
	}

	if cap(s.scratchA) < size {
		s.scratchA = make([]complex64, size)
	}
	if cap(s.scratchB) < size {
		s.scratchB = make([]complex64, size)
	}
	s.scratchA = s.scratchA[:size]
	s.scratchB = s.scratchB[:size]
	copy(s.scratchA, a[:size])
	copy(s.scratchB, b[:size])

	absDiff(s.scratchA)
	absDiff(s.scratchB)

	fft.CrossCorrelation(s.scratchA, s.scratchB)

	best := 0
	var bestVal float32
	for i, c := range s.scratchA {
		val := cmplxAbs(c)
		if i == 0 {
			bestVal = val
		} else if val > bestVal {
			bestVal = val
			best = i
		}
	}
	return best
}

// absDiff replaces each element with the magnitude difference from its
// predecessor, zeroing the imaginary part. Ported from complex_to_abs_diff.
func absDiff(buf []complex64) {
	if len(buf) == 0 {
		return
	}
	prev := cmplxAbs(buf[0])
	for i, c := range buf {
		curr := cmplxAbs(c)
		diff := curr - prev
		prev = curr
		buf[i] = complex(diff, 0)
	}
}

func cmplxAbs(c complex64) float32 {
	return float32(math.Sqrt(float64(real(c))*float64(real(c)) + float64(imag(c))*float64(imag(c))))
}

// rotate returns a new slice equal to buf rotated left by n elements.
func rotate(buf []complex64, n int) []complex64 {
	if n <= 0 || n >= len(buf) {
		return buf
	}
	out := make([]complex64, len(buf))
	copy(out, buf[n:])
	copy(out[len(buf)-n:], buf[:n])
	return out
}
