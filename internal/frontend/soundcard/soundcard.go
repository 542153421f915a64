// Package soundcard implements a FrontEnd that captures quadrature I/Q
// baseband from the system's default stereo input device: left channel as
// I, right channel as Q. Feeding a receiver's I/Q audio output into a
// sound card's line/mic input is a real, historically-used way to get
// basic TEMPEST captures without a dedicated SDR, and it lets this repo
// exercise the teacher's own capture idiom (malgo device lifecycle,
// pooled byte->float32 conversion, ring-buffered callback decoupling)
// directly in its native domain instead of mono 16kHz speech.
package soundcard

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/mmarinov/tsdrgo/internal/frontend"
	"github.com/mmarinov/tsdrgo/internal/ringbuffer"
)

const ringMaxCoeff = 8

// FrontEnd captures stereo audio and reports it as interleaved I/Q.
type FrontEnd struct {
	mu         sync.Mutex
	args       frontend.Args
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate uint32
	centerFreq uint32

	rb       *ringbuffer.Buffer
	dropped  atomic.Uint64
	lastErr  atomic.Value // string
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New returns an uninitialized soundcard front end; call Init to open the
// audio context.
func New() frontend.FrontEnd {
	return &FrontEnd{sampleRate: 48000, rb: ringbuffer.New(ringMaxCoeff)}
}

func (f *FrontEnd) setErr(err error) error {
	if err != nil {
		f.lastErr.Store(err.Error())
	}
	return err
}

func (f *FrontEnd) LastError() string {
	if v, ok := f.lastErr.Load().(string); ok {
		return v
	}
	return ""
}

// Init parses front-end arguments (currently just "rate=<hz>") and opens
// the malgo audio context. args follows the same whitespace-tokenized
// key=value shape as the original UHD front end's init string.
func (f *FrontEnd) Init(args string) error {
	f.args = frontend.ParseArgs(args)
	if rate, ok := f.args["rate"]; ok {
		if hz, err := strconv.ParseUint(rate, 10, 32); err == nil && hz > 0 {
			f.sampleRate = uint32(hz)
		}
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return f.setErr(fmt.Errorf("soundcard: init audio context: %w", err))
	}
	f.ctx = ctx
	return nil
}

func (f *FrontEnd) SetSampleRate(rate uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.device != nil {
		return f.setErr(fmt.Errorf("soundcard: cannot change sample rate while capturing"))
	}
	f.sampleRate = rate
	return nil
}

func (f *FrontEnd) SampleRate() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sampleRate
}

// SetCenterFreq has no hardware effect on a sound card; it is recorded
// purely for reporting/telemetry, since an external receiver (not this
// front end) owns the actual tuning.
func (f *FrontEnd) SetCenterFreq(freq uint32) error {
	f.mu.Lock()
	f.centerFreq = freq
	f.mu.Unlock()
	return nil
}

// SetGain is a no-op: input gain on a line-in device is a system mixer
// setting this front end does not own.
func (f *FrontEnd) SetGain(normalized float32) error {
	return nil
}

// ReadAsync opens the capture device and streams interleaved I/Q float32
// batches to cb until ctx is canceled or Stop is called. Ported from the
// teacher's Capturer.Start/processLoop split between audio-thread callback
// and consumer goroutine, generalized from mono capture to stereo-as-IQ.
func (f *FrontEnd) ReadAsync(ctx context.Context, cb frontend.SampleCallback) error {
	f.mu.Lock()
	if f.ctx == nil {
		f.mu.Unlock()
		return f.setErr(fmt.Errorf("soundcard: not initialized"))
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 2
	deviceConfig.SampleRate = f.sampleRate
	deviceConfig.PeriodSizeInMilliseconds = 32

	onRecvFrames := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		iq := bytesToFloat32(pInputSamples)
		if len(iq) > 0 {
			if f.rb.Add(iq) != ringbuffer.StatusOK {
				f.dropped.Add(uint64(len(iq) / 2))
			}
		}
		returnFloat32Buffer(iq)
	}

	device, err := malgo.InitDevice(f.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		f.mu.Unlock()
		return f.setErr(fmt.Errorf("soundcard: init capture device: %w", err))
	}
	f.device = device
	f.stopChan = make(chan struct{})
	f.mu.Unlock()

	if err := device.Start(); err != nil {
		return f.setErr(fmt.Errorf("soundcard: start capture device: %w", err))
	}

	const batch = 2048
	buf := make([]float32, batch)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-f.stopChan:
			return nil
		default:
		}

		status := f.rb.RemoveBlocking(ctx, buf, 250*time.Millisecond)
		switch status {
		case ringbuffer.StatusOK:
			dropped := f.dropped.Swap(0)
			cb(buf, dropped)
		case ringbuffer.StatusError:
			return nil
		default:
			// timeout/empty: loop back and check ctx/stopChan again
		}
	}
}

// Stop halts capture and releases the device; safe to call more than once.
func (f *FrontEnd) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopChan != nil {
		select {
		case <-f.stopChan:
		default:
			close(f.stopChan)
		}
	}
	if f.device != nil {
		f.device.Stop()
		f.device.Uninit()
		f.device = nil
	}
	f.rb.Purge()
}

// Close stops capture and releases the audio context.
func (f *FrontEnd) Close() error {
	f.Stop()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ctx != nil {
		err := f.ctx.Uninit()
		f.ctx.Free()
		f.ctx = nil
		if err != nil {
			return f.setErr(fmt.Errorf("soundcard: uninit audio context: %w", err))
		}
	}
	return nil
}

var float32Pool = sync.Pool{
	New: func() interface{} {
		buf := make([]float32, 2048)
		return &buf
	},
}

func bytesToFloat32(data []byte) []float32 {
	numSamples := len(data) / 4
	pBuf := float32Pool.Get().(*[]float32)
	if cap(*pBuf) < numSamples {
		*pBuf = make([]float32, numSamples)
	}
	samples := (*pBuf)[:numSamples]
	for i := range samples {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}

func returnFloat32Buffer(samples []float32) {
	if samples == nil {
		return
	}
	buf := samples[:cap(samples)]
	float32Pool.Put(&buf)
}
