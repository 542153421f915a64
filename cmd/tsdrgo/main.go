// tsdrgo reconstructs a video image from a stream of complex baseband
// samples captured from a stray-emission front end: ring-buffered
// ingestion, resampling onto the pixel grid, frame/line synchronization,
// motion blur, auto-gain, and optional multi-hop super-bandwidth
// stitching.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mmarinov/tsdrgo/internal/config"
	"github.com/mmarinov/tsdrgo/internal/frontend"
	"github.com/mmarinov/tsdrgo/internal/frontend/soundcard"
	"github.com/mmarinov/tsdrgo/internal/frontend/synth"
	"github.com/mmarinov/tsdrgo/internal/notify"
	"github.com/mmarinov/tsdrgo/internal/pipeline"
)

func init() {
	log.SetFlags(log.Ltime)
}

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	log.Println("📡 tsdrgo starting...")
	log.Printf("🎛️  front end: %s, %d Hz @ %d Hz sample rate", cfg.FrontEnd, cfg.CenterFreq, cfg.SampleRate)
	log.Printf("🖼️  frame geometry: %dx%d @ %dHz", cfg.Width, cfg.Height, cfg.RefreshRateHz)

	registry := frontend.NewRegistry()
	registry.Register("soundcard", soundcard.New)
	registry.Register("synth", synth.New)

	fe, err := registry.LoadByName(cfg.FrontEnd, cfg.FrontEndArgs)
	if err != nil {
		log.Fatalf("Failed to load front end %q: %v", cfg.FrontEnd, err)
	}
	defer fe.Close()

	if err := fe.SetSampleRate(cfg.SampleRate); err != nil {
		log.Fatalf("Failed to set sample rate: %v", err)
	}
	if err := fe.SetCenterFreq(cfg.CenterFreq); err != nil {
		log.Fatalf("Failed to set center frequency: %v", err)
	}
	if err := fe.SetGain(cfg.Gain); err != nil {
		log.Fatalf("Failed to set gain: %v", err)
	}

	sink := notify.NewLogSink(nil)

	pl := pipeline.New(fe, pipeline.Config{
		Width:             cfg.Width,
		Height:            cfg.Height,
		Up:                cfg.ResampleUp,
		Down:              cfg.ResampleDown,
		NearestNeighbour:  cfg.NearestNeighbour,
		MotionBlur:        cfg.MotionBlur,
		LowpassCoeff:      cfg.LowpassCoeff,
		LowpassBeforeSync: cfg.LowpassBeforeSync,
		AutogainAfter:     cfg.AutogainAfter,
		SpecialPixels:     cfg.SpecialPixels,
		SuperBandwidth:    cfg.SuperBandwidth,
		RefreshRateHz:     cfg.RefreshRateHz,
		CenterFreq:        int64(cfg.CenterFreq),
	}, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := pl.Start(ctx); err != nil {
		log.Fatalf("Failed to start pipeline: %v", err)
	}
	log.Printf("✅ session %s capturing, Ctrl+C to stop", pl.ID())

	frameWriter := newFrameWriter(cfg.OutputDir, cfg.OutputEveryN, cfg.Width, cfg.Height)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for frame := range pl.Frames() {
			frameWriter.maybeWrite(frame)
		}
	}()

	<-sigChan
	log.Println("🛑 shutting down...")

	pl.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Println("⚠️  frame consumer didn't drain in time")
	}

	log.Println("✅ shutdown complete")
}

// frameWriter periodically dumps a finished frame to a grayscale PGM file
// for inspection, since this repo has no GUI renderer.
type frameWriter struct {
	dir    string
	everyN int
	width  int
	height int
	count  int
}

func newFrameWriter(dir string, everyN, width, height int) *frameWriter {
	if everyN <= 0 {
		everyN = 1
	}
	return &frameWriter{dir: dir, everyN: everyN, width: width, height: height}
}

func (w *frameWriter) maybeWrite(frame []float32) {
	if w.dir == "" {
		return
	}
	w.count++
	if w.count%w.everyN != 0 {
		return
	}
	path := filepath.Join(w.dir, fmt.Sprintf("frame-%06d.pgm", w.count))
	if err := writePGM(path, frame, w.width, w.height); err != nil {
		log.Printf("writing frame snapshot: %v", err)
	}
}

// writePGM writes frame (values expected roughly in [0,1] after auto-gain)
// as an 8-bit grayscale PGM image.
func writePGM(path string, frame []float32, width, height int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "P5\n%d %d\n255\n", width, height); err != nil {
		return err
	}

	pixels := make([]byte, width*height)
	for i, v := range frame {
		if i >= len(pixels) {
			break
		}
		switch {
		case v <= 0:
			pixels[i] = 0
		case v >= 1:
			pixels[i] = 255
		default:
			pixels[i] = byte(v * 255)
		}
	}
	_, err = f.Write(pixels)
	return err
}
