// Package config provides configuration and CLI argument parsing for the
// TEMPEST reconstruction pipeline.
package config

import (
	"flag"
	"fmt"
)

// Config holds all configuration for a capture session. Populated from CLI
// flags, an optional YAML preset, or defaults.
type Config struct {
	// Front end selection
	FrontEnd     string // "soundcard" or "synth"
	FrontEndArgs string // whitespace-tokenized "key=value" init args

	// Tuning
	CenterFreq uint32
	SampleRate uint32
	Gain       float32

	// Frame geometry
	Width, Height int
	RefreshRateHz uint32

	// Resampling
	ResampleUp, ResampleDown int
	NearestNeighbour         bool

	// Post-processing
	MotionBlur        float32
	LowpassCoeff      float32
	LowpassBeforeSync bool
	AutogainAfter     bool
	SpecialPixels     bool

	// Super-bandwidth stitching across hopped captures
	SuperBandwidth bool

	// Preset file (see presets.go) and the preset name to apply
	PresetFile string
	Preset     string

	// OutputDir, when non-empty, receives a PGM snapshot of every Nth
	// finished frame (see cmd/tsdrgo).
	OutputDir    string
	OutputEveryN int

	Verbose bool
}

// DefaultConfig returns a configuration with sensible defaults for an
// 800x600@60Hz monitor captured over an 8MS/s front end.
func DefaultConfig() *Config {
	return &Config{
		FrontEnd:     "synth",
		FrontEndArgs: "",

		CenterFreq: 350_000_000,
		SampleRate: 8_000_000,
		Gain:       0.5,

		Width:         800,
		Height:        600,
		RefreshRateHz: 60,

		ResampleUp:       3,
		ResampleDown:     100,
		NearestNeighbour: false,

		MotionBlur:        0.2,
		LowpassCoeff:      0.1,
		LowpassBeforeSync: false,
		AutogainAfter:     true,
		SpecialPixels:     true,

		SuperBandwidth: false,

		OutputEveryN: 30,

		Verbose: false,
	}
}

// ParseFlags parses command-line flags and returns a Config.
func ParseFlags() (*Config, error) {
	cfg := DefaultConfig()

	flag.StringVar(&cfg.FrontEnd, "front", cfg.FrontEnd, "front end to use (soundcard, synth)")
	flag.StringVar(&cfg.FrontEndArgs, "front-args", cfg.FrontEndArgs, "whitespace-separated key=value init args for the front end")

	centerFreq := flag.Uint("center-freq", uint(cfg.CenterFreq), "center frequency in Hz")
	sampleRate := flag.Uint("sample-rate", uint(cfg.SampleRate), "front end sample rate in Hz")
	gain := flag.Float64("gain", float64(cfg.Gain), "front end gain, 0.0-1.0 normalized")

	flag.IntVar(&cfg.Width, "width", cfg.Width, "frame width in pixels")
	flag.IntVar(&cfg.Height, "height", cfg.Height, "frame height in pixels")
	refreshRate := flag.Uint("refresh-rate", uint(cfg.RefreshRateHz), "assumed monitor refresh rate in Hz")

	flag.IntVar(&cfg.ResampleUp, "resample-up", cfg.ResampleUp, "resampler upsampling factor")
	flag.IntVar(&cfg.ResampleDown, "resample-down", cfg.ResampleDown, "resampler downsampling factor")
	flag.BoolVar(&cfg.NearestNeighbour, "nearest-neighbour", cfg.NearestNeighbour, "use nearest-neighbour resampling instead of linear-area")

	motionBlur := flag.Float64("motion-blur", float64(cfg.MotionBlur), "motion blur low-pass coefficient, 0.0-1.0")
	lowpassCoeff := flag.Float64("autogain-smoothing", float64(cfg.LowpassCoeff), "auto-gain min/max smoothing factor, 0.0-1.0")
	flag.BoolVar(&cfg.LowpassBeforeSync, "lowpass-before-sync", cfg.LowpassBeforeSync, "apply motion blur before frame/line sync instead of after")
	flag.BoolVar(&cfg.AutogainAfter, "autogain-after", cfg.AutogainAfter, "apply auto-gain after frame/line sync instead of before")
	flag.BoolVar(&cfg.SpecialPixels, "special-pixels", cfg.SpecialPixels, "exclude pixels outside [-250, 250] from auto-gain statistics, passing them through unnormalized")

	flag.BoolVar(&cfg.SuperBandwidth, "super-bandwidth", cfg.SuperBandwidth, "stitch several hopped captures into one wideband reconstruction")

	flag.StringVar(&cfg.PresetFile, "preset-file", "", "YAML file of named front-end presets (see presets.go)")
	flag.StringVar(&cfg.Preset, "preset", "", "preset name to apply from -preset-file")

	flag.StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "directory to write periodic PGM frame snapshots to (disabled if empty)")
	flag.IntVar(&cfg.OutputEveryN, "output-every", cfg.OutputEveryN, "write one frame snapshot every N finished frames")

	flag.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable verbose logging")

	flag.Parse()

	cfg.CenterFreq = uint32(*centerFreq)
	cfg.SampleRate = uint32(*sampleRate)
	cfg.Gain = float32(*gain)
	cfg.RefreshRateHz = uint32(*refreshRate)
	cfg.MotionBlur = float32(*motionBlur)
	cfg.LowpassCoeff = float32(*lowpassCoeff)

	if cfg.PresetFile != "" {
		presets, err := LoadPresets(cfg.PresetFile)
		if err != nil {
			return nil, fmt.Errorf("config: loading presets: %w", err)
		}
		if cfg.Preset != "" {
			if err := cfg.applyPreset(presets, cfg.Preset); err != nil {
				return nil, err
			}
		}
	} else if cfg.Preset != "" {
		return nil, fmt.Errorf("config: -preset given without -preset-file")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyPreset overlays the named preset's non-zero fields onto cfg, applied
// after flag parsing so the preset wins over flag defaults.
func (c *Config) applyPreset(presets Presets, name string) error {
	p, ok := presets[name]
	if !ok {
		return fmt.Errorf("config: unknown preset %q", name)
	}
	if p.CenterFreq != 0 {
		c.CenterFreq = p.CenterFreq
	}
	if p.SampleRate != 0 {
		c.SampleRate = p.SampleRate
	}
	if p.Gain != 0 {
		c.Gain = p.Gain
	}
	if p.Args != "" {
		c.FrontEndArgs = p.Args
	}
	if p.Width != 0 {
		c.Width = p.Width
	}
	if p.Height != 0 {
		c.Height = p.Height
	}
	return nil
}

func (c *Config) validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("config: width and height must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.ResampleUp <= 0 || c.ResampleDown <= 0 {
		return fmt.Errorf("config: resample-up/resample-down must be positive")
	}
	if c.FrontEnd == "" {
		return fmt.Errorf("config: -front must name a registered front end")
	}
	return nil
}
