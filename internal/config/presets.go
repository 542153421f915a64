package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Preset is a named bundle of front-end tuning parameters, letting an
// operator keep a library of known-good per-monitor capture settings
// instead of retyping a long flag line for each target.
type Preset struct {
	CenterFreq uint32  `yaml:"center_freq"`
	SampleRate uint32  `yaml:"sample_rate"`
	Gain       float32 `yaml:"gain"`
	Args       string  `yaml:"args"`
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
}

// Presets maps a preset name to its parameters.
type Presets map[string]Preset

// LoadPresets reads a YAML file of named presets, e.g.:
//
//	office-crt:
//	  center_freq: 350000000
//	  sample_rate: 8000000
//	  gain: 0.6
//	  args: "ant=TX/RX subdev=A:0"
//	  width: 800
//	  height: 600
func LoadPresets(path string) (Presets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading preset file %s: %w", path, err)
	}
	var presets Presets
	if err := yaml.Unmarshal(data, &presets); err != nil {
		return nil, fmt.Errorf("config: parsing preset file %s: %w", path, err)
	}
	return presets, nil
}
