package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejectsNonPositiveGeometry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width = 0
	if err := cfg.validate(); err == nil {
		t.Fatal("expected error for zero width")
	}
}

func TestApplyPresetOverridesFields(t *testing.T) {
	cfg := DefaultConfig()
	presets := Presets{
		"office-crt": Preset{CenterFreq: 400_000_000, Gain: 0.8, Width: 1024, Height: 768},
	}
	if err := cfg.applyPreset(presets, "office-crt"); err != nil {
		t.Fatalf("applyPreset: %v", err)
	}
	if cfg.CenterFreq != 400_000_000 || cfg.Gain != 0.8 || cfg.Width != 1024 || cfg.Height != 768 {
		t.Fatalf("preset not applied: %+v", cfg)
	}
	// SampleRate wasn't set in the preset, so the default should survive.
	if cfg.SampleRate != DefaultConfig().SampleRate {
		t.Fatalf("unset preset field clobbered default: %v", cfg.SampleRate)
	}
}

func TestApplyPresetUnknownNameFails(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.applyPreset(Presets{}, "nope"); err == nil {
		t.Fatal("expected error for unknown preset")
	}
}

func TestLoadPresetsParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.yaml")
	content := "office-crt:\n  center_freq: 350000000\n  sample_rate: 8000000\n  gain: 0.6\n  args: \"ant=TX/RX\"\n  width: 800\n  height: 600\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	presets, err := LoadPresets(path)
	if err != nil {
		t.Fatalf("LoadPresets: %v", err)
	}
	p, ok := presets["office-crt"]
	if !ok {
		t.Fatal("expected office-crt preset to be present")
	}
	if p.CenterFreq != 350_000_000 || p.Args != "ant=TX/RX" {
		t.Fatalf("unexpected preset contents: %+v", p)
	}
}

func TestLoadPresetsMissingFile(t *testing.T) {
	if _, err := LoadPresets("/nonexistent/presets.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
