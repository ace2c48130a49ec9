package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/RyanBlaney/sonido-clave/algorithms/tonal"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.SegmentLength != 8.0 || !cfg.HarmonicSeparation || !cfg.TuningCorrection {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	bank, err := cfg.ProfileBank()
	if err != nil {
		t.Fatal(err)
	}
	if bank.Size() != 24 {
		t.Errorf("default bank size = %d, want 24", bank.Size())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero segment", func(c *Config) { c.SegmentLength = 0 }},
		{"negative min track", func(c *Config) { c.MinTrackLength = -1 }},
		{"unknown segmentation", func(c *Config) { c.Segmentation = "bars" }},
		{"beats without count", func(c *Config) { c.Segmentation = SegmentByBeats; c.BeatsPerSegment = 0 }},
		{"unknown weighting", func(c *Config) { c.Weighting = "c" }},
		{"silence threshold", func(c *Config) { c.SilenceThreshold = 1.5 }},
		{"unknown family", func(c *Config) { c.ProfileFamily = "mozart" }},
		{"unknown extra family", func(c *Config) { c.ExtraProfiles = []string{"temperley", "nope"} }},
		{"modulation threshold", func(c *Config) { c.ModulationThreshold = 1 }},
		{"negative workers", func(c *Config) { c.Workers = -2 }},
		{"NaN segment", func(c *Config) { c.SegmentLength = math.NaN() }},
		{"infinite segment", func(c *Config) { c.SegmentLength = math.Inf(1) }},
		{"NaN min track", func(c *Config) { c.MinTrackLength = math.NaN() }},
		{"NaN silence threshold", func(c *Config) { c.SilenceThreshold = math.NaN() }},
		{"NaN modulation threshold", func(c *Config) { c.ModulationThreshold = math.NaN() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestFamilies(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProfileFamily = "Temperley"
	cfg.ExtraProfiles = []string{"bgate", "krumhansl"}
	families, err := cfg.Families()
	if err != nil {
		t.Fatal(err)
	}
	want := []tonal.ProfileFamily{tonal.Temperley, tonal.Bellman, tonal.Krumhansl}
	if len(families) != len(want) {
		t.Fatalf("Families() = %v, want %v", families, want)
	}
	for i := range want {
		if families[i] != want[i] {
			t.Errorf("Families()[%d] = %s, want %s", i, families[i], want[i])
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"segment_length_s": 12, "profile_family": "bellman", "use_harmonic_separation": false}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SegmentLength != 12 || cfg.ProfileFamily != "bellman" || cfg.HarmonicSeparation {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if !cfg.TuningCorrection || cfg.ModulationThreshold != 0.20 {
		t.Errorf("defaults lost: %+v", cfg)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"segmentation": "bars"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load(bad) = %v, want ErrInvalidConfig", err)
	}

	if _, err := Load(filepath.Join(dir, "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load(missing) = %v, want ErrNotExist", err)
	}

	broken := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(broken, []byte(`{`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(broken); err == nil {
		t.Error("expected parse error")
	}
}

func TestDigest(t *testing.T) {
	base := DefaultConfig()
	if base.Digest() != DefaultConfig().Digest() {
		t.Fatal("digest not stable")
	}
	if len(base.Digest()) != 16 {
		t.Errorf("expected 16 hex chars, got %q", base.Digest())
	}

	workers := DefaultConfig()
	workers.Workers = 7
	if workers.Digest() != base.Digest() {
		t.Error("worker count should not change the digest")
	}

	other := DefaultConfig()
	other.SegmentLength = 10
	if other.Digest() == base.Digest() {
		t.Error("segment length should change the digest")
	}
}
