package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/RyanBlaney/sonido-clave/algorithms/spectral"
	"github.com/RyanBlaney/sonido-clave/algorithms/tonal"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid key estimation config")

// Segmentation selects how a track is cut into analysis windows.
type Segmentation string

const (
	SegmentByTime  Segmentation = "time"
	SegmentByBeats Segmentation = "beats"
)

// Config controls a key estimation run.
type Config struct {
	// Segmentation
	SegmentLength   float64      `json:"segment_length_s"`
	MinTrackLength  float64      `json:"min_track_s"`
	Segmentation    Segmentation `json:"segmentation"` // "time", "beats"
	BeatsPerSegment int          `json:"beats_per_segment"`

	// Chroma extraction
	HarmonicSeparation bool    `json:"use_harmonic_separation"`
	TuningCorrection   bool    `json:"tuning_correction"`
	RemoveDC           bool    `json:"remove_dc"`
	Weighting          string  `json:"weighting"` // "none", "a"
	SilenceThreshold   float64 `json:"silence_threshold"`

	// Matching
	ProfileFamily string   `json:"profile_family"`
	ExtraProfiles []string `json:"extra_profiles,omitempty"`
	ModalProfiles bool     `json:"modal_profiles"`

	// Aggregation
	ModulationThreshold float64 `json:"modulation_threshold"`
	TopCandidates       int     `json:"top_candidates"`

	// Batch analysis; 0 means one worker per CPU
	Workers int `json:"workers"`
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() Config {
	return Config{
		SegmentLength:       8.0,
		MinTrackLength:      2.0,
		Segmentation:        SegmentByTime,
		BeatsPerSegment:     16,
		HarmonicSeparation:  true,
		TuningCorrection:    true,
		RemoveDC:            true,
		Weighting:           string(spectral.WeightingNone),
		SilenceThreshold:    0.02,
		ProfileFamily:       string(tonal.Krumhansl),
		ModulationThreshold: 0.20,
		TopCandidates:       3,
	}
}

// Validate checks ranges and enum values.
func (c Config) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"segment_length_s", c.SegmentLength},
		{"min_track_s", c.MinTrackLength},
		{"silence_threshold", c.SilenceThreshold},
		{"modulation_threshold", c.ModulationThreshold},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s must be finite, got %v", ErrInvalidConfig, f.name, f.value)
		}
	}
	if c.SegmentLength <= 0 {
		return fmt.Errorf("%w: segment_length_s must be positive, got %v", ErrInvalidConfig, c.SegmentLength)
	}
	if c.MinTrackLength <= 0 {
		return fmt.Errorf("%w: min_track_s must be positive, got %v", ErrInvalidConfig, c.MinTrackLength)
	}
	switch c.Segmentation {
	case SegmentByTime:
	case SegmentByBeats:
		if c.BeatsPerSegment < 1 {
			return fmt.Errorf("%w: beats_per_segment must be at least 1", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown segmentation %q", ErrInvalidConfig, c.Segmentation)
	}
	if _, err := spectral.ParseWeighting(c.Weighting); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.SilenceThreshold < 0 || c.SilenceThreshold >= 1 {
		return fmt.Errorf("%w: silence_threshold must be in [0, 1), got %v", ErrInvalidConfig, c.SilenceThreshold)
	}
	if _, err := c.Families(); err != nil {
		return err
	}
	if c.ModulationThreshold < 0 || c.ModulationThreshold >= 1 {
		return fmt.Errorf("%w: modulation_threshold must be in [0, 1), got %v", ErrInvalidConfig, c.ModulationThreshold)
	}
	if c.TopCandidates < 0 {
		return fmt.Errorf("%w: top_candidates must not be negative", ErrInvalidConfig)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Families resolves the primary and extra profile families, primary first.
func (c Config) Families() ([]tonal.ProfileFamily, error) {
	names := append([]string{c.ProfileFamily}, c.ExtraProfiles...)
	families := make([]tonal.ProfileFamily, 0, len(names))
	for _, name := range names {
		family, err := tonal.ParseProfileFamily(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		families = append(families, family)
	}
	return families, nil
}

// ProfileBank builds the matcher's profile bank.
func (c Config) ProfileBank() (*tonal.ProfileBank, error) {
	families, err := c.Families()
	if err != nil {
		return nil, err
	}
	return tonal.NewProfileBank(families, c.ModalProfiles)
}

// Load reads a JSON file and overlays it on DefaultConfig. Fields missing
// from the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Digest identifies the settings that affect analysis results. Workers is
// excluded since it only changes scheduling.
func (c Config) Digest() string {
	c.Workers = 0
	data, _ := json.Marshal(c)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
