package chroma

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-clave/algorithms/common"
	"github.com/RyanBlaney/sonido-clave/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-clave/algorithms/spectral"
)

// ErrInsufficientSignal is returned for segments that are empty, near-silent,
// or carry no energy inside the analyzed pitch range.
var ErrInsufficientSignal = errors.New("insufficient signal")

// DefaultSilenceThreshold is the peak amplitude below which a segment is
// treated as silence.
const DefaultSilenceThreshold = 0.02

// Options configures an Extractor.
type Options struct {
	TuningOffset       float64                `json:"tuning_offset"`       // fractional semitones
	HarmonicSeparation bool                   `json:"harmonic_separation"` // drop the percussive component first
	Weighting          spectral.WeightingType `json:"weighting"`
	SilenceThreshold   float64                `json:"silence_threshold"`
	CQT                CQTConfig              `json:"cqt"`
	HPSS               harmonic.HPSSConfig    `json:"hpss"`
}

// DefaultOptions enables harmonic separation without tuning correction or weighting.
func DefaultOptions() Options {
	return Options{
		HarmonicSeparation: true,
		Weighting:          spectral.WeightingNone,
		SilenceThreshold:   DefaultSilenceThreshold,
		CQT:                DefaultCQTConfig(),
		HPSS:               harmonic.DefaultHPSSConfig(),
	}
}

// Extractor turns waveform segments into chroma vectors. Build one per track
// (the CQT kernels depend on sample rate and tuning) and reuse it for every
// segment; it is safe for concurrent use.
type Extractor struct {
	sampleRate int
	opts       Options
	cqt        *ChromaCQT
	hpss       *harmonic.HPSS
}

// NewExtractor prepares the transforms for sampleRate.
func NewExtractor(sampleRate int, opts Options) (*Extractor, error) {
	if opts.SilenceThreshold < 0 {
		return nil, fmt.Errorf("silence threshold must not be negative: %v", opts.SilenceThreshold)
	}

	cqtConfig := opts.CQT
	cqtConfig.TuningOffset = opts.TuningOffset
	cqtConfig.Weighting = opts.Weighting
	cqt, err := NewChromaCQT(sampleRate, cqtConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build cqt: %w", err)
	}

	e := &Extractor{
		sampleRate: sampleRate,
		opts:       opts,
		cqt:        cqt,
	}
	if opts.HarmonicSeparation {
		if e.hpss, err = harmonic.NewHPSS(opts.HPSS); err != nil {
			return nil, fmt.Errorf("failed to build hpss: %w", err)
		}
	}
	return e, nil
}

// Chromagram returns the per-frame, unnormalized chroma of segment after the
// optional harmonic separation.
func (e *Extractor) Chromagram(segment []float64) ([][]float64, error) {
	if len(segment) == 0 {
		return nil, fmt.Errorf("empty segment: %w", ErrInsufficientSignal)
	}
	if peak := common.MaxAbs(segment); peak < e.opts.SilenceThreshold {
		return nil, fmt.Errorf("peak amplitude %.4f below %.4f: %w", peak, e.opts.SilenceThreshold, ErrInsufficientSignal)
	}

	signal := segment
	if e.hpss != nil {
		harmonicPart, err := e.hpss.Harmonic(segment, e.sampleRate)
		if err != nil {
			return nil, fmt.Errorf("harmonic separation: %w", err)
		}
		signal = harmonicPart
	}

	return e.cqt.ComputeChroma(signal)
}

// Extract returns the chroma vector of segment: the per-pitch-class median
// over time, divided by its maximum so the largest entry is 1.
func (e *Extractor) Extract(segment []float64) (Vector, error) {
	chromagram, err := e.Chromagram(segment)
	if err != nil {
		return Vector{}, err
	}

	normalized, ok := medianFrames(chromagram).Normalized()
	if !ok {
		return Vector{}, fmt.Errorf("no pitched energy in segment: %w", ErrInsufficientSignal)
	}
	return normalized, nil
}

// SampleRate returns the rate the extractor was built for.
func (e *Extractor) SampleRate() int {
	return e.sampleRate
}

// Extract is a one-shot convenience wrapper around NewExtractor and
// (*Extractor).Extract using the default transform settings.
func Extract(segment []float64, sampleRate int, tuningOffset float64, harmonicSeparation bool) (Vector, error) {
	opts := DefaultOptions()
	opts.TuningOffset = tuningOffset
	opts.HarmonicSeparation = harmonicSeparation

	e, err := NewExtractor(sampleRate, opts)
	if err != nil {
		return Vector{}, err
	}
	return e.Extract(segment)
}
