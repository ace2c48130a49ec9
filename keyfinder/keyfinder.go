// Package keyfinder estimates the musical key of a whole track by cutting it
// into segments, matching each segment's chroma against tonal profiles and
// voting across segments.
package keyfinder

import (
	"context"
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-clave/algorithms/chroma"
	"github.com/RyanBlaney/sonido-clave/algorithms/common"
	"github.com/RyanBlaney/sonido-clave/algorithms/filters"
	"github.com/RyanBlaney/sonido-clave/algorithms/spectral"
	"github.com/RyanBlaney/sonido-clave/algorithms/temporal"
	"github.com/RyanBlaney/sonido-clave/algorithms/tonal"
	"github.com/RyanBlaney/sonido-clave/keyfinder/config"
	"github.com/RyanBlaney/sonido-clave/logging"
)

// dcCutoff is the high-pass corner, in Hz, of the DC blocker.
const dcCutoff = 10.0

// Analyzer runs key estimation with a fixed configuration. It holds no
// per-track state and is safe for concurrent use.
type Analyzer struct {
	config    config.Config
	bank      *tonal.ProfileBank
	weighting spectral.WeightingType
	tracker   *temporal.BeatTracker
	logger    logging.Logger
}

// New validates cfg and prepares the profile bank.
func New(cfg config.Config) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bank, err := cfg.ProfileBank()
	if err != nil {
		return nil, err
	}
	weighting, err := spectral.ParseWeighting(cfg.Weighting)
	if err != nil {
		return nil, err
	}

	a := &Analyzer{
		config:    cfg,
		bank:      bank,
		weighting: weighting,
		logger: logging.WithFields(logging.Fields{
			"component": "keyfinder",
		}),
	}
	if cfg.Segmentation == config.SegmentByBeats {
		if a.tracker, err = temporal.NewBeatTracker(temporal.DefaultBeatTrackerConfig()); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Config returns the analyzer's configuration.
func (a *Analyzer) Config() config.Config {
	return a.config
}

// SetLogger replaces the analyzer's logger.
func (a *Analyzer) SetLogger(logger logging.Logger) {
	a.logger = logger
}

// EstimateKey analyzes one mono waveform. The waveform is not modified.
// Segments that are silent or yield an invalid chroma vector are skipped;
// if none remain the error wraps ErrNoAnalyzableAudio. ctx is checked
// between segments.
func (a *Analyzer) EstimateKey(ctx context.Context, waveform []float64, sampleRate int) (*KeyEstimate, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive: %d", sampleRate)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := a.logger.WithContext(ctx).WithFields(logging.Fields{
		"function":    "EstimateKey",
		"sample_rate": sampleRate,
		"samples":     len(waveform),
	})

	duration := float64(len(waveform)) / float64(sampleRate)
	if len(waveform) == 0 || common.MaxAbs(waveform) < a.config.SilenceThreshold {
		return nil, fmt.Errorf("track is silent: %w", ErrNoAnalyzableAudio)
	}
	if !common.IsFinite(waveform) {
		return nil, fmt.Errorf("waveform contains NaN or Inf samples")
	}

	var signal []float64
	if a.config.RemoveDC {
		signal = filters.NewDCRemovalWithCutoff(sampleRate, dcCutoff).ProcessBuffer(waveform)
	} else {
		signal = append([]float64(nil), waveform...)
	}

	tuning := 0.0
	if a.config.TuningCorrection {
		var err error
		if tuning, err = chroma.EstimateTuning(signal, sampleRate); err != nil {
			return nil, fmt.Errorf("tuning estimation: %w", err)
		}
		logger.Debug("Estimated tuning", logging.Fields{"tuning_offset": tuning})
	}

	opts := chroma.DefaultOptions()
	opts.TuningOffset = tuning
	opts.HarmonicSeparation = a.config.HarmonicSeparation
	opts.Weighting = a.weighting
	opts.SilenceThreshold = a.config.SilenceThreshold
	extractor, err := chroma.NewExtractor(sampleRate, opts)
	if err != nil {
		return nil, err
	}

	plan, err := planSegments(signal, sampleRate, a.config, a.tracker, logger)
	if err != nil {
		return nil, fmt.Errorf("segmentation: %w", err)
	}
	if len(plan.segments) == 0 {
		return nil, fmt.Errorf("%.2fs track is shorter than %.2fs: %w", duration, a.config.MinTrackLength, ErrNoAnalyzableAudio)
	}

	results := make([]SegmentResult, 0, len(plan.segments))
	skipped := 0
	for _, seg := range plan.segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		segLogger := logger.WithFields(logging.Fields{"segment": seg.Index})
		vector, err := extractor.Extract(signal[seg.Start:seg.End])
		if err != nil {
			if errors.Is(err, ErrInsufficientSignal) {
				segLogger.Debug("Skipping segment", logging.Fields{"reason": err.Error()})
				skipped++
				continue
			}
			return nil, fmt.Errorf("segment %d: %w", seg.Index, err)
		}

		hypothesis, err := tonal.SolveKey(vector.Slice(), a.bank)
		if err != nil {
			if errors.Is(err, ErrInvalidChroma) {
				segLogger.Warn("Skipping segment with invalid chroma", logging.Fields{"reason": err.Error()})
				skipped++
				continue
			}
			return nil, fmt.Errorf("segment %d: %w", seg.Index, err)
		}

		results = append(results, SegmentResult{
			Index:  seg.Index,
			Start:  float64(seg.Start) / float64(sampleRate),
			End:    float64(seg.End) / float64(sampleRate),
			Key:    hypothesis.Key,
			Family: hypothesis.Family,
			Score:  hypothesis.Score,
			Chroma: vector,
		})
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("all %d segments skipped: %w", len(plan.segments), ErrNoAnalyzableAudio)
	}

	est, err := Aggregate(results, a.bank, AggregateOptions{
		ModulationThreshold: a.config.ModulationThreshold,
		TopCandidates:       a.config.TopCandidates,
	})
	if err != nil {
		return nil, err
	}
	est.TuningOffset = tuning
	est.Tempo = plan.tempo
	est.Segmentation = string(plan.strategy)
	est.SkippedSegments = skipped
	est.Duration = duration

	logger.Info("Key estimated", logging.Fields{
		"key":        est.DominantKey.String(),
		"camelot":    est.CamelotCode,
		"confidence": est.DominantConfidence,
		"segments":   est.SegmentCount,
		"skipped":    skipped,
	})
	return est, nil
}

// EstimateKey analyzes waveform with cfg.
func EstimateKey(ctx context.Context, waveform []float64, sampleRate int, cfg config.Config) (*KeyEstimate, error) {
	a, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return a.EstimateKey(ctx, waveform, sampleRate)
}

// AnalyzeTrack analyzes waveform with the default configuration and time
// windows of segmentLength seconds.
func AnalyzeTrack(ctx context.Context, waveform []float64, sampleRate int, segmentLength float64) (*KeyEstimate, error) {
	cfg := config.DefaultConfig()
	cfg.SegmentLength = segmentLength
	return EstimateKey(ctx, waveform, sampleRate, cfg)
}
