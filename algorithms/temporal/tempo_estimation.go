package temporal

import (
	"errors"
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-clave/algorithms/common"
	"github.com/RyanBlaney/sonido-clave/algorithms/stats"
)

// ErrNoTempo is returned when no periodic pulse can be found.
var ErrNoTempo = errors.New("no tempo found")

// BeatTrackerConfig holds the beat tracker parameters.
type BeatTrackerConfig struct {
	WindowSize  int     `json:"window_size"`
	HopSize     int     `json:"hop_size"`
	Compression float64 `json:"compression"`
	MinBPM      float64 `json:"min_bpm"`
	MaxBPM      float64 `json:"max_bpm"`
	// PriorBPM and PriorWidth (octaves) shape the log-Gaussian tempo prior.
	PriorBPM   float64 `json:"prior_bpm"`
	PriorWidth float64 `json:"prior_width"`
	// MinStrength is the lowest normalized autocorrelation accepted as a pulse.
	MinStrength float64 `json:"min_strength"`
}

// DefaultBeatTrackerConfig returns parameters suited to popular music at
// 22.05-48 kHz.
func DefaultBeatTrackerConfig() BeatTrackerConfig {
	return BeatTrackerConfig{
		WindowSize:  1024,
		HopSize:     256,
		Compression: 100,
		MinBPM:      60,
		MaxBPM:      200,
		PriorBPM:    120,
		PriorWidth:  1.0,
		MinStrength: 0.1,
	}
}

// BeatGrid is an isochronous beat grid.
type BeatGrid struct {
	BPM float64 `json:"bpm"`
	// Beats are sample positions, ascending.
	Beats []int `json:"beats"`
	// Strength is the autocorrelation at the beat period, in [0, 1].
	Strength float64 `json:"strength"`
}

// BeatTracker estimates a global tempo and beat phase.
type BeatTracker struct {
	config BeatTrackerConfig
	onsets *OnsetDetection
}

// NewBeatTracker creates a beat tracker.
func NewBeatTracker(config BeatTrackerConfig) (*BeatTracker, error) {
	if config.WindowSize <= 0 || config.HopSize <= 0 || config.HopSize > config.WindowSize {
		return nil, fmt.Errorf("invalid beat tracker frame %d/%d", config.WindowSize, config.HopSize)
	}
	if config.MinBPM <= 0 || config.MaxBPM <= config.MinBPM {
		return nil, fmt.Errorf("invalid tempo range %.1f-%.1f BPM", config.MinBPM, config.MaxBPM)
	}
	if config.PriorBPM <= 0 || config.PriorWidth <= 0 {
		return nil, fmt.Errorf("invalid tempo prior %.1f BPM, width %.2f", config.PriorBPM, config.PriorWidth)
	}
	return &BeatTracker{
		config: config,
		onsets: NewOnsetDetection(config.WindowSize, config.HopSize, config.Compression),
	}, nil
}

// Track estimates the beat grid of signal.
func (bt *BeatTracker) Track(signal []float64, sampleRate int) (*BeatGrid, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	env, err := bt.onsets.Envelope(signal, sampleRate)
	if err != nil {
		if errors.Is(err, ErrSignalTooShort) {
			return nil, fmt.Errorf("%w: %v", ErrNoTempo, err)
		}
		return nil, err
	}

	if len(bt.onsets.DetectOnsets(env, 1.0, 60/bt.config.MaxBPM)) < 4 {
		return nil, fmt.Errorf("%w: too few onsets", ErrNoTempo)
	}

	period, strength, err := bt.estimatePeriod(env)
	if err != nil {
		return nil, err
	}

	phase := bestPhase(env.Values, period)
	grid := &BeatGrid{
		BPM:      60 * env.FrameRate() / period,
		Strength: strength,
	}
	for f := phase; f < float64(len(env.Values)); f += period {
		pos := int(math.Round(f * float64(env.HopSize)))
		if pos >= len(signal) {
			break
		}
		grid.Beats = append(grid.Beats, pos)
	}
	return grid, nil
}

// estimatePeriod returns the beat period in envelope frames.
func (bt *BeatTracker) estimatePeriod(env *OnsetEnvelope) (float64, float64, error) {
	rate := env.FrameRate()
	minLag := int(math.Floor(60 * rate / bt.config.MaxBPM))
	maxLag := int(math.Ceil(60 * rate / bt.config.MinBPM))
	if len(env.Values) < 2*maxLag {
		return 0, 0, fmt.Errorf("%w: %d frames cannot span two slow beats", ErrNoTempo, len(env.Values))
	}

	// one extra lag each side so the endpoints can be refined
	lo := max(1, minLag-1)
	acf := stats.Autocorrelation(env.Values, lo, maxLag+1)
	weighted := make([]float64, len(acf))
	for i, r := range acf {
		bpm := 60 * rate / float64(lo+i)
		octaves := math.Log2(bpm/bt.config.PriorBPM) / bt.config.PriorWidth
		weighted[i] = max(0, r) * math.Exp(-0.5*octaves*octaves)
	}

	best := -1
	for i := range weighted {
		lag := lo + i
		if lag < minLag || lag > maxLag {
			continue
		}
		if best < 0 || weighted[i] > weighted[best] {
			best = i
		}
	}
	if best < 0 || acf[best] < bt.config.MinStrength {
		return 0, 0, fmt.Errorf("%w: no periodicity above %.2f", ErrNoTempo, bt.config.MinStrength)
	}

	offset, _ := common.ParabolicPeak(weighted, best)
	return float64(lo+best) + offset, acf[best], nil
}

// bestPhase returns the grid offset, in frames within [0, period), whose
// beats collect the most onset strength.
func bestPhase(values []float64, period float64) float64 {
	bestScore, best := -1.0, 0.0
	for phase := 0; float64(phase) < period; phase++ {
		score := 0.0
		for f := float64(phase); f < float64(len(values)); f += period {
			score += values[int(math.Round(f))%len(values)]
		}
		if score > bestScore {
			bestScore, best = score, float64(phase)
		}
	}
	return best
}
