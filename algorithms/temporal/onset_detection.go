package temporal

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-clave/algorithms/spectral"
	"github.com/RyanBlaney/sonido-clave/algorithms/windowing"
)

// ErrSignalTooShort is returned when a signal does not span one analysis frame.
var ErrSignalTooShort = errors.New("signal too short for onset analysis")

// OnsetEnvelope is a frame-rate onset strength curve. Value i describes the
// spectral change arriving at sample i*HopSize.
type OnsetEnvelope struct {
	Values     []float64
	HopSize    int
	SampleRate int
}

// FrameRate returns envelope frames per second.
func (e *OnsetEnvelope) FrameRate() float64 {
	return float64(e.SampleRate) / float64(e.HopSize)
}

// OnsetDetection detects note/event onsets in audio signals
type OnsetDetection struct {
	windowSize   int
	hopSize      int
	spectralFlux *spectral.SpectralFlux
	stft         *spectral.STFT
	window       *windowing.Hann
}

// NewOnsetDetection creates an onset detector over a Hann-windowed STFT
// using log-compressed spectral flux.
func NewOnsetDetection(windowSize, hopSize int, compression float64) *OnsetDetection {
	return &OnsetDetection{
		windowSize:   windowSize,
		hopSize:      hopSize,
		spectralFlux: spectral.NewLogSpectralFlux(compression),
		stft:         spectral.NewSTFT(),
		window:       windowing.NewHann(windowSize, false),
	}
}

// Envelope computes the onset strength of signal. The signal is padded by
// half a window at the start so frames are centred on their hop position,
// and the first frame is compared against silence so sound present at
// sample 0 registers as an onset. A local mean is subtracted and the result
// half-wave rectified.
func (od *OnsetDetection) Envelope(signal []float64, sampleRate int) (*OnsetEnvelope, error) {
	if len(signal) < od.windowSize {
		return nil, fmt.Errorf("%w: %d samples, window %d", ErrSignalTooShort, len(signal), od.windowSize)
	}

	padded := make([]float64, len(signal)+od.windowSize/2)
	copy(padded[od.windowSize/2:], signal)

	result, err := od.stft.ComputeWithWindow(padded, od.windowSize, od.hopSize, sampleRate, od.window)
	if err != nil {
		return nil, fmt.Errorf("onset STFT: %w", err)
	}

	frames := make([][]float64, 0, len(result.Magnitude)+1)
	frames = append(frames, make([]float64, len(result.Magnitude[0])))
	frames = append(frames, result.Magnitude...)
	values := od.spectralFlux.Compute(frames)

	// ~0.1 s moving average
	radius := max(1, int(0.05*float64(sampleRate)/float64(od.hopSize)))
	values = subtractLocalMean(values, radius)

	return &OnsetEnvelope{Values: values, HopSize: od.hopSize, SampleRate: sampleRate}, nil
}

// DetectOnsets picks envelope peaks above mean + sensitivity*stddev that are
// at least minInterval seconds apart. It returns onset positions in samples.
func (od *OnsetDetection) DetectOnsets(env *OnsetEnvelope, sensitivity, minInterval float64) []int {
	if env == nil || len(env.Values) < 3 {
		return nil
	}

	mean, std := stat.MeanStdDev(env.Values, nil)
	threshold := mean + sensitivity*std
	minFrames := max(1, int(minInterval*env.FrameRate()))

	var onsets []int
	last := -minFrames
	for i, v := range env.Values {
		if v <= threshold {
			continue
		}
		if (i > 0 && v < env.Values[i-1]) || (i+1 < len(env.Values) && v < env.Values[i+1]) {
			continue
		}
		if i-last < minFrames {
			continue
		}
		onsets = append(onsets, i*env.HopSize)
		last = i
	}
	return onsets
}

func subtractLocalMean(values []float64, radius int) []float64 {
	prefix := make([]float64, len(values)+1)
	for i, v := range values {
		prefix[i+1] = prefix[i] + v
	}

	out := make([]float64, len(values))
	for i, v := range values {
		lo := max(0, i-radius)
		hi := min(len(values), i+radius+1)
		local := (prefix[hi] - prefix[lo]) / float64(hi-lo)
		out[i] = max(0, v-local)
	}
	return out
}
