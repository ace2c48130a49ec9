package harmonic

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-clave/algorithms/common"
	"github.com/RyanBlaney/sonido-clave/algorithms/spectral"
	"github.com/RyanBlaney/sonido-clave/algorithms/windowing"
)

// HPSSConfig parameterizes median-filtering harmonic/percussive separation
// (Fitzgerald 2010, soft masks as in Driedger et al.).
type HPSSConfig struct {
	WindowSize       int     `json:"window_size"`
	HopSize          int     `json:"hop_size"`
	HarmonicKernel   int     `json:"harmonic_kernel"`   // frames, median along time
	PercussiveKernel int     `json:"percussive_kernel"` // bins, median along frequency
	MaskPower        float64 `json:"mask_power"`
}

// DefaultHPSSConfig returns the separation settings used by the key estimator.
func DefaultHPSSConfig() HPSSConfig {
	return HPSSConfig{
		WindowSize:       2048,
		HopSize:          512,
		HarmonicKernel:   17,
		PercussiveKernel: 17,
		MaskPower:        2.0,
	}
}

// HPSS splits a signal into a sustained (harmonic) and a transient
// (percussive) component. It holds no per-signal state and is safe for
// concurrent use.
type HPSS struct {
	config HPSSConfig
	stft   *spectral.STFT
	window *windowing.Hann
}

// NewHPSS validates config and prepares the analysis window.
func NewHPSS(config HPSSConfig) (*HPSS, error) {
	if config.WindowSize <= 0 || config.HopSize <= 0 || config.HopSize > config.WindowSize {
		return nil, fmt.Errorf("invalid hpss window/hop: %d/%d", config.WindowSize, config.HopSize)
	}
	if config.HarmonicKernel < 1 || config.PercussiveKernel < 1 {
		return nil, fmt.Errorf("hpss kernels must be positive")
	}
	if config.MaskPower <= 0 {
		config.MaskPower = 2.0
	}
	return &HPSS{
		config: config,
		stft:   spectral.NewSTFT(),
		window: windowing.NewHann(config.WindowSize, false),
	}, nil
}

// Separate returns the harmonic and percussive components, each the same
// length as signal. The input is not modified.
func (h *HPSS) Separate(signal []float64, sampleRate int) (harmonic, percussive []float64, err error) {
	if len(signal) == 0 {
		return nil, nil, fmt.Errorf("empty signal")
	}

	win, hop := h.config.WindowSize, h.config.HopSize

	// center frames on the signal edges and round up to a whole hop
	pad := win / 2
	padded := len(signal) + 2*pad
	if rem := (padded - win) % hop; rem != 0 {
		padded += hop - rem
	}
	buf := make([]float64, padded)
	copy(buf[pad:], signal)

	res, err := h.stft.ComputeWithWindow(buf, win, hop, sampleRate, h.window)
	if err != nil {
		return nil, nil, fmt.Errorf("hpss analysis: %w", err)
	}

	hMask, pMask := h.Masks(res.Magnitude)

	hSpec := make([][]complex128, res.TimeFrames)
	pSpec := make([][]complex128, res.TimeFrames)
	for t, frame := range res.Complex {
		hSpec[t] = make([]complex128, len(frame))
		pSpec[t] = make([]complex128, len(frame))
		for k, v := range frame {
			hSpec[t][k] = v * complex(hMask[t][k], 0)
			pSpec[t][k] = v * complex(pMask[t][k], 0)
		}
	}

	hFull, err := h.stft.Inverse(hSpec, win, hop, padded, h.window)
	if err != nil {
		return nil, nil, fmt.Errorf("hpss harmonic synthesis: %w", err)
	}
	pFull, err := h.stft.Inverse(pSpec, win, hop, padded, h.window)
	if err != nil {
		return nil, nil, fmt.Errorf("hpss percussive synthesis: %w", err)
	}

	harmonic = append([]float64(nil), hFull[pad:pad+len(signal)]...)
	percussive = append([]float64(nil), pFull[pad:pad+len(signal)]...)
	return harmonic, percussive, nil
}

// Harmonic is Separate without the percussive part.
func (h *HPSS) Harmonic(signal []float64, sampleRate int) ([]float64, error) {
	harmonic, _, err := h.Separate(signal, sampleRate)
	return harmonic, err
}

// Masks computes soft Wiener-style masks from a magnitude spectrogram
// (time x frequency). The two masks sum to one in every cell.
func (h *HPSS) Masks(magnitude [][]float64) (harmonicMask, percussiveMask [][]float64) {
	frames := len(magnitude)
	if frames == 0 {
		return nil, nil
	}
	bins := len(magnitude[0])

	harmonicEnh := make([][]float64, frames)
	percussiveEnh := make([][]float64, frames)

	// percussive: median across frequency inside each frame
	for t := range frames {
		percussiveEnh[t] = common.MedianFilter(nil, magnitude[t], h.config.PercussiveKernel)
		harmonicEnh[t] = make([]float64, bins)
	}

	// harmonic: median across time inside each bin
	column := make([]float64, frames)
	filtered := make([]float64, frames)
	for k := range bins {
		for t := range frames {
			column[t] = magnitude[t][k]
		}
		filtered = common.MedianFilter(filtered, column, h.config.HarmonicKernel)
		for t := range frames {
			harmonicEnh[t][k] = filtered[t]
		}
	}

	harmonicMask = make([][]float64, frames)
	percussiveMask = make([][]float64, frames)
	p := h.config.MaskPower
	for t := range frames {
		harmonicMask[t] = make([]float64, bins)
		percussiveMask[t] = make([]float64, bins)
		for k := range bins {
			hp := math.Pow(harmonicEnh[t][k], p)
			pp := math.Pow(percussiveEnh[t][k], p)
			total := hp + pp
			if total < 1e-20 {
				harmonicMask[t][k] = 0.5
				percussiveMask[t][k] = 0.5
				continue
			}
			harmonicMask[t][k] = hp / total
			percussiveMask[t][k] = pp / total
		}
	}
	return harmonicMask, percussiveMask
}
