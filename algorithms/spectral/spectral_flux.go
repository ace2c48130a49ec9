package spectral

import (
	"math"
)

// SpectralFlux computes spectral flux (measure of spectral change)
type SpectralFlux struct {
	// compression is the gamma of log(1 + gamma*|X|); zero disables it.
	compression float64
}

// NewSpectralFlux creates a new spectral flux calculator
func NewSpectralFlux() *SpectralFlux {
	return &SpectralFlux{}
}

// NewLogSpectralFlux creates a flux calculator working on log-compressed
// magnitudes, which keeps quiet onsets visible next to loud ones.
func NewLogSpectralFlux(compression float64) *SpectralFlux {
	return &SpectralFlux{compression: compression}
}

// Compute calculates the half-wave rectified spectral flux for a spectrogram.
// The result has one value per frame transition (len(spectrogram)-1).
func (sf *SpectralFlux) Compute(spectrogram [][]float64) []float64 {
	if len(spectrogram) < 2 {
		return []float64{}
	}

	flux := make([]float64, len(spectrogram)-1)

	prev := sf.compress(spectrogram[0], nil)
	cur := make([]float64, len(prev))
	for t := 1; t < len(spectrogram); t++ {
		cur = sf.compress(spectrogram[t], cur)
		sum := 0.0
		for f := range cur {
			diff := cur[f] - prev[f]
			if diff > 0 { // only energy increases
				sum += diff * diff
			}
		}
		flux[t-1] = math.Sqrt(sum)
		prev, cur = cur, prev
	}

	return flux
}

func (sf *SpectralFlux) compress(frame, dst []float64) []float64 {
	if len(dst) != len(frame) {
		dst = make([]float64, len(frame))
	}
	for i, v := range frame {
		if sf.compression > 0 {
			dst[i] = math.Log1p(sf.compression * v)
		} else {
			dst[i] = v
		}
	}
	return dst
}
