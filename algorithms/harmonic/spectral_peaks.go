package harmonic

import (
	"math"
	"sort"

	"github.com/RyanBlaney/sonido-clave/algorithms/common"
)

// SpectralPeak represents a detected spectral peak
type SpectralPeak struct {
	Frequency float64 // Interpolated peak frequency in Hz
	Magnitude float64 // Interpolated peak magnitude
	BinIndex  int     // Original FFT bin index
}

// SpectralPeaks finds the prominent local maxima of a magnitude spectrum
// inside a frequency band.
type SpectralPeaks struct {
	sampleRate        int
	minFreq           float64
	maxFreq           float64
	relativeThreshold float64 // fraction of the frame maximum a peak must reach
	maxPeaks          int
}

// NewSpectralPeaks creates a new spectral peaks analyzer
func NewSpectralPeaks(sampleRate int, minFreq, maxFreq, relativeThreshold float64, maxPeaks int) *SpectralPeaks {
	return &SpectralPeaks{
		sampleRate:        sampleRate,
		minFreq:           minFreq,
		maxFreq:           maxFreq,
		relativeThreshold: relativeThreshold,
		maxPeaks:          maxPeaks,
	}
}

// DetectPeaks returns the strongest peaks of one frame, sorted by magnitude
// (descending). Peak positions are refined by parabolic interpolation on the
// log magnitude.
func (sp *SpectralPeaks) DetectPeaks(magnitudeSpectrum []float64, windowSize int) []SpectralPeak {
	if len(magnitudeSpectrum) < 3 || windowSize <= 0 {
		return nil
	}

	freqResolution := float64(sp.sampleRate) / float64(windowSize)
	lo := max(1, int(math.Floor(sp.minFreq/freqResolution)))
	hi := min(len(magnitudeSpectrum)-2, int(math.Ceil(sp.maxFreq/freqResolution)))
	if lo > hi {
		return nil
	}

	frameMax := 0.0
	for i := lo; i <= hi; i++ {
		frameMax = math.Max(frameMax, magnitudeSpectrum[i])
	}
	if frameMax <= 1e-12 {
		return nil
	}
	threshold := frameMax * sp.relativeThreshold

	var peaks []SpectralPeak
	for i := lo; i <= hi; i++ {
		m := magnitudeSpectrum[i]
		if m < threshold || m <= magnitudeSpectrum[i-1] || m < magnitudeSpectrum[i+1] {
			continue
		}

		logMag := []float64{
			math.Log(magnitudeSpectrum[i-1] + 1e-12),
			math.Log(m + 1e-12),
			math.Log(magnitudeSpectrum[i+1] + 1e-12),
		}
		offset, height := common.ParabolicPeak(logMag, 1)

		peaks = append(peaks, SpectralPeak{
			Frequency: (float64(i) + offset) * freqResolution,
			Magnitude: math.Exp(height),
			BinIndex:  i,
		})
	}

	sort.Slice(peaks, func(i, j int) bool {
		return peaks[i].Magnitude > peaks[j].Magnitude
	})

	if sp.maxPeaks > 0 && len(peaks) > sp.maxPeaks {
		peaks = peaks[:sp.maxPeaks]
	}

	return peaks
}
