package chroma

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-clave/algorithms/common"
	"github.com/RyanBlaney/sonido-clave/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-clave/algorithms/spectral"
	"github.com/RyanBlaney/sonido-clave/algorithms/windowing"
)

const (
	tuningMinFreq       = 80.0
	tuningMaxFreq       = 2000.0
	tuningPeakFloor     = 0.1 // peaks weaker than this fraction of the frame max are ignored
	tuningPeaksPerFrame = 20
	tuningMaxFrames     = 256
	tuningBins          = 100 // one cent per bin
)

// EstimateTuning measures how far the recording's pitch reference sits from
// A4 = 440 Hz, in fractional semitones within [-0.5, 0.5). Spectral peaks are
// located with sub-bin precision and their deviation from the nearest
// equal-tempered semitone is accumulated in a magnitude-weighted histogram.
// A signal without usable peaks reports 0.
func EstimateTuning(signal []float64, sampleRate int) (float64, error) {
	if sampleRate <= 0 {
		return 0, fmt.Errorf("sample rate must be positive: %d", sampleRate)
	}

	// ~0.37 s frames resolve semitones down to the bottom of the band
	windowSize := common.NextPowerOfTwo(int(0.37 * float64(sampleRate)))
	if len(signal) < windowSize {
		return 0, nil
	}

	hop := windowSize
	if frames := (len(signal)-windowSize)/hop + 1; frames > tuningMaxFrames {
		hop = (len(signal) - windowSize) / (tuningMaxFrames - 1)
	}

	res, err := spectral.NewSTFT().ComputeWithWindow(signal, windowSize, hop, sampleRate, windowing.NewHann(windowSize, false))
	if err != nil {
		return 0, fmt.Errorf("tuning analysis: %w", err)
	}

	picker := harmonic.NewSpectralPeaks(sampleRate, tuningMinFreq, tuningMaxFreq, tuningPeakFloor, tuningPeaksPerFrame)

	type observation struct {
		deviation, weight float64
	}
	var observations []observation
	histogram := make([]float64, tuningBins)

	for _, frame := range res.Magnitude {
		for _, peak := range picker.DetectPeaks(frame, windowSize) {
			midi := 69 + 12*math.Log2(peak.Frequency/440.0)
			deviation := midi - math.Round(midi)
			bin := min(tuningBins-1, max(0, int((deviation+0.5)*tuningBins)))
			histogram[bin] += peak.Magnitude
			observations = append(observations, observation{deviation, peak.Magnitude})
		}
	}
	if len(observations) == 0 {
		return 0, nil
	}

	// the deviation axis wraps: +0.5 and -0.5 semitones are the same tuning
	best, bestWeight := 0, -1.0
	for i := range histogram {
		w := 0.0
		for k := -2; k <= 2; k++ {
			w += histogram[(i+k+tuningBins)%tuningBins]
		}
		if w > bestWeight {
			best, bestWeight = i, w
		}
	}

	// refine with the weighted mean of the observations around the mode
	center := (float64(best)+0.5)/tuningBins - 0.5
	var sum, weight float64
	for _, o := range observations {
		d := wrapSemitone(o.deviation - center)
		if math.Abs(d) <= 2.5/tuningBins {
			sum += d * o.weight
			weight += o.weight
		}
	}
	if weight > 0 {
		center += sum / weight
	}
	return wrapSemitone(center), nil
}

// wrapSemitone maps x onto [-0.5, 0.5).
func wrapSemitone(x float64) float64 {
	return x - math.Floor(x+0.5)
}
