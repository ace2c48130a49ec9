package windowing

import (
	"fmt"

	"github.com/mjibson/go-dsp/window"
)

// Hann represents a Hann window function.
//
// A periodic window (symmetric == false) is the right choice for STFT
// analysis/resynthesis; the CQT kernels use the symmetric form.
type Hann struct {
	size         int
	symmetric    bool
	coefficients []float64
}

// NewHann creates a new Hann window
func NewHann(size int, symmetric bool) *Hann {
	h := &Hann{
		size:      size,
		symmetric: symmetric,
	}
	h.generate()
	return h
}

func (h *Hann) generate() {
	if h.size <= 0 {
		h.coefficients = nil
		return
	}
	if h.size == 1 {
		h.coefficients = []float64{1}
		return
	}
	if h.symmetric {
		h.coefficients = window.Hann(h.size)
		return
	}
	// periodic window of N is the symmetric window of N+1 without its last sample
	h.coefficients = window.Hann(h.size + 1)[:h.size]
}

// ApplyInPlace applies the window to a signal in-place
func (h *Hann) ApplyInPlace(signal []float64) error {
	if len(signal) != h.size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), h.size)
	}

	for i, c := range h.coefficients {
		signal[i] *= c
	}

	return nil
}

// Coefficients returns the window coefficients. Callers must not modify them.
func (h *Hann) Coefficients() []float64 {
	return h.coefficients
}

// Size returns the window size
func (h *Hann) Size() int {
	return h.size
}

// SumSquare returns the overlap-added squared window for numFrames frames
// spaced hopSize apart, as needed to normalize an inverse STFT.
func (h *Hann) SumSquare(numFrames, hopSize int) []float64 {
	if numFrames <= 0 {
		return nil
	}
	out := make([]float64, h.size+(numFrames-1)*hopSize)
	for f := range numFrames {
		offset := f * hopSize
		for i, c := range h.coefficients {
			out[offset+i] += c * c
		}
	}
	return out
}
