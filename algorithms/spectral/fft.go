package spectral

import (
	"github.com/mjibson/go-dsp/fft"
)

// FFT provides Fast Fourier Transform functionality backed by go-dsp.
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute returns the full complex spectrum of a real signal.
// go-dsp handles non power-of-two sizes through Bluestein's algorithm.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

// ComputeComplex returns the spectrum of a complex signal.
func (f *FFT) ComputeComplex(x []complex128) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFT(x)
}

// ComputeInverseReal computes inverse FFT and returns real part only
func (f *FFT) ComputeInverseReal(x []complex128) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	result := fft.IFFT(x)
	realResult := make([]float64, len(result))
	for i, val := range result {
		realResult[i] = real(val)
	}
	return realResult
}

// InverseHalfSpectrum rebuilds a real frame of length n from its n/2+1
// non-negative frequency bins using Hermitian symmetry.
func (f *FFT) InverseHalfSpectrum(half []complex128, n int) []float64 {
	full := make([]complex128, n)
	copy(full, half)
	for k := 1; k < (n+1)/2; k++ {
		v := half[k]
		full[n-k] = complex(real(v), -imag(v))
	}
	return f.ComputeInverseReal(full)
}
