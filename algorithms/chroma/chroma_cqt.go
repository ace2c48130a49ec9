package chroma

import (
	"fmt"
	"math"
	"math/cmplx"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-clave/algorithms/common"
	"github.com/RyanBlaney/sonido-clave/algorithms/spectral"
	"github.com/RyanBlaney/sonido-clave/algorithms/windowing"
)

const (
	// C0Frequency is the reference C used for pitch-class folding (A4 = 440 Hz).
	C0Frequency = 16.351597831287414
	// C2Frequency is the default lowest analyzed note.
	C2Frequency = C0Frequency * 4

	// nyquistGuard keeps the top CQT bin clear of the anti-aliasing roll-off.
	nyquistGuard = 0.45
)

// CQTConfig describes the constant-Q filter bank.
type CQTConfig struct {
	MinFreq           float64                `json:"min_freq"`           // nominal lowest note, Hz
	Octaves           int                    `json:"octaves"`            // octaves above MinFreq
	BinsPerOctave     int                    `json:"bins_per_octave"`    // multiple of 12
	FilterScale       float64                `json:"filter_scale"`       // scales Q (1 = one bin bandwidth)
	SparsityThreshold float64                `json:"sparsity_threshold"` // relative kernel magnitude kept
	HopSize           int                    `json:"hop_size"`           // 0 = fftSize/8
	TuningOffset      float64                `json:"tuning_offset"`      // fractional semitones
	Weighting         spectral.WeightingType `json:"weighting"`
}

// DefaultCQTConfig returns 36 bins per octave over five octaves from C2.
func DefaultCQTConfig() CQTConfig {
	return CQTConfig{
		MinFreq:           C2Frequency,
		Octaves:           5,
		BinsPerOctave:     36,
		FilterScale:       1.0,
		SparsityThreshold: 0.01,
		Weighting:         spectral.WeightingNone,
	}
}

// sparseKernel is the conjugated, 1/N-scaled spectrum of one CQT atom,
// restricted to the contiguous band where it is significant.
type sparseKernel struct {
	start  int
	coeffs []complex128
}

// ChromaCQT computes a constant-Q spectrogram with the Brown-Puckette
// spectral-kernel method and folds it onto the 12 pitch classes.
// Kernels are built once by NewChromaCQT; afterwards the value is read-only
// and safe for concurrent use.
type ChromaCQT struct {
	sampleRate  int
	config      CQTConfig
	fftSize     int
	hopSize     int
	frequencies []float64
	pitchClass  []int
	gains       []float64
	kernels     []sparseKernel
	fft         *spectral.FFT
}

// NewChromaCQT builds the kernel bank for sampleRate.
func NewChromaCQT(sampleRate int, config CQTConfig) (*ChromaCQT, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive: %d", sampleRate)
	}
	if config.BinsPerOctave <= 0 || config.BinsPerOctave%12 != 0 {
		return nil, fmt.Errorf("bins per octave must be a positive multiple of 12: %d", config.BinsPerOctave)
	}
	if config.MinFreq <= 0 || config.Octaves <= 0 {
		return nil, fmt.Errorf("invalid cqt range: %.2f Hz over %d octaves", config.MinFreq, config.Octaves)
	}
	if config.FilterScale <= 0 {
		config.FilterScale = 1.0
	}
	if config.SparsityThreshold < 0 || config.SparsityThreshold >= 1 {
		return nil, fmt.Errorf("sparsity threshold out of range: %v", config.SparsityThreshold)
	}

	binsPerSemitone := config.BinsPerOctave / 12
	tuningRatio := math.Pow(2, config.TuningOffset/12)

	// center each semitone's bins on the note: shift down by half the extra bins
	fmin := config.MinFreq * tuningRatio * math.Pow(2, -float64(binsPerSemitone-1)/2/float64(config.BinsPerOctave))

	octaves := config.Octaves
	usable := int(math.Floor(math.Log2(nyquistGuard * float64(sampleRate) / fmin)))
	octaves = min(octaves, usable)
	if octaves < 1 {
		return nil, fmt.Errorf("sample rate %d too low for a cqt starting at %.2f Hz", sampleRate, fmin)
	}

	numBins := octaves * config.BinsPerOctave
	q := config.FilterScale / (math.Pow(2, 1/float64(config.BinsPerOctave)) - 1)

	c0 := C0Frequency * tuningRatio
	cqt := &ChromaCQT{
		sampleRate:  sampleRate,
		config:      config,
		frequencies: make([]float64, numBins),
		pitchClass:  make([]int, numBins),
		gains:       make([]float64, numBins),
		kernels:     make([]sparseKernel, numBins),
		fft:         spectral.NewFFT(),
	}
	for k := range numBins {
		f := fmin * math.Pow(2, float64(k)/float64(config.BinsPerOctave))
		cqt.frequencies[k] = f
		cqt.pitchClass[k] = foldPitchClass(f, c0)
		cqt.gains[k] = config.Weighting.PowerGain(f)
	}

	longest := int(math.Ceil(q * float64(sampleRate) / fmin))
	cqt.fftSize = common.NextPowerOfTwo(longest)
	cqt.hopSize = config.HopSize
	if cqt.hopSize <= 0 {
		cqt.hopSize = cqt.fftSize / 8
	}

	cqt.buildKernels(q)
	return cqt, nil
}

// foldPitchClass maps a frequency to round(12*log2(f/c0)) mod 12.
func foldPitchClass(freq, c0 float64) int {
	semitones := int(math.Round(12 * math.Log2(freq/c0)))
	return ((semitones % 12) + 12) % 12
}

// buildKernels computes every atom's spectrum on a bounded worker pool.
func (cqt *ChromaCQT) buildKernels(q float64) {
	jobs := make(chan int, len(cqt.frequencies))
	for k := range cqt.frequencies {
		jobs <- k
	}
	close(jobs)

	workers := max(1, min(runtime.NumCPU(), len(cqt.frequencies)))
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := make([]complex128, cqt.fftSize)
			for k := range jobs {
				cqt.kernels[k] = cqt.buildKernel(buf, cqt.frequencies[k], q)
			}
		}()
	}
	wg.Wait()
}

func (cqt *ChromaCQT) buildKernel(buf []complex128, freq, q float64) sparseKernel {
	length := min(cqt.fftSize, int(math.Ceil(q*float64(cqt.sampleRate)/freq)))
	window := windowing.NewHann(length, true).Coefficients()

	clear(buf)
	start := (cqt.fftSize - length) / 2
	omega := 2 * math.Pi * freq / float64(cqt.sampleRate)
	center := float64(length) / 2
	for n, w := range window {
		buf[start+n] = complex(w/float64(length), 0) * cmplx.Exp(complex(0, omega*(float64(n)-center)))
	}

	spectrum := cqt.fft.ComputeComplex(buf)

	peak := 0.0
	for _, v := range spectrum {
		peak = math.Max(peak, cmplx.Abs(v))
	}
	threshold := peak * cqt.config.SparsityThreshold

	lo, hi := -1, -1
	for j, v := range spectrum {
		if cmplx.Abs(v) >= threshold {
			if lo < 0 {
				lo = j
			}
			hi = j
		}
	}

	scale := complex(1/float64(cqt.fftSize), 0)
	coeffs := make([]complex128, hi-lo+1)
	for j := lo; j <= hi; j++ {
		coeffs[j-lo] = cmplx.Conj(spectrum[j]) * scale
	}
	return sparseKernel{start: lo, coeffs: coeffs}
}

// Spectrogram returns the weighted CQT power, frames x bins. Frames are
// centered every hop from the first sample; the signal is zero-padded by half
// an FFT on both sides.
func (cqt *ChromaCQT) Spectrogram(signal []float64) ([][]float64, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	half := cqt.fftSize / 2
	padded := make([]float64, len(signal)+cqt.fftSize)
	copy(padded[half:], signal)

	numFrames := 1 + (len(signal)-1)/cqt.hopSize
	out := make([][]float64, numFrames)

	for t := range numFrames {
		start := t * cqt.hopSize
		spectrum := cqt.fft.Compute(padded[start : start+cqt.fftSize])

		row := make([]float64, len(cqt.kernels))
		for k, kernel := range cqt.kernels {
			var acc complex128
			band := spectrum[kernel.start : kernel.start+len(kernel.coeffs)]
			for j, c := range kernel.coeffs {
				acc += band[j] * c
			}
			re, im := real(acc), imag(acc)
			row[k] = (re*re + im*im) * cqt.gains[k]
		}
		out[t] = row
	}
	return out, nil
}

// ComputeChroma returns one unnormalized 12-bin chroma frame per CQT frame.
func (cqt *ChromaCQT) ComputeChroma(signal []float64) ([][]float64, error) {
	spec, err := cqt.Spectrogram(signal)
	if err != nil {
		return nil, err
	}
	chromagram := make([][]float64, len(spec))
	for t, row := range spec {
		frame := make([]float64, 12)
		for k, power := range row {
			frame[cqt.pitchClass[k]] += power
		}
		chromagram[t] = frame
	}
	return chromagram, nil
}

// Frequencies returns the bin center frequencies. Callers must not modify it.
func (cqt *ChromaCQT) Frequencies() []float64 {
	return cqt.frequencies
}

// FFTSize returns the analysis frame length.
func (cqt *ChromaCQT) FFTSize() int {
	return cqt.fftSize
}

// HopSize returns the distance between frame centers.
func (cqt *ChromaCQT) HopSize() int {
	return cqt.hopSize
}
