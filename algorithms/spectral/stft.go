package spectral

import (
	"fmt"
	"math/cmplx"
	"runtime"
	"sync"
)

// STFT provides Short-Time Fourier Transform functionality
type STFT struct {
	fft *FFT
}

// STFTResult holds the result of STFT analysis
type STFTResult struct {
	Magnitude      [][]float64    `json:"magnitude"`       // Time x Frequency magnitude matrix
	Complex        [][]complex128 `json:"-"`               // Raw complex spectrogram (not serialized)
	TimeFrames     int            `json:"time_frames"`     // Number of time frames
	FreqBins       int            `json:"freq_bins"`       // Number of frequency bins
	SampleRate     int            `json:"sample_rate"`     // Sample rate
	WindowSize     int            `json:"window_size"`     // FFT window size
	HopSize        int            `json:"hop_size"`        // Hop size between frames
	FreqResolution float64        `json:"freq_resolution"` // Frequency resolution (Hz/bin)
	TimeResolution float64        `json:"time_resolution"` // Time resolution (seconds/frame)
}

// Window interface for windowing functions
type Window interface {
	ApplyInPlace(signal []float64) error
}

// SynthesisWindow is a Window that can also normalize an overlap-add resynthesis.
type SynthesisWindow interface {
	Window
	Coefficients() []float64
	SumSquare(numFrames, hopSize int) []float64
}

// NewSTFT creates a new STFT calculator
func NewSTFT() *STFT {
	return &STFT{
		fft: NewFFT(),
	}
}

// ComputeWithWindow computes STFT with parallel processing and custom window type
func (s *STFT) ComputeWithWindow(signal []float64, windowSize int, hopSize int, sampleRate int, window Window) (*STFTResult, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}

	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	numFrames := (len(signal)-windowSize)/hopSize + 1
	if len(signal) < windowSize || numFrames <= 0 {
		return nil, fmt.Errorf("signal too short for given window size and hop size")
	}

	// positive frequencies only
	freqBins := windowSize/2 + 1

	magnitude := make([][]float64, numFrames)
	complexSpectrum := make([][]complex128, numFrames)
	for i := range numFrames {
		magnitude[i] = make([]float64, freqBins)
		complexSpectrum[i] = make([]complex128, freqBins)
	}

	numWorkers := s.getOptimalWorkerCount(numFrames)

	jobs := make(chan int, numFrames)
	errs := make(chan error, numWorkers)

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// one frame buffer per worker
			frameBuffer := make([]float64, windowSize)

			for frameIdx := range jobs {
				start := frameIdx * hopSize
				copy(frameBuffer, signal[start:start+windowSize])

				if window != nil {
					if err := window.ApplyInPlace(frameBuffer); err != nil {
						errs <- err
						return
					}
				}

				fftResult := s.fft.Compute(frameBuffer)
				for i := range freqBins {
					complexSpectrum[frameIdx][i] = fftResult[i]
					magnitude[frameIdx][i] = cmplx.Abs(fftResult[i])
				}
			}
		}()
	}

	for frameIdx := range numFrames {
		jobs <- frameIdx
	}
	close(jobs)

	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		return nil, fmt.Errorf("failed to window frame: %w", err)
	}

	return &STFTResult{
		Magnitude:      magnitude,
		Complex:        complexSpectrum,
		TimeFrames:     numFrames,
		FreqBins:       freqBins,
		SampleRate:     sampleRate,
		WindowSize:     windowSize,
		HopSize:        hopSize,
		FreqResolution: float64(sampleRate) / float64(windowSize),
		TimeResolution: float64(hopSize) / float64(sampleRate),
	}, nil
}

// Inverse resynthesizes a signal of the given length from a (possibly masked)
// complex spectrogram by weighted overlap-add. Samples the windows never
// cover are left at zero.
func (s *STFT) Inverse(spectrum [][]complex128, windowSize, hopSize, length int, window SynthesisWindow) ([]float64, error) {
	if len(spectrum) == 0 {
		return nil, fmt.Errorf("empty spectrogram")
	}
	if window == nil || len(window.Coefficients()) != windowSize {
		return nil, fmt.Errorf("synthesis window must have %d coefficients", windowSize)
	}
	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	coeffs := window.Coefficients()
	total := windowSize + (len(spectrum)-1)*hopSize
	out := make([]float64, total)

	for f, frame := range spectrum {
		if len(frame) != windowSize/2+1 {
			return nil, fmt.Errorf("frame %d has %d bins, want %d", f, len(frame), windowSize/2+1)
		}
		samples := s.fft.InverseHalfSpectrum(frame, windowSize)
		offset := f * hopSize
		for i, v := range samples {
			out[offset+i] += v * coeffs[i]
		}
	}

	wss := window.SumSquare(len(spectrum), hopSize)
	for i := range out {
		if wss[i] > 1e-8 {
			out[i] /= wss[i]
		} else {
			out[i] = 0
		}
	}

	if length < total {
		out = out[:length]
	} else if length > total {
		out = append(out, make([]float64, length-total)...)
	}
	return out, nil
}

// getOptimalWorkerCount determines the optimal number of workers based on workload
func (s *STFT) getOptimalWorkerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	// small workloads don't benefit from fanning out
	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}

	if numFrames < 1000 {
		return min(numCPU, 8)
	}

	return numCPU
}
