package common

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic statistics shared by the analysis packages, backed by gonum where it has an equivalent.

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// Median returns the middle value of data, averaging the two central values
// for even lengths. data is not modified.
func Median(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	sorted := slices.Clone(data)
	return medianSorted(sorted)
}

// medianSorted sorts buf in place and returns its median.
func medianSorted(buf []float64) float64 {
	slices.Sort(buf)
	mid := len(buf) / 2
	if len(buf)%2 == 0 {
		return (buf[mid-1] + buf[mid]) / 2.0
	}
	return buf[mid]
}

// MedianFilter applies a centered median filter. Windows are truncated at the
// edges. dst must not overlap data; pass nil to allocate.
func MedianFilter(dst, data []float64, windowSize int) []float64 {
	if len(dst) < len(data) {
		dst = make([]float64, len(data))
	}
	dst = dst[:len(data)]
	if len(data) == 0 {
		return dst
	}
	if windowSize <= 1 {
		copy(dst, data)
		return dst
	}

	half := windowSize / 2
	scratch := make([]float64, 0, windowSize)
	for i := range data {
		start := max(0, i-half)
		end := min(len(data), i+half+1)
		scratch = append(scratch[:0], data[start:end]...)
		dst[i] = medianSorted(scratch)
	}
	return dst
}

// MaxAbs returns the largest absolute value in data.
func MaxAbs(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return math.Max(math.Abs(floats.Max(data)), math.Abs(floats.Min(data)))
}

// IsFinite reports whether every value is neither NaN nor infinite.
func IsFinite(data []float64) bool {
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// MinMaxNormalize maps data onto [0, 1]. Constant input maps to all ones so
// downstream correlation sees a neutral, flat vector instead of NaN.
func MinMaxNormalize(data []float64) []float64 {
	normalized := make([]float64, len(data))
	if len(data) == 0 {
		return normalized
	}

	lo := floats.Min(data)
	hi := floats.Max(data)

	if hi-lo < 1e-12 {
		for i := range normalized {
			normalized[i] = 1.0
		}
		return normalized
	}

	for i, val := range data {
		normalized[i] = (val - lo) / (hi - lo)
	}
	return normalized
}

// PeakNormalize divides data by its maximum. ok is false when the maximum is
// not positive, in which case data is returned unchanged.
func PeakNormalize(data []float64) (normalized []float64, ok bool) {
	normalized = slices.Clone(data)
	if len(data) == 0 {
		return normalized, false
	}
	peak := floats.Max(data)
	if peak <= 1e-12 {
		return normalized, false
	}
	floats.Scale(1.0/peak, normalized)
	return normalized, true
}

// Clamp constrains a value to a range
func Clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// NextPowerOfTwo finds the next power of 2 >= n
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	power := 1
	for power < n {
		power <<= 1
	}
	return power
}

// ParabolicPeak refines the position of a local maximum at index i using the
// neighbouring values. It returns the fractional offset in [-0.5, 0.5] and
// the interpolated height.
func ParabolicPeak(data []float64, i int) (offset, height float64) {
	if i <= 0 || i >= len(data)-1 {
		return 0, data[i]
	}
	alpha, beta, gamma := data[i-1], data[i], data[i+1]
	denom := alpha - 2*beta + gamma
	if math.Abs(denom) < 1e-18 {
		return 0, beta
	}
	offset = Clamp(0.5*(alpha-gamma)/denom, -0.5, 0.5)
	height = beta - 0.25*(alpha-gamma)*offset
	return offset, height
}
