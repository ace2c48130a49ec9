package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// zeroVariance is the standard deviation below which a series is treated as constant.
const zeroVariance = 1e-12

// PearsonCorrelation returns the Pearson correlation coefficient of x and y.
// Mismatched or empty input, and series with zero variance, yield 0 rather
// than NaN. The result is clamped to [-1, 1].
func PearsonCorrelation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0.0
	}
	if stat.StdDev(x, nil) < zeroVariance || stat.StdDev(y, nil) < zeroVariance {
		return 0.0
	}

	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0.0
	}
	return math.Max(-1, math.Min(1, r))
}

// Autocorrelation returns r[lag] for lag in [minLag, maxLag], normalized by
// the zero-lag energy of the mean-removed signal. Index 0 of the result
// corresponds to minLag. A silent signal yields all zeros.
func Autocorrelation(x []float64, minLag, maxLag int) []float64 {
	minLag = max(0, minLag)
	maxLag = min(maxLag, len(x)-1)
	if maxLag < minLag {
		return nil
	}

	centered := make([]float64, len(x))
	copy(centered, x)
	floats.AddConst(-stat.Mean(x, nil), centered)

	energy := floats.Dot(centered, centered)
	out := make([]float64, maxLag-minLag+1)
	if energy < zeroVariance {
		return out
	}

	for lag := minLag; lag <= maxLag; lag++ {
		out[lag-minLag] = floats.Dot(centered[:len(centered)-lag], centered[lag:]) / energy
	}
	return out
}
