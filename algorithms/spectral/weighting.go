package spectral

import (
	"fmt"
	"math"
)

// WeightingType selects a perceptual frequency weighting curve.
type WeightingType string

const (
	WeightingNone WeightingType = "none"
	WeightingA    WeightingType = "a"
)

// ParseWeighting validates a weighting name. The empty string means none.
func ParseWeighting(name string) (WeightingType, error) {
	switch WeightingType(name) {
	case "", WeightingNone:
		return WeightingNone, nil
	case WeightingA, "A":
		return WeightingA, nil
	default:
		return WeightingNone, fmt.Errorf("unknown frequency weighting %q", name)
	}
}

// AWeightingDB returns the IEC 61672 A-weighting in dB at freq Hz
// (0 dB at 1 kHz).
func AWeightingDB(freq float64) float64 {
	if freq <= 0 {
		return math.Inf(-1)
	}
	f2 := freq * freq
	const (
		c1 = 20.598997 * 20.598997
		c2 = 107.65265 * 107.65265
		c3 = 737.86223 * 737.86223
		c4 = 12194.217 * 12194.217
	)
	ra := (c4 * f2 * f2) / ((f2 + c1) * math.Sqrt((f2+c2)*(f2+c3)) * (f2 + c4))
	return 20*math.Log10(ra) + 2.0
}

// PowerGain returns the linear power multiplier of the weighting at freq Hz.
func (w WeightingType) PowerGain(freq float64) float64 {
	switch w {
	case WeightingA:
		return math.Pow(10, AWeightingDB(freq)/10)
	default:
		return 1.0
	}
}
