package chroma

import (
	"github.com/RyanBlaney/sonido-clave/algorithms/common"
)

// PitchClassNames labels chroma bins, index 0 = C.
var PitchClassNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Vector is a 12-bin pitch-class energy distribution, index 0 = C.
// Only relative magnitudes carry meaning.
type Vector [12]float64

// Slice returns the values as a new slice.
func (v Vector) Slice() []float64 {
	out := make([]float64, 12)
	copy(out, v[:])
	return out
}

// Dominant returns the index of the strongest pitch class (lowest index on ties).
func (v Vector) Dominant() int {
	best := 0
	for i := 1; i < 12; i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// Valid reports whether all entries are finite and non-negative.
func (v Vector) Valid() bool {
	if !common.IsFinite(v[:]) {
		return false
	}
	for _, x := range v {
		if x < 0 {
			return false
		}
	}
	return true
}

// Normalized divides v by its maximum. ok is false for an all-zero vector.
func (v Vector) Normalized() (Vector, bool) {
	values, ok := common.PeakNormalize(v[:])
	var out Vector
	copy(out[:], values)
	return out, ok
}

// MeanVector averages vectors bin by bin. An empty input yields the zero vector.
func MeanVector(vectors []Vector) Vector {
	var out Vector
	if len(vectors) == 0 {
		return out
	}
	column := make([]float64, len(vectors))
	for pc := range 12 {
		for i, v := range vectors {
			column[i] = v[pc]
		}
		out[pc] = common.Mean(column)
	}
	return out
}

// medianFrames reduces a chromagram (frames x 12) to one vector using the
// per-bin median across time.
func medianFrames(chromagram [][]float64) Vector {
	var out Vector
	if len(chromagram) == 0 {
		return out
	}
	column := make([]float64, len(chromagram))
	for pc := range 12 {
		for t, frame := range chromagram {
			column[t] = frame[pc]
		}
		out[pc] = common.Median(column)
	}
	return out
}
